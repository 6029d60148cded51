/*
Package payout computes payout breakdowns from campaign rules.

PURPOSE:
  Pure calculation only - no storage, no side effects. Given a campaign's
  payout rule, the order facts, and the enrollment's locked rates, produce
  the full breakdown: gross payout, platform fee, GST, net payout, with
  labeled line items for display and for the wallet hold amount.

TIER SELECTION:
  Tiers are payout breakpoints keyed by a minimum order value. Among the
  tiers the order qualifies for, the one with the HIGHEST threshold wins
  (the richest applicable tier). With no qualifying tier, or no tiers at
  all, the rule's base amount applies.

FEE MODEL:
  platformFee = round(totalPayout * platformFeePercent)
  gstAmount   = round(platformFee * gstPercent)
  netPayout   = totalPayout - platformFee - gstAmount

  GST is charged on the platform fee - the taxable service charge - not on
  the gross payout. Every step rounds to the nearest minor unit before the
  next step, so recomputing a breakdown always reproduces the held amount.

SEE ALSO:
  - factory.go: JSON rule configuration parsing
  - ledger/ledger.go: Consumes NetPayout as the hold amount
*/
package payout

import (
	"errors"
	"fmt"

	"github.com/loopreach/settlement-engine/money"
)

// =============================================================================
// RULE - Campaign payout configuration (read-only here)
// =============================================================================

// Tier is a payout breakpoint keyed by a minimum order value threshold.
type Tier struct {
	MinOrderValue money.Money
	Payout        money.Money
}

// Rule is a campaign's payout configuration. Owned by the campaign; this
// package only reads it.
type Rule struct {
	BaseAmount    money.Money
	MinOrderValue money.Money
	Tiers         []Tier // ordered list, may be empty
}

// Rates are the fee percentages locked onto an enrollment at creation.
type Rates struct {
	PlatformFee money.Percent
	GST         money.Percent
}

// =============================================================================
// BREAKDOWN - The calculation result
// =============================================================================

// LineItem is one labeled row of the breakdown, suitable for rendering.
type LineItem struct {
	Label  string
	Amount money.Money
}

type Breakdown struct {
	OrderValue    money.Money
	Quantity      int64
	PayoutPerUnit money.Money
	TotalPayout   money.Money
	PlatformFee   money.Money
	GSTAmount     money.Money
	NetPayout     money.Money
	LineItems     []LineItem
}

// HoldAmount is what the wallet ledger reserves for this enrollment: the
// net payout obligation to the shopper.
func (b *Breakdown) HoldAmount() money.Money { return b.NetPayout }

// =============================================================================
// ERRORS
// =============================================================================

var ErrValidation = errors.New("payout validation failed")

// ValidationError carries a message suitable for rendering directly,
// e.g. "order value must be at least 500".
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculate computes the payout breakdown for an order against a rule.
// A quantity of zero defaults to one unit.
func Calculate(rule Rule, orderValue money.Money, quantity int64, rates Rates) (*Breakdown, error) {
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, &ValidationError{Message: "quantity must be positive"}
	}
	if !orderValue.IsPositive() {
		return nil, &ValidationError{Message: "order value must be positive"}
	}
	if orderValue.LessThan(rule.MinOrderValue) {
		return nil, &ValidationError{
			Message: fmt.Sprintf("order value must be at least %s", rule.MinOrderValue),
		}
	}

	perUnit := selectPayout(rule, orderValue)
	totalPayout := perUnit.MulInt(quantity)

	// Each deduction rounds before the next step (see package doc).
	platformFee := rates.PlatformFee.ApplyTo(totalPayout)
	gstAmount := rates.GST.ApplyTo(platformFee)
	netPayout := totalPayout.Sub(platformFee).Sub(gstAmount)

	return &Breakdown{
		OrderValue:    orderValue,
		Quantity:      quantity,
		PayoutPerUnit: perUnit,
		TotalPayout:   totalPayout,
		PlatformFee:   platformFee,
		GSTAmount:     gstAmount,
		NetPayout:     netPayout,
		LineItems: []LineItem{
			{Label: "Order value", Amount: orderValue},
			{Label: "Payout", Amount: totalPayout},
			{Label: "Platform fee", Amount: platformFee.Neg()},
			{Label: "GST on platform fee", Amount: gstAmount.Neg()},
			{Label: "Net payout", Amount: netPayout},
		},
	}, nil
}

// selectPayout picks the per-unit payout: the qualifying tier with the
// highest threshold, or the base amount when no tier qualifies.
func selectPayout(rule Rule, orderValue money.Money) money.Money {
	best := rule.BaseAmount
	found := false
	var bestThreshold money.Money
	for _, tier := range rule.Tiers {
		if orderValue.LessThan(tier.MinOrderValue) {
			continue
		}
		if !found || tier.MinOrderValue.GreaterThan(bestThreshold) || tier.MinOrderValue.Equal(bestThreshold) {
			best = tier.Payout
			bestThreshold = tier.MinOrderValue
			found = true
		}
	}
	return best
}
