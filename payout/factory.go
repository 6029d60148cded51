/*
factory.go - JSON to payout rule conversion

PURPOSE:
  Campaigns store their payout configuration as JSON. This factory converts
  that JSON into a validated Rule, so campaign managers can change payout
  economics without code changes.

JSON SCHEMA:
  {
    "base_amount": 400,
    "min_order_value": 500,
    "tiers": [
      {"min_order_value": 5000, "payout": 600},
      {"min_order_value": 10000, "payout": 900}
    ]
  }

Amounts are integer minor units.

SEE ALSO:
  - calculator.go: Rule consumer
  - store/sqlite: Stores the raw JSON on the campaign record
*/
package payout

import (
	"encoding/json"
	"fmt"

	"github.com/loopreach/settlement-engine/money"
)

// RuleJSON is the stored JSON representation of a payout rule.
type RuleJSON struct {
	BaseAmount    int64      `json:"base_amount"`
	MinOrderValue int64      `json:"min_order_value"`
	Tiers         []TierJSON `json:"tiers,omitempty"`
}

// TierJSON is one tier row in the stored configuration.
type TierJSON struct {
	MinOrderValue int64 `json:"min_order_value"`
	Payout        int64 `json:"payout"`
}

// ParseRule parses a JSON rule configuration into a Rule.
func ParseRule(jsonStr string) (Rule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return Rule{}, fmt.Errorf("failed to parse payout rule JSON: %w", err)
	}
	return FromJSON(rj)
}

// FromJSON converts a RuleJSON into a validated Rule.
func FromJSON(rj RuleJSON) (Rule, error) {
	if rj.BaseAmount < 0 {
		return Rule{}, &ValidationError{Message: "base amount must not be negative"}
	}
	if rj.MinOrderValue < 0 {
		return Rule{}, &ValidationError{Message: "minimum order value must not be negative"}
	}

	rule := Rule{
		BaseAmount:    money.New(rj.BaseAmount),
		MinOrderValue: money.New(rj.MinOrderValue),
	}
	for i, t := range rj.Tiers {
		if t.Payout < 0 {
			return Rule{}, &ValidationError{Message: fmt.Sprintf("tier %d: payout must not be negative", i)}
		}
		rule.Tiers = append(rule.Tiers, Tier{
			MinOrderValue: money.New(t.MinOrderValue),
			Payout:        money.New(t.Payout),
		})
	}
	return rule, nil
}

// ToJSON converts a Rule back to its stored representation.
func ToJSON(rule Rule) RuleJSON {
	rj := RuleJSON{
		BaseAmount:    rule.BaseAmount.Int64(),
		MinOrderValue: rule.MinOrderValue.Int64(),
	}
	for _, t := range rule.Tiers {
		rj.Tiers = append(rj.Tiers, TierJSON{
			MinOrderValue: t.MinOrderValue.Int64(),
			Payout:        t.Payout.Int64(),
		})
	}
	return rj
}
