/*
Package money provides exact currency arithmetic for the settlement engine.

PURPOSE:
  All monetary values in the system flow through this package. Amounts are
  expressed in integer minor units (paise for INR) and every arithmetic step
  that can produce a fraction rounds immediately, so a payout computed twice
  always yields the same figure - and matches what was held.

KEY CONCEPTS IN THIS FILE:
  - Money:   A currency amount backed by decimal.Decimal (never float64)
  - Percent: A percentage rate (2 = 2%), applied with per-step rounding

ROUNDING POLICY:
  Round half away from zero, at each deduction step, not only at the end.
  round(1001 * 2%) = round(20.02) = 20; round(20 * 18%) = round(3.6) = 4.

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal end to end, no floating-point drift
  2. Determinism: rounding happens at fixed points, never accumulates
  3. Comparability: Money values compare exactly

SEE ALSO:
  - payout/calculator.go: Per-step rounding in the payout breakdown
  - ledger/ledger.go: Wallet balances and hold amounts
*/
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount in integer minor units
// =============================================================================

type Money struct {
	value decimal.Decimal
}

// New creates a Money from an integer amount of minor units.
func New(minorUnits int64) Money {
	return Money{value: decimal.NewFromInt(minorUnits)}
}

// FromDecimal creates a Money from a decimal, rounding to the nearest
// minor unit (half away from zero).
func FromDecimal(d decimal.Decimal) Money {
	return Money{value: d.Round(0)}
}

// Zero is the zero amount.
func Zero() Money { return Money{value: decimal.Zero} }

func (m Money) Decimal() decimal.Decimal { return m.value }
func (m Money) Int64() int64             { return m.value.IntPart() }

func (m Money) Add(o Money) Money { return Money{value: m.value.Add(o.value)} }
func (m Money) Sub(o Money) Money { return Money{value: m.value.Sub(o.value)} }
func (m Money) Neg() Money        { return Money{value: m.value.Neg()} }

// MulInt multiplies by a whole quantity. Exact, no rounding needed.
func (m Money) MulInt(n int64) Money {
	return Money{value: m.value.Mul(decimal.NewFromInt(n))}
}

func (m Money) IsZero() bool     { return m.value.IsZero() }
func (m Money) IsNegative() bool { return m.value.IsNegative() }
func (m Money) IsPositive() bool { return m.value.IsPositive() }

func (m Money) Equal(o Money) bool       { return m.value.Equal(o.value) }
func (m Money) GreaterThan(o Money) bool { return m.value.GreaterThan(o.value) }
func (m Money) LessThan(o Money) bool    { return m.value.LessThan(o.value) }

func (m Money) String() string { return m.value.String() }

// MarshalJSON encodes as a bare number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.value.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid money value %q: %w", string(data), err)
	}
	m.value = d.Round(0)
	return nil
}

// MustParse parses a decimal string into Money. Panics on malformed input;
// use only for constants and test fixtures.
func MustParse(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("money: cannot parse %q: %v", s, err))
	}
	return FromDecimal(d)
}

// =============================================================================
// PERCENT - A rate applied to Money with per-step rounding
// =============================================================================

// Percent is a percentage rate. Percent(2) means 2%.
type Percent struct {
	rate decimal.Decimal
}

func NewPercent(p float64) Percent {
	return Percent{rate: decimal.NewFromFloat(p)}
}

func PercentFromDecimal(d decimal.Decimal) Percent { return Percent{rate: d} }

func (p Percent) Decimal() decimal.Decimal { return p.rate }

func (p Percent) IsZero() bool     { return p.rate.IsZero() }
func (p Percent) IsNegative() bool { return p.rate.IsNegative() }

func (p Percent) String() string { return p.rate.String() }

// ApplyTo computes m * p/100, rounded to the nearest minor unit.
// This is the single rounding point for every fee and tax step.
func (p Percent) ApplyTo(m Money) Money {
	raw := m.Decimal().Mul(p.rate).Div(decimal.NewFromInt(100))
	return FromDecimal(raw)
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.rate.String()), nil
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid percent value %q: %w", string(data), err)
	}
	p.rate = d
	return nil
}
