package payout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopreach/settlement-engine/money"
	"github.com/loopreach/settlement-engine/payout"
)

func TestParseRule_TieredConfiguration(t *testing.T) {
	// GIVEN: A stored campaign rule with two paid tiers
	// WHEN: Parsing it into a Rule
	// THEN: Amounts and thresholds survive the round trip

	jsonStr := `{
		"base_amount": 400,
		"min_order_value": 500,
		"tiers": [
			{"min_order_value": 5000, "payout": 600},
			{"min_order_value": 10000, "payout": 900}
		]
	}`

	rule, err := payout.ParseRule(jsonStr)
	require.NoError(t, err)

	assert.Equal(t, int64(400), rule.BaseAmount.Int64())
	assert.Equal(t, int64(500), rule.MinOrderValue.Int64())
	require.Len(t, rule.Tiers, 2)
	assert.Equal(t, int64(10000), rule.Tiers[1].MinOrderValue.Int64())
	assert.Equal(t, int64(900), rule.Tiers[1].Payout.Int64())
}

func TestParseRule_MalformedJSON(t *testing.T) {
	_, err := payout.ParseRule(`{"base_amount": `)
	assert.Error(t, err)
}

func TestFromJSON_NegativeAmounts_Rejected(t *testing.T) {
	cases := []struct {
		name string
		rj   payout.RuleJSON
	}{
		{"negative base", payout.RuleJSON{BaseAmount: -1}},
		{"negative minimum", payout.RuleJSON{MinOrderValue: -500}},
		{"negative tier payout", payout.RuleJSON{
			Tiers: []payout.TierJSON{{MinOrderValue: 5000, Payout: -600}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := payout.FromJSON(tc.rj)
			require.Error(t, err)
			assert.ErrorIs(t, err, payout.ErrValidation)
		})
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	rule := payout.Rule{
		BaseAmount:    money.New(250),
		MinOrderValue: money.New(1000),
		Tiers: []payout.Tier{
			{MinOrderValue: money.New(5000), Payout: money.New(600)},
		},
	}

	parsed, err := payout.FromJSON(payout.ToJSON(rule))
	require.NoError(t, err)
	assert.True(t, parsed.BaseAmount.Equal(rule.BaseAmount))
	require.Len(t, parsed.Tiers, 1)
	assert.True(t, parsed.Tiers[0].Payout.Equal(rule.Tiers[0].Payout))
}
