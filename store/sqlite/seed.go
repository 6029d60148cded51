/*
seed.go - Deterministic demo data

PURPOSE:
  Populates a fresh database with two organizations, funded wallets, and
  campaigns covering the interesting payout shapes (flat rule, tiered
  rule, campaign with a credit-backed wallet). Development and demo use
  only; nothing in the settlement core depends on this.

SEE ALSO:
  - cmd/server/main.go: Runs Seed behind the -seed flag
*/
package sqlite

import (
	"context"
	"time"

	"github.com/loopreach/settlement-engine/campaign"
	"github.com/loopreach/settlement-engine/ledger"
	"github.com/loopreach/settlement-engine/money"
	"github.com/loopreach/settlement-engine/payout"
)

// Seed inserts demo campaigns and wallets. Idempotent: existing rows with
// the same ids are replaced.
func (s *Store) Seed(ctx context.Context) error {
	now := time.Now().UTC()

	campaigns := []*campaign.Campaign{
		{
			ID:             "cmp-flat-sneakers",
			OrganizationID: "org-velocity",
			Name:           "Velocity Sneaker Drop",
			Rule: payout.Rule{
				BaseAmount:    money.New(400),
				MinOrderValue: money.New(500),
			},
			PlatformFeePercent: money.NewPercent(2),
			GSTPercent:         money.NewPercent(18),
			CreatedAt:          now,
		},
		{
			ID:             "cmp-tiered-audio",
			OrganizationID: "org-velocity",
			Name:           "Velocity Audio Tiers",
			Rule: payout.Rule{
				BaseAmount:    money.New(400),
				MinOrderValue: money.New(500),
				Tiers: []payout.Tier{
					{MinOrderValue: money.New(0), Payout: money.New(400)},
					{MinOrderValue: money.New(5000), Payout: money.New(600)},
					{MinOrderValue: money.New(10000), Payout: money.New(900)},
				},
			},
			PlatformFeePercent: money.NewPercent(2),
			GSTPercent:         money.NewPercent(18),
			CreatedAt:          now,
		},
		{
			ID:             "cmp-credit-home",
			OrganizationID: "org-hearth",
			Name:           "Hearth Home Essentials",
			Rule: payout.Rule{
				BaseAmount:    money.New(250),
				MinOrderValue: money.New(1000),
			},
			PlatformFeePercent: money.NewPercent(3),
			GSTPercent:         money.NewPercent(18),
			CreatedAt:          now,
		},
	}
	for _, c := range campaigns {
		if err := s.SaveCampaign(ctx, c); err != nil {
			return err
		}
	}

	wallets := []*ledger.Wallet{
		{
			OrganizationID: "org-velocity",
			Available:      money.New(500000),
			Held:           money.Zero(),
			CreditLimit:    money.Zero(),
			CreditUtilized: money.Zero(),
			UpdatedAt:      now,
		},
		{
			OrganizationID: "org-hearth",
			Available:      money.New(20000),
			Held:           money.Zero(),
			CreditLimit:    money.New(100000),
			CreditUtilized: money.Zero(),
			UpdatedAt:      now,
		},
	}
	for _, w := range wallets {
		if err := s.SaveWallet(ctx, w); err != nil {
			return err
		}
	}
	return nil
}
