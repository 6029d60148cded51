/*
Package campaign defines read-only access to campaign records.

PURPOSE:
  Campaign CRUD belongs to an external collaborator. The settlement core
  only reads campaigns: the payout rule, the organization owning the
  campaign, and the default fee rates that get locked onto enrollments at
  creation time.

SEE ALSO:
  - payout/factory.go: Parses the stored rule JSON
  - enrollment/machine.go: Reads rules when computing hold amounts
*/
package campaign

import (
	"context"
	"time"

	"github.com/loopreach/settlement-engine/money"
	"github.com/loopreach/settlement-engine/payout"
)

type Campaign struct {
	ID             string
	OrganizationID string
	Name           string

	// Payout configuration, read-only from this core's perspective.
	Rule payout.Rule

	// Default rates, copied onto enrollments at creation and locked there.
	PlatformFeePercent money.Percent
	GSTPercent         money.Percent

	CreatedAt time.Time
}

// Store is the read-only campaign collaborator.
type Store interface {
	// GetCampaign returns the campaign, or nil if it doesn't exist.
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
}
