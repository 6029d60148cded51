/*
Package ledger implements the wallet hold ledger.

PURPOSE:
  Tracks each organization's wallet: available balance, held amount, credit
  limit, and credit utilization. Money moves in exactly three ways:

    CreateHold: reserve funds for a billable-pending enrollment
    CommitHold: convert the reservation into a real deduction on approval
    VoidHold:   release the reservation on any non-approval terminal outcome

  Nothing else mutates a wallet. No handler or CRUD code writes wallet
  fields directly.

CRITICAL INVARIANTS (checked after every operation):
  1. heldAmount == sum of active hold amounts for the organization
  2. availableBalance >= 0 - overdraft is carried in creditUtilized,
     never as a negative balance
  3. creditUtilized <= creditLimit
  4. At most one active hold per enrollment
  5. Committed and voided holds are terminal and immutable

CREDIT LINE:
  An organization may hold and spend into its credit line, but never beyond
  creditLimit. A hold is refused when available - held - amount would fall
  below -(creditLimit - creditUtilized).

SEE ALSO:
  - ledger.go: The three operations and the per-org single-writer lock
  - store.go: Persistence interface
*/
package ledger

import (
	"time"

	"github.com/loopreach/settlement-engine/money"
)

// =============================================================================
// WALLET - Per-organization balances
// =============================================================================

type Wallet struct {
	OrganizationID string
	Available      money.Money
	Held           money.Money
	CreditLimit    money.Money
	CreditUtilized money.Money
	UpdatedAt      time.Time
}

// CreditHeadroom is how much further the organization can draw on credit.
func (w *Wallet) CreditHeadroom() money.Money {
	return w.CreditLimit.Sub(w.CreditUtilized)
}

// =============================================================================
// HOLD - A reservation against the wallet
// =============================================================================

type HoldState string

const (
	HoldActive    HoldState = "active"
	HoldCommitted HoldState = "committed"
	HoldVoided    HoldState = "voided"
)

type Hold struct {
	ID             string
	OrganizationID string
	CampaignID     string
	EnrollmentID   string
	Amount         money.Money
	State          HoldState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
