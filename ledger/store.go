/*
store.go - Persistence interface for wallets and holds

PURPOSE:
  The small contract the WalletLedger needs from storage: read/write one
  wallet, create holds, flip a hold's state with a compare-and-swap, and
  sum active holds for the invariant check.

HOLD STATE TRANSITIONS:
  UpdateHoldState writes the new state only if the stored state still
  equals the expected one. Committed and voided holds therefore never
  change again - the swap against "active" can only succeed once.

SEE ALSO:
  - ledger.go: The only caller
  - store/sqlite/sqlite.go: Concrete implementation
*/
package ledger

import (
	"context"
	"time"

	"github.com/loopreach/settlement-engine/money"
)

// Store handles persistence of wallets and holds.
type Store interface {
	// GetWallet returns the organization's wallet, or nil if none exists.
	GetWallet(ctx context.Context, orgID string) (*Wallet, error)

	// SaveWallet inserts or updates a wallet record.
	SaveWallet(ctx context.Context, w *Wallet) error

	// CreateHold persists a new hold. Fails if the enrollment already has
	// an active hold (database-level uniqueness backs the invariant).
	CreateHold(ctx context.Context, h *Hold) error

	// ActiveHoldForEnrollment returns the enrollment's active hold, or nil.
	ActiveHoldForEnrollment(ctx context.Context, enrollmentID string) (*Hold, error)

	// UpdateHoldState performs a compare-and-swap on hold state. Returns
	// false when the stored state no longer equals from.
	UpdateHoldState(ctx context.Context, holdID string, from, to HoldState, updatedAt time.Time) (bool, error)

	// ActiveHoldTotal sums the amounts of all active holds for an
	// organization. Used by the post-operation invariant check.
	ActiveHoldTotal(ctx context.Context, orgID string) (money.Money, error)
}
