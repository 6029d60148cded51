/*
ledger.go - The three wallet operations

PURPOSE:
  WalletLedger is the only component allowed to mutate wallet balances.
  It serializes all mutation per organization (single-writer discipline),
  applies the credit-line rule, and re-checks the ledger invariants after
  every operation.

OPERATION SEMANTICS:
  CreateHold: refuse if the hold would exceed the credit line; otherwise
              record an active hold and raise heldAmount.
  CommitHold: active hold -> committed; heldAmount drops, the available
              balance funds the spend, and any shortfall draws on the
              credit line through creditUtilized. availableBalance never
              goes negative. No active hold is a successful no-op: not
              every enrollment reaches a billable state before approval.
  VoidHold:   active hold -> voided; heldAmount drops, availableBalance is
              untouched - the funds were reserved, never spent. Idempotent:
              a second void is a no-op.

SINGLE-WRITER:
  The wallet is the one piece of state that enrollments within an
  organization contend over. Every operation takes the organization's
  mutex before touching storage, so concurrent transitions for different
  enrollments cannot interleave wallet updates.

SEE ALSO:
  - types.go: Wallet and Hold, invariants listed in the package doc
  - enrollment/machine.go: Invokes commit/void on money-affecting transitions
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loopreach/settlement-engine/money"
)

// WalletLedger owns all wallet mutation for every organization.
type WalletLedger struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-organization writer locks
}

func NewWalletLedger(store Store) *WalletLedger {
	return &WalletLedger{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// orgLock returns the mutex serializing writes for one organization.
func (l *WalletLedger) orgLock(orgID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[orgID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[orgID] = lock
	}
	return lock
}

// =============================================================================
// QUERIES
// =============================================================================

// GetWallet returns the organization's wallet.
func (l *WalletLedger) GetWallet(ctx context.Context, orgID string) (*Wallet, error) {
	w, err := l.store.GetWallet(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWalletNotFound
	}
	return w, nil
}

// ActiveHold returns the enrollment's active hold, or nil when none exists.
func (l *WalletLedger) ActiveHold(ctx context.Context, enrollmentID string) (*Hold, error) {
	return l.store.ActiveHoldForEnrollment(ctx, enrollmentID)
}

// =============================================================================
// CREATE HOLD
// =============================================================================

// CreateHold reserves amount against the organization's wallet for one
// enrollment. Returns InsufficientCreditError when the wallet cannot
// support the hold, ErrDuplicateHold when the enrollment already has an
// active hold.
func (l *WalletLedger) CreateHold(ctx context.Context, orgID, campaignID, enrollmentID string, amount money.Money) (*Hold, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("hold amount must be positive, got %s", amount)
	}

	lock := l.orgLock(orgID)
	lock.Lock()
	defer lock.Unlock()

	w, err := l.store.GetWallet(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWalletNotFound
	}

	if existing, err := l.store.ActiveHoldForEnrollment(ctx, enrollmentID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrDuplicateHold
	}

	// Credit-line rule: available - held - amount must stay >= -headroom.
	headroom := w.CreditHeadroom()
	remaining := w.Available.Sub(w.Held).Sub(amount)
	if remaining.LessThan(headroom.Neg()) {
		return nil, &InsufficientCreditError{
			OrganizationID: orgID,
			Requested:      amount,
			Available:      w.Available,
			Held:           w.Held,
			CreditHeadroom: headroom,
		}
	}

	now := time.Now().UTC()
	hold := &Hold{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		CampaignID:     campaignID,
		EnrollmentID:   enrollmentID,
		Amount:         amount,
		State:          HoldActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.store.CreateHold(ctx, hold); err != nil {
		return nil, err
	}

	w.Held = w.Held.Add(amount)
	w.UpdatedAt = now
	if err := l.store.SaveWallet(ctx, w); err != nil {
		return nil, err
	}

	if err := l.checkInvariants(ctx, orgID); err != nil {
		return nil, err
	}
	return hold, nil
}

// =============================================================================
// COMMIT HOLD
// =============================================================================

// CommitHold converts the enrollment's active hold into a real balance
// deduction. A missing active hold is a successful no-op.
func (l *WalletLedger) CommitHold(ctx context.Context, orgID, enrollmentID string) error {
	lock := l.orgLock(orgID)
	lock.Lock()
	defer lock.Unlock()

	hold, err := l.store.ActiveHoldForEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if hold == nil {
		return nil // never reached a billable state; nothing to settle
	}

	w, err := l.store.GetWallet(ctx, hold.OrganizationID)
	if err != nil {
		return err
	}
	if w == nil {
		return ErrWalletNotFound
	}

	now := time.Now().UTC()
	ok, err := l.store.UpdateHoldState(ctx, hold.ID, HoldActive, HoldCommitted, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil // already settled by a concurrent commit/void
	}

	w.Held = w.Held.Sub(hold.Amount)
	w.Available = w.Available.Sub(hold.Amount)

	// The shortfall draws on the credit line; the available balance itself
	// never goes negative.
	if w.Available.IsNegative() {
		w.CreditUtilized = w.CreditUtilized.Add(w.Available.Neg())
		w.Available = money.Zero()
	}

	w.UpdatedAt = now
	if err := l.store.SaveWallet(ctx, w); err != nil {
		return err
	}
	return l.checkInvariants(ctx, hold.OrganizationID)
}

// =============================================================================
// VOID HOLD
// =============================================================================

// VoidHold releases the enrollment's active hold without spending funds.
// Idempotent: no active hold is a successful no-op.
func (l *WalletLedger) VoidHold(ctx context.Context, orgID, enrollmentID string) error {
	lock := l.orgLock(orgID)
	lock.Lock()
	defer lock.Unlock()

	hold, err := l.store.ActiveHoldForEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if hold == nil {
		return nil
	}

	w, err := l.store.GetWallet(ctx, hold.OrganizationID)
	if err != nil {
		return err
	}
	if w == nil {
		return ErrWalletNotFound
	}

	now := time.Now().UTC()
	ok, err := l.store.UpdateHoldState(ctx, hold.ID, HoldActive, HoldVoided, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	w.Held = w.Held.Sub(hold.Amount)
	w.UpdatedAt = now
	if err := l.store.SaveWallet(ctx, w); err != nil {
		return err
	}
	return l.checkInvariants(ctx, hold.OrganizationID)
}

// =============================================================================
// WALLET FUNDING
// =============================================================================

// Deposit adds funds to the organization's available balance. Goes through
// the ledger like everything else - handlers never write wallet fields.
func (l *WalletLedger) Deposit(ctx context.Context, orgID string, amount money.Money) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount must be positive, got %s", amount)
	}

	lock := l.orgLock(orgID)
	lock.Lock()
	defer lock.Unlock()

	w, err := l.store.GetWallet(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWalletNotFound
	}

	// Repay drawn credit first; only the remainder grows the balance.
	repay := amount
	if w.CreditUtilized.LessThan(repay) {
		repay = w.CreditUtilized
	}
	w.CreditUtilized = w.CreditUtilized.Sub(repay)
	w.Available = w.Available.Add(amount.Sub(repay))
	w.UpdatedAt = time.Now().UTC()

	if err := l.store.SaveWallet(ctx, w); err != nil {
		return nil, err
	}
	if err := l.checkInvariants(ctx, orgID); err != nil {
		return nil, err
	}
	return w, nil
}

// =============================================================================
// INVARIANT CHECK
// =============================================================================

// checkInvariants re-derives the held amount from active holds and checks
// the balance and credit bounds. A violation is a bug in this package,
// surfaced as ErrLedgerInvariant so it is never mistaken for a client error.
func (l *WalletLedger) checkInvariants(ctx context.Context, orgID string) error {
	w, err := l.store.GetWallet(ctx, orgID)
	if err != nil {
		return err
	}
	if w == nil {
		return ErrWalletNotFound
	}

	activeTotal, err := l.store.ActiveHoldTotal(ctx, orgID)
	if err != nil {
		return err
	}
	if !w.Held.Equal(activeTotal) {
		return fmt.Errorf("%w: wallet %s held %s != active hold total %s",
			ErrLedgerInvariant, orgID, w.Held, activeTotal)
	}
	if w.Available.IsNegative() {
		return fmt.Errorf("%w: wallet %s available %s is negative",
			ErrLedgerInvariant, orgID, w.Available)
	}
	if w.CreditUtilized.GreaterThan(w.CreditLimit) {
		return fmt.Errorf("%w: wallet %s credit utilized %s exceeds limit %s",
			ErrLedgerInvariant, orgID, w.CreditUtilized, w.CreditLimit)
	}
	return nil
}
