/*
machine.go - The enrollment state machine

PURPOSE:
  Applies a requested action to an enrollment: checks legality against the
  rule table, enforces reason requirements, commits the status change with
  a compare-and-swap, appends the history entry, and drives the wallet
  ledger on money-affecting transitions.

MONEY SIDE EFFECTS:
  into awaiting_review (billable) -> create hold for the computed payout
  into approved                   -> commit the hold (spend)
  into rejected/withdrawn/expired -> void the hold (release)

  The hold is created BEFORE the status swap and voided again if the swap
  loses, so an enrollment can never sit in awaiting_review with funds
  unreserved. Commit and void run after the swap; both are no-ops when no
  active hold exists.

CONCURRENCY:
  ApplyTransition is atomic per enrollment. The compare-and-swap on status
  means two concurrent transitions cannot both succeed; the loser gets
  ErrConflict and must re-read. A retried action against an enrollment
  that already reached a terminal status fails cleanly with
  ErrIllegalTransition - there is no double-approve.

SEE ALSO:
  - transitions.go: Legality and result lookups
  - bulk.go: Batch application with partial-failure semantics
  - ledger/ledger.go: The three wallet operations
*/
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loopreach/settlement-engine/campaign"
	"github.com/loopreach/settlement-engine/ledger"
	"github.com/loopreach/settlement-engine/money"
	"github.com/loopreach/settlement-engine/payout"
)

// Service orchestrates the enrollment lifecycle.
type Service struct {
	Store     Store
	Campaigns campaign.Store
	Wallets   *ledger.WalletLedger
	Logger    *slog.Logger
}

func NewService(store Store, campaigns campaign.Store, wallets *ledger.WalletLedger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Store: store, Campaigns: campaigns, Wallets: wallets, Logger: logger}
}

// =============================================================================
// CREATE - A shopper enrolls in a campaign
// =============================================================================

// Create creates an enrollment in its starting status and writes the
// synthetic creation history entry. The campaign's fee rates are locked
// onto the enrollment here; later campaign edits do not touch it.
//
// start may be StatusEnrolled (default) or StatusAwaitingSubmission for
// campaigns that require deliverables before review.
func (s *Service) Create(ctx context.Context, campaignID, shopperID string, start Status) (*Enrollment, error) {
	if shopperID == "" {
		return nil, &ValidationError{Message: "shopper id is required"}
	}
	if start == "" {
		start = StatusEnrolled
	}
	if start != StatusEnrolled && start != StatusAwaitingSubmission {
		return nil, &ValidationError{
			Message: fmt.Sprintf("enrollments cannot start in status %q", start),
		}
	}

	c, err := s.Campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Kind: "campaign", ID: campaignID}
	}

	now := time.Now().UTC()
	e := &Enrollment{
		ID:                 uuid.NewString(),
		CampaignID:         c.ID,
		ShopperID:          shopperID,
		OrganizationID:     c.OrganizationID,
		Status:             start,
		PlatformFeePercent: c.PlatformFeePercent,
		GSTPercent:         c.GSTPercent,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	created := HistoryEntry{
		ID:           uuid.NewString(),
		EnrollmentID: e.ID,
		FromStatus:   nil, // synthetic creation entry
		ToStatus:     start,
		Actor:        Actor{Type: ActorShopper, ID: shopperID},
		CreatedAt:    now,
	}
	if err := s.Store.CreateEnrollment(ctx, e, created); err != nil {
		return nil, err
	}
	return e, nil
}

// =============================================================================
// ORDER FACTS
// =============================================================================

// AttachOrder records the commercial facts for an enrollment. The order is
// validated against the campaign's payout rule up front so the shopper
// learns about a below-minimum order now, not at review time.
func (s *Service) AttachOrder(ctx context.Context, id string, order Order) (*Enrollment, error) {
	if order.OrderID == "" {
		return nil, &ValidationError{Message: "order id is required"}
	}
	if !order.Value.IsPositive() {
		return nil, &ValidationError{Message: "order value must be positive"}
	}
	if order.Quantity == 0 {
		order.Quantity = 1
	}
	if order.Quantity < 0 {
		return nil, &ValidationError{Message: "quantity must be positive"}
	}

	e, err := s.Store.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &NotFoundError{Kind: "enrollment", ID: id}
	}
	if IsTerminal(e.Status) {
		return nil, &ValidationError{
			Message: fmt.Sprintf("cannot attach an order to an enrollment in terminal status %q", e.Status),
		}
	}

	// Once funds are reserved the order is frozen: a changed value would
	// leave the hold settling a stale amount.
	if hold, err := s.Wallets.ActiveHold(ctx, id); err != nil {
		return nil, err
	} else if hold != nil {
		return nil, &ValidationError{
			Message: "cannot change the order while funds are held for this enrollment",
		}
	}

	c, err := s.Campaigns.GetCampaign(ctx, e.CampaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Kind: "campaign", ID: e.CampaignID}
	}
	if _, err := payout.Calculate(c.Rule, order.Value, order.Quantity, s.lockedRates(e)); err != nil {
		return nil, asValidation(err)
	}

	now := time.Now().UTC()
	if err := s.Store.AttachOrder(ctx, id, order, now); err != nil {
		return nil, err
	}
	e.Order = &order
	e.UpdatedAt = now
	return e, nil
}

// =============================================================================
// APPLY TRANSITION
// =============================================================================

// ApplyTransition applies one action to one enrollment. See the file doc
// for the money side effects and the concurrency contract.
func (s *Service) ApplyTransition(ctx context.Context, id string, action Action, actor Actor, reason string) (*Enrollment, error) {
	if !ValidAction(action) {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown action %q", action)}
	}

	e, err := s.Store.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &NotFoundError{Kind: "enrollment", ID: id}
	}
	if !ValidStatus(e.Status) {
		// Input-contract violation: storage handed us a status outside the
		// closed set. Nothing sensible can recover from this at runtime.
		return nil, fmt.Errorf("enrollment %s has status %q outside the closed status set", id, e.Status)
	}

	if !IsLegal(e.Status, action) {
		return nil, &IllegalTransitionError{EnrollmentID: id, Status: e.Status, Action: action}
	}
	if RequiresReason(action) && strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Message: fmt.Sprintf("a reason is required to %s", action)}
	}

	to, _ := ResultOf(action)

	// Billable-pending: reserve funds before the enrollment becomes
	// reviewable, so review never races an unfunded wallet.
	heldHere, err := s.ensureHold(ctx, e, to)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := e.Status
	entry := HistoryEntry{
		ID:           uuid.NewString(),
		EnrollmentID: id,
		FromStatus:   &from,
		ToStatus:     to,
		Actor:        actor,
		Reason:       reason,
		CreatedAt:    now,
	}

	ok, err := s.Store.UpdateStatus(ctx, id, from, to, now, entry)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race. Release the hold we just created, if any; the
		// winning transition owns the enrollment's money state now.
		if heldHere {
			if vErr := s.Wallets.VoidHold(ctx, e.OrganizationID, id); vErr != nil {
				s.Logger.Error("failed to void hold after lost status swap",
					"enrollment_id", id, "error", vErr)
			}
		}
		return nil, &ConflictError{EnrollmentID: id, Action: action}
	}

	if err := s.settle(ctx, e, to); err != nil {
		return nil, err
	}

	e.Status = to
	e.UpdatedAt = now
	return e, nil
}

// ensureHold creates the wallet hold when the transition makes the
// enrollment billable-pending. Idempotent when an active hold already
// exists. Returns whether this call created the hold.
func (s *Service) ensureHold(ctx context.Context, e *Enrollment, to Status) (bool, error) {
	if to != StatusAwaitingReview || !e.Billable() {
		return false, nil
	}

	amount, err := s.holdAmount(ctx, e)
	if err != nil {
		return false, err
	}
	_, err = s.Wallets.CreateHold(ctx, e.OrganizationID, e.CampaignID, e.ID, amount)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ledger.ErrDuplicateHold):
		// An earlier submission already reserved funds for this enrollment.
		return false, nil
	default:
		return false, err
	}
}

// settle drives the wallet ledger after a committed transition.
func (s *Service) settle(ctx context.Context, e *Enrollment, to Status) error {
	switch to {
	case StatusApproved:
		if err := s.Wallets.CommitHold(ctx, e.OrganizationID, e.ID); err != nil {
			return fmt.Errorf("enrollment %s approved but hold commit failed: %w", e.ID, err)
		}
	case StatusRejected, StatusWithdrawn, StatusExpired:
		if err := s.Wallets.VoidHold(ctx, e.OrganizationID, e.ID); err != nil {
			return fmt.Errorf("enrollment %s closed but hold void failed: %w", e.ID, err)
		}
	}
	return nil
}

// holdAmount computes the hold from the campaign rule and the enrollment's
// locked rates.
func (s *Service) holdAmount(ctx context.Context, e *Enrollment) (money.Money, error) {
	c, err := s.Campaigns.GetCampaign(ctx, e.CampaignID)
	if err != nil {
		return money.Zero(), err
	}
	if c == nil {
		return money.Zero(), &NotFoundError{Kind: "campaign", ID: e.CampaignID}
	}
	breakdown, err := payout.Calculate(c.Rule, e.Order.Value, e.Order.Quantity, s.lockedRates(e))
	if err != nil {
		return money.Zero(), asValidation(err)
	}
	return breakdown.HoldAmount(), nil
}

func (s *Service) lockedRates(e *Enrollment) payout.Rates {
	return payout.Rates{PlatformFee: e.PlatformFeePercent, GST: e.GSTPercent}
}

// =============================================================================
// HISTORY
// =============================================================================

// GetHistory returns the enrollment's current status, the actions legal
// from it, and the full ordered transition history.
func (s *Service) GetHistory(ctx context.Context, id string) (*History, error) {
	e, err := s.Store.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &NotFoundError{Kind: "enrollment", ID: id}
	}

	entries, err := s.Store.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return &History{
		EnrollmentID:   id,
		CurrentStatus:  e.Status,
		AllowedActions: AllowedActions(e.Status),
		Entries:        entries,
	}, nil
}

// =============================================================================
// PAYOUT PREVIEW
// =============================================================================

// PreviewPayout computes a breakdown on demand using the campaign's current
// default rates. Existing enrollments keep their locked rates; this is a
// quote, not a settlement figure.
func (s *Service) PreviewPayout(ctx context.Context, campaignID string, orderValue money.Money, quantity int64) (*payout.Breakdown, error) {
	c, err := s.Campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Kind: "campaign", ID: campaignID}
	}
	breakdown, err := payout.Calculate(c.Rule, orderValue, quantity, payout.Rates{
		PlatformFee: c.PlatformFeePercent,
		GST:         c.GSTPercent,
	})
	if err != nil {
		return nil, asValidation(err)
	}
	return breakdown, nil
}

// asValidation rewraps payout validation errors into this package's
// taxonomy so callers branch on one set of sentinels.
func asValidation(err error) error {
	var pErr *payout.ValidationError
	if errors.As(err, &pErr) {
		return &ValidationError{Message: pErr.Message}
	}
	return err
}
