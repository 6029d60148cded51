package enrollment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopreach/settlement-engine/campaign"
	"github.com/loopreach/settlement-engine/enrollment"
	"github.com/loopreach/settlement-engine/ledger"
	"github.com/loopreach/settlement-engine/money"
	"github.com/loopreach/settlement-engine/payout"
	"github.com/loopreach/settlement-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*enrollment.Service, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	wallets := ledger.NewWalletLedger(store)
	svc := enrollment.NewService(store, store, wallets, nil)
	return svc, store
}

// seedCampaign saves a tiered campaign (2% fee, 18% GST) and a wallet with
// the given balance for org-1.
func seedCampaign(t *testing.T, store *sqlite.Store, available int64) {
	t.Helper()
	ctx := context.Background()

	err := store.SaveCampaign(ctx, &campaign.Campaign{
		ID:             "cmp-1",
		OrganizationID: "org-1",
		Name:           "Test Campaign",
		Rule: payout.Rule{
			BaseAmount:    money.New(400),
			MinOrderValue: money.New(500),
			Tiers: []payout.Tier{
				{MinOrderValue: money.New(5000), Payout: money.New(600)},
				{MinOrderValue: money.New(10000), Payout: money.New(900)},
			},
		},
		PlatformFeePercent: money.NewPercent(2),
		GSTPercent:         money.NewPercent(18),
		CreatedAt:          time.Now().UTC(),
	})
	require.NoError(t, err)

	err = store.SaveWallet(ctx, &ledger.Wallet{
		OrganizationID: "org-1",
		Available:      money.New(available),
		Held:           money.Zero(),
		CreditLimit:    money.Zero(),
		CreditUtilized: money.Zero(),
		UpdatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
}

func brand() enrollment.Actor {
	return enrollment.Actor{Type: enrollment.ActorOrganization, ID: "user-brand"}
}

func shopper() enrollment.Actor {
	return enrollment.Actor{Type: enrollment.ActorShopper, ID: "shopper-1"}
}

// submitWithOrder walks an enrollment from awaiting_submission into
// awaiting_review with the given order value, creating the wallet hold.
func submitWithOrder(t *testing.T, svc *enrollment.Service, orderValue int64) *enrollment.Enrollment {
	t.Helper()
	ctx := context.Background()

	e, err := svc.Create(ctx, "cmp-1", "shopper-1", enrollment.StatusAwaitingSubmission)
	require.NoError(t, err)

	_, err = svc.AttachOrder(ctx, e.ID, enrollment.Order{
		OrderID:  "ord-1",
		Value:    money.New(orderValue),
		Quantity: 1,
		PlacedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	e, err = svc.ApplyTransition(ctx, e.ID, enrollment.ActionSubmitDeliverables, shopper(), "")
	require.NoError(t, err)
	require.Equal(t, enrollment.StatusAwaitingReview, e.Status)
	return e
}

// =============================================================================
// CREATION TESTS
// =============================================================================

func TestCreate_LocksCampaignRates(t *testing.T) {
	// GIVEN: A campaign with 2% fee and 18% GST
	// WHEN: Creating an enrollment
	// THEN: The rates are copied onto the enrollment

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e, err := svc.Create(ctx, "cmp-1", "shopper-1", "")
	require.NoError(t, err)

	assert.Equal(t, enrollment.StatusEnrolled, e.Status)
	assert.Equal(t, "org-1", e.OrganizationID)
	assert.Equal(t, "2", e.PlatformFeePercent.String())
	assert.Equal(t, "18", e.GSTPercent.String())
}

func TestCreate_WritesCreationHistoryEntry(t *testing.T) {
	// THEN: The first history entry has a nil from-status

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e, err := svc.Create(ctx, "cmp-1", "shopper-1", enrollment.StatusAwaitingSubmission)
	require.NoError(t, err)

	history, err := svc.GetHistory(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, history.Entries, 1)
	assert.Nil(t, history.Entries[0].FromStatus)
	assert.Equal(t, enrollment.StatusAwaitingSubmission, history.Entries[0].ToStatus)
}

func TestCreate_RejectsInvalidStartStatus(t *testing.T) {
	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)

	_, err := svc.Create(context.Background(), "cmp-1", "shopper-1", enrollment.StatusApproved)
	assert.ErrorIs(t, err, enrollment.ErrValidation)
}

func TestCreate_UnknownCampaign(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "cmp-ghost", "shopper-1", "")
	assert.ErrorIs(t, err, enrollment.ErrCampaignNotFound)
}

// =============================================================================
// ORDER ATTACHMENT TESTS
// =============================================================================

func TestAttachOrder_BelowCampaignMinimum_RejectedUpFront(t *testing.T) {
	// GIVEN: A campaign with a 500 minimum order value
	// WHEN: Attaching a 300 order
	// THEN: Validation fails now, not at review time

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e, err := svc.Create(ctx, "cmp-1", "shopper-1", "")
	require.NoError(t, err)

	_, err = svc.AttachOrder(ctx, e.ID, enrollment.Order{
		OrderID: "ord-1",
		Value:   money.New(300),
	})
	assert.ErrorIs(t, err, enrollment.ErrValidation)
}

func TestAttachOrder_TerminalEnrollment_Rejected(t *testing.T) {
	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e, err := svc.Create(ctx, "cmp-1", "shopper-1", "")
	require.NoError(t, err)
	_, err = svc.ApplyTransition(ctx, e.ID, enrollment.ActionWithdraw, shopper(), "")
	require.NoError(t, err)

	_, err = svc.AttachOrder(ctx, e.ID, enrollment.Order{
		OrderID: "ord-1",
		Value:   money.New(5000),
	})
	assert.ErrorIs(t, err, enrollment.ErrValidation)
}

// =============================================================================
// TRANSITION LEGALITY TESTS
// =============================================================================

func TestApplyTransition_TerminalStatusesAreFinal(t *testing.T) {
	// GIVEN: A withdrawn enrollment
	// WHEN: Applying any action
	// THEN: Every one fails with ErrIllegalTransition - no resurrection

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e, err := svc.Create(ctx, "cmp-1", "shopper-1", "")
	require.NoError(t, err)
	_, err = svc.ApplyTransition(ctx, e.ID, enrollment.ActionWithdraw, shopper(), "")
	require.NoError(t, err)

	actions := []enrollment.Action{
		enrollment.ActionApprove,
		enrollment.ActionReject,
		enrollment.ActionRequestChanges,
		enrollment.ActionWithdraw,
		enrollment.ActionExpire,
		enrollment.ActionSubmitDeliverables,
		enrollment.ActionResubmit,
	}
	for _, action := range actions {
		_, err := svc.ApplyTransition(ctx, e.ID, action, brand(), "reason")
		assert.ErrorIs(t, err, enrollment.ErrIllegalTransition, "action %s", action)
	}

	got, err := store.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusWithdrawn, got.Status)
}

func TestApplyTransition_RejectWithoutReason_Rejected(t *testing.T) {
	// GIVEN: An enrollment awaiting review
	// WHEN: Rejecting without a reason
	// THEN: ValidationError, status unchanged, hold still active

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e := submitWithOrder(t, svc, 5000)

	_, err := svc.ApplyTransition(ctx, e.ID, enrollment.ActionReject, brand(), "   ")
	assert.ErrorIs(t, err, enrollment.ErrValidation)

	got, err := store.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusAwaitingReview, got.Status)

	hold, err := store.ActiveHoldForEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.NotNil(t, hold, "hold should remain active after failed reject")
}

func TestApplyTransition_RequestChangesRequiresReason(t *testing.T) {
	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e := submitWithOrder(t, svc, 5000)

	_, err := svc.ApplyTransition(ctx, e.ID, enrollment.ActionRequestChanges, brand(), "")
	assert.ErrorIs(t, err, enrollment.ErrValidation)

	got, err := svc.ApplyTransition(ctx, e.ID, enrollment.ActionRequestChanges, brand(), "fix the caption")
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusChangesRequested, got.Status)
}

func TestApplyTransition_UnknownAction(t *testing.T) {
	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e, err := svc.Create(ctx, "cmp-1", "shopper-1", "")
	require.NoError(t, err)

	_, err = svc.ApplyTransition(ctx, e.ID, enrollment.Action("promote"), brand(), "")
	assert.ErrorIs(t, err, enrollment.ErrValidation)
}

// =============================================================================
// MONEY SIDE EFFECT TESTS
// =============================================================================

func TestSubmit_CreatesHoldForNetPayout(t *testing.T) {
	// GIVEN: A 10000 order on the tiered campaign (tier payout 900)
	// WHEN: Submitting deliverables
	// THEN: The hold equals the net payout:
	//   fee = round(900 * 0.02) = 18; gst = round(18 * 0.18) = 3; net = 879

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e := submitWithOrder(t, svc, 10000)

	hold, err := store.ActiveHoldForEnrollment(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, hold)
	assert.Equal(t, int64(879), hold.Amount.Int64())

	w, err := store.GetWallet(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(879), w.Held.Int64())
}

func TestApprove_CommitsHold(t *testing.T) {
	// GIVEN: An enrollment awaiting review with an active hold
	// WHEN: Approving
	// THEN: The hold commits and the wallet balance drops by the net payout

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e := submitWithOrder(t, svc, 10000)

	got, err := svc.ApplyTransition(ctx, e.ID, enrollment.ActionApprove, brand(), "")
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusApproved, got.Status)

	w, err := store.GetWallet(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100000-879), w.Available.Int64())
	assert.Equal(t, int64(0), w.Held.Int64())

	hold, err := store.ActiveHoldForEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, hold, "no active hold should remain after approval")
}

func TestReject_VoidsHold(t *testing.T) {
	// WHEN: Rejecting a billable-pending enrollment
	// THEN: The hold is voided; funds were reserved, never spent

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e := submitWithOrder(t, svc, 10000)

	got, err := svc.ApplyTransition(ctx, e.ID, enrollment.ActionReject, brand(), "content mismatch")
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusRejected, got.Status)

	w, err := store.GetWallet(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), w.Available.Int64())
	assert.Equal(t, int64(0), w.Held.Int64())
}

func TestSubmit_InsufficientCredit_BlocksTransition(t *testing.T) {
	// GIVEN: A wallet that cannot cover the payout hold
	// WHEN: Submitting deliverables
	// THEN: The transition fails and the enrollment stays put

	svc, store := newTestService(t)
	seedCampaign(t, store, 100) // net payout for a 10000 order is 879
	ctx := context.Background()

	e, err := svc.Create(ctx, "cmp-1", "shopper-1", enrollment.StatusAwaitingSubmission)
	require.NoError(t, err)
	_, err = svc.AttachOrder(ctx, e.ID, enrollment.Order{
		OrderID:  "ord-1",
		Value:    money.New(10000),
		Quantity: 1,
		PlacedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = svc.ApplyTransition(ctx, e.ID, enrollment.ActionSubmitDeliverables, shopper(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientCredit)

	got, err := store.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusAwaitingSubmission, got.Status)
}

func TestResubmit_ReusesExistingHold(t *testing.T) {
	// GIVEN: A billable enrollment sent back for changes (hold stays active)
	// WHEN: Resubmitting
	// THEN: No second hold is created; held amount is unchanged

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e := submitWithOrder(t, svc, 10000)

	_, err := svc.ApplyTransition(ctx, e.ID, enrollment.ActionRequestChanges, brand(), "new angle please")
	require.NoError(t, err)

	got, err := svc.ApplyTransition(ctx, e.ID, enrollment.ActionResubmit, shopper(), "")
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusAwaitingReview, got.Status)

	w, err := store.GetWallet(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(879), w.Held.Int64())
}

func TestApprove_NonBillableEnrollment_NoWalletEffect(t *testing.T) {
	// GIVEN: An enrolled enrollment with no order facts
	// WHEN: Approving directly
	// THEN: Approval succeeds and the wallet is untouched

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e, err := svc.Create(ctx, "cmp-1", "shopper-1", "")
	require.NoError(t, err)

	got, err := svc.ApplyTransition(ctx, e.ID, enrollment.ActionApprove, brand(), "")
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusApproved, got.Status)

	w, err := store.GetWallet(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), w.Available.Int64())
	assert.Equal(t, int64(0), w.Held.Int64())
}

func TestAttachOrder_ReplaceableUntilFundsHeld(t *testing.T) {
	// GIVEN: An enrollment awaiting submission, no hold yet
	// WHEN: Attaching an order twice
	// THEN: The second attachment replaces the first

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e, err := svc.Create(ctx, "cmp-1", "shopper-1", enrollment.StatusAwaitingSubmission)
	require.NoError(t, err)

	_, err = svc.AttachOrder(ctx, e.ID, enrollment.Order{
		OrderID: "ord-1", Value: money.New(5000), PlacedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	got, err := svc.AttachOrder(ctx, e.ID, enrollment.Order{
		OrderID: "ord-2", Value: money.New(10000), PlacedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-2", got.Order.OrderID)
	assert.Equal(t, int64(10000), got.Order.Value.Int64())
}

func TestAttachOrder_FrozenWhileHoldActive(t *testing.T) {
	// GIVEN: A billable enrollment sent back for changes; its hold stays active
	// WHEN: Re-attaching the order with a different value
	// THEN: Rejected - the hold would otherwise settle a stale amount

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e := submitWithOrder(t, svc, 10000)
	_, err := svc.ApplyTransition(ctx, e.ID, enrollment.ActionRequestChanges, brand(), "swap the product link")
	require.NoError(t, err)

	_, err = svc.AttachOrder(ctx, e.ID, enrollment.Order{
		OrderID: "ord-2", Value: money.New(5000), PlacedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, enrollment.ErrValidation)

	got, err := store.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.Order.Value.Int64())

	hold, err := store.ActiveHoldForEnrollment(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, hold)
	assert.Equal(t, int64(879), hold.Amount.Int64())
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

// raceStore delegates to the real store but runs an interfering write once,
// just before the first status swap, so the swap is guaranteed to lose.
type raceStore struct {
	enrollment.Store
	interfere func()
}

func (s *raceStore) UpdateStatus(ctx context.Context, id string, from, to enrollment.Status, updatedAt time.Time, entry enrollment.HistoryEntry) (bool, error) {
	if s.interfere != nil {
		f := s.interfere
		s.interfere = nil
		f()
	}
	return s.Store.UpdateStatus(ctx, id, from, to, updatedAt, entry)
}

func TestApplyTransition_LostSwap_ConflictAndHoldVoided(t *testing.T) {
	// GIVEN: A shopper submitting deliverables while a concurrent withdraw
	//        commits first
	// WHEN: The status swap loses
	// THEN: ConflictError, and the hold created for the submission is
	//       released - the winner owns the enrollment's money state

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	racing := &raceStore{Store: store}
	wallets := ledger.NewWalletLedger(store)
	svc := enrollment.NewService(racing, store, wallets, nil)

	e, err := svc.Create(ctx, "cmp-1", "shopper-1", enrollment.StatusAwaitingSubmission)
	require.NoError(t, err)
	_, err = svc.AttachOrder(ctx, e.ID, enrollment.Order{
		OrderID: "ord-1", Value: money.New(10000), Quantity: 1, PlacedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	racing.interfere = func() {
		from := enrollment.StatusAwaitingSubmission
		now := time.Now().UTC()
		ok, err := store.UpdateStatus(ctx, e.ID, from, enrollment.StatusWithdrawn, now,
			enrollment.HistoryEntry{
				ID: "hist-winner", EnrollmentID: e.ID,
				FromStatus: &from, ToStatus: enrollment.StatusWithdrawn,
				Actor:     enrollment.Actor{Type: enrollment.ActorShopper, ID: "shopper-1"},
				CreatedAt: now,
			})
		require.NoError(t, err)
		require.True(t, ok)
	}

	_, err = svc.ApplyTransition(ctx, e.ID, enrollment.ActionSubmitDeliverables, shopper(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, enrollment.ErrConflict)
	assert.True(t, enrollment.IsRetryable(err))

	// The losing submission's hold must not survive.
	hold, err := store.ActiveHoldForEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, hold)

	w, err := store.GetWallet(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Held.Int64())
	assert.Equal(t, int64(100000), w.Available.Int64())

	got, err := store.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusWithdrawn, got.Status)
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestHistory_ReplaysToCurrentStatus(t *testing.T) {
	// GIVEN: A multi-step lifecycle
	// THEN: The ordered entries chain from creation to the current status

	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e := submitWithOrder(t, svc, 10000)
	_, err := svc.ApplyTransition(ctx, e.ID, enrollment.ActionRequestChanges, brand(), "tighten the edit")
	require.NoError(t, err)
	_, err = svc.ApplyTransition(ctx, e.ID, enrollment.ActionResubmit, shopper(), "")
	require.NoError(t, err)
	_, err = svc.ApplyTransition(ctx, e.ID, enrollment.ActionApprove, brand(), "great work")
	require.NoError(t, err)

	history, err := svc.GetHistory(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, history.Entries, 5)

	// Creation entry, then each committed transition in order.
	assert.Nil(t, history.Entries[0].FromStatus)
	for i := 1; i < len(history.Entries); i++ {
		require.NotNil(t, history.Entries[i].FromStatus)
		assert.Equal(t, history.Entries[i-1].ToStatus, *history.Entries[i].FromStatus,
			"entry %d must chain from the previous entry", i)
	}
	assert.Equal(t, history.CurrentStatus, history.Entries[len(history.Entries)-1].ToStatus)
	assert.Equal(t, enrollment.StatusApproved, history.CurrentStatus)
	assert.Empty(t, history.AllowedActions)
}

func TestHistory_RecordsActorAndReason(t *testing.T) {
	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)
	ctx := context.Background()

	e := submitWithOrder(t, svc, 5000)
	_, err := svc.ApplyTransition(ctx, e.ID, enrollment.ActionReject, brand(), "wrong product shown")
	require.NoError(t, err)

	history, err := svc.GetHistory(ctx, e.ID)
	require.NoError(t, err)

	last := history.Entries[len(history.Entries)-1]
	assert.Equal(t, enrollment.ActorOrganization, last.Actor.Type)
	assert.Equal(t, "user-brand", last.Actor.ID)
	assert.Equal(t, "wrong product shown", last.Reason)
}

func TestHistory_UnknownEnrollment(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetHistory(context.Background(), "enr-ghost")
	assert.ErrorIs(t, err, enrollment.ErrNotFound)
}

// =============================================================================
// PAYOUT PREVIEW TESTS
// =============================================================================

func TestPreviewPayout_UsesCampaignRates(t *testing.T) {
	svc, store := newTestService(t)
	seedCampaign(t, store, 100000)

	b, err := svc.PreviewPayout(context.Background(), "cmp-1", money.New(10000), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(900), b.TotalPayout.Int64())
	assert.Equal(t, int64(879), b.NetPayout.Int64())
}

func TestPreviewPayout_UnknownCampaign(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PreviewPayout(context.Background(), "cmp-ghost", money.New(10000), 1)
	assert.ErrorIs(t, err, enrollment.ErrCampaignNotFound)
}
