/*
Package enrollment implements the enrollment lifecycle core.

PURPOSE:
  An enrollment is a shopper's participation instance in a campaign. This
  package owns everything about how an enrollment changes: the closed status
  set, the transition rule table, the state machine that applies actions, the
  append-only transition history, and the bulk coordinator.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status:       Closed set of lifecycle states, four of them terminal
  - Action:       A requested transition (approve, reject, withdraw, ...)
  - Actor:        Who triggered a transition (system, shopper, org user)
  - Enrollment:   The entity, with locked economics captured at creation
  - HistoryEntry: Immutable record of one committed transition

LOCKED ECONOMICS:
  Platform fee and GST rates are captured onto the enrollment when it is
  created. Later campaign edits never retroactively change the payout math
  for enrollments that already exist.

DESIGN PRINCIPLES:
  1. Status is only ever mutated through Service.ApplyTransition
  2. Terminal statuses are permanent - enrollments are never deleted
  3. History is append-only and replays to the current status

SEE ALSO:
  - transitions.go: The authoritative rule table
  - machine.go: ApplyTransition and money side effects
  - bulk.go: Partial-success batch application
*/
package enrollment

import (
	"time"

	"github.com/loopreach/settlement-engine/money"
)

// =============================================================================
// STATUS - Closed lifecycle set
// =============================================================================

type Status string

const (
	StatusEnrolled           Status = "enrolled"
	StatusAwaitingSubmission Status = "awaiting_submission"
	StatusAwaitingReview     Status = "awaiting_review"
	StatusChangesRequested   Status = "changes_requested"
	StatusApproved           Status = "approved"
	StatusRejected           Status = "rejected"
	StatusWithdrawn          Status = "withdrawn"
	StatusExpired            Status = "expired"
)

// =============================================================================
// ACTION - Requested transitions
// =============================================================================

type Action string

const (
	ActionApprove            Action = "approve"
	ActionReject             Action = "reject"
	ActionRequestChanges     Action = "request_changes"
	ActionWithdraw           Action = "withdraw"
	ActionExpire             Action = "expire"
	ActionSubmitDeliverables Action = "submit_deliverables"
	ActionResubmit           Action = "resubmit"
)

// =============================================================================
// ACTOR - Who triggered a transition
// =============================================================================

type ActorType string

const (
	ActorSystem       ActorType = "system"
	ActorShopper      ActorType = "shopper"
	ActorOrganization ActorType = "organization"
)

type Actor struct {
	Type ActorType
	ID   string // empty for system
}

func SystemActor() Actor { return Actor{Type: ActorSystem} }

// =============================================================================
// ENROLLMENT - The entity
// =============================================================================

// Order holds the commercial facts attached to an enrollment once the
// shopper has purchased.
type Order struct {
	OrderID    string
	Value      money.Money
	Quantity   int64
	PlacedAt   time.Time
}

type Enrollment struct {
	ID             string
	CampaignID     string
	ShopperID      string
	OrganizationID string // derived from the campaign at creation

	Status Status

	// Order facts; nil until an order is attached.
	Order *Order

	// Rates locked at enrollment time. Campaign edits after this point do
	// not change this enrollment's economics.
	PlatformFeePercent money.Percent
	GSTPercent         money.Percent

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Billable reports whether the enrollment carries order facts that can back
// a wallet hold.
func (e *Enrollment) Billable() bool {
	return e.Order != nil && e.Order.Value.IsPositive()
}

// =============================================================================
// HISTORY ENTRY - Immutable transition record
// =============================================================================

// HistoryEntry records one committed transition. FromStatus is nil for the
// synthetic creation entry. Entries are append-only; the ordered sequence is
// always a valid walk through the rule table.
type HistoryEntry struct {
	ID           string
	EnrollmentID string
	FromStatus   *Status
	ToStatus     Status
	Actor        Actor
	Reason       string
	CreatedAt    time.Time
}

// History is what callers get back from GetTransitionHistory: the current
// status, what can legally happen next, and the full audit trail.
type History struct {
	EnrollmentID   string
	CurrentStatus  Status
	AllowedActions []Action
	Entries        []HistoryEntry
}
