/*
errors.go - Centralized error types for the enrollment core

PURPOSE:
  All enrollment error types in one place. Every public operation returns
  either a success value or one of these tagged errors, so callers can
  branch deterministically.

ERROR CATEGORIES:
  1. Validation - malformed input (missing reason, unknown action)
  2. Not found - the referenced enrollment or campaign does not exist
  3. Illegal transition - action not legal for the current status
  4. Conflict - concurrent modification lost a compare-and-swap

USAGE:
  if errors.Is(err, enrollment.ErrIllegalTransition) { ... }

  var vErr *enrollment.ValidationError
  if errors.As(err, &vErr) { render(vErr.Message) }

SEE ALSO:
  - ledger/errors.go: InsufficientCredit lives with the wallet ledger
  - api/handlers.go: Maps these classes to HTTP statuses
*/
package enrollment

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced enrollment doesn't exist.
	ErrNotFound = errors.New("enrollment not found")

	// ErrCampaignNotFound is returned when the enrollment's campaign is missing.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrIllegalTransition is returned when an action is not in the allowed
	// set for the current status. This is the invariant that keeps terminal
	// enrollments terminal.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrConflict is returned when a concurrent transition won the race.
	// Safe to retry after re-reading current state.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// IllegalTransitionError reports an action that is not legal for the
// enrollment's current status.
type IllegalTransitionError struct {
	EnrollmentID string
	Status       Status
	Action       Action
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("action %q is not allowed for enrollment %s in status %q",
		e.Action, e.EnrollmentID, e.Status)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// ConflictError reports a lost compare-and-swap on enrollment status.
type ConflictError struct {
	EnrollmentID string
	Action       Action
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("enrollment %s was modified concurrently while applying %q",
		e.EnrollmentID, e.Action)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError reports a missing enrollment or campaign.
type NotFoundError struct {
	Kind string // "enrollment" or "campaign"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "campaign" {
		return ErrCampaignNotFound
	}
	return ErrNotFound
}

// ValidationError carries a message suitable for rendering directly.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry after
// re-reading current state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCampaignNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// rather than a server failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrConflict)
}
