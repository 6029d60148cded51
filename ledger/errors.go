/*
errors.go - Centralized error types for the wallet ledger

SEE ALSO:
  - enrollment/errors.go: Same layout for the lifecycle side
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/loopreach/settlement-engine/money"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientCredit is returned when a wallet cannot support a new
	// hold. Terminal until the organization's balance or credit changes.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrWalletNotFound is returned when no wallet exists for the organization.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrDuplicateHold is returned when an enrollment already has an active
	// hold. The one-active-hold-per-enrollment invariant.
	ErrDuplicateHold = errors.New("enrollment already has an active hold")

	// ErrLedgerInvariant indicates the post-operation invariant check failed.
	// This is a bug, never a client error.
	ErrLedgerInvariant = errors.New("ledger invariant violated")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientCreditError reports why a hold was refused.
type InsufficientCreditError struct {
	OrganizationID string
	Requested      money.Money
	Available      money.Money
	Held           money.Money
	CreditHeadroom money.Money
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf(
		"wallet %s cannot hold %s: available %s, held %s, credit headroom %s",
		e.OrganizationID, e.Requested, e.Available, e.Held, e.CreditHeadroom)
}

func (e *InsufficientCreditError) Unwrap() error { return ErrInsufficientCredit }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true for errors the caller can act on.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientCredit) || errors.Is(err, ErrDuplicateHold)
}

// IsNotFound returns true if the error indicates a missing wallet.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound)
}
