/*
bulk.go - Bulk operation coordinator

PURPOSE:
  Applies one action to many enrollments, collecting per-item outcomes
  without aborting the batch. One enrollment's illegal transition, missing
  record, or lost race never blocks the others. Partial success is a
  first-class result, not an error.

PRODUCT RULES:
  - Bulk reject requires one reason, applied identically to every item.
  - Bulk approve accepts an optional remarks string, recorded on each
    history entry.

EXECUTION:
  Items run sequentially. They share no mutable state with each other; the
  only contended resource is the per-organization wallet, and the ledger
  already serializes that. Sequential execution keeps the per-item error
  collection straightforward.

SEE ALSO:
  - machine.go: ApplyTransition, invoked per item
*/
package enrollment

import (
	"context"
	"strings"
)

// BulkFailure records one item that could not be transitioned.
type BulkFailure struct {
	EnrollmentID string
	Err          error
}

// BulkResult is the partial-success outcome of a batch. The caller decides
// whether partial success is acceptable.
type BulkResult struct {
	Succeeded []string
	Failed    []BulkFailure
}

// BulkApply applies the action to each enrollment independently. A batch
// with no ids, or a bulk reject without a reason, fails the whole batch
// with ValidationError before touching any enrollment.
func (s *Service) BulkApply(ctx context.Context, ids []string, action Action, actor Actor, reason string) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Message: "at least one enrollment id is required"}
	}
	if !ValidAction(action) {
		return nil, &ValidationError{Message: "unknown action " + string(action)}
	}
	if RequiresReason(action) && strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Message: "a reason is required for bulk " + string(action)}
	}

	result := &BulkResult{}
	for _, id := range ids {
		if _, err := s.ApplyTransition(ctx, id, action, actor, reason); err != nil {
			result.Failed = append(result.Failed, BulkFailure{EnrollmentID: id, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result, nil
}
