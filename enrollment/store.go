/*
store.go - Persistence interface for enrollments and transition history

PURPOSE:
  Defines the interface between the state machine and the database. The
  contract the machine depends on is small: read an enrollment, append-only
  history, and a compare-and-swap status update that is atomic per
  enrollment.

COMPARE-AND-SWAP:
  UpdateStatus writes the new status only if the stored status still equals
  the expected one, and appends the history entry in the same storage
  transaction. A false return means another transition committed first -
  the machine surfaces that as ErrConflict. This is what makes two
  concurrent transitions against the same enrollment impossible to both
  succeed.

IMPLEMENTATIONS:
  - store/sqlite: production store backed by SQLite

SEE ALSO:
  - machine.go: The only caller of UpdateStatus
  - store/sqlite/sqlite.go: Concrete implementation
*/
package enrollment

import (
	"context"
	"time"
)

// Store handles persistence of enrollments and their transition history.
// History is APPEND-ONLY: entries are never updated or deleted.
type Store interface {
	// GetEnrollment returns the enrollment, or nil if it doesn't exist.
	GetEnrollment(ctx context.Context, id string) (*Enrollment, error)

	// CreateEnrollment persists a new enrollment together with its
	// synthetic creation history entry, atomically.
	CreateEnrollment(ctx context.Context, e *Enrollment, created HistoryEntry) error

	// AttachOrder records order facts on an enrollment.
	AttachOrder(ctx context.Context, id string, order Order, updatedAt time.Time) error

	// UpdateStatus performs a compare-and-swap: the status is written only
	// if the stored value still equals from. The history entry is appended
	// in the same storage transaction. Returns false when the swap lost.
	UpdateStatus(ctx context.Context, id string, from, to Status, updatedAt time.Time, entry HistoryEntry) (bool, error)

	// History returns all transition entries for an enrollment, ordered by
	// creation time.
	History(ctx context.Context, id string) ([]HistoryEntry, error)
}
