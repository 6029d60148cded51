/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface the settlement core depends on
  (enrollment.Store, ledger.Store, campaign.Store) using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  campaigns:          Campaign records with payout rule JSON (read-only to the core)
  enrollments:        Enrollment state, order facts, locked rates
  transition_history: Append-only transition audit log
  wallets:            Per-organization balances
  holds:              Wallet reservations with active/committed/voided state

INVARIANT ENFORCEMENT AT THE SCHEMA LEVEL:
  - idx_active_hold_per_enrollment: at most one active hold per enrollment
  - transition_history has no UPDATE or DELETE path, ever
  - status swaps use UPDATE ... WHERE status = ? so lost races show up as
    zero rows affected, not silent overwrites

CONCURRENCY:
  Uses sync.RWMutex for thread-safety around the connection. SQLite is
  opened with WAL for better read concurrency. Per-organization wallet
  serialization is the ledger's job, not this package's.

USAGE:
  store, err := sqlite.New("./data/settlement.db")   // ":memory:" for tests
  defer store.Close()

SEE ALSO:
  - enrollment/store.go, ledger/store.go: Interface contracts
  - seed.go: Deterministic demo data
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/loopreach/settlement-engine/campaign"
	"github.com/loopreach/settlement-engine/enrollment"
	"github.com/loopreach/settlement-engine/ledger"
	"github.com/loopreach/settlement-engine/money"
	"github.com/loopreach/settlement-engine/payout"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS campaigns (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL,
		rule_json TEXT NOT NULL,
		platform_fee_percent TEXT NOT NULL,
		gst_percent TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_campaigns_org ON campaigns(organization_id);

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL,
		shopper_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		status TEXT NOT NULL,
		order_id TEXT,
		order_value INTEGER,
		order_quantity INTEGER,
		order_placed_at TEXT,
		platform_fee_percent TEXT NOT NULL,
		gst_percent TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_enrollments_campaign ON enrollments(campaign_id);
	CREATE INDEX IF NOT EXISTS idx_enrollments_org_status ON enrollments(organization_id, status);

	-- Append-only transition audit log. No UPDATE, no DELETE. Ever.
	CREATE TABLE IF NOT EXISTS transition_history (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL,
		from_status TEXT,
		to_status TEXT NOT NULL,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_enrollment
		ON transition_history(enrollment_id, created_at);

	CREATE TABLE IF NOT EXISTS wallets (
		organization_id TEXT PRIMARY KEY,
		available INTEGER NOT NULL,
		held INTEGER NOT NULL,
		credit_limit INTEGER NOT NULL,
		credit_utilized INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holds (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		enrollment_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		state TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one active hold per enrollment.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_active_hold_per_enrollment
		ON holds(enrollment_id) WHERE state = 'active';

	CREATE INDEX IF NOT EXISTS idx_holds_org_state ON holds(organization_id, state);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Fixed-width fractional seconds: RFC3339Nano trims trailing zeros, which
// breaks lexicographic ORDER BY on the TEXT column within a second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// CAMPAIGN STORE
// =============================================================================

// SaveCampaign inserts or replaces a campaign record. The settlement core
// never calls this; it exists for seeding and for the out-of-scope
// campaign CRUD collaborator.
func (s *Store) SaveCampaign(ctx context.Context, c *campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO campaigns
			(id, organization_id, name, rule_json, platform_fee_percent, gst_percent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrganizationID, c.Name, ruleJSON(c.Rule),
		c.PlatformFeePercent.String(), c.GSTPercent.String(),
		c.CreatedAt.UTC().Format(timeLayout))
	return err
}

// GetCampaign returns the campaign, or nil if it doesn't exist.
func (s *Store) GetCampaign(ctx context.Context, id string) (*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, rule_json, platform_fee_percent, gst_percent, created_at
		FROM campaigns WHERE id = ?`, id)

	var c campaign.Campaign
	var rule, feePct, gstPct, createdAt string
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &rule, &feePct, &gstPct, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if c.Rule, err = payout.ParseRule(rule); err != nil {
		return nil, fmt.Errorf("campaign %s has invalid rule config: %w", id, err)
	}
	if c.PlatformFeePercent, err = parsePercent(feePct); err != nil {
		return nil, fmt.Errorf("campaign %s: %w", id, err)
	}
	if c.GSTPercent, err = parsePercent(gstPct); err != nil {
		return nil, fmt.Errorf("campaign %s: %w", id, err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// =============================================================================
// ENROLLMENT STORE
// =============================================================================

func (s *Store) GetEnrollment(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, shopper_id, organization_id, status,
		       order_id, order_value, order_quantity, order_placed_at,
		       platform_fee_percent, gst_percent, created_at, updated_at
		FROM enrollments WHERE id = ?`, id)
	return scanEnrollment(row)
}

func (s *Store) CreateEnrollment(ctx context.Context, e *enrollment.Enrollment, created enrollment.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO enrollments
			(id, campaign_id, shopper_id, organization_id, status,
			 platform_fee_percent, gst_percent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CampaignID, e.ShopperID, e.OrganizationID, string(e.Status),
		e.PlatformFeePercent.String(), e.GSTPercent.String(),
		e.CreatedAt.UTC().Format(timeLayout), e.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return err
	}

	if err := insertHistory(ctx, tx, created); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) AttachOrder(ctx context.Context, id string, order enrollment.Order, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollments
		SET order_id = ?, order_value = ?, order_quantity = ?, order_placed_at = ?, updated_at = ?
		WHERE id = ?`,
		order.OrderID, order.Value.Int64(), order.Quantity,
		order.PlacedAt.UTC().Format(timeLayout), updatedAt.UTC().Format(timeLayout), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &enrollment.NotFoundError{Kind: "enrollment", ID: id}
	}
	return nil
}

// UpdateStatus performs the compare-and-swap and appends the history entry
// in one database transaction. Returns false when the swap lost.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to enrollment.Status, updatedAt time.Time, entry enrollment.HistoryEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE enrollments SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), updatedAt.UTC().Format(timeLayout), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *Store) History(ctx context.Context, id string) ([]enrollment.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, enrollment_id, from_status, to_status, actor_type, actor_id, reason, created_at
		FROM transition_history
		WHERE enrollment_id = ?
		ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []enrollment.HistoryEntry
	for rows.Next() {
		var entry enrollment.HistoryEntry
		var fromStatus, actorID, reason sql.NullString
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.EnrollmentID, &fromStatus, &entry.ToStatus,
			&entry.Actor.Type, &actorID, &reason, &createdAt); err != nil {
			return nil, err
		}
		if fromStatus.Valid {
			from := enrollment.Status(fromStatus.String)
			entry.FromStatus = &from
		}
		entry.Actor.ID = actorID.String
		entry.Reason = reason.String
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func insertHistory(ctx context.Context, tx *sql.Tx, entry enrollment.HistoryEntry) error {
	var fromStatus any
	if entry.FromStatus != nil {
		fromStatus = string(*entry.FromStatus)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transition_history
			(id, enrollment_id, from_status, to_status, actor_type, actor_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EnrollmentID, fromStatus, string(entry.ToStatus),
		string(entry.Actor.Type), entry.Actor.ID, entry.Reason,
		entry.CreatedAt.UTC().Format(timeLayout))
	return err
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (s *Store) GetWallet(ctx context.Context, orgID string) (*ledger.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT organization_id, available, held, credit_limit, credit_utilized, updated_at
		FROM wallets WHERE organization_id = ?`, orgID)

	var w ledger.Wallet
	var available, held, creditLimit, creditUtilized int64
	var updatedAt string
	err := row.Scan(&w.OrganizationID, &available, &held, &creditLimit, &creditUtilized, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	w.Available = money.New(available)
	w.Held = money.New(held)
	w.CreditLimit = money.New(creditLimit)
	w.CreditUtilized = money.New(creditUtilized)
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Store) SaveWallet(ctx context.Context, w *ledger.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO wallets
			(organization_id, available, held, credit_limit, credit_utilized, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		w.OrganizationID, w.Available.Int64(), w.Held.Int64(),
		w.CreditLimit.Int64(), w.CreditUtilized.Int64(),
		w.UpdatedAt.UTC().Format(timeLayout))
	return err
}

func (s *Store) CreateHold(ctx context.Context, h *ledger.Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holds
			(id, organization_id, campaign_id, enrollment_id, amount, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.OrganizationID, h.CampaignID, h.EnrollmentID,
		h.Amount.Int64(), string(h.State),
		h.CreatedAt.UTC().Format(timeLayout), h.UpdatedAt.UTC().Format(timeLayout))
	if err != nil && isUniqueViolation(err) {
		return ledger.ErrDuplicateHold
	}
	return err
}

func (s *Store) ActiveHoldForEnrollment(ctx context.Context, enrollmentID string) (*ledger.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, campaign_id, enrollment_id, amount, state, created_at, updated_at
		FROM holds WHERE enrollment_id = ? AND state = 'active'`, enrollmentID)

	var h ledger.Hold
	var amount int64
	var createdAt, updatedAt string
	err := row.Scan(&h.ID, &h.OrganizationID, &h.CampaignID, &h.EnrollmentID,
		&amount, &h.State, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	h.Amount = money.New(amount)
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if h.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *Store) UpdateHoldState(ctx context.Context, holdID string, from, to ledger.HoldState, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE holds SET state = ?, updated_at = ?
		WHERE id = ? AND state = ?`,
		string(to), updatedAt.UTC().Format(timeLayout), holdID, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ActiveHoldTotal(ctx context.Context, orgID string) (money.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM holds
		WHERE organization_id = ? AND state = 'active'`, orgID)

	var total int64
	if err := row.Scan(&total); err != nil {
		return money.Zero(), err
	}
	return money.New(total), nil
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner) (*enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	var orderID, orderPlacedAt sql.NullString
	var orderValue, orderQuantity sql.NullInt64
	var feePct, gstPct, createdAt, updatedAt string

	err := row.Scan(&e.ID, &e.CampaignID, &e.ShopperID, &e.OrganizationID, &e.Status,
		&orderID, &orderValue, &orderQuantity, &orderPlacedAt,
		&feePct, &gstPct, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if orderID.Valid {
		order := enrollment.Order{
			OrderID:  orderID.String,
			Value:    money.New(orderValue.Int64),
			Quantity: orderQuantity.Int64,
		}
		if orderPlacedAt.Valid {
			if order.PlacedAt, err = parseTime(orderPlacedAt.String); err != nil {
				return nil, err
			}
		}
		e.Order = &order
	}

	if e.PlatformFeePercent, err = parsePercent(feePct); err != nil {
		return nil, err
	}
	if e.GSTPercent, err = parsePercent(gstPct); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func parsePercent(s string) (money.Percent, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return money.Percent{}, fmt.Errorf("invalid percent %q: %w", s, err)
	}
	return money.PercentFromDecimal(d), nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func ruleJSON(rule payout.Rule) string {
	// RuleJSON round-trips losslessly; marshal cannot fail for it.
	b, _ := json.Marshal(payout.ToJSON(rule))
	return string(b)
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 reports constraint violations with this prefix.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
