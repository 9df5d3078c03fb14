package repository

import (
	"context"
	"database/sql"

	"github.com/ascentclub/server/internal/model"
)

// LedgerRepo provides access to the ledger_entries table. The ledger is
// append-only: there is no update or delete, ever. Corrections are new
// offsetting entries, which keeps every balance explainable by replaying
// the history. Balance is always computed as the sum of entries, never
// cached in a column that could drift.
type LedgerRepo struct {
	db *sql.DB
}

// NewLedgerRepo returns a new LedgerRepo bound to the given database.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// AppendTx inserts one signed entry within the scope of an existing
// transaction and populates the generated ID on the provided record. The
// caller must commit or roll back; a failed append must abort the whole
// join/leave transaction because money movement is involved.
func (r *LedgerRepo) AppendTx(ctx context.Context, tx *sql.Tx, entry *model.LedgerEntry) error {
	var eventID interface{}
	if entry.EventID != nil {
		eventID = *entry.EventID
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (user_id, event_id, amount_cents, description)
		 VALUES (?, ?, ?, ?)`,
		entry.UserID, eventID, entry.AmountCents, entry.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = uint64(id)
	return nil
}

// BalanceTx returns the running balance of a user inside a transaction.
// The attendance rules read this under the event lock so the debt check
// and the charge decide on the same state.
func (r *LedgerRepo) BalanceTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries WHERE user_id = ?",
		userID).Scan(&balance)
	return balance, err
}

// Balance returns the running balance of a user.
func (r *LedgerRepo) Balance(ctx context.Context, userID uint64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries WHERE user_id = ?",
		userID).Scan(&balance)
	return balance, err
}

// GetTx loads a single entry by id. The engine uses this to find the
// original charge when reversing it on a refunded leave.
func (r *LedgerRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.LedgerEntry, error) {
	var e model.LedgerEntry
	var eventID sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, event_id, amount_cents, description, created_at
		   FROM ledger_entries WHERE id = ?`, id).Scan(
		&e.ID, &e.UserID, &eventID, &e.AmountCents, &e.Description, &e.CreatedAt)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	if eventID.Valid {
		v := uint64(eventID.Int64)
		e.EventID = &v
	}
	return e, nil
}

// Page bounds for ListByUser. Handlers validate against the same values
// so an out-of-range limit is rejected up front rather than silently
// rewritten here.
const (
	DefaultLedgerPage = 50
	MaxLedgerPage     = 200
)

// ListByUser returns a user's entries, newest first, for the statement
// view.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultLedgerPage
	}
	if limit > MaxLedgerPage {
		limit = MaxLedgerPage
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, event_id, amount_cents, description, created_at
		   FROM ledger_entries
		  WHERE user_id = ?
		  ORDER BY created_at DESC, id DESC
		  LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.LedgerEntry, 0)
	for rows.Next() {
		var e model.LedgerEntry
		var eventID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.UserID, &eventID, &e.AmountCents, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		if eventID.Valid {
			v := uint64(eventID.Int64)
			e.EventID = &v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
