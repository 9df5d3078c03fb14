package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ascentclub/server/internal/model"
)

// WaitlistRepo provides access to the waitlist table. Entries are strictly
// FIFO: ordering is (joined_at, id) with the auto-increment id as the
// authoritative tiebreak, since two joins can land on the same timestamp.
// All methods behave with respect to UTC timestamps.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the provided database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// JoinTx enqueues a user for an event inside an existing transaction; the
// engine calls it under the event lock. The insert is idempotent:
// re-joining while already queued keeps the original position instead of
// erroring or moving the user to the back.
func (r *WaitlistRepo) JoinTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO waitlist (event_id, user_id, joined_at) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE user_id = user_id`,
		eventID, userID, now.UTC())
	return err
}

// NextInLineTx returns the earliest entry for an event, or nil when the
// queue is empty. The engine calls this during the promotion drain while
// holding the event lock, so no additional row locking is needed here.
func (r *WaitlistRepo) NextInLineTx(ctx context.Context, tx *sql.Tx, eventID uint64) (*model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	err := tx.QueryRowContext(ctx,
		`SELECT id, event_id, user_id, joined_at
		   FROM waitlist
		  WHERE event_id = ?
		  ORDER BY joined_at ASC, id ASC
		  LIMIT 1`, eventID).Scan(&e.ID, &e.EventID, &e.UserID, &e.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Position returns the 1-based rank of a user in an event's queue, or 0
// when the user is not queued.
func (r *WaitlistRepo) Position(ctx context.Context, eventID, userID uint64) (int, error) {
	var joinedAt time.Time
	var id uint64
	err := r.db.QueryRowContext(ctx,
		"SELECT id, joined_at FROM waitlist WHERE event_id = ? AND user_id = ?",
		eventID, userID).Scan(&id, &joinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var ahead int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM waitlist
		  WHERE event_id = ? AND (joined_at < ? OR (joined_at = ? AND id < ?))`,
		eventID, joinedAt, joinedAt, id).Scan(&ahead)
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// Remove deletes a user's entry; removing an absent entry is a no-op.
func (r *WaitlistRepo) Remove(ctx context.Context, eventID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM waitlist WHERE event_id = ? AND user_id = ?", eventID, userID)
	return err
}

// RemoveTx deletes an entry by id within a transaction. Used by the
// promotion drain, which has already loaded the exact row it is
// consuming.
func (r *WaitlistRepo) RemoveTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM waitlist WHERE id = ?", id)
	return err
}

// CountTx returns the queue length for an event within a transaction.
func (r *WaitlistRepo) CountTx(ctx context.Context, tx *sql.Tx, eventID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM waitlist WHERE event_id = ?", eventID).Scan(&n)
	return n, err
}
