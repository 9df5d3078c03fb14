package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ascentclub/server/internal/model"
)

// AttendanceRepo provides access to the attendance table. One row exists
// per (event, user) episode; leaving flips is_attending instead of
// deleting so history is preserved, and a later re-join reactivates the
// same row. All mutating methods are transaction-scoped because every
// attendance change happens under the event row lock held by the engine.
type AttendanceRepo struct {
	db *sql.DB
}

// NewAttendanceRepo returns a new AttendanceRepo bound to the given database.
func NewAttendanceRepo(db *sql.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

const attendanceColumns = `id, event_id, user_id, is_attending,
       used_free_session, payment_entry_id, joined_at, left_at`

// GetByEventUserTx loads the attendance episode for (event, user) if one
// exists. sql.ErrNoRows is returned when the user has never joined the
// event.
func (r *AttendanceRepo) GetByEventUserTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (model.Attendance, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE event_id = ? AND user_id = ?",
		eventID, userID)
	return scanAttendance(row)
}

// CountAttendingTx returns the number of currently attending users for an
// event, excluding excludeUserID. The exclusion lets the capacity rule
// count "everyone but the candidate" in one query; pass 0 to count all.
func (r *AttendanceRepo) CountAttendingTx(ctx context.Context, tx *sql.Tx, eventID, excludeUserID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance WHERE event_id = ? AND is_attending = 1 AND user_id <> ?",
		eventID, excludeUserID).Scan(&n)
	return n, err
}

// CountInstructorsAttendingTx returns how many currently attending users
// of an event are instructors, optionally excluding one user. The coach
// safety rule and the last-instructor auto-cancel both read this.
func (r *AttendanceRepo) CountInstructorsAttendingTx(ctx context.Context, tx *sql.Tx, eventID, excludeUserID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*)
		   FROM attendance a
		   JOIN users u ON u.id = a.user_id
		  WHERE a.event_id = ? AND a.is_attending = 1 AND u.is_instructor = 1
		    AND a.user_id <> ?`,
		eventID, excludeUserID).Scan(&n)
	return n, err
}

// CreateTx inserts a fresh attendance episode with is_attending = 1 and
// returns its id.
func (r *AttendanceRepo) CreateTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64, usedFreeSession bool, now time.Time) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO attendance (event_id, user_id, is_attending, used_free_session, joined_at)
		 VALUES (?, ?, 1, ?, ?)`,
		eventID, userID, usedFreeSession, now.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ReactivateTx re-joins an existing episode: is_attending flips back on,
// joined_at is re-stamped and left_at cleared. used_free_session is
// overwritten because the funding of the new episode may differ from the
// old one (the payment link, if still present, is handled by the engine's
// slot re-use logic).
func (r *AttendanceRepo) ReactivateTx(ctx context.Context, tx *sql.Tx, id uint64, usedFreeSession bool, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE attendance
		    SET is_attending = 1, used_free_session = ?, joined_at = ?, left_at = NULL
		  WHERE id = ?`,
		usedFreeSession, now.UTC(), id)
	return err
}

// SetPaymentEntryTx links an attendance episode to the ledger entry that
// paid for it.
func (r *AttendanceRepo) SetPaymentEntryTx(ctx context.Context, tx *sql.Tx, id, entryID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE attendance SET payment_entry_id = ? WHERE id = ?", entryID, id)
	return err
}

// ClearPaymentEntryTx removes the payment link after the charge has been
// reversed. The ledger entry itself is never touched.
func (r *AttendanceRepo) ClearPaymentEntryTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE attendance SET payment_entry_id = NULL WHERE id = ?", id)
	return err
}

// MarkLeftTx flips the episode to not attending and stamps left_at.
func (r *AttendanceRepo) MarkLeftTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE attendance SET is_attending = 0, left_at = ? WHERE id = ?",
		now.UTC(), id)
	return err
}

// Attendee is one roster row returned by ListByEvent. Email and
// BalanceCents are populated only when the caller's scope includes member
// details; for everyone else they stay at their zero values and are
// omitted from the JSON response.
type Attendee struct {
	UserID       uint64 `json:"user_id"`
	DisplayName  string `json:"display_name"`
	IsInstructor bool   `json:"is_instructor"`
	JoinedAt     string `json:"joined_at"`
	Email        string `json:"email,omitempty"`
	BalanceCents *int64 `json:"balance_cents,omitempty"`
}

// ListByEvent returns the current roster of an event ordered by join
// time. When includePII is set, each row additionally carries the email
// and running ledger balance of the member.
func (r *AttendanceRepo) ListByEvent(ctx context.Context, eventID uint64, includePII bool) ([]Attendee, error) {
	const q = `SELECT a.user_id, u.display_name, u.is_instructor, a.joined_at, u.email,
	                  COALESCE((SELECT SUM(l.amount_cents) FROM ledger_entries l WHERE l.user_id = u.id), 0)
	             FROM attendance a
	             JOIN users u ON u.id = a.user_id
	            WHERE a.event_id = ? AND a.is_attending = 1
	            ORDER BY a.joined_at ASC, a.id ASC`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	attendees := make([]Attendee, 0)
	for rows.Next() {
		var a Attendee
		var joinedAt time.Time
		var email string
		var balance int64
		if err := rows.Scan(&a.UserID, &a.DisplayName, &a.IsInstructor, &joinedAt, &email, &balance); err != nil {
			return nil, err
		}
		a.JoinedAt = joinedAt.UTC().Format(time.RFC3339)
		if includePII {
			a.Email = email
			b := balance
			a.BalanceCents = &b
		}
		attendees = append(attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attendees, nil
}

func scanAttendance(row rowScanner) (model.Attendance, error) {
	var a model.Attendance
	var paymentID sql.NullInt64
	var leftAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.EventID, &a.UserID, &a.IsAttending,
		&a.UsedFreeSession, &paymentID, &a.JoinedAt, &leftAt,
	)
	if err != nil {
		return model.Attendance{}, err
	}
	if paymentID.Valid {
		v := uint64(paymentID.Int64)
		a.PaymentEntryID = &v
	}
	if leftAt.Valid {
		t := leftAt.Time
		a.LeftAt = &t
	}
	return a, nil
}
