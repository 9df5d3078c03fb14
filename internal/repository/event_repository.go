package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ascentclub/server/internal/model"
)

// EventRepo provides CRUD operations for events. All timestamp fields are
// assumed to be stored in UTC.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span multiple repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, title, starts_at, ends_at, difficulty_level,
       max_attendees, upfront_cost_cents, refund_cutoff, is_canceled,
       signup_required, created_at, updated_at`

// GetByID fetches a single event. ErrEventNotFound is returned when the id
// does not exist.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return ev, err
}

// GetByIDTx fetches a single event inside an existing transaction without
// locking it. Preview paths use this; mutations go through GetForUpdateTx.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Event, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return ev, err
}

// GetForUpdateTx loads an event row under SELECT ... FOR UPDATE. Every
// attendance mutation (join, leave, promotion) starts here: the row lock
// serializes concurrent mutations against the same event, which is what
// keeps the capacity and coach-safety checks trustworthy for the rest of
// the transaction.
func (r *EventRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Event, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ? FOR UPDATE", id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return ev, err
}

// MarkCanceledTx flips is_canceled to true. The flag is one-way; there is
// no corresponding un-cancel.
func (r *EventRepo) MarkCanceledTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE events SET is_canceled = 1 WHERE id = ?", id)
	return err
}

// Create inserts a new event and returns its ID. Basic shape validation
// (ends after starts, non-negative cost) is the handler's job; the
// database enforces the rest via CHECK constraints.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) (uint64, error) {
	var cutoff interface{}
	if ev.RefundCutoff != nil {
		cutoff = ev.RefundCutoff.UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (title, starts_at, ends_at, difficulty_level,
		        max_attendees, upfront_cost_cents, refund_cutoff, signup_required)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Title, ev.StartsAt.UTC(), ev.EndsAt.UTC(), ev.DifficultyLevel,
		ev.MaxAttendees, ev.UpfrontCostCents, cutoff, ev.SignupRequired)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	ev.ID = uint64(id)
	return ev.ID, nil
}

// ListUpcoming returns non-canceled events that have not yet ended,
// ordered by start time. The handler filters the result through the view
// rules before rendering, so no difficulty filtering happens here.
func (r *EventRepo) ListUpcoming(ctx context.Context, now time.Time) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+eventColumns+` FROM events
		  WHERE is_canceled = 0 AND ends_at > ?
		  ORDER BY starts_at ASC`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// Search returns events whose title matches the query, newest first. An
// empty query returns no rows rather than the whole table.
func (r *EventRepo) Search(ctx context.Context, query string, limit int) ([]model.Event, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Event{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+eventColumns+` FROM events
		  WHERE title LIKE ?
		  ORDER BY starts_at DESC
		  LIMIT ?`, "%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func scanEvent(row rowScanner) (model.Event, error) {
	var ev model.Event
	var cutoff sql.NullTime
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.StartsAt, &ev.EndsAt, &ev.DifficultyLevel,
		&ev.MaxAttendees, &ev.UpfrontCostCents, &cutoff, &ev.IsCanceled,
		&ev.SignupRequired, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return model.Event{}, err
	}
	if cutoff.Valid {
		t := cutoff.Time
		ev.RefundCutoff = &t
	}
	return ev, nil
}
