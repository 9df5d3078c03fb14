package model

import "time"

// Event represents a scheduled club session in the `events` table.
// Events are linked to tags through the event_tags join table and may
// have many attendance and waitlist rows.
//
// Fields:
//  ID               – primary key identifier.
//  Title            – human readable event name.
//  StartsAt         – when the event begins.
//  EndsAt           – when the event ends (must be after StartsAt).
//  DifficultyLevel  – minimum skill level required to view/join; tags with
//                     a min_difficulty can raise the effective floor.
//  MaxAttendees     – capacity limit; 0 means unlimited.
//  UpfrontCostCents – price in cents charged to members on join.
//  RefundCutoff     – instant after which leaving no longer refunds the
//                     upfront cost; null means refunds are always allowed.
//  IsCanceled       – one-way flag; once true no further joins happen.
//  SignupRequired   – whether attendance is tracked at all for this event.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Event struct {
	ID               uint64     // events.id
	Title            string     // events.title
	StartsAt         time.Time  // events.starts_at
	EndsAt           time.Time  // events.ends_at
	DifficultyLevel  int        // events.difficulty_level
	MaxAttendees     int        // events.max_attendees (0 = unlimited)
	UpfrontCostCents int64      // events.upfront_cost_cents
	RefundCutoff     *time.Time // events.refund_cutoff (nullable)
	IsCanceled       bool       // events.is_canceled
	SignupRequired   bool       // events.signup_required
	CreatedAt        time.Time  // events.created_at
	UpdatedAt        time.Time  // events.updated_at
}
