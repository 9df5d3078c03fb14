package model

import "time"

// Attendance records one attendance episode of a user at an event. There is
// at most one row per (event, user); leaving flips IsAttending to false
// rather than deleting, so rosters and financial history stay intact. A
// later re-join reactivates the same row.
//
// PaymentEntryID links the episode to the ledger entry that paid for it.
// Null means the episode was free or funded by a session credit. The link
// is cleared when the charge is reversed on a refunded leave; if the user
// left after the refund cutoff the link survives, and a re-join treats the
// old payment as still covering the slot.
//
// Fields:
//  ID              – primary key identifier.
//  EventID         – event attended.
//  UserID          – attending user.
//  IsAttending     – current status of the episode.
//  UsedFreeSession – whether a free session credit funded this episode.
//  PaymentEntryID  – ledger entry paying for the slot (nullable).
//  JoinedAt        – when the user (last) joined.
//  LeftAt          – when the user (last) left (null while attending).
type Attendance struct {
	ID              uint64     // attendance.id
	EventID         uint64     // attendance.event_id
	UserID          uint64     // attendance.user_id
	IsAttending     bool       // attendance.is_attending
	UsedFreeSession bool       // attendance.used_free_session
	PaymentEntryID  *uint64    // attendance.payment_entry_id (nullable)
	JoinedAt        time.Time  // attendance.joined_at
	LeftAt          *time.Time // attendance.left_at (nullable)
}
