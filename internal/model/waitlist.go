package model

import "time"

// WaitlistEntry queues a user for an event that was full when they tried to
// join. Entries are strictly FIFO by JoinedAt; the auto-increment ID is the
// authoritative tiebreak because timestamp resolution may coincide. An
// entry is removed when the user is promoted into the event or leaves the
// queue voluntarily.
type WaitlistEntry struct {
	ID       uint64    // waitlist.id
	EventID  uint64    // waitlist.event_id
	UserID   uint64    // waitlist.user_id
	JoinedAt time.Time // waitlist.joined_at
}
