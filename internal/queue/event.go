// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names used by the publisher and the audit consumer.
const (
	PromotedQueueName     = "attendance.promoted"
	AutoCanceledQueueName = "event.autocanceled"
)

// AttendancePromotedEvent is published when a waitlisted member is
// automatically promoted into a freed slot. It contains enough
// information for downstream consumers to notify the member or feed
// analytics without querying the primary database.
type AttendancePromotedEvent struct {
	EventID    uint64 `json:"event_id"`
	UserID     uint64 `json:"user_id"`
	Title      string `json:"title"`
	StartsAt   string `json:"starts_at"`
	PromotedAt string `json:"promoted_at"`
}

// EventAutoCanceledEvent is published when an event cancels itself
// because its last attending instructor left while other attendees
// remained.
type EventAutoCanceledEvent struct {
	EventID    uint64 `json:"event_id"`
	Title      string `json:"title"`
	StartsAt   string `json:"starts_at"`
	CanceledAt string `json:"canceled_at"`
}
