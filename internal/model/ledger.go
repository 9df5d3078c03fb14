package model

import "time"

// LedgerEntry is one immutable signed money movement on a user's internal
// balance. Entries are never updated or deleted; corrections append an
// offsetting entry. Balance is the sum of AmountCents over all entries of
// a user. Charges are negative, refunds and top-ups positive.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – user whose balance this entry affects.
//  EventID     – event the entry relates to, if any.
//  AmountCents – signed amount in cents.
//  Description – human readable reason for the entry.
//  CreatedAt   – timestamp of creation.
type LedgerEntry struct {
	ID          uint64    // ledger_entries.id
	UserID      uint64    // ledger_entries.user_id
	EventID     *uint64   // ledger_entries.event_id (nullable)
	AmountCents int64     // ledger_entries.amount_cents
	Description string    // ledger_entries.description
	CreatedAt   time.Time // ledger_entries.created_at
}
