// Package rules holds the attendance decision functions. Everything here
// is pure: decisions are computed over a snapshot assembled by the caller,
// with no database access and no clock reads. The engine builds the
// snapshot inside the same transaction that performs the mutation, so the
// rules are always evaluated against the state they will modify.
package rules

import (
	"net/http"
	"time"

	"github.com/ascentclub/server/internal/model"
)

// Decision is the outcome of a rule evaluation. Code is an HTTP-like
// status the handler can surface directly; Reason is the human readable
// denial message. OK decisions carry a zero Code and empty Reason.
type Decision struct {
	OK     bool
	Code   int
	Reason string
}

// Denial reasons, one per rule. These strings are part of the API
// surface: clients and the audit log match on them.
const (
	ReasonUnauthenticated   = "authentication required"
	ReasonSignupNotRequired = "signup not required for this event"
	ReasonCanceled          = "event is canceled"
	ReasonStarted           = "event has already started"
	ReasonEnded             = "event has already ended"
	ReasonFull              = "event is full"
	ReasonNoCoach           = "no instructor attending"
	ReasonLegalInfo         = "legal info incomplete"
	ReasonDebts             = "outstanding debts"
	ReasonNoSessions        = "no sessions remaining"
	ReasonRestricted        = "restricted access"
	ReasonAlreadyAttending  = "already attending"
)

func allow() Decision { return Decision{OK: true} }

func deny(code int, reason string) Decision {
	return Decision{OK: false, Code: code, Reason: reason}
}

// JoinState is the snapshot CanJoin evaluates. Counts exclude the
// candidate so re-join attempts do not count themselves against capacity
// or coach safety.
type JoinState struct {
	Now                  time.Time
	Event                model.Event
	Tags                 []model.Tag
	Candidate            *model.User     // nil = unauthenticated request
	AttendingCount       int             // current attendees, candidate excluded
	InstructorsAttending int             // attending instructors, candidate excluded
	BalanceCents         int64           // candidate's ledger balance
	MinBalanceCents      int64           // debt floor from settings
	Whitelisted          map[uint64]bool // tag id -> candidate is whitelisted
	AlreadyAttending     bool            // candidate has an active episode
}

// CanJoin decides whether the candidate may join the event. Rules are
// evaluated in a fixed order and the first failure wins, so a denial
// reason is always the earliest applicable one. A "full" denial is the
// handler's cue to offer the waitlist.
func CanJoin(s JoinState) Decision {
	if s.Candidate == nil {
		return deny(http.StatusUnauthorized, ReasonUnauthenticated)
	}
	if !s.Event.SignupRequired {
		return deny(http.StatusBadRequest, ReasonSignupNotRequired)
	}
	if s.Event.IsCanceled {
		return deny(http.StatusBadRequest, ReasonCanceled)
	}
	if !s.Now.Before(s.Event.StartsAt) {
		return deny(http.StatusBadRequest, ReasonStarted)
	}
	if !s.Now.Before(s.Event.EndsAt) {
		return deny(http.StatusBadRequest, ReasonEnded)
	}
	if s.Event.MaxAttendees > 0 && s.AttendingCount >= s.Event.MaxAttendees {
		return deny(http.StatusBadRequest, ReasonFull)
	}
	// Coach safety: a non-instructor may only be where an instructor
	// already is. An instructor may always join, including alone into an
	// empty event (the bootstrap that makes the first join possible).
	if !s.Candidate.IsInstructor && s.InstructorsAttending == 0 {
		return deny(http.StatusForbidden, ReasonNoCoach)
	}
	if !s.Candidate.FilledLegalInfo {
		return deny(http.StatusForbidden, ReasonLegalInfo)
	}
	if s.BalanceCents < s.MinBalanceCents {
		return deny(http.StatusForbidden, ReasonDebts)
	}
	// Members pay cash from the ledger; non-members spend a session
	// credit regardless of the event's price, so a credit is required
	// even for free events.
	if !s.Candidate.IsMember && s.Candidate.FreeSessions <= 0 {
		return deny(http.StatusForbidden, ReasonNoSessions)
	}
	for _, tag := range s.Tags {
		if tag.JoinPolicy == model.JoinPolicyWhitelist && !s.Whitelisted[tag.ID] {
			return deny(http.StatusForbidden, ReasonRestricted)
		}
	}
	if s.AlreadyAttending {
		return deny(http.StatusBadRequest, ReasonAlreadyAttending)
	}
	return allow()
}

// EffectiveMinDifficulty is the difficulty floor of an event: the event's
// own level raised by the strictest min_difficulty among its tags.
func EffectiveMinDifficulty(ev model.Event, tags []model.Tag) int {
	min := ev.DifficultyLevel
	for _, t := range tags {
		if t.MinDifficulty != nil && *t.MinDifficulty > min {
			min = *t.MinDifficulty
		}
	}
	return min
}

// CanView decides whether a viewer may see an event on read paths. Guests
// are bounded by the guest_max_difficulty setting, authenticated users by
// their own difficulty level. Whitelist-policy tags additionally hide the
// event from viewers not on the whitelist.
func CanView(viewer *model.User, ev model.Event, tags []model.Tag, guestMaxDifficulty int, whitelisted map[uint64]bool) bool {
	allowance := guestMaxDifficulty
	if viewer != nil {
		allowance = viewer.DifficultyLevel
	}
	if allowance < EffectiveMinDifficulty(ev, tags) {
		return false
	}
	for _, tag := range tags {
		if tag.JoinPolicy == model.JoinPolicyWhitelist && !whitelisted[tag.ID] {
			return false
		}
	}
	return true
}
