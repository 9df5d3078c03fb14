package rules

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ascentclub/server/internal/model"
)

var testNow = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

// okState builds a snapshot that passes every rule: an instructor member
// with legal info, a clean balance and an open future event. Tests then
// break exactly one condition each.
func okState() JoinState {
	return JoinState{
		Now: testNow,
		Event: model.Event{
			ID:               1,
			Title:            "evening session",
			StartsAt:         testNow.Add(2 * time.Hour),
			EndsAt:           testNow.Add(4 * time.Hour),
			MaxAttendees:     10,
			UpfrontCostCents: 500,
			SignupRequired:   true,
		},
		Candidate: &model.User{
			ID:              7,
			IsMember:        true,
			IsInstructor:    true,
			FilledLegalInfo: true,
		},
		AttendingCount:       3,
		InstructorsAttending: 0,
		BalanceCents:         0,
		MinBalanceCents:      -5000,
		Whitelisted:          map[uint64]bool{},
	}
}

func TestCanJoinAllows(t *testing.T) {
	dec := CanJoin(okState())
	require.True(t, dec.OK)
	require.Zero(t, dec.Code)
	require.Empty(t, dec.Reason)
}

func TestCanJoinDenials(t *testing.T) {
	wl := "WL"
	tests := []struct {
		name     string
		mutate   func(s *JoinState)
		wantCode int
		wantWhy  string
	}{
		{
			name:     "unauthenticated",
			mutate:   func(s *JoinState) { s.Candidate = nil },
			wantCode: http.StatusUnauthorized,
			wantWhy:  ReasonUnauthenticated,
		},
		{
			name:     "signup not required",
			mutate:   func(s *JoinState) { s.Event.SignupRequired = false },
			wantCode: http.StatusBadRequest,
			wantWhy:  ReasonSignupNotRequired,
		},
		{
			name:     "canceled",
			mutate:   func(s *JoinState) { s.Event.IsCanceled = true },
			wantCode: http.StatusBadRequest,
			wantWhy:  ReasonCanceled,
		},
		{
			name:     "already started",
			mutate:   func(s *JoinState) { s.Event.StartsAt = testNow.Add(-time.Minute) },
			wantCode: http.StatusBadRequest,
			wantWhy:  ReasonStarted,
		},
		{
			name: "start boundary is a start",
			mutate: func(s *JoinState) {
				s.Event.StartsAt = testNow
			},
			wantCode: http.StatusBadRequest,
			wantWhy:  ReasonStarted,
		},
		{
			name: "already ended",
			mutate: func(s *JoinState) {
				s.Event.StartsAt = testNow.Add(time.Hour)
				s.Event.EndsAt = testNow.Add(-time.Minute)
			},
			wantCode: http.StatusBadRequest,
			wantWhy:  ReasonEnded,
		},
		{
			name:     "full",
			mutate:   func(s *JoinState) { s.AttendingCount = 10 },
			wantCode: http.StatusBadRequest,
			wantWhy:  ReasonFull,
		},
		{
			name: "no instructor for non-instructor",
			mutate: func(s *JoinState) {
				s.Candidate.IsInstructor = false
				s.InstructorsAttending = 0
			},
			wantCode: http.StatusForbidden,
			wantWhy:  ReasonNoCoach,
		},
		{
			name:     "legal info incomplete",
			mutate:   func(s *JoinState) { s.Candidate.FilledLegalInfo = false },
			wantCode: http.StatusForbidden,
			wantWhy:  ReasonLegalInfo,
		},
		{
			name:     "outstanding debts",
			mutate:   func(s *JoinState) { s.BalanceCents = -5001 },
			wantCode: http.StatusForbidden,
			wantWhy:  ReasonDebts,
		},
		{
			name: "non-member without sessions",
			mutate: func(s *JoinState) {
				s.Candidate.IsMember = false
				s.Candidate.FreeSessions = 0
			},
			wantCode: http.StatusForbidden,
			wantWhy:  ReasonNoSessions,
		},
		{
			name: "whitelist tag without membership",
			mutate: func(s *JoinState) {
				s.Tags = []model.Tag{{ID: 9, Name: wl, JoinPolicy: model.JoinPolicyWhitelist}}
			},
			wantCode: http.StatusForbidden,
			wantWhy:  ReasonRestricted,
		},
		{
			name:     "already attending",
			mutate:   func(s *JoinState) { s.AlreadyAttending = true },
			wantCode: http.StatusBadRequest,
			wantWhy:  ReasonAlreadyAttending,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := okState()
			tc.mutate(&s)
			dec := CanJoin(s)
			require.False(t, dec.OK)
			require.Equal(t, tc.wantCode, dec.Code)
			require.Equal(t, tc.wantWhy, dec.Reason)
		})
	}
}

// The first failing rule wins: a canceled, started, full event reports
// cancellation, not fullness.
func TestCanJoinDenialOrder(t *testing.T) {
	s := okState()
	s.Event.IsCanceled = true
	s.Event.StartsAt = testNow.Add(-time.Hour)
	s.AttendingCount = 99
	dec := CanJoin(s)
	require.Equal(t, ReasonCanceled, dec.Reason)
}

func TestInstructorBootstrapsEmptyEvent(t *testing.T) {
	s := okState()
	s.AttendingCount = 0
	s.InstructorsAttending = 0
	s.Candidate.IsInstructor = true
	require.True(t, CanJoin(s).OK)
}

func TestNonMemberNeedsSessionEvenForFreeEvent(t *testing.T) {
	s := okState()
	s.Event.UpfrontCostCents = 0
	s.Candidate.IsMember = false
	s.Candidate.FreeSessions = 0
	s.Candidate.IsInstructor = true
	dec := CanJoin(s)
	require.Equal(t, ReasonNoSessions, dec.Reason)
}

func TestWhitelistRequiresEveryWhitelistTag(t *testing.T) {
	s := okState()
	s.Tags = []model.Tag{
		{ID: 1, JoinPolicy: model.JoinPolicyWhitelist},
		{ID: 2, JoinPolicy: model.JoinPolicyWhitelist},
		{ID: 3, JoinPolicy: model.JoinPolicyOpen},
	}
	s.Whitelisted = map[uint64]bool{1: true}
	dec := CanJoin(s)
	require.Equal(t, ReasonRestricted, dec.Reason)

	s.Whitelisted[2] = true
	require.True(t, CanJoin(s).OK)
}

func TestDebtAtFloorStillJoins(t *testing.T) {
	s := okState()
	s.BalanceCents = -5000
	require.True(t, CanJoin(s).OK)
}

func TestEffectiveMinDifficulty(t *testing.T) {
	three, five := 3, 5
	ev := model.Event{DifficultyLevel: 4}
	require.Equal(t, 4, EffectiveMinDifficulty(ev, nil))
	require.Equal(t, 4, EffectiveMinDifficulty(ev, []model.Tag{{MinDifficulty: &three}}))
	require.Equal(t, 5, EffectiveMinDifficulty(ev, []model.Tag{{MinDifficulty: &three}, {MinDifficulty: &five}}))
}

func TestCanView(t *testing.T) {
	five := 5
	hard := model.Event{DifficultyLevel: 1}
	easy := model.Event{DifficultyLevel: 0}
	hardTags := []model.Tag{{ID: 1, MinDifficulty: &five}}

	// Guests are bounded by the guest allowance.
	require.True(t, CanView(nil, easy, nil, 2, nil))
	require.False(t, CanView(nil, hard, hardTags, 2, nil))

	// Authenticated users by their own level.
	expert := &model.User{DifficultyLevel: 6}
	novice := &model.User{DifficultyLevel: 1}
	require.True(t, CanView(expert, hard, hardTags, 2, nil))
	require.False(t, CanView(novice, hard, hardTags, 2, nil))

	// Whitelist tags hide the event from non-whitelisted viewers.
	wlTags := []model.Tag{{ID: 2, JoinPolicy: model.JoinPolicyWhitelist}}
	require.False(t, CanView(expert, easy, wlTags, 2, nil))
	require.True(t, CanView(expert, easy, wlTags, 2, map[uint64]bool{2: true}))
}
