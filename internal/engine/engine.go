package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/ascentclub/server/internal/model"
	"github.com/ascentclub/server/internal/queue"
	"github.com/ascentclub/server/internal/repository"
	"github.com/ascentclub/server/internal/rules"
)

// Settings supplies the process-wide tunables the rules depend on. The
// repository.SettingRepo satisfies this; tests substitute fixed values.
type Settings interface {
	GetInt(ctx context.Context, key string, def int64) (int64, error)
}

// Publisher receives domain events after a transaction commits. The AMQP
// publisher satisfies this; a nil Publisher disables publishing.
type Publisher interface {
	AttendancePromoted(ctx context.Context, ev queue.AttendancePromotedEvent)
	EventAutoCanceled(ctx context.Context, ev queue.EventAutoCanceledEvent)
}

// Defaults used when the settings table carries no value.
const (
	defaultMinBalanceCents    = -5000 // members may owe up to 50.00 before joins are blocked
	defaultGuestMaxDifficulty = 2
)

// maxTxRetries bounds the local retry of lock-conflicted transactions.
const maxTxRetries = 3

// Engine coordinates attendance state, the ledger and the waitlist. All
// mutations for one event run under that event's row lock inside a single
// transaction, so capacity, coach safety and promotion decisions never
// race each other. Ledger entries are only written under that lock's
// decision; a ledger failure aborts the whole transaction.
type Engine struct {
	db         *sql.DB
	events     *repository.EventRepo
	users      *repository.UserRepo
	tags       *repository.TagRepo
	attendance *repository.AttendanceRepo
	ledger     *repository.LedgerRepo
	waitlist   *repository.WaitlistRepo
	settings   Settings
	publisher  Publisher
	log        *zap.Logger
	now        func() time.Time
}

// New constructs an Engine. All repositories and settings must be
// non-nil; publisher may be nil to disable event publishing.
func New(db *sql.DB, events *repository.EventRepo, users *repository.UserRepo,
	tags *repository.TagRepo, attendance *repository.AttendanceRepo,
	ledger *repository.LedgerRepo, waitlist *repository.WaitlistRepo,
	settings Settings, publisher Publisher, log *zap.Logger) *Engine {
	if db == nil || events == nil || users == nil || tags == nil ||
		attendance == nil || ledger == nil || waitlist == nil || settings == nil {
		panic("nil dependency passed to engine.New")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		db:         db,
		events:     events,
		users:      users,
		tags:       tags,
		attendance: attendance,
		ledger:     ledger,
		waitlist:   waitlist,
		settings:   settings,
		publisher:  publisher,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Attend joins a user into an event: rules are re-validated under the
// event lock, the attendance row is created or reactivated, and the slot
// is funded (member cash charge, non-member session credit, or a banked
// prior payment). A Denial is returned when a rule refuses the join; the
// "full" denial is the caller's cue to offer the waitlist.
func (e *Engine) Attend(ctx context.Context, eventID, userID uint64) error {
	minBalance, err := e.settings.GetInt(ctx, repository.SettingMinBalanceCents, defaultMinBalanceCents)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	return e.withEventTx(ctx, func(tx *sql.Tx) ([]func(), error) {
		ev, err := e.events.GetForUpdateTx(ctx, tx, eventID)
		if err != nil {
			return nil, err
		}
		if err := e.attendTx(ctx, tx, ev, userID, minBalance); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// Leave removes a user from an event: the episode flips to not attending,
// the upfront charge is reversed when the refund window is still open, a
// consumed session credit is always returned, the event auto-cancels when
// its last instructor walks out on remaining attendees, and freed
// capacity is refilled from the waitlist in FIFO order — all in one
// transaction under the event lock.
func (e *Engine) Leave(ctx context.Context, eventID, userID uint64) error {
	if userID == 0 {
		return &Denial{Code: http.StatusUnauthorized, Reason: rules.ReasonUnauthenticated}
	}
	minBalance, err := e.settings.GetInt(ctx, repository.SettingMinBalanceCents, defaultMinBalanceCents)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	return e.withEventTx(ctx, func(tx *sql.Tx) ([]func(), error) {
		ev, err := e.events.GetForUpdateTx(ctx, tx, eventID)
		if err != nil {
			return nil, err
		}
		return e.leaveTx(ctx, tx, ev, userID, minBalance)
	})
}

// leaveTx performs the leave flow inside an open transaction and returns
// the post-commit publish hooks.
func (e *Engine) leaveTx(ctx context.Context, tx *sql.Tx, ev model.Event, userID uint64, minBalance int64) ([]func(), error) {
	now := e.now()
	episode, err := e.attendance.GetByEventUserTx(ctx, tx, ev.ID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notAttending()
	}
	if err != nil {
		return nil, err
	}
	if !episode.IsAttending {
		return nil, notAttending()
	}
	user, err := e.users.GetByIDTx(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := e.attendance.MarkLeftTx(ctx, tx, episode.ID, now); err != nil {
		return nil, err
	}

	// Cash refund only while the refund window is open. Past the cutoff
	// the charge stays linked to the episode; a later re-join treats it
	// as still paying for the slot.
	if episode.PaymentEntryID != nil {
		refundable := ev.RefundCutoff == nil || now.Before(*ev.RefundCutoff)
		if refundable {
			original, err := e.ledger.GetTx(ctx, tx, *episode.PaymentEntryID)
			if err != nil {
				return nil, fmt.Errorf("load original charge: %w", err)
			}
			reversal := &model.LedgerEntry{
				UserID:      userID,
				EventID:     &ev.ID,
				AmountCents: -original.AmountCents,
				Description: fmt.Sprintf("refund: %s", ev.Title),
			}
			if err := e.ledger.AppendTx(ctx, tx, reversal); err != nil {
				return nil, fmt.Errorf("append refund: %w", err)
			}
			if err := e.attendance.ClearPaymentEntryTx(ctx, tx, episode.ID); err != nil {
				return nil, err
			}
		}
	}

	// Session credits are always returned, unlike cash.
	if episode.UsedFreeSession {
		if err := e.users.AdjustFreeSessionsTx(ctx, tx, userID, 1); err != nil {
			return nil, err
		}
	}

	var after []func()

	// Coach safety cascade: never leave attendees in an uncoached event.
	if user.IsInstructor && !ev.IsCanceled {
		instructors, err := e.attendance.CountInstructorsAttendingTx(ctx, tx, ev.ID, userID)
		if err != nil {
			return nil, err
		}
		remaining, err := e.attendance.CountAttendingTx(ctx, tx, ev.ID, 0)
		if err != nil {
			return nil, err
		}
		if remaining > 0 && instructors == 0 {
			if err := e.events.MarkCanceledTx(ctx, tx, ev.ID); err != nil {
				return nil, err
			}
			ev.IsCanceled = true
			e.log.Warn("event auto-canceled: last instructor left",
				zap.Uint64("event_id", ev.ID), zap.Uint64("user_id", userID))
			payload := queue.EventAutoCanceledEvent{
				EventID:    ev.ID,
				Title:      ev.Title,
				StartsAt:   ev.StartsAt.UTC().Format(time.RFC3339),
				CanceledAt: now.Format(time.RFC3339),
			}
			after = append(after, func() {
				if e.publisher != nil {
					e.publisher.EventAutoCanceled(context.Background(), payload)
				}
			})
		}
	}

	if !ev.IsCanceled {
		promoted, err := e.promoteTx(ctx, tx, ev, minBalance)
		if err != nil {
			return nil, err
		}
		after = append(after, promoted...)
	}
	return after, nil
}

// promoteTx drains the waitlist into freed capacity. It is an explicit
// loop, not recursion: each pass re-checks capacity, pops the FIFO head,
// removes it and runs the normal join path on that user's behalf,
// charging them like a direct join. A user whose promotion a rule refuses
// is skipped so a blocked user cannot stall the line; entries pointing at
// vanished users are integrity violations, logged and skipped.
func (e *Engine) promoteTx(ctx context.Context, tx *sql.Tx, ev model.Event, minBalance int64) ([]func(), error) {
	var after []func()
	for {
		if ev.MaxAttendees > 0 {
			attending, err := e.attendance.CountAttendingTx(ctx, tx, ev.ID, 0)
			if err != nil {
				return nil, err
			}
			if attending >= ev.MaxAttendees {
				break
			}
		}
		entry, err := e.waitlist.NextInLineTx(ctx, tx, ev.ID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		if err := e.waitlist.RemoveTx(ctx, tx, entry.ID); err != nil {
			return nil, err
		}
		err = e.attendTx(ctx, tx, ev, entry.UserID, minBalance)
		if err != nil {
			if d, ok := AsDenial(err); ok {
				e.log.Warn("waitlist promotion skipped",
					zap.Uint64("event_id", ev.ID),
					zap.Uint64("user_id", entry.UserID),
					zap.String("reason", d.Reason))
				continue
			}
			if errors.Is(err, ErrUserNotFound) {
				e.log.Warn("waitlist entry for missing user skipped",
					zap.Uint64("event_id", ev.ID),
					zap.Uint64("user_id", entry.UserID))
				continue
			}
			return nil, err
		}
		e.log.Info("waitlist promotion",
			zap.Uint64("event_id", ev.ID), zap.Uint64("user_id", entry.UserID))
		payload := queue.AttendancePromotedEvent{
			EventID:    ev.ID,
			UserID:     entry.UserID,
			Title:      ev.Title,
			StartsAt:   ev.StartsAt.UTC().Format(time.RFC3339),
			PromotedAt: e.now().Format(time.RFC3339),
		}
		after = append(after, func() {
			if e.publisher != nil {
				e.publisher.AttendancePromoted(context.Background(), payload)
			}
		})
	}
	return after, nil
}

// attendTx runs the rule check and, on approval, the join mutation for
// one user inside an open transaction. It is shared by direct joins and
// waitlist promotions so both paths obey identical rules and funding.
func (e *Engine) attendTx(ctx context.Context, tx *sql.Tx, ev model.Event, userID uint64, minBalance int64) error {
	state, episode, err := e.joinStateTx(ctx, tx, ev, userID, minBalance)
	if err != nil {
		return err
	}
	if dec := rules.CanJoin(state); !dec.OK {
		return denialOf(dec)
	}
	now := e.now()
	user := state.Candidate

	// Slot re-use: a still-linked payment from a prior unrefunded episode
	// keeps covering the slot, so no new charge and no session debit.
	paidAlready := episode != nil && episode.PaymentEntryID != nil

	chargeCash := !paidAlready && user.IsMember && ev.UpfrontCostCents > 0
	useSession := !paidAlready && !user.IsMember

	var episodeID uint64
	if episode != nil {
		episodeID = episode.ID
		if err := e.attendance.ReactivateTx(ctx, tx, episodeID, useSession, now); err != nil {
			return err
		}
	} else {
		episodeID, err = e.attendance.CreateTx(ctx, tx, ev.ID, userID, useSession, now)
		if err != nil {
			return err
		}
	}

	if chargeCash {
		entry := &model.LedgerEntry{
			UserID:      userID,
			EventID:     &ev.ID,
			AmountCents: -ev.UpfrontCostCents,
			Description: fmt.Sprintf("event fee: %s", ev.Title),
		}
		if err := e.ledger.AppendTx(ctx, tx, entry); err != nil {
			return fmt.Errorf("append charge: %w", err)
		}
		if err := e.attendance.SetPaymentEntryTx(ctx, tx, episodeID, entry.ID); err != nil {
			return err
		}
	}
	if useSession {
		if err := e.users.AdjustFreeSessionsTx(ctx, tx, userID, -1); err != nil {
			return err
		}
	}
	return nil
}

// joinStateTx assembles the rule snapshot for (event, user) inside an
// open transaction. The returned episode is the existing attendance row,
// or nil when the user has never joined this event.
func (e *Engine) joinStateTx(ctx context.Context, tx *sql.Tx, ev model.Event, userID uint64, minBalance int64) (rules.JoinState, *model.Attendance, error) {
	state := rules.JoinState{
		Now:             e.now(),
		Event:           ev,
		MinBalanceCents: minBalance,
	}
	if userID == 0 {
		return state, nil, nil // rules deny unauthenticated
	}
	user, err := e.users.GetByIDTx(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil, ErrUserNotFound
	}
	if err != nil {
		return state, nil, err
	}
	state.Candidate = &user

	state.Tags, err = e.tags.ListByEventTx(ctx, tx, ev.ID)
	if err != nil {
		return state, nil, err
	}
	state.AttendingCount, err = e.attendance.CountAttendingTx(ctx, tx, ev.ID, userID)
	if err != nil {
		return state, nil, err
	}
	state.InstructorsAttending, err = e.attendance.CountInstructorsAttendingTx(ctx, tx, ev.ID, userID)
	if err != nil {
		return state, nil, err
	}
	state.BalanceCents, err = e.ledger.BalanceTx(ctx, tx, userID)
	if err != nil {
		return state, nil, err
	}

	whitelistTagIDs := make([]uint64, 0, len(state.Tags))
	for _, t := range state.Tags {
		if t.JoinPolicy == model.JoinPolicyWhitelist {
			whitelistTagIDs = append(whitelistTagIDs, t.ID)
		}
	}
	state.Whitelisted, err = e.tags.WhitelistedTagsTx(ctx, tx, userID, whitelistTagIDs)
	if err != nil {
		return state, nil, err
	}

	var episode *model.Attendance
	ep, err := e.attendance.GetByEventUserTx(ctx, tx, ev.ID, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return state, nil, err
	}
	if err == nil {
		episode = &ep
		state.AlreadyAttending = ep.IsAttending
	}
	return state, episode, nil
}

// PreviewJoin evaluates the join rules without mutating anything. The
// snapshot is read in a read-only transaction without the event lock, so
// a preview can race a concurrent mutation; the real Attend re-validates.
func (e *Engine) PreviewJoin(ctx context.Context, eventID, userID uint64) (rules.Decision, error) {
	minBalance, err := e.settings.GetInt(ctx, repository.SettingMinBalanceCents, defaultMinBalanceCents)
	if err != nil {
		return rules.Decision{}, fmt.Errorf("load settings: %w", err)
	}
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return rules.Decision{}, err
	}
	defer func() { _ = tx.Rollback() }()
	ev, err := e.events.GetByIDTx(ctx, tx, eventID)
	if err != nil {
		return rules.Decision{}, err
	}
	state, _, err := e.joinStateTx(ctx, tx, ev, userID, minBalance)
	if err != nil {
		return rules.Decision{}, err
	}
	return rules.CanJoin(state), nil
}

// Enqueue places the user on the event's waitlist. A waitlist only makes
// sense for an event that is open and at capacity, so a canceled, ended,
// unlimited or not-yet-full event refuses the queue, as does a user who
// already holds a slot. The check runs under the event lock so a queue
// cannot race a leave that would have freed capacity. Re-queueing while
// already in line is idempotent and keeps the original position.
func (e *Engine) Enqueue(ctx context.Context, eventID, userID uint64) error {
	if userID == 0 {
		return &Denial{Code: http.StatusUnauthorized, Reason: rules.ReasonUnauthenticated}
	}
	return e.withEventTx(ctx, func(tx *sql.Tx) ([]func(), error) {
		ev, err := e.events.GetForUpdateTx(ctx, tx, eventID)
		if err != nil {
			return nil, err
		}
		now := e.now()
		switch {
		case ev.IsCanceled:
			return nil, &Denial{Code: http.StatusBadRequest, Reason: rules.ReasonCanceled}
		case !now.Before(ev.EndsAt):
			return nil, &Denial{Code: http.StatusBadRequest, Reason: rules.ReasonEnded}
		}
		episode, err := e.attendance.GetByEventUserTx(ctx, tx, ev.ID, userID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err == nil && episode.IsAttending {
			return nil, &Denial{Code: http.StatusBadRequest, Reason: rules.ReasonAlreadyAttending}
		}
		if ev.MaxAttendees <= 0 {
			return nil, &Denial{Code: http.StatusBadRequest, Reason: ReasonEventNotFull}
		}
		attending, err := e.attendance.CountAttendingTx(ctx, tx, ev.ID, 0)
		if err != nil {
			return nil, err
		}
		if attending < ev.MaxAttendees {
			return nil, &Denial{Code: http.StatusBadRequest, Reason: ReasonEventNotFull}
		}
		return nil, e.waitlist.JoinTx(ctx, tx, ev.ID, userID, now)
	})
}

// withEventTx runs fn inside a transaction, rolling back on error and
// committing otherwise. Lock conflicts (deadlock, lock wait timeout) are
// retried with a bounded fibonacci backoff since they reflect transient
// contention on the event row, not a business failure; every other error
// aborts immediately. Hooks returned by fn run after a successful commit.
func (e *Engine) withEventTx(ctx context.Context, fn func(tx *sql.Tx) ([]func(), error)) error {
	var after []func()
	backoff := retry.WithMaxRetries(maxTxRetries, retry.NewFibonacci(25*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		after = nil
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		hooks, err := fn(tx)
		if err != nil {
			if isLockConflict(err) {
				return retry.RetryableError(fmt.Errorf("%w: %v", ErrConcurrencyConflict, err))
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			if isLockConflict(err) {
				return retry.RetryableError(fmt.Errorf("%w: %v", ErrConcurrencyConflict, err))
			}
			return err
		}
		committed = true
		after = hooks
		return nil
	})
	if err != nil {
		return err
	}
	for _, hook := range after {
		hook()
	}
	return nil
}
