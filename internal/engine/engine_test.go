package engine

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ascentclub/server/internal/queue"
	"github.com/ascentclub/server/internal/repository"
	"github.com/ascentclub/server/internal/rules"
)

var now = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

type fixedSettings struct {
	minBalance int64
}

func (s fixedSettings) GetInt(_ context.Context, key string, def int64) (int64, error) {
	if key == repository.SettingMinBalanceCents {
		return s.minBalance, nil
	}
	return def, nil
}

type recordingPublisher struct {
	promoted     []queue.AttendancePromotedEvent
	autoCanceled []queue.EventAutoCanceledEvent
}

func (p *recordingPublisher) AttendancePromoted(_ context.Context, ev queue.AttendancePromotedEvent) {
	p.promoted = append(p.promoted, ev)
}

func (p *recordingPublisher) EventAutoCanceled(_ context.Context, ev queue.EventAutoCanceledEvent) {
	p.autoCanceled = append(p.autoCanceled, ev)
}

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock, *recordingPublisher, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	pub := &recordingPublisher{}
	eng := New(db,
		repository.NewEventRepo(db),
		repository.NewUserRepo(db),
		repository.NewTagRepo(db),
		repository.NewAttendanceRepo(db),
		repository.NewLedgerRepo(db),
		repository.NewWaitlistRepo(db),
		fixedSettings{minBalance: -5000},
		pub, nil)
	eng.now = func() time.Time { return now }
	return eng, mock, pub, func() { db.Close() }
}

var eventCols = []string{"id", "title", "starts_at", "ends_at", "difficulty_level",
	"max_attendees", "upfront_cost_cents", "refund_cutoff", "is_canceled",
	"signup_required", "created_at", "updated_at"}

var userCols = []string{"id", "email", "password_hash", "display_name", "difficulty_level",
	"is_member", "free_sessions", "is_instructor", "filled_legal_info",
	"agrees_to_keep_health_data", "emergency_contact", "health_notes",
	"date_of_birth", "is_active", "created_at", "updated_at"}

var attendanceCols = []string{"id", "event_id", "user_id", "is_attending",
	"used_free_session", "payment_entry_id", "joined_at", "left_at"}

// eventRow is a future event with capacity and a 5.00 upfront fee.
func eventRow(maxAttendees int, refundCutoff interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(eventCols).AddRow(
		5, "evening session", now.Add(2*time.Hour), now.Add(4*time.Hour),
		0, maxAttendees, 500, refundCutoff, false, true, now, now)
}

func userRow(id uint64, member, instructor bool, freeSessions int) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).AddRow(
		id, "u@example.com", "hash", "User", 3,
		member, freeSessions, instructor, true,
		false, nil, nil, nil, true, now, now)
}

func count(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func noTags() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "min_difficulty", "join_policy"})
}

// expectJoinSnapshot queues the read sequence joinStateTx issues for an
// event without whitelist tags.
func expectJoinSnapshot(mock sqlmock.Sqlmock, userID uint64, user *sqlmock.Rows,
	attending, instructors int, balance int64, episode *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(userID).WillReturnRows(user)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tags t")).
		WithArgs(uint64(5)).WillReturnRows(noTags())
	mock.ExpectQuery(regexp.QuoteMeta("is_attending = 1 AND user_id <> ?")).
		WithArgs(uint64(5), userID).WillReturnRows(count(attending))
	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = a.user_id")).
		WithArgs(uint64(5), userID).WillReturnRows(count(instructors))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount_cents), 0)")).
		WithArgs(userID).WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(balance))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE event_id = ? AND user_id = ?")).
		WithArgs(uint64(5), userID).WillReturnRows(episode)
}

func TestAttendChargesMember(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(10, nil))
	expectJoinSnapshot(mock, 7, userRow(7, true, true, 0), 3, 0, 0,
		sqlmock.NewRows(attendanceCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance")).
		WithArgs(uint64(5), uint64(7), false, now).
		WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WithArgs(uint64(7), uint64(5), int64(-500), "event fee: evening session").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET payment_entry_id = ?")).
		WithArgs(uint64(42), uint64(31)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, eng.Attend(context.Background(), 5, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendDeniesDuplicateJoinWithoutNewCharge(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	episode := sqlmock.NewRows(attendanceCols).
		AddRow(31, 5, 7, true, false, 42, now.Add(-time.Hour), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(10, nil))
	expectJoinSnapshot(mock, 7, userRow(7, true, true, 0), 3, 0, -500, episode)
	mock.ExpectRollback()

	err := eng.Attend(context.Background(), 5, 7)
	d, ok := AsDenial(err)
	require.True(t, ok)
	require.Equal(t, rules.ReasonAlreadyAttending, d.Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendSpendsSessionForNonMember(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(10, nil))
	// Non-member with credits; an instructor already attends.
	expectJoinSnapshot(mock, 8, userRow(8, false, false, 2), 3, 1, 0,
		sqlmock.NewRows(attendanceCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance")).
		WithArgs(uint64(5), uint64(8), true, now).
		WillReturnResult(sqlmock.NewResult(32, 1))
	// Session debit instead of a ledger charge, even on a paid event.
	mock.ExpectExec(regexp.QuoteMeta("free_sessions = free_sessions + ?")).
		WithArgs(-1, uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, eng.Attend(context.Background(), 5, 8))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRefundsAndPromotes(t *testing.T) {
	eng, mock, pub, closeDB := newTestEngine(t)
	defer closeDB()

	leaverEpisode := sqlmock.NewRows(attendanceCols).
		AddRow(31, 5, 7, true, false, 42, now.Add(-time.Hour), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(1, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE event_id = ? AND user_id = ?")).
		WithArgs(uint64(5), uint64(7)).WillReturnRows(leaverEpisode)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(7)).WillReturnRows(userRow(7, true, false, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET is_attending = 0, left_at = ?")).
		WithArgs(now, uint64(31)).WillReturnResult(sqlmock.NewResult(0, 1))

	// Refund window open (no cutoff): reverse the original charge.
	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries WHERE id = ?")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "event_id", "amount_cents", "description", "created_at"}).
			AddRow(42, 7, 5, -500, "event fee: evening session", now.Add(-time.Hour)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WithArgs(uint64(7), uint64(5), int64(500), "refund: evening session").
		WillReturnResult(sqlmock.NewResult(43, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET payment_entry_id = NULL")).
		WithArgs(uint64(31)).WillReturnResult(sqlmock.NewResult(0, 1))

	// Promotion drain: one slot free, instructor member 9 is next in line
	// and gets charged like a direct join.
	mock.ExpectQuery(regexp.QuoteMeta("is_attending = 1 AND user_id <> ?")).
		WithArgs(uint64(5), uint64(0)).WillReturnRows(count(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY joined_at ASC, id ASC")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "joined_at"}).
			AddRow(11, 5, 9, now.Add(-30*time.Minute)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM waitlist WHERE id = ?")).
		WithArgs(uint64(11)).WillReturnResult(sqlmock.NewResult(0, 1))
	expectJoinSnapshot(mock, 9, userRow(9, true, true, 0), 0, 0, 0,
		sqlmock.NewRows(attendanceCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance")).
		WithArgs(uint64(5), uint64(9), false, now).
		WillReturnResult(sqlmock.NewResult(33, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WithArgs(uint64(9), uint64(5), int64(-500), "event fee: evening session").
		WillReturnResult(sqlmock.NewResult(44, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET payment_entry_id = ?")).
		WithArgs(uint64(44), uint64(33)).WillReturnResult(sqlmock.NewResult(0, 1))

	// Capacity reached, drain stops.
	mock.ExpectQuery(regexp.QuoteMeta("is_attending = 1 AND user_id <> ?")).
		WithArgs(uint64(5), uint64(0)).WillReturnRows(count(1))
	mock.ExpectCommit()

	require.NoError(t, eng.Leave(context.Background(), 5, 7))
	require.Len(t, pub.promoted, 1)
	require.Equal(t, uint64(9), pub.promoted[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveAfterCutoffKeepsCharge(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	episode := sqlmock.NewRows(attendanceCols).
		AddRow(31, 5, 7, true, false, 42, now.Add(-time.Hour), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(0, now.Add(-10*time.Minute)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE event_id = ? AND user_id = ?")).
		WithArgs(uint64(5), uint64(7)).WillReturnRows(episode)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(7)).WillReturnRows(userRow(7, true, false, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET is_attending = 0, left_at = ?")).
		WithArgs(now, uint64(31)).WillReturnResult(sqlmock.NewResult(0, 1))

	// No refund past the cutoff; the payment link survives for slot
	// re-use. Empty waitlist ends the drain immediately.
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY joined_at ASC, id ASC")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "joined_at"}))
	mock.ExpectCommit()

	require.NoError(t, eng.Leave(context.Background(), 5, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveLastInstructorAutoCancels(t *testing.T) {
	eng, mock, pub, closeDB := newTestEngine(t)
	defer closeDB()

	episode := sqlmock.NewRows(attendanceCols).
		AddRow(31, 5, 7, true, false, nil, now.Add(-time.Hour), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(10, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE event_id = ? AND user_id = ?")).
		WithArgs(uint64(5), uint64(7)).WillReturnRows(episode)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(7)).WillReturnRows(userRow(7, true, true, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET is_attending = 0, left_at = ?")).
		WithArgs(now, uint64(31)).WillReturnResult(sqlmock.NewResult(0, 1))

	// The leaver was the only instructor and attendees remain.
	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = a.user_id")).
		WithArgs(uint64(5), uint64(7)).WillReturnRows(count(0))
	mock.ExpectQuery(regexp.QuoteMeta("is_attending = 1 AND user_id <> ?")).
		WithArgs(uint64(5), uint64(0)).WillReturnRows(count(2))
	mock.ExpectExec(regexp.QuoteMeta("SET is_canceled = 1")).
		WithArgs(uint64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, eng.Leave(context.Background(), 5, 7))
	require.Len(t, pub.autoCanceled, 1)
	require.Equal(t, uint64(5), pub.autoCanceled[0].EventID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveWhenNotAttending(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(10, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE event_id = ? AND user_id = ?")).
		WithArgs(uint64(5), uint64(7)).WillReturnRows(sqlmock.NewRows(attendanceCols))
	mock.ExpectRollback()

	err := eng.Leave(context.Background(), 5, 7)
	d, ok := AsDenial(err)
	require.True(t, ok)
	require.Equal(t, ReasonNotAttending, d.Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveReturnsSessionCredit(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	// Non-member episode funded by a session credit, no cash charge.
	episode := sqlmock.NewRows(attendanceCols).
		AddRow(32, 5, 8, true, true, nil, now.Add(-time.Hour), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(0, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE event_id = ? AND user_id = ?")).
		WithArgs(uint64(5), uint64(8)).WillReturnRows(episode)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(8)).WillReturnRows(userRow(8, false, false, 2))
	mock.ExpectExec(regexp.QuoteMeta("SET is_attending = 0, left_at = ?")).
		WithArgs(now, uint64(32)).WillReturnResult(sqlmock.NewResult(0, 1))

	// The credit comes back even though cash refunds have a cutoff.
	mock.ExpectExec(regexp.QuoteMeta("free_sessions = free_sessions + ?")).
		WithArgs(1, uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY joined_at ASC, id ASC")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "joined_at"}))
	mock.ExpectCommit()

	require.NoError(t, eng.Leave(context.Background(), 5, 8))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueQueuesOnFullEvent(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(2, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE event_id = ? AND user_id = ?")).
		WithArgs(uint64(5), uint64(7)).WillReturnRows(sqlmock.NewRows(attendanceCols))
	mock.ExpectQuery(regexp.QuoteMeta("is_attending = 1 AND user_id <> ?")).
		WithArgs(uint64(5), uint64(0)).WillReturnRows(count(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO waitlist")).
		WithArgs(uint64(5), uint64(7), now).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	require.NoError(t, eng.Enqueue(context.Background(), 5, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueRejectsOpenCapacity(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(10, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE event_id = ? AND user_id = ?")).
		WithArgs(uint64(5), uint64(7)).WillReturnRows(sqlmock.NewRows(attendanceCols))
	mock.ExpectQuery(regexp.QuoteMeta("is_attending = 1 AND user_id <> ?")).
		WithArgs(uint64(5), uint64(0)).WillReturnRows(count(3))
	mock.ExpectRollback()

	err := eng.Enqueue(context.Background(), 5, 7)
	d, ok := AsDenial(err)
	require.True(t, ok)
	require.Equal(t, ReasonEventNotFull, d.Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueUnknownEvent(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(999)).WillReturnRows(sqlmock.NewRows(eventCols))
	mock.ExpectRollback()

	err := eng.Enqueue(context.Background(), 999, 7)
	require.ErrorIs(t, err, repository.ErrEventNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueDeniesCanceledEvent(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	canceled := sqlmock.NewRows(eventCols).AddRow(
		5, "evening session", now.Add(2*time.Hour), now.Add(4*time.Hour),
		0, 2, 500, nil, true, true, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(canceled)
	mock.ExpectRollback()

	err := eng.Enqueue(context.Background(), 5, 7)
	d, ok := AsDenial(err)
	require.True(t, ok)
	require.Equal(t, rules.ReasonCanceled, d.Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueDeniesEndedEvent(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	ended := sqlmock.NewRows(eventCols).AddRow(
		5, "evening session", now.Add(-4*time.Hour), now.Add(-2*time.Hour),
		0, 2, 500, nil, false, true, now.Add(-24*time.Hour), now.Add(-24*time.Hour))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(ended)
	mock.ExpectRollback()

	err := eng.Enqueue(context.Background(), 5, 7)
	d, ok := AsDenial(err)
	require.True(t, ok)
	require.Equal(t, rules.ReasonEnded, d.Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueDeniesWhileAttending(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	episode := sqlmock.NewRows(attendanceCols).
		AddRow(31, 5, 7, true, false, 42, now.Add(-time.Hour), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(2, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE event_id = ? AND user_id = ?")).
		WithArgs(uint64(5), uint64(7)).WillReturnRows(episode)
	mock.ExpectRollback()

	err := eng.Enqueue(context.Background(), 5, 7)
	d, ok := AsDenial(err)
	require.True(t, ok)
	require.Equal(t, rules.ReasonAlreadyAttending, d.Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendReusesBankedPayment(t *testing.T) {
	eng, mock, _, closeDB := newTestEngine(t)
	defer closeDB()

	// Episode left after the cutoff: not attending, but the charge is
	// still linked. Re-joining costs nothing.
	episode := sqlmock.NewRows(attendanceCols).
		AddRow(31, 5, 7, false, false, 42, now.Add(-2*time.Hour), now.Add(-time.Hour))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(eventRow(10, nil))
	expectJoinSnapshot(mock, 7, userRow(7, true, true, 0), 3, 0, -500, episode)
	mock.ExpectExec(regexp.QuoteMeta("SET is_attending = 1, used_free_session = ?")).
		WithArgs(false, now, uint64(31)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, eng.Attend(context.Background(), 5, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}
