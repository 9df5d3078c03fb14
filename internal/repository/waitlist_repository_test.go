package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*WaitlistRepo, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewWaitlistRepo(db), mock, func() { db.Close() }
}

func TestWaitlistJoinIdempotent(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO waitlist")).
		WithArgs(uint64(5), uint64(7), now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Second join hits the duplicate key path, zero rows changed, no error.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO waitlist")).
		WithArgs(uint64(5), uint64(7), now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := repo.db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.JoinTx(context.Background(), tx, 5, 7, now))
	require.NoError(t, repo.JoinTx(context.Background(), tx, 5, 7, now))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistNextInLineFIFO(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()
	joined := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY joined_at ASC, id ASC")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "joined_at"}).
			AddRow(11, 5, 7, joined))

	tx, err := repo.db.Begin()
	require.NoError(t, err)
	entry, err := repo.NextInLineTx(context.Background(), tx, 5)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, uint64(11), entry.ID)
	require.Equal(t, uint64(7), entry.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistNextInLineEmpty(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY joined_at ASC, id ASC")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "joined_at"}))

	tx, err := repo.db.Begin()
	require.NoError(t, err)
	entry, err := repo.NextInLineTx(context.Background(), tx, 5)
	require.NoError(t, err)
	require.Nil(t, entry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistPosition(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()
	joined := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, joined_at FROM waitlist WHERE event_id = ? AND user_id = ?")).
		WithArgs(uint64(5), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "joined_at"}).AddRow(11, joined))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM waitlist")).
		WithArgs(uint64(5), joined, joined, uint64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	pos, err := repo.Position(context.Background(), 5, 7)
	require.NoError(t, err)
	require.Equal(t, 3, pos) // two ahead, third in line
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistPositionNotQueued(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, joined_at FROM waitlist WHERE event_id = ? AND user_id = ?")).
		WithArgs(uint64(5), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "joined_at"}))

	pos, err := repo.Position(context.Background(), 5, 7)
	require.NoError(t, err)
	require.Zero(t, pos)
	require.NoError(t, mock.ExpectationsWereMet())
}
