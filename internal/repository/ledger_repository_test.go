package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ascentclub/server/internal/model"
)

func TestLedgerAppendTxPopulatesID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewLedgerRepo(db)

	eventID := uint64(5)
	entry := &model.LedgerEntry{
		UserID:      7,
		EventID:     &eventID,
		AmountCents: -500,
		Description: "event fee: evening session",
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WithArgs(uint64(7), uint64(5), int64(-500), "event fee: evening session").
		WillReturnResult(sqlmock.NewResult(42, 1))

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.AppendTx(context.Background(), tx, entry))
	require.Equal(t, uint64(42), entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerAppendTxNilEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewLedgerRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WithArgs(uint64(7), nil, int64(2000), "membership top-up").
		WillReturnResult(sqlmock.NewResult(1, 1))

	tx, err := db.Begin()
	require.NoError(t, err)
	entry := &model.LedgerEntry{UserID: 7, AmountCents: 2000, Description: "membership top-up"}
	require.NoError(t, repo.AppendTx(context.Background(), tx, entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerBalanceEmptyHistoryIsZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewLedgerRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries")).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(0))

	bal, err := repo.Balance(context.Background(), 7)
	require.NoError(t, err)
	require.Zero(t, bal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerListByUserBoundsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewLedgerRepo(db)

	empty := func() *sqlmock.Rows {
		return sqlmock.NewRows(
			[]string{"id", "user_id", "event_id", "amount_cents", "description", "created_at"})
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries")).
		WithArgs(uint64(7), MaxLedgerPage).WillReturnRows(empty())
	_, err = repo.ListByUser(context.Background(), 7, 900)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries")).
		WithArgs(uint64(7), DefaultLedgerPage).WillReturnRows(empty())
	_, err = repo.ListByUser(context.Background(), 7, 0)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerGetTxLoadsCharge(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewLedgerRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries WHERE id = ?")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "event_id", "amount_cents", "description", "created_at"}).
			AddRow(42, 7, 5, -500, "event fee: evening session",
				time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)))

	tx, err := db.Begin()
	require.NoError(t, err)
	e, err := repo.GetTx(context.Background(), tx, 42)
	require.NoError(t, err)
	require.Equal(t, int64(-500), e.AmountCents)
	require.NotNil(t, e.EventID)
	require.Equal(t, uint64(5), *e.EventID)
	require.NoError(t, mock.ExpectationsWereMet())
}
