package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
)

// SettingRepo reads process-wide tunables from the settings table. The
// attendance rules depend on two of them: min_balance_cents (the debt
// floor below which joining is refused) and guest_max_difficulty (the
// view ceiling for unauthenticated browsing). The administrative write
// path lives outside this service; here settings are read-only.
//
// The repo is injected into the engine and handlers as a provider rather
// than read through a package-level singleton, so tests can substitute
// fixed values and concurrent test runs do not share hidden state.
type SettingRepo struct {
	db *sql.DB
}

// NewSettingRepo returns a new SettingRepo bound to the given database.
func NewSettingRepo(db *sql.DB) *SettingRepo { return &SettingRepo{db: db} }

// GetInt returns the integer value of a key, or def when the key is
// absent or malformed. Settings misconfiguration must never take the
// attendance path down, so parse errors degrade to the default.
func (r *SettingRepo) GetInt(ctx context.Context, key string, def int64) (int64, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		"SELECT v FROM settings WHERE k = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	n, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil {
		return def, nil
	}
	return n, nil
}

// GetFloat returns the float value of a key, or def when the key is
// absent or malformed. It completes the settings accessor pair for
// fractional tunables (fees, multipliers); the keys seeded today are all
// integers, so no built-in caller reaches it yet.
func (r *SettingRepo) GetFloat(ctx context.Context, key string, def float64) (float64, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		"SELECT v FROM settings WHERE k = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	f, perr := strconv.ParseFloat(raw, 64)
	if perr != nil {
		return def, nil
	}
	return f, nil
}

// Keys used by the attendance rules.
const (
	SettingMinBalanceCents    = "min_balance_cents"
	SettingGuestMaxDifficulty = "guest_max_difficulty"
)
