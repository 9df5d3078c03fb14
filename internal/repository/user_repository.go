package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/ascentclub/server/internal/model"
	"github.com/ascentclub/server/internal/utils"
)

// userColumns is the select list shared by every user query so the scan
// order stays in one place.
const userColumns = `id, email, password_hash, display_name, difficulty_level,
       is_member, free_sessions, is_instructor, filled_legal_info,
       agrees_to_keep_health_data, emergency_contact, health_notes,
       date_of_birth, is_active, created_at, updated_at`

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts a user and returns its ID. New accounts start as
// non-member guests with zero free sessions; membership, credits and
// instructor status are granted through the admin paths.
func (r *UserRepo) Create(ctx context.Context, email, password, displayName string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, display_name) VALUES (?,?,?)",
		email, hash, displayName)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// GetByIDTx fetches a user inside an existing transaction. The attendance
// engine uses this so the rule snapshot and the mutation read the same
// user state.
func (r *UserRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.User, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// AdjustFreeSessionsTx adds delta (may be negative) to a user's free
// session counter within a transaction. The counter never drops below
// zero; the rules layer rejects joins that would need a credit the user
// does not have, so a violation here indicates a bug upstream.
func (r *UserRepo) AdjustFreeSessionsTx(ctx context.Context, tx *sql.Tx, userID uint64, delta int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET free_sessions = free_sessions + ? WHERE id = ?",
		delta, userID)
	return err
}

// RedactTx nulls the PII field set of a single user and resets
// filled_legal_info, preserving the row for attendance and ledger
// foreign keys. Used by account deletion.
func (r *UserRepo) RedactTx(ctx context.Context, tx *sql.Tx, userID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE users
		    SET emergency_contact = NULL, health_notes = NULL,
		        date_of_birth = NULL, filled_legal_info = 0, is_active = 0
		  WHERE id = ?`, userID)
	return err
}

// RedactNonConsentingTx scrubs the PII field set of every user who has not
// opted into long-term health data retention. Returns the number of rows
// touched. Part of the president transfer's data-minimization step.
func (r *UserRepo) RedactNonConsentingTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE users
		    SET emergency_contact = NULL, health_notes = NULL,
		        date_of_birth = NULL, filled_legal_info = 0
		  WHERE agrees_to_keep_health_data = 0`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// rowScanner lets scanUser work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var emergency, notes sql.NullString
	var dob sql.NullTime
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.DifficultyLevel,
		&u.IsMember, &u.FreeSessions, &u.IsInstructor, &u.FilledLegalInfo,
		&u.AgreesToKeepHealthData, &emergency, &notes,
		&dob, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	if emergency.Valid {
		v := emergency.String
		u.EmergencyContact = &v
	}
	if notes.Valid {
		v := notes.String
		u.HealthNotes = &v
	}
	if dob.Valid {
		v := dob.Time
		u.DateOfBirth = &v
	}
	return u, nil
}
