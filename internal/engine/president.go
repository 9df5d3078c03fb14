package engine

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ascentclub/server/internal/utils"
)

// PresidentRoleName is the role assigned to the incoming president.
const PresidentRoleName = "President"

// presidentDeps are the extra repositories the transfer needs beyond the
// attendance set. Kept separate so engine tests do not have to wire them.
type presidentDeps interface {
	WipeAllGrantsTx(ctx context.Context, tx *sql.Tx) error
	AssignRoleByNameTx(ctx context.Context, tx *sql.Tx, userID uint64, roleName string) error
}

// TransferPresident hands the club over to a new president. This is the
// most destructive administrative operation in the system, so the acting
// admin's password is re-verified even though their session already
// authenticated them.
//
// Side effects, all inside one transaction: every role assignment, direct
// permission grant and direct managed-tag delegation is wiped (the new
// president re-delegates from a clean slate); the President role is
// granted to the target; and the PII of every user who has not opted into
// long-term health data retention is scrubbed, per the annual
// data-minimization policy tied to the handover. Partial application is
// unacceptable — a failed scrub must not leave the club without anyone
// holding administrative capability.
func (e *Engine) TransferPresident(ctx context.Context, perms presidentDeps, actorID, targetID uint64, password string) error {
	if password == "" {
		return &Denial{Code: http.StatusBadRequest, Reason: "password required"}
	}
	actor, err := e.users.GetByID(ctx, actorID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(actor.PasswordHash, password) {
		return &Denial{Code: http.StatusForbidden, Reason: "password incorrect"}
	}
	if _, err := e.users.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	return e.withEventTx(ctx, func(tx *sql.Tx) ([]func(), error) {
		if err := perms.WipeAllGrantsTx(ctx, tx); err != nil {
			return nil, err
		}
		if err := perms.AssignRoleByNameTx(ctx, tx, targetID, PresidentRoleName); err != nil {
			return nil, err
		}
		scrubbed, err := e.users.RedactNonConsentingTx(ctx, tx)
		if err != nil {
			return nil, err
		}
		e.log.Info("president transferred",
			zap.Uint64("actor_id", actorID),
			zap.Uint64("target_id", targetID),
			zap.Int64("users_scrubbed", scrubbed))
		return nil, nil
	})
}

// RedactAccount performs the account-deletion redaction: the PII field
// set is nulled and the account deactivated, while the user row itself —
// and with it every attendance and ledger reference — survives.
func (e *Engine) RedactAccount(ctx context.Context, userID uint64) error {
	if _, err := e.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	return e.withEventTx(ctx, func(tx *sql.Tx) ([]func(), error) {
		return nil, e.users.RedactTx(ctx, tx, userID)
	})
}
