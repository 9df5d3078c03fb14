package repository

import (
	"context"
	"database/sql"
	"errors"
)

// PermissionRepo provides access to the RBAC tables: roles, permissions,
// the grant tables (role_permissions, user_roles, user_permissions) and
// the managed-tag relations (role_managed_tags, user_managed_tags) that
// back scoped capabilities. The resolver in internal/perm turns these
// queries into yes/no answers; this layer only answers existence
// questions.
type PermissionRepo struct {
	db *sql.DB
}

// NewPermissionRepo returns a new PermissionRepo bound to the given database.
func NewPermissionRepo(db *sql.DB) *PermissionRepo { return &PermissionRepo{db: db} }

// RoleGrants reports whether any role held by the user grants the slug.
func (r *PermissionRepo) RoleGrants(ctx context.Context, userID uint64, slug string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		   FROM user_roles ur
		   JOIN role_permissions rp ON rp.role_id = ur.role_id
		   JOIN permissions p ON p.id = rp.permission_id
		  WHERE ur.user_id = ? AND p.slug = ?`,
		userID, slug).Scan(&n)
	return n > 0, err
}

// DirectGrants reports whether the user holds the slug as a direct grant.
func (r *PermissionRepo) DirectGrants(ctx context.Context, userID uint64, slug string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		   FROM user_permissions up
		   JOIN permissions p ON p.id = up.permission_id
		  WHERE up.user_id = ? AND p.slug = ?`,
		userID, slug).Scan(&n)
	return n > 0, err
}

// HasAnyManagedTag reports whether at least one managed-tag relation
// exists for the user, directly or through a held role. This existence
// check is the whole meaning of a scoped capability: the permission slug
// string is never consulted.
func (r *PermissionRepo) HasAnyManagedTag(ctx context.Context, userID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM user_managed_tags WHERE user_id = ?)
		      + (SELECT COUNT(*)
		           FROM user_roles ur
		           JOIN role_managed_tags rmt ON rmt.role_id = ur.role_id
		          WHERE ur.user_id = ?)`,
		userID, userID).Scan(&n)
	return n > 0, err
}

// ManagesAnyEventTag reports whether the set of tags on the event
// intersects the set of tags the user manages, directly or via role.
func (r *PermissionRepo) ManagesAnyEventTag(ctx context.Context, userID, eventID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		   FROM event_tags et
		  WHERE et.event_id = ?
		    AND (et.tag_id IN (SELECT tag_id FROM user_managed_tags WHERE user_id = ?)
		      OR et.tag_id IN (SELECT rmt.tag_id
		                         FROM user_roles ur
		                         JOIN role_managed_tags rmt ON rmt.role_id = ur.role_id
		                        WHERE ur.user_id = ?))`,
		eventID, userID, userID).Scan(&n)
	return n > 0, err
}

// WipeAllGrantsTx removes every role assignment, direct permission grant
// and direct managed-tag delegation in the system. Role definitions and
// role-level managed-tag templates survive so the incoming president can
// re-delegate without rebuilding the catalog. Only the president transfer
// calls this, inside its all-or-nothing transaction.
func (r *PermissionRepo) WipeAllGrantsTx(ctx context.Context, tx *sql.Tx) error {
	for _, q := range []string{
		"DELETE FROM user_roles",
		"DELETE FROM user_permissions",
		"DELETE FROM user_managed_tags",
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// ErrRoleNotFound is returned when a role name does not resolve to a row.
var ErrRoleNotFound = errors.New("role not found")

// AssignRoleByNameTx grants the named role to a user within a transaction.
func (r *PermissionRepo) AssignRoleByNameTx(ctx context.Context, tx *sql.Tx, userID uint64, roleName string) error {
	var roleID uint64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM roles WHERE name = ?", roleName).Scan(&roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRoleNotFound
	}
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE role_id = role_id`, userID, roleID)
	return err
}
