package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ascentclub/server/internal/model"
)

// TagRepo provides access to tags, the event_tags join table and tag
// whitelists. Tags carry two pieces of policy the attendance rules care
// about: an optional difficulty floor and a join policy that can restrict
// joining to whitelisted users.
type TagRepo struct {
	db *sql.DB
}

// NewTagRepo returns a new TagRepo bound to the given database.
func NewTagRepo(db *sql.DB) *TagRepo { return &TagRepo{db: db} }

const tagColumns = `t.id, t.name, t.min_difficulty, t.join_policy`

// ListByEvent returns all tags attached to an event, ordered by name for
// deterministic output.
func (r *TagRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tagColumns+`
		   FROM tags t
		   JOIN event_tags et ON et.tag_id = t.id
		  WHERE et.event_id = ?
		  ORDER BY t.name`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTags(rows)
}

// ListByEventTx is ListByEvent inside an existing transaction, used when
// assembling the rule snapshot under the event lock.
func (r *TagRepo) ListByEventTx(ctx context.Context, tx *sql.Tx, eventID uint64) ([]model.Tag, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+tagColumns+`
		   FROM tags t
		   JOIN event_tags et ON et.tag_id = t.id
		  WHERE et.event_id = ?
		  ORDER BY t.name`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTags(rows)
}

// WhitelistedTagsTx returns the subset of tagIDs for which the user is
// present in the tag whitelist. The rules layer requires membership in
// every whitelist-policy tag of an event, so the caller compares the
// returned set against the full list. Passing an empty slice returns an
// empty set.
func (r *TagRepo) WhitelistedTagsTx(ctx context.Context, tx *sql.Tx, userID uint64, tagIDs []uint64) (map[uint64]bool, error) {
	return whitelistedTags(ctx, tx, userID, tagIDs)
}

// WhitelistedTags is WhitelistedTagsTx outside a transaction, used by
// read paths that filter event listings.
func (r *TagRepo) WhitelistedTags(ctx context.Context, userID uint64, tagIDs []uint64) (map[uint64]bool, error) {
	return whitelistedTags(ctx, r.db, userID, tagIDs)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func whitelistedTags(ctx context.Context, q querier, userID uint64, tagIDs []uint64) (map[uint64]bool, error) {
	out := make(map[uint64]bool, len(tagIDs))
	if len(tagIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(tagIDs))
	args := make([]interface{}, 0, len(tagIDs)+1)
	args = append(args, userID)
	for _, id := range tagIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT tag_id FROM tag_whitelist
	       WHERE user_id = ? AND tag_id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AddToWhitelist inserts a (tag, user) pair; re-adding is a no-op.
func (r *TagRepo) AddToWhitelist(ctx context.Context, tagID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tag_whitelist (tag_id, user_id) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE user_id = user_id`, tagID, userID)
	return err
}

// RemoveFromWhitelist deletes a (tag, user) pair; removing an absent pair
// is a no-op.
func (r *TagRepo) RemoveFromWhitelist(ctx context.Context, tagID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM tag_whitelist WHERE tag_id = ? AND user_id = ?", tagID, userID)
	return err
}

func collectTags(rows *sql.Rows) ([]model.Tag, error) {
	tags := make([]model.Tag, 0)
	for rows.Next() {
		var t model.Tag
		var minDiff sql.NullInt64
		if err := rows.Scan(&t.ID, &t.Name, &minDiff, &t.JoinPolicy); err != nil {
			return nil, err
		}
		if minDiff.Valid {
			v := int(minDiff.Int64)
			t.MinDifficulty = &v
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}
