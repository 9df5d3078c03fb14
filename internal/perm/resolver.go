// Package perm implements the scoped permission resolver. It answers
// "may this user do X" questions for handlers and the attendance engine.
//
// Two kinds of capability exist. Global capabilities are plain slug
// grants, held directly or through a role. Scoped capabilities (slugs
// ending in ".scoped") are never matched against permission rows at all:
// a user has a scoped capability exactly when at least one managed-tag
// relation exists for them. This is deliberate — "scoped capability is
// existential over managed-tag relations" — and it is kept as a named
// predicate here so it cannot quietly regress into string equality
// against the grant tables.
package perm

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ascentclub/server/internal/repository"
)

// Capability slugs known to the application.
const (
	PermManageEvents       = "events.manage"        // global event management
	PermManageEventsScoped = "events.manage.scoped" // resolved existentially
	PermViewMembers        = "members.view"         // see member PII on rosters
	PermTransferPresidency = "president.transfer"   // run the annual handover
)

// ScopedSuffix marks slugs resolved through managed-tag relations.
const ScopedSuffix = ".scoped"

// Resolver evaluates capabilities against the RBAC tables. All checks
// fail closed: unknown users, unknown slugs and database errors resolve
// to false, never to an error surfaced to the caller — authorization is
// the one place where a degraded answer must be "no".
type Resolver struct {
	perms *repository.PermissionRepo
	log   *zap.Logger
}

// NewResolver returns a Resolver over the given permission repository.
func NewResolver(perms *repository.PermissionRepo, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{perms: perms, log: log}
}

// HasPermission reports whether the user holds the named capability.
// Resolution order: role grants, then direct grants. Scoped slugs skip
// both and resolve through hasScopedGrant instead.
func (r *Resolver) HasPermission(ctx context.Context, userID uint64, slug string) bool {
	if userID == 0 || slug == "" {
		return false
	}
	if strings.HasSuffix(slug, ScopedSuffix) {
		return r.hasScopedGrant(ctx, userID)
	}
	ok, err := r.perms.RoleGrants(ctx, userID, slug)
	if err != nil {
		r.log.Warn("permission check failed", zap.Uint64("user_id", userID), zap.String("slug", slug), zap.Error(err))
		return false
	}
	if ok {
		return true
	}
	ok, err = r.perms.DirectGrants(ctx, userID, slug)
	if err != nil {
		r.log.Warn("permission check failed", zap.Uint64("user_id", userID), zap.String("slug", slug), zap.Error(err))
		return false
	}
	return ok
}

// hasScopedGrant is the existential scoped-capability rule: true iff at
// least one managed-tag relation exists for the user, directly or via a
// held role. A user nominally granted a ".scoped" slug but managing zero
// tags has no scoped capability.
func (r *Resolver) hasScopedGrant(ctx context.Context, userID uint64) bool {
	ok, err := r.perms.HasAnyManagedTag(ctx, userID)
	if err != nil {
		r.log.Warn("scoped grant check failed", zap.Uint64("user_id", userID), zap.Error(err))
		return false
	}
	return ok
}

// CanManageEvent reports whether the user may manage the given event:
// either through the global events.manage capability, or because the
// event carries at least one tag the user manages.
func (r *Resolver) CanManageEvent(ctx context.Context, userID, eventID uint64) bool {
	if userID == 0 {
		return false
	}
	if r.HasPermission(ctx, userID, PermManageEvents) {
		return true
	}
	ok, err := r.perms.ManagesAnyEventTag(ctx, userID, eventID)
	if err != nil {
		r.log.Warn("event scope check failed", zap.Uint64("user_id", userID), zap.Uint64("event_id", eventID), zap.Error(err))
		return false
	}
	return ok
}

// CanViewMemberDetails reports whether attendee rosters shown to this
// user for this event should include member PII (email, balance). Global
// members.view holders see everything; scoped managers see details for
// the events they manage.
func (r *Resolver) CanViewMemberDetails(ctx context.Context, userID, eventID uint64) bool {
	if userID == 0 {
		return false
	}
	if r.HasPermission(ctx, userID, PermViewMembers) {
		return true
	}
	return r.CanManageEvent(ctx, userID, eventID)
}
