package model

import "time"

// User represents a club member record as stored in the `users` table.
// Each field corresponds to a column in the database. The json tags are
// omitted here because these structs are primarily used internally by the
// repository layer; handlers define separate response types with
// appropriate JSON tags.
//
// The PII columns (EmergencyContact, HealthNotes, DateOfBirth) form the
// redaction field set: account deletion and the annual president handover
// null them out while the row itself survives, so attendance and ledger
// history keep a valid foreign key target.
//
// Fields:
//  ID                     – primary key identifier of the user.
//  Email                  – unique email address.
//  PasswordHash           – bcrypt hashed password.
//  DisplayName            – name shown on rosters.
//  DifficultyLevel        – self-rated skill level, 1–5.
//  IsMember               – paying member flag; members are charged cash,
//                           non-members consume free session credits.
//  FreeSessions           – remaining trial session credits (>= 0).
//  IsInstructor           – qualified instructor flag; drives coach safety.
//  FilledLegalInfo        – whether the liability/medical form is complete.
//  AgreesToKeepHealthData – opt-in to long-term retention of the PII set.
//  EmergencyContact       – nullable PII.
//  HealthNotes            – nullable PII.
//  DateOfBirth            – nullable PII.
//  IsActive               – whether the account is active.
//  CreatedAt              – timestamp of creation.
//  UpdatedAt              – timestamp of last update.
type User struct {
	ID                     uint64     // users.id
	Email                  string     // users.email
	PasswordHash           string     // users.password_hash
	DisplayName            string     // users.display_name
	DifficultyLevel        int        // users.difficulty_level
	IsMember               bool       // users.is_member
	FreeSessions           int        // users.free_sessions
	IsInstructor           bool       // users.is_instructor
	FilledLegalInfo        bool       // users.filled_legal_info
	AgreesToKeepHealthData bool       // users.agrees_to_keep_health_data
	EmergencyContact       *string    // users.emergency_contact (nullable)
	HealthNotes            *string    // users.health_notes (nullable)
	DateOfBirth            *time.Time // users.date_of_birth (nullable)
	IsActive               bool       // users.is_active
	CreatedAt              time.Time  // users.created_at
	UpdatedAt              time.Time  // users.updated_at
}

// Role represents a row in the `roles` table. Roles bundle permissions and
// may carry managed-tag templates used by the scoped permission resolver.
//
// Fields:
//  ID   – numeric identifier of the role.
//  Name – unique role name (e.g. President, Exec, Member).
type Role struct {
	ID   uint64 // roles.id
	Name string // roles.name
}

// Permission represents a row in the `permissions` table. Slugs are
// dot-separated capability names (e.g. "events.manage"). Slugs ending in
// ".scoped" are never matched literally; the resolver treats scoped
// capability as existential over managed-tag relations.
type Permission struct {
	ID   uint64 // permissions.id
	Slug string // permissions.slug
}

// RefreshToken models an entry in the `refresh_tokens` table. Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation. The plain token is not stored; only its
// SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
