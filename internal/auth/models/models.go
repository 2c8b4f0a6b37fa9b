package models

import (
	"strings"
	"time"

	id "opsdeck/pkg/domain"
	dErrors "opsdeck/pkg/domain-errors"
	"opsdeck/pkg/platform/sentinel"
)

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User is an authenticated identity. Immutable for the duration of a
// request once resolved by the refresher.
type User struct {
	ID           id.UserID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	OrgID        id.OrgID   `json:"org_id"`
	Superadmin   bool       `json:"superadmin"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) IsActive() bool { return u.Status == UserStatusActive }

// SessionStatus is the lifecycle state of an auth session.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusRevoked SessionStatus = "revoked"
)

// Session is a server-side login record. The access JWT carries its ID so
// revocation takes effect on the next refresh.
type Session struct {
	ID                id.SessionID  `json:"id"`
	UserID            id.UserID     `json:"user_id"`
	OrgID             id.OrgID      `json:"org_id"`
	Status            SessionStatus `json:"status"`
	DeviceDisplayName string        `json:"device_display_name,omitempty"`
	IPAddress         string        `json:"ip_address,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	ExpiresAt         time.Time     `json:"expires_at"`
	LastSeenAt        time.Time     `json:"last_seen_at"`
	LastRefreshedAt   *time.Time    `json:"last_refreshed_at,omitempty"`
}

// IsLive reports whether the session is active and unexpired at now.
func (s *Session) IsLive(now time.Time) bool {
	return s.Status == SessionStatusActive && now.Before(s.ExpiresAt)
}

// RefreshTokenRecord is a single-use opaque credential bound to a session.
// Stores persist only the hash of the token value.
type RefreshTokenRecord struct {
	TokenHash string       `json:"token_hash"`
	SessionID id.SessionID `json:"session_id"`
	UserID    id.UserID    `json:"user_id"`
	Used      bool         `json:"used"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	UsedAt    *time.Time   `json:"used_at,omitempty"`
}

// ValidateForConsume checks the record may be consumed at now.
// Returns sentinel errors per the store boundary contract.
func (r *RefreshTokenRecord) ValidateForConsume(now time.Time) error {
	if r.Used {
		return sentinel.ErrAlreadyUsed
	}
	if !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt) {
		return sentinel.ErrExpired
	}
	return nil
}

// MarkUsed consumes the record.
func (r *RefreshTokenRecord) MarkUsed(now time.Time) {
	r.Used = true
	r.UsedAt = &now
}

// NewUser validates and constructs an active user.
func NewUser(userID id.UserID, email, passwordHash string, orgID id.OrgID, now time.Time) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "valid email is required")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	return &User{
		ID:           userID,
		Email:        email,
		PasswordHash: passwordHash,
		OrgID:        orgID,
		Status:       UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
