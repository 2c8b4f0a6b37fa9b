// Package domain holds the typed identifiers shared across modules.
//
// Each ID is a distinct uuid-backed type so a staff ID can never be passed
// where an organization ID is expected. Conversions are explicit.
package domain

import "github.com/google/uuid"

type (
	// UserID identifies an authenticated identity.
	UserID uuid.UUID
	// OrgID identifies a tenant organization.
	OrgID uuid.UUID
	// RoleID identifies a role within an organization.
	RoleID uuid.UUID
	// StaffID identifies a staff profile (user ↔ organization link).
	StaffID uuid.UUID
	// SessionID identifies an auth session.
	SessionID uuid.UUID
)

func (i UserID) String() string    { return uuid.UUID(i).String() }
func (i OrgID) String() string     { return uuid.UUID(i).String() }
func (i RoleID) String() string    { return uuid.UUID(i).String() }
func (i StaffID) String() string   { return uuid.UUID(i).String() }
func (i SessionID) String() string { return uuid.UUID(i).String() }

func (i UserID) IsZero() bool    { return uuid.UUID(i) == uuid.Nil }
func (i OrgID) IsZero() bool     { return uuid.UUID(i) == uuid.Nil }
func (i RoleID) IsZero() bool    { return uuid.UUID(i) == uuid.Nil }
func (i StaffID) IsZero() bool   { return uuid.UUID(i) == uuid.Nil }
func (i SessionID) IsZero() bool { return uuid.UUID(i) == uuid.Nil }

// NewUserID returns a random user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewOrgID returns a random organization ID.
func NewOrgID() OrgID { return OrgID(uuid.New()) }

// NewRoleID returns a random role ID.
func NewRoleID() RoleID { return RoleID(uuid.New()) }

// NewStaffID returns a random staff profile ID.
func NewStaffID() StaffID { return StaffID(uuid.New()) }

// NewSessionID returns a random session ID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// ParseUserID parses s as a user ID. Returns the zero ID on malformed input.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseOrgID parses s as an organization ID.
func ParseOrgID(s string) (OrgID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return OrgID{}, err
	}
	return OrgID(u), nil
}

// ParseRoleID parses s as a role ID.
func ParseRoleID(s string) (RoleID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RoleID{}, err
	}
	return RoleID(u), nil
}

// ParseStaffID parses s as a staff profile ID.
func ParseStaffID(s string) (StaffID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return StaffID{}, err
	}
	return StaffID(u), nil
}

// ParseSessionID parses s as a session ID.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}
