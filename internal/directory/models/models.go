package models

import (
	"strings"
	"time"

	id "opsdeck/pkg/domain"
	dErrors "opsdeck/pkg/domain-errors"
)

// Role groups permission keys within an organization.
//
// Invariants:
//   - Name is non-empty
//   - Permissions holds unique keys; an empty set is valid and grants nothing
type Role struct {
	ID          id.RoleID `json:"id"`
	OrgID       id.OrgID  `json:"org_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasPermission reports whether the role's permission set contains key.
// Unknown keys and empty sets answer false, never error.
func (r *Role) HasPermission(key string) bool {
	for _, p := range r.Permissions {
		if p == key {
			return true
		}
	}
	return false
}

// StaffProfile links a user to an organization and a role. There is exactly
// one profile per (user, organization) pair; it is the join the gate and
// permission logic depend on.
type StaffProfile struct {
	ID        id.StaffID `json:"id"`
	UserID    id.UserID  `json:"user_id"`
	OrgID     id.OrgID   `json:"org_id"`
	RoleID    id.RoleID  `json:"role_id"`
	FullName  string     `json:"full_name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewRole validates and constructs a role with no permissions.
func NewRole(roleID id.RoleID, orgID id.OrgID, name, description string, now time.Time) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role name cannot be empty")
	}
	if orgID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role requires an organization")
	}
	return &Role{
		ID:          roleID,
		OrgID:       orgID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NewStaffProfile validates and constructs a staff profile.
func NewStaffProfile(staffID id.StaffID, userID id.UserID, orgID id.OrgID, roleID id.RoleID, fullName string, now time.Time) (*StaffProfile, error) {
	if userID.IsZero() || orgID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "staff profile requires user and organization")
	}
	return &StaffProfile{
		ID:        staffID,
		UserID:    userID,
		OrgID:     orgID,
		RoleID:    roleID,
		FullName:  strings.TrimSpace(fullName),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DedupePermissionKeys trims, drops empties, and removes duplicates while
// preserving order.
func DedupePermissionKeys(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
