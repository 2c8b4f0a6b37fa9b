package store

import (
	"context"
	"fmt"
	"sync"

	"opsdeck/internal/directory/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

// InMemory stores roles and staff profiles in memory for tests and
// single-node dev. Error contract matches the postgres store: wrapped
// sentinel errors for missing entities and uniqueness conflicts.
type InMemory struct {
	mu       sync.RWMutex
	roles    map[id.RoleID]*models.Role
	profiles map[id.StaffID]*models.StaffProfile
}

// NewInMemory constructs an empty in-memory directory store.
func NewInMemory() *InMemory {
	return &InMemory{
		roles:    make(map[id.RoleID]*models.Role),
		profiles: make(map[id.StaffID]*models.StaffProfile),
	}
}

func (s *InMemory) CreateRole(_ context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := cloneRole(role)
	s.roles[role.ID] = clone
	return nil
}

func (s *InMemory) FindRole(_ context.Context, roleID id.RoleID) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if role, ok := s.roles[roleID]; ok {
		return cloneRole(role), nil
	}
	return nil, fmt.Errorf("role %s: %w", roleID, sentinel.ErrNotFound)
}

func (s *InMemory) ListRoles(_ context.Context, orgID id.OrgID) ([]*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roles []*models.Role
	for _, role := range s.roles {
		if role.OrgID == orgID {
			roles = append(roles, cloneRole(role))
		}
	}
	return roles, nil
}

func (s *InMemory) SetRolePermissions(_ context.Context, roleID id.RoleID, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[roleID]
	if !ok {
		return fmt.Errorf("role %s: %w", roleID, sentinel.ErrNotFound)
	}
	role.Permissions = append([]string(nil), keys...)
	return nil
}

func (s *InMemory) CreateProfileIfAbsent(_ context.Context, profile *models.StaffProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.UserID == profile.UserID && p.OrgID == profile.OrgID {
			return fmt.Errorf("staff profile for user %s in org %s: %w",
				profile.UserID, profile.OrgID, sentinel.ErrAlreadyUsed)
		}
	}
	clone := *profile
	s.profiles[profile.ID] = &clone
	return nil
}

func (s *InMemory) FindProfileByUser(_ context.Context, userID id.UserID, orgID id.OrgID) (*models.StaffProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.UserID == userID && (orgID.IsZero() || p.OrgID == orgID) {
			clone := *p
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("staff profile for user %s: %w", userID, sentinel.ErrNotFound)
}

func (s *InMemory) ListProfiles(_ context.Context, orgID id.OrgID) ([]*models.StaffProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var profiles []*models.StaffProfile
	for _, p := range s.profiles {
		if p.OrgID == orgID {
			clone := *p
			profiles = append(profiles, &clone)
		}
	}
	return profiles, nil
}

func (s *InMemory) UpdateProfile(_ context.Context, profile *models.StaffProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; !ok {
		return fmt.Errorf("staff profile %s: %w", profile.ID, sentinel.ErrNotFound)
	}
	clone := *profile
	s.profiles[profile.ID] = &clone
	return nil
}

func (s *InMemory) DeleteProfile(_ context.Context, staffID id.StaffID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[staffID]; !ok {
		return fmt.Errorf("staff profile %s: %w", staffID, sentinel.ErrNotFound)
	}
	delete(s.profiles, staffID)
	return nil
}

func cloneRole(role *models.Role) *models.Role {
	clone := *role
	clone.Permissions = append([]string(nil), role.Permissions...)
	return &clone
}
