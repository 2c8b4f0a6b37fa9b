package user

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"opsdeck/internal/auth/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

// InMemory stores users in memory for tests and single-node dev.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

// NewInMemory constructs an empty in-memory user store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemory) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(user.Email)
	if _, taken := s.byEmail[email]; taken {
		return fmt.Errorf("email %q: %w", email, sentinel.ErrAlreadyUsed)
	}
	clone := *user
	s.byID[user.ID] = &clone
	s.byEmail[email] = user.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.byID[userID]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("user by email: %w", sentinel.ErrNotFound)
	}
	clone := *s.byID[userID]
	return &clone, nil
}

// IsSuperadmin implements the directory service's SuperadminChecker.
func (s *InMemory) IsSuperadmin(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[userID]
	if !ok {
		return false, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	return user.Superadmin, nil
}

func (s *InMemory) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[user.ID]; !ok {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrNotFound)
	}
	clone := *user
	s.byID[user.ID] = &clone
	return nil
}
