package store

import (
	"context"
	"fmt"
	"sync"

	"opsdeck/internal/org/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return sentinel.ErrNotFound (wrapped) when the entity does not exist
// - Return sentinel.ErrAlreadyUsed (wrapped) when the subdomain is taken
// - Return nil for successful operations

// InMemory stores organizations in memory for tests and single-node dev.
type InMemory struct {
	mu          sync.RWMutex
	byID        map[id.OrgID]*models.Organization
	bySubdomain map[string]id.OrgID
}

// NewInMemory constructs an empty in-memory organization store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:        make(map[id.OrgID]*models.Organization),
		bySubdomain: make(map[string]id.OrgID),
	}
}

func (s *InMemory) CreateIfSubdomainAvailable(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := models.NormalizeSubdomain(org.Subdomain)
	if _, taken := s.bySubdomain[sub]; taken {
		return fmt.Errorf("subdomain %q: %w", sub, sentinel.ErrAlreadyUsed)
	}
	clone := *org
	clone.Subdomain = sub
	s.byID[org.ID] = &clone
	s.bySubdomain[sub] = org.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgID id.OrgID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if org, ok := s.byID[orgID]; ok {
		clone := *org
		return &clone, nil
	}
	return nil, fmt.Errorf("organization %s: %w", orgID, sentinel.ErrNotFound)
}

func (s *InMemory) FindBySubdomain(_ context.Context, subdomain string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID, ok := s.bySubdomain[models.NormalizeSubdomain(subdomain)]
	if !ok {
		return nil, fmt.Errorf("subdomain %q: %w", subdomain, sentinel.ErrNotFound)
	}
	clone := *s.byID[orgID]
	return &clone, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgs := make([]*models.Organization, 0, len(s.byID))
	for _, org := range s.byID {
		clone := *org
		orgs = append(orgs, &clone)
	}
	return orgs, nil
}

func (s *InMemory) Update(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[org.ID]; !ok {
		return fmt.Errorf("organization %s: %w", org.ID, sentinel.ErrNotFound)
	}
	clone := *org
	clone.Subdomain = models.NormalizeSubdomain(org.Subdomain)
	s.byID[org.ID] = &clone
	return nil
}
