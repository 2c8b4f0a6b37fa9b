package refreshtoken

import (
	"context"
	"fmt"
	"sync"
	"time"

	"opsdeck/internal/auth/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

// InMemory stores refresh token records in memory for tests and dev.
// Records are keyed by token hash; the raw token value never reaches a
// store.
type InMemory struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshTokenRecord
}

// NewInMemory constructs an empty in-memory refresh token store.
func NewInMemory() *InMemory {
	return &InMemory{tokens: make(map[string]*models.RefreshTokenRecord)}
}

func (s *InMemory) Create(_ context.Context, record *models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.tokens[record.TokenHash] = &clone
	return nil
}

// Consume marks the record as used if valid.
// IMPORTANT: returns the record even on ErrAlreadyUsed to enable replay
// detection — the service revokes the whole session on replay.
func (s *InMemory) Consume(_ context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("refresh token: %w", sentinel.ErrNotFound)
	}
	if err := record.ValidateForConsume(now); err != nil {
		clone := *record
		return &clone, fmt.Errorf("refresh token: %w", err)
	}
	record.MarkUsed(now)
	clone := *record
	return &clone, nil
}

func (s *InMemory) DeleteBySessionID(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, record := range s.tokens {
		if record.SessionID == sessionID {
			delete(s.tokens, key)
		}
	}
	return nil
}

// DeleteExpired removes all records expired as of now. The time is injected
// for testability.
func (s *InMemory) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, record := range s.tokens {
		if record.ExpiresAt.Before(now) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
