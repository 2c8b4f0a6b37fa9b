package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"opsdeck/internal/auth/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

// InMemory stores sessions in memory for tests and single-node dev.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

// NewInMemory constructs an empty in-memory session store.
func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemory) Create(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *sess
	s.sessions[sess.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		clone := *sess
		return &clone, nil
	}
	return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
}

// AdvanceRefreshed records a successful refresh rotation on the session.
func (s *InMemory) AdvanceRefreshed(_ context.Context, sessionID id.SessionID, now time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if sess.Status == models.SessionStatusRevoked {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrRevoked)
	}
	sess.LastSeenAt = now
	sess.LastRefreshedAt = &now
	clone := *sess
	return &clone, nil
}

// Revoke marks the session revoked. Idempotent.
func (s *InMemory) Revoke(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	sess.Status = models.SessionStatusRevoked
	return nil
}

// DeleteExpired removes sessions whose expiry has passed as of now.
func (s *InMemory) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(s.sessions, key)
			deleted++
		}
	}
	return deleted, nil
}
