package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"opsdeck/internal/auth/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

// RedisStore persists sessions in Redis with a TTL matching session expiry.
// Mutations run under WATCH so concurrent refresh/revoke on the same
// session cannot interleave.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return "opsdeck:session:" + sessionID.String()
}

func (s *RedisStore) Create(ctx context.Context, sess *models.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrExpired)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// AdvanceRefreshed records a successful refresh rotation on the session.
func (s *RedisStore) AdvanceRefreshed(ctx context.Context, sessionID id.SessionID, now time.Time) (*models.Session, error) {
	var updated *models.Session
	err := s.mutate(ctx, sessionID, func(sess *models.Session) error {
		if sess.Status == models.SessionStatusRevoked {
			return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrRevoked)
		}
		sess.LastSeenAt = now
		sess.LastRefreshedAt = &now
		updated = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Revoke marks the session revoked. The key keeps its TTL so the revoked
// state outlives any access token minted from it.
func (s *RedisStore) Revoke(ctx context.Context, sessionID id.SessionID) error {
	return s.mutate(ctx, sessionID, func(sess *models.Session) error {
		sess.Status = models.SessionStatusRevoked
		return nil
	})
}

// DeleteExpired is a no-op for Redis: key TTLs handle expiry.
func (s *RedisStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

// mutate applies fn to the session under WATCH, preserving the key's TTL.
func (s *RedisStore) mutate(ctx context.Context, sessionID id.SessionID, fn func(*models.Session) error) error {
	key := sessionKey(sessionID)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		var sess models.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if err := fn(&sess); err != nil {
			return err
		}
		payload, err := json.Marshal(&sess)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
}
