//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"opsdeck/internal/auth/models"
	"opsdeck/internal/auth/store/session"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
	"opsdeck/pkg/testutil/containers"
)

type RedisSessionSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisSessionSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSessionSuite))
}

func (s *RedisSessionSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = session.NewRedis(s.redis.Client)
}

func (s *RedisSessionSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisSessionSuite) newSession() *models.Session {
	now := time.Now()
	return &models.Session{
		ID:         id.NewSessionID(),
		UserID:     id.NewUserID(),
		Status:     models.SessionStatusActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
		LastSeenAt: now,
	}
}

func (s *RedisSessionSuite) TestLifecycle() {
	ctx := context.Background()
	sess := s.newSession()
	s.Require().NoError(s.store.Create(ctx, sess))

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.UserID, found.UserID)

	now := time.Now()
	updated, err := s.store.AdvanceRefreshed(ctx, sess.ID, now)
	s.Require().NoError(err)
	s.Require().NotNil(updated.LastRefreshedAt)

	s.Require().NoError(s.store.Revoke(ctx, sess.ID))
	_, err = s.store.AdvanceRefreshed(ctx, sess.ID, now)
	s.Require().ErrorIs(err, sentinel.ErrRevoked)
}

func (s *RedisSessionSuite) TestRevokedStateKeepsItsTTL() {
	ctx := context.Background()
	sess := s.newSession()
	s.Require().NoError(s.store.Create(ctx, sess))
	s.Require().NoError(s.store.Revoke(ctx, sess.ID))

	ttl, err := s.redis.Client.TTL(ctx, "opsdeck:session:"+sess.ID.String()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0), "revocation must not drop the expiry")
}
