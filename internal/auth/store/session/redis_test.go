package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"opsdeck/internal/auth/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

type RedisStoreSuite struct {
	suite.Suite
	mini  *miniredis.Miniredis
	store *RedisStore
	ctx   context.Context
}

func (s *RedisStoreSuite) SetupTest() {
	mini, err := miniredis.Run()
	s.Require().NoError(err)
	s.mini = mini
	s.store = NewRedis(redis.NewClient(&redis.Options{Addr: mini.Addr()}))
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) TearDownTest() {
	s.mini.Close()
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func newTestSession(expiresIn time.Duration) *models.Session {
	now := time.Now()
	return &models.Session{
		ID:         id.NewSessionID(),
		UserID:     id.NewUserID(),
		OrgID:      id.NewOrgID(),
		Status:     models.SessionStatusActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(expiresIn),
		LastSeenAt: now,
	}
}

func (s *RedisStoreSuite) TestCreateAndFind() {
	sess := newTestSession(time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, sess))

	found, err := s.store.FindByID(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.UserID, found.UserID)
	s.Equal(models.SessionStatusActive, found.Status)
}

func (s *RedisStoreSuite) TestCreateExpiredSessionIsRejected() {
	sess := newTestSession(-time.Minute)
	s.Require().ErrorIs(s.store.Create(s.ctx, sess), sentinel.ErrExpired)
}

func (s *RedisStoreSuite) TestFindUnknownSession() {
	_, err := s.store.FindByID(s.ctx, id.NewSessionID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestKeyExpiresWithSession() {
	sess := newTestSession(time.Minute)
	s.Require().NoError(s.store.Create(s.ctx, sess))

	s.mini.FastForward(2 * time.Minute)

	_, err := s.store.FindByID(s.ctx, sess.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestAdvanceRefreshed() {
	sess := newTestSession(time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, sess))

	now := time.Now().Add(10 * time.Minute)
	updated, err := s.store.AdvanceRefreshed(s.ctx, sess.ID, now)
	s.Require().NoError(err)
	s.Require().NotNil(updated.LastRefreshedAt)
	s.WithinDuration(now, *updated.LastRefreshedAt, time.Second)

	found, err := s.store.FindByID(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found.LastRefreshedAt)
}

func (s *RedisStoreSuite) TestRevoke() {
	sess := newTestSession(time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, sess))

	s.Require().NoError(s.store.Revoke(s.ctx, sess.ID))

	found, err := s.store.FindByID(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusRevoked, found.Status)

	_, err = s.store.AdvanceRefreshed(s.ctx, sess.ID, time.Now())
	s.Require().ErrorIs(err, sentinel.ErrRevoked)
}
