package refreshtoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"opsdeck/internal/auth/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

type RefreshTokenStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *RefreshTokenStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func TestRefreshTokenStoreSuite(t *testing.T) {
	suite.Run(t, new(RefreshTokenStoreSuite))
}

func (s *RefreshTokenStoreSuite) newRecord(hash string, expiresIn time.Duration) *models.RefreshTokenRecord {
	return &models.RefreshTokenRecord{
		TokenHash: hash,
		SessionID: id.NewSessionID(),
		UserID:    id.NewUserID(),
		CreatedAt: s.now,
		ExpiresAt: s.now.Add(expiresIn),
	}
}

func (s *RefreshTokenStoreSuite) TestConsumeIsSingleUse() {
	record := s.newRecord("hash-1", time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, record))

	first, err := s.store.Consume(s.ctx, "hash-1", s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.True(first.Used)

	// Second consume fails but still surfaces the record, so the caller
	// can revoke the session it belongs to.
	second, err := s.store.Consume(s.ctx, "hash-1", s.now.Add(2*time.Minute))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	s.Require().NotNil(second)
	s.Equal(record.SessionID, second.SessionID)
}

func (s *RefreshTokenStoreSuite) TestConsumeUnknownToken() {
	_, err := s.store.Consume(s.ctx, "never-stored", s.now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RefreshTokenStoreSuite) TestConsumeExpiredToken() {
	s.Require().NoError(s.store.Create(s.ctx, s.newRecord("hash-2", time.Minute)))

	record, err := s.store.Consume(s.ctx, "hash-2", s.now.Add(time.Hour))
	s.Require().ErrorIs(err, sentinel.ErrExpired)
	s.Require().NotNil(record)
	s.False(record.Used, "an expired token must not be marked used")
}

func (s *RefreshTokenStoreSuite) TestDeleteBySessionID() {
	record := s.newRecord("hash-3", time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, record))
	other := s.newRecord("hash-4", time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, other))

	s.Require().NoError(s.store.DeleteBySessionID(s.ctx, record.SessionID))

	_, err := s.store.Consume(s.ctx, "hash-3", s.now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.Consume(s.ctx, "hash-4", s.now)
	s.Require().NoError(err)
}

func (s *RefreshTokenStoreSuite) TestDeleteExpired() {
	s.Require().NoError(s.store.Create(s.ctx, s.newRecord("live", time.Hour)))
	s.Require().NoError(s.store.Create(s.ctx, s.newRecord("dead", time.Minute)))

	deleted, err := s.store.DeleteExpired(s.ctx, s.now.Add(30*time.Minute))
	s.Require().NoError(err)
	s.Equal(1, deleted)
}
