// Package service implements login, logout and silent session refresh.
//
// The refresher is http-free: it consumes raw cookie values and returns
// the resolved user plus an ordered list of cookie operations for the
// caller to apply. Every failure path degrades to an anonymous result so
// a broken cookie can never take down a public page.
package service

import (
	"context"
	"log/slog"
	"time"

	"opsdeck/internal/audit"
	"opsdeck/internal/auth/models"
	"opsdeck/internal/platform/metrics"
	id "opsdeck/pkg/domain"
)

// UserStore is the persistence boundary for user accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// SessionStore is the persistence boundary for auth sessions.
type SessionStore interface {
	Create(ctx context.Context, sess *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	AdvanceRefreshed(ctx context.Context, sessionID id.SessionID, now time.Time) (*models.Session, error)
	Revoke(ctx context.Context, sessionID id.SessionID) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// RefreshTokenStore is the persistence boundary for single-use refresh
// tokens. Consume must return the record alongside ErrAlreadyUsed so the
// service can detect replay.
type RefreshTokenStore interface {
	Create(ctx context.Context, record *models.RefreshTokenRecord) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error)
	DeleteBySessionID(ctx context.Context, sessionID id.SessionID) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Config carries token lifetimes and the JWT signing key.
type Config struct {
	JWTSigningKey   []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	SessionTTL      time.Duration
}

// Service coordinates users, sessions and refresh tokens.
type Service struct {
	users    UserStore
	sessions SessionStore
	tokens   RefreshTokenStore
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  audit.Publisher
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditPublisher sets the audit event sink.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// New constructs the auth service.
func New(users UserStore, sessions SessionStore, tokens RefreshTokenStore, cfg Config, opts ...Option) *Service {
	s := &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		cfg:      cfg,
		logger:   slog.Default(),
		auditor:  audit.NopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetUser loads a user by ID.
func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	s.auditor.Emit(ctx, event)
}
