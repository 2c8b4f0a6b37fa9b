package service

import (
	"context"
	"strings"
	"time"

	"github.com/mssola/useragent"
	"golang.org/x/crypto/bcrypt"

	"opsdeck/internal/audit"
	"opsdeck/internal/auth/cookies"
	"opsdeck/internal/auth/models"
	id "opsdeck/pkg/domain"
	dErrors "opsdeck/pkg/domain-errors"
	"opsdeck/pkg/requestcontext"
)

// Login verifies the credentials, opens a session and returns the user
// with the cookie operations that establish it.
//
// Bad email and bad password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, []cookies.Op, error) {
	now := requestcontext.Now(ctx)

	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		// Burn a comparison anyway so a missing account costs the same
		// as a wrong password.
		_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
		s.emit(ctx, audit.Event{
			Type:       audit.EventLoginFailed,
			ClientIP:   requestcontext.ClientIP(ctx),
			OccurredAt: now,
		})
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.emit(ctx, audit.Event{
			Type:       audit.EventLoginFailed,
			UserID:     user.ID,
			ClientIP:   requestcontext.ClientIP(ctx),
			OccurredAt: now,
		})
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if !user.IsActive() {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "account is disabled")
	}

	sess := &models.Session{
		ID:                id.NewSessionID(),
		UserID:            user.ID,
		OrgID:             user.OrgID,
		Status:            models.SessionStatusActive,
		DeviceDisplayName: deviceDisplayName(requestcontext.UserAgent(ctx)),
		IPAddress:         requestcontext.ClientIP(ctx),
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.cfg.SessionTTL),
		LastSeenAt:        now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "create session")
	}

	ops, err := s.issueTokens(ctx, user, sess.ID, now)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "login succeeded",
		"user_id", user.ID, "session_id", sess.ID, "device", sess.DeviceDisplayName)
	s.emit(ctx, audit.Event{
		Type:       audit.EventLoginSucceeded,
		UserID:     user.ID,
		OrgID:      user.OrgID,
		SessionID:  sess.ID,
		ClientIP:   sess.IPAddress,
		OccurredAt: now,
	})
	return user, ops, nil
}

// issueTokens mints a fresh access JWT and refresh token pair for the
// session and returns the cookie operations that install them.
func (s *Service) issueTokens(ctx context.Context, user *models.User, sessionID id.SessionID, now time.Time) ([]cookies.Op, error) {
	access, err := s.mintAccessToken(user, sessionID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "mint access token")
	}
	raw, hash, err := newRefreshToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "mint refresh token")
	}
	record := &models.RefreshTokenRecord{
		TokenHash: hash,
		SessionID: sessionID,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "store refresh token")
	}
	return []cookies.Op{
		cookies.Set(cookies.AccessTokenName, access, int(s.cfg.AccessTokenTTL.Seconds())),
		cookies.Set(cookies.RefreshTokenName, raw, int(s.cfg.RefreshTokenTTL.Seconds())),
	}, nil
}

// deviceDisplayName renders a short human-readable label from the
// User-Agent, e.g. "Chrome on Linux". Empty or unparseable agents fall
// back to a generic label.
func deviceDisplayName(rawUA string) string {
	if rawUA == "" {
		return "Unknown device"
	}
	ua := useragent.New(rawUA)
	name, _ := ua.Browser()
	os := ua.OSInfo().Name
	switch {
	case name != "" && os != "":
		return name + " on " + os
	case name != "":
		return name
	case os != "":
		return os
	default:
		return "Unknown device"
	}
}

// dummyPasswordHash is a valid bcrypt hash compared against when the
// account does not exist.
var dummyPasswordHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")
