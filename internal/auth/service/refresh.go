package service

import (
	"context"
	"errors"

	"opsdeck/internal/audit"
	"opsdeck/internal/auth/cookies"
	"opsdeck/internal/auth/models"
	"opsdeck/pkg/platform/sentinel"
	"opsdeck/pkg/requestcontext"
)

// RefreshSession resolves the request's session from its cookie values.
//
// It never returns an error: every failure degrades to an anonymous
// result so the gate can still serve public pages. The returned cookie
// operations must be applied by the caller in order, whatever response it
// ends up writing.
//
// A valid access token resolves the user without touching the refresh
// token, which makes the operation idempotent under concurrent requests.
// Rotation happens only when the access token is absent, expired or
// malformed.
func (s *Service) RefreshSession(ctx context.Context, creds cookies.Credentials) (*models.User, []cookies.Op) {
	if creds.Empty() {
		return nil, nil
	}
	now := requestcontext.Now(ctx)

	if creds.AccessToken != "" {
		if verified, err := s.verifyAccessToken(creds.AccessToken, now); err == nil {
			return s.resolveVerified(ctx, verified)
		}
	}

	if creds.RefreshToken == "" {
		// Stale access token with nothing to rotate from.
		return nil, cookies.ClearAll()
	}
	return s.rotate(ctx, creds.RefreshToken)
}

// resolveVerified loads the user behind a cryptographically valid access
// token. The session is not re-checked here; revocation takes effect on
// the next rotation.
func (s *Service) resolveVerified(ctx context.Context, verified *verifiedToken) (*models.User, []cookies.Op) {
	user, err := s.users.FindByID(ctx, verified.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, cookies.ClearAll()
		}
		s.logger.ErrorContext(ctx, "load user for valid access token", "error", err)
		return nil, nil
	}
	if !user.IsActive() {
		return nil, cookies.ClearAll()
	}
	return user, nil
}

// rotate consumes the single-use refresh token and mints a new pair.
func (s *Service) rotate(ctx context.Context, rawRefresh string) (*models.User, []cookies.Op) {
	now := requestcontext.Now(ctx)

	record, err := s.tokens.Consume(ctx, hashRefreshToken(rawRefresh), now)
	switch {
	case err == nil:
		// fall through to session checks
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		// Replay: someone presented a token that was already rotated.
		// Revoke the whole session so neither party keeps access.
		s.logger.WarnContext(ctx, "refresh token replay detected",
			"session_id", record.SessionID, "user_id", record.UserID)
		if revokeErr := s.sessions.Revoke(ctx, record.SessionID); revokeErr != nil &&
			!errors.Is(revokeErr, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "revoke replayed session", "error", revokeErr)
		}
		if delErr := s.tokens.DeleteBySessionID(ctx, record.SessionID); delErr != nil {
			s.logger.ErrorContext(ctx, "purge replayed session tokens", "error", delErr)
		}
		s.emit(ctx, audit.Event{
			Type:       audit.EventSessionReplayed,
			UserID:     record.UserID,
			SessionID:  record.SessionID,
			ClientIP:   requestcontext.ClientIP(ctx),
			OccurredAt: now,
		})
		return nil, cookies.ClearAll()
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrExpired):
		return nil, cookies.ClearAll()
	default:
		// Infrastructure failure: stay anonymous but keep the cookies so
		// a transient outage does not log everyone out.
		s.logger.ErrorContext(ctx, "consume refresh token", "error", err)
		return nil, nil
	}

	sess, err := s.sessions.FindByID(ctx, record.SessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, cookies.ClearAll()
		}
		s.logger.ErrorContext(ctx, "load session for refresh", "error", err)
		return nil, nil
	}
	if !sess.IsLive(now) {
		return nil, cookies.ClearAll()
	}

	user, err := s.users.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, cookies.ClearAll()
		}
		s.logger.ErrorContext(ctx, "load user for refresh", "error", err)
		return nil, nil
	}
	if !user.IsActive() {
		if revokeErr := s.sessions.Revoke(ctx, sess.ID); revokeErr != nil {
			s.logger.ErrorContext(ctx, "revoke session of disabled user", "error", revokeErr)
		}
		return nil, cookies.ClearAll()
	}

	if _, err := s.sessions.AdvanceRefreshed(ctx, sess.ID, now); err != nil {
		if errors.Is(err, sentinel.ErrRevoked) || errors.Is(err, sentinel.ErrNotFound) {
			return nil, cookies.ClearAll()
		}
		s.logger.ErrorContext(ctx, "advance session refresh", "error", err)
		return nil, nil
	}

	ops, err := s.issueTokens(ctx, user, sess.ID, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "issue rotated tokens", "error", err)
		return nil, nil
	}

	if s.metrics != nil {
		s.metrics.IncrementSessionsRefreshed()
	}
	s.emit(ctx, audit.Event{
		Type:       audit.EventSessionRefreshed,
		UserID:     user.ID,
		OrgID:      user.OrgID,
		SessionID:  sess.ID,
		ClientIP:   requestcontext.ClientIP(ctx),
		OccurredAt: now,
	})
	return user, ops
}
