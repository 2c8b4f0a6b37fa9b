package service

import (
	"context"
	"errors"

	"opsdeck/internal/audit"
	"opsdeck/internal/auth/cookies"
	"opsdeck/pkg/platform/sentinel"
	"opsdeck/pkg/requestcontext"
)

// Logout revokes the session behind the request's credentials and returns
// the operations that clear both cookies. It succeeds even when no valid
// session can be identified; logout is best-effort and always idempotent.
func (s *Service) Logout(ctx context.Context, creds cookies.Credentials) []cookies.Op {
	now := requestcontext.Now(ctx)

	if creds.AccessToken != "" {
		if verified, err := s.verifyAccessToken(creds.AccessToken, now); err == nil {
			s.revokeSession(ctx, verified)
			s.emit(ctx, audit.Event{
				Type:       audit.EventLogout,
				UserID:     verified.UserID,
				SessionID:  verified.SessionID,
				ClientIP:   requestcontext.ClientIP(ctx),
				OccurredAt: now,
			})
			return cookies.ClearAll()
		}
	}

	// Expired access token but a live refresh token still names the
	// session; consume it so logout works mid-rotation too.
	if creds.RefreshToken != "" {
		record, err := s.tokens.Consume(ctx, hashRefreshToken(creds.RefreshToken), now)
		if record != nil {
			s.revokeSession(ctx, &verifiedToken{UserID: record.UserID, SessionID: record.SessionID})
			s.emit(ctx, audit.Event{
				Type:       audit.EventLogout,
				UserID:     record.UserID,
				SessionID:  record.SessionID,
				ClientIP:   requestcontext.ClientIP(ctx),
				OccurredAt: now,
			})
		} else if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "consume refresh token on logout", "error", err)
		}
	}
	return cookies.ClearAll()
}

func (s *Service) revokeSession(ctx context.Context, verified *verifiedToken) {
	if err := s.sessions.Revoke(ctx, verified.SessionID); err != nil &&
		!errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "revoke session on logout", "error", err)
	}
	if err := s.tokens.DeleteBySessionID(ctx, verified.SessionID); err != nil {
		s.logger.ErrorContext(ctx, "purge session tokens on logout", "error", err)
	}
}
