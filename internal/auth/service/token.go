package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"opsdeck/internal/auth/models"
	id "opsdeck/pkg/domain"
)

// accessClaims is the payload of the short-lived access JWT. The session
// ID links the stateless token back to the revocable server-side session.
type accessClaims struct {
	SessionID string `json:"sid"`
	OrgID     string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// mintAccessToken signs an HS256 JWT for the user bound to the session.
func (s *Service) mintAccessToken(user *models.User, sessionID id.SessionID, now time.Time) (string, error) {
	claims := accessClaims{
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		},
	}
	if !user.OrgID.IsZero() {
		claims.OrgID = user.OrgID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cfg.JWTSigningKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// verifiedToken is the result of successfully parsing an access JWT.
type verifiedToken struct {
	UserID    id.UserID
	SessionID id.SessionID
}

// verifyAccessToken parses and validates the JWT signature, expiry and
// claim shape. Any failure reads as "no valid access token"; the caller
// falls through to refresh rotation.
func (s *Service) verifyAccessToken(raw string, now time.Time) (*verifiedToken, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.cfg.JWTSigningKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("access token subject: %w", err)
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("access token session: %w", err)
	}
	return &verifiedToken{UserID: userID, SessionID: sessionID}, nil
}

// newRefreshToken generates a 256-bit opaque token. The raw value goes to
// the client; only its hash is persisted.
func newRefreshToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, hashRefreshToken(raw), nil
}

// hashRefreshToken derives the storage key for a raw refresh token value.
func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
