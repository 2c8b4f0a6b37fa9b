// Package requestcontext provides HTTP-independent accessors for
// request-scoped values.
//
// The gate middleware sets these; services read them without importing
// net/http. Tests inject values directly:
//
//	ctx = requestcontext.WithUserID(ctx, userID)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "opsdeck/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey      struct{}
	sessionIDKey   struct{}
	orgIDKey       struct{}
	superadminKey  struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// UserID retrieves the authenticated user ID from the context.
// Returns the zero ID when the request is anonymous.
func UserID(ctx context.Context) id.UserID {
	if v, ok := ctx.Value(userIDKey{}).(id.UserID); ok {
		return v
	}
	return id.UserID{}
}

// WithUserID injects a user ID into the context.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// SessionID retrieves the session ID from the context.
func SessionID(ctx context.Context) id.SessionID {
	if v, ok := ctx.Value(sessionIDKey{}).(id.SessionID); ok {
		return v
	}
	return id.SessionID{}
}

// WithSessionID injects a session ID into the context.
func WithSessionID(ctx context.Context, sessionID id.SessionID) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// OrgID retrieves the resolved tenant organization ID from the context.
// Returns the zero ID when no tenant was resolved for the request host.
func OrgID(ctx context.Context) id.OrgID {
	if v, ok := ctx.Value(orgIDKey{}).(id.OrgID); ok {
		return v
	}
	return id.OrgID{}
}

// WithOrgID injects a tenant organization ID into the context.
func WithOrgID(ctx context.Context, orgID id.OrgID) context.Context {
	return context.WithValue(ctx, orgIDKey{}, orgID)
}

// Superadmin reports whether the authenticated user carries the
// superadmin override flag.
func Superadmin(ctx context.Context) bool {
	if v, ok := ctx.Value(superadminKey{}).(bool); ok {
		return v
	}
	return false
}

// WithSuperadmin injects the superadmin flag into the context.
func WithSuperadmin(ctx context.Context, superadmin bool) context.Context {
	return context.WithValue(ctx, superadminKey{}, superadmin)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(userAgentKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from the context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time into a context. Tests use this to keep
// expiry arithmetic deterministic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
