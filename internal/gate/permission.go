package gate

import (
	"context"
	"net/http"

	"opsdeck/internal/audit"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/requestcontext"
)

// PermissionChecker answers yes/no permission questions. Evaluation
// errors read as denial inside the checker.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID id.UserID, key string) bool
}

// RequirePermission guards a route subtree with a single permission key.
// It runs after the gate, so an authenticated user is already in the
// context; anonymous requests get 401, authenticated-but-unauthorized
// ones get 403.
func (g *Gate) RequirePermission(checker PermissionChecker, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := requestcontext.UserID(ctx)
			if userID.IsZero() {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if !checker.CheckPermission(ctx, userID, key) {
				g.auditor.Emit(ctx, audit.Event{
					Type:       audit.EventPermissionDenied,
					UserID:     userID,
					OrgID:      requestcontext.OrgID(ctx),
					Permission: key,
					Path:       r.URL.Path,
					ClientIP:   requestcontext.ClientIP(ctx),
					OccurredAt: requestcontext.Now(ctx),
				})
				http.Error(w, "permission denied", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
