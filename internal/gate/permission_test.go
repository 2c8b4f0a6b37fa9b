package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsdeck/internal/audit"
	"opsdeck/internal/auth/cookies"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/requestcontext"
)

type staticChecker struct {
	granted map[string]bool
}

func (c staticChecker) CheckPermission(_ context.Context, _ id.UserID, key string) bool {
	return c.granted[key]
}

func TestRequirePermission(t *testing.T) {
	auditor := audit.NewMemoryPublisher()
	g := New(nil, nil, Config{CookiePolicy: cookies.Policy{}}, WithAuditPublisher(auditor))
	checker := staticChecker{granted: map[string]bool{"staff.manage": true}}

	var reached bool
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true })

	serve := func(key string, userID id.UserID) *httptest.ResponseRecorder {
		reached = false
		handler := g.RequirePermission(checker, key)(next)
		r := httptest.NewRequest(http.MethodGet, "/api/staff", nil)
		if !userID.IsZero() {
			r = r.WithContext(requestcontext.WithUserID(r.Context(), userID))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	t.Run("anonymous gets 401", func(t *testing.T) {
		w := serve("staff.manage", id.UserID{})
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, reached)
	})

	t.Run("missing permission gets 403 and is audited", func(t *testing.T) {
		w := serve("roles.manage", id.NewUserID())
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.False(t, reached)
		assert.Len(t, auditor.ByType(audit.EventPermissionDenied), 1)
	})

	t.Run("granted permission passes through", func(t *testing.T) {
		w := serve("staff.manage", id.NewUserID())
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, reached)
	})
}
