package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"opsdeck/internal/auth/cookies"
	authmodels "opsdeck/internal/auth/models"
	authservice "opsdeck/internal/auth/service"
	refreshtokenstore "opsdeck/internal/auth/store/refreshtoken"
	sessionstore "opsdeck/internal/auth/store/session"
	userstore "opsdeck/internal/auth/store/user"
	directoryservice "opsdeck/internal/directory/service"
	directorystore "opsdeck/internal/directory/store"
	"opsdeck/internal/gate"
	orgservice "opsdeck/internal/org/service"
	orgstore "opsdeck/internal/org/store"
	id "opsdeck/pkg/domain"
)

const routerTestPassword = "router-test-password"

type RouterSuite struct {
	suite.Suite
	router     http.Handler
	users      *userstore.InMemory
	staff      *authmodels.User
	superadmin *authmodels.User
}

func (s *RouterSuite) SetupTest() {
	ctx := context.Background()

	s.users = userstore.NewInMemory()
	sessions := sessionstore.NewInMemory()
	tokens := refreshtokenstore.NewInMemory()
	orgs := orgstore.NewInMemory()
	directory := directorystore.NewInMemory()

	authSvc := authservice.New(s.users, sessions, tokens, authservice.Config{
		JWTSigningKey:   []byte("router-test-key"),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		SessionTTL:      time.Hour,
	})
	orgSvc := orgservice.New(orgs, "opsdeck.local")
	dirSvc := directoryservice.New(directory, s.users)

	policy := cookies.Policy{Domain: "opsdeck.local"}
	requestGate := gate.New(authSvc, orgSvc, gate.Config{
		LoginURL:      "/login",
		CookiePolicy:  policy,
		LookupTimeout: time.Second,
	})

	s.router = NewRouter(Deps{
		Gate:        requestGate,
		Permissions: dirSvc,
		Auth:        NewAuthHandler(authSvc, policy),
		Orgs:        NewOrgHandler(orgSvc),
		Directory:   NewDirectoryHandler(dirSvc),
	})

	s.staff = s.addUser(ctx, "staff@example.com", false)
	s.superadmin = s.addUser(ctx, "root@example.com", true)
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) addUser(ctx context.Context, email string, superadmin bool) *authmodels.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(routerTestPassword), bcrypt.MinCost)
	s.Require().NoError(err)
	user, err := authmodels.NewUser(id.NewUserID(), email, string(hash), id.OrgID{}, time.Now())
	s.Require().NoError(err)
	user.Superadmin = superadmin
	s.Require().NoError(s.users.Create(ctx, user))
	return user
}

func (s *RouterSuite) login(email string) []*http.Cookie {
	body := `{"email":"` + email + `","password":"` + routerTestPassword + `"}`
	r := httptest.NewRequest(http.MethodPost, "http://opsdeck.local/api/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	s.Require().Equal(http.StatusOK, w.Code)
	return w.Result().Cookies()
}

func (s *RouterSuite) request(method, url string, body string, auth []*http.Cookie) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, url, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, url, nil)
	}
	for _, c := range auth {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func (s *RouterSuite) TestLoginFlow() {
	s.Run("login sets both session cookies", func() {
		set := s.login("staff@example.com")
		names := map[string]bool{}
		for _, c := range set {
			names[c.Name] = true
			s.True(c.HttpOnly)
		}
		s.True(names[cookies.AccessTokenName])
		s.True(names[cookies.RefreshTokenName])
	})

	s.Run("bad password is a JSON 401", func() {
		body := `{"email":"staff@example.com","password":"wrong"}`
		w := s.request(http.MethodPost, "http://opsdeck.local/api/auth/login", body, nil)
		s.Equal(http.StatusUnauthorized, w.Code)

		var payload map[string]string
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &payload))
		s.Equal("unauthorized", payload["error"])
	})

	s.Run("me echoes the logged-in user", func() {
		auth := s.login("staff@example.com")
		w := s.request(http.MethodGet, "http://opsdeck.local/api/auth/me", "", auth)
		s.Require().Equal(http.StatusOK, w.Code)

		var payload map[string]any
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &payload))
		s.Equal(s.staff.ID.String(), payload["id"])
	})

	s.Run("me without a session is 401", func() {
		w := s.request(http.MethodGet, "http://opsdeck.local/api/auth/me", "", nil)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("logout clears cookies and is a 204", func() {
		auth := s.login("staff@example.com")
		w := s.request(http.MethodPost, "http://opsdeck.local/api/auth/logout", "", auth)
		s.Equal(http.StatusNoContent, w.Code)
		for _, c := range w.Result().Cookies() {
			s.Less(c.MaxAge, 0)
		}
	})
}

func (s *RouterSuite) TestAdminSurfaceIsPermissionGuarded() {
	s.Run("anonymous API access redirects to login", func() {
		w := s.request(http.MethodGet, "http://opsdeck.local/api/admin/orgs", "", nil)
		s.Equal(http.StatusSeeOther, w.Code)
	})

	s.Run("staff without the permission gets 403", func() {
		auth := s.login("staff@example.com")
		w := s.request(http.MethodGet, "http://opsdeck.local/api/admin/orgs", "", auth)
		s.Equal(http.StatusForbidden, w.Code)
	})

	s.Run("superadmin manages organizations end to end", func() {
		auth := s.login("root@example.com")

		w := s.request(http.MethodPost, "http://opsdeck.local/api/admin/orgs",
			`{"name":"Acme","subdomain":"acme"}`, auth)
		s.Require().Equal(http.StatusCreated, w.Code)

		var created map[string]any
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &created))
		orgID := created["id"].(string)

		w = s.request(http.MethodGet, "http://opsdeck.local/api/admin/orgs/"+orgID, "", auth)
		s.Equal(http.StatusOK, w.Code)

		w = s.request(http.MethodPost, "http://opsdeck.local/api/admin/orgs/"+orgID+"/deactivate", "", auth)
		s.Equal(http.StatusOK, w.Code)

		w = s.request(http.MethodPost, "http://opsdeck.local/api/admin/orgs",
			`{"name":"Dup","subdomain":"acme"}`, auth)
		s.Equal(http.StatusConflict, w.Code)
	})
}

func (s *RouterSuite) TestTenantScopedDirectoryRoutes() {
	auth := s.login("root@example.com")

	w := s.request(http.MethodPost, "http://opsdeck.local/api/admin/orgs",
		`{"name":"Globex","subdomain":"globex"}`, auth)
	s.Require().Equal(http.StatusCreated, w.Code)

	s.Run("role management works under the tenant host", func() {
		w := s.request(http.MethodPost, "http://globex.opsdeck.local/api/roles",
			`{"name":"Operators","description":"runs the floor"}`, auth)
		s.Require().Equal(http.StatusCreated, w.Code)

		var role map[string]any
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &role))

		w = s.request(http.MethodPut,
			"http://globex.opsdeck.local/api/roles/"+role["id"].(string)+"/permissions",
			`{"permissions":["staff.manage"]}`, auth)
		s.Equal(http.StatusNoContent, w.Code)
	})

	s.Run("role creation without a tenant host is a 400", func() {
		w := s.request(http.MethodPost, "http://opsdeck.local/api/roles",
			`{"name":"Nowhere"}`, auth)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *RouterSuite) TestHealthAndMetricsBypassAuth() {
	w := s.request(http.MethodGet, "http://opsdeck.local/healthz", "", nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodGet, "http://opsdeck.local/metrics", "", nil)
	s.Equal(http.StatusOK, w.Code)
}
