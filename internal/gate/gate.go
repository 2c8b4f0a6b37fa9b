// Package gate implements the request gate: the single middleware that
// refreshes sessions, resolves the tenant, enforces login on protected
// paths and answers CORS preflights.
//
// The gate fails open for public paths and fails closed for protected
// ones: any backend trouble degrades the request to anonymous, and an
// anonymous request may not reach a protected path.
package gate

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"opsdeck/internal/audit"
	"opsdeck/internal/auth/cookies"
	authmodels "opsdeck/internal/auth/models"
	orgmodels "opsdeck/internal/org/models"
	"opsdeck/internal/platform/metrics"
	"opsdeck/pkg/requestcontext"
)

// SessionRefresher resolves the request's user from its cookies and
// returns the cookie operations to apply. A nil user means anonymous.
type SessionRefresher interface {
	RefreshSession(ctx context.Context, creds cookies.Credentials) (*authmodels.User, []cookies.Op)
}

// TenantResolver maps a request host to its organization.
type TenantResolver interface {
	SubdomainFromHost(host string) string
	ResolveSubdomain(ctx context.Context, subdomain string) (*orgmodels.Organization, error)
}

// Config carries the gate's request-independent settings.
type Config struct {
	// LoginURL is where anonymous requests to protected paths are sent.
	LoginURL string
	// CookiePolicy is applied to every cookie operation the refresher emits.
	CookiePolicy cookies.Policy
	// LookupTimeout bounds the session refresh and the tenant lookup,
	// each individually.
	LookupTimeout time.Duration
}

// Gate is the middleware's dependency bundle.
type Gate struct {
	refresher SessionRefresher
	tenants   TenantResolver
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	auditor   audit.Publisher
	tracer    trace.Tracer
}

// Option configures optional gate collaborators.
type Option func(*Gate)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithAuditPublisher sets the audit event sink.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(g *Gate) { g.auditor = p }
}

// New constructs the gate.
func New(refresher SessionRefresher, tenants TenantResolver, cfg Config, opts ...Option) *Gate {
	if cfg.LoginURL == "" {
		cfg.LoginURL = "/login"
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 3 * time.Second
	}
	g := &Gate{
		refresher: refresher,
		tenants:   tenants,
		cfg:       cfg,
		logger:    slog.Default(),
		auditor:   audit.NopPublisher{},
		tracer:    otel.Tracer("opsdeck/gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware wires the gate into a chi-style handler chain.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")

		// Preflights are answered before any session or tenant work so
		// they succeed even when every backing store is down.
		if r.Method == http.MethodOptions {
			writePreflight(w, origin)
			g.countDecision("preflight")
			return
		}

		now := time.Now()
		ctx := requestcontext.WithTime(r.Context(), now)
		ctx = requestcontext.WithRequestID(ctx, requestID(r))
		ctx = requestcontext.WithClientMetadata(ctx, clientIP(r), r.UserAgent())

		ctx, span := g.tracer.Start(ctx, "gate.admit",
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
			))
		defer span.End()

		user, ops, org := g.lookup(ctx, r)

		writeCORS(w, origin)
		cookies.Apply(w, ops, g.cfg.CookiePolicy)

		if user == nil && Protected(r.URL.Path) {
			g.countDecision("redirected")
			span.SetAttributes(attribute.String("gate.decision", "redirected"))
			g.logger.DebugContext(ctx, "anonymous request redirected to login",
				"path", r.URL.Path, "host", r.Host)
			g.auditor.Emit(ctx, audit.Event{
				Type:       audit.EventAccessRedirected,
				Path:       r.URL.Path,
				ClientIP:   requestcontext.ClientIP(ctx),
				OccurredAt: now,
			})
			http.Redirect(w, r, g.cfg.LoginURL, http.StatusSeeOther)
			return
		}

		if user != nil {
			ctx = requestcontext.WithUserID(ctx, user.ID)
			ctx = requestcontext.WithSuperadmin(ctx, user.Superadmin)
			span.SetAttributes(attribute.String("user.id", user.ID.String()))
		}
		if org != nil {
			ctx = requestcontext.WithOrgID(ctx, org.ID)
			span.SetAttributes(attribute.String("tenant.org_id", org.ID.String()))
		}

		g.countDecision("forwarded")
		span.SetAttributes(attribute.String("gate.decision", "forwarded"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// lookup runs the session refresh and the tenant resolution concurrently,
// each under its own deadline. Neither can fail the request; the worst
// outcome is an anonymous, tenantless context.
func (g *Gate) lookup(ctx context.Context, r *http.Request) (*authmodels.User, []cookies.Op, *orgmodels.Organization) {
	var (
		user *authmodels.User
		ops  []cookies.Op
		org  *orgmodels.Organization
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		refreshCtx, cancel := context.WithTimeout(groupCtx, g.cfg.LookupTimeout)
		defer cancel()
		user, ops = g.refresher.RefreshSession(refreshCtx, cookies.Read(r))
		return nil
	})

	if subdomain := g.tenants.SubdomainFromHost(r.Host); subdomain != "" {
		group.Go(func() error {
			tenantCtx, cancel := context.WithTimeout(groupCtx, g.cfg.LookupTimeout)
			defer cancel()
			resolved, err := g.tenants.ResolveSubdomain(tenantCtx, subdomain)
			if err != nil {
				g.logger.DebugContext(ctx, "tenant resolution failed",
					"subdomain", subdomain, "error", err)
				return nil
			}
			org = resolved
			return nil
		})
	}

	_ = group.Wait()
	return user, ops, org
}

func (g *Gate) countDecision(decision string) {
	if g.metrics != nil {
		g.metrics.IncrementGateDecision(decision)
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// requestID propagates the caller's X-Request-ID or mints one.
func requestID(r *http.Request) string {
	if rid := r.Header.Get("X-Request-ID"); rid != "" {
		return rid
	}
	return uuid.NewString()
}
