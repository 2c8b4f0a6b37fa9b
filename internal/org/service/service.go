// Package service implements tenant resolution and organization lifecycle.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"opsdeck/internal/org/models"
	platformmetrics "opsdeck/internal/platform/metrics"
	id "opsdeck/pkg/domain"
	dErrors "opsdeck/pkg/domain-errors"
	"opsdeck/pkg/platform/sentinel"
	"opsdeck/pkg/requestcontext"
)

// OrgStore is the persistence boundary for organizations.
type OrgStore interface {
	CreateIfSubdomainAvailable(ctx context.Context, org *models.Organization) error
	FindByID(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	FindBySubdomain(ctx context.Context, subdomain string) (*models.Organization, error)
	List(ctx context.Context) ([]*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
}

// Service orchestrates organization lifecycle and tenant resolution.
type Service struct {
	orgs     OrgStore
	baseHost string
	logger   *slog.Logger
	metrics  *platformmetrics.Metrics
}

// Option configures optional service dependencies.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches tenant lookup counters.
func WithMetrics(m *platformmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the organization service. baseHost is the platform's apex
// host (e.g. "opsdeck.local"); requests to it carry no tenant.
func New(orgs OrgStore, baseHost string, opts ...Option) *Service {
	s := &Service{
		orgs:     orgs,
		baseHost: strings.ToLower(strings.TrimSpace(baseHost)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubdomainFromHost extracts the tenant subdomain from a request Host.
//
// Hostname-subdomain resolution is the single canonical strategy: the
// leftmost DNS label is the subdomain when the remainder equals the
// configured base host. The apex host itself, bare hosts, and IP literals
// yield "" (no tenant).
func (s *Service) SubdomainFromHost(host string) string {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" || host == s.baseHost || net.ParseIP(host) != nil {
		return ""
	}
	sub, rest, found := strings.Cut(host, ".")
	if !found || rest != s.baseHost {
		return ""
	}
	return sub
}

// ResolveSubdomain maps a subdomain to its organization.
//
// Returns CodeNotFound when no organization matches or the match is
// inactive — never an empty default, so callers can distinguish "no such
// tenant" from "tenant with defaults". Store failures surface as
// CodeUnavailable so the gate can degrade without treating the tenant as
// missing.
func (s *Service) ResolveSubdomain(ctx context.Context, subdomain string) (*models.Organization, error) {
	subdomain = models.NormalizeSubdomain(subdomain)
	if subdomain == "" {
		s.countLookup("not_found")
		return nil, dErrors.New(dErrors.CodeNotFound, "no tenant subdomain in request")
	}

	org, err := s.orgs.FindBySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countLookup("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "no organization for subdomain")
		}
		s.countLookup("error")
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "tenant lookup failed")
	}
	if !org.IsActive() {
		s.countLookup("not_found")
		return nil, dErrors.New(dErrors.CodeNotFound, "organization is inactive")
	}
	s.countLookup("found")
	return org, nil
}

// CreateOrganization registers a new tenant with a unique subdomain.
func (s *Service) CreateOrganization(ctx context.Context, name, subdomain string) (*models.Organization, error) {
	org, err := models.NewOrganization(id.NewOrgID(), name, subdomain, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.orgs.CreateIfSubdomainAvailable(ctx, org); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "subdomain is already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organization")
	}
	s.logger.InfoContext(ctx, "organization created",
		"org_id", org.ID.String(),
		"subdomain", org.Subdomain,
	)
	return org, nil
}

// GetOrganization retrieves an organization by ID.
func (s *Service) GetOrganization(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	if orgID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "organization id is required")
	}
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, wrapOrgErr(err)
	}
	return org, nil
}

// ListOrganizations returns all tenants (admin surface).
func (s *Service) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	orgs, err := s.orgs.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list organizations")
	}
	return orgs, nil
}

// DeactivateOrganization suspends a tenant. Resolution fails for it
// immediately afterwards.
func (s *Service) DeactivateOrganization(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	return s.transition(ctx, orgID, (*models.Organization).Deactivate)
}

// ReactivateOrganization lifts a suspension.
func (s *Service) ReactivateOrganization(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	return s.transition(ctx, orgID, (*models.Organization).Reactivate)
}

func (s *Service) transition(
	ctx context.Context,
	orgID id.OrgID,
	apply func(*models.Organization, time.Time) error,
) (*models.Organization, error) {
	if orgID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "organization id is required")
	}
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, wrapOrgErr(err)
	}
	if err := apply(org, requestcontext.Now(ctx)); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeConflict, err.Error())
		}
		return nil, err
	}
	if err := s.orgs.Update(ctx, org); err != nil {
		return nil, wrapOrgErr(err)
	}
	return org, nil
}

func (s *Service) countLookup(result string) {
	if s.metrics != nil {
		s.metrics.IncrementTenantLookup(result)
	}
}

func wrapOrgErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "organization store failure")
}
