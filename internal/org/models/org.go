package models

import (
	"regexp"
	"strings"
	"time"

	id "opsdeck/pkg/domain"
	dErrors "opsdeck/pkg/domain-errors"
)

// OrgStatus is the lifecycle state of an organization.
type OrgStatus string

const (
	OrgStatusActive   OrgStatus = "active"
	OrgStatusInactive OrgStatus = "inactive"
)

// subdomains are DNS labels: lowercase alphanumerics and hyphens, no
// leading/trailing hyphen.
var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Organization is an isolated customer account. All feature-area rows are
// scoped by its ID.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Subdomain is a valid DNS label, stored lowercase, unique platform-wide
//   - Status is either active or inactive
//
// An inactive organization must not resolve at the gate: suspension is an
// immediate access boundary, enforced at resolution time rather than by
// cascading changes to staff rows.
type Organization struct {
	ID        id.OrgID  `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	LogoURL   string    `json:"logo_url,omitempty"`
	Status    OrgStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Organization) IsActive() bool {
	return o.Status == OrgStatusActive
}

// Deactivate transitions the organization to inactive status.
func (o *Organization) Deactivate(now time.Time) error {
	if o.Status == OrgStatusInactive {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is already inactive")
	}
	o.Status = OrgStatusInactive
	o.UpdatedAt = now
	return nil
}

// Reactivate transitions the organization to active status.
func (o *Organization) Reactivate(now time.Time) error {
	if o.Status == OrgStatusActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is already active")
	}
	o.Status = OrgStatusActive
	o.UpdatedAt = now
	return nil
}

// NormalizeSubdomain lowercases and trims a subdomain candidate.
// Lookups and storage both go through this so matching stays
// case-insensitive by construction.
func NormalizeSubdomain(sub string) string {
	return strings.ToLower(strings.TrimSpace(sub))
}

// NewOrganization validates and constructs an active organization.
func NewOrganization(orgID id.OrgID, name, subdomain string, now time.Time) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name must be 128 characters or less")
	}
	subdomain = NormalizeSubdomain(subdomain)
	if !subdomainPattern.MatchString(subdomain) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subdomain must be a valid DNS label")
	}
	return &Organization{
		ID:        orgID,
		Name:      name,
		Subdomain: subdomain,
		Status:    OrgStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
