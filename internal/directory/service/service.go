// Package service implements staff directory management and permission
// evaluation.
package service

import (
	"context"
	"errors"
	"log/slog"

	"opsdeck/internal/directory/models"
	platformmetrics "opsdeck/internal/platform/metrics"
	id "opsdeck/pkg/domain"
	dErrors "opsdeck/pkg/domain-errors"
	"opsdeck/pkg/platform/sentinel"
	"opsdeck/pkg/requestcontext"
)

// DirectoryStore is the persistence boundary for roles and staff profiles.
type DirectoryStore interface {
	CreateRole(ctx context.Context, role *models.Role) error
	FindRole(ctx context.Context, roleID id.RoleID) (*models.Role, error)
	ListRoles(ctx context.Context, orgID id.OrgID) ([]*models.Role, error)
	SetRolePermissions(ctx context.Context, roleID id.RoleID, keys []string) error

	CreateProfileIfAbsent(ctx context.Context, profile *models.StaffProfile) error
	FindProfileByUser(ctx context.Context, userID id.UserID, orgID id.OrgID) (*models.StaffProfile, error)
	ListProfiles(ctx context.Context, orgID id.OrgID) ([]*models.StaffProfile, error)
	UpdateProfile(ctx context.Context, profile *models.StaffProfile) error
	DeleteProfile(ctx context.Context, staffID id.StaffID) error
}

// SuperadminChecker answers whether a user carries the platform-wide
// override flag. The auth user store implements it.
type SuperadminChecker interface {
	IsSuperadmin(ctx context.Context, userID id.UserID) (bool, error)
}

// Service orchestrates the staff directory and evaluates permissions.
type Service struct {
	store      DirectoryStore
	superadmin SuperadminChecker
	logger     *slog.Logger
	metrics    *platformmetrics.Metrics
}

// Option configures optional service dependencies.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches permission check counters.
func WithMetrics(m *platformmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the directory service.
func New(store DirectoryStore, superadmin SuperadminChecker, opts ...Option) *Service {
	s := &Service{
		store:      store,
		superadmin: superadmin,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckPermission decides whether userID holds the capability named by key.
//
// The superadmin flag is an override, not a role grant: it is checked first
// and short-circuits the role walk entirely, so a superadmin with no staff
// profile is still granted. Every lookup failure answers deny — permission
// evaluation fails closed and never errors to the caller.
func (s *Service) CheckPermission(ctx context.Context, userID id.UserID, key string) bool {
	granted := s.checkPermission(ctx, userID, key)
	if s.metrics != nil {
		s.metrics.IncrementPermissionCheck(granted)
	}
	return granted
}

func (s *Service) checkPermission(ctx context.Context, userID id.UserID, key string) bool {
	if userID.IsZero() || key == "" {
		return false
	}

	super, err := s.superadmin.IsSuperadmin(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "superadmin lookup failed, denying",
			"user_id", userID.String(), "permission", key, "error", err)
		return false
	}
	if super {
		return true
	}

	profile, err := s.store.FindProfileByUser(ctx, userID, requestcontext.OrgID(ctx))
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "staff profile lookup failed, denying",
				"user_id", userID.String(), "permission", key, "error", err)
		}
		return false
	}
	if profile.RoleID.IsZero() {
		return false
	}

	role, err := s.store.FindRole(ctx, profile.RoleID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "role lookup failed, denying",
				"user_id", userID.String(), "permission", key, "error", err)
		}
		return false
	}
	return role.HasPermission(key)
}

// CreateRole registers a role with no permissions yet.
func (s *Service) CreateRole(ctx context.Context, orgID id.OrgID, name, description string) (*models.Role, error) {
	role, err := models.NewRole(id.NewRoleID(), orgID, name, description, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create role")
	}
	return role, nil
}

// GetRole retrieves a role with its permission set.
func (s *Service) GetRole(ctx context.Context, roleID id.RoleID) (*models.Role, error) {
	if roleID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "role id is required")
	}
	role, err := s.store.FindRole(ctx, roleID)
	if err != nil {
		return nil, wrapDirErr(err, "role not found")
	}
	return role, nil
}

// ListRoles lists an organization's roles.
func (s *Service) ListRoles(ctx context.Context, orgID id.OrgID) ([]*models.Role, error) {
	if orgID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "organization id is required")
	}
	roles, err := s.store.ListRoles(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list roles")
	}
	return roles, nil
}

// SetRolePermissions replaces a role's permission set with the deduplicated
// keys.
func (s *Service) SetRolePermissions(ctx context.Context, roleID id.RoleID, keys []string) error {
	if roleID.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "role id is required")
	}
	if err := s.store.SetRolePermissions(ctx, roleID, models.DedupePermissionKeys(keys)); err != nil {
		return wrapDirErr(err, "role not found")
	}
	return nil
}

// CreateStaffProfile links a user to an organization with a role. One
// profile per (user, organization) pair.
func (s *Service) CreateStaffProfile(ctx context.Context, userID id.UserID, orgID id.OrgID, roleID id.RoleID, fullName string) (*models.StaffProfile, error) {
	profile, err := models.NewStaffProfile(id.NewStaffID(), userID, orgID, roleID, fullName, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateProfileIfAbsent(ctx, profile); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "user already has a profile in this organization")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create staff profile")
	}
	return profile, nil
}

// GetStaffProfile retrieves the profile linking userID to orgID.
func (s *Service) GetStaffProfile(ctx context.Context, userID id.UserID, orgID id.OrgID) (*models.StaffProfile, error) {
	profile, err := s.store.FindProfileByUser(ctx, userID, orgID)
	if err != nil {
		return nil, wrapDirErr(err, "staff profile not found")
	}
	return profile, nil
}

// ListStaffProfiles lists an organization's staff.
func (s *Service) ListStaffProfiles(ctx context.Context, orgID id.OrgID) ([]*models.StaffProfile, error) {
	if orgID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "organization id is required")
	}
	profiles, err := s.store.ListProfiles(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list staff profiles")
	}
	return profiles, nil
}

// AssignRole changes the role on an existing staff profile.
func (s *Service) AssignRole(ctx context.Context, userID id.UserID, orgID id.OrgID, roleID id.RoleID) (*models.StaffProfile, error) {
	profile, err := s.store.FindProfileByUser(ctx, userID, orgID)
	if err != nil {
		return nil, wrapDirErr(err, "staff profile not found")
	}
	if _, err := s.store.FindRole(ctx, roleID); err != nil {
		return nil, wrapDirErr(err, "role not found")
	}
	profile.RoleID = roleID
	profile.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		return nil, wrapDirErr(err, "staff profile not found")
	}
	return profile, nil
}

// RemoveStaffProfile unlinks a user from an organization.
func (s *Service) RemoveStaffProfile(ctx context.Context, staffID id.StaffID) error {
	if staffID.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "staff id is required")
	}
	if err := s.store.DeleteProfile(ctx, staffID); err != nil {
		return wrapDirErr(err, "staff profile not found")
	}
	return nil
}

func wrapDirErr(err error, notFoundMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "directory store failure")
}
