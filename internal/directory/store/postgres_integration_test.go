//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"opsdeck/internal/directory/models"
	"opsdeck/internal/directory/store"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
	"opsdeck/pkg/testutil/containers"
)

type PostgresDirectorySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	orgID    id.OrgID
}

func TestPostgresDirectorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresDirectorySuite))
}

func (s *PostgresDirectorySuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.Pool)
}

func (s *PostgresDirectorySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"staff_profiles", "role_permissions", "roles"))
	s.orgID = id.NewOrgID()
}

func (s *PostgresDirectorySuite) createRole(name string) *models.Role {
	role, err := models.NewRole(id.NewRoleID(), s.orgID, name, "", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateRole(context.Background(), role))
	return role
}

func (s *PostgresDirectorySuite) TestRolePermissionsReplaceAtomically() {
	ctx := context.Background()
	role := s.createRole("Operators")

	s.Require().NoError(s.store.SetRolePermissions(ctx, role.ID, []string{"a.read", "b.write"}))
	s.Require().NoError(s.store.SetRolePermissions(ctx, role.ID, []string{"c.admin"}))

	loaded, err := s.store.FindRole(ctx, role.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"c.admin"}, loaded.Permissions)
}

func (s *PostgresDirectorySuite) TestSetPermissionsOnUnknownRole() {
	err := s.store.SetRolePermissions(context.Background(), id.NewRoleID(), []string{"a.read"})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresDirectorySuite) TestProfileUniquePerUserAndOrg() {
	ctx := context.Background()
	userID := id.NewUserID()

	first, err := models.NewStaffProfile(id.NewStaffID(), userID, s.orgID, id.RoleID{}, "First", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateProfileIfAbsent(ctx, first))

	second, err := models.NewStaffProfile(id.NewStaffID(), userID, s.orgID, id.RoleID{}, "Second", time.Now())
	s.Require().NoError(err)
	s.Require().ErrorIs(s.store.CreateProfileIfAbsent(ctx, second), sentinel.ErrAlreadyUsed)

	// The same user can still join a different organization.
	other, err := models.NewStaffProfile(id.NewStaffID(), userID, id.NewOrgID(), id.RoleID{}, "Elsewhere", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateProfileIfAbsent(ctx, other))
}

func (s *PostgresDirectorySuite) TestProfileRoundTripWithNullableRole() {
	ctx := context.Background()
	userID := id.NewUserID()

	profile, err := models.NewStaffProfile(id.NewStaffID(), userID, s.orgID, id.RoleID{}, "Roleless", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateProfileIfAbsent(ctx, profile))

	loaded, err := s.store.FindProfileByUser(ctx, userID, s.orgID)
	s.Require().NoError(err)
	s.True(loaded.RoleID.IsZero())

	role := s.createRole("Late Assignment")
	loaded.RoleID = role.ID
	loaded.UpdatedAt = time.Now()
	s.Require().NoError(s.store.UpdateProfile(ctx, loaded))

	again, err := s.store.FindProfileByUser(ctx, userID, s.orgID)
	s.Require().NoError(err)
	s.Equal(role.ID, again.RoleID)
}
