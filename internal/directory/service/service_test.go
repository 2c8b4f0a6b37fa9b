package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	authmodels "opsdeck/internal/auth/models"
	userstore "opsdeck/internal/auth/store/user"
	"opsdeck/internal/directory/store"
	id "opsdeck/pkg/domain"
	dErrors "opsdeck/pkg/domain-errors"
	"opsdeck/pkg/requestcontext"
)

type DirectoryServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	users   *userstore.InMemory
	service *Service
	ctx     context.Context
	orgID   id.OrgID
}

func (s *DirectoryServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.users = userstore.NewInMemory()
	s.service = New(s.store, s.users)
	s.orgID = id.NewOrgID()
	ctx := requestcontext.WithTime(context.Background(), time.Now())
	s.ctx = requestcontext.WithOrgID(ctx, s.orgID)
}

func TestDirectoryServiceSuite(t *testing.T) {
	suite.Run(t, new(DirectoryServiceSuite))
}

func newTestUser(userID id.UserID, superadmin bool) *authmodels.User {
	now := time.Now()
	return &authmodels.User{
		ID:           userID,
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Superadmin:   superadmin,
		Status:       authmodels.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *DirectoryServiceSuite) addUser(superadmin bool) id.UserID {
	userID := id.NewUserID()
	s.Require().NoError(s.users.Create(s.ctx, newTestUser(userID, superadmin)))
	return userID
}

func (s *DirectoryServiceSuite) grantRole(userID id.UserID, permissions ...string) {
	role, err := s.service.CreateRole(s.ctx, s.orgID, "Operators", "day-to-day staff")
	s.Require().NoError(err)
	s.Require().NoError(s.service.SetRolePermissions(s.ctx, role.ID, permissions))
	_, err = s.service.CreateStaffProfile(s.ctx, userID, s.orgID, role.ID, "Test Staffer")
	s.Require().NoError(err)
}

func (s *DirectoryServiceSuite) TestCheckPermission() {
	s.Run("superadmin is granted without any staff profile", func() {
		userID := s.addUser(true)
		s.True(s.service.CheckPermission(s.ctx, userID, "anything.at.all"))
	})

	s.Run("staff with the key on their role is granted", func() {
		userID := s.addUser(false)
		s.grantRole(userID, "staff.manage", "roles.manage")
		s.True(s.service.CheckPermission(s.ctx, userID, "staff.manage"))
	})

	s.Run("staff without the key is denied", func() {
		userID := s.addUser(false)
		s.grantRole(userID, "staff.manage")
		s.False(s.service.CheckPermission(s.ctx, userID, "organizations.manage"))
	})

	s.Run("user with no staff profile is denied", func() {
		userID := s.addUser(false)
		s.False(s.service.CheckPermission(s.ctx, userID, "staff.manage"))
	})

	s.Run("profile with no role is denied", func() {
		userID := s.addUser(false)
		_, err := s.service.CreateStaffProfile(s.ctx, userID, s.orgID, id.RoleID{}, "Roleless")
		s.Require().NoError(err)
		s.False(s.service.CheckPermission(s.ctx, userID, "staff.manage"))
	})

	s.Run("role with empty permission set is denied", func() {
		userID := s.addUser(false)
		s.grantRole(userID)
		s.False(s.service.CheckPermission(s.ctx, userID, "staff.manage"))
	})

	s.Run("zero user id is denied", func() {
		s.False(s.service.CheckPermission(s.ctx, id.UserID{}, "staff.manage"))
	})

	s.Run("empty permission key is denied", func() {
		userID := s.addUser(true)
		s.False(s.service.CheckPermission(s.ctx, userID, ""))
	})

	s.Run("unknown user is denied, not errored", func() {
		s.False(s.service.CheckPermission(s.ctx, id.NewUserID(), "staff.manage"))
	})
}

func (s *DirectoryServiceSuite) TestStaffLifecycle() {
	s.Run("one profile per user and organization", func() {
		userID := s.addUser(false)
		_, err := s.service.CreateStaffProfile(s.ctx, userID, s.orgID, id.RoleID{}, "Once")
		s.Require().NoError(err)

		_, err = s.service.CreateStaffProfile(s.ctx, userID, s.orgID, id.RoleID{}, "Twice")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("assign role swaps the role on the profile", func() {
		userID := s.addUser(false)
		_, err := s.service.CreateStaffProfile(s.ctx, userID, s.orgID, id.RoleID{}, "Promotable")
		s.Require().NoError(err)

		role, err := s.service.CreateRole(s.ctx, s.orgID, "Managers", "")
		s.Require().NoError(err)
		s.Require().NoError(s.service.SetRolePermissions(s.ctx, role.ID, []string{"staff.manage"}))

		profile, err := s.service.AssignRole(s.ctx, userID, s.orgID, role.ID)
		s.Require().NoError(err)
		s.Equal(role.ID, profile.RoleID)
		s.True(s.service.CheckPermission(s.ctx, userID, "staff.manage"))
	})

	s.Run("assigning an unknown role fails", func() {
		userID := s.addUser(false)
		_, err := s.service.CreateStaffProfile(s.ctx, userID, s.orgID, id.RoleID{}, "Stuck")
		s.Require().NoError(err)

		_, err = s.service.AssignRole(s.ctx, userID, s.orgID, id.NewRoleID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("removing a profile revokes access", func() {
		userID := s.addUser(false)
		s.grantRole(userID, "staff.manage")

		profile, err := s.service.GetStaffProfile(s.ctx, userID, s.orgID)
		s.Require().NoError(err)
		s.Require().NoError(s.service.RemoveStaffProfile(s.ctx, profile.ID))

		s.False(s.service.CheckPermission(s.ctx, userID, "staff.manage"))
	})
}

func (s *DirectoryServiceSuite) TestSetRolePermissionsDeduplicates() {
	role, err := s.service.CreateRole(s.ctx, s.orgID, "Dedup", "")
	s.Require().NoError(err)
	s.Require().NoError(s.service.SetRolePermissions(s.ctx, role.ID,
		[]string{"a.read", "a.read", " a.read ", "b.write"}))

	loaded, err := s.service.GetRole(s.ctx, role.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"a.read", "b.write"}, loaded.Permissions)
}
