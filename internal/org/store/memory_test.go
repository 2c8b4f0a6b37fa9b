package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"opsdeck/internal/org/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

type OrgStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *OrgStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestOrgStoreSuite(t *testing.T) {
	suite.Run(t, new(OrgStoreSuite))
}

func (s *OrgStoreSuite) newOrg(name, subdomain string) *models.Organization {
	org, err := models.NewOrganization(id.NewOrgID(), name, subdomain, time.Now())
	s.Require().NoError(err)
	return org
}

func (s *OrgStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds organization by ID", func() {
		org := s.newOrg("Acme", "acme")
		s.Require().NoError(s.store.CreateIfSubdomainAvailable(s.ctx, org))

		found, err := s.store.FindByID(s.ctx, org.ID)
		s.Require().NoError(err)
		s.Equal(org.Name, found.Name)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewOrgID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *OrgStoreSuite) TestSubdomainUniqueness() {
	s.Run("rejects duplicate subdomain", func() {
		s.Require().NoError(s.store.CreateIfSubdomainAvailable(s.ctx, s.newOrg("First", "shared")))

		err := s.store.CreateIfSubdomainAvailable(s.ctx, s.newOrg("Second", "shared"))
		s.Require().Error(err)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("finds by subdomain case-insensitively", func() {
		org := s.newOrg("Lookup", "lookup")
		s.Require().NoError(s.store.CreateIfSubdomainAvailable(s.ctx, org))

		found, err := s.store.FindBySubdomain(s.ctx, "LOOKUP")
		s.Require().NoError(err)
		s.Equal(org.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown subdomain", func() {
		_, err := s.store.FindBySubdomain(s.ctx, "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *OrgStoreSuite) TestUpdate() {
	s.Run("persists status transitions", func() {
		org := s.newOrg("Mutable", "mutable")
		s.Require().NoError(s.store.CreateIfSubdomainAvailable(s.ctx, org))

		s.Require().NoError(org.Deactivate(time.Now()))
		s.Require().NoError(s.store.Update(s.ctx, org))

		found, err := s.store.FindByID(s.ctx, org.ID)
		s.Require().NoError(err)
		s.Equal(models.OrgStatusInactive, found.Status)
	})

	s.Run("returns ErrNotFound for unknown organization", func() {
		org := s.newOrg("Ghost", "ghost")
		s.Require().ErrorIs(s.store.Update(s.ctx, org), sentinel.ErrNotFound)
	})

	s.Run("callers cannot mutate stored state through returned pointers", func() {
		org := s.newOrg("Isolated", "isolated")
		s.Require().NoError(s.store.CreateIfSubdomainAvailable(s.ctx, org))

		found, err := s.store.FindByID(s.ctx, org.ID)
		s.Require().NoError(err)
		found.Name = "Tampered"

		again, err := s.store.FindByID(s.ctx, org.ID)
		s.Require().NoError(err)
		s.Equal("Isolated", again.Name)
	})
}

func (s *OrgStoreSuite) TestList() {
	s.Require().NoError(s.store.CreateIfSubdomainAvailable(s.ctx, s.newOrg("One", "one")))
	s.Require().NoError(s.store.CreateIfSubdomainAvailable(s.ctx, s.newOrg("Two", "two")))

	orgs, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(orgs, 2)
}
