package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"opsdeck/internal/org/models"
	"opsdeck/internal/org/store"
	id "opsdeck/pkg/domain"
	dErrors "opsdeck/pkg/domain-errors"
	"opsdeck/pkg/requestcontext"
)

type OrgServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	service *Service
	ctx     context.Context
}

func (s *OrgServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store, "opsdeck.local")
	s.ctx = requestcontext.WithTime(context.Background(), time.Now())
}

func TestOrgServiceSuite(t *testing.T) {
	suite.Run(t, new(OrgServiceSuite))
}

func (s *OrgServiceSuite) TestSubdomainFromHost() {
	cases := []struct {
		name string
		host string
		want string
	}{
		{"tenant subdomain", "acme.opsdeck.local", "acme"},
		{"tenant subdomain with port", "acme.opsdeck.local:8080", "acme"},
		{"uppercase host", "ACME.OPSDECK.LOCAL", "acme"},
		{"apex host carries no tenant", "opsdeck.local", ""},
		{"apex host with port", "opsdeck.local:8080", ""},
		{"foreign domain", "acme.other.example", ""},
		{"nested label is not a tenant", "a.b.opsdeck.local", ""},
		{"bare host", "localhost", ""},
		{"ip literal", "127.0.0.1:8080", ""},
		{"empty host", "", ""},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.Equal(tc.want, s.service.SubdomainFromHost(tc.host))
		})
	}
}

func (s *OrgServiceSuite) TestResolveSubdomain() {
	s.Run("resolves an active organization", func() {
		org, err := s.service.CreateOrganization(s.ctx, "Acme", "acme")
		s.Require().NoError(err)

		resolved, err := s.service.ResolveSubdomain(s.ctx, "acme")
		s.Require().NoError(err)
		s.Equal(org.ID, resolved.ID)
	})

	s.Run("unknown subdomain is not found, never a default", func() {
		_, err := s.service.ResolveSubdomain(s.ctx, "ghost")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("inactive organization does not resolve", func() {
		org, err := s.service.CreateOrganization(s.ctx, "Paused", "paused")
		s.Require().NoError(err)
		_, err = s.service.DeactivateOrganization(s.ctx, org.ID)
		s.Require().NoError(err)

		_, err = s.service.ResolveSubdomain(s.ctx, "paused")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty subdomain is not found", func() {
		_, err := s.service.ResolveSubdomain(s.ctx, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *OrgServiceSuite) TestLifecycle() {
	s.Run("duplicate subdomain conflicts", func() {
		_, err := s.service.CreateOrganization(s.ctx, "First", "taken")
		s.Require().NoError(err)

		_, err = s.service.CreateOrganization(s.ctx, "Second", "taken")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("invalid subdomain is rejected", func() {
		_, err := s.service.CreateOrganization(s.ctx, "Bad", "-nope-")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("deactivate twice conflicts", func() {
		org, err := s.service.CreateOrganization(s.ctx, "Cycle", "cycle")
		s.Require().NoError(err)

		_, err = s.service.DeactivateOrganization(s.ctx, org.ID)
		s.Require().NoError(err)
		_, err = s.service.DeactivateOrganization(s.ctx, org.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("reactivate restores resolution", func() {
		org, err := s.service.CreateOrganization(s.ctx, "Back", "back")
		s.Require().NoError(err)
		_, err = s.service.DeactivateOrganization(s.ctx, org.ID)
		s.Require().NoError(err)
		_, err = s.service.ReactivateOrganization(s.ctx, org.ID)
		s.Require().NoError(err)

		resolved, err := s.service.ResolveSubdomain(s.ctx, "back")
		s.Require().NoError(err)
		s.Equal(models.OrgStatusActive, resolved.Status)
	})

	s.Run("zero org id is a bad request", func() {
		_, err := s.service.GetOrganization(s.ctx, id.OrgID{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
