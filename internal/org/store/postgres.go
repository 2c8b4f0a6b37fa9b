package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"opsdeck/internal/org/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

// Postgres persists organizations in PostgreSQL.
//
// Schema (migrations/001_organizations.sql):
//
//	CREATE TABLE organizations (
//	    id         UUID PRIMARY KEY,
//	    name       TEXT NOT NULL,
//	    subdomain  TEXT NOT NULL UNIQUE,
//	    logo_url   TEXT NOT NULL DEFAULT '',
//	    status     TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed organization store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const uniqueViolation = "23505"

func (s *Postgres) CreateIfSubdomainAvailable(ctx context.Context, org *models.Organization) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organizations (id, name, subdomain, logo_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		org.ID, org.Name, models.NormalizeSubdomain(org.Subdomain), org.LogoURL,
		string(org.Status), org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("subdomain %q: %w", org.Subdomain, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, subdomain, logo_url, status, created_at, updated_at
		FROM organizations WHERE id = $1`, orgID)
	return scanOrganization(row)
}

func (s *Postgres) FindBySubdomain(ctx context.Context, subdomain string) (*models.Organization, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, subdomain, logo_url, status, created_at, updated_at
		FROM organizations WHERE subdomain = $1`,
		models.NormalizeSubdomain(subdomain))
	return scanOrganization(row)
}

func (s *Postgres) List(ctx context.Context) ([]*models.Organization, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, subdomain, logo_url, status, created_at, updated_at
		FROM organizations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, org *models.Organization) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE organizations
		SET name = $2, subdomain = $3, logo_url = $4, status = $5, updated_at = $6
		WHERE id = $1`,
		org.ID, org.Name, models.NormalizeSubdomain(org.Subdomain), org.LogoURL,
		string(org.Status), org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("organization %s: %w", org.ID, sentinel.ErrNotFound)
	}
	return nil
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	var status string
	err := row.Scan(&org.ID, &org.Name, &org.Subdomain, &org.LogoURL, &status,
		&org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("organization: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	org.Status = models.OrgStatus(status)
	return &org, nil
}
