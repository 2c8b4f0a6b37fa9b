package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"opsdeck/internal/auth/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

// Postgres persists users in PostgreSQL.
//
// Schema (migrations/003_users.sql):
//
//	CREATE TABLE users (
//	    id            UUID PRIMARY KEY,
//	    email         TEXT NOT NULL UNIQUE,
//	    password_hash TEXT NOT NULL,
//	    org_id        UUID NULL REFERENCES organizations(id),
//	    superadmin    BOOLEAN NOT NULL DEFAULT FALSE,
//	    status        TEXT NOT NULL,
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const uniqueViolation = "23505"

func (s *Postgres) Create(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, org_id, superadmin, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, strings.ToLower(user.Email), user.PasswordHash, nullOrgID(user.OrgID),
		user.Superadmin, string(user.Status), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("email %q: %w", user.Email, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, org_id, superadmin, status, created_at, updated_at
		FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, org_id, superadmin, status, created_at, updated_at
		FROM users WHERE email = $1`, strings.ToLower(email))
	return scanUser(row)
}

// IsSuperadmin implements the directory service's SuperadminChecker.
func (s *Postgres) IsSuperadmin(ctx context.Context, userID id.UserID) (bool, error) {
	var superadmin bool
	err := s.pool.QueryRow(ctx,
		`SELECT superadmin FROM users WHERE id = $1`, userID).Scan(&superadmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("superadmin lookup: %w", err)
	}
	return superadmin, nil
}

func (s *Postgres) Update(ctx context.Context, user *models.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET email = $2, password_hash = $3, org_id = $4, superadmin = $5, status = $6, updated_at = $7
		WHERE id = $1`,
		user.ID, strings.ToLower(user.Email), user.PasswordHash, nullOrgID(user.OrgID),
		user.Superadmin, string(user.Status), user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var orgID *id.OrgID
	var status string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &orgID, &u.Superadmin,
		&status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if orgID != nil {
		u.OrgID = *orgID
	}
	u.Status = models.UserStatus(status)
	return &u, nil
}

func nullOrgID(orgID id.OrgID) *id.OrgID {
	if orgID.IsZero() {
		return nil
	}
	return &orgID
}
