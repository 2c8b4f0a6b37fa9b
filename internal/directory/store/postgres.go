package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"opsdeck/internal/directory/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

// Postgres persists roles, role permissions, and staff profiles.
//
// Schema (migrations/002_directory.sql):
//
//	CREATE TABLE roles (
//	    id          UUID PRIMARY KEY,
//	    org_id      UUID NOT NULL REFERENCES organizations(id),
//	    name        TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE role_permissions (
//	    role_id        UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
//	    permission_key TEXT NOT NULL,
//	    PRIMARY KEY (role_id, permission_key)
//	);
//	CREATE TABLE staff_profiles (
//	    id         UUID PRIMARY KEY,
//	    user_id    UUID NOT NULL,
//	    org_id     UUID NOT NULL REFERENCES organizations(id),
//	    role_id    UUID NULL REFERENCES roles(id),
//	    full_name  TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL,
//	    UNIQUE (user_id, org_id)
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed directory store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const uniqueViolation = "23505"

func (s *Postgres) CreateRole(ctx context.Context, role *models.Role) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO roles (id, org_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		role.ID, role.OrgID, role.Name, role.Description, role.CreatedAt, role.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (s *Postgres) FindRole(ctx context.Context, roleID id.RoleID) (*models.Role, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, org_id, name, description, created_at, updated_at
		FROM roles WHERE id = $1`, roleID)

	var role models.Role
	err := row.Scan(&role.ID, &role.OrgID, &role.Name, &role.Description,
		&role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("role %s: %w", roleID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan role: %w", err)
	}

	perms, err := s.rolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

func (s *Postgres) ListRoles(ctx context.Context, orgID id.OrgID) ([]*models.Role, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, name, description, created_at, updated_at
		FROM roles WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.OrgID, &role.Name, &role.Description,
			&role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, role := range roles {
		perms, err := s.rolePermissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}
	return roles, nil
}

// SetRolePermissions replaces the role's permission set atomically.
func (s *Postgres) SetRolePermissions(ctx context.Context, roleID id.RoleID, keys []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set role permissions: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if !exists {
		return fmt.Errorf("role %s: %w", roleID, sentinel.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clear role permissions: %w", err)
	}
	for _, key := range keys {
		if _, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_key) VALUES ($1, $2)`,
			roleID, key); err != nil {
			return fmt.Errorf("insert role permission: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Postgres) CreateProfileIfAbsent(ctx context.Context, profile *models.StaffProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO staff_profiles (id, user_id, org_id, role_id, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		profile.ID, profile.UserID, profile.OrgID, nullRoleID(profile.RoleID),
		profile.FullName, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("staff profile for user %s in org %s: %w",
				profile.UserID, profile.OrgID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create staff profile: %w", err)
	}
	return nil
}

func (s *Postgres) FindProfileByUser(ctx context.Context, userID id.UserID, orgID id.OrgID) (*models.StaffProfile, error) {
	query := `
		SELECT id, user_id, org_id, role_id, full_name, created_at, updated_at
		FROM staff_profiles WHERE user_id = $1`
	args := []any{userID}
	if !orgID.IsZero() {
		query += ` AND org_id = $2`
		args = append(args, orgID)
	}
	row := s.pool.QueryRow(ctx, query, args...)
	return scanProfile(row, userID)
}

func (s *Postgres) ListProfiles(ctx context.Context, orgID id.OrgID) ([]*models.StaffProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, org_id, role_id, full_name, created_at, updated_at
		FROM staff_profiles WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list staff profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.StaffProfile
	for rows.Next() {
		p, err := scanProfile(rows, id.UserID{})
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *Postgres) UpdateProfile(ctx context.Context, profile *models.StaffProfile) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE staff_profiles
		SET role_id = $2, full_name = $3, updated_at = $4
		WHERE id = $1`,
		profile.ID, nullRoleID(profile.RoleID), profile.FullName, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update staff profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("staff profile %s: %w", profile.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) DeleteProfile(ctx context.Context, staffID id.StaffID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM staff_profiles WHERE id = $1`, staffID)
	if err != nil {
		return fmt.Errorf("delete staff profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("staff profile %s: %w", staffID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) rolePermissions(ctx context.Context, roleID id.RoleID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT permission_key FROM role_permissions
		WHERE role_id = $1 ORDER BY permission_key`, roleID)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan role permission: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func scanProfile(row pgx.Row, userID id.UserID) (*models.StaffProfile, error) {
	var p models.StaffProfile
	var roleID *id.RoleID
	err := row.Scan(&p.ID, &p.UserID, &p.OrgID, &roleID, &p.FullName,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("staff profile for user %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan staff profile: %w", err)
	}
	if roleID != nil {
		p.RoleID = *roleID
	}
	return &p, nil
}

func nullRoleID(roleID id.RoleID) *id.RoleID {
	if roleID.IsZero() {
		return nil
	}
	return &roleID
}
