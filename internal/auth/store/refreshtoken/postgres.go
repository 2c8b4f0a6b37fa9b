package refreshtoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opsdeck/internal/auth/models"
	id "opsdeck/pkg/domain"
	"opsdeck/pkg/platform/sentinel"
)

// Postgres persists refresh token records.
//
// Schema (migrations/004_refresh_tokens.sql):
//
//	CREATE TABLE refresh_tokens (
//	    token_hash TEXT PRIMARY KEY,
//	    session_id UUID NOT NULL,
//	    user_id    UUID NOT NULL,
//	    used       BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL,
//	    used_at    TIMESTAMPTZ NULL
//	);
//	CREATE INDEX refresh_tokens_session_idx ON refresh_tokens (session_id);
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed refresh token store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Create(ctx context.Context, record *models.RefreshTokenRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (token_hash, session_id, user_id, used, created_at, expires_at, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.TokenHash, record.SessionID, record.UserID, record.Used,
		record.CreatedAt, record.ExpiresAt, record.UsedAt,
	)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// Consume marks the record used if valid, atomically via row lock.
// Returns the record even on ErrAlreadyUsed to enable replay detection.
func (s *Postgres) Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin consume: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT token_hash, session_id, user_id, used, created_at, expires_at, used_at
		FROM refresh_tokens WHERE token_hash = $1
		FOR UPDATE`, tokenHash)

	var record models.RefreshTokenRecord
	err = row.Scan(&record.TokenHash, &record.SessionID, &record.UserID,
		&record.Used, &record.CreatedAt, &record.ExpiresAt, &record.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("refresh token: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	if err := record.ValidateForConsume(now); err != nil {
		return &record, fmt.Errorf("refresh token: %w", err)
	}

	record.MarkUsed(now)
	if _, err := tx.Exec(ctx, `
		UPDATE refresh_tokens SET used = TRUE, used_at = $2 WHERE token_hash = $1`,
		tokenHash, now); err != nil {
		return nil, fmt.Errorf("mark refresh token used: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit consume: %w", err)
	}
	return &record, nil
}

func (s *Postgres) DeleteBySessionID(ctx context.Context, sessionID id.SessionID) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete refresh tokens for session: %w", err)
	}
	return nil
}

// DeleteExpired removes all records expired as of now.
func (s *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
