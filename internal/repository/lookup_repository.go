package repository

import (
	"context"
	"fmt"
	"time"

	"checkout-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// lookupRepository implements the LookupSessionRepository interface using PostgreSQL.
type lookupRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewLookupSessionRepository creates a new PostgreSQL-backed lookup session repository.
func NewLookupSessionRepository(pool *pgxpool.Pool, logger zerolog.Logger) LookupSessionRepository {
	return &lookupRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "lookup_session").Logger(),
	}
}

const sessionColumns = `
	id, email, code_hash, code_expires_at, last_code_sent_at,
	attempt_count, send_count, access_token, token_expires_at,
	created_at, updated_at
`

func scanSession(row pgx.Row, s *model.LookupSession) error {
	return row.Scan(
		&s.ID,
		&s.Email,
		&s.CodeHash,
		&s.CodeExpiresAt,
		&s.LastCodeSentAt,
		&s.AttemptCount,
		&s.SendCount,
		&s.AccessToken,
		&s.TokenExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
}

// GetByEmail retrieves the session for a normalised email.
func (r *lookupRepository) GetByEmail(ctx context.Context, email string) (*model.LookupSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM lookup_sessions
		WHERE email = $1
	`

	var s model.LookupSession
	err := scanSession(r.pool.QueryRow(ctx, query, email), &s)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("failed to query lookup session by email")
		return nil, fmt.Errorf("failed to query lookup session by email: %w", err)
	}

	return &s, nil
}

// GetByToken retrieves the session holding the given access token.
func (r *lookupRepository) GetByToken(ctx context.Context, token string) (*model.LookupSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM lookup_sessions
		WHERE access_token = $1
	`

	var s model.LookupSession
	err := scanSession(r.pool.QueryRow(ctx, query, token), &s)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("failed to query lookup session by token")
		return nil, fmt.Errorf("failed to query lookup session by token: %w", err)
	}

	return &s, nil
}

// SaveCode upserts the session row for an email with a freshly issued code.
// The unique email constraint collapses concurrent first-time requests onto
// a single row.
func (r *lookupRepository) SaveCode(ctx context.Context, email, codeHash string, expiresAt, sentAt time.Time) error {
	query := `
		INSERT INTO lookup_sessions (
			id, email, code_hash, code_expires_at, last_code_sent_at,
			attempt_count, send_count, access_token, token_expires_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, 0, 1, NULL, NULL, $5, $5)
		ON CONFLICT (email) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			code_expires_at = EXCLUDED.code_expires_at,
			last_code_sent_at = EXCLUDED.last_code_sent_at,
			attempt_count = 0,
			send_count = lookup_sessions.send_count + 1,
			access_token = NULL,
			token_expires_at = NULL,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query, uuid.New(), email, codeHash, expiresAt, sentAt)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to save verification code")
		return fmt.Errorf("failed to save verification code: %w", err)
	}

	r.logger.Debug().Msg("verification code saved")

	return nil
}

// IncrementAttempts advances the failed-attempt counter for a session.
func (r *lookupRepository) IncrementAttempts(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE lookup_sessions
		SET attempt_count = attempt_count + 1, updated_at = $2
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		r.logger.Error().Err(err).Str("session_id", id.String()).Msg("failed to increment attempt counter")
		return fmt.Errorf("failed to increment attempt counter: %w", err)
	}

	return nil
}

// SetToken records a successful verification: the code fields are cleared
// so the code cannot be replayed, and the new access token is stored.
func (r *lookupRepository) SetToken(ctx context.Context, id uuid.UUID, token string, expiresAt, at time.Time) error {
	query := `
		UPDATE lookup_sessions
		SET code_hash = NULL,
		    code_expires_at = NULL,
		    attempt_count = 0,
		    access_token = $2,
		    token_expires_at = $3,
		    updated_at = $4
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, token, expiresAt, at)
	if err != nil {
		r.logger.Error().Err(err).Str("session_id", id.String()).Msg("failed to store access token")
		return fmt.Errorf("failed to store access token: %w", err)
	}

	r.logger.Debug().Str("session_id", id.String()).Msg("access token stored")

	return nil
}

// ClearToken removes the session's access token.
func (r *lookupRepository) ClearToken(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE lookup_sessions
		SET access_token = NULL, token_expires_at = NULL, updated_at = $2
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		r.logger.Error().Err(err).Str("session_id", id.String()).Msg("failed to clear access token")
		return fmt.Errorf("failed to clear access token: %w", err)
	}

	return nil
}
