// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package pat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
)

// PostgresTokenRepository implements the TokenRepository interface using pgx.
type PostgresTokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new PostgreSQL implementation of TokenRepository.
func NewTokenRepository(pool *pgxpool.Pool) *PostgresTokenRepository {
	return &PostgresTokenRepository{pool: pool}
}

const tokenColumns = `
	id, userid, name, tokenhash, last4, scopes, createdat, expiresat, lastusedat, revokedat`

/*
Create persists a new personal access token row.

Parameters:
  - context: context.Context
  - personalToken: *PersonalToken

Returns:
  - error: Storage failures
*/
func (repository *PostgresTokenRepository) Create(context context.Context, personalToken *PersonalToken) error {
	const query = `
		INSERT INTO auth.personaltoken (
			id, userid, name, tokenhash, last4, scopes, createdat, expiresat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if personalToken.CreatedAt.IsZero() {
		personalToken.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		personalToken.ID,
		personalToken.UserID,
		personalToken.Name,
		personalToken.TokenHash,
		personalToken.Last4,
		scopeStrings(personalToken),
		personalToken.CreatedAt,
		personalToken.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_pat_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves a token by primary key, revoked or not.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *PersonalToken: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresTokenRepository) FindByID(context context.Context, id string) (*PersonalToken, error) {
	query := `SELECT` + tokenColumns + ` FROM auth.personaltoken WHERE id = $1`

	personalToken, err := scanToken(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Personal access token")
		}
		return nil, fmt.Errorf("postgres_pat_repo_find_failed: %w", err)
	}

	return personalToken, nil
}

/*
ListByUserID lists all non-revoked tokens of one user, newest first.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []PersonalToken: Token rows
  - error: Retrieval failures
*/
func (repository *PostgresTokenRepository) ListByUserID(context context.Context, userID string) ([]PersonalToken, error) {
	query := `SELECT` + tokenColumns + `
		FROM auth.personaltoken
		WHERE userid = $1 AND revokedat IS NULL
		ORDER BY createdat DESC`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_pat_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var tokens []PersonalToken
	for rows.Next() {
		personalToken, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_pat_repo_scan_failed: %w", err)
		}
		tokens = append(tokens, *personalToken)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_pat_repo_rows_failed: %w", err)
	}

	return tokens, nil
}

/*
CountLiveByUserID counts the user's live tokens.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int: Number of live tokens
  - error: Retrieval failures
*/
func (repository *PostgresTokenRepository) CountLiveByUserID(context context.Context, userID string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM auth.personaltoken
		WHERE userid = $1 AND revokedat IS NULL
		  AND (expiresat IS NULL OR expiresat > NOW())`

	var count int
	if err := repository.pool.QueryRow(context, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_pat_repo_count_failed: %w", err)
	}

	return count, nil
}

/*
Rename updates the display name of the user's live token.

Parameters:
  - context: context.Context
  - id: string
  - userID: string (ownership constraint)
  - name: string

Returns:
  - bool: True when a live row was renamed
  - error: Persistence failures
*/
func (repository *PostgresTokenRepository) Rename(context context.Context, id, userID, name string) (bool, error) {
	const query = `
		UPDATE auth.personaltoken
		SET name = $3
		WHERE id = $1 AND userid = $2 AND revokedat IS NULL`

	tag, err := repository.pool.Exec(context, query, id, userID, name)
	if err != nil {
		return false, fmt.Errorf("postgres_pat_repo_rename_failed: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

/*
Revoke marks the user's token revoked, reporting whether a live row
actually transitioned.

Parameters:
  - context: context.Context
  - id: string
  - userID: string (ownership constraint)

Returns:
  - bool: True when a live row transitioned
  - error: Persistence failures
*/
func (repository *PostgresTokenRepository) Revoke(context context.Context, id, userID string) (bool, error) {
	const query = `
		UPDATE auth.personaltoken
		SET revokedat = NOW()
		WHERE id = $1 AND userid = $2 AND revokedat IS NULL`

	tag, err := repository.pool.Exec(context, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("postgres_pat_repo_revoke_failed: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

/*
TouchLastUsed stamps the token's last successful verification.

Parameters:
  - context: context.Context
  - id: string
  - at: time.Time

Returns:
  - error: Persistence failures
*/
func (repository *PostgresTokenRepository) TouchLastUsed(context context.Context, id string, at time.Time) error {
	const query = `UPDATE auth.personaltoken SET lastusedat = $2 WHERE id = $1`

	_, err := repository.pool.Exec(context, query, id, at)
	if err != nil {
		return fmt.Errorf("postgres_pat_repo_touch_failed: %w", err)
	}

	return nil
}

// scanToken hydrates one token row. Scopes are stored as text[] and mapped
// back onto the typed slice.
func scanToken(row pgx.Row) (*PersonalToken, error) {
	personalToken := &PersonalToken{}
	var scopes []string

	err := row.Scan(
		&personalToken.ID,
		&personalToken.UserID,
		&personalToken.Name,
		&personalToken.TokenHash,
		&personalToken.Last4,
		&scopes,
		&personalToken.CreatedAt,
		&personalToken.ExpiresAt,
		&personalToken.LastUsedAt,
		&personalToken.RevokedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, s := range scopes {
		personalToken.Scopes = append(personalToken.Scopes, authz.Scope(s))
	}

	return personalToken, nil
}

func scopeStrings(personalToken *PersonalToken) []string {
	scopes := make([]string, 0, len(personalToken.Scopes))
	for _, s := range personalToken.Scopes {
		scopes = append(scopes, string(s))
	}
	return scopes
}
