// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package oauth

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

// # Client Repository

// PostgresClientRepository implements ClientRepository using pgx.
type PostgresClientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository creates a new PostgreSQL implementation of ClientRepository.
func NewClientRepository(pool *pgxpool.Pool) *PostgresClientRepository {
	return &PostgresClientRepository{pool: pool}
}

/*
FindByID retrieves one registered client by its public client_id.

Parameters:
  - context: context.Context
  - clientID: string

Returns:
  - *Client: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresClientRepository) FindByID(context context.Context, clientID string) (*Client, error) {
	const query = `
		SELECT id, name, secrethash, redirecturis, scopes, public, createdat, updatedat
		FROM auth.oauthclient
		WHERE id = $1`

	client := &Client{}
	var scopes []string

	err := repository.pool.QueryRow(context, query, clientID).Scan(
		&client.ID,
		&client.Name,
		&client.SecretHash,
		&client.RedirectURIs,
		&scopes,
		&client.Public,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("OAuth client")
		}
		return nil, fmt.Errorf("postgres_oauth_client_find_failed: %w", err)
	}

	for _, s := range scopes {
		client.Scopes = append(client.Scopes, authz.Scope(s))
	}

	return client, nil
}

// # Authorization Code Repository

// PostgresCodeRepository implements CodeRepository using pgx.
type PostgresCodeRepository struct {
	pool *pgxpool.Pool
}

// NewCodeRepository creates a new PostgreSQL implementation of CodeRepository.
func NewCodeRepository(pool *pgxpool.Pool) *PostgresCodeRepository {
	return &PostgresCodeRepository{pool: pool}
}

const codeColumns = `
	id, clientid, userid, sessionid, redirecturi, scope, nonce,
	codechallenge, codechallengemethod, codehash, createdat, expiresat, consumedat`

/*
Create persists a freshly minted authorization code.

Parameters:
  - context: context.Context
  - code: *AuthorizationCode

Returns:
  - error: Storage failures
*/
func (repository *PostgresCodeRepository) Create(context context.Context, code *AuthorizationCode) error {
	const query = `
		INSERT INTO auth.authorizationcode (
			id, clientid, userid, sessionid, redirecturi, scope, nonce,
			codechallenge, codechallengemethod, codehash, createdat, expiresat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		code.ID,
		code.ClientID,
		code.UserID,
		code.SessionID,
		code.RedirectURI,
		code.Scope,
		code.Nonce,
		code.CodeChallenge,
		code.CodeChallengeMethod,
		code.CodeHash,
		code.CreatedAt,
		code.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_oauth_code_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves a code by primary key, consumed rows included.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *AuthorizationCode: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresCodeRepository) FindByID(context context.Context, id string) (*AuthorizationCode, error) {
	query := `SELECT` + codeColumns + ` FROM auth.authorizationcode WHERE id = $1`

	code := &AuthorizationCode{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&code.ID,
		&code.ClientID,
		&code.UserID,
		&code.SessionID,
		&code.RedirectURI,
		&code.Scope,
		&code.Nonce,
		&code.CodeChallenge,
		&code.CodeChallengeMethod,
		&code.CodeHash,
		&code.CreatedAt,
		&code.ExpiresAt,
		&code.ConsumedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Authorization code")
		}
		return nil, fmt.Errorf("postgres_oauth_code_find_failed: %w", err)
	}

	return code, nil
}

/*
Consume atomically marks a code consumed.

Description: The UPDATE matches only rows whose consumedat is still NULL,
so exactly one concurrent exchange can observe rows-affected == 1. Losers
and replays get false without error.

Parameters:
  - context: context.Context
  - id: string
  - at: time.Time

Returns:
  - bool: true when this call performed the consumption
  - error: Execution errors
*/
func (repository *PostgresCodeRepository) Consume(context context.Context, id string, at time.Time) (bool, error) {
	const query = `
		UPDATE auth.authorizationcode
		SET consumedat = $2
		WHERE id = $1 AND consumedat IS NULL`

	tag, err := repository.pool.Exec(context, query, id, at)
	if err != nil {
		return false, fmt.Errorf("postgres_oauth_code_consume_failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
