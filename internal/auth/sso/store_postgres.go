// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package sso

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/superbasicman/superbasic/pkg/uuidv7"
)

// # Identity Link Repository

// PostgresLinkRepository implements the LinkRepository interface using pgx.
// It also satisfies session.IdentityLinker, so federated session creation
// can assert links through the same store.
type PostgresLinkRepository struct {
	pool *pgxpool.Pool
}

// NewLinkRepository creates a new PostgreSQL implementation of LinkRepository.
func NewLinkRepository(pool *pgxpool.Pool) *PostgresLinkRepository {
	return &PostgresLinkRepository{pool: pool}
}

/*
EnsureLink upserts one identity link row.

Description: The table carries a unique constraint over (userid, provider,
providersubject); conflicts are ignored so the call is idempotent across
repeated federated logins.

Parameters:
  - context: context.Context
  - userID: string
  - provider: string
  - subject: string

Returns:
  - error: Storage failures
*/
func (repository *PostgresLinkRepository) EnsureLink(context context.Context, userID, provider, subject string) error {
	const query = `
		INSERT INTO auth.identitylink (id, userid, provider, providersubject, createdat)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (userid, provider, providersubject) DO NOTHING`

	_, err := repository.pool.Exec(context, query,
		uuidv7.New(),
		userID,
		provider,
		subject,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("postgres_identity_link_ensure_failed: %w", err)
	}

	return nil
}

/*
FindByProviderSubject lists every link matching the identity pair.

Parameters:
  - context: context.Context
  - provider: string
  - subject: string

Returns:
  - []IdentityLink: Matching links, oldest first; empty when none match
  - error: Retrieval failures
*/
func (repository *PostgresLinkRepository) FindByProviderSubject(context context.Context, provider, subject string) ([]IdentityLink, error) {
	const query = `
		SELECT id, userid, provider, providersubject, createdat
		FROM auth.identitylink
		WHERE provider = $1 AND providersubject = $2
		ORDER BY createdat ASC`

	rows, err := repository.pool.Query(context, query, provider, subject)
	if err != nil {
		return nil, fmt.Errorf("postgres_identity_link_find_failed: %w", err)
	}
	defer rows.Close()

	var links []IdentityLink
	for rows.Next() {
		var link IdentityLink
		if err := rows.Scan(&link.ID, &link.UserID, &link.Provider, &link.ProviderSubject, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_identity_link_scan_failed: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_identity_link_rows_failed: %w", err)
	}

	return links, nil
}
