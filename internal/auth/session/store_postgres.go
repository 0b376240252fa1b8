// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

// Package session (Postgres) implements the storage layer for sessions and
// refresh-token families.
//
// # Architecture
//
// Repositories in this package are strictly separated from domain logic. They
// implement domain-defined interfaces (e.g., [SessionRepository]) using the
// [pgxpool.Pool] connection manager.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/postgres"
)

// # Session Repository

// PostgresSessionRepository implements the SessionRepository interface using pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

const sessionColumns = `
	id, userid, tokenhash, clienttype, mfalevel, authenticatedat, lastseenat,
	ipaddress, useragent, rememberme, createdat, expiresat, absoluteexpiresat, revokedat`

/*
Create persists a new session record into the auth.session table.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Storage failures
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO auth.session (
			id, userid, tokenhash, clienttype, mfalevel, authenticatedat, lastseenat,
			ipaddress, useragent, rememberme, createdat, expiresat, absoluteexpiresat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.ClientType,
		session.MFALevel,
		session.AuthenticatedAt,
		session.LastSeenAt,
		session.IPAddress,
		session.UserAgent,
		session.RememberMe,
		session.CreatedAt,
		session.ExpiresAt,
		session.AbsoluteExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_session_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves a session by primary key, revoked or not.

Description: Liveness decisions stay in the service layer; reuse handling
needs to see revoked rows.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *Session: Hydrated session metadata
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresSessionRepository) FindByID(context context.Context, id string) (*Session, error) {
	query := `SELECT` + sessionColumns + ` FROM auth.session WHERE id = $1`

	session, err := scanSession(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}

	return session, nil
}

/*
ExtendExpiry pushes the sliding expiry forward and stamps last activity.

Parameters:
  - context: context.Context
  - id: string
  - expiresAt: time.Time (already capped by the absolute limit)
  - lastSeenAt: time.Time

Returns:
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) ExtendExpiry(context context.Context, id string, expiresAt, lastSeenAt time.Time) error {
	const query = `
		UPDATE auth.session
		SET expiresat = $2, lastseenat = $3
		WHERE id = $1 AND revokedat IS NULL`

	_, err := repository.pool.Exec(context, query, id, expiresAt, lastSeenAt)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_extend_failed: %w", err)
	}
	return nil
}

/*
Revoke marks the user's session revoked, reporting whether a live row
actually transitioned.

Parameters:
  - context: context.Context
  - sessionID: string
  - userID: string (ownership constraint)

Returns:
  - RevocationStatus: revoked when a live row transitioned, not_found otherwise
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) Revoke(context context.Context, sessionID, userID string) (RevocationStatus, error) {
	const query = `
		UPDATE auth.session
		SET revokedat = NOW()
		WHERE id = $1 AND userid = $2 AND revokedat IS NULL`

	tag, err := repository.pool.Exec(context, query, sessionID, userID)
	if err != nil {
		return RevocationStatusNotFound, fmt.Errorf("postgres_session_repo_revoke_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return RevocationStatusNotFound, nil
	}
	return RevocationStatusRevoked, nil
}

/*
RevokeByID marks a session revoked without an ownership constraint.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) RevokeByID(context context.Context, sessionID string) error {
	const query = `UPDATE auth.session SET revokedat = NOW() WHERE id = $1 AND revokedat IS NULL`
	_, err := repository.pool.Exec(context, query, sessionID)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_by_id_failed: %w", err)
	}
	return nil
}

/*
RevokeAllForUser marks all live sessions for a user as revoked.

Description: Security nuking of all active sessions for a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Batch revocation failures
*/
func (repository *PostgresSessionRepository) RevokeAllForUser(context context.Context, userID string) error {
	const query = `UPDATE auth.session SET revokedat = NOW() WHERE userid = $1 AND revokedat IS NULL`
	_, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_all_failed: %w", err)
	}
	return nil
}

/*
FindActiveByUserID lists all live sessions for a user, newest first.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []Session: Live sessions
  - error: Retrieval failures
*/
func (repository *PostgresSessionRepository) FindActiveByUserID(context context.Context, userID string) ([]Session, error) {
	query := `SELECT` + sessionColumns + `
		FROM auth.session
		WHERE userid = $1 AND revokedat IS NULL AND expiresat > NOW() AND absoluteexpiresat > NOW()
		ORDER BY createdat DESC`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_list_active_failed: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

/*
FindActiveByUserIDs lists live sessions across several users.

Parameters:
  - context: context.Context
  - userIDs: []string

Returns:
  - []Session: Live sessions for all listed users
  - error: Retrieval failures
*/
func (repository *PostgresSessionRepository) FindActiveByUserIDs(context context.Context, userIDs []string) ([]Session, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `SELECT` + sessionColumns + `
		FROM auth.session
		WHERE userid = ANY($1) AND revokedat IS NULL AND expiresat > NOW() AND absoluteexpiresat > NOW()
		ORDER BY createdat DESC`

	rows, err := repository.pool.Query(context, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_list_by_users_failed: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// scanSession hydrates one session row.
func scanSession(row pgx.Row) (*Session, error) {
	session := &Session{}
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.ClientType,
		&session.MFALevel,
		&session.AuthenticatedAt,
		&session.LastSeenAt,
		&session.IPAddress,
		&session.UserAgent,
		&session.RememberMe,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.AbsoluteExpiresAt,
		&session.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// collectSessions drains a multi-row result set.
func collectSessions(rows pgx.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_session_repo_scan_failed: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_rows_failed: %w", err)
	}
	return sessions, nil
}

// # Refresh Token Repository

// PostgresRefreshTokenRepository implements the RefreshTokenRepository
// interface using pgx.
type PostgresRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository creates a new PostgreSQL implementation of
// RefreshTokenRepository.
func NewRefreshTokenRepository(pool *pgxpool.Pool) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{pool: pool}
}

const refreshTokenColumns = `
	id, userid, sessionid, familyid, tokenhash, last4, createdat, expiresat, lastusedat, revokedat`

const refreshTokenInsert = `
	INSERT INTO auth.refreshtoken (
		id, userid, sessionid, familyid, tokenhash, last4, createdat, expiresat
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

/*
Create persists the root token of a new rotation family.

Parameters:
  - context: context.Context
  - refreshToken: *RefreshToken

Returns:
  - error: Storage failures
*/
func (repository *PostgresRefreshTokenRepository) Create(context context.Context, refreshToken *RefreshToken) error {
	if refreshToken.CreatedAt.IsZero() {
		refreshToken.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, refreshTokenInsert,
		refreshToken.ID,
		refreshToken.UserID,
		refreshToken.SessionID,
		refreshToken.FamilyID,
		refreshToken.TokenHash,
		refreshToken.Last4,
		refreshToken.CreatedAt,
		refreshToken.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves a refresh token by primary key, revoked or not.

Description: Reuse detection depends on seeing revoked rows, so no liveness
filter is applied here.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *RefreshToken: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresRefreshTokenRepository) FindByID(context context.Context, id string) (*RefreshToken, error) {
	query := `SELECT` + refreshTokenColumns + ` FROM auth.refreshtoken WHERE id = $1`

	refreshToken := &RefreshToken{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&refreshToken.ID,
		&refreshToken.UserID,
		&refreshToken.SessionID,
		&refreshToken.FamilyID,
		&refreshToken.TokenHash,
		&refreshToken.Last4,
		&refreshToken.CreatedAt,
		&refreshToken.ExpiresAt,
		&refreshToken.LastUsedAt,
		&refreshToken.RevokedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Refresh token")
		}
		return nil, fmt.Errorf("postgres_refresh_repo_find_failed: %w", err)
	}

	return refreshToken, nil
}

/*
RotateWithinFamily revokes the predecessor and inserts the successor in one
transaction.

Description: The revoke UPDATE targets only live rows. When zero rows
transition, a concurrent rotation already consumed the predecessor; the
transaction rolls back and ErrAlreadyRotated is returned so the two attempts
can never both mint a successor.

Parameters:
  - context: context.Context
  - predecessorID: string
  - successor: *RefreshToken (same FamilyID and SessionID as the predecessor)

Returns:
  - error: ErrAlreadyRotated on a lost race, persistence failures
*/
func (repository *PostgresRefreshTokenRepository) RotateWithinFamily(context context.Context, predecessorID string, successor *RefreshToken) error {
	transaction, err := postgres.BeginExec(context, repository.pool)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_rotate_begin_failed: %w", err)
	}
	defer transaction.Rollback(context)

	const revokeQuery = `
		UPDATE auth.refreshtoken
		SET revokedat = $2, lastusedat = $2
		WHERE id = $1 AND revokedat IS NULL`

	tag, err := transaction.Exec(context, revokeQuery, predecessorID, successor.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_rotate_revoke_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyRotated
	}

	_, err = transaction.Exec(context, refreshTokenInsert,
		successor.ID,
		successor.UserID,
		successor.SessionID,
		successor.FamilyID,
		successor.TokenHash,
		successor.Last4,
		successor.CreatedAt,
		successor.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_rotate_insert_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres_refresh_repo_rotate_commit_failed: %w", err)
	}

	return nil
}

/*
RevokeFamily revokes every live token sharing the familyID.

Parameters:
  - context: context.Context
  - familyID: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresRefreshTokenRepository) RevokeFamily(context context.Context, familyID string) error {
	const query = `UPDATE auth.refreshtoken SET revokedat = NOW() WHERE familyid = $1 AND revokedat IS NULL`
	_, err := repository.pool.Exec(context, query, familyID)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_revoke_family_failed: %w", err)
	}
	return nil
}

/*
RevokeBySessionID revokes every live token bound to a session.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresRefreshTokenRepository) RevokeBySessionID(context context.Context, sessionID string) error {
	const query = `UPDATE auth.refreshtoken SET revokedat = NOW() WHERE sessionid = $1 AND revokedat IS NULL`
	_, err := repository.pool.Exec(context, query, sessionID)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_revoke_by_session_failed: %w", err)
	}
	return nil
}

/*
RevokeAllForUser revokes every live token of one user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresRefreshTokenRepository) RevokeAllForUser(context context.Context, userID string) error {
	const query = `UPDATE auth.refreshtoken SET revokedat = NOW() WHERE userid = $1 AND revokedat IS NULL`
	_, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_revoke_all_failed: %w", err)
	}
	return nil
}
