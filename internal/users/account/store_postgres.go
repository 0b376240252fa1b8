// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package account (Postgres) implements the storage layer for user identities.

# Schema Table Mapping
  - users.account: Master identity, credentials, and profile data.
*/
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/database/schema"
)

// # Repository Implementations

// PostgresAccountRepository implements [AccountRepository] using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new Postgres implementation for identity storage.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// # AccountRepository Methods

/*
Create persists a new account row in users.account.

Parameters:
  - context: context.Context
  - account: *Account (ID, ProfileID and timestamps already assigned)

Returns:
  - error: apperr.Conflict when the email is already taken, execution failures
*/
func (repository *PostgresAccountRepository) Create(context context.Context, account *Account) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		schema.UserAccount.Table,
		schema.UserAccount.ID, schema.UserAccount.ProfileID, schema.UserAccount.Email,
		schema.UserAccount.PasswordHash, schema.UserAccount.DisplayName, schema.UserAccount.AvatarURL,
		schema.UserAccount.Bio, schema.UserAccount.TOTPSecret, schema.UserAccount.Status,
		schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
	)

	_, err := repository.pool.Exec(context, query,
		account.ID,
		account.ProfileID,
		strings.ToLower(account.Email),
		account.PasswordHash,
		account.DisplayName,
		account.AvatarURL,
		account.Bio,
		account.TOTPSecret,
		account.Status,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		// The service pre-checks uniqueness, but two concurrent registrations
		// can still race to the unique index. Map the loser to a Conflict.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return apperr.Conflict("Email is already registered")
		}
		return fmt.Errorf("postgres_account_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves an account record from the users.account table.

Parameters:
  - context: context.Context
  - id: string (UUID)

Returns:
  - *Account: Hydrated identity entity
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*Account, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.UserAccount.ID, schema.UserAccount.ProfileID, schema.UserAccount.Email,
		schema.UserAccount.PasswordHash, schema.UserAccount.DisplayName, schema.UserAccount.AvatarURL,
		schema.UserAccount.Bio, schema.UserAccount.TOTPSecret, schema.UserAccount.Status,
		schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
		schema.UserAccount.Table, schema.UserAccount.ID,
	)

	return repository.scanOne(repository.pool.QueryRow(context, query, id), "find_by_id")
}

/*
FindByEmail retrieves an account record by its lowercase-normalized email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Account: Hydrated identity entity
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresAccountRepository) FindByEmail(context context.Context, email string) (*Account, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.UserAccount.ID, schema.UserAccount.ProfileID, schema.UserAccount.Email,
		schema.UserAccount.PasswordHash, schema.UserAccount.DisplayName, schema.UserAccount.AvatarURL,
		schema.UserAccount.Bio, schema.UserAccount.TOTPSecret, schema.UserAccount.Status,
		schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
		schema.UserAccount.Table, schema.UserAccount.Email,
	)

	return repository.scanOne(repository.pool.QueryRow(context, query, strings.ToLower(email)), "find_by_email")
}

/*
Update modifies the mutable profile metadata of an account.

Description: This method syncs the DisplayName, AvatarURL and Bio fields,
while refreshing the updatedat timestamp. Credentials are immutable here.

Parameters:
  - context: context.Context
  - account: *Account

Returns:
  - error: apperr.NotFound if the row vanished, update failures
*/
func (repository *PostgresAccountRepository) Update(context context.Context, account *Account) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = $5
		WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.DisplayName, schema.UserAccount.AvatarURL, schema.UserAccount.Bio,
		schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID,
	)

	tag, err := repository.pool.Exec(context, query,
		account.ID,
		account.DisplayName,
		account.AvatarURL,
		account.Bio,
		time.Now(),
	)

	// If the update fails, return an error
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}

/*
SetTOTPSecret stores or clears the TOTP shared secret for an account.

Parameters:
  - context: context.Context
  - id: string
  - secret: *string (nil clears enrollment)

Returns:
  - error: apperr.NotFound or execution failures
*/
func (repository *PostgresAccountRepository) SetTOTPSecret(context context.Context, id string, secret *string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.TOTPSecret, schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID)

	tag, err := repository.pool.Exec(context, query, id, secret, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_set_totp_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}

// scanOne hydrates a single account row and normalizes the no-rows case.
func (repository *PostgresAccountRepository) scanOne(row pgx.Row, action string) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.ProfileID,
		&account.Email,
		&account.PasswordHash,
		&account.DisplayName,
		&account.AvatarURL,
		&account.Bio,
		&account.TOTPSecret,
		&account.Status,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_%s_failed: %w", action, err)
	}

	return account, nil
}
