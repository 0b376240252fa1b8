// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/superbasicman/superbasic/internal/platform/ctxkey"
)

// ExecContext carries the caller's identity into SQL sessions so row-level
// security policies can scope what a query may touch.
//
// The authentication middleware imprints it after resolving a request and
// explicitly resets it to the zero value (anonymous) on every failure path.
// Stores apply it per transaction; it never outlives one.
type ExecContext struct {
	UserID      string
	ProfileID   string
	WorkspaceID string
}

// IsAnonymous reports whether the context carries no identity.
func (e ExecContext) IsAnonymous() bool {
	return e == ExecContext{}
}

// WithExecContext attaches the execution context to the request context.
func WithExecContext(ctx context.Context, exec ExecContext) context.Context {
	return context.WithValue(ctx, ctxkey.KeyDBExec, exec)
}

// ExecContextFrom reads the execution context; absent means anonymous.
func ExecContextFrom(ctx context.Context) ExecContext {
	exec, _ := ctx.Value(ctxkey.KeyDBExec).(ExecContext)
	return exec
}

// BeginExec opens a transaction and imprints the caller's execution context
// into transaction-local GUCs (app.userid, app.profileid, app.workspaceid)
// in a single round trip. Policies read them via current_setting(..., true);
// empty strings mean anonymous.
func BeginExec(ctx context.Context, pool *pgxpool.Pool) (pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin failed: %w", err)
	}

	exec := ExecContextFrom(ctx)
	_, err = tx.Exec(ctx,
		`SELECT set_config('app.userid', $1, true),
		        set_config('app.profileid', $2, true),
		        set_config('app.workspaceid', $3, true)`,
		exec.UserID, exec.ProfileID, exec.WorkspaceID,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("postgres: exec context imprint failed: %w", err)
	}

	return tx, nil
}
