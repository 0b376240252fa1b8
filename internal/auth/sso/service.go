// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package sso

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/superbasicman/superbasic/internal/auth/audit"
	"github.com/superbasicman/superbasic/internal/auth/session"
)

// LogoutEventTTL is how long a processed event id is remembered by the
// replay guard. IdPs redeliver on timeout within minutes; a day covers
// every realistic retry schedule without growing the keyspace.
const LogoutEventTTL = 24 * time.Hour

// # Collaborator Contracts

// SessionDirectory is the slice of the session store the logout flow
// consumes: loading the candidate sessions and revoking the planned ones.
type SessionDirectory interface {
	FindActiveByUserIDs(context context.Context, userIDs []string) ([]session.Session, error)
	RevokeByID(context context.Context, sessionID string) error
}

// RefreshTokenDirectory revokes the refresh credentials bound to a session.
type RefreshTokenDirectory interface {
	RevokeBySessionID(context context.Context, sessionID string) error
}

// # Service Definition

// Service executes back-channel logout events end to end.
type Service struct {
	links         LinkRepository
	sessions      SessionDirectory
	refreshTokens RefreshTokenDirectory
	replayGuard   ReplayGuard
	auditRecorder *audit.Recorder
	logger        *slog.Logger
	clock         func() time.Time
}

// NewService constructs a new [Service] with its dependencies. replayGuard
// may be nil, which disables duplicate-event suppression.
func NewService(
	links LinkRepository,
	sessions SessionDirectory,
	refreshTokens RefreshTokenDirectory,
	replayGuard ReplayGuard,
	auditRecorder *audit.Recorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		links:         links,
		sessions:      sessions,
		refreshTokens: refreshTokens,
		replayGuard:   replayGuard,
		auditRecorder: auditRecorder,
		logger:        logger,
		clock:         time.Now,
	}
}

// WithClock replaces the time source for deterministic tests.
func (service *Service) WithClock(clock func() time.Time) *Service {
	service.clock = clock
	return service
}

// # Logout Execution

// LogoutInput is one back-channel logout event as delivered by the IdP.
type LogoutInput struct {
	Provider   string
	Subject    string
	EventID    string
	SessionIDs []string
	IPAddress  string
}

// LogoutResult reports what the event did.
type LogoutResult struct {
	// UserIDs and SessionIDs echo the executed plan.
	UserIDs    []string `json:"user_ids"`
	SessionIDs []string `json:"session_ids"`
	// Replayed is true when the event id was seen before and nothing ran.
	Replayed bool `json:"replayed"`
}

/*
HandleLogout resolves and executes the revocation plan for one IdP event.

Description: The event id is claimed in the replay guard first; a duplicate
delivery returns immediately with Replayed set. A guard outage is logged and
ignored, because reprocessing a logout is idempotent while skipping one is
not. Every planned session is revoked together with its refresh tokens, and
any revocation failure is returned to the caller so the IdP retries: a
half-applied logout must never look successful. An unknown subject yields an
empty plan and a successful, empty result.

Parameters:
  - context: context.Context
  - input: LogoutInput

Returns:
  - *LogoutResult: The executed plan
  - error: Link lookup, session lookup, or revocation failures
*/
func (service *Service) HandleLogout(context context.Context, input LogoutInput) (*LogoutResult, error) {
	now := service.clock()

	if input.EventID != "" && service.replayGuard != nil {
		claimed, err := service.replayGuard.Register(context, input.EventID, LogoutEventTTL)
		switch {
		case err != nil:
			// Fail open. Duplicate processing re-revokes already-revoked
			// rows; refusing to process would leave live credentials.
			service.logger.Warn("sso_replay_guard_unavailable",
				slog.String("event_id", input.EventID),
				slog.String("error", err.Error()),
			)
		case !claimed:
			service.logger.Info("sso_logout_event_replayed",
				slog.String("event_id", input.EventID),
				slog.String("provider", input.Provider),
			)
			return &LogoutResult{Replayed: true}, nil
		}
	}

	links, err := service.links.FindByProviderSubject(context, input.Provider, input.Subject)
	if err != nil {
		return nil, fmt.Errorf("sso_service_link_lookup_failed: %w", err)
	}

	// The repository already filtered on (provider, subject); collecting the
	// owners here only scopes the session query. The planner re-applies the
	// match itself.
	ownerIDs := make([]string, 0, len(links))
	ownerSeen := make(map[string]bool, len(links))
	for _, link := range links {
		if ownerSeen[link.UserID] {
			continue
		}
		ownerSeen[link.UserID] = true
		ownerIDs = append(ownerIDs, link.UserID)
	}

	var candidates []session.Session
	if len(ownerIDs) > 0 {
		candidates, err = service.sessions.FindActiveByUserIDs(context, ownerIDs)
		if err != nil {
			return nil, fmt.Errorf("sso_service_session_lookup_failed: %w", err)
		}
	}

	plan := PlanLogout(PlanInput{
		Provider:           input.Provider,
		ProviderSubject:    input.Subject,
		ExplicitSessionIDs: input.SessionIDs,
		At:                 now,
	}, links, candidates)

	for _, sessionID := range plan.SessionIDs {
		if err := service.sessions.RevokeByID(context, sessionID); err != nil {
			return nil, fmt.Errorf("sso_service_revoke_session_failed: %w", err)
		}
		if err := service.refreshTokens.RevokeBySessionID(context, sessionID); err != nil {
			return nil, fmt.Errorf("sso_service_revoke_tokens_failed: %w", err)
		}
	}

	for _, userID := range plan.UserIDs {
		service.auditRecorder.Emit(audit.Event{
			Name:      audit.EventSSOLogout,
			UserID:    userID,
			IPAddress: input.IPAddress,
			Detail: map[string]string{
				"provider": input.Provider,
				"subject":  input.Subject,
				"event_id": input.EventID,
			},
		})
	}

	service.logger.Info("sso_backchannel_logout",
		slog.String("provider", input.Provider),
		slog.Int("users", len(plan.UserIDs)),
		slog.Int("sessions", len(plan.SessionIDs)),
	)

	return &LogoutResult{UserIDs: plan.UserIDs, SessionIDs: plan.SessionIDs}, nil
}
