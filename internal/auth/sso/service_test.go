// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package sso_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superbasicman/superbasic/internal/auth/audit"
	"github.com/superbasicman/superbasic/internal/auth/session"
	"github.com/superbasicman/superbasic/internal/auth/sso"
)

// fakeLinkRepository serves canned identity links.
type fakeLinkRepository struct {
	links   []sso.IdentityLink
	err     error
	queried int
}

func (f *fakeLinkRepository) EnsureLink(_ context.Context, userID, provider, subject string) error {
	f.links = append(f.links, sso.IdentityLink{UserID: userID, Provider: provider, ProviderSubject: subject})
	return nil
}

func (f *fakeLinkRepository) FindByProviderSubject(_ context.Context, provider, subject string) ([]sso.IdentityLink, error) {
	f.queried++
	if f.err != nil {
		return nil, f.err
	}
	var matched []sso.IdentityLink
	for _, candidate := range f.links {
		if candidate.Provider == provider && candidate.ProviderSubject == subject {
			matched = append(matched, candidate)
		}
	}
	return matched, nil
}

// fakeSessionDirectory tracks revocations against a canned session set.
type fakeSessionDirectory struct {
	sessions  []session.Session
	revoked   []string
	revokeErr error
}

// FindActiveByUserIDs filters by owner only; liveness stays with the
// planner so the tests control time through the service clock.
func (f *fakeSessionDirectory) FindActiveByUserIDs(_ context.Context, userIDs []string) ([]session.Session, error) {
	wanted := map[string]bool{}
	for _, id := range userIDs {
		wanted[id] = true
	}
	var active []session.Session
	for _, candidate := range f.sessions {
		if wanted[candidate.UserID] {
			active = append(active, candidate)
		}
	}
	return active, nil
}

func (f *fakeSessionDirectory) RevokeByID(_ context.Context, sessionID string) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = append(f.revoked, sessionID)
	return nil
}

// fakeRefreshDirectory tracks refresh-token revocations per session.
type fakeRefreshDirectory struct {
	revokedSessions []string
	err             error
}

func (f *fakeRefreshDirectory) RevokeBySessionID(_ context.Context, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	f.revokedSessions = append(f.revokedSessions, sessionID)
	return nil
}

// fakeReplayGuard remembers claimed event ids in memory.
type fakeReplayGuard struct {
	claimed map[string]bool
	err     error
	calls   int
}

func (f *fakeReplayGuard) Register(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if f.claimed == nil {
		f.claimed = map[string]bool{}
	}
	if f.claimed[eventID] {
		return false, nil
	}
	f.claimed[eventID] = true
	return true, nil
}

type harness struct {
	links    *fakeLinkRepository
	sessions *fakeSessionDirectory
	refresh  *fakeRefreshDirectory
	guard    *fakeReplayGuard
	recorder *audit.Recorder
	service  *sso.Service
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(logger, 64)
	t.Cleanup(recorder.Close)

	h := &harness{
		links:    &fakeLinkRepository{},
		sessions: &fakeSessionDirectory{},
		refresh:  &fakeRefreshDirectory{},
		guard:    &fakeReplayGuard{},
		recorder: recorder,
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	h.service = sso.NewService(h.links, h.sessions, h.refresh, h.guard, recorder, logger).
		WithClock(func() time.Time { return h.now })

	return h
}

// seedUser links the user to the okta subject and gives them live sessions.
func (h *harness) seedUser(userID, subject string, sessionIDs ...string) {
	h.links.links = append(h.links.links, sso.IdentityLink{
		ID:              "link-" + userID,
		UserID:          userID,
		Provider:        "saml:okta",
		ProviderSubject: subject,
	})
	for _, id := range sessionIDs {
		h.sessions.sessions = append(h.sessions.sessions, session.Session{
			ID:                id,
			UserID:            userID,
			ExpiresAt:         h.now.Add(time.Hour),
			AbsoluteExpiresAt: h.now.Add(24 * time.Hour),
		})
	}
}

func TestHandleLogout_RevokesEverySessionOfTheSubject(t *testing.T) {
	h := newHarness(t)
	h.seedUser("user-a", "sub1", "s1", "s2")
	h.seedUser("user-b", "other", "s-foreign")

	result, err := h.service.HandleLogout(context.Background(), sso.LogoutInput{
		Provider: "saml:okta",
		Subject:  "sub1",
		EventID:  "evt-1",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"user-a"}, result.UserIDs)
	assert.ElementsMatch(t, []string{"s1", "s2"}, result.SessionIDs)
	assert.False(t, result.Replayed)

	// Both the sessions and their refresh credentials are gone.
	assert.ElementsMatch(t, []string{"s1", "s2"}, h.sessions.revoked)
	assert.ElementsMatch(t, []string{"s1", "s2"}, h.refresh.revokedSessions)
}

func TestHandleLogout_UnknownSubjectIsANoOp(t *testing.T) {
	h := newHarness(t)
	h.seedUser("user-a", "sub1", "s1")

	result, err := h.service.HandleLogout(context.Background(), sso.LogoutInput{
		Provider: "saml:okta",
		Subject:  "nobody",
		EventID:  "evt-2",
	})
	require.NoError(t, err)

	assert.Empty(t, result.UserIDs)
	assert.Empty(t, result.SessionIDs)
	assert.Empty(t, h.sessions.revoked)
}

func TestHandleLogout_ExplicitSessionIDsAreRevoked(t *testing.T) {
	h := newHarness(t)

	// No link at all: the IdP still names a session it knows about.
	result, err := h.service.HandleLogout(context.Background(), sso.LogoutInput{
		Provider:   "saml:okta",
		Subject:    "nobody",
		EventID:    "evt-3",
		SessionIDs: []string{"s-named"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"s-named"}, result.SessionIDs)
	assert.Equal(t, []string{"s-named"}, h.sessions.revoked)
	assert.Equal(t, []string{"s-named"}, h.refresh.revokedSessions)
}

func TestHandleLogout_DuplicateEventShortCircuits(t *testing.T) {
	h := newHarness(t)
	h.seedUser("user-a", "sub1", "s1")

	first, err := h.service.HandleLogout(context.Background(), sso.LogoutInput{
		Provider: "saml:okta", Subject: "sub1", EventID: "evt-dup",
	})
	require.NoError(t, err)
	require.False(t, first.Replayed)
	require.Equal(t, []string{"s1"}, h.sessions.revoked)

	second, err := h.service.HandleLogout(context.Background(), sso.LogoutInput{
		Provider: "saml:okta", Subject: "sub1", EventID: "evt-dup",
	})
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Empty(t, second.SessionIDs)
	// The replay never reached the link lookup.
	assert.Equal(t, 1, h.links.queried)
}

func TestHandleLogout_MissingEventIDSkipsTheGuard(t *testing.T) {
	h := newHarness(t)
	h.seedUser("user-a", "sub1", "s1")

	_, err := h.service.HandleLogout(context.Background(), sso.LogoutInput{
		Provider: "saml:okta", Subject: "sub1",
	})
	require.NoError(t, err)

	assert.Zero(t, h.guard.calls)
}

func TestHandleLogout_GuardOutageFailsOpen(t *testing.T) {
	h := newHarness(t)
	h.seedUser("user-a", "sub1", "s1")
	h.guard.err = errors.New("redis down")

	result, err := h.service.HandleLogout(context.Background(), sso.LogoutInput{
		Provider: "saml:okta", Subject: "sub1", EventID: "evt-4",
	})
	require.NoError(t, err)

	// The logout still executed; only the duplicate suppression was lost.
	assert.Equal(t, []string{"s1"}, result.SessionIDs)
	assert.Equal(t, []string{"s1"}, h.sessions.revoked)
}

func TestHandleLogout_RevocationFailureIsSurfaced(t *testing.T) {
	h := newHarness(t)
	h.seedUser("user-a", "sub1", "s1")
	h.sessions.revokeErr = errors.New("store unavailable")

	_, err := h.service.HandleLogout(context.Background(), sso.LogoutInput{
		Provider: "saml:okta", Subject: "sub1", EventID: "evt-5",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "revoke_session_failed")
}

func TestHandleLogout_LinkLookupFailureIsSurfaced(t *testing.T) {
	h := newHarness(t)
	h.links.err = errors.New("store unavailable")

	_, err := h.service.HandleLogout(context.Background(), sso.LogoutInput{
		Provider: "saml:okta", Subject: "sub1", EventID: "evt-6",
	})

	require.Error(t, err)
	assert.Empty(t, h.sessions.revoked)
}
