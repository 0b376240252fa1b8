// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package session_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superbasicman/superbasic/internal/auth/audit"
	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/auth/session"
	"github.com/superbasicman/superbasic/internal/auth/token"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/sec"
	"github.com/superbasicman/superbasic/internal/users/account"
)

// # In-Memory Stores

// fakeSessionRepository keeps session rows under a mutex so rotation races
// can be exercised. Revocation stamps come from the injected clock so grace
// arithmetic in the service under test stays deterministic.
type fakeSessionRepository struct {
	mu    sync.Mutex
	byID  map[string]*session.Session
	clock func() time.Time
}

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{byID: map[string]*session.Session{}, clock: time.Now}
}

func (f *fakeSessionRepository) Create(_ context.Context, sess *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *sess
	f.byID[sess.ID] = &clone
	return nil
}

func (f *fakeSessionRepository) FindByID(_ context.Context, id string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("Session")
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeSessionRepository) ExtendExpiry(_ context.Context, id string, expiresAt, lastSeenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.byID[id]; ok {
		stored.ExpiresAt = expiresAt
		stored.LastSeenAt = lastSeenAt
	}
	return nil
}

func (f *fakeSessionRepository) Revoke(_ context.Context, sessionID, userID string) (session.RevocationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[sessionID]
	if !ok || stored.UserID != userID || stored.RevokedAt != nil {
		return session.RevocationStatusNotFound, nil
	}
	now := f.clock()
	stored.RevokedAt = &now
	return session.RevocationStatusRevoked, nil
}

func (f *fakeSessionRepository) RevokeByID(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.byID[sessionID]; ok && stored.RevokedAt == nil {
		now := f.clock()
		stored.RevokedAt = &now
	}
	return nil
}

func (f *fakeSessionRepository) RevokeAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock()
	for _, stored := range f.byID {
		if stored.UserID == userID && stored.RevokedAt == nil {
			stored.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeSessionRepository) FindActiveByUserID(_ context.Context, userID string) ([]session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []session.Session
	for _, stored := range f.byID {
		if stored.UserID == userID && stored.IsActive(f.clock()) {
			out = append(out, *stored)
		}
	}
	return out, nil
}

func (f *fakeSessionRepository) FindActiveByUserIDs(_ context.Context, userIDs []string) ([]session.Session, error) {
	var out []session.Session
	for _, id := range userIDs {
		sessions, _ := f.FindActiveByUserID(context.Background(), id)
		out = append(out, sessions...)
	}
	return out, nil
}

// fakeRefreshRepository reproduces the transactional contract of the real
// store: RotateWithinFamily succeeds for exactly one caller per predecessor.
type fakeRefreshRepository struct {
	mu    sync.Mutex
	byID  map[string]*session.RefreshToken
	clock func() time.Time
}

func newFakeRefreshRepository() *fakeRefreshRepository {
	return &fakeRefreshRepository{byID: map[string]*session.RefreshToken{}, clock: time.Now}
}

func (f *fakeRefreshRepository) Create(_ context.Context, refreshToken *session.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *refreshToken
	f.byID[refreshToken.ID] = &clone
	return nil
}

func (f *fakeRefreshRepository) FindByID(_ context.Context, id string) (*session.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("Refresh token")
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeRefreshRepository) RotateWithinFamily(_ context.Context, predecessorID string, successor *session.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	predecessor, ok := f.byID[predecessorID]
	if !ok || predecessor.RevokedAt != nil {
		return session.ErrAlreadyRotated
	}

	now := f.clock()
	predecessor.RevokedAt = &now
	clone := *successor
	f.byID[successor.ID] = &clone
	return nil
}

func (f *fakeRefreshRepository) RevokeFamily(_ context.Context, familyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock()
	for _, stored := range f.byID {
		if stored.FamilyID == familyID && stored.RevokedAt == nil {
			stored.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeRefreshRepository) RevokeBySessionID(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock()
	for _, stored := range f.byID {
		if stored.SessionID == sessionID && stored.RevokedAt == nil {
			stored.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeRefreshRepository) RevokeAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock()
	for _, stored := range f.byID {
		if stored.UserID == userID && stored.RevokedAt == nil {
			stored.RevokedAt = &now
		}
	}
	return nil
}

// liveCount reports how many tokens of one family are unrevoked.
func (f *fakeRefreshRepository) liveCount(familyID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, stored := range f.byID {
		if stored.FamilyID == familyID && stored.RevokedAt == nil {
			count++
		}
	}
	return count
}

// fakeUserDirectory serves account lookups for login and rotation.
type fakeUserDirectory struct {
	byID    map[string]*account.Account
	byEmail map[string]*account.Account
}

func newFakeUserDirectory() *fakeUserDirectory {
	return &fakeUserDirectory{byID: map[string]*account.Account{}, byEmail: map[string]*account.Account{}}
}

func (f *fakeUserDirectory) add(acct *account.Account) {
	f.byID[acct.ID] = acct
	f.byEmail[acct.Email] = acct
}

func (f *fakeUserDirectory) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	acct, ok := f.byEmail[email]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return acct, nil
}

func (f *fakeUserDirectory) FindByID(_ context.Context, id string) (*account.Account, error) {
	acct, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return acct, nil
}

// fakeLinker records EnsureLink calls.
type fakeLinker struct {
	calls []string
}

func (f *fakeLinker) EnsureLink(_ context.Context, userID, provider, subject string) error {
	f.calls = append(f.calls, fmt.Sprintf("%s/%s/%s", userID, provider, subject))
	return nil
}

// fakeSigner produces predictable access tokens.
type fakeSigner struct{}

func (fakeSigner) SignAccess(userID, sessionID, _ string, _ time.Time, _ time.Duration) (string, error) {
	return "signed." + userID + "." + sessionID, nil
}

// # Harness

type harness struct {
	sessions *fakeSessionRepository
	refresh  *fakeRefreshRepository
	users    *fakeUserDirectory
	keyring  *token.Keyring
	service  *session.Service
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	keyring, err := token.NewKeyring("k1", map[string][]byte{"k1": []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(logger, 128)
	t.Cleanup(recorder.Close)

	h := &harness{
		sessions: newFakeSessionRepository(),
		refresh:  newFakeRefreshRepository(),
		users:    newFakeUserDirectory(),
		keyring:  keyring,
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	// The stores share the harness clock so revocation stamps line up with
	// the instants the service reasons about.
	h.sessions.clock = func() time.Time { return h.now }
	h.refresh.clock = func() time.Time { return h.now }

	h.service = session.NewService(
		h.sessions,
		h.refresh,
		h.users,
		token.NewCodec(),
		keyring,
		fakeSigner{},
		recorder,
		logger,
		session.Policy{ReuseGrace: 10 * time.Second},
	).WithClock(func() time.Time { return h.now })

	return h
}

// seedUser registers an active account with the given password.
func (h *harness) seedUser(t *testing.T, id, email, password string) *account.Account {
	t.Helper()

	hash, err := sec.HashPassword(password)
	require.NoError(t, err)

	acct := &account.Account{
		ID:           id,
		ProfileID:    "profile-" + id,
		Email:        email,
		PasswordHash: hash,
		Status:       account.StatusActive,
	}
	h.users.add(acct)
	return acct
}

func (h *harness) createSession(t *testing.T, userID string, clientType authz.ClientType) *session.IssuedSession {
	t.Helper()

	issued, err := h.service.CreateSession(context.Background(), session.CreateSessionInput{
		UserID:     userID,
		ClientType: clientType,
		IPAddress:  "203.0.113.9",
		UserAgent:  "tests",
	})
	require.NoError(t, err)
	return issued
}

// # Session Creation

func TestCreateSession_WebGetsCookieCredential(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued := h.createSession(t, "user-1", authz.ClientTypeWeb)

	// The opaque cookie credential parses and its id IS the session id.
	parsed := token.Parse(issued.SessionTokenValue, token.ParseOptions{Kind: token.KindSession})
	require.NotNil(t, parsed)
	assert.Equal(t, issued.Session.ID, parsed.ID)

	// The stored hash verifies the wire secret.
	require.NotNil(t, issued.Session.TokenHash)
	assert.True(t, h.keyring.Verify(parsed.Secret, issued.Session.TokenHash))

	// Refresh credential rides along with its own family.
	refreshParsed := token.Parse(issued.RefreshTokenValue, token.ParseOptions{Kind: token.KindRefresh})
	require.NotNil(t, refreshParsed)
	record, err := h.refresh.FindByID(context.Background(), refreshParsed.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, record.FamilyID, "first token roots its family")
	assert.Equal(t, issued.Session.ID, record.SessionID)
}

func TestCreateSession_APIHasNoCookieCredential(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued := h.createSession(t, "user-1", authz.ClientTypeAPI)

	assert.Empty(t, issued.SessionTokenValue)
	assert.Nil(t, issued.Session.TokenHash)
	assert.NotEmpty(t, issued.AccessToken)
}

func TestCreateSession_RecordsIdentityLink(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	linker := &fakeLinker{}
	h.service.WithIdentityLinker(linker)

	_, err := h.service.CreateSession(context.Background(), session.CreateSessionInput{
		UserID:          "user-1",
		ClientType:      authz.ClientTypeWeb,
		MFALevel:        authz.MFALevelPhishingResistant,
		Provider:        "saml:okta",
		ProviderSubject: "sub-1",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"user-1/saml:okta/sub-1"}, linker.calls)
}

// # Login

func TestLogin_UniformFailureAnswer(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	disabled := h.seedUser(t, "user-2", "off@example.com", "correct-horse-battery")
	disabled.Status = account.StatusDisabled

	cases := map[string]session.LoginInput{
		"unknown email":    {Email: "ghost@example.com", Password: "correct-horse-battery"},
		"wrong password":   {Email: "ada@example.com", Password: "wrong-password-here"},
		"disabled account": {Email: "off@example.com", Password: "correct-horse-battery"},
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			input.ClientType = authz.ClientTypeWeb
			_, err := h.service.Login(context.Background(), input)

			appError := apperr.As(err)
			require.NotNil(t, appError)
			// One message for every failure mode: no account enumeration.
			assert.Equal(t, "Invalid login credentials", appError.Message)
			assert.NotEqual(t, "MFA_REQUIRED", appError.Code)
		})
	}
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued, err := h.service.Login(context.Background(), session.LoginInput{
		Email:      "  Ada@Example.COM ",
		Password:   "correct-horse-battery",
		ClientType: authz.ClientTypeWeb,
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", issued.Session.UserID)
	assert.Equal(t, authz.MFALevelNone, issued.Session.MFALevel)
}

func TestLogin_TOTPSecondFactor(t *testing.T) {
	h := newHarness(t)
	acct := h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")
	secret := "JBSWY3DPEHPK3PXP"
	acct.TOTPSecret = &secret

	// Correct password without a code asks for the second factor by code,
	// which is the one deliberate departure from the uniform answer.
	_, err := h.service.Login(context.Background(), session.LoginInput{
		Email:      "ada@example.com",
		Password:   "correct-horse-battery",
		ClientType: authz.ClientTypeWeb,
	})
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "MFA_REQUIRED", appError.Code)

	// A wrong code gets the generic answer, not MFA_REQUIRED: only the
	// password gate may reveal that a second factor exists.
	_, err = h.service.Login(context.Background(), session.LoginInput{
		Email:      "ada@example.com",
		Password:   "correct-horse-battery",
		TOTPCode:   "000000",
		ClientType: authz.ClientTypeWeb,
	})
	appError = apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "Invalid login credentials", appError.Message)

	// Wrong password never reaches the TOTP prompt.
	_, err = h.service.Login(context.Background(), session.LoginInput{
		Email:      "ada@example.com",
		Password:   "wrong-password-here",
		ClientType: authz.ClientTypeWeb,
	})
	appError = apperr.As(err)
	require.NotNil(t, appError)
	assert.NotEqual(t, "MFA_REQUIRED", appError.Code)
}

// # Rotation

func TestRotate_ChainKeepsOneLiveTokenPerFamily(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued := h.createSession(t, "user-1", authz.ClientTypeWeb)
	familyID := token.Parse(issued.RefreshTokenValue, token.ParseOptions{Kind: token.KindRefresh}).ID

	current := issued.RefreshTokenValue
	for i := 0; i < 5; i++ {
		h.now = h.now.Add(time.Minute)
		rotated, err := h.service.Rotate(context.Background(), current, session.RotateInput{})
		require.NoError(t, err, "rotation %d", i)
		require.NotEqual(t, current, rotated.RefreshTokenValue)
		current = rotated.RefreshTokenValue

		// Successors stay in the original family.
		parsed := token.Parse(current, token.ParseOptions{Kind: token.KindRefresh})
		record, err := h.refresh.FindByID(context.Background(), parsed.ID)
		require.NoError(t, err)
		assert.Equal(t, familyID, record.FamilyID)

		assert.Equal(t, 1, h.refresh.liveCount(familyID), "exactly one live token after rotation %d", i)
	}
}

func TestRotate_SlidesSessionExpiryCappedByAbsolute(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued := h.createSession(t, "user-1", authz.ClientTypeWeb)
	firstExpiry := issued.Session.ExpiresAt

	h.now = h.now.Add(48 * time.Hour)
	rotated, err := h.service.Rotate(context.Background(), issued.RefreshTokenValue, session.RotateInput{})
	require.NoError(t, err)

	assert.True(t, rotated.Session.ExpiresAt.After(firstExpiry), "sliding window moved forward")
	assert.False(t, rotated.Session.ExpiresAt.After(rotated.Session.AbsoluteExpiresAt), "never beyond the absolute limit")
}

func TestRotate_ReplayWithinGraceIsBenign(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued := h.createSession(t, "user-1", authz.ClientTypeWeb)
	familyID := token.Parse(issued.RefreshTokenValue, token.ParseOptions{Kind: token.KindRefresh}).ID

	h.now = h.now.Add(time.Minute)
	rotated, err := h.service.Rotate(context.Background(), issued.RefreshTokenValue, session.RotateInput{})
	require.NoError(t, err)

	// Replay the predecessor 5s after its revocation: treated as a client
	// retry. Still refused, but the family survives.
	h.now = h.now.Add(5 * time.Second)
	_, err = h.service.Rotate(context.Background(), issued.RefreshTokenValue, session.RotateInput{})
	require.Error(t, err)
	assert.Equal(t, 401, apperr.As(err).HTTPStatus)

	assert.Equal(t, 1, h.refresh.liveCount(familyID), "family is intact")

	// The successor still rotates normally afterwards.
	h.now = h.now.Add(time.Minute)
	_, err = h.service.Rotate(context.Background(), rotated.RefreshTokenValue, session.RotateInput{})
	assert.NoError(t, err)
}

func TestRotate_ReuseOutsideGraceBurnsFamilyAndSession(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued := h.createSession(t, "user-1", authz.ClientTypeWeb)
	familyID := token.Parse(issued.RefreshTokenValue, token.ParseOptions{Kind: token.KindRefresh}).ID

	h.now = h.now.Add(time.Minute)
	rotated, err := h.service.Rotate(context.Background(), issued.RefreshTokenValue, session.RotateInput{})
	require.NoError(t, err)

	// Replay the predecessor well outside the grace window: credential theft
	// until proven otherwise.
	h.now = h.now.Add(time.Hour)
	_, err = h.service.Rotate(context.Background(), issued.RefreshTokenValue, session.RotateInput{})
	require.Error(t, err)

	assert.Equal(t, 0, h.refresh.liveCount(familyID), "whole family burned")

	stored, err := h.sessions.FindByID(context.Background(), issued.Session.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.RevokedAt, "owning session revoked")

	// The stolen successor is dead too.
	_, err = h.service.Rotate(context.Background(), rotated.RefreshTokenValue, session.RotateInput{})
	require.Error(t, err)
}

func TestRotate_WrongSecretIsNotReuse(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued := h.createSession(t, "user-1", authz.ClientTypeWeb)
	familyID := token.Parse(issued.RefreshTokenValue, token.ParseOptions{Kind: token.KindRefresh}).ID

	// Same id, forged secret. An attacker who reads ids (logs, DB dump
	// without the salt key) must not be able to burn families at will.
	parsed := token.Parse(issued.RefreshTokenValue, token.ParseOptions{Kind: token.KindRefresh})
	forged := "rt_" + parsed.ID + ".Zm9yZ2VkLXNlY3JldA"

	_, err := h.service.Rotate(context.Background(), forged, session.RotateInput{})
	require.Error(t, err)
	assert.Equal(t, 401, apperr.As(err).HTTPStatus)

	assert.Equal(t, 1, h.refresh.liveCount(familyID), "family untouched")

	// The genuine token still works.
	_, err = h.service.Rotate(context.Background(), issued.RefreshTokenValue, session.RotateInput{})
	assert.NoError(t, err)
}

func TestRotate_MalformedAndUnknownInputs(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")
	h.createSession(t, "user-1", authz.ClientTypeWeb)

	inputs := []string{
		"",
		"garbage",
		"sess_0191d3a0-7b06-7c4d-b7e4-111111111111.c2VjcmV0",
		"rt_not-a-uuid.c2VjcmV0",
		"rt_0191d3a0-7b06-7c4d-b7e4-999999999999.c2VjcmV0",
	}

	for _, raw := range inputs {
		_, err := h.service.Rotate(context.Background(), raw, session.RotateInput{})
		require.Error(t, err, "input %q", raw)
		appError := apperr.As(err)
		require.NotNil(t, appError, "input %q", raw)
		assert.Equal(t, "Invalid or expired refresh token", appError.Message, "uniform answer for %q", raw)
	}
}

func TestRotate_ConcurrentRotationsSingleWinner(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued := h.createSession(t, "user-1", authz.ClientTypeWeb)
	familyID := token.Parse(issued.RefreshTokenValue, token.ParseOptions{Kind: token.KindRefresh}).ID

	h.now = h.now.Add(time.Minute)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = h.service.Rotate(context.Background(), issued.RefreshTokenValue, session.RotateInput{})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}

	assert.Equal(t, 1, wins, "exactly one concurrent rotation may succeed")
	assert.Equal(t, 1, h.refresh.liveCount(familyID), "losers must not burn the family")
}

func TestRotate_SessionRevokedBlocksRotation(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued := h.createSession(t, "user-1", authz.ClientTypeWeb)

	_, err := h.service.RevokeSessionForUser(context.Background(), session.RevokeSessionInput{
		SessionID: issued.Session.ID,
		UserID:    "user-1",
	})
	require.NoError(t, err)

	h.now = h.now.Add(time.Minute)
	_, err = h.service.Rotate(context.Background(), issued.RefreshTokenValue, session.RotateInput{})
	require.Error(t, err)
	assert.Equal(t, 401, apperr.As(err).HTTPStatus)
}

func TestRotate_DisabledUserBlocksRotation(t *testing.T) {
	h := newHarness(t)
	acct := h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued := h.createSession(t, "user-1", authz.ClientTypeWeb)
	acct.Status = account.StatusDisabled

	h.now = h.now.Add(time.Minute)
	_, err := h.service.Rotate(context.Background(), issued.RefreshTokenValue, session.RotateInput{})
	require.Error(t, err)
	assert.Equal(t, 401, apperr.As(err).HTTPStatus)
}

// # Revocation

func TestRevokeSessionForUser_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	issued := h.createSession(t, "user-1", authz.ClientTypeWeb)

	status, err := h.service.RevokeSessionForUser(context.Background(), session.RevokeSessionInput{
		SessionID: issued.Session.ID,
		UserID:    "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, session.RevocationStatusRevoked, status)

	// Second revoke and foreign-user revoke both answer not_found, no error.
	status, err = h.service.RevokeSessionForUser(context.Background(), session.RevokeSessionInput{
		SessionID: issued.Session.ID,
		UserID:    "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, session.RevocationStatusNotFound, status)

	other := h.createSession(t, "user-1", authz.ClientTypeWeb)
	status, err = h.service.RevokeSessionForUser(context.Background(), session.RevokeSessionInput{
		SessionID: other.Session.ID,
		UserID:    "somebody-else",
	})
	require.NoError(t, err)
	assert.Equal(t, session.RevocationStatusNotFound, status)
}

func TestListSessions_FlagsCurrentAndHidesHashes(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "user-1", "ada@example.com", "correct-horse-battery")

	first := h.createSession(t, "user-1", authz.ClientTypeWeb)
	second := h.createSession(t, "user-1", authz.ClientTypeMobile)

	infos, err := h.service.ListSessions(context.Background(), "user-1", second.Session.ID)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	current := 0
	for _, info := range infos {
		if info.IsCurrent {
			current++
			assert.Equal(t, second.Session.ID, info.ID)
		}
	}
	assert.Equal(t, 1, current, "exactly one current session")
	_ = first
}
