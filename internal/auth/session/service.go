// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/superbasicman/superbasic/internal/auth/audit"
	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/auth/mfa"
	"github.com/superbasicman/superbasic/internal/auth/token"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/sec"
	"github.com/superbasicman/superbasic/internal/users/account"
	"github.com/superbasicman/superbasic/pkg/uuidv7"
)

// # Contracts & Types

// TokenSigner defines the contract for producing signed access tokens.
type TokenSigner interface {
	// SignAccess creates a signed access JWT bound to a session.
	//
	// # Parameters
	//   - userID: The subject of the token.
	//   - sessionID: The session the token is tied to (sid claim).
	//   - clientType: The surface the session serves (cty claim).
	//   - issuedAt: Clock reading to stamp iat/exp from.
	//   - timeToLive: The duration before the token expires.
	//
	// # Returns
	//   - A signed JWT string, or an err if signing fails.
	SignAccess(userID, sessionID, clientType string, issuedAt time.Time, timeToLive time.Duration) (string, error)
}

// Policy bundles the tunable lifetimes of the session engine. Zero fields
// fall back to the package defaults.
type Policy struct {
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	SlidingWindow    time.Duration
	RememberMeWindow time.Duration
	AbsoluteLifetime time.Duration

	// ReuseGrace is how long after a refresh token's revocation a replay is
	// still treated as a benign client retry instead of credential reuse.
	ReuseGrace time.Duration
}

// DefaultPolicy returns the production lifetimes.
func DefaultPolicy() Policy {
	return Policy{
		AccessTokenTTL:   AccessTokenTTL,
		RefreshTokenTTL:  RefreshTokenTTL,
		SlidingWindow:    SlidingWindow,
		RememberMeWindow: RememberMeSlidingWindow,
		AbsoluteLifetime: AbsoluteSessionLifetime,
		ReuseGrace:       DefaultReuseGrace,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.AccessTokenTTL <= 0 {
		p.AccessTokenTTL = d.AccessTokenTTL
	}
	if p.RefreshTokenTTL <= 0 {
		p.RefreshTokenTTL = d.RefreshTokenTTL
	}
	if p.SlidingWindow <= 0 {
		p.SlidingWindow = d.SlidingWindow
	}
	if p.RememberMeWindow <= 0 {
		p.RememberMeWindow = d.RememberMeWindow
	}
	if p.AbsoluteLifetime <= 0 {
		p.AbsoluteLifetime = d.AbsoluteLifetime
	}
	if p.ReuseGrace <= 0 {
		p.ReuseGrace = d.ReuseGrace
	}
	return p
}

// Service implements the session and refresh-token lifecycle use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to rotation, reuse
// detection, or login logic must be reviewed by the security team.
type Service struct {
	sessionRepository SessionRepository
	refreshRepository RefreshTokenRepository
	userDirectory     UserDirectory
	identityLinker    IdentityLinker
	codec             *token.Codec
	keyring           *token.Keyring
	signer            TokenSigner
	auditRecorder     *audit.Recorder
	logger            *slog.Logger
	policy            Policy
	clock             func() time.Time
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	sessionRepo SessionRepository,
	refreshRepo RefreshTokenRepository,
	users UserDirectory,
	codec *token.Codec,
	keyring *token.Keyring,
	signer TokenSigner,
	recorder *audit.Recorder,
	logger *slog.Logger,
	policy Policy,
) *Service {
	return &Service{
		sessionRepository: sessionRepo,
		refreshRepository: refreshRepo,
		userDirectory:     users,
		codec:             codec,
		keyring:           keyring,
		signer:            signer,
		auditRecorder:     recorder,
		logger:            logger,
		policy:            policy.withDefaults(),
		clock:             time.Now,
	}
}

// WithClock replaces the time source for deterministic tests.
func (service *Service) WithClock(clock func() time.Time) *Service {
	service.clock = clock
	return service
}

// WithIdentityLinker attaches an optional recorder of external IdP
// identities, consulted when CreateSession carries provider details.
func (service *Service) WithIdentityLinker(linker IdentityLinker) *Service {
	service.identityLinker = linker
	return service
}

// # Session Creation

// CreateSessionInput carries everything needed to mint a session.
type CreateSessionInput struct {
	UserID     string
	ClientType authz.ClientType
	MFALevel   authz.MFALevel
	RememberMe bool
	IPAddress  string
	UserAgent  string

	// Provider and ProviderSubject link the session to an external IdP
	// identity when the login was federated. Both empty for local logins.
	Provider        string
	ProviderSubject string
}

// IssuedSession represents a successfully established session and the
// credentials handed to the client. Raw token values appear here exactly
// once; only their hashes are stored.
type IssuedSession struct {
	Session           *Session
	AccessToken       string
	AccessTokenTTL    time.Duration
	RefreshTokenValue string
	RefreshExpiresAt  time.Time

	// SessionTokenValue is the opaque cookie credential, set for web
	// clients only.
	SessionTokenValue string

	User *account.Account
}

/*
CreateSession mints a session row, the root refresh token of a new family,
and a signed access token.

Description: Web sessions additionally carry an opaque cookie credential
whose id doubles as the session id, so cookie verification is a primary-key
lookup plus an envelope check. The absolute expiry is fixed here and never
extended by rotation.

Parameters:
  - context: context.Context
  - input: CreateSessionInput

Returns:
  - *IssuedSession: Transport-ready session credentials
  - error: Validation or storage failures
*/
func (service *Service) CreateSession(context context.Context, input CreateSessionInput) (*IssuedSession, error) {

	if input.MFALevel == "" {
		input.MFALevel = authz.MFALevelNone
	}
	if !input.ClientType.IsValid() {
		return nil, apperr.ValidationError("Invalid client type")
	}
	if !input.MFALevel.IsValid() {
		return nil, apperr.ValidationError("Invalid MFA level")
	}

	now := service.clock()
	sliding := service.policy.SlidingWindow
	if input.RememberMe {
		sliding = service.policy.RememberMeWindow
	}

	session := &Session{
		UserID:            input.UserID,
		ClientType:        input.ClientType,
		MFALevel:          input.MFALevel,
		AuthenticatedAt:   now,
		LastSeenAt:        now,
		IPAddress:         input.IPAddress,
		UserAgent:         input.UserAgent,
		RememberMe:        input.RememberMe,
		CreatedAt:         now,
		ExpiresAt:         now.Add(sliding),
		AbsoluteExpiresAt: now.Add(service.policy.AbsoluteLifetime),
	}

	var sessionTokenValue string
	if input.ClientType == authz.ClientTypeWeb {
		sessionToken, err := service.codec.Mint(token.KindSession)
		if err != nil {
			return nil, fmt.Errorf("session_service_mint_session_token_failed: %w", err)
		}
		envelope, err := service.keyring.Seal(sessionToken.Secret)
		if err != nil {
			return nil, fmt.Errorf("session_service_seal_session_token_failed: %w", err)
		}
		session.ID = sessionToken.ID
		session.TokenHash = envelope
		sessionTokenValue = sessionToken.Value
	} else {
		session.ID = uuidv7.New()
	}

	if err := service.sessionRepository.Create(context, session); err != nil {
		return nil, fmt.Errorf("session_service_create_failed: %w", err)
	}

	// Federated logins record the IdP identity so back-channel logout can
	// find this user later.
	if input.Provider != "" && service.identityLinker != nil {
		if err := service.identityLinker.EnsureLink(context, input.UserID, input.Provider, input.ProviderSubject); err != nil {
			return nil, fmt.Errorf("session_service_identity_link_failed: %w", err)
		}
	}

	refreshValue, refreshRecord, err := service.issueRefreshToken(context, session, "")
	if err != nil {
		return nil, err
	}

	accessToken, err := service.signer.SignAccess(input.UserID, session.ID, string(input.ClientType), now, service.policy.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("session_service_sign_access_failed: %w", err)
	}

	return &IssuedSession{
		Session:           session,
		AccessToken:       accessToken,
		AccessTokenTTL:    service.policy.AccessTokenTTL,
		RefreshTokenValue: refreshValue,
		RefreshExpiresAt:  refreshRecord.ExpiresAt,
		SessionTokenValue: sessionTokenValue,
	}, nil
}

// issueRefreshToken mints and persists a refresh token for the session. An
// empty familyID roots a new family (FamilyID == ID).
func (service *Service) issueRefreshToken(context context.Context, session *Session, familyID string) (string, *RefreshToken, error) {
	minted, err := service.codec.Mint(token.KindRefresh)
	if err != nil {
		return "", nil, fmt.Errorf("session_service_mint_refresh_failed: %w", err)
	}

	envelope, err := service.keyring.Seal(minted.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("session_service_seal_refresh_failed: %w", err)
	}

	if familyID == "" {
		familyID = minted.ID
	}

	now := service.clock()
	record := &RefreshToken{
		ID:        minted.ID,
		UserID:    session.UserID,
		SessionID: session.ID,
		FamilyID:  familyID,
		TokenHash: *envelope,
		Last4:     minted.Last4(),
		CreatedAt: now,
		ExpiresAt: now.Add(service.policy.RefreshTokenTTL),
	}

	if err := service.refreshRepository.Create(context, record); err != nil {
		return "", nil, fmt.Errorf("session_service_persist_refresh_failed: %w", err)
	}

	return minted.Value, record, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email      string
	Password   string
	TOTPCode   string
	ClientType authz.ClientType
	RememberMe bool
	UserAgent  string
	IPAddress  string
}

// errMFARequired tells an otherwise-valid login to retry with a TOTP code.
// The distinct code lets clients open a second-factor prompt.
func errMFARequired() *apperr.AppError {
	err := apperr.Unauthorized("Two-factor authentication code required")
	err.Code = "MFA_REQUIRED"
	return err
}

/*
Login validates user credentials and establishes a session.

Description: Verifies identity, performs constant-time password comparison,
enforces the TOTP second factor when enrolled, and initializes a new session
with a fresh refresh-token family.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *IssuedSession: Transport-ready session credentials
  - error: Unauthorized or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*IssuedSession, error) {

	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := service.userDirectory.FindByEmail(context, email)

	// If (err != nil) the user does not exist. Generic message to prevent enumeration.
	if err != nil {
		service.emitLoginFailed("", input.IPAddress, "unknown_user")
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// Disabled accounts get the same generic answer as bad credentials.
	if !user.IsActive() {
		service.emitLoginFailed(user.ID, input.IPAddress, "account_disabled")
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// Verify password hash using constant-time comparison in bcrypt to prevent timing attacks
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		service.emitLoginFailed(user.ID, input.IPAddress, "bad_password")
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	mfaLevel := authz.MFALevelNone
	if user.MFAEnrolled() {
		if strings.TrimSpace(input.TOTPCode) == "" {
			return nil, errMFARequired()
		}
		if !mfa.Verify(*user.TOTPSecret, input.TOTPCode, service.clock()) {
			service.emitLoginFailed(user.ID, input.IPAddress, "bad_totp")
			return nil, apperr.Unauthorized("Invalid login credentials")
		}
		mfaLevel = authz.MFALevelMFA
	}

	issued, err := service.CreateSession(context, CreateSessionInput{
		UserID:     user.ID,
		ClientType: input.ClientType,
		MFALevel:   mfaLevel,
		RememberMe: input.RememberMe,
		IPAddress:  input.IPAddress,
		UserAgent:  input.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	issued.User = user

	service.auditRecorder.Emit(audit.Event{
		Name:      audit.EventLoginSucceeded,
		UserID:    user.ID,
		SessionID: issued.Session.ID,
		IPAddress: input.IPAddress,
		Detail:    map[string]string{"client_type": string(input.ClientType), "mfa_level": string(mfaLevel)},
	})

	return issued, nil
}

func (service *Service) emitLoginFailed(userID, ip, reason string) {
	service.auditRecorder.Emit(audit.Event{
		Name:      audit.EventLoginFailed,
		UserID:    userID,
		IPAddress: ip,
		Detail:    map[string]string{"reason": reason},
	})
}

// # Refresh Token Rotation

// RotateInput carries request metadata for the rotation audit trail.
type RotateInput struct {
	UserAgent string
	IPAddress string
}

// errInvalidRefresh is the uniform client answer for every rotation
// failure. Callers must not be able to distinguish unknown ids, wrong
// secrets, expiry, or reuse from the outside.
func errInvalidRefresh() *apperr.AppError {
	return apperr.Unauthorized("Invalid or expired refresh token")
}

/*
Rotate implements the refresh-token rotation state machine.

Description: Parses and verifies the presented token, then atomically
retires it and issues a successor in the same family. Presenting an
already-retired token within the reuse grace window is absorbed as a benign
retry; outside the window it is treated as credential reuse and the whole
family plus its session are revoked. A wrong secret against a live row is an
invalid credential, never reuse.

Parameters:
  - context: context.Context
  - rawValue: string (wire form "rt_<uuid>.<secret>")
  - input: RotateInput

Returns:
  - *IssuedSession: Fresh access token + successor refresh token
  - error: apperr.Unauthorized for every credential failure, storage failures
*/
func (service *Service) Rotate(context context.Context, rawValue string, input RotateInput) (*IssuedSession, error) {

	// 1. Parse. Malformed input yields nil, never an error.
	presented := token.Parse(rawValue, token.ParseOptions{Kind: token.KindRefresh})
	if presented == nil {
		return nil, errInvalidRefresh()
	}

	// 2. Load by id, revoked rows included.
	record, err := service.refreshRepository.FindByID(context, presented.ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, errInvalidRefresh()
		}
		return nil, fmt.Errorf("session_service_rotate_lookup_failed: %w", err)
	}

	// 3. Verify the secret before any state decision. A wrong secret
	// against a valid id is a forgery attempt, not proof of a legitimate
	// prior token, so it must NOT trigger the family burn.
	if !service.keyring.Verify(presented.Secret, &record.TokenHash) {
		service.emitRefreshRejected(record, input, "invalid_secret")
		return nil, errInvalidRefresh()
	}

	now := service.clock()

	// 4. Reuse detection on already-revoked rows.
	if record.RevokedAt != nil {
		age := now.Sub(*record.RevokedAt)
		if age <= service.policy.ReuseGrace {
			// A retry of a just-rotated token. Absorbed: no escalation,
			// and still no new token.
			service.emitRefreshRejected(record, input, "retry_within_grace")
			return nil, errInvalidRefresh()
		}
		if err := service.burnFamily(context, record, input); err != nil {
			return nil, err
		}
		return nil, errInvalidRefresh()
	}

	// 5. Expiry.
	if !now.Before(record.ExpiresAt) {
		service.emitRefreshRejected(record, input, "expired")
		return nil, errInvalidRefresh()
	}

	// 6. The owning session must still be live.
	session, err := service.sessionRepository.FindByID(context, record.SessionID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, errInvalidRefresh()
		}
		return nil, fmt.Errorf("session_service_rotate_session_lookup_failed: %w", err)
	}
	if !session.IsActive(now) {
		service.emitRefreshRejected(record, input, "session_inactive")
		return nil, errInvalidRefresh()
	}

	// 7. And so must the user.
	user, err := service.userDirectory.FindByID(context, record.UserID)
	if err != nil || !user.IsActive() {
		service.emitRefreshRejected(record, input, "user_inactive")
		return nil, errInvalidRefresh()
	}

	// 8. Mint the successor and swap it in atomically.
	minted, err := service.codec.Mint(token.KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("session_service_rotate_mint_failed: %w", err)
	}
	envelope, err := service.keyring.Seal(minted.Secret)
	if err != nil {
		return nil, fmt.Errorf("session_service_rotate_seal_failed: %w", err)
	}
	successor := &RefreshToken{
		ID:        minted.ID,
		UserID:    record.UserID,
		SessionID: record.SessionID,
		FamilyID:  record.FamilyID,
		TokenHash: *envelope,
		Last4:     minted.Last4(),
		CreatedAt: now,
		ExpiresAt: now.Add(service.policy.RefreshTokenTTL),
	}

	err = service.refreshRepository.RotateWithinFamily(context, record.ID, successor)
	if errors.Is(err, ErrAlreadyRotated) {
		// Lost a concurrent race; the winner's revocation is seconds old,
		// which is the grace-window case by construction.
		service.emitRefreshRejected(record, input, "lost_rotation_race")
		return nil, errInvalidRefresh()
	}
	if err != nil {
		return nil, fmt.Errorf("session_service_rotate_swap_failed: %w", err)
	}

	// 9. Slide the session expiry forward, capped by the absolute limit.
	// The successor is already committed, so a failure here must not fail
	// the request: the client would retry with a freshly-revoked
	// predecessor and lock itself out.
	newExpiry := now.Add(service.slidingWindowFor(session))
	if newExpiry.After(session.AbsoluteExpiresAt) {
		newExpiry = session.AbsoluteExpiresAt
	}
	if err := service.sessionRepository.ExtendExpiry(context, session.ID, newExpiry, now); err != nil {
		service.logger.Warn("session_extend_failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	} else {
		session.ExpiresAt = newExpiry
		session.LastSeenAt = now
	}

	accessToken, err := service.signer.SignAccess(user.ID, session.ID, string(session.ClientType), now, service.policy.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("session_service_rotate_sign_failed: %w", err)
	}

	service.auditRecorder.Emit(audit.Event{
		Name:      audit.EventRefreshRotated,
		UserID:    user.ID,
		SessionID: session.ID,
		IPAddress: input.IPAddress,
		Detail:    map[string]string{"family_id": record.FamilyID},
	})

	return &IssuedSession{
		Session:           session,
		AccessToken:       accessToken,
		AccessTokenTTL:    service.policy.AccessTokenTTL,
		RefreshTokenValue: minted.Value,
		RefreshExpiresAt:  successor.ExpiresAt,
		User:              user,
	}, nil
}

// slidingWindowFor returns the rotation extension for a session under the
// service policy.
func (service *Service) slidingWindowFor(session *Session) time.Duration {
	if session.RememberMe {
		return service.policy.RememberMeWindow
	}
	return service.policy.SlidingWindow
}

// burnFamily revokes every live token in the record's family and the owning
// session. Failures are surfaced: silently failing here would leave a
// compromised credential live.
func (service *Service) burnFamily(context context.Context, record *RefreshToken, input RotateInput) error {
	if err := service.refreshRepository.RevokeFamily(context, record.FamilyID); err != nil {
		return fmt.Errorf("session_service_burn_family_failed: %w", err)
	}
	if err := service.sessionRepository.RevokeByID(context, record.SessionID); err != nil {
		return fmt.Errorf("session_service_burn_session_failed: %w", err)
	}

	service.auditRecorder.Emit(audit.Event{
		Name:      audit.EventRefreshReuse,
		UserID:    record.UserID,
		SessionID: record.SessionID,
		IPAddress: input.IPAddress,
		Detail: map[string]string{
			"family_id": record.FamilyID,
			"token_id":  record.ID,
		},
	})
	service.logger.Warn("refresh_token_reuse_detected",
		slog.String("user_id", record.UserID),
		slog.String("session_id", record.SessionID),
		slog.String("family_id", record.FamilyID),
	)

	return nil
}

func (service *Service) emitRefreshRejected(record *RefreshToken, input RotateInput, reason string) {
	service.auditRecorder.Emit(audit.Event{
		Name:      audit.EventRefreshRejected,
		UserID:    record.UserID,
		SessionID: record.SessionID,
		IPAddress: input.IPAddress,
		Detail:    map[string]string{"reason": reason, "token_id": record.ID},
	})
}

// # Session Revocation

// RevokeSessionInput identifies the session to revoke and who asked.
type RevokeSessionInput struct {
	SessionID string
	UserID    string
	RevokedBy string
	Reason    string
	IPAddress string
	UserAgent string
	RequestID string
}

/*
RevokeSessionForUser revokes one session of one user, together with every
live refresh token tied to it.

Description: Idempotent. Revoking an already-revoked or unknown session
reports not_found and is not an error.

Parameters:
  - context: context.Context
  - input: RevokeSessionInput

Returns:
  - RevocationStatus: revoked or not_found
  - error: Persistence failures
*/
func (service *Service) RevokeSessionForUser(context context.Context, input RevokeSessionInput) (RevocationStatus, error) {
	status, err := service.sessionRepository.Revoke(context, input.SessionID, input.UserID)
	if err != nil {
		return RevocationStatusNotFound, fmt.Errorf("session_service_revoke_failed: %w", err)
	}

	if err := service.refreshRepository.RevokeBySessionID(context, input.SessionID); err != nil {
		return status, fmt.Errorf("session_service_revoke_tokens_failed: %w", err)
	}

	if status == RevocationStatusRevoked {
		service.auditRecorder.Emit(audit.Event{
			Name:      audit.EventSessionRevoked,
			UserID:    input.UserID,
			SessionID: input.SessionID,
			IPAddress: input.IPAddress,
			Detail: map[string]string{
				"revoked_by": input.RevokedBy,
				"reason":     input.Reason,
				"request_id": input.RequestID,
			},
		})
	}

	return status, nil
}

/*
RevokeAllForUser revokes every live session and refresh token of one user.

Description: Used by SSO back-channel logout and security resets.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Persistence failures
*/
func (service *Service) RevokeAllForUser(context context.Context, userID string) error {
	if err := service.sessionRepository.RevokeAllForUser(context, userID); err != nil {
		return fmt.Errorf("session_service_revoke_all_failed: %w", err)
	}
	if err := service.refreshRepository.RevokeAllForUser(context, userID); err != nil {
		return fmt.Errorf("session_service_revoke_all_tokens_failed: %w", err)
	}
	return nil
}

// # Session Visibility

/*
ListSessions provides a safety-mapped list of the user's live sessions.

Parameters:
  - context: context.Context
  - userID: string
  - currentSessionID: string (flags IsCurrent on the matching entry)

Returns:
  - []SessionInfo: Active sessions, newest first, no hash material
  - error: Retrieval failures
*/
func (service *Service) ListSessions(context context.Context, userID, currentSessionID string) ([]SessionInfo, error) {
	sessions, err := service.sessionRepository.FindActiveByUserID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("session_service_list_failed: %w", err)
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, SessionInfo{
			ID:         session.ID,
			ClientType: string(session.ClientType),
			MFALevel:   string(session.MFALevel),
			IPAddress:  session.IPAddress,
			UserAgent:  session.UserAgent,
			CreatedAt:  session.CreatedAt,
			ExpiresAt:  session.ExpiresAt,
			IsCurrent:  session.ID == currentSessionID,
		})
	}

	return infos, nil
}
