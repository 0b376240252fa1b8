// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/superbasicman/superbasic/internal/auth/audit"
	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/auth/session"
	"github.com/superbasicman/superbasic/internal/auth/signing"
	"github.com/superbasicman/superbasic/internal/auth/token"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/pkg/uuidv7"
)

// # Protocol Errors

// ProtocolError is an RFC 6749 §5.2 error. The HTTP layer serializes it as
// {"error": code, "error_description": description} at the given status.
type ProtocolError struct {
	Code        string
	Description string
	Status      int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("oauth: %s: %s", e.Code, e.Description)
}

// RFC 6749 / 7009 / 7662 error codes.
const (
	ErrorInvalidRequest          = "invalid_request"
	ErrorInvalidClient           = "invalid_client"
	ErrorInvalidGrant            = "invalid_grant"
	ErrorInvalidScope            = "invalid_scope"
	ErrorUnauthorizedClient      = "unauthorized_client"
	ErrorUnsupportedGrantType    = "unsupported_grant_type"
	ErrorUnsupportedResponseType = "unsupported_response_type"
	ErrorServerError             = "server_error"
)

func invalidRequest(description string) *ProtocolError {
	return &ProtocolError{Code: ErrorInvalidRequest, Description: description, Status: http.StatusBadRequest}
}

func invalidClient() *ProtocolError {
	return &ProtocolError{Code: ErrorInvalidClient, Description: "Client authentication failed", Status: http.StatusUnauthorized}
}

// invalidGrant is the uniform answer for every code or refresh failure.
// Unknown code, consumed code, expired code, wrong secret, wrong client,
// wrong redirect_uri, and failed PKCE proof must be indistinguishable.
func invalidGrant() *ProtocolError {
	return &ProtocolError{Code: ErrorInvalidGrant, Description: "Invalid or expired grant", Status: http.StatusBadRequest}
}

// # Collaborator Contracts

// SessionIssuer is the slice of the session service the flow consumes:
// minting a session-backed token pair at exchange, rotating at refresh.
type SessionIssuer interface {
	CreateSession(context context.Context, input session.CreateSessionInput) (*session.IssuedSession, error)
	Rotate(context context.Context, rawValue string, input session.RotateInput) (*session.IssuedSession, error)
}

// SessionDirectory reads and revokes session rows for exchange binding,
// revocation, and introspection liveness.
type SessionDirectory interface {
	FindByID(context context.Context, id string) (*session.Session, error)
	RevokeByID(context context.Context, sessionID string) error
}

// RefreshTokenDirectory reads and revokes refresh-token rows for the
// revocation and introspection endpoints.
type RefreshTokenDirectory interface {
	FindByID(context context.Context, id string) (*session.RefreshToken, error)
	RevokeFamily(context context.Context, familyID string) error
	RevokeBySessionID(context context.Context, sessionID string) error
}

// # Service Definition

// Service implements the authorization server's grant machinery.
type Service struct {
	clients       ClientRepository
	codes         CodeRepository
	pending       PendingRepository
	sessions      SessionDirectory
	refreshTokens RefreshTokenDirectory
	sessionIssuer SessionIssuer
	keystore      *signing.Keystore
	keyring       *token.Keyring
	codec         *token.Codec
	auditRecorder *audit.Recorder
	logger        *slog.Logger
	clock         func() time.Time
	loginURL      string
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	clients ClientRepository,
	codes CodeRepository,
	pending PendingRepository,
	sessions SessionDirectory,
	refreshTokens RefreshTokenDirectory,
	sessionIssuer SessionIssuer,
	keystore *signing.Keystore,
	keyring *token.Keyring,
	codec *token.Codec,
	auditRecorder *audit.Recorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		clients:       clients,
		codes:         codes,
		pending:       pending,
		sessions:      sessions,
		refreshTokens: refreshTokens,
		sessionIssuer: sessionIssuer,
		keystore:      keystore,
		keyring:       keyring,
		codec:         codec,
		auditRecorder: auditRecorder,
		logger:        logger,
		clock:         time.Now,
		loginURL:      "/login",
	}
}

// WithClock replaces the time source for deterministic tests.
func (service *Service) WithClock(clock func() time.Time) *Service {
	service.clock = clock
	return service
}

// WithLoginURL overrides where unauthenticated authorize requests are sent.
func (service *Service) WithLoginURL(loginURL string) *Service {
	service.loginURL = loginURL
	return service
}

// # Authorize Step

// AuthorizeRequest carries the query parameters of GET /oauth/authorize.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizeResult tells the HTTP layer where to send the browser next:
// back to the client with a code, back to the client with an error, or to
// the login page with the request stashed.
type AuthorizeResult struct {
	RedirectURL string
}

/*
Authorize runs the authorization step of the code flow.

Description: The client and redirect pair is validated before anything
else; an invalid pair yields a direct error, never a redirect, so the
server cannot be used as an open redirector. Every later failure travels
back on the registered redirect_uri as error/error_description. An
unauthenticated caller is parked: the full request is stashed in Redis
under an opaque id and the browser is sent to login with a return_to that
resumes the flow.

Parameters:
  - context: context.Context
  - principal: *authz.Principal (nil or non-session parks the request)
  - request: AuthorizeRequest

Returns:
  - *AuthorizeResult: The next redirect
  - error: apperr.ValidationError for an invalid client/redirect pair, storage failures
*/
func (service *Service) Authorize(context context.Context, principal *authz.Principal, request AuthorizeRequest) (*AuthorizeResult, error) {

	// 1. Client + redirect validation. Errors here answer directly.
	if request.ClientID == "" {
		return nil, apperr.ValidationError("client_id is required")
	}

	client, err := service.clients.FindByID(context, request.ClientID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.ValidationError("Unknown client")
		}
		return nil, fmt.Errorf("oauth_service_client_lookup_failed: %w", err)
	}

	if !client.AllowsRedirect(request.RedirectURI) {
		return nil, apperr.ValidationError("redirect_uri is not registered for this client")
	}

	// 2. The pair is trusted; from here every failure redirects.
	if request.ResponseType != "code" {
		return service.errorRedirect(request, ErrorUnsupportedResponseType, "Only response_type=code is supported")
	}

	method, ok := NormalizeChallengeMethod(request.CodeChallengeMethod)
	if !ok {
		return service.errorRedirect(request, ErrorInvalidRequest, "Unsupported code_challenge_method")
	}
	if request.CodeChallenge == "" && client.Public {
		return service.errorRedirect(request, ErrorInvalidRequest, "code_challenge is required for public clients")
	}

	// 3. No interactive login: park the request and bounce to login.
	if principal == nil || principal.Kind != authz.KindSession {
		return service.parkRequest(context, request)
	}

	// 4. Scope grant: intersect the request with the catalog and the
	// client's allow-list; unknowns drop silently, never an error.
	granted := authz.IntersectScopes(authz.FilterKnown(authz.SplitScopes(request.Scope)), client.Scopes)

	// 5. Mint the single-use code.
	minted, err := service.codec.Mint(token.KindAuthorizationCode)
	if err != nil {
		return nil, fmt.Errorf("oauth_service_mint_code_failed: %w", err)
	}
	envelope, err := service.keyring.Seal(minted.Secret)
	if err != nil {
		return nil, fmt.Errorf("oauth_service_seal_code_failed: %w", err)
	}

	now := service.clock()
	code := &AuthorizationCode{
		ID:                  minted.ID,
		ClientID:            client.ID,
		UserID:              principal.Context.UserID,
		SessionID:           principal.Context.SessionID,
		RedirectURI:         request.RedirectURI,
		Scope:               authz.JoinScopes(granted),
		Nonce:               request.Nonce,
		CodeChallenge:       request.CodeChallenge,
		CodeChallengeMethod: string(method),
		CodeHash:            *envelope,
		CreatedAt:           now,
		ExpiresAt:           now.Add(AuthorizationCodeTTL),
	}
	if code.CodeChallenge == "" {
		code.CodeChallengeMethod = ""
	}

	if err := service.codes.Create(context, code); err != nil {
		return nil, fmt.Errorf("oauth_service_store_code_failed: %w", err)
	}

	service.auditRecorder.Emit(audit.Event{
		Name:      audit.EventCodeIssued,
		UserID:    code.UserID,
		SessionID: code.SessionID,
		Detail: map[string]string{
			"client_id": client.ID,
			"scope":     code.Scope,
		},
	})

	// 6. Send the browser back with code + state.
	target, err := appendQuery(request.RedirectURI, map[string]string{
		"code":  minted.Value,
		"state": request.State,
	})
	if err != nil {
		return nil, fmt.Errorf("oauth_service_redirect_build_failed: %w", err)
	}

	return &AuthorizeResult{RedirectURL: target}, nil
}

/*
Resume continues a parked authorize request after login.

Description: The stash is single-use; Take deletes it. If the user is still
unauthenticated the request is parked again under a fresh id.

Parameters:
  - context: context.Context
  - principal: *authz.Principal
  - pendingID: string

Returns:
  - *AuthorizeResult: The next redirect
  - error: apperr.ValidationError when the stash expired, storage failures
*/
func (service *Service) Resume(context context.Context, principal *authz.Principal, pendingID string) (*AuthorizeResult, error) {
	parked, err := service.pending.Take(context, pendingID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.ValidationError("Authorization request expired, start over")
		}
		return nil, fmt.Errorf("oauth_service_pending_take_failed: %w", err)
	}

	return service.Authorize(context, principal, AuthorizeRequest{
		ClientID:            parked.ClientID,
		RedirectURI:         parked.RedirectURI,
		ResponseType:        "code",
		Scope:               parked.Scope,
		State:               parked.State,
		Nonce:               parked.Nonce,
		CodeChallenge:       parked.CodeChallenge,
		CodeChallengeMethod: parked.CodeChallengeMethod,
	})
}

// parkRequest stashes the authorize request in Redis and builds the login
// redirect whose return_to resumes the flow.
func (service *Service) parkRequest(context context.Context, request AuthorizeRequest) (*AuthorizeResult, error) {
	pendingID := uuidv7.New()

	parked := &PendingAuthorization{
		ClientID:            request.ClientID,
		RedirectURI:         request.RedirectURI,
		Scope:               request.Scope,
		State:               request.State,
		Nonce:               request.Nonce,
		CodeChallenge:       request.CodeChallenge,
		CodeChallengeMethod: request.CodeChallengeMethod,
		CreatedAt:           service.clock(),
	}

	if err := service.pending.Put(context, pendingID, parked, PendingAuthorizationTTL); err != nil {
		return nil, fmt.Errorf("oauth_service_pending_put_failed: %w", err)
	}

	returnTo := "/oauth/authorize?pending_id=" + url.QueryEscape(pendingID)
	return &AuthorizeResult{
		RedirectURL: service.loginURL + "?return_to=" + url.QueryEscape(returnTo),
	}, nil
}

// errorRedirect builds the RFC 6749 §4.1.2.1 error redirect on the already
// validated redirect_uri.
func (service *Service) errorRedirect(request AuthorizeRequest, code, description string) (*AuthorizeResult, error) {
	target, err := appendQuery(request.RedirectURI, map[string]string{
		"error":             code,
		"error_description": description,
		"state":             request.State,
	})
	if err != nil {
		return nil, fmt.Errorf("oauth_service_redirect_build_failed: %w", err)
	}
	return &AuthorizeResult{RedirectURL: target}, nil
}

// appendQuery merges parameters into a URL, preserving any query the
// registered redirect_uri already carries. Empty values are skipped.
func appendQuery(rawURL string, params map[string]string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	values := parsed.Query()
	for key, value := range params {
		if value != "" {
			values.Set(key, value)
		}
	}
	parsed.RawQuery = values.Encode()

	return parsed.String(), nil
}

// # Token Step

// TokenRequest carries the form parameters of POST /oauth/token. Client
// credentials may arrive via Basic auth or the form body; the HTTP layer
// flattens both into ClientID/ClientSecret.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	ClientID     string
	ClientSecret string
	IPAddress    string
	UserAgent    string
}

// TokenResponse is the RFC 6749 §5.1 success payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

/*
Exchange serves POST /oauth/token for both supported grants.

Parameters:
  - context: context.Context
  - request: TokenRequest

Returns:
  - *TokenResponse: Access + refresh pair (plus ID token when openid was granted)
  - error: *ProtocolError for RFC-shaped failures, storage failures otherwise
*/
func (service *Service) Exchange(context context.Context, request TokenRequest) (*TokenResponse, error) {
	client, err := service.authenticateClient(context, request.ClientID, request.ClientSecret)
	if err != nil {
		return nil, err
	}

	switch request.GrantType {
	case "authorization_code":
		return service.exchangeCode(context, client, request)
	case "refresh_token":
		return service.refreshGrant(context, request)
	case "":
		return nil, invalidRequest("grant_type is required")
	default:
		return nil, &ProtocolError{Code: ErrorUnsupportedGrantType, Description: "Unsupported grant_type", Status: http.StatusBadRequest}
	}
}

// authenticateClient resolves and authenticates the calling client.
// Confidential clients must prove their secret against the stored hash
// envelope; public clients must not present one at all.
func (service *Service) authenticateClient(context context.Context, clientID, clientSecret string) (*Client, error) {
	if clientID == "" {
		return nil, invalidClient()
	}

	client, err := service.clients.FindByID(context, clientID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, invalidClient()
		}
		return nil, fmt.Errorf("oauth_service_client_lookup_failed: %w", err)
	}

	if client.Confidential() {
		if clientSecret == "" || !service.keyring.Verify(clientSecret, client.SecretHash) {
			return nil, invalidClient()
		}
		return client, nil
	}

	if clientSecret != "" {
		return nil, invalidClient()
	}

	return client, nil
}

// exchangeCode redeems a single-use authorization code.
//
// Order matters: the secret is verified before consumption so an attacker
// who knows only a code's id cannot burn it, and consumption happens before
// the remaining checks so any later failure still leaves the code dead.
func (service *Service) exchangeCode(context context.Context, client *Client, request TokenRequest) (*TokenResponse, error) {
	now := service.clock()

	presented := token.Parse(request.Code, token.ParseOptions{Kind: token.KindAuthorizationCode})
	if presented == nil {
		return nil, invalidGrant()
	}

	record, err := service.codes.FindByID(context, presented.ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, invalidGrant()
		}
		return nil, fmt.Errorf("oauth_service_code_lookup_failed: %w", err)
	}

	if !service.keyring.Verify(presented.Secret, &record.CodeHash) {
		return nil, invalidGrant()
	}

	consumed, err := service.codes.Consume(context, record.ID, now)
	if err != nil {
		return nil, fmt.Errorf("oauth_service_code_consume_failed: %w", err)
	}
	if !consumed {
		service.logger.Warn("authorization_code_replayed",
			slog.String("code_id", record.ID),
			slog.String("client_id", client.ID),
		)
		return nil, invalidGrant()
	}

	if record.ClientID != client.ID {
		return nil, invalidGrant()
	}
	if record.IsExpired(now) {
		return nil, invalidGrant()
	}
	if record.RedirectURI != request.RedirectURI {
		return nil, invalidGrant()
	}

	if record.CodeChallenge != "" {
		method, ok := NormalizeChallengeMethod(record.CodeChallengeMethod)
		if !ok || !VerifyChallenge(request.CodeVerifier, record.CodeChallenge, method) {
			return nil, invalidGrant()
		}
	} else if request.CodeVerifier != "" {
		return nil, invalidGrant()
	}

	// The code is bound to the login that approved it. If that session has
	// been revoked or expired since, the approval no longer stands.
	authorizing, err := service.sessions.FindByID(context, record.SessionID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, invalidGrant()
		}
		return nil, fmt.Errorf("oauth_service_session_lookup_failed: %w", err)
	}
	if !authorizing.IsActive(now) {
		return nil, invalidGrant()
	}

	issued, err := service.sessionIssuer.CreateSession(context, session.CreateSessionInput{
		UserID:     record.UserID,
		ClientType: authz.ClientTypeAPI,
		MFALevel:   authorizing.MFALevel,
		IPAddress:  request.IPAddress,
		UserAgent:  request.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("oauth_service_session_create_failed: %w", err)
	}

	response := &TokenResponse{
		AccessToken:  issued.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(issued.AccessTokenTTL.Seconds()),
		RefreshToken: issued.RefreshTokenValue,
		Scope:        record.Scope,
	}

	if authz.ContainsScope(authz.FilterKnown(authz.SplitScopes(record.Scope)), authz.ScopeOpenID) {
		idToken, err := service.keystore.SignID(signing.IDTokenInput{
			UserID:     record.UserID,
			ClientID:   client.ID,
			Nonce:      record.Nonce,
			AuthTime:   authorizing.AuthenticatedAt,
			IssuedAt:   now,
			TimeToLive: IDTokenTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("oauth_service_sign_id_token_failed: %w", err)
		}
		response.IDToken = idToken
	}

	service.auditRecorder.Emit(audit.Event{
		Name:      audit.EventCodeConsumed,
		UserID:    record.UserID,
		SessionID: issued.Session.ID,
		IPAddress: request.IPAddress,
		Detail: map[string]string{
			"client_id": client.ID,
			"scope":     record.Scope,
		},
	})

	return response, nil
}

// refreshGrant delegates to the session rotation machinery. Every
// credential failure surfaces as invalid_grant; reuse detection and family
// burning happen inside the rotation op.
func (service *Service) refreshGrant(context context.Context, request TokenRequest) (*TokenResponse, error) {
	if request.RefreshToken == "" {
		return nil, invalidRequest("refresh_token is required")
	}

	issued, err := service.sessionIssuer.Rotate(context, request.RefreshToken, session.RotateInput{
		IPAddress: request.IPAddress,
		UserAgent: request.UserAgent,
	})
	if err != nil {
		if appError := apperr.As(err); appError != nil && appError.HTTPStatus == http.StatusUnauthorized {
			return nil, invalidGrant()
		}
		return nil, fmt.Errorf("oauth_service_refresh_failed: %w", err)
	}

	return &TokenResponse{
		AccessToken:  issued.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(issued.AccessTokenTTL.Seconds()),
		RefreshToken: issued.RefreshTokenValue,
	}, nil
}

// # Revocation (RFC 7009)

// RevokeRequest carries the form parameters of POST /oauth/revoke.
type RevokeRequest struct {
	Token         string
	TokenTypeHint string
	ClientID      string
	ClientSecret  string
	IPAddress     string
}

/*
Revoke serves POST /oauth/revoke.

Description: Per RFC 7009 the endpoint never reveals whether the presented
token existed: malformed values, unknown ids, and wrong secrets all return
success. A refresh token takes its whole family and session down; an access
token takes its session. Only client authentication failures and storage
trouble surface as errors.

Parameters:
  - context: context.Context
  - request: RevokeRequest

Returns:
  - error: *ProtocolError (invalid_client) or storage failures
*/
func (service *Service) Revoke(context context.Context, request RevokeRequest) error {
	client, err := service.authenticateClient(context, request.ClientID, request.ClientSecret)
	if err != nil {
		return err
	}

	if request.Token == "" {
		return nil
	}

	if presented := token.Parse(request.Token, token.ParseOptions{Kind: token.KindRefresh}); presented != nil {
		return service.revokeRefresh(context, client, presented, request.IPAddress)
	}

	claims, err := service.keystore.VerifyAccess(request.Token)
	if err != nil || claims.SessionID == "" {
		// Unknown or malformed material. Success regardless.
		return nil
	}

	if err := service.sessions.RevokeByID(context, claims.SessionID); err != nil {
		return fmt.Errorf("oauth_service_revoke_session_failed: %w", err)
	}
	if err := service.refreshTokens.RevokeBySessionID(context, claims.SessionID); err != nil {
		return fmt.Errorf("oauth_service_revoke_session_tokens_failed: %w", err)
	}

	service.auditRecorder.Emit(audit.Event{
		Name:      audit.EventSessionRevoked,
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		IPAddress: request.IPAddress,
		Detail: map[string]string{
			"revoked_by": "oauth_revocation",
			"client_id":  client.ID,
		},
	})

	return nil
}

func (service *Service) revokeRefresh(context context.Context, client *Client, presented *token.Token, ipAddress string) error {
	record, err := service.refreshTokens.FindByID(context, presented.ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("oauth_service_revoke_lookup_failed: %w", err)
	}

	if !service.keyring.Verify(presented.Secret, &record.TokenHash) {
		return nil
	}

	if err := service.refreshTokens.RevokeFamily(context, record.FamilyID); err != nil {
		return fmt.Errorf("oauth_service_revoke_family_failed: %w", err)
	}
	if err := service.sessions.RevokeByID(context, record.SessionID); err != nil {
		return fmt.Errorf("oauth_service_revoke_session_failed: %w", err)
	}

	service.auditRecorder.Emit(audit.Event{
		Name:      audit.EventSessionRevoked,
		UserID:    record.UserID,
		SessionID: record.SessionID,
		IPAddress: ipAddress,
		Detail: map[string]string{
			"revoked_by": "oauth_revocation",
			"client_id":  client.ID,
		},
	})

	return nil
}

// # Introspection (RFC 7662)

// IntrospectRequest carries the form parameters of POST /oauth/introspect.
type IntrospectRequest struct {
	Token         string
	TokenTypeHint string
	ClientID      string
	ClientSecret  string
}

// IntrospectionResponse is the RFC 7662 §2.2 payload. Inactive tokens get
// {"active": false} and nothing else.
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Subject   string `json:"sub,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	SessionID string `json:"sid,omitempty"`
}

/*
Introspect serves POST /oauth/introspect.

Description: Only confidential clients may introspect; a public client's
credentials would live in the open. Liveness is decided by rows: an access
JWT is active only while its session is, a refresh token only while both it
and its session are. Every failure short of a storage error reports
{"active": false} with no detail.

Parameters:
  - context: context.Context
  - request: IntrospectRequest

Returns:
  - *IntrospectionResponse: Activity report
  - error: *ProtocolError (invalid_client) or storage failures
*/
func (service *Service) Introspect(context context.Context, request IntrospectRequest) (*IntrospectionResponse, error) {
	client, err := service.authenticateClient(context, request.ClientID, request.ClientSecret)
	if err != nil {
		return nil, err
	}
	if !client.Confidential() {
		return nil, invalidClient()
	}

	inactive := &IntrospectionResponse{Active: false}
	now := service.clock()

	if presented := token.Parse(request.Token, token.ParseOptions{Kind: token.KindRefresh}); presented != nil {
		return service.introspectRefresh(context, presented, now)
	}

	claims, err := service.keystore.VerifyAccess(request.Token)
	if err != nil || claims.SessionID == "" {
		return inactive, nil
	}

	live, err := service.sessions.FindByID(context, claims.SessionID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return inactive, nil
		}
		return nil, fmt.Errorf("oauth_service_introspect_session_failed: %w", err)
	}
	if !live.IsActive(now) || claims.Subject != live.UserID {
		return inactive, nil
	}

	return &IntrospectionResponse{
		Active:    true,
		Subject:   claims.Subject,
		TokenType: "Bearer",
		ExpiresAt: claims.ExpiresAt.Unix(),
		IssuedAt:  claims.IssuedAt.Unix(),
		Issuer:    claims.Issuer,
		SessionID: claims.SessionID,
	}, nil
}

func (service *Service) introspectRefresh(context context.Context, presented *token.Token, now time.Time) (*IntrospectionResponse, error) {
	inactive := &IntrospectionResponse{Active: false}

	record, err := service.refreshTokens.FindByID(context, presented.ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return inactive, nil
		}
		return nil, fmt.Errorf("oauth_service_introspect_lookup_failed: %w", err)
	}

	if !service.keyring.Verify(presented.Secret, &record.TokenHash) || !record.IsLive(now) {
		return inactive, nil
	}

	live, err := service.sessions.FindByID(context, record.SessionID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return inactive, nil
		}
		return nil, fmt.Errorf("oauth_service_introspect_session_failed: %w", err)
	}
	if !live.IsActive(now) {
		return inactive, nil
	}

	return &IntrospectionResponse{
		Active:    true,
		Subject:   record.UserID,
		TokenType: "refresh_token",
		ExpiresAt: record.ExpiresAt.Unix(),
		IssuedAt:  record.CreatedAt.Unix(),
		SessionID: record.SessionID,
	}, nil
}

// # Server Metadata (RFC 8414)

// Metadata is the discovery document served at
// /.well-known/oauth-authorization-server.
type Metadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RevocationEndpoint            string   `json:"revocation_endpoint"`
	IntrospectionEndpoint         string   `json:"introspection_endpoint"`
	ScopesSupported               []string `json:"scopes_supported"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethods      []string `json:"token_endpoint_auth_methods_supported"`
}

// Metadata builds the discovery document from the signing issuer.
func (service *Service) Metadata() Metadata {
	issuer := service.keystore.Issuer()

	scopes := make([]string, 0, len(authz.KnownScopes()))
	for _, scope := range authz.KnownScopes() {
		scopes = append(scopes, string(scope))
	}

	return Metadata{
		Issuer:                        issuer,
		AuthorizationEndpoint:         issuer + "/oauth/authorize",
		TokenEndpoint:                 issuer + "/oauth/token",
		RevocationEndpoint:            issuer + "/oauth/revoke",
		IntrospectionEndpoint:         issuer + "/oauth/introspect",
		ScopesSupported:               scopes,
		ResponseTypesSupported:        []string{"code"},
		GrantTypesSupported:           []string{"authorization_code", "refresh_token"},
		CodeChallengeMethodsSupported: []string{string(ChallengeMethodS256), string(ChallengeMethodPlain)},
		TokenEndpointAuthMethods:      []string{"client_secret_basic", "client_secret_post", "none"},
	}
}
