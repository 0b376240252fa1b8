// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package session

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/constants"
	"github.com/superbasicman/superbasic/internal/platform/middleware"
	requestutil "github.com/superbasicman/superbasic/internal/platform/request"
	"github.com/superbasicman/superbasic/internal/platform/respond"
	"github.com/superbasicman/superbasic/internal/platform/validate"
	"github.com/superbasicman/superbasic/internal/users/account"
)

// # Definitions & Constructors

// AccountRegistrar is the slice of the account service this handler consumes:
// registration (auto-login) and TOTP enrollment.
type AccountRegistrar interface {
	Register(context context.Context, input account.RegisterInput) (*account.Account, error)
	EnrollTOTP(context context.Context, userID string) (*account.TOTPEnrollment, error)
}

// Handler implements the authentication lifecycle HTTP endpoints.
//
// # Scope
//
// Everything a first-party client needs to obtain, keep, and drop a session:
// registration, login, refresh rotation, logout, device management, and TOTP
// enrollment. The OAuth surface for third-party clients lives elsewhere.
type Handler struct {
	sessionService *Service
	accounts       AccountRegistrar
}

// NewHandler constructs a new [Handler] with its service dependencies.
func NewHandler(sessionService *Service, accounts AccountRegistrar) *Handler {
	return &Handler{sessionService: sessionService, accounts: accounts}
}

// Routes returns a [chi.Router] for the /v1/auth surface.
//
// # Endpoints
//   - POST   /register      : Create an account and log it in.
//   - POST   /login         : Password (+ optional TOTP) login.
//   - POST   /refresh       : Rotate the refresh token (cookie or body).
//   - POST   /logout        : Revoke the current session.
//   - GET    /sessions      : List the caller's active sessions.
//   - DELETE /sessions/{id} : Revoke one session (step-up required).
//   - POST   /mfa/totp      : Enroll the TOTP second factor (step-up required).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints. Refresh carries its own credential.
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(requireSessionPrincipal)

		r.Post("/logout", handler.logout)
		r.Get("/sessions", handler.listSessions)

		// Step-up protected mutations.
		r.Group(func(stepped chi.Router) {
			stepped.Use(middleware.RequireRecentAuth(authz.DefaultStepUpWindow, authz.MFALevelNone))
			stepped.Delete("/sessions/{id}", handler.revokeSession)
			stepped.Post("/mfa/totp", handler.enrollTOTP)
		})
	})

	return router
}

// requireSessionPrincipal rejects token principals. A delegated credential
// must never manage the sessions of the user who minted it.
func requireSessionPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		principal, err := requestutil.RequiredPrincipal(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		if principal.Kind != authz.KindSession {
			respond.Error(writer, request, apperr.Forbidden("Session management requires an interactive session"))
			return
		}

		next.ServeHTTP(writer, request)
	})
}

// # Request Payloads

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	ClientType  string `json:"client_type"`
	RememberMe  bool   `json:"remember_me"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TOTPCode   string `json:"totp_code"`
	ClientType string `json:"client_type"`
	RememberMe bool   `json:"remember_me"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// clientTypeOrDefault maps the optional client_type field. Browsers are the
// default surface.
func clientTypeOrDefault(raw string) authz.ClientType {
	if raw == "" {
		return authz.ClientTypeWeb
	}
	return authz.ClientType(raw)
}

// # Credential Transport

// setSessionCookies injects the browser credentials. Web sessions get the
// opaque session cookie plus the path-scoped refresh cookie; other client
// types carry their credentials in the response body instead.
func setSessionCookies(writer http.ResponseWriter, issued *IssuedSession) {
	if issued.SessionTokenValue != "" {
		http.SetCookie(writer, &http.Cookie{
			Name:  constants.SessionCookieName,
			Value: issued.SessionTokenValue,
			Path:  "/",
			// The row enforces the sliding expiry; the cookie only needs to
			// outlive the longest the session could possibly last.
			Expires:  issued.Session.AbsoluteExpiresAt,
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}

	if issued.Session.ClientType == authz.ClientTypeWeb {
		http.SetCookie(writer, &http.Cookie{
			Name:     constants.RefreshTokenCookieName,
			Value:    issued.RefreshTokenValue,
			Path:     constants.RefreshTokenCookiePath,
			Expires:  issued.RefreshExpiresAt,
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// clearSessionCookies expires both credentials on the client.
func clearSessionCookies(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// sessionPayload builds the token response body. Web clients receive the
// refresh token through the cookie only, never through JSON a script could
// read.
func sessionPayload(issued *IssuedSession) map[string]any {
	payload := map[string]any{
		FieldAccessToken: issued.AccessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   int64(issued.AccessTokenTTL / time.Second),
	}
	if issued.User != nil {
		payload["user"] = issued.User
	}
	if issued.Session.ClientType != authz.ClientTypeWeb {
		payload[FieldRefreshToken] = issued.RefreshTokenValue
		payload["refresh_expires_at"] = issued.RefreshExpiresAt
	}
	return payload
}

// # Endpoints

/*
Register creates an account and logs it in.

POST /api/v1/auth/register

Description: Registration immediately establishes a session (auto-login) so
clients never juggle a second round trip with the password still in hand.

Request:
  - Body: registerRequest (Email, Password, DisplayName, ClientType?, RememberMe?)

Response:
  - 201: Access token, user profile, and session credentials
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		MaxLen(FieldEmail, input.Email, account.MaxEmailLen).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, account.MinPasswordLength).
		MaxLen(account.FieldDisplayName, input.DisplayName, account.MaxDisplayNameLen)

	clientType := clientTypeOrDefault(input.ClientType)
	validator.Custom("client_type", !clientType.IsValid(), "Unknown client type")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accounts.Register(request.Context(), account.RegisterInput{
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	issued, err := handler.sessionService.CreateSession(request.Context(), CreateSessionInput{
		UserID:     user.ID,
		ClientType: clientType,
		RememberMe: input.RememberMe,
		IPAddress:  requestutil.ClientIP(request),
		UserAgent:  request.UserAgent(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	issued.User = user

	setSessionCookies(writer, issued)
	respond.Created(writer, sessionPayload(issued))
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Description: Verifies credentials, enforces the TOTP second factor when
enrolled, and injects secure session cookies for web clients. All credential
failures share one generic 401; an enrolled second factor missing from the
request returns the distinct MFA_REQUIRED code so clients can prompt for it.

Request:
  - Body: loginRequest (Email, Password, TOTPCode?, ClientType?, RememberMe?)

Response:
  - 200: Access token and user profile
  - 401: ErrUnauthorized: Invalid credentials, or MFA_REQUIRED
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	clientType := clientTypeOrDefault(input.ClientType)
	validator.Custom("client_type", !clientType.IsValid(), "Unknown client type")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	issued, err := handler.sessionService.Login(request.Context(), LoginInput{
		Email:      input.Email,
		Password:   input.Password,
		TOTPCode:   input.TOTPCode,
		ClientType: clientType,
		RememberMe: input.RememberMe,
		UserAgent:  request.UserAgent(),
		IPAddress:  requestutil.ClientIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setSessionCookies(writer, issued)
	respond.OK(writer, sessionPayload(issued))
}

/*
Refresh rotates the refresh token and issues a fresh access token.

POST /api/v1/auth/refresh

Description: The credential comes from the path-scoped cookie when present,
otherwise from the request body (API and mobile clients). The predecessor
token is retired atomically; replaying it outside the retry grace window
burns the whole family.

Request:
  - Body: refreshRequest (RefreshToken), optional when the cookie is set

Response:
  - 200: New access token, plus the successor refresh token for body clients
  - 401: ErrUnauthorized: Missing, invalid, or reused refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	rawValue := ""
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		rawValue = cookie.Value
	}
	if rawValue == "" {
		var input refreshRequest
		// Body decode failures fall through to the missing-credential answer.
		_ = requestutil.DecodeJSON(request, &input)
		rawValue = input.RefreshToken
	}
	if rawValue == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing refresh token"))
		return
	}

	issued, err := handler.sessionService.Rotate(request.Context(), rawValue, RotateInput{
		UserAgent: request.UserAgent(),
		IPAddress: requestutil.ClientIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setSessionCookies(writer, issued)
	respond.OK(writer, sessionPayload(issued))
}

/*
Logout terminates the caller's current session.

POST /api/v1/auth/logout

Description: Revokes the session row together with every live refresh token
tied to it, then expires the browser cookies. Idempotent.

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	_, err = handler.sessionService.RevokeSessionForUser(request.Context(), RevokeSessionInput{
		SessionID: principal.Context.SessionID,
		UserID:    principal.Context.UserID,
		RevokedBy: "user",
		Reason:    "logout",
		IPAddress: requestutil.ClientIP(request),
		UserAgent: request.UserAgent(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	clearSessionCookies(writer)
	respond.NoContent(writer)
}

/*
ListSessions returns the caller's active sessions for device management.

GET /api/v1/auth/sessions

Response:
  - 200: []SessionInfo: Active sessions, the current one flagged
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) listSessions(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessions, err := handler.sessionService.ListSessions(
		request.Context(),
		principal.Context.UserID,
		principal.Context.SessionID,
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessions)
}

/*
RevokeSession revokes one of the caller's sessions by id.

DELETE /api/v1/auth/sessions/{id}

Description: Kills another device's session. Idempotent: revoking an unknown
or already-revoked session still answers 204. Revoking the current session
behaves like logout minus the cookie clearing.

Response:
  - 204: No Content
  - 401: STEP_UP_REQUIRED: Recent authentication required
*/
func (handler *Handler) revokeSession(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	_, err = handler.sessionService.RevokeSessionForUser(request.Context(), RevokeSessionInput{
		SessionID: requestutil.ID(request, "id"),
		UserID:    principal.Context.UserID,
		RevokedBy: "user",
		Reason:    "device_revoked",
		IPAddress: requestutil.ClientIP(request),
		UserAgent: request.UserAgent(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
EnrollTOTP sets up the TOTP second factor for the caller.

POST /api/v1/auth/mfa/totp

Description: Generates the shared secret and returns the provisioning URI
exactly once. The session keeps its current MFA level; the next login with a
code stamps mfa.

Response:
  - 201: TOTPEnrollment: Secret and otpauth:// URI
  - 401: STEP_UP_REQUIRED: Recent authentication required
  - 409: ErrConflict: Already enrolled
*/
func (handler *Handler) enrollTOTP(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	enrollment, err := handler.accounts.EnrollTOTP(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, enrollment)
}
