// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package oauth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/superbasicman/superbasic/internal/platform/request"
	"github.com/superbasicman/superbasic/internal/platform/respond"
)

// # Definitions & Constructors

// Handler implements the authorization server's HTTP endpoints.
//
// # Wire shapes
//
// Unlike the rest of the API, these endpoints speak the RFC wire formats:
// form-encoded requests, bare JSON responses (no success envelope), and
// {"error", "error_description"} failures per RFC 6749 §5.2. The authorize
// endpoint answers with redirects, not JSON.
type Handler struct {
	oauthService *Service
	logger       *slog.Logger
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{oauthService: service, logger: logger}
}

// Routes returns a [chi.Router] configured with the OAuth endpoints.
//
// # Endpoints
//   - GET  /authorize  : Authorization-code entry point (PKCE).
//   - POST /token      : Code exchange and refresh grant.
//   - POST /revoke     : RFC 7009 token revocation.
//   - POST /introspect : RFC 7662 token introspection.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/authorize", handler.authorize)
	router.Post("/token", handler.token)
	router.Post("/revoke", handler.revoke)
	router.Post("/introspect", handler.introspect)

	return router
}

// # Handlers

/*
authorize begins (or resumes) the authorization-code flow.

GET /oauth/authorize

Description: An invalid client/redirect pair answers 400 directly; every
later outcome is a 302 — back to the client with code+state or an RFC error,
or to the login page when no session is present.
*/
func (handler *Handler) authorize(writer http.ResponseWriter, request *http.Request) {
	principal := requestutil.Principal(request)
	query := request.URL.Query()

	var result *AuthorizeResult
	var err error

	if pendingID := query.Get("pending_id"); pendingID != "" {
		result, err = handler.oauthService.Resume(request.Context(), principal, pendingID)
	} else {
		result, err = handler.oauthService.Authorize(request.Context(), principal, AuthorizeRequest{
			ClientID:            query.Get("client_id"),
			RedirectURI:         query.Get("redirect_uri"),
			ResponseType:        query.Get("response_type"),
			Scope:               query.Get("scope"),
			State:               query.Get("state"),
			Nonce:               query.Get("nonce"),
			CodeChallenge:       query.Get("code_challenge"),
			CodeChallengeMethod: query.Get("code_challenge_method"),
		})
	}

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, result.RedirectURL, http.StatusFound)
}

/*
token exchanges a grant for a token pair.

POST /oauth/token

Description: Accepts grant_type=authorization_code (with PKCE verifier) and
grant_type=refresh_token. Client credentials arrive via Basic auth or form
fields.
*/
func (handler *Handler) token(writer http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		handler.writeError(writer, request, invalidRequest("Malformed form body"))
		return
	}

	clientID, clientSecret := clientCredentials(request)

	response, err := handler.oauthService.Exchange(request.Context(), TokenRequest{
		GrantType:    request.PostFormValue("grant_type"),
		Code:         request.PostFormValue("code"),
		RedirectURI:  request.PostFormValue("redirect_uri"),
		CodeVerifier: request.PostFormValue("code_verifier"),
		RefreshToken: request.PostFormValue("refresh_token"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		IPAddress:    requestutil.ClientIP(request),
		UserAgent:    request.UserAgent(),
	})
	if err != nil {
		handler.writeError(writer, request, err)
		return
	}

	// Token responses must never be cached (RFC 6749 §5.1).
	writer.Header().Set("Cache-Control", "no-store")
	writer.Header().Set("Pragma", "no-cache")
	respond.JSON(writer, http.StatusOK, response)
}

/*
revoke invalidates a presented token.

POST /oauth/revoke

Description: Always 200 once the client authenticates, whether or not the
token existed (RFC 7009 §2.2).
*/
func (handler *Handler) revoke(writer http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		handler.writeError(writer, request, invalidRequest("Malformed form body"))
		return
	}

	clientID, clientSecret := clientCredentials(request)

	err := handler.oauthService.Revoke(request.Context(), RevokeRequest{
		Token:         request.PostFormValue("token"),
		TokenTypeHint: request.PostFormValue("token_type_hint"),
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		IPAddress:     requestutil.ClientIP(request),
	})
	if err != nil {
		handler.writeError(writer, request, err)
		return
	}

	writer.WriteHeader(http.StatusOK)
}

/*
introspect reports a token's liveness and claims.

POST /oauth/introspect

Description: Confidential clients only. Inactive or unknown tokens answer
{"active": false} with no further detail (RFC 7662 §2.2).
*/
func (handler *Handler) introspect(writer http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		handler.writeError(writer, request, invalidRequest("Malformed form body"))
		return
	}

	clientID, clientSecret := clientCredentials(request)

	response, err := handler.oauthService.Introspect(request.Context(), IntrospectRequest{
		Token:         request.PostFormValue("token"),
		TokenTypeHint: request.PostFormValue("token_type_hint"),
		ClientID:      clientID,
		ClientSecret:  clientSecret,
	})
	if err != nil {
		handler.writeError(writer, request, err)
		return
	}

	respond.JSON(writer, http.StatusOK, response)
}

/*
Metadata serves the RFC 8414 discovery document.

GET /.well-known/oauth-authorization-server
*/
func (handler *Handler) Metadata(writer http.ResponseWriter, request *http.Request) {
	respond.JSON(writer, http.StatusOK, handler.oauthService.Metadata())
}

// # Wire Helpers

// protocolErrorBody is the RFC 6749 §5.2 error shape.
type protocolErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeError renders a *ProtocolError at its RFC status; anything else is
// logged and collapsed into an opaque server_error.
func (handler *Handler) writeError(writer http.ResponseWriter, request *http.Request, err error) {
	var protocolError *ProtocolError
	if errors.As(err, &protocolError) {
		if protocolError.Code == ErrorInvalidClient {
			writer.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
		}
		respond.JSON(writer, protocolError.Status, protocolErrorBody{
			Error:            protocolError.Code,
			ErrorDescription: protocolError.Description,
		})
		return
	}

	handler.logger.ErrorContext(request.Context(), "oauth_endpoint_failed",
		slog.String("error", err.Error()),
	)
	respond.JSON(writer, http.StatusInternalServerError, protocolErrorBody{Error: ErrorServerError})
}

// clientCredentials flattens client authentication: the Basic header wins
// over form fields (RFC 6749 §2.3.1).
func clientCredentials(request *http.Request) (string, string) {
	if id, secret, ok := request.BasicAuth(); ok {
		return id, secret
	}
	return request.PostFormValue("client_id"), request.PostFormValue("client_secret")
}
