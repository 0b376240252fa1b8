// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package pat

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/middleware"
	requestutil "github.com/superbasicman/superbasic/internal/platform/request"
	"github.com/superbasicman/superbasic/internal/platform/respond"
	"github.com/superbasicman/superbasic/internal/platform/validate"
)

// # Handler Implementation

// Handler implements the HTTP layer for personal access token management.
type Handler struct {
	service *Service
}

// NewHandler constructs a new token [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns a [chi.Router] for the /v1/tokens surface.
//
// # Endpoints
//   - GET    /     : List the caller's tokens.
//   - POST   /     : Mint a token (step-up required).
//   - PATCH  /{id} : Rename a token (step-up required).
//   - DELETE /{id} : Revoke a token.
//
// Every route requires an interactive session: a delegated credential must
// never manage credentials.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequireAuth)
	router.Use(requireSessionPrincipal)

	router.Get("/", handler.listTokens)
	router.Delete("/{id}", handler.revokeToken)

	// Step-up protected mutations.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireRecentAuth(authz.DefaultStepUpWindow, authz.MFALevelNone))
		r.Post("/", handler.mintToken)
		r.Patch("/{id}", handler.renameToken)
	})

	return router
}

// requireSessionPrincipal rejects token principals. Deny is the default:
// only an explicit interactive session passes.
func requireSessionPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		principal, err := requestutil.RequiredPrincipal(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		if principal.Kind != authz.KindSession {
			respond.Error(writer, request, apperr.Forbidden("Token management requires an interactive session"))
			return
		}

		next.ServeHTTP(writer, request)
	})
}

// # Request Payloads

type mintTokenRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type renameTokenRequest struct {
	Name string `json:"name"`
}

// # Endpoints

/*
ListTokens returns the caller's personal access tokens.

GET /api/v1/tokens

Response:
  - 200: []PersonalToken: Metadata with last4 hints, never hashes
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) listTokens(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	tokens, err := handler.service.List(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, tokens)
}

/*
MintToken creates a new personal access token.

POST /api/v1/tokens

Description: The raw token value appears in this response exactly once and
can never be retrieved again.

Request:
  - Body: mintTokenRequest (Name, Scopes, ExpiresAt?)

Response:
  - 201: MintedToken: Metadata plus the raw value
  - 400: ErrInvalidJSON: Bad input or no valid scopes
  - 401: STEP_UP_REQUIRED: Recent authentication required
*/
func (handler *Handler) mintToken(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input mintTokenRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	minted, err := handler.service.Mint(request.Context(), MintInput{
		UserID:    userID,
		Name:      input.Name,
		Scopes:    input.Scopes,
		ExpiresAt: input.ExpiresAt,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, minted)
}

/*
RenameToken updates a token's display name.

PATCH /api/v1/tokens/{id}

Request:
  - Body: renameTokenRequest (Name)

Response:
  - 200: Success message
  - 404: ErrNotFound: Token missing, foreign, or revoked
  - 401: STEP_UP_REQUIRED: Recent authentication required
*/
func (handler *Handler) renameToken(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input renameTokenRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	tokenID := requestutil.ID(request, "id")
	if err := handler.service.Rename(request.Context(), userID, tokenID, input.Name); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{"message": "Token renamed"})
}

/*
RevokeToken revokes a personal access token.

DELETE /api/v1/tokens/{id}

Description: Idempotent; the response does not reveal whether the id existed.

Response:
  - 204: No Content
*/
func (handler *Handler) revokeToken(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	tokenID := requestutil.ID(request, "id")
	if err := handler.service.Revoke(request.Context(), userID, tokenID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
