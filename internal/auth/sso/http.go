// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package sso

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/constants"
	requestutil "github.com/superbasicman/superbasic/internal/platform/request"
	"github.com/superbasicman/superbasic/internal/platform/respond"
	"github.com/superbasicman/superbasic/internal/platform/validate"
)

// # Handler Implementation

// Handler implements the back-channel logout webhook.
type Handler struct {
	service *Service
	secret  string
}

// NewHandler constructs a new webhook [Handler]. The secret authenticates
// the IdP; an empty secret disables the endpoint entirely.
func NewHandler(service *Service, webhookSecret string) *Handler {
	return &Handler{service: service, secret: webhookSecret}
}

// Routes returns a [chi.Router] for the /v1/auth/sso surface.
//
// # Endpoints
//   - POST /logout : IdP back-channel logout webhook.
//
// The webhook authenticates through a shared secret header, not through the
// resolver: the caller is a machine, not a user.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/logout", handler.logout)

	return router
}

// # Request Payloads

type logoutRequest struct {
	Provider   string   `json:"provider"`
	Subject    string   `json:"subject"`
	EventID    string   `json:"event_id"`
	SessionIDs []string `json:"session_ids,omitempty"`
}

// # Endpoints

/*
Logout executes one IdP-initiated back-channel logout.

POST /v1/auth/sso/logout

Description: Requires the shared webhook secret in X-Webhook-Secret. The
response reports counts only; session identifiers stay internal. A 5xx
answer tells the IdP to redeliver, which is safe because execution is
idempotent and replay-guarded.

Request:
  - Body: logoutRequest (provider, subject, event_id, session_ids?)

Response:
  - 200: Revocation counts and the replay flag
  - 400: ErrInvalidJSON or missing provider/subject
  - 401: ErrUnauthorized: Secret missing or wrong
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if !handler.authorized(request) {
		respond.Error(writer, request, apperr.Unauthorized("Invalid webhook credentials"))
		return
	}

	var input logoutRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required("provider", input.Provider).Required("subject", input.Subject)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.HandleLogout(request.Context(), LogoutInput{
		Provider:   input.Provider,
		Subject:    input.Subject,
		EventID:    input.EventID,
		SessionIDs: input.SessionIDs,
		IPAddress:  requestutil.ClientIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"revoked_users":    len(result.UserIDs),
		"revoked_sessions": len(result.SessionIDs),
		"replayed":         result.Replayed,
	})
}

// authorized checks the shared secret in constant time. An unset secret
// fails closed.
func (handler *Handler) authorized(request *http.Request) bool {
	if handler.secret == "" {
		return false
	}
	presented := request.Header.Get(constants.SSOWebhookHeader)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(handler.secret)) == 1
}
