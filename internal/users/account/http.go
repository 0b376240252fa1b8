// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package account provides the HTTP delivery layer for profile management.

# Security

All endpoints in this package require an authenticated principal provided by
the Authenticate middleware.
*/
package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	requestutil "github.com/superbasicman/superbasic/internal/platform/request"
	"github.com/superbasicman/superbasic/internal/platform/respond"
	"github.com/superbasicman/superbasic/internal/platform/validate"
)

// Handler implements the HTTP layer for account management.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the account domain's endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Caller profile
	router.Get("/me", handler.getMe)
	router.Patch("/me", handler.updateMe)

	return router
}

// # Profile Endpoints

/*
GET /v1/me.

Description: Retrieves the full private profile of the authenticated caller.

Response:
  - 200: Account: Fully hydrated profile
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	acct, err := handler.accountService.Get(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, acct)
}

// updateMeRequest defines the expected JSON payload for profile updates.
type updateMeRequest struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Bio         *string `json:"bio"`
}

/*
PATCH /v1/me.

Description: Applies partial updates to the authenticated caller's profile.

Request:
  - body: updateMeRequest (Partial JSON)

Response:
  - 200: Account: The updated profile
  - 400: ErrInvalidJSON/Validation: Invalid input data
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) updateMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateMeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	if input.DisplayName != nil {
		v.MinLen(FieldDisplayName, *input.DisplayName, 2).MaxLen(FieldDisplayName, *input.DisplayName, MaxDisplayNameLen)
	}
	if input.Bio != nil {
		v.MaxLen(FieldBio, *input.Bio, MaxBioLen)
	}
	if input.AvatarURL != nil && *input.AvatarURL != "" {
		v.URL(FieldAvatarURL, *input.AvatarURL).MaxLen(FieldAvatarURL, *input.AvatarURL, MaxAvatarURLLen)
	}

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	acct, err := handler.accountService.UpdateProfile(request.Context(), userID, UpdateProfileInput{
		DisplayName: input.DisplayName,
		AvatarURL:   input.AvatarURL,
		Bio:         input.Bio,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, acct)
}
