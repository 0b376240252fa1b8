// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/constants"
)

// RedisPendingRepository implements PendingRepository using Redis. Entries
// expire through the key TTL, so an abandoned login never leaves residue.
type RedisPendingRepository struct {
	client *redis.Client
}

// NewPendingRepository creates a new Redis-backed PendingRepository.
func NewPendingRepository(client *redis.Client) *RedisPendingRepository {
	return &RedisPendingRepository{client: client}
}

/*
Put stores a pending authorization under an opaque id with a TTL.

Parameters:
  - context: context.Context
  - id: string
  - pending: *PendingAuthorization
  - ttl: time.Duration

Returns:
  - error: Serialization or storage failures
*/
func (repository *RedisPendingRepository) Put(context context.Context, id string, pending *PendingAuthorization, ttl time.Duration) error {

	// Use constants for key prefix
	key := fmt.Sprintf("%s%s", constants.RedisPrefixPendingAuth, id)

	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("redis_pending_auth_marshal_failed: %w", err)
	}

	// Set the record with TTL
	if err := repository.client.Set(context, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_pending_auth_set_failed: %w", err)
	}

	// Return nil on success
	return nil
}

/*
Take retrieves and deletes a pending authorization.

Description: Returns apperr.NotFound if the id is absent or expired. The
delete makes every stash single-resume; a replayed pending id cannot mint a
second code.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *PendingAuthorization: The stashed authorize request
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisPendingRepository) Take(context context.Context, id string) (*PendingAuthorization, error) {

	// Use constants for key prefix
	key := fmt.Sprintf("%s%s", constants.RedisPrefixPendingAuth, id)

	// Get the record from Redis
	payload, err := repository.client.Get(context, key).Result()

	// Handle errors
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFound("Pending authorization is invalid or expired")
		}
		return nil, fmt.Errorf("redis_pending_auth_get_failed: %w", err)
	}

	pending := &PendingAuthorization{}
	if err := json.Unmarshal([]byte(payload), pending); err != nil {
		return nil, fmt.Errorf("redis_pending_auth_unmarshal_failed: %w", err)
	}

	// Delete the record so the stash resumes at most once
	if err := repository.client.Del(context, key).Err(); err != nil {
		return nil, fmt.Errorf("redis_pending_auth_delete_failed: %w", err)
	}

	// Return the pending authorization
	return pending, nil
}
