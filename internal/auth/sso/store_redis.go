// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package sso

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/superbasicman/superbasic/internal/platform/constants"
)

// RedisReplayGuard implements ReplayGuard with a SETNX claim per event id.
// The TTL bounds how long redeliveries are recognized; after it lapses a
// duplicate would be processed again, which is safe because revocation is
// idempotent.
type RedisReplayGuard struct {
	client *redis.Client
}

// NewReplayGuard creates a new Redis-backed ReplayGuard.
func NewReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

/*
Register claims the logout event id.

Parameters:
  - context: context.Context
  - eventID: string
  - ttl: time.Duration

Returns:
  - bool: true when this call claimed the id first
  - error: Storage failures
*/
func (guard *RedisReplayGuard) Register(context context.Context, eventID string, ttl time.Duration) (bool, error) {

	// Use constants for key prefix
	key := fmt.Sprintf("%s%s", constants.RedisPrefixLogoutEvent, eventID)

	// SETNX returns false when the key already exists
	claimed, err := guard.client.SetNX(context, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis_logout_event_setnx_failed: %w", err)
	}

	return claimed, nil
}
