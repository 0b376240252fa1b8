// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package sso_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superbasicman/superbasic/internal/auth/sso"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return server, client
}

func TestRedisReplayGuard_FirstClaimWins(t *testing.T) {
	_, client := newTestRedis(t)
	guard := sso.NewReplayGuard(client)

	claimed, err := guard.Register(context.Background(), "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = guard.Register(context.Background(), "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed, "a redelivered event id must not claim again")
}

func TestRedisReplayGuard_SeparateEventsAreIndependent(t *testing.T) {
	_, client := newTestRedis(t)
	guard := sso.NewReplayGuard(client)

	claimed, err := guard.Register(context.Background(), "evt-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = guard.Register(context.Background(), "evt-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisReplayGuard_ClaimLapsesWithTTL(t *testing.T) {
	server, client := newTestRedis(t)
	guard := sso.NewReplayGuard(client)

	claimed, err := guard.Register(context.Background(), "evt-2", time.Second)
	require.NoError(t, err)
	require.True(t, claimed)

	server.FastForward(2 * time.Second)

	claimed, err = guard.Register(context.Background(), "evt-2", time.Second)
	require.NoError(t, err)
	assert.True(t, claimed, "an expired claim is forgotten; replaying then is harmless")
}
