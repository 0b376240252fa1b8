// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package session

import "time"

// # Session Policy Defaults

const (
	// AccessTokenTTL is the duration a JWT access token remains valid.
	// We keep it short (15m) to minimize the impact of a leaked token.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the duration a refresh token remains valid when
	// it is never rotated. Rotation issues a successor with a fresh TTL.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// SlidingWindow is how far a session's expiry is pushed forward on each
	// successful rotation.
	SlidingWindow = 7 * 24 * time.Hour

	// RememberMeSlidingWindow replaces SlidingWindow for remember-me logins.
	RememberMeSlidingWindow = 30 * 24 * time.Hour

	// AbsoluteSessionLifetime caps a session's total age. The cap is fixed
	// at creation and never extended by rotation.
	AbsoluteSessionLifetime = 60 * 24 * time.Hour

	// DefaultReuseGrace is the window after a refresh token's revocation in
	// which re-presenting it is treated as a benign client retry rather
	// than credential reuse. Tunable via REFRESH_REUSE_GRACE. This is a
	// policy knob, not a security boundary: the retry never obtains a
	// token either way.
	DefaultReuseGrace = 10 * time.Second
)
