// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Superbasic API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Issuer is the public base URL of this deployment. It is stamped
	// into every JWT as iss and anchors the OAuth discovery document.
	Issuer string `env:"ISSUER" envDefault:"http://localhost:8080"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// TokenHashKeys names the HMAC master keys sealing token secret
	// envelopes, formatted "kid:base64secret,kid2:base64secret". The first
	// entry seals new secrets; every entry verifies old ones, so rotation
	// is prepending a key, not rewriting rows.
	TokenHashKeys string `env:"TOKEN_HASH_KEYS,required"`

	// RSA key material for JWT signing (PEM files on disk)
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`
	JWTKeyID       string `env:"JWT_KEY_ID" envDefault:"primary"`

	// JWTRetiredKeys maps old kids to public key paths,
	// formatted "kid=path/to/public.pem,kid2=path2". Tokens signed under
	// a retired kid keep verifying until they expire.
	JWTRetiredKeys string `env:"JWT_RETIRED_KEYS"`

	// Credential lifetimes. The refresh reuse grace is the window after a
	// rotation in which re-presenting the old token is treated as a client
	// retry rather than theft.
	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL"    envDefault:"15m"`
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL"   envDefault:"720h"`
	RefreshReuseGrace time.Duration `env:"REFRESH_REUSE_GRACE" envDefault:"10s"`

	// SSOWebhookSecret authenticates the IdP's back-channel logout
	// webhook. An empty value disables the endpoint.
	SSOWebhookSecret string `env:"SSO_WEBHOOK_SECRET"`

	// AuditBuffer is the capacity of the audit recorder's event queue.
	AuditBuffer int `env:"AUDIT_BUFFER" envDefault:"256"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// AllowedExtraOrigins splits EXTRA_ORIGINS into individual origins for the
// CORS allowlist.
func (c *Config) AllowedExtraOrigins() []string {
	if c.ExtraOrigins == "" {
		return nil
	}

	parts := strings.Split(c.ExtraOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
