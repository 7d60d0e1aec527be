// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the CampusCore API configuration. Variables are read from
// the CAMPUSCORE_ prefix, e.g. CAMPUSCORE_HTTP_PORT.
type Config struct {
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// PostgresDSN points at the identity database. Empty disables the
	// readiness DB ping and is only acceptable for local smoke runs.
	PostgresDSN string `envconfig:"PG_DSN" default:""`

	AuthSecret     string        `envconfig:"AUTH_SECRET" default:""`
	TokenIssuer    string        `envconfig:"TOKEN_ISSUER" default:"campuscore"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`

	BcryptCost int `envconfig:"BCRYPT_COST" default:"10"`

	AuditBuffer int `envconfig:"AUDIT_BUFFER" default:"256"`

	RateLimitPerSecond int `envconfig:"RATE_LIMIT_PER_SECOND" default:"20"`
	RateLimitBurst     int `envconfig:"RATE_LIMIT_BURST" default:"40"`

	MaxBodyBytes int64 `envconfig:"MAX_BODY_BYTES" default:"1048576"`
}

// Load reads and validates the configuration.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("CAMPUSCORE", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.AuthSecret == "" {
		return errors.New("config: CAMPUSCORE_AUTH_SECRET is required")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return errors.New("config: HTTP_PORT out of range")
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("config: ACCESS_TOKEN_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST out of range")
	}
	return nil
}
