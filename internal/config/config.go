// Package config loads application configuration: an optional TOML file,
// then LINKBIO_* environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Default configuration values used when neither the file nor the
// environment sets a field.
const (
	DefaultConfigPath        = "linkbio.toml"
	DefaultPort              = 8080
	DefaultDBDriver          = DriverSQLite
	DefaultDBPath            = "data/linkbio.db"
	DefaultTokenTTL          = "24h"
	DefaultRateLimitRPS      = 5.0
	DefaultRateLimitBurst    = 10
	DefaultMaxUsernameProbes = 1000

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	minJWTSecretLength = 16
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	Database  DatabaseConfig  `toml:"database"`
	Auth      AuthConfig      `toml:"auth"`
	GitHub    OAuthConfig     `toml:"github" envPrefix:"LINKBIO_GITHUB_"`
	Google    OAuthConfig     `toml:"google" envPrefix:"LINKBIO_GOOGLE_"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Directory DirectoryConfig `toml:"directory"`
}

// ServerConfig holds the listen port and the public base URL used to build
// OAuth callback URLs.
type ServerConfig struct {
	Port    int    `toml:"port" env:"LINKBIO_PORT"`
	BaseURL string `toml:"base_url" env:"LINKBIO_BASE_URL"`
}

// LogConfig holds logging level (debug|info|warn|error) and format (text|json).
type LogConfig struct {
	Level  string `toml:"level" env:"LINKBIO_LOG_LEVEL"`
	Format string `toml:"format" env:"LINKBIO_LOG_FORMAT"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver      string `toml:"driver" env:"LINKBIO_DB_DRIVER"`
	Path        string `toml:"path" env:"LINKBIO_DB_PATH"`
	PostgresDSN string `toml:"postgres_dsn" env:"LINKBIO_POSTGRES_DSN"`
}

// AuthConfig holds the session token settings. An empty secret disables
// sign-in and the owner API.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret" env:"LINKBIO_JWT_SECRET"`
	TokenTTL  string `toml:"token_ttl" env:"LINKBIO_TOKEN_TTL"`
}

// TTL parses TokenTTL. Call Validate first.
func (c AuthConfig) TTL() time.Duration {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil {
		return 0
	}
	return d
}

// Enabled reports whether sessions can be issued.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

// OAuthConfig holds one identity provider's client. The provider is only
// offered when ClientID is set.
type OAuthConfig struct {
	ClientID     string `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"CLIENT_SECRET"`
	CallbackURL  string `toml:"callback_url" env:"CALLBACK_URL"`
}

// Enabled reports whether the provider is configured.
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != ""
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	RPS   float64 `toml:"rps" env:"LINKBIO_RATE_LIMIT_RPS"`
	Burst int     `toml:"burst" env:"LINKBIO_RATE_LIMIT_BURST"`
}

// DirectoryConfig tunes the username registry.
type DirectoryConfig struct {
	MaxUsernameProbes int `toml:"max_username_probes" env:"LINKBIO_MAX_USERNAME_PROBES"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server:    ServerConfig{Port: DefaultPort},
		Log:       LogConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{Driver: DefaultDBDriver, Path: DefaultDBPath},
		Auth:      AuthConfig{TokenTTL: DefaultTokenTTL},
		RateLimit: RateLimitConfig{RPS: DefaultRateLimitRPS, Burst: DefaultRateLimitBurst},
		Directory: DirectoryConfig{MaxUsernameProbes: DefaultMaxUsernameProbes},
	}
}

// Load reads the TOML file at path (missing files are skipped), applies
// environment overrides and validates the result. An empty path means
// DefaultConfigPath.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config: decoding %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse env: %w", err)
	}

	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyDerived fills the OAuth callback URLs from the base URL.
func (c *Config) applyDerived() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	base := strings.TrimRight(c.Server.BaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.GitHub.CallbackURL == "" {
		c.GitHub.CallbackURL = base + "/auth/github/callback"
	}
	if c.Google.CallbackURL == "" {
		c.Google.CallbackURL = base + "/auth/google/callback"
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.PostgresDSN == "" {
			errs = append(errs, errors.New("database.postgres_dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of sqlite, postgres", c.Database.Driver))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least %d characters", minJWTSecretLength))
	}
	if d, err := time.ParseDuration(c.Auth.TokenTTL); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl %q is not a positive duration", c.Auth.TokenTTL))
	}
	if c.GitHub.Enabled() && c.GitHub.ClientSecret == "" {
		errs = append(errs, errors.New("github.client_secret is required when client_id is set"))
	}
	if c.Google.Enabled() && c.Google.ClientSecret == "" {
		errs = append(errs, errors.New("google.client_secret is required when client_id is set"))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if c.Directory.MaxUsernameProbes <= 0 {
		errs = append(errs, errors.New("directory.max_username_probes must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
