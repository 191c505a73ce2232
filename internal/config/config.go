package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Supported database providers.
const (
	ProviderSupabase = "supabase"
	ProviderPostgres = "postgres"
)

// Error reports a configuration problem detected at load time, before any
// network call is attempted. Missing connection parameters for the selected
// provider are never silently defaulted.
type Error struct {
	Provider string
	Missing  []string
	Reason   string
}

func (e *Error) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("config: provider %q requires %s", e.Provider, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("config: %s", e.Reason)
}

// Config holds the application's configuration values. The value returned by
// Load is treated as immutable after resolution.
type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Provider selects the active database backend.
	Provider string `envconfig:"DB_PROVIDER" default:"supabase"`

	// Raw-SQL provider credentials (a single connection string).
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Hosted provider credentials (URL + key pair).
	SupabaseURL string `envconfig:"SUPABASE_URL"`
	SupabaseKey string `envconfig:"SUPABASE_KEY"`

	QueryTimeout time.Duration `envconfig:"QUERY_TIMEOUT" default:"10s"`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	HTTPServer ServerConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// Load resolves the configuration from the process environment and validates
// that the selected provider has every connection parameter it needs. It
// returns a fresh value on every call so tests never share state.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Printf("INFO: Configuration loaded for APP_ENV: %s, provider: %s", cfg.AppEnv, cfg.Provider)
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderPostgres:
		if c.DatabaseURL == "" {
			return &Error{Provider: c.Provider, Missing: []string{"DATABASE_URL"}}
		}
	case ProviderSupabase:
		var missing []string
		if c.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.SupabaseKey == "" {
			missing = append(missing, "SUPABASE_KEY")
		}
		if len(missing) > 0 {
			return &Error{Provider: c.Provider, Missing: missing}
		}
	default:
		return &Error{Provider: c.Provider, Reason: fmt.Sprintf("unknown DB_PROVIDER %q (expected %q or %q)", c.Provider, ProviderSupabase, ProviderPostgres)}
	}
	return nil
}
