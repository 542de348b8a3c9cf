package config

import (
	"os"
	"time"
)

// CoercionPolicy controls how attribute value coercion failures are handled.
type CoercionPolicy string

const (
	// CoercionLenient stores null when a raw value fails to parse.
	CoercionLenient CoercionPolicy = "lenient"
	// CoercionStrict rejects the write with a validation error instead.
	CoercionStrict CoercionPolicy = "strict"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	MetricsAddr string

	// PostgresDSN selects the persistence backend. Empty means in-memory
	// stores, which is the mode used by most tests and local development.
	PostgresDSN string

	// RedisAddr enables the schema resolution cache when non-empty.
	RedisAddr      string
	SchemaCacheTTL time.Duration

	JWTSigningKey string

	Coercion CoercionPolicy
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:           getenv("IDENTITYSHELF_ADDR", ":8080"),
		MetricsAddr:    getenv("IDENTITYSHELF_METRICS_ADDR", ":9090"),
		PostgresDSN:    os.Getenv("IDENTITYSHELF_POSTGRES_DSN"),
		RedisAddr:      os.Getenv("IDENTITYSHELF_REDIS_ADDR"),
		SchemaCacheTTL: 5 * time.Minute,
		// Use a default for development - should be overridden in production
		JWTSigningKey: getenv("IDENTITYSHELF_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Coercion:      CoercionLenient,
	}

	if ttl := os.Getenv("IDENTITYSHELF_SCHEMA_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.SchemaCacheTTL = d
		}
	}
	if os.Getenv("IDENTITYSHELF_STRICT_COERCION") == "true" {
		cfg.Coercion = CoercionStrict
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
