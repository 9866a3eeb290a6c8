// Package config loads the service configuration from the environment.
package config

import (
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Upstream LLM/speech credential.
	OpenAIAPIKey string

	// Persistence. RedisURL, when set, replaces the SQLite store.
	DatabasePath   string
	MigrationsPath string
	RedisURL       string

	// Platform bridge.
	KakaoAppKey string

	// Identity-provider server credential set, used to sign and verify
	// custom tokens.
	AuthProjectID   string
	AuthClientEmail string
	AuthPrivateKey  string

	// JWKS endpoint for federated ID tokens. Overridable in tests.
	GoogleCertsURL string
}

// Load reads the environment (and a .env file when present) and validates
// the required settings, aggregating everything that is missing.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "5801"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		DatabasePath:    getEnv("DATABASE_PATH", "./haeso.db"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KakaoAppKey:     os.Getenv("KAKAO_APP_KEY"),
		AuthProjectID:   os.Getenv("AUTH_PROJECT_ID"),
		AuthClientEmail: os.Getenv("AUTH_CLIENT_EMAIL"),
		AuthPrivateKey:  strings.ReplaceAll(os.Getenv("AUTH_PRIVATE_KEY"), `\n`, "\n"),
		GoogleCertsURL:  os.Getenv("GOOGLE_CERTS_URL"),
	}

	var errs *multierror.Error
	if cfg.OpenAIAPIKey == "" {
		errs = multierror.Append(errs, missing("OPENAI_API_KEY"))
	}
	if cfg.AuthProjectID == "" {
		errs = multierror.Append(errs, missing("AUTH_PROJECT_ID"))
	}
	if cfg.AuthClientEmail == "" {
		errs = multierror.Append(errs, missing("AUTH_CLIENT_EMAIL"))
	}
	if cfg.AuthPrivateKey == "" {
		errs = multierror.Append(errs, missing("AUTH_PRIVATE_KEY"))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type missingError string

func missing(name string) error { return missingError(name) }

func (e missingError) Error() string {
	return string(e) + " environment variable is required"
}

func getEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
