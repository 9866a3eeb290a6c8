package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AUTH_PROJECT_ID", "haeso-test")
	t.Setenv("AUTH_CLIENT_EMAIL", "service-account@haeso-test")
	t.Setenv("AUTH_PRIVATE_KEY", "test-signing-key")
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply when optional settings are unset", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "5801", cfg.Port)
		require.Equal(t, "./haeso.db", cfg.DatabasePath)
		require.Equal(t, "./migrations", cfg.MigrationsPath)
		require.Empty(t, cfg.RedisURL)
	})

	t.Run("explicit settings win over defaults", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "8080")
		t.Setenv("REDIS_URL", "redis://localhost:6379/0")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "8080", cfg.Port)
		require.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	})

	t.Run("escaped newlines in the private key are unescaped", func(t *testing.T) {
		setRequired(t)
		t.Setenv("AUTH_PRIVATE_KEY", `line1\nline2`)

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "line1\nline2", cfg.AuthPrivateKey)
	})

	t.Run("missing required settings are reported together", func(t *testing.T) {
		setRequired(t)
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("AUTH_PROJECT_ID", "")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "OPENAI_API_KEY")
		require.Contains(t, err.Error(), "AUTH_PROJECT_ID")
	})
}
