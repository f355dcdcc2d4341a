// internal/config/config_test.go
package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSealKey = "000102030405060708090a0b0c0d0e0f000102030405060708090a0b0c0d0e0f"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_URL", "postgres://localhost:5432/commitsync")
	t.Setenv("SEAL_KEY", testSealKey)
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults apply", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, 5, cfg.PullConcurrency)
		assert.Equal(t, 1000, cfg.MaxBatchSize)
		assert.Equal(t, 20, cfg.RateLimitBurst)
	})

	t.Run("seal key decodes to 32 bytes", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, byte(0x00), cfg.SealKey[0])
		assert.Equal(t, byte(0x0f), cfg.SealKey[31])
	})

	t.Run("missing DB_URL fails", func(t *testing.T) {
		t.Setenv("DB_URL", "")
		t.Setenv("SEAL_KEY", testSealKey)

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_URL")
	})

	t.Run("missing SEAL_KEY fails", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://localhost:5432/commitsync")
		t.Setenv("SEAL_KEY", "")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SEAL_KEY")
	})

	t.Run("short seal key fails", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://localhost:5432/commitsync")
		t.Setenv("SEAL_KEY", "abcd1234")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "64 hex characters")
	})

	t.Run("zero PULL_MAX_ATTEMPTS fails", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PULL_MAX_ATTEMPTS", "0")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PULL_MAX_ATTEMPTS")
	})

	t.Run("non-hex seal key fails", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://localhost:5432/commitsync")
		t.Setenv("SEAL_KEY", strings.Repeat("zz", 32))

		_, err := LoadConfig()
		assert.Error(t, err)
	})
}
