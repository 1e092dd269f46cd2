package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("SPECIES_TEST_VALUE", "hello")

	assert.Equal(t, "hello", GetEnv("SPECIES_TEST_VALUE", "default"))
	assert.Equal(t, "default", GetEnv("SPECIES_TEST_MISSING", "default"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("SPECIES_TEST_INT", "42")
	t.Setenv("SPECIES_TEST_BAD_INT", "forty-two")

	assert.Equal(t, 42, GetEnvInt("SPECIES_TEST_INT", 7))
	assert.Equal(t, 7, GetEnvInt("SPECIES_TEST_BAD_INT", 7))
	assert.Equal(t, 7, GetEnvInt("SPECIES_TEST_MISSING_INT", 7))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("SPECIES_TEST_TTL", "15m")
	t.Setenv("SPECIES_TEST_BAD_TTL", "soon")

	assert.Equal(t, 15*time.Minute, GetEnvDuration("SPECIES_TEST_TTL", time.Hour))
	assert.Equal(t, time.Hour, GetEnvDuration("SPECIES_TEST_BAD_TTL", time.Hour))
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SPECIES_TEST_FROM_FILE=yes\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SPECIES_TEST_FROM_FILE") })

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "yes", GetEnv("SPECIES_TEST_FROM_FILE", ""))

	assert.Error(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}
