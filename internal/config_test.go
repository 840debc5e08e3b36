package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("AI_PROVIDER", "mock")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.AnalysisModel)
	assert.Equal(t, "gemini-2.5-flash-image-preview", cfg.GenerationModel)
	assert.Equal(t, "local", cfg.StorageProvider)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "http://localhost:8080/files", cfg.LocalStorageURL,
		"local archive URL must default to the app serving /files")
}

func TestNewConfig_GeminiRequiresAPIKey(t *testing.T) {
	t.Setenv("AI_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	t.Setenv("GEMINI_API_KEY", "test-key")
	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.GeminiAPIKey)
}

func TestNewConfig_RejectsUnknownProviders(t *testing.T) {
	t.Setenv("AI_PROVIDER", "watercolor")
	_, err := NewConfig()
	assert.Error(t, err)

	t.Setenv("AI_PROVIDER", "mock")
	t.Setenv("STORAGE_PROVIDER", "dropbox")
	_, err = NewConfig()
	assert.Error(t, err)
}

func TestNewConfig_R2RequiresCredentials(t *testing.T) {
	t.Setenv("AI_PROVIDER", "mock")
	t.Setenv("STORAGE_PROVIDER", "r2")

	_, err := NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "R2_ACCOUNT_ID")

	t.Setenv("R2_ACCOUNT_ID", "acct")
	t.Setenv("R2_ACCESS_KEY_ID", "key")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("R2_BUCKET_NAME", "posters")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "posters", cfg.R2BucketName)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PF_TEST_STR", "value")
	assert.Equal(t, "value", getEnv("PF_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("PF_TEST_MISSING", "fallback"))

	t.Setenv("PF_TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("PF_TEST_INT", 7))
	t.Setenv("PF_TEST_INT", "not a number")
	assert.Equal(t, 7, getEnvInt("PF_TEST_INT", 7))

	t.Setenv("PF_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("PF_TEST_DUR", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("PF_TEST_DUR_MISSING", time.Minute))
}
