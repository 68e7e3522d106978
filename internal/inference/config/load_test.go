package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"LOCAL_LLM_URL", "CLOUD_LLM_API_KEY", "CLOUD_LLM_FALLBACK_MODELS", "LOCAL_LLM_TIMEOUT", "CLOUD_LLM_TIMEOUT"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Local.URL)
	assert.Equal(t, 60*time.Second, cfg.Local.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Cloud.Timeout)
	assert.Equal(t, 3, cfg.Local.QueueThreshold)
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-flash-8b"}, cfg.Cloud.CascadeModels())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOCAL_LLM_URL", "http://localhost:11434/")
	t.Setenv("LOCAL_LLM_TIMEOUT", "90")
	t.Setenv("CLOUD_LLM_API_KEY", "k")
	t.Setenv("CLOUD_LLM_MODEL", "gemini-1.5-pro")
	t.Setenv("CLOUD_LLM_FALLBACK_MODELS", "gemini-1.5-pro, gemini-2.0-flash")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", cfg.Local.URL)
	assert.Equal(t, 90*time.Second, cfg.Local.Timeout)
	assert.Equal(t, []string{"gemini-1.5-pro", "gemini-2.0-flash"}, cfg.Cloud.CascadeModels())
}

func TestLoadRejectsBadURL(t *testing.T) {
	t.Setenv("LOCAL_LLM_URL", "localhost:11434")
	_, err := Load()
	require.Error(t, err)
}
