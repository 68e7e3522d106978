package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/labtwin-backend/internal/platform/envutil"
)

const (
	defaultLocalModel     = "qwen3:4b"
	defaultCloudModel     = "gemini-2.0-flash"
	defaultQueueThreshold = 3
	defaultRateLimit      = 60
)

var defaultFallbackModels = []string{"gemini-1.5-flash", "gemini-1.5-flash-8b"}

func defaultConfig() *Config {
	return &Config{
		Local: LocalConfig{
			Model:          defaultLocalModel,
			Timeout:        60 * time.Second,
			QueueThreshold: defaultQueueThreshold,
		},
		Cloud: CloudConfig{
			Model:          defaultCloudModel,
			Timeout:        30 * time.Second,
			FallbackModels: defaultFallbackModels,
			RateLimit:      defaultRateLimit,
			RateWindow:     60 * time.Second,
		},
		HealthInterval: 30 * time.Second,
	}
}

// Load reads provider settings from the environment. A missing
// LOCAL_LLM_URL disables the local provider and a missing CLOUD_LLM_API_KEY
// disables the cloud one; neither is an error here.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfg.Local.URL = strings.TrimRight(envutil.String("LOCAL_LLM_URL", ""), "/")
	cfg.Local.Model = envutil.String("LOCAL_LLM_MODEL", cfg.Local.Model)
	cfg.Local.Timeout = envutil.Seconds("LOCAL_LLM_TIMEOUT", cfg.Local.Timeout)
	cfg.Local.QueueThreshold = envutil.Int("LOCAL_LLM_QUEUE_THRESHOLD", cfg.Local.QueueThreshold)

	cfg.Cloud.APIKey = envutil.String("CLOUD_LLM_API_KEY", "")
	cfg.Cloud.Model = envutil.String("CLOUD_LLM_MODEL", cfg.Cloud.Model)
	cfg.Cloud.BaseURL = strings.TrimRight(envutil.String("CLOUD_LLM_BASE_URL", ""), "/")
	cfg.Cloud.Timeout = envutil.Seconds("CLOUD_LLM_TIMEOUT", cfg.Cloud.Timeout)
	cfg.Cloud.FallbackModels = envutil.List("CLOUD_LLM_FALLBACK_MODELS", cfg.Cloud.FallbackModels)
	cfg.Cloud.RateLimit = envutil.Int("CLOUD_LLM_RATE_LIMIT", cfg.Cloud.RateLimit)

	cfg.HealthInterval = envutil.Seconds("LLM_HEALTH_INTERVAL", cfg.HealthInterval)
	cfg.Mock = envutil.Bool("LLM_MOCK", false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Local.URL != "" && !strings.HasPrefix(c.Local.URL, "http://") && !strings.HasPrefix(c.Local.URL, "https://") {
		return fmt.Errorf("LOCAL_LLM_URL must be an http(s) URL, got %q", c.Local.URL)
	}
	if c.Cloud.BaseURL != "" && !strings.HasPrefix(c.Cloud.BaseURL, "https://") && !strings.HasPrefix(c.Cloud.BaseURL, "http://") {
		return fmt.Errorf("CLOUD_LLM_BASE_URL must be an http(s) URL, got %q", c.Cloud.BaseURL)
	}
	if c.Local.QueueThreshold < 1 {
		return fmt.Errorf("LOCAL_LLM_QUEUE_THRESHOLD must be >= 1, got %d", c.Local.QueueThreshold)
	}
	if c.Cloud.RateLimit < 1 {
		return fmt.Errorf("CLOUD_LLM_RATE_LIMIT must be >= 1, got %d", c.Cloud.RateLimit)
	}
	if strings.TrimSpace(c.Local.Model) == "" {
		return fmt.Errorf("LOCAL_LLM_MODEL must not be blank")
	}
	return nil
}
