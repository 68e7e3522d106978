package config

import "time"

type LocalConfig struct {
	URL            string
	Model          string
	Timeout        time.Duration
	QueueThreshold int
}

type CloudConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// FallbackModels are tried after Model when the local provider fails.
	FallbackModels []string
	RateLimit      int
	RateWindow     time.Duration
}

type Config struct {
	Local          LocalConfig
	Cloud          CloudConfig
	HealthInterval time.Duration
	// Mock swaps both providers for scripted in-process adapters.
	Mock bool
}

// CascadeModels is the ordered cloud model list used on local failure.
func (c CloudConfig) CascadeModels() []string {
	out := make([]string, 0, 1+len(c.FallbackModels))
	seen := map[string]bool{}
	for _, m := range append([]string{c.Model}, c.FallbackModels...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
