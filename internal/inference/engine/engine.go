package engine

import (
	"context"
	"time"
)

const (
	ProviderLocal = "local"
	ProviderCloud = "cloud"

	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Options struct {
	Temperature float64
	MaxTokens   int
	// Model overrides the adapter's configured model for one call.
	Model string
}

type Tokens struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

type Completion struct {
	Content       string
	Model         string
	Tokens        Tokens
	ResponseTime  time.Duration
	EstimatedCost float64
}

type Health struct {
	Available bool     `json:"available"`
	Models    []string `json:"models,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type RateLimitStatus struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// Adapter is a uniform interface over one LLM backend.
type Adapter interface {
	Name() string
	IsConfigured() bool
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
	// Stream calls onChunk for every content delta and returns the full
	// completion once the upstream closes the stream.
	Stream(ctx context.Context, messages []Message, onChunk func(chunk string), opts Options) (*Completion, error)
	Health(ctx context.Context) Health
}

// RateLimited is implemented by adapters that enforce a request window.
type RateLimited interface {
	RateLimitStatus() RateLimitStatus
}

// Queued is implemented by adapters that serialize requests locally.
type Queued interface {
	QueueLength() int
	LastSeenAvailable() bool
}
