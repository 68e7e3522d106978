package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/labtwin-backend/internal/inference/engine"
)

// Call is one recorded invocation.
type Call struct {
	Messages []engine.Message
	Options  engine.Options
	Stream   bool
}

// Reply is a scripted outcome. A non-nil Err wins over Content.
type Reply struct {
	Content string
	Err     error
	Delay   time.Duration
}

// Adapter is a scripted engine.Adapter for tests and offline runs. Scripted
// replies are consumed in order; once exhausted it echoes the last user
// message.
type Adapter struct {
	mu sync.Mutex

	name       string
	model      string
	configured bool
	available  bool
	queue      int
	rate       *engine.RateLimitStatus
	tokens     engine.Tokens
	cost       float64

	script []Reply
	calls  []Call
}

func New(name string) *Adapter {
	return &Adapter{
		name:       name,
		model:      name + "-mock",
		configured: true,
		available:  true,
		tokens:     engine.Tokens{Prompt: 10, Completion: 5, Total: 15},
	}
}

// Reply appends scripted content replies.
func (a *Adapter) Reply(contents ...string) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range contents {
		a.script = append(a.script, Reply{Content: c})
	}
	return a
}

// Fail appends a scripted failure.
func (a *Adapter) Fail(err error) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.script = append(a.script, Reply{Err: err})
	return a
}

func (a *Adapter) Script(replies ...Reply) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.script = append(a.script, replies...)
	return a
}

func (a *Adapter) SetConfigured(v bool) { a.mu.Lock(); a.configured = v; a.mu.Unlock() }
func (a *Adapter) SetAvailable(v bool)  { a.mu.Lock(); a.available = v; a.mu.Unlock() }
func (a *Adapter) SetQueueLength(n int) { a.mu.Lock(); a.queue = n; a.mu.Unlock() }
func (a *Adapter) SetModel(m string)    { a.mu.Lock(); a.model = m; a.mu.Unlock() }
func (a *Adapter) SetCost(c float64)    { a.mu.Lock(); a.cost = c; a.mu.Unlock() }

func (a *Adapter) SetTokens(t engine.Tokens) { a.mu.Lock(); a.tokens = t; a.mu.Unlock() }

func (a *Adapter) SetRateLimit(st engine.RateLimitStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rate = &st
}

func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

func (a *Adapter) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) IsConfigured() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.configured
}

func (a *Adapter) QueueLength() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.queue
}

func (a *Adapter) LastSeenAvailable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.available
}

func (a *Adapter) RateLimitStatus() engine.RateLimitStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rate == nil {
		return engine.RateLimitStatus{Limit: 60, Remaining: 60, ResetAt: time.Now()}
	}
	return *a.rate
}

func (a *Adapter) Complete(ctx context.Context, messages []engine.Message, opts engine.Options) (*engine.Completion, error) {
	return a.next(ctx, messages, opts, false)
}

func (a *Adapter) Stream(ctx context.Context, messages []engine.Message, onChunk func(string), opts engine.Options) (*engine.Completion, error) {
	out, err := a.next(ctx, messages, opts, true)
	if err != nil {
		return nil, err
	}
	if onChunk != nil {
		const chunk = 16
		for i := 0; i < len(out.Content); i += chunk {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			end := min(i+chunk, len(out.Content))
			onChunk(out.Content[i:end])
		}
	}
	return out, nil
}

func (a *Adapter) Health(ctx context.Context) engine.Health {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.configured {
		return engine.Health{Available: false, Error: "not configured"}
	}
	return engine.Health{Available: a.available, Models: []string{a.model}}
}

func (a *Adapter) next(ctx context.Context, messages []engine.Message, opts engine.Options, stream bool) (*engine.Completion, error) {
	a.mu.Lock()
	a.calls = append(a.calls, Call{Messages: append([]engine.Message(nil), messages...), Options: opts, Stream: stream})
	var r Reply
	scripted := len(a.script) > 0
	if scripted {
		r = a.script[0]
		a.script = a.script[1:]
	}
	model := a.model
	if opts.Model != "" {
		model = opts.Model
	}
	tokens, cost := a.tokens, a.cost
	a.mu.Unlock()

	if r.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, engine.NewError(engine.KindProviderTimeout, a.name, model, ctx.Err())
		case <-time.After(r.Delay):
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	content := r.Content
	if !scripted {
		content = echo(messages)
	}
	return &engine.Completion{
		Content:       content,
		Model:         model,
		Tokens:        tokens,
		ResponseTime:  time.Millisecond,
		EstimatedCost: cost,
	}, nil
}

func echo(messages []engine.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, engine.RoleUser) && strings.TrimSpace(messages[i].Content) != "" {
			return fmt.Sprintf("mock: %s", messages[i].Content)
		}
	}
	return "mock: ok"
}
