package local

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yungbote/labtwin-backend/internal/inference/engine"
	"github.com/yungbote/labtwin-backend/internal/platform/httpx"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

const healthTimeout = 5 * time.Second

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client talks to a local Ollama-compatible inference server. Requests are
// serialized through a FIFO queue with at most one request in flight.
type Client struct {
	baseURL string
	model   string
	timeout time.Duration

	httpClient *http.Client
	log        *logger.Logger

	queue     fifo
	available atomic.Bool
}

func New(cfg Config, log *logger.Logger) *Client {
	return NewWithHTTPClient(cfg, log, nil)
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg Config, log *logger.Logger, httpClient *http.Client) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if httpClient == nil {
		httpClient = httpx.NewClient()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      strings.TrimSpace(cfg.Model),
		timeout:    timeout,
		httpClient: httpClient,
		log:        log.With("adapter", "local"),
	}
	// Until a probe or a call says otherwise the server is assumed up.
	c.available.Store(true)
	return c
}

func (c *Client) Name() string { return engine.ProviderLocal }

func (c *Client) IsConfigured() bool { return c.baseURL != "" }

func (c *Client) Model() string { return c.model }

func (c *Client) QueueLength() int { return c.queue.waiting() }

func (c *Client) LastSeenAvailable() bool { return c.available.Load() }

type chatMessage struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
	Error           string      `json:"error,omitempty"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string       { return fmt.Sprintf("status=%d body=%s", e.code, e.body) }
func (e *statusError) HTTPStatusCode() int { return e.code }

func (c *Client) Complete(ctx context.Context, messages []engine.Message, opts engine.Options) (*engine.Completion, error) {
	model := c.modelFor(opts)
	if !c.IsConfigured() {
		return nil, engine.NewError(engine.KindProviderError, c.Name(), model, errors.New("local provider not configured"))
	}

	if err := c.queue.acquire(ctx); err != nil {
		return nil, c.classify(model, err)
	}
	defer c.queue.release()

	// The timeout covers the call itself, not time spent queued.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.post(ctx, c.buildRequest(model, messages, opts, false))
	if err != nil {
		return nil, c.classify(model, err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if httpx.IsTimeout(err) {
			return nil, c.classify(model, err)
		}
		return nil, engine.NewError(engine.KindProviderError, c.Name(), model, fmt.Errorf("decode chat response: %w", err))
	}
	c.available.Store(true)

	content := strings.TrimSpace(engine.StripThinking(out.Message.Content))
	if content == "" {
		return nil, engine.NewError(engine.KindEmptyContent, c.Name(), model, errors.New("model returned no visible content"))
	}
	return &engine.Completion{
		Content:      content,
		Model:        firstNonEmpty(out.Model, model),
		Tokens:       tokens(out),
		ResponseTime: time.Since(start),
	}, nil
}

func (c *Client) Stream(ctx context.Context, messages []engine.Message, onChunk func(string), opts engine.Options) (*engine.Completion, error) {
	model := c.modelFor(opts)
	if !c.IsConfigured() {
		return nil, engine.NewError(engine.KindProviderError, c.Name(), model, errors.New("local provider not configured"))
	}

	if err := c.queue.acquire(ctx); err != nil {
		return nil, c.classify(model, err)
	}
	defer c.queue.release()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.post(ctx, c.buildRequest(model, messages, opts, true))
	if err != nil {
		return nil, c.classify(model, err)
	}
	defer resp.Body.Close()

	var (
		filter engine.ThinkFilter
		last   chatResponse
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return nil, engine.NewError(engine.KindProviderError, c.Name(), model, errors.New(chunk.Error))
		}
		if visible := filter.Push(chunk.Message.Content); visible != "" && onChunk != nil {
			onChunk(visible)
		}
		if chunk.Done {
			last = chunk
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, c.classify(model, fmt.Errorf("read stream: %w", err))
	}
	c.available.Store(true)

	content := strings.TrimSpace(filter.Visible())
	if content == "" {
		return nil, engine.NewError(engine.KindEmptyContent, c.Name(), model, errors.New("model returned no visible content"))
	}
	return &engine.Completion{
		Content:      content,
		Model:        firstNonEmpty(last.Model, model),
		Tokens:       tokens(last),
		ResponseTime: time.Since(start),
	}, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Health lists installed models and refreshes LastSeenAvailable.
func (c *Client) Health(ctx context.Context) engine.Health {
	if !c.IsConfigured() {
		c.available.Store(false)
		return engine.Health{Available: false, Error: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return engine.Health{Available: false, Error: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.available.Store(false)
		return engine.Health{Available: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		c.available.Store(false)
		return engine.Health{Available: false, Error: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		c.available.Store(false)
		return engine.Health{Available: false, Error: err.Error()}
	}
	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	c.available.Store(true)
	return engine.Health{Available: true, Models: models}
}

func (c *Client) buildRequest(model string, messages []engine.Message, opts engine.Options, stream bool) chatRequest {
	msgs := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	options := map[string]any{"temperature": opts.Temperature}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	return chatRequest{Model: model, Messages: msgs, Stream: stream, Options: options}
}

func (c *Client) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	httpx.ForwardRequestID(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// classify maps transport failures onto engine kinds. Connection failures
// mark the server unavailable so the router stops picking it.
func (c *Client) classify(model string, err error) error {
	if httpx.IsTimeout(err) {
		c.log.Warn("Local model call timed out", "model", model, "timeout", c.timeout.String())
		return engine.NewError(engine.KindProviderTimeout, c.Name(), model, err)
	}
	e := engine.NewError(engine.KindProviderError, c.Name(), model, err)
	if code := httpx.StatusCode(err); code != 0 {
		e.StatusCode = code
	} else if !errors.Is(err, context.Canceled) {
		c.available.Store(false)
	}
	c.log.Warn("Local model call failed", "model", model, "error", err)
	return e
}

func (c *Client) modelFor(opts engine.Options) string {
	return firstNonEmpty(opts.Model, c.model)
}

func tokens(r chatResponse) engine.Tokens {
	return engine.Tokens{
		Prompt:     r.PromptEvalCount,
		Completion: r.EvalCount,
		Total:      r.PromptEvalCount + r.EvalCount,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
