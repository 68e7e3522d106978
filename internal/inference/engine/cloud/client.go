package cloud

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/labtwin-backend/internal/inference/engine"
	"github.com/yungbote/labtwin-backend/internal/platform/httpx"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"

	healthTimeout = 10 * time.Second
)

type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	RateLimit int
	Window    time.Duration
}

// Client calls a Gemini-style generateContent API. Requests beyond the
// rolling rate window fail fast with RATE_LIMITED without reaching upstream.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration

	httpClient *http.Client
	log        *logger.Logger
	limiter    *window
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
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      model,
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: httpClient,
		log:        log.With("adapter", "cloud"),
		limiter:    newWindow(cfg.RateLimit, cfg.Window),
	}
}

func (c *Client) Name() string { return engine.ProviderCloud }

func (c *Client) IsConfigured() bool { return c.apiKey != "" }

func (c *Client) Model() string { return c.model }

func (c *Client) RateLimitStatus() engine.RateLimitStatus { return c.limiter.status() }

type part struct {
	Text    string `json:"text"`
	Thought bool   `json:"thought,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) Complete(ctx context.Context, messages []engine.Message, opts engine.Options) (*engine.Completion, error) {
	model := c.modelFor(opts)
	if err := c.admit(model); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.post(ctx, model, "generateContent", "", buildRequest(messages, opts))
	if err != nil {
		return nil, c.classify(model, err)
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, c.classify(model, fmt.Errorf("decode generate response: %w", err))
	}
	text := strings.TrimSpace(engine.StripThinking(candidateText(out)))
	if text == "" {
		return nil, engine.NewError(engine.KindEmptyContent, c.Name(), model, errors.New("no candidate content"))
	}
	toks := usage(out.UsageMetadata)
	return &engine.Completion{
		Content:       text,
		Model:         model,
		Tokens:        toks,
		ResponseTime:  time.Since(start),
		EstimatedCost: EstimateCost(model, toks.Prompt, toks.Completion),
	}, nil
}

func (c *Client) Stream(ctx context.Context, messages []engine.Message, onChunk func(string), opts engine.Options) (*engine.Completion, error) {
	model := c.modelFor(opts)
	if err := c.admit(model); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.post(ctx, model, "streamGenerateContent", "sse", buildRequest(messages, opts))
	if err != nil {
		return nil, c.classify(model, err)
	}
	defer resp.Body.Close()

	var (
		filter engine.ThinkFilter
		meta   *usageMetadata
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var chunk generateResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.UsageMetadata != nil {
			meta = chunk.UsageMetadata
		}
		if visible := filter.Push(candidateText(chunk)); visible != "" && onChunk != nil {
			onChunk(visible)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, c.classify(model, fmt.Errorf("read stream: %w", err))
	}

	text := strings.TrimSpace(filter.Visible())
	if text == "" {
		return nil, engine.NewError(engine.KindEmptyContent, c.Name(), model, errors.New("no candidate content"))
	}
	toks := usage(meta)
	return &engine.Completion{
		Content:       text,
		Model:         model,
		Tokens:        toks,
		ResponseTime:  time.Since(start),
		EstimatedCost: EstimateCost(model, toks.Prompt, toks.Completion),
	}, nil
}

type modelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Health lists available models. It does not count against the rate window.
func (c *Client) Health(ctx context.Context) engine.Health {
	if !c.IsConfigured() {
		return engine.Health{Available: false, Error: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models?pageSize=50", nil)
	if err != nil {
		return engine.Health{Available: false, Error: err.Error()}
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return engine.Health{Available: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return engine.Health{Available: false, Error: readAPIError(resp).Error()}
	}
	var out modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return engine.Health{Available: false, Error: err.Error()}
	}
	models := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		models = append(models, strings.TrimPrefix(m.Name, "models/"))
	}
	return engine.Health{Available: true, Models: models}
}

func (c *Client) admit(model string) error {
	if !c.IsConfigured() {
		return engine.NewError(engine.KindInvalidAPIKey, c.Name(), model, errors.New("cloud API key not configured"))
	}
	if !c.limiter.allow() {
		st := c.limiter.status()
		c.log.Warn("Cloud rate window exhausted", "limit", st.Limit, "reset_at", st.ResetAt)
		return engine.NewError(engine.KindRateLimited, c.Name(), model, fmt.Errorf("rate window exhausted until %s", st.ResetAt.Format(time.RFC3339)))
	}
	return nil
}

// buildRequest lifts system messages into systemInstruction and renames the
// assistant role to "model".
func buildRequest(messages []engine.Message, opts engine.Options) generateRequest {
	var (
		system   []string
		contents = make([]content, 0, len(messages))
	)
	for _, m := range messages {
		switch m.Role {
		case engine.RoleSystem:
			system = append(system, m.Content)
		case engine.RoleAssistant:
			contents = append(contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			contents = append(contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	req := generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
		},
	}
	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: []part{{Text: strings.Join(system, "\n\n")}}}
	}
	return req
}

func (c *Client) post(ctx context.Context, model, method, alt string, body generateRequest) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:%s", c.baseURL, url.PathEscape(model), method)
	if alt != "" {
		endpoint += "?alt=" + alt
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	httpx.ForwardRequestID(req)
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) *apiError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	out := &apiError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	var eb errorBody
	if json.Unmarshal(b, &eb) == nil && eb.Error.Message != "" {
		out.Message = eb.Error.Message
		out.Status = eb.Error.Status
	}
	return out
}

func (c *Client) classify(model string, err error) error {
	if httpx.IsTimeout(err) {
		c.log.Warn("Cloud model call timed out", "model", model, "timeout", c.timeout.String())
		return engine.NewError(engine.KindProviderTimeout, c.Name(), model, err)
	}
	kind := engine.KindProviderError
	var ae *apiError
	if errors.As(err, &ae) {
		switch {
		case ae.isAuth():
			kind = engine.KindInvalidAPIKey
		case ae.isRateLimit():
			kind = engine.KindRateLimited
		}
	}
	e := engine.NewError(kind, c.Name(), model, err)
	e.StatusCode = httpx.StatusCode(err)
	c.log.Warn("Cloud model call failed", "model", model, "kind", string(kind), "error", err)
	return e
}

func (c *Client) modelFor(opts engine.Options) string {
	if m := strings.TrimSpace(opts.Model); m != "" {
		return strings.TrimPrefix(m, "models/")
	}
	return c.model
}

func candidateText(r generateResponse) string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		if p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

func usage(m *usageMetadata) engine.Tokens {
	if m == nil {
		return engine.Tokens{}
	}
	total := m.TotalTokenCount
	if total == 0 {
		total = m.PromptTokenCount + m.CandidatesTokenCount
	}
	return engine.Tokens{Prompt: m.PromptTokenCount, Completion: m.CandidatesTokenCount, Total: total}
}
