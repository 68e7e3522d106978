package cloud

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/labtwin-backend/internal/inference/engine"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(cfg Config, rt roundTripperFunc) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	return NewWithHTTPClient(cfg, nil, &http.Client{Transport: rt})
}

func TestCompleteTranslatesRoles(t *testing.T) {
	c := newTestClient(Config{Model: "gemini-2.0-flash", BaseURL: "http://upstream/v1beta"}, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1beta/models/gemini-2.0-flash:generateContent" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Fatalf("api key header=%q", got)
		}
		var in generateRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			t.Fatalf("decode req: %v", err)
		}
		if in.SystemInstruction == nil || in.SystemInstruction.Parts[0].Text != "be kind" {
			t.Fatalf("systemInstruction=%+v", in.SystemInstruction)
		}
		if len(in.Contents) != 2 || in.Contents[0].Role != "user" || in.Contents[1].Role != "model" {
			t.Fatalf("contents=%+v", in.Contents)
		}
		if in.GenerationConfig.Temperature != 0.4 || in.GenerationConfig.MaxOutputTokens != 600 {
			t.Fatalf("generationConfig=%+v", in.GenerationConfig)
		}
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Try tracing the loop."}]}}],"usageMetadata":{"promptTokenCount":1000,"candidatesTokenCount":500,"totalTokenCount":1500}}`), nil
	})

	out, err := c.Complete(context.Background(), []engine.Message{
		{Role: engine.RoleSystem, Content: "be kind"},
		{Role: engine.RoleUser, Content: "help"},
		{Role: engine.RoleAssistant, Content: "sure"},
	}, engine.Options{Temperature: 0.4, MaxTokens: 600})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out.Content != "Try tracing the loop." {
		t.Fatalf("content=%q", out.Content)
	}
	if out.Tokens.Total != 1500 || out.Tokens.Prompt != 1000 {
		t.Fatalf("tokens=%+v", out.Tokens)
	}
	want := 1000.0/1e6*0.10 + 500.0/1e6*0.40
	if diff := out.EstimatedCost - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("cost=%v want=%v", out.EstimatedCost, want)
	}
}

func TestCompleteMapsStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   engine.Kind
	}{
		{http.StatusForbidden, `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`, engine.KindInvalidAPIKey},
		{http.StatusUnauthorized, `{}`, engine.KindInvalidAPIKey},
		{http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`, engine.KindInvalidAPIKey},
		{http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, engine.KindRateLimited},
		{http.StatusInternalServerError, `oops`, engine.KindProviderError},
		{http.StatusBadRequest, `{"error":{"code":400,"message":"bad request","status":"INVALID_ARGUMENT"}}`, engine.KindProviderError},
	}
	for _, tc := range cases {
		c := newTestClient(Config{}, func(req *http.Request) (*http.Response, error) {
			return jsonResponse(tc.status, tc.body), nil
		})
		_, err := c.Complete(context.Background(), []engine.Message{{Role: engine.RoleUser, Content: "x"}}, engine.Options{})
		if got := engine.KindOf(err); got != tc.want {
			t.Fatalf("status=%d: got=%s err=%v", tc.status, got, err)
		}
	}
}

func TestCompleteEmptyCandidate(t *testing.T) {
	c := newTestClient(Config{}, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"candidates":[]}`), nil
	})
	_, err := c.Complete(context.Background(), []engine.Message{{Role: engine.RoleUser, Content: "x"}}, engine.Options{})
	if !engine.IsKind(err, engine.KindEmptyContent) {
		t.Fatalf("err=%v", err)
	}
}

func TestCompleteTimeout(t *testing.T) {
	c := newTestClient(Config{Timeout: 20 * time.Millisecond}, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	_, err := c.Complete(context.Background(), []engine.Message{{Role: engine.RoleUser, Content: "x"}}, engine.Options{})
	if !engine.IsKind(err, engine.KindProviderTimeout) {
		t.Fatalf("err=%v", err)
	}
}

func TestUnconfiguredRejectsWithoutCall(t *testing.T) {
	var calls int32
	c := NewWithHTTPClient(Config{}, nil, &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(http.StatusOK, `{}`), nil
	})})
	if c.IsConfigured() {
		t.Fatalf("expected unconfigured")
	}
	_, err := c.Complete(context.Background(), nil, engine.Options{})
	if !engine.IsKind(err, engine.KindInvalidAPIKey) {
		t.Fatalf("err=%v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestRateWindowRejectsLocally(t *testing.T) {
	var calls int32
	c := newTestClient(Config{RateLimit: 2, Window: time.Minute}, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"a useful hint"}]}}]}`), nil
	})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.limiter.now = func() time.Time { return now }

	msgs := []engine.Message{{Role: engine.RoleUser, Content: "x"}}
	for i := 0; i < 2; i++ {
		if _, err := c.Complete(context.Background(), msgs, engine.Options{}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	_, err := c.Complete(context.Background(), msgs, engine.Options{})
	if !engine.IsKind(err, engine.KindRateLimited) {
		t.Fatalf("err=%v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("upstream calls=%d", got)
	}
	st := c.RateLimitStatus()
	if st.Remaining != 0 || !st.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("status=%+v", st)
	}

	now = now.Add(time.Minute + time.Second)
	if _, err := c.Complete(context.Background(), msgs, engine.Options{}); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

func TestStreamSSE(t *testing.T) {
	c := newTestClient(Config{Model: "gemini-1.5-flash"}, func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, ":streamGenerateContent") || req.URL.Query().Get("alt") != "sse" {
			t.Fatalf("unexpected url: %s", req.URL.String())
		}
		sse := strings.Join([]string{
			`data: {"candidates":[{"content":{"parts":[{"text":"What does "}]}}]}`,
			"",
			`data: {"candidates":[{"content":{"parts":[{"text":"i hold?"}]}}],"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":4,"totalTokenCount":14}}`,
			"",
		}, "\n")
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       io.NopCloser(strings.NewReader(sse)),
		}, nil
	})

	var deltas strings.Builder
	out, err := c.Stream(context.Background(), []engine.Message{{Role: engine.RoleUser, Content: "hi"}}, func(s string) {
		deltas.WriteString(s)
	}, engine.Options{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if out.Content != "What does i hold?" || deltas.String() != "What does i hold?" {
		t.Fatalf("content=%q deltas=%q", out.Content, deltas.String())
	}
	if out.Tokens.Total != 14 {
		t.Fatalf("tokens=%+v", out.Tokens)
	}
}

func TestHealthListsModels(t *testing.T) {
	c := newTestClient(Config{BaseURL: "http://upstream/v1beta"}, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodGet || req.URL.Path != "/v1beta/models" {
			t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"models":[{"name":"models/gemini-2.0-flash"},{"name":"models/gemini-1.5-pro"}]}`), nil
	})
	h := c.Health(context.Background())
	if !h.Available || len(h.Models) != 2 || h.Models[0] != "gemini-2.0-flash" {
		t.Fatalf("health=%+v", h)
	}
}

func TestEstimateCostPrefixMatch(t *testing.T) {
	if got, want := EstimateCost("gemini-1.5-flash-8b-001", 1_000_000, 0), 0.0375; got != want {
		t.Fatalf("got=%v want=%v", got, want)
	}
	if got, want := EstimateCost("gemini-1.5-pro-002", 0, 1_000_000), 5.0; got != want {
		t.Fatalf("got=%v want=%v", got, want)
	}
	if got, want := EstimateCost("unknown-model", 1_000_000, 1_000_000), 0.50; got != want {
		t.Fatalf("got=%v want=%v", got, want)
	}
}
