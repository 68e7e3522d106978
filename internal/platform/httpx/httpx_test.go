package httpx

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/yungbote/labtwin-backend/internal/platform/ctxutil"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)) {
		t.Fatalf("deadline should be a timeout")
	}
	if IsTimeout(context.Canceled) {
		t.Fatalf("cancel is not a timeout")
	}
	if IsTimeout(nil) {
		t.Fatalf("nil is not a timeout")
	}
}

func TestStatusCodeAndRetryable(t *testing.T) {
	err := fmt.Errorf("call: %w", statusErr(429))
	if got := StatusCode(err); got != 429 {
		t.Fatalf("StatusCode=%d", got)
	}
	if !IsRetryableHTTPStatus(503) || IsRetryableHTTPStatus(403) {
		t.Fatalf("retryable classification wrong")
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"12"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("capped retry-after=%v", got)
	}
	if got := RetryAfterDuration(nil, 2*time.Second, 0); got != 2*time.Second {
		t.Fatalf("fallback retry-after=%v", got)
	}
}

func TestForwardRequestID(t *testing.T) {
	ctx := ctxutil.WithTrace(context.Background(), &ctxutil.Trace{RequestID: "req-9"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://example.invalid", nil)
	if err != nil {
		t.Fatal(err)
	}
	ForwardRequestID(req)
	if got := req.Header.Get(HeaderRequestID); got != "req-9" {
		t.Fatalf("forwarded id = %q, want req-9", got)
	}

	bare, err := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	if err != nil {
		t.Fatal(err)
	}
	ForwardRequestID(bare)
	if got := bare.Header.Get(HeaderRequestID); got != "" {
		t.Fatalf("bare request got id %q", got)
	}
}
