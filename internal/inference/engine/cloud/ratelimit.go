package cloud

import (
	"sync"
	"time"

	"github.com/yungbote/labtwin-backend/internal/inference/engine"
)

// window is a rolling request counter: at most limit requests in any
// trailing period of length span.
type window struct {
	mu    sync.Mutex
	limit int
	span  time.Duration
	hits  []time.Time
	now   func() time.Time
}

func newWindow(limit int, span time.Duration) *window {
	if limit <= 0 {
		limit = 60
	}
	if span <= 0 {
		span = time.Minute
	}
	return &window{limit: limit, span: span, now: time.Now}
}

// allow records a request if the window has room.
func (w *window) allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.prune(now)
	if len(w.hits) >= w.limit {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}

func (w *window) status() engine.RateLimitStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.prune(now)
	resetAt := now
	if len(w.hits) > 0 {
		resetAt = w.hits[0].Add(w.span)
	}
	return engine.RateLimitStatus{
		Limit:     w.limit,
		Remaining: w.limit - len(w.hits),
		ResetAt:   resetAt,
	}
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}
