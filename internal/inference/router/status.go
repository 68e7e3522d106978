package router

import (
	"context"
	"time"

	"github.com/yungbote/labtwin-backend/internal/inference/engine"
)

type LocalStatus struct {
	Available bool     `json:"available"`
	Models    []string `json:"models"`
	Queue     int      `json:"queue"`
	Error     string   `json:"error,omitempty"`
}

type CloudStatus struct {
	Configured bool                    `json:"configured"`
	RateLimit  *engine.RateLimitStatus `json:"rateLimit,omitempty"`
}

type Recommendation struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

type Status struct {
	Local          LocalStatus    `json:"local"`
	Cloud          CloudStatus    `json:"cloud"`
	Recommendation Recommendation `json:"recommendation"`
}

// Status probes the local server and reports the current routing choice.
func (r *Router) Status(ctx context.Context) Status {
	var st Status
	if r.local != nil {
		h := r.local.Health(ctx)
		st.Local = LocalStatus{
			Available: h.Available,
			Models:    h.Models,
			Queue:     queueLength(r.local),
			Error:     h.Error,
		}
		if st.Local.Models == nil {
			st.Local.Models = []string{}
		}
	}
	if r.cloud != nil {
		st.Cloud.Configured = r.cloud.IsConfigured()
		if rl, ok := r.cloud.(engine.RateLimited); ok {
			s := rl.RateLimitStatus()
			st.Cloud.RateLimit = &s
		}
	}
	if sel, err := r.Select(""); err == nil {
		st.Recommendation = Recommendation{Provider: sel.Provider, Reason: sel.Reason}
	} else {
		st.Recommendation = Recommendation{Provider: "none", Reason: string(engine.KindNoProviders)}
	}
	return st
}

// StartHealthProbe refreshes local availability every interval until ctx
// is done.
func (r *Router) StartHealthProbe(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.local == nil || !r.local.IsConfigured() {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.probe(ctx)
			}
		}
	}()
}

func (r *Router) probe(ctx context.Context) {
	h := r.local.Health(ctx)
	r.metrics.SetProviderUp(engine.ProviderLocal, h.Available)
	r.metrics.SetLocalQueueDepth(queueLength(r.local))
	if !h.Available {
		r.log.Warn("Local provider health probe failed", "error", h.Error)
	}
	if r.cloud != nil {
		r.metrics.SetProviderUp(engine.ProviderCloud, r.cloud.IsConfigured())
	}
}
