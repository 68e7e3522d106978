package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/labtwin-backend/internal/inference/config"
	"github.com/yungbote/labtwin-backend/internal/inference/engine"
	"github.com/yungbote/labtwin-backend/internal/inference/engine/cloud"
	"github.com/yungbote/labtwin-backend/internal/inference/engine/local"
	"github.com/yungbote/labtwin-backend/internal/inference/engine/mock"
	"github.com/yungbote/labtwin-backend/internal/observability"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

const (
	ReasonQueueFull     = "queue_full"
	ReasonOllamaDown    = "ollama_down"
	ReasonDefault       = "default"
	ReasonUserSpecified = "user_specified"

	DefaultQueueThreshold = 3
)

type Config struct {
	QueueThreshold int
	// CascadeModels are the cloud models tried in order after a local failure.
	CascadeModels []string
}

type Selection struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
	Fallback bool   `json:"fallback"`
	// FallbackLevel is the 1-based position in the cloud cascade that
	// produced the result; 0 when no fallback happened.
	FallbackLevel int `json:"fallbackLevel"`
}

// Attempt is one provider call made while serving a request.
type Attempt struct {
	Provider      string
	Model         string
	Fallback      bool
	FallbackLevel int
	Completion    *engine.Completion
	Err           error
	Duration      time.Duration
}

func (a Attempt) Succeeded() bool { return a.Err == nil && a.Completion != nil }

type RouteOptions struct {
	// Provider pins the primary adapter ("local" or "cloud").
	Provider string
	// AllowFallback re-enables the cascade for pinned requests. Unpinned
	// requests always fall back.
	AllowFallback bool
	// RequestType labels metrics only.
	RequestType string
	// Accept vets a successful completion. A non-nil error turns the attempt
	// into an EMPTY_CONTENT failure, which cascades like any other.
	Accept func(c *engine.Completion) error
}

type Result struct {
	*engine.Completion
	Provider  string
	Selection Selection
	Attempts  []Attempt
}

// Router picks a provider per call from queue depth and availability, and
// cascades through cloud models when the local provider fails.
type Router struct {
	local   engine.Adapter
	cloud   engine.Adapter
	cfg     Config
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func New(localAdapter, cloudAdapter engine.Adapter, cfg Config, log *logger.Logger, metrics *observability.Metrics) *Router {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.QueueThreshold <= 0 {
		cfg.QueueThreshold = DefaultQueueThreshold
	}
	return &Router{
		local:   localAdapter,
		cloud:   cloudAdapter,
		cfg:     cfg,
		log:     log.With("component", "ProviderRouter"),
		metrics: metrics,
		tracer:  observability.Tracer(),
	}
}

// FromConfig builds the adapters described by cfg and wires them into a
// Router. With cfg.Mock set both adapters are scripted in-process mocks.
func FromConfig(cfg *config.Config, log *logger.Logger, metrics *observability.Metrics) (*Router, error) {
	if cfg == nil {
		return nil, errors.New("router: nil config")
	}
	rc := Config{QueueThreshold: cfg.Local.QueueThreshold, CascadeModels: cfg.Cloud.CascadeModels()}
	if cfg.Mock {
		return New(mock.New(engine.ProviderLocal), mock.New(engine.ProviderCloud), rc, log, metrics), nil
	}
	l := local.New(local.Config{
		BaseURL: cfg.Local.URL,
		Model:   cfg.Local.Model,
		Timeout: cfg.Local.Timeout,
	}, log)
	c := cloud.New(cloud.Config{
		APIKey:    cfg.Cloud.APIKey,
		Model:     cfg.Cloud.Model,
		BaseURL:   cfg.Cloud.BaseURL,
		Timeout:   cfg.Cloud.Timeout,
		RateLimit: cfg.Cloud.RateLimit,
		Window:    cfg.Cloud.RateWindow,
	}, log)
	return New(l, c, rc, log, metrics), nil
}

func (r *Router) Local() engine.Adapter { return r.local }
func (r *Router) Cloud() engine.Adapter { return r.cloud }

func configured(a engine.Adapter) bool { return a != nil && a.IsConfigured() }

func queueLength(a engine.Adapter) int {
	if q, ok := a.(engine.Queued); ok {
		return q.QueueLength()
	}
	return 0
}

func lastSeenAvailable(a engine.Adapter) bool {
	if q, ok := a.(engine.Queued); ok {
		return q.LastSeenAvailable()
	}
	return true
}

// Select applies the routing rules in order: a full local queue or a down
// local server diverts to a configured cloud; with nothing usable the call
// fails with NO_PROVIDERS; otherwise local wins.
func (r *Router) Select(pin string) (Selection, error) {
	if pin = strings.ToLower(strings.TrimSpace(pin)); pin != "" {
		a := r.adapter(pin)
		if a == nil {
			return Selection{}, engine.NewError(engine.KindNoProviders, pin, "", fmt.Errorf("unknown provider %q", pin))
		}
		if !a.IsConfigured() {
			return Selection{}, engine.NewError(engine.KindNoProviders, pin, "", errors.New("requested provider is not configured"))
		}
		return Selection{Provider: pin, Reason: ReasonUserSpecified}, nil
	}

	localOK := configured(r.local)
	cloudOK := configured(r.cloud)

	if localOK && cloudOK && queueLength(r.local) >= r.cfg.QueueThreshold {
		return Selection{Provider: engine.ProviderCloud, Reason: ReasonQueueFull}, nil
	}
	if (!localOK || !lastSeenAvailable(r.local)) && cloudOK {
		return Selection{Provider: engine.ProviderCloud, Reason: ReasonOllamaDown}, nil
	}
	if !localOK || !lastSeenAvailable(r.local) {
		return Selection{}, engine.NewError(engine.KindNoProviders, "", "", errors.New("no AI provider is configured and available"))
	}
	return Selection{Provider: engine.ProviderLocal, Reason: ReasonDefault}, nil
}

func (r *Router) adapter(name string) engine.Adapter {
	switch name {
	case engine.ProviderLocal:
		return r.local
	case engine.ProviderCloud:
		return r.cloud
	}
	return nil
}

func (r *Router) fallbackAllowed(sel Selection, ro RouteOptions) bool {
	if sel.Provider != engine.ProviderLocal || !configured(r.cloud) {
		return false
	}
	return ro.Provider == "" || ro.AllowFallback
}

// Complete runs one primary call and, when the local provider fails, the
// cloud cascade in sequence. The returned Result is non-nil even on error
// so callers can account for every attempt.
func (r *Router) Complete(ctx context.Context, messages []engine.Message, opts engine.Options, ro RouteOptions) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "router.Complete", trace.WithAttributes(
		attribute.String("request_type", ro.RequestType),
		attribute.String("pin", ro.Provider),
	))
	defer span.End()

	res := &Result{}
	sel, err := r.Select(ro.Provider)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	res.Selection = sel
	r.metrics.IncRouterSelection(sel.Provider, sel.Reason)
	span.SetAttributes(attribute.String("provider", sel.Provider), attribute.String("reason", sel.Reason))
	r.metrics.SetLocalQueueDepth(queueLength(r.local))

	primary := r.attempt(ctx, r.adapter(sel.Provider), messages, opts, ro, false, 0)
	res.Attempts = append(res.Attempts, primary)
	if primary.Succeeded() {
		res.Completion, res.Provider = primary.Completion, sel.Provider
		return res, nil
	}
	if !r.fallbackAllowed(sel, ro) {
		span.SetStatus(codes.Error, primary.Err.Error())
		return res, primary.Err
	}

	r.log.Warn("Local provider failed; cascading to cloud", "kind", string(engine.KindOf(primary.Err)), "error", primary.Err)
	models := r.cascade()
	for i, model := range models {
		level := i + 1
		o := opts
		o.Model = model
		a := r.attempt(ctx, r.cloud, messages, o, ro, true, level)
		res.Attempts = append(res.Attempts, a)
		r.metrics.IncRouterFallback(level, a.Succeeded())
		if a.Succeeded() {
			res.Completion, res.Provider = a.Completion, engine.ProviderCloud
			res.Selection.Fallback = true
			res.Selection.FallbackLevel = level
			span.SetAttributes(attribute.Int("fallback_level", level))
			return res, nil
		}
		// Every remaining model shares the key and the rate window.
		if k := engine.KindOf(a.Err); k == engine.KindInvalidAPIKey || k == engine.KindRateLimited {
			break
		}
	}
	err = &engine.Error{Kind: engine.KindAllProvidersFailed, Provider: engine.ProviderLocal, Err: primary.Err}
	span.SetStatus(codes.Error, err.Error())
	r.log.Error("All providers failed", "attempts", len(res.Attempts), "error", primary.Err)
	return res, err
}

func (r *Router) cascade() []string {
	if len(r.cfg.CascadeModels) > 0 {
		return r.cfg.CascadeModels
	}
	// An empty model means the adapter's configured default.
	return []string{""}
}

func (r *Router) attempt(ctx context.Context, a engine.Adapter, messages []engine.Message, opts engine.Options, ro RouteOptions, fallback bool, level int) Attempt {
	start := time.Now()
	out, err := a.Complete(ctx, messages, opts)
	return r.record(a, opts, ro, fallback, level, start, out, err)
}

func (r *Router) record(a engine.Adapter, opts engine.Options, ro RouteOptions, fallback bool, level int, start time.Time, out *engine.Completion, err error) Attempt {
	if err == nil && out == nil {
		err = engine.NewError(engine.KindEmptyContent, a.Name(), opts.Model, errors.New("adapter returned no completion"))
	}
	if err == nil && ro.Accept != nil {
		if rejected := ro.Accept(out); rejected != nil {
			var e *engine.Error
			if errors.As(rejected, &e) {
				err = rejected
			} else {
				err = engine.NewError(engine.KindEmptyContent, a.Name(), out.Model, rejected)
			}
			out = nil
		}
	}
	at := Attempt{
		Provider:      a.Name(),
		Model:         opts.Model,
		Fallback:      fallback,
		FallbackLevel: level,
		Completion:    out,
		Err:           err,
		Duration:      time.Since(start),
	}
	if out != nil && out.Model != "" {
		at.Model = out.Model
	}
	if at.Model == "" {
		var e *engine.Error
		if errors.As(err, &e) {
			at.Model = e.Model
		}
	}
	status := "ok"
	var toks engine.Tokens
	var cost float64
	if err != nil {
		status = strings.ToLower(string(engine.KindOf(err)))
	} else if out != nil {
		toks, cost = out.Tokens, out.EstimatedCost
	}
	r.metrics.ObserveLLMRequest(at.Provider, at.Model, ro.RequestType, status, at.Duration, toks.Prompt, toks.Completion, cost)
	return at
}
