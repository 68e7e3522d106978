package router

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/labtwin-backend/internal/inference/engine"
)

// Stream uses the same selection as Complete but falls back at most once,
// to the cloud's default model, and only if the failed primary had not
// emitted any chunk yet.
func (r *Router) Stream(ctx context.Context, messages []engine.Message, onChunk func(string), opts engine.Options, ro RouteOptions) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "router.Stream", trace.WithAttributes(
		attribute.String("request_type", ro.RequestType),
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

	emitted := false
	forward := func(chunk string) {
		emitted = true
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	primary := r.streamAttempt(ctx, r.adapter(sel.Provider), messages, forward, opts, ro, false, 0)
	res.Attempts = append(res.Attempts, primary)
	if primary.Succeeded() {
		res.Completion, res.Provider = primary.Completion, sel.Provider
		return res, nil
	}
	if emitted || !r.fallbackAllowed(sel, ro) {
		span.SetStatus(codes.Error, primary.Err.Error())
		return res, primary.Err
	}

	o := opts
	o.Model = r.cascade()[0]
	hop := r.streamAttempt(ctx, r.cloud, messages, forward, o, ro, true, 1)
	res.Attempts = append(res.Attempts, hop)
	r.metrics.IncRouterFallback(1, hop.Succeeded())
	if hop.Succeeded() {
		res.Completion, res.Provider = hop.Completion, engine.ProviderCloud
		res.Selection.Fallback = true
		res.Selection.FallbackLevel = 1
		return res, nil
	}
	err = &engine.Error{Kind: engine.KindAllProvidersFailed, Provider: engine.ProviderLocal, Err: primary.Err}
	span.SetStatus(codes.Error, err.Error())
	return res, err
}

func (r *Router) streamAttempt(ctx context.Context, a engine.Adapter, messages []engine.Message, onChunk func(string), opts engine.Options, ro RouteOptions, fallback bool, level int) Attempt {
	start := time.Now()
	out, err := a.Stream(ctx, messages, onChunk, opts)
	return r.record(a, opts, ro, fallback, level, start, out, err)
}
