package ctxutil

import "context"

type traceKey struct{}

// Trace ties log lines and outbound provider calls to one inbound request.
type Trace struct {
	TraceID   string
	RequestID string
}

func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

func TraceFrom(ctx context.Context) *Trace {
	if t, ok := ctx.Value(traceKey{}).(*Trace); ok {
		return t
	}
	return nil
}

// RequestID is empty outside an HTTP request, e.g. for bus consumers.
func RequestID(ctx context.Context) string {
	if t := TraceFrom(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// LogFields returns the request's trace ids and caller as logger
// key/value pairs.
func LogFields(ctx context.Context) []any {
	var out []any
	if t := TraceFrom(ctx); t != nil {
		if t.TraceID != "" {
			out = append(out, "trace_id", t.TraceID)
		}
		if t.RequestID != "" {
			out = append(out, "request_id", t.RequestID)
		}
	}
	if rd := GetRequestData(ctx); rd != nil {
		out = append(out, "user_id", rd.UserID.String(), "role", rd.Role)
	}
	return out
}
