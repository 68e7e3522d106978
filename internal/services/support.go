package services

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	types "github.com/yungbote/labtwin-backend/internal/domain"
	"github.com/yungbote/labtwin-backend/internal/inference/engine"
	"github.com/yungbote/labtwin-backend/internal/inference/router"
	"github.com/yungbote/labtwin-backend/internal/observability"
	"github.com/yungbote/labtwin-backend/internal/platform/apierr"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
	"github.com/yungbote/labtwin-backend/internal/realtime"
	"github.com/yungbote/labtwin-backend/internal/realtime/bus"
)

// Completer is the slice of the provider router the services call.
type Completer interface {
	Complete(ctx context.Context, messages []engine.Message, opts engine.Options, ro router.RouteOptions) (*router.Result, error)
	Stream(ctx context.Context, messages []engine.Message, onChunk func(string), opts engine.Options, ro router.RouteOptions) (*router.Result, error)
}

// providerError maps a routing failure onto the 5xx surface. The provider
// detail stays in Err; clients only see the generic message.
func providerError(err error, action string) *apierr.Error {
	status := http.StatusBadGateway
	code := string(engine.KindOf(err))
	switch engine.KindOf(err) {
	case engine.KindNoProviders, engine.KindRateLimited:
		status = http.StatusServiceUnavailable
	case engine.KindProviderTimeout:
		status = http.StatusGatewayTimeout
	case engine.KindAllProvidersFailed, engine.KindEmptyContent, engine.KindInvalidAPIKey, engine.KindProviderError:
	default:
		code = apierr.CodeProviderError
	}
	return &apierr.Error{Status: status, Code: code, Err: err, Message: "Failed to " + action}
}

// usageRows turns router attempts into usage rows. A call that failed before
// any attempt (no provider selectable) still yields one failure row.
func usageRows(studentID uuid.UUID, activityID *uuid.UUID, requestType string, hintLevel *int, res *router.Result, callErr error) []*types.AIUsage {
	var attempts []router.Attempt
	if res != nil {
		attempts = res.Attempts
	}
	if len(attempts) == 0 {
		if callErr == nil {
			return nil
		}
		return []*types.AIUsage{{
			StudentID:    studentID,
			ActivityID:   activityID,
			Provider:     providerNone,
			RequestType:  requestType,
			HintLevel:    hintLevel,
			Success:      false,
			ErrorMessage: truncate(callErr.Error(), 500),
		}}
	}
	rows := make([]*types.AIUsage, 0, len(attempts))
	for _, a := range attempts {
		row := &types.AIUsage{
			StudentID:      studentID,
			ActivityID:     activityID,
			Provider:       a.Provider,
			Model:          a.Model,
			RequestType:    requestType,
			HintLevel:      hintLevel,
			ResponseTimeMs: a.Duration.Milliseconds(),
			Success:        a.Succeeded(),
			FallbackUsed:   a.Fallback,
		}
		if a.Completion != nil {
			row.PromptTokens = a.Completion.Tokens.Prompt
			row.CompletionTokens = a.Completion.Tokens.Completion
			row.TotalTokens = a.Completion.Tokens.Total
			row.EstimatedCost = a.Completion.EstimatedCost
		}
		if a.Err != nil {
			row.ErrorMessage = truncate(a.Err.Error(), 500)
		}
		rows = append(rows, row)
	}
	return rows
}

// providerNone marks usage rows for calls no provider accepted.
const providerNone = "none"

// truncate keeps at most n bytes of s without splitting a rune.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// publisher emits bus events. Failures are logged and counted, never
// returned; the bus is best-effort.
type publisher struct {
	bus     bus.Bus
	log     *logger.Logger
	metrics *observability.Metrics
}

func (p publisher) publish(ctx context.Context, eventType string, studentID, activityID uuid.UUID, payload any) {
	if p.bus == nil {
		return
	}
	ev, err := realtime.NewEvent(eventType, studentID, activityID, payload)
	if err == nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		err = p.bus.Publish(pubCtx, ev)
		cancel()
	}
	p.metrics.IncBusEvent(eventType, err == nil)
	if err != nil {
		p.log.Warn("Event publish failed", "type", eventType, "student_id", studentID, "error", err)
	}
}
