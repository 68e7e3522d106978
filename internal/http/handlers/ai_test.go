package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/labtwin-backend/internal/inference/router"
	"github.com/yungbote/labtwin-backend/internal/learning/policy"
	"github.com/yungbote/labtwin-backend/internal/platform/apierr"
	"github.com/yungbote/labtwin-backend/internal/platform/ctxutil"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
	"github.com/yungbote/labtwin-backend/internal/services"
)

type fakeHints struct {
	services.HintService
	outcome  *services.HintOutcome
	err      error
	lastIn   services.HintInput
	feedback services.HintFeedback
	chunks   []string
	socratic *services.SocraticOutcome
}

func (f *fakeHints) RequestHint(_ context.Context, in services.HintInput) (*services.HintOutcome, error) {
	f.lastIn = in
	return f.outcome, f.err
}

func (f *fakeHints) Feedback(_ context.Context, _, _ uuid.UUID, fb services.HintFeedback) error {
	f.feedback = fb
	return f.err
}

func (f *fakeHints) ListHints(_ context.Context, _, _ uuid.UUID) (*services.HintList, error) {
	return &services.HintList{Count: 2, HighestLevel: 3}, f.err
}

func (f *fakeHints) Socratic(_ context.Context, _ services.SocraticInput, onChunk func(string)) (*services.SocraticOutcome, error) {
	for _, c := range f.chunks {
		onChunk(c)
	}
	return f.socratic, f.err
}

type fakeStatus struct{}

func (fakeStatus) Status(context.Context) router.Status {
	return router.Status{Recommendation: router.Recommendation{Provider: "local", Reason: "available"}}
}

func testEngine(h *AIHandler, user uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != uuid.Nil {
			rd := &ctxutil.RequestData{UserID: user, Role: ctxutil.RoleStudent}
			c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		}
		c.Next()
	})
	r.POST("/ai/hint", h.RequestHint)
	r.GET("/ai/hints/:id", h.ListHints)
	r.POST("/ai/hints/:id/feedback", h.Feedback)
	r.GET("/ai/status", h.Status)
	r.POST("/ai/socratic", h.Socratic)
	return r
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRequestHintGranted(t *testing.T) {
	fake := &fakeHints{outcome: &services.HintOutcome{
		Decision: policy.Decision{Granted: true, ActualLevel: 2},
		Hint:     &services.HintResult{Hint: "Look at the loop bound.", Level: 2, Provider: "local"},
	}}
	user := uuid.New()
	r := testEngine(NewAIHandler(logger.Nop(), fake, nil, fakeStatus{}), user)

	rec := do(r, http.MethodPost, "/ai/hint", map[string]any{
		"activityId":  uuid.NewString(),
		"description": "off by one",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, true, out["granted"])
	assert.Equal(t, "Look at the loop bound.", out["data"].(map[string]any)["hint"])
	assert.Equal(t, user, fake.lastIn.StudentID)
	assert.True(t, fake.lastIn.AllowFallback)
	assert.Nil(t, fake.lastIn.HintLevel)
}

func TestRequestHintRefused(t *testing.T) {
	fake := &fakeHints{outcome: &services.HintOutcome{Decision: policy.Decision{
		Reason:      "too_soon",
		Message:     "Try for a bit longer.",
		ActualLevel: 1,
	}}}
	r := testEngine(NewAIHandler(logger.Nop(), fake, nil, fakeStatus{}), uuid.New())

	rec := do(r, http.MethodPost, "/ai/hint", map[string]any{
		"activityId":    uuid.NewString(),
		"description":   "stuck",
		"allowFallback": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, false, out["granted"])
	assert.Equal(t, "too_soon", out["reason"])
	assert.Equal(t, "Try for a bit longer.", out["message"])
	assert.False(t, fake.lastIn.AllowFallback)
}

func TestRequestHintErrors(t *testing.T) {
	cases := []struct {
		name   string
		user   uuid.UUID
		body   map[string]any
		err    error
		status int
		code   string
	}{
		{"unauthenticated", uuid.Nil, map[string]any{"activityId": uuid.NewString(), "description": "x"}, nil, http.StatusUnauthorized, apierr.CodeUnauthenticated},
		{"missing description", uuid.New(), map[string]any{"activityId": uuid.NewString()}, nil, http.StatusBadRequest, apierr.CodeValidation},
		{"bad activity id", uuid.New(), map[string]any{"activityId": "nope", "description": "x"}, nil, http.StatusBadRequest, apierr.CodeValidation},
		{"not found", uuid.New(), map[string]any{"activityId": uuid.NewString(), "description": "x"}, apierr.NotFound("activity"), http.StatusNotFound, apierr.CodeNotFound},
		{"provider down", uuid.New(), map[string]any{"activityId": uuid.NewString(), "description": "x"}, apierr.New(http.StatusServiceUnavailable, apierr.CodeNoProviders, errors.New("no providers")), http.StatusServiceUnavailable, apierr.CodeNoProviders},
		{"unexpected", uuid.New(), map[string]any{"activityId": uuid.NewString(), "description": "x"}, errors.New("boom"), http.StatusInternalServerError, apierr.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeHints{err: tc.err}
			r := testEngine(NewAIHandler(logger.Nop(), fake, nil, fakeStatus{}), tc.user)
			rec := do(r, http.MethodPost, "/ai/hint", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tc.code, out["error"].(map[string]any)["code"])
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestFeedbackAndListRoutes(t *testing.T) {
	fake := &fakeHints{}
	r := testEngine(NewAIHandler(logger.Nop(), fake, nil, fakeStatus{}), uuid.New())

	rec := do(r, http.MethodPost, "/ai/hints/"+uuid.NewString()+"/feedback", map[string]any{"wasHelpful": true})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, fake.feedback.WasHelpful)
	assert.True(t, *fake.feedback.WasHelpful)
	assert.Nil(t, fake.feedback.LedToSuccess)

	rec = do(r, http.MethodGet, "/ai/hints/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["data"].(map[string]any)["highestLevel"])
}

func TestStatusRoute(t *testing.T) {
	r := testEngine(NewAIHandler(logger.Nop(), &fakeHints{}, nil, fakeStatus{}), uuid.New())
	rec := do(r, http.MethodGet, "/ai/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available"`)
}

func TestSocraticStreams(t *testing.T) {
	fake := &fakeHints{
		chunks:   []string{"What does ", "your loop do?"},
		socratic: &services.SocraticOutcome{Provider: "local", Model: "m"},
	}
	r := testEngine(NewAIHandler(logger.Nop(), fake, nil, fakeStatus{}), uuid.New())
	rec := do(r, http.MethodPost, "/ai/socratic", map[string]any{
		"activityId": uuid.NewString(),
		"messages":   []map[string]string{{"role": "user", "content": "help"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event:chunk"))
	assert.Contains(t, body, "event:done")
	assert.Contains(t, body, "your loop do?")
}

func TestSocraticRefusalAndEarlyError(t *testing.T) {
	user := uuid.New()
	refused := &fakeHints{socratic: &services.SocraticOutcome{Refusal: &policy.Decision{Reason: "lockdown", Message: "Exam mode"}}}
	r := testEngine(NewAIHandler(logger.Nop(), refused, nil, fakeStatus{}), user)
	rec := do(r, http.MethodPost, "/ai/socratic", map[string]any{"activityId": uuid.NewString()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lockdown", decode(t, rec)["reason"])

	failing := &fakeHints{err: apierr.New(http.StatusBadGateway, apierr.CodeAllProvidersFailed, errors.New("down"))}
	r = testEngine(NewAIHandler(logger.Nop(), failing, nil, fakeStatus{}), user)
	rec = do(r, http.MethodPost, "/ai/socratic", map[string]any{"activityId": uuid.NewString()})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to stream reply")
}
