package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/labtwin-backend/internal/data/repos"
	"github.com/yungbote/labtwin-backend/internal/data/repos/testutil"
	types "github.com/yungbote/labtwin-backend/internal/domain"
	"github.com/yungbote/labtwin-backend/internal/inference/engine"
	"github.com/yungbote/labtwin-backend/internal/inference/engine/mock"
	"github.com/yungbote/labtwin-backend/internal/inference/router"
	"github.com/yungbote/labtwin-backend/internal/learning/prompts"
	"github.com/yungbote/labtwin-backend/internal/observability"
	"github.com/yungbote/labtwin-backend/internal/platform/apierr"
	"github.com/yungbote/labtwin-backend/internal/realtime"
	"github.com/yungbote/labtwin-backend/internal/realtime/bus"
)

const longHint = "Look at what your loop does with the last digit of n."

type harness struct {
	db      *gorm.DB
	local   *mock.Adapter
	cloud   *mock.Adapter
	hints   HintService
	twin    TwinService
	usage   UsageService
	metrics *observability.Metrics
	reg     *prometheus.Registry

	mu     sync.Mutex
	events []realtime.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	h := &harness{
		db:      db,
		local:   mock.New(engine.ProviderLocal),
		cloud:   mock.New(engine.ProviderCloud),
		metrics: metrics,
		reg:     reg,
	}
	rt := router.New(h.local, h.cloud, router.Config{CascadeModels: []string{"m1", "m2", "m3"}}, log, metrics)

	eventBus := bus.NewMemoryBus(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = eventBus.Close()
	})
	require.NoError(t, eventBus.StartForwarder(ctx, func(ev realtime.Event) {
		h.mu.Lock()
		h.events = append(h.events, ev)
		h.mu.Unlock()
	}))

	studentRepo := repos.NewStudentRepo(db, log)
	activityRepo := repos.NewActivityRepo(db, log)
	hintRepo := repos.NewHintRequestRepo(db, log)
	usageRepo := repos.NewAIUsageRepo(db, log)
	twinRepo := repos.NewStudentTwinRepo(db, log)
	competencyRepo := repos.NewCompetencyRepo(db, log)

	h.twin = NewTwinService(db, log, studentRepo, activityRepo, hintRepo, twinRepo, competencyRepo, eventBus, metrics)
	h.hints = NewHintService(
		db,
		log,
		studentRepo,
		activityRepo,
		repos.NewSubmissionRepo(db, log),
		hintRepo,
		usageRepo,
		twinRepo,
		competencyRepo,
		h.twin,
		rt,
		prompts.Default(),
		eventBus,
		metrics,
	)
	h.usage = NewUsageService(db, log, usageRepo)
	return h
}

func (h *harness) eventTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, ev := range h.events {
		out = append(out, ev.Type)
	}
	return out
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Count(&n).Error)
	return n
}

func (h *harness) usageRows(t *testing.T) []*types.AIUsage {
	t.Helper()
	var rows []*types.AIUsage
	require.NoError(t, h.db.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func level(n int) *int { return &n }

func hintInput(studentID, activityID uuid.UUID) HintInput {
	return HintInput{
		StudentID:   studentID,
		ActivityID:  activityID,
		Code:        "def solve(n):\n    total = 0",
		Description: "stuck",
		TimeSpent:   120,
	}
}

func TestRequestHintLockdown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 0)

	in := hintInput(st.ID, act.ID)
	in.HintLevel = level(1)
	in.TimeSpent = 3600
	out, err := h.hints.RequestHint(ctx, in)
	require.NoError(t, err)

	assert.False(t, out.Granted())
	assert.Equal(t, "lockdown", out.Decision.Reason)
	assert.Equal(t, "AI assistance is disabled for this assessment.", out.Decision.Message)
	assert.Zero(t, h.count(t, &types.HintRequest{}))
	assert.Zero(t, h.count(t, &types.AIUsage{}))
	assert.Zero(t, h.local.CallCount())
	assert.Eventually(t, func() bool {
		got := h.eventTypes()
		return len(got) == 1 && got[0] == realtime.EventHintRefused
	}, time.Second, 10*time.Millisecond)
}

func TestRequestHintTooSoon(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)

	in := hintInput(st.ID, act.ID)
	in.TimeSpent = 10
	out, err := h.hints.RequestHint(ctx, in)
	require.NoError(t, err)

	assert.False(t, out.Granted())
	assert.Equal(t, "too_soon", out.Decision.Reason)
	assert.Contains(t, out.Decision.Message, "50")
	assert.Zero(t, h.count(t, &types.HintRequest{}))
}

func TestRequestHintLevelOne(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)
	h.local.Reply("<think>plan</think>\n\n\n\n" + longHint)

	out, err := h.hints.RequestHint(ctx, hintInput(st.ID, act.ID))
	require.NoError(t, err)
	require.True(t, out.Granted())

	res := out.Hint
	assert.Equal(t, 1, res.Level)
	assert.Equal(t, "Guiding questions", res.LevelName)
	assert.Equal(t, longHint, res.Hint)
	assert.Equal(t, engine.ProviderLocal, res.Provider)
	assert.False(t, res.ComprehensionRequired)
	assert.Empty(t, res.ComprehensionQuestion)
	assert.False(t, res.ProviderSelection.Fallback)

	var stored types.HintRequest
	require.NoError(t, h.db.First(&stored, "id = ?", res.HintID).Error)
	assert.Equal(t, 1, stored.HintLevel)
	assert.Equal(t, longHint, stored.GeneratedHint)
	assert.Equal(t, "stuck", stored.StudentDescription)
	assert.Contains(t, string(stored.RequestEvaluation), "promptFingerprint")

	rows := h.usageRows(t)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Success)
	assert.Equal(t, types.RequestTypeHint, rows[0].RequestType)
	require.NotNil(t, rows[0].HintLevel)
	assert.Equal(t, 1, *rows[0].HintLevel)
	assert.Equal(t, 15, rows[0].TotalTokens)

	var tw types.StudentTwin
	require.NoError(t, h.db.First(&tw, "student_id = ?", st.ID).Error)
	assert.Equal(t, 1, tw.TotalAIRequests)

	calls := h.local.Calls()
	require.Len(t, calls, 1)
	assert.InDelta(t, hintTemperature, calls[0].Options.Temperature, 1e-9)
	assert.Equal(t, hintMaxTokens, calls[0].Options.MaxTokens)

	assert.Eventually(t, func() bool {
		got := h.eventTypes()
		return len(got) == 1 && got[0] == realtime.EventHintGranted
	}, time.Second, 10*time.Millisecond)
}

func TestRequestHintLadder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)
	h.local.Reply(longHint, longHint)

	first, err := h.hints.RequestHint(ctx, hintInput(st.ID, act.ID))
	require.NoError(t, err)
	require.True(t, first.Granted())

	in := hintInput(st.ID, act.ID)
	in.Code = "def solve(n):\n    return sum(n)"
	in.HintLevel = level(3)
	out, err := h.hints.RequestHint(ctx, in)
	require.NoError(t, err)
	assert.False(t, out.Granted())
	assert.Equal(t, "level_locked", out.Decision.Reason)

	testutil.SeedSubmission(t, ctx, h.db, st.ID, act.ID, false, "several digits")
	in.HintLevel = level(2)
	in.TimeSpent = 240
	out, err = h.hints.RequestHint(ctx, in)
	require.NoError(t, err)
	require.True(t, out.Granted())
	assert.Equal(t, 2, out.Hint.Level)
	assert.Contains(t, out.Decision.UnlockCriteriaMet, "attempts")

	// The second prompt carries the first hint.
	calls := h.local.Calls()
	require.Len(t, calls, 2)
	last := calls[1].Messages[len(calls[1].Messages)-1].Content
	assert.Contains(t, last, longHint)
}

func TestRequestHintNoCodeChange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)
	h.local.Reply(longHint)

	in := hintInput(st.ID, act.ID)
	_, err := h.hints.RequestHint(ctx, in)
	require.NoError(t, err)

	in.Code = "  " + in.Code + "\n"
	out, err := h.hints.RequestHint(ctx, in)
	require.NoError(t, err)
	assert.False(t, out.Granted())
	assert.Equal(t, "no_code_change", out.Decision.Reason)
	assert.Equal(t, 1, h.local.CallCount())
}

func TestComprehensionGate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)
	var l4 *types.HintRequest
	for lvl := 1; lvl <= 4; lvl++ {
		l4 = testutil.SeedHint(t, ctx, h.db, st.ID, act.ID, lvl, nil)
	}
	for i := 0; i < 4; i++ {
		testutil.SeedSubmission(t, ctx, h.db, st.ID, act.ID, false, "several digits")
	}

	in := hintInput(st.ID, act.ID)
	in.HintLevel = level(5)
	in.TimeSpent = 1000
	out, err := h.hints.RequestHint(ctx, in)
	require.NoError(t, err)
	assert.False(t, out.Granted())
	assert.Equal(t, "comprehension_required", out.Decision.Reason)
	assert.Equal(t, l4.ComprehensionQuestion, out.Decision.Question)
	assert.Contains(t, out.Decision.Message, l4.ComprehensionQuestion)

	h.local.Reply("PASS: You explained the stopping condition.")
	check, err := h.hints.CheckComprehension(ctx, st.ID, l4.ID, "n reaches zero after the last digit is removed")
	require.NoError(t, err)
	assert.True(t, check.Passed)
	assert.Equal(t, "You explained the stopping condition.", check.Feedback)
	assert.Equal(t, 1, check.Attempts)

	h.local.Reply(longHint, "Question: Why does the base case return zero for n = 0?")
	out, err = h.hints.RequestHint(ctx, in)
	require.NoError(t, err)
	require.True(t, out.Granted())
	assert.Equal(t, 5, out.Hint.Level)
	assert.True(t, out.Hint.ComprehensionRequired)
	assert.Equal(t, "Why does the base case return zero for n = 0?", out.Hint.ComprehensionQuestion)

	rows := h.usageRows(t)
	var comprehension int
	for _, r := range rows {
		if r.RequestType == types.RequestTypeComprehension {
			comprehension++
		}
	}
	assert.Equal(t, 2, comprehension)
}

func TestCheckComprehensionFailDoesNotUnlock(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)
	hint := testutil.SeedHint(t, ctx, h.db, st.ID, act.ID, 4, nil)

	h.local.Reply("FAIL - the answer does not mention the loop.", "I am not sure.", "Your answer would not pass; revisit the loop bound.")
	check, err := h.hints.CheckComprehension(ctx, st.ID, hint.ID, "no idea")
	require.NoError(t, err)
	assert.False(t, check.Passed)
	assert.Equal(t, 1, check.Attempts)

	// A reply without a verdict counts as a failure.
	check, err = h.hints.CheckComprehension(ctx, st.ID, hint.ID, "still no idea")
	require.NoError(t, err)
	assert.False(t, check.Passed)
	assert.Equal(t, 2, check.Attempts)

	// "pass" inside the feedback is not a verdict.
	check, err = h.hints.CheckComprehension(ctx, st.ID, hint.ID, "the loop stops")
	require.NoError(t, err)
	assert.False(t, check.Passed)
	assert.Equal(t, 3, check.Attempts)
	var stored types.HintRequest
	require.NoError(t, h.db.First(&stored, "id = ?", hint.ID).Error)
	assert.False(t, stored.Passed())

	_, err = h.hints.CheckComprehension(ctx, uuid.New(), hint.ID, "someone else")
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, e.Status)

	_, err = h.hints.CheckComprehension(ctx, st.ID, hint.ID, "   ")
	e, ok = apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, e.Status)
}

func TestRequestHintFallback(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)
	h.local.Fail(engine.NewError(engine.KindEmptyContent, engine.ProviderLocal, "llama3", errors.New("empty")))
	h.cloud.Reply(longHint)

	out, err := h.hints.RequestHint(ctx, hintInput(st.ID, act.ID))
	require.NoError(t, err)
	require.True(t, out.Granted())
	assert.Equal(t, engine.ProviderCloud, out.Hint.Provider)
	assert.True(t, out.Hint.ProviderSelection.Fallback)
	assert.Equal(t, 1, out.Hint.ProviderSelection.FallbackLevel)

	rows := h.usageRows(t)
	require.Len(t, rows, 2)
	var failed, succeeded int
	for _, r := range rows {
		if r.Success {
			succeeded++
			assert.True(t, r.FallbackUsed)
			assert.Equal(t, engine.ProviderCloud, r.Provider)
		} else {
			failed++
			assert.NotEmpty(t, r.ErrorMessage)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, succeeded)

	var stored types.HintRequest
	require.NoError(t, h.db.First(&stored, "id = ?", out.Hint.HintID).Error)
	assert.True(t, stored.FallbackUsed)
	assert.Equal(t, 1, stored.FallbackLevel)
}

func TestRequestHintShortOutputFallsBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)
	h.local.Reply("<think>a long chain of thought</think> ok")
	h.cloud.Reply(longHint)

	out, err := h.hints.RequestHint(ctx, hintInput(st.ID, act.ID))
	require.NoError(t, err)
	require.True(t, out.Granted())
	assert.Equal(t, engine.ProviderCloud, out.Hint.Provider)
	assert.Equal(t, longHint, out.Hint.Hint)
}

func TestRequestHintAllProvidersFail(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)
	boom := errors.New("boom")
	h.local.Fail(engine.NewError(engine.KindProviderError, engine.ProviderLocal, "llama3", boom))
	for i := 0; i < 3; i++ {
		h.cloud.Fail(engine.NewError(engine.KindProviderError, engine.ProviderCloud, "m", boom))
	}

	out, err := h.hints.RequestHint(ctx, hintInput(st.ID, act.ID))
	assert.Nil(t, out)
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, e.Status)
	assert.Equal(t, apierr.CodeAllProvidersFailed, e.Code)
	assert.Equal(t, "Failed to generate hint", e.Message)

	assert.Zero(t, h.count(t, &types.HintRequest{}))
	rows := h.usageRows(t)
	assert.Len(t, rows, 4)
	for _, r := range rows {
		assert.False(t, r.Success)
	}
}

func TestRequestHintNoProviders(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)
	h.local.SetAvailable(false)
	h.cloud.SetConfigured(false)

	_, err := h.hints.RequestHint(ctx, hintInput(st.ID, act.ID))
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, e.Status)
	assert.Equal(t, apierr.CodeNoProviders, e.Code)

	rows := h.usageRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "none", rows[0].Provider)
	assert.Equal(t, types.RequestTypeHint, rows[0].RequestType)
	assert.False(t, rows[0].Success)
	assert.NotEmpty(t, rows[0].ErrorMessage)
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "short", truncate("  short ", 10))
	assert.Equal(t, "abc", truncate("abcdef", 3))
	// "é" is two bytes; cutting at 2 would split it.
	got := truncate("aébc", 2)
	assert.Equal(t, "a", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "aé", truncate("aébc", 3))
}

func TestRequestHintValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)

	cases := []struct {
		name   string
		mutate func(in *HintInput)
		status int
	}{
		{"blank description", func(in *HintInput) { in.Description = "  " }, http.StatusBadRequest},
		{"missing activity id", func(in *HintInput) { in.ActivityID = uuid.Nil }, http.StatusBadRequest},
		{"level out of range", func(in *HintInput) { in.HintLevel = level(6) }, http.StatusBadRequest},
		{"unknown activity", func(in *HintInput) { in.ActivityID = uuid.New() }, http.StatusNotFound},
		{"unknown student", func(in *HintInput) { in.StudentID = uuid.New() }, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := hintInput(st.ID, act.ID)
			tc.mutate(&in)
			_, err := h.hints.RequestHint(ctx, in)
			e, ok := apierr.As(err)
			require.True(t, ok)
			assert.Equal(t, tc.status, e.Status)
		})
	}
	assert.Zero(t, h.local.CallCount())
}

func TestFeedback(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)
	hint := testutil.SeedHint(t, ctx, h.db, st.ID, act.ID, 1, nil)

	require.NoError(t, h.hints.MarkHelpfulness(ctx, st.ID, hint.ID, true))
	require.NoError(t, h.hints.MarkHelpfulness(ctx, st.ID, hint.ID, true))
	require.NoError(t, h.hints.MarkSuccess(ctx, st.ID, hint.ID, false))

	var stored types.HintRequest
	require.NoError(t, h.db.First(&stored, "id = ?", hint.ID).Error)
	require.NotNil(t, stored.WasHelpful)
	assert.True(t, *stored.WasHelpful)
	require.NotNil(t, stored.LedToSuccess)
	assert.False(t, *stored.LedToSuccess)

	err := h.hints.Feedback(ctx, st.ID, hint.ID, HintFeedback{})
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, e.Status)

	err = h.hints.MarkHelpfulness(ctx, uuid.New(), hint.ID, false)
	e, ok = apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, e.Status)
}

func TestListHints(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)

	empty, err := h.hints.ListHints(ctx, st.ID, act.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty.Hints)
	assert.Zero(t, empty.Count)

	testutil.SeedHint(t, ctx, h.db, st.ID, act.ID, 1, nil)
	testutil.SeedHint(t, ctx, h.db, st.ID, act.ID, 2, nil)

	list, err := h.hints.ListHints(ctx, st.ID, act.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, 2, list.HighestLevel)
	assert.Equal(t, 1, list.Hints[0].HintLevel)

	_, err = h.hints.ListHints(ctx, st.ID, uuid.New())
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, e.Status)
}

func TestRecommendLevel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 3)
	testutil.SeedHint(t, ctx, h.db, st.ID, act.ID, 1, nil)
	testutil.SeedHint(t, ctx, h.db, st.ID, act.ID, 2, nil)
	for i := 0; i < 3; i++ {
		testutil.SeedSubmission(t, ctx, h.db, st.ID, act.ID, false)
	}

	rec, err := h.hints.RecommendLevel(ctx, st.ID, act.ID, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.RecommendedLevel)
	assert.Equal(t, 3, rec.MaxAllowedLevel)
	assert.Equal(t, 2, rec.HintsUsed)
	assert.Equal(t, 10, rec.MaxHints)
	assert.False(t, rec.IsLockdown)
	assert.Equal(t, 2, rec.Suggestion.SuggestedLevel)

	rec, err = h.hints.RecommendLevel(ctx, st.ID, act.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.RecommendedLevel)

	locked := testutil.SeedActivity(t, ctx, h.db, 0)
	rec, err = h.hints.RecommendLevel(ctx, st.ID, locked.ID, 600, 5)
	require.NoError(t, err)
	assert.True(t, rec.IsLockdown)
	assert.Zero(t, rec.RecommendedLevel)
	assert.Zero(t, rec.MaxAllowedLevel)
}

func TestSocratic(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := testutil.SeedStudent(t, ctx, h.db)
	act := testutil.SeedActivity(t, ctx, h.db, 5)
	reply := "What value does n have when your loop finishes?"
	h.local.Reply(reply)

	var streamed string
	out, err := h.hints.Socratic(ctx, SocraticInput{
		StudentID:  st.ID,
		ActivityID: act.ID,
		History:    []engine.Message{{Role: engine.RoleUser, Content: "why is my answer off by one?"}},
	}, func(chunk string) { streamed += chunk })
	require.NoError(t, err)
	assert.Nil(t, out.Refusal)
	assert.Equal(t, reply, out.Content)
	assert.Equal(t, reply, streamed)

	rows := h.usageRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, types.RequestTypeSocratic, rows[0].RequestType)

	locked := testutil.SeedActivity(t, ctx, h.db, 0)
	out, err = h.hints.Socratic(ctx, SocraticInput{
		StudentID:  st.ID,
		ActivityID: locked.ID,
		History:    []engine.Message{{Role: engine.RoleUser, Content: "help"}},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, out.Refusal)
	assert.Equal(t, "lockdown", out.Refusal.Reason)
	assert.Equal(t, 1, h.local.CallCount())

	_, err = h.hints.Socratic(ctx, SocraticInput{StudentID: st.ID, ActivityID: act.ID}, nil)
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, e.Status)
}
