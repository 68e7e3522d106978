package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/labtwin-backend/internal/data/repos"
	types "github.com/yungbote/labtwin-backend/internal/domain"
	"github.com/yungbote/labtwin-backend/internal/inference/engine"
	"github.com/yungbote/labtwin-backend/internal/inference/router"
	"github.com/yungbote/labtwin-backend/internal/learning/policy"
	"github.com/yungbote/labtwin-backend/internal/learning/prompts"
	learningtwin "github.com/yungbote/labtwin-backend/internal/learning/twin"
	"github.com/yungbote/labtwin-backend/internal/observability"
	"github.com/yungbote/labtwin-backend/internal/platform/apierr"
	"github.com/yungbote/labtwin-backend/internal/platform/ctxutil"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
	"github.com/yungbote/labtwin-backend/internal/realtime"
	"github.com/yungbote/labtwin-backend/internal/realtime/bus"
)

const (
	hintTemperature     = 0.4
	hintMaxTokens       = 600
	questionTemperature = 0.3
	questionMaxTokens   = 40
	graderTemperature   = 0.3
	graderMaxTokens     = 150

	recentSubmissions = 3
	recentHints       = 3
)

type HintInput struct {
	StudentID  uuid.UUID
	ActivityID uuid.UUID
	Code       string
	// ErrorOutput is the latest run output shown to the student.
	ErrorOutput string
	// HintLevel nil means the recommended level.
	HintLevel   *int
	Description string
	WhatTried   string
	TimeSpent   int
	// Provider optionally pins "local" or "cloud".
	Provider      string
	AllowFallback bool
}

type HintResult struct {
	HintID                uuid.UUID        `json:"hintId"`
	Hint                  string           `json:"hint"`
	Level                 int              `json:"level"`
	LevelName             string           `json:"levelName,omitempty"`
	Provider              string           `json:"provider"`
	Model                 string           `json:"model,omitempty"`
	ResponseTime          int64            `json:"responseTime"`
	ComprehensionRequired bool             `json:"comprehensionRequired"`
	ComprehensionQuestion string           `json:"comprehensionQuestion,omitempty"`
	Encouragement         string           `json:"encouragement,omitempty"`
	ProviderSelection     router.Selection `json:"providerSelection"`
}

// HintOutcome carries either a refusal (Hint nil) or a generated hint.
type HintOutcome struct {
	Decision policy.Decision
	Hint     *HintResult
}

func (o *HintOutcome) Granted() bool { return o != nil && o.Hint != nil }

type ComprehensionResult struct {
	Passed   bool   `json:"passed"`
	Feedback string `json:"feedback"`
	Attempts int    `json:"attempts"`
}

type HintFeedback struct {
	WasHelpful   *bool
	LedToSuccess *bool
}

type HintList struct {
	Hints        []*types.HintRequest `json:"hints"`
	Count        int                  `json:"count"`
	HighestLevel int                  `json:"highestLevel"`
}

type LevelRecommendation struct {
	RecommendedLevel int               `json:"recommendedLevel"`
	MaxAllowedLevel  int               `json:"maxAllowedLevel"`
	HintsUsed        int               `json:"hintsUsed"`
	MaxHints         int               `json:"maxHints"`
	IsLockdown       bool              `json:"isLockdown"`
	Suggestion       policy.Suggestion `json:"suggestion"`
}

type HintService interface {
	RequestHint(ctx context.Context, in HintInput) (*HintOutcome, error)
	CheckComprehension(ctx context.Context, studentID, hintID uuid.UUID, answer string) (*ComprehensionResult, error)
	MarkHelpfulness(ctx context.Context, studentID, hintID uuid.UUID, helpful bool) error
	MarkSuccess(ctx context.Context, studentID, hintID uuid.UUID, ledToSuccess bool) error
	Feedback(ctx context.Context, studentID, hintID uuid.UUID, fb HintFeedback) error
	ListHints(ctx context.Context, studentID, activityID uuid.UUID) (*HintList, error)
	// RecommendLevel derives attempts from submissions when attempts < 0.
	RecommendLevel(ctx context.Context, studentID, activityID uuid.UUID, timeSpent, attempts int) (*LevelRecommendation, error)
	Socratic(ctx context.Context, in SocraticInput, onChunk func(string)) (*SocraticOutcome, error)
}

type hintService struct {
	db          *gorm.DB
	log         *logger.Logger
	students    repos.StudentRepo
	activities  repos.ActivityRepo
	submissions repos.SubmissionRepo
	hints       repos.HintRequestRepo
	usage       repos.AIUsageRepo
	twins       repos.StudentTwinRepo
	comps       repos.CompetencyRepo
	twin        TwinService
	ai          Completer
	prompts     *prompts.Builder
	policy      *policy.Engine
	metrics     *observability.Metrics
	events      publisher
}

func NewHintService(
	db *gorm.DB,
	baseLog *logger.Logger,
	studentRepo repos.StudentRepo,
	activityRepo repos.ActivityRepo,
	submissionRepo repos.SubmissionRepo,
	hintRepo repos.HintRequestRepo,
	usageRepo repos.AIUsageRepo,
	twinRepo repos.StudentTwinRepo,
	competencyRepo repos.CompetencyRepo,
	twinService TwinService,
	ai Completer,
	builder *prompts.Builder,
	eventBus bus.Bus,
	metrics *observability.Metrics,
) HintService {
	serviceLog := baseLog.With("service", "HintService")
	if builder == nil {
		builder = prompts.Default()
	}
	return &hintService{
		db:          db,
		log:         serviceLog,
		students:    studentRepo,
		activities:  activityRepo,
		submissions: submissionRepo,
		hints:       hintRepo,
		usage:       usageRepo,
		twins:       twinRepo,
		comps:       competencyRepo,
		twin:        twinService,
		ai:          ai,
		prompts:     builder,
		policy:      policy.New(builder),
		metrics:     metrics,
		events:      publisher{bus: eventBus, log: serviceLog, metrics: metrics},
	}
}

// logFor tags lines with the request's trace ids when ctx carries them.
func (s *hintService) logFor(ctx context.Context) *logger.Logger {
	return s.log.With(ctxutil.LogFields(ctx)...)
}

// snapshot is everything read before a decision.
type snapshot struct {
	student     *types.Student
	activity    *types.Activity
	latest      *types.HintRequest
	twin        *types.StudentTwin
	history     policy.History
	submissions []*types.Submission
	hints       []*types.HintRequest
}

// load issues the independent reads concurrently and waits for all.
func (s *hintService) load(ctx context.Context, studentID, activityID uuid.UUID) (*snapshot, error) {
	snap := &snapshot{}
	var comps []*types.StudentCompetency
	var pending *types.HintRequest

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.student, err = s.students.GetByID(gctx, nil, studentID)
		return err
	})
	g.Go(func() (err error) {
		snap.activity, err = s.activities.GetWithTestCases(gctx, nil, activityID)
		return err
	})
	g.Go(func() (err error) {
		snap.latest, err = s.hints.GetLatest(gctx, nil, studentID, activityID)
		return err
	})
	g.Go(func() (err error) {
		snap.twin, err = s.twins.GetByStudentID(gctx, nil, studentID)
		return err
	})
	g.Go(func() (err error) {
		snap.hints, err = s.hints.ListByStudentAndActivity(gctx, nil, studentID, activityID)
		return err
	})
	g.Go(func() (err error) {
		snap.history.Attempts, err = s.submissions.CountByStudentAndActivity(gctx, nil, studentID, activityID)
		return err
	})
	g.Go(func() (err error) {
		snap.submissions, err = s.submissions.ListRecent(gctx, nil, studentID, activityID, recentSubmissions)
		return err
	})
	g.Go(func() (err error) {
		snap.history.Level4Passed, err = s.hints.HasPassedAtLevel(gctx, nil, studentID, activityID, 4)
		return err
	})
	g.Go(func() (err error) {
		pending, err = s.hints.LatestUnpassedAtLevel(gctx, nil, studentID, activityID, 4)
		return err
	})
	g.Go(func() (err error) {
		comps, err = s.comps.ListByStudent(gctx, nil, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apierr.Persistence(err)
	}

	if snap.student == nil {
		return nil, apierr.NotFound("student")
	}
	if snap.activity == nil {
		return nil, apierr.NotFound("activity")
	}
	snap.history.HintCount = len(snap.hints)
	for _, h := range snap.hints {
		snap.history.HighestLevel = max(snap.history.HighestLevel, h.HintLevel)
	}
	if pending != nil {
		snap.history.PendingQuestion = pending.ComprehensionQuestion
	}
	snap.history.AvgProficiency = learningtwin.AvgProficiency(comps)
	return snap, nil
}

func (s *hintService) RequestHint(ctx context.Context, in HintInput) (*HintOutcome, error) {
	if in.StudentID == uuid.Nil {
		return nil, apierr.Validation("studentId is required")
	}
	if in.ActivityID == uuid.Nil {
		return nil, apierr.Validation("activityId is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, apierr.Validation("description is required")
	}
	if in.HintLevel != nil && (*in.HintLevel < 1 || *in.HintLevel > policy.MaxLevel) {
		return nil, apierr.Validation("hintLevel must be between 1 and 5")
	}
	timeSpent := max(in.TimeSpent, 0)

	snap, err := s.load(ctx, in.StudentID, in.ActivityID)
	if err != nil {
		return nil, err
	}
	act := snap.activity

	requested := policy.RecommendedLevel(snap.history, act.AIAssistanceLevel, timeSpent, snap.history.Attempts)
	if in.HintLevel != nil {
		requested = *in.HintLevel
	}
	req := policy.Request{
		StudentID:        in.StudentID,
		ActivityID:       in.ActivityID,
		RequestedLevel:   requested,
		Ceiling:          act.AIAssistanceLevel,
		TimeSpentSeconds: timeSpent,
		CurrentCode:      in.Code,
		History:          snap.history,
	}
	if snap.latest != nil {
		last := snap.latest.StudentCode
		req.LastHintCode = &last
	}

	decision := s.policy.Evaluate(req)
	s.metrics.IncPolicyDecision(decision.Granted, decision.Reason)
	if !decision.Granted {
		s.logFor(ctx).Info("Hint refused", "student_id", in.StudentID, "activity_id", in.ActivityID, "reason", decision.Reason, "level", decision.ActualLevel)
		s.events.publish(ctx, realtime.EventHintRefused, in.StudentID, in.ActivityID, realtime.HintRefused{Reason: decision.Reason, Level: decision.ActualLevel})
		return &HintOutcome{Decision: decision}, nil
	}
	level := decision.ActualLevel

	pctx := s.hintContext(snap, in)
	prompt, err := s.prompts.HintPrompt(level, pctx)
	if err != nil {
		return nil, apierr.New(500, apierr.CodeInternal, err)
	}

	// Provider calls and the writes after them outlive a disconnected client.
	work := context.WithoutCancel(ctx)
	activityID := in.ActivityID
	levelRef := level

	res, err := s.ai.Complete(work, prompt.Messages(), engine.Options{Temperature: hintTemperature, MaxTokens: hintMaxTokens}, router.RouteOptions{
		Provider:      in.Provider,
		AllowFallback: in.AllowFallback,
		RequestType:   types.RequestTypeHint,
		Accept:        acceptHint,
	})
	usage := usageRows(in.StudentID, &activityID, types.RequestTypeHint, &levelRef, res, err)
	if err != nil {
		s.writeUsage(work, usage)
		s.logFor(ctx).Error("Hint generation failed", "student_id", in.StudentID, "activity_id", in.ActivityID, "level", level, "error", err)
		return nil, providerError(err, "generate hint")
	}
	hintText := prompts.Clean(res.Content)

	var question string
	if level >= 4 {
		var qUsage []*types.AIUsage
		question, qUsage = s.comprehensionQuestion(work, in, level, hintText, pctx, res.Provider)
		usage = append(usage, qUsage...)
	}

	row := &types.HintRequest{
		StudentID:             in.StudentID,
		ActivityID:            in.ActivityID,
		HintLevel:             level,
		StudentDescription:    strings.TrimSpace(in.Description),
		StudentAttempt:        strings.TrimSpace(in.WhatTried),
		StudentCode:           in.Code,
		ErrorOutput:           in.ErrorOutput,
		TimeSpentSeconds:      timeSpent,
		GeneratedHint:         hintText,
		Provider:              res.Provider,
		Model:                 res.Model,
		ResponseTimeMs:        res.ResponseTime.Milliseconds(),
		TokenUsage:            jsonOrNil(res.Tokens),
		FallbackUsed:          res.Selection.Fallback,
		SelectReason:          res.Selection.Reason,
		FallbackLevel:         res.Selection.FallbackLevel,
		ComprehensionRequired: level >= 4,
		ComprehensionQuestion: question,
		RequestEvaluation: jsonOrNil(map[string]any{
			"requestedLevel":    requested,
			"reason":            decision.Reason,
			"clamped":           decision.Clamped,
			"unlockCriteriaMet": decision.UnlockCriteriaMet,
			"promptName":        prompt.Name,
			"promptVersion":     prompt.Version,
			"promptFingerprint": prompt.Fingerprint(),
			"persona":           pctx.Persona,
		}),
	}
	if err := s.hints.Create(work, nil, row); err != nil {
		s.writeUsage(work, usage)
		s.logFor(ctx).Error("Hint persist failed", "student_id", in.StudentID, "activity_id", in.ActivityID, "error", err)
		return nil, apierr.Persistence(fmt.Errorf("persist hint: %w", err))
	}

	g, gctx := errgroup.WithContext(work)
	g.Go(func() error {
		s.writeUsage(gctx, usage)
		return nil
	})
	g.Go(func() error {
		if s.twin == nil {
			return nil
		}
		if err := s.twin.BumpAIRequest(gctx, in.StudentID); err != nil {
			s.logFor(ctx).Warn("Twin bump failed", "student_id", in.StudentID, "error", err)
		}
		return nil
	})
	_ = g.Wait()

	s.events.publish(ctx, realtime.EventHintGranted, in.StudentID, in.ActivityID, realtime.HintGranted{
		HintID:        row.ID,
		Level:         level,
		Provider:      res.Provider,
		FallbackUsed:  res.Selection.Fallback,
		Comprehension: row.ComprehensionRequired,
	})
	s.logFor(ctx).Info("Hint granted", "student_id", in.StudentID, "activity_id", in.ActivityID, "level", level, "provider", res.Provider, "fallback", res.Selection.Fallback)

	return &HintOutcome{
		Decision: decision,
		Hint: &HintResult{
			HintID:                row.ID,
			Hint:                  hintText,
			Level:                 level,
			LevelName:             s.prompts.LevelName(level),
			Provider:              res.Provider,
			Model:                 res.Model,
			ResponseTime:          res.ResponseTime.Milliseconds(),
			ComprehensionRequired: row.ComprehensionRequired,
			ComprehensionQuestion: question,
			Encouragement:         decision.Encouragement,
			ProviderSelection:     res.Selection,
		},
	}, nil
}

func acceptHint(c *engine.Completion) error {
	if len(prompts.Clean(c.Content)) < prompts.MinHintLength {
		return errors.New("hint shorter than minimum after cleaning")
	}
	return nil
}

// comprehensionQuestion asks for one check question about the hint and
// falls back to the level's canned question on any failure. The call is
// pinned to the provider that produced the hint.
func (s *hintService) comprehensionQuestion(ctx context.Context, in HintInput, level int, hint string, pctx prompts.Context, provider string) (string, []*types.AIUsage) {
	activityID := in.ActivityID
	levelRef := level
	qp := s.prompts.QuestionPrompt(level, hint, pctx)
	res, err := s.ai.Complete(ctx, qp.Messages(), engine.Options{Temperature: questionTemperature, MaxTokens: questionMaxTokens}, router.RouteOptions{
		Provider:      provider,
		AllowFallback: true,
		RequestType:   types.RequestTypeComprehension,
	})
	rows := usageRows(in.StudentID, &activityID, types.RequestTypeComprehension, &levelRef, res, err)
	if err == nil {
		if q, ok := prompts.ExtractQuestion(res.Content); ok {
			return q, rows
		}
	} else {
		s.logFor(ctx).Warn("Comprehension question generation failed", "student_id", in.StudentID, "level", level, "error", err)
	}
	return s.prompts.FallbackQuestion(level), rows
}

func (s *hintService) hintContext(snap *snapshot, in HintInput) prompts.Context {
	act := snap.activity
	c := prompts.Context{
		ProblemTitle:       act.Title,
		ProblemDescription: act.Description,
		Topic:              act.Topic,
		Difficulty:         act.Difficulty,
		Language:           act.Language,
		Examples:           act.Examples,
		TestCases:          formatTestCases(act.TestCases),
		StudentCode:        in.Code,
		ErrorOutput:        in.ErrorOutput,
		StudentDescription: strings.TrimSpace(in.Description),
		WhatTried:          strings.TrimSpace(in.WhatTried),
		RecentErrors:       formatSubmissions(snap.submissions),
		PreviousHints:      formatPreviousHints(snap.hints),
		Persona:            learningtwin.Persona(snap.twin),
	}
	if snap.twin != nil && snap.twin.CodingPattern != "" && snap.twin.CodingPattern != "unknown" {
		c.LearningStyle = snap.twin.CodingPattern
	}
	return c
}

func formatTestCases(cases []types.TestCase) string {
	var b strings.Builder
	for _, tc := range cases {
		if tc.Hidden {
			continue
		}
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			name = fmt.Sprintf("Test %d", tc.Position+1)
		}
		fmt.Fprintf(&b, "- %s: input %q, expected %q\n", name, tc.Input, tc.ExpectedOutput)
	}
	return strings.TrimSpace(b.String())
}

func formatSubmissions(subs []*types.Submission) string {
	var b strings.Builder
	for i, sub := range subs {
		if sub == nil {
			continue
		}
		status := "passed"
		if !sub.Passed {
			status = "failed"
		}
		fmt.Fprintf(&b, "Attempt %d (%s, %d/%d tests)", i+1, status, sub.TestsPassed, sub.TestsTotal)
		var failed []string
		if len(sub.FailedTests) > 0 {
			_ = json.Unmarshal(sub.FailedTests, &failed)
		}
		if len(failed) > 0 {
			fmt.Fprintf(&b, "; failing: %s", strings.Join(failed, ", "))
		}
		if e := strings.TrimSpace(sub.ErrorOutput); e != "" {
			fmt.Fprintf(&b, "; error: %s", truncate(e, 300))
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// formatPreviousHints joins the most recent hints, oldest first.
func formatPreviousHints(hints []*types.HintRequest) string {
	start := max(len(hints)-recentHints, 0)
	parts := make([]string, 0, recentHints)
	for _, h := range hints[start:] {
		if t := strings.TrimSpace(h.GeneratedHint); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n---\n")
}

func jsonOrNil(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// writeUsage is best-effort: a failed usage write never fails the request.
func (s *hintService) writeUsage(ctx context.Context, rows []*types.AIUsage) {
	if len(rows) == 0 || s.usage == nil {
		return
	}
	if err := s.usage.Create(ctx, nil, rows...); err != nil {
		s.logFor(ctx).Warn("AI usage write failed", "rows", len(rows), "error", err)
	}
}

func (s *hintService) ownedHint(ctx context.Context, studentID, hintID uuid.UUID) (*types.HintRequest, error) {
	if hintID == uuid.Nil {
		return nil, apierr.Validation("hintId is required")
	}
	h, err := s.hints.GetByID(ctx, nil, hintID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if h == nil || h.StudentID != studentID {
		return nil, apierr.NotFound("hint")
	}
	return h, nil
}

func (s *hintService) CheckComprehension(ctx context.Context, studentID, hintID uuid.UUID, answer string) (*ComprehensionResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, apierr.Validation("answer is required")
	}
	h, err := s.ownedHint(ctx, studentID, hintID)
	if err != nil {
		return nil, err
	}
	question := strings.TrimSpace(h.ComprehensionQuestion)
	if question == "" {
		question = s.prompts.FallbackQuestion(h.HintLevel)
	}

	work := context.WithoutCancel(ctx)
	gp := s.prompts.GraderPrompt(question, answer, h.GeneratedHint)
	res, err := s.ai.Complete(work, gp.Messages(), engine.Options{Temperature: graderTemperature, MaxTokens: graderMaxTokens}, router.RouteOptions{
		RequestType: types.RequestTypeComprehension,
	})
	activityID, level := h.ActivityID, h.HintLevel
	s.writeUsage(work, usageRows(studentID, &activityID, types.RequestTypeComprehension, &level, res, err))
	if err != nil {
		s.logFor(ctx).Error("Comprehension grading failed", "hint_id", hintID, "error", err)
		return nil, providerError(err, "check comprehension")
	}

	passed, feedback, ok := prompts.ParseGrade(res.Content)
	if !ok {
		s.logFor(ctx).Warn("Grader reply had no verdict", "hint_id", hintID)
	}
	updated, err := s.hints.RecordComprehension(work, nil, hintID, answer, passed)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if updated == nil {
		return nil, apierr.NotFound("hint")
	}
	s.metrics.IncComprehension(passed)
	s.events.publish(ctx, realtime.EventComprehensionChecked, studentID, h.ActivityID, realtime.ComprehensionChecked{
		HintID:   hintID,
		Passed:   passed,
		Attempts: updated.ComprehensionAttempts,
	})
	return &ComprehensionResult{Passed: passed, Feedback: feedback, Attempts: updated.ComprehensionAttempts}, nil
}

func (s *hintService) MarkHelpfulness(ctx context.Context, studentID, hintID uuid.UUID, helpful bool) error {
	return s.Feedback(ctx, studentID, hintID, HintFeedback{WasHelpful: &helpful})
}

func (s *hintService) MarkSuccess(ctx context.Context, studentID, hintID uuid.UUID, ledToSuccess bool) error {
	return s.Feedback(ctx, studentID, hintID, HintFeedback{LedToSuccess: &ledToSuccess})
}

func (s *hintService) Feedback(ctx context.Context, studentID, hintID uuid.UUID, fb HintFeedback) error {
	if fb.WasHelpful == nil && fb.LedToSuccess == nil {
		return apierr.Validation("wasHelpful or ledToSuccess is required")
	}
	if _, err := s.ownedHint(ctx, studentID, hintID); err != nil {
		return err
	}
	if fb.WasHelpful != nil {
		if err := s.hints.SetHelpful(ctx, nil, hintID, *fb.WasHelpful); err != nil {
			return s.flagError(err)
		}
	}
	if fb.LedToSuccess != nil {
		if err := s.hints.SetLedToSuccess(ctx, nil, hintID, *fb.LedToSuccess); err != nil {
			return s.flagError(err)
		}
	}
	return nil
}

func (s *hintService) flagError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.NotFound("hint")
	}
	return apierr.Persistence(err)
}

func (s *hintService) ListHints(ctx context.Context, studentID, activityID uuid.UUID) (*HintList, error) {
	act, err := s.activities.GetByID(ctx, nil, activityID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if act == nil {
		return nil, apierr.NotFound("activity")
	}
	hints, err := s.hints.ListByStudentAndActivity(ctx, nil, studentID, activityID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	out := &HintList{Hints: hints, Count: len(hints)}
	if out.Hints == nil {
		out.Hints = []*types.HintRequest{}
	}
	for _, h := range hints {
		out.HighestLevel = max(out.HighestLevel, h.HintLevel)
	}
	return out, nil
}

func (s *hintService) RecommendLevel(ctx context.Context, studentID, activityID uuid.UUID, timeSpent, attempts int) (*LevelRecommendation, error) {
	snap, err := s.load(ctx, studentID, activityID)
	if err != nil {
		return nil, err
	}
	if attempts < 0 {
		attempts = snap.history.Attempts
	}
	ceiling := snap.activity.AIAssistanceLevel
	rec := &LevelRecommendation{
		RecommendedLevel: policy.RecommendedLevel(snap.history, ceiling, max(timeSpent, 0), attempts),
		MaxAllowedLevel:  max(ceiling, 0),
		HintsUsed:        snap.history.HintCount,
		MaxHints:         policy.MaxHintsPerActivity,
		IsLockdown:       ceiling <= 0,
	}
	var levelSum int
	for _, h := range snap.hints {
		levelSum += h.HintLevel
	}
	var avgLevel float64
	if len(snap.hints) > 0 {
		avgLevel = float64(levelSum) / float64(len(snap.hints))
	}
	rec.Suggestion = policy.Suggest(learningtwin.ProfileOf(snap.twin, avgLevel), max(timeSpent, 0), attempts)
	return rec, nil
}
