package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/labtwin-backend/internal/domain"
	"github.com/yungbote/labtwin-backend/internal/inference/engine"
	"github.com/yungbote/labtwin-backend/internal/inference/router"
	"github.com/yungbote/labtwin-backend/internal/learning/policy"
	"github.com/yungbote/labtwin-backend/internal/learning/prompts"
	learningtwin "github.com/yungbote/labtwin-backend/internal/learning/twin"
	"github.com/yungbote/labtwin-backend/internal/platform/apierr"
)

const (
	socraticTemperature = 0.5
	socraticMaxTokens   = 300
	maxSocraticTurns    = 20
)

type SocraticInput struct {
	StudentID   uuid.UUID
	ActivityID  uuid.UUID
	Code        string
	ErrorOutput string
	// History is the conversation so far; only user and assistant turns
	// are forwarded.
	History  []engine.Message
	Provider string
}

// SocraticOutcome is either a refusal or the streamed reply.
type SocraticOutcome struct {
	Refusal  *policy.Decision `json:"refusal,omitempty"`
	Content  string           `json:"content,omitempty"`
	Provider string           `json:"provider,omitempty"`
	Model    string           `json:"model,omitempty"`
}

func (s *hintService) Socratic(ctx context.Context, in SocraticInput, onChunk func(string)) (*SocraticOutcome, error) {
	if in.StudentID == uuid.Nil || in.ActivityID == uuid.Nil {
		return nil, apierr.Validation("studentId and activityId are required")
	}
	var lastUser string
	for _, m := range in.History {
		if m.Role == engine.RoleUser {
			lastUser = strings.TrimSpace(m.Content)
		}
	}
	if lastUser == "" {
		return nil, apierr.Validation("a user message is required")
	}
	history := in.History
	if len(history) > maxSocraticTurns {
		history = history[len(history)-maxSocraticTurns:]
	}

	act, err := s.activities.GetByID(ctx, nil, in.ActivityID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if act == nil {
		return nil, apierr.NotFound("activity")
	}
	if act.AIAssistanceLevel <= 0 {
		d := policy.Decision{
			Reason:  string(prompts.RefusalLockdown),
			Message: s.prompts.BuildRefusalMessage(prompts.RefusalLockdown, nil),
		}
		s.metrics.IncPolicyDecision(false, d.Reason)
		return &SocraticOutcome{Refusal: &d}, nil
	}
	tw, err := s.twins.GetByStudentID(ctx, nil, in.StudentID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}

	pctx := prompts.Context{
		ProblemTitle:       act.Title,
		ProblemDescription: act.Description,
		Topic:              act.Topic,
		Difficulty:         act.Difficulty,
		Language:           act.Language,
		StudentCode:        in.Code,
		ErrorOutput:        in.ErrorOutput,
		Persona:            learningtwin.Persona(tw),
	}
	messages := s.prompts.SocraticMessages(pctx, history)

	// The stream follows the client; a disconnect ends generation.
	res, err := s.ai.Stream(ctx, messages, onChunk, engine.Options{Temperature: socraticTemperature, MaxTokens: socraticMaxTokens}, router.RouteOptions{
		Provider:    in.Provider,
		RequestType: types.RequestTypeSocratic,
	})
	activityID := in.ActivityID
	s.writeUsage(context.WithoutCancel(ctx), usageRows(in.StudentID, &activityID, types.RequestTypeSocratic, nil, res, err))
	if err != nil {
		s.logFor(ctx).Warn("Socratic stream failed", "student_id", in.StudentID, "activity_id", in.ActivityID, "error", err)
		return nil, providerError(err, "stream reply")
	}
	if s.twin != nil {
		if err := s.twin.BumpAIRequest(context.WithoutCancel(ctx), in.StudentID); err != nil {
			s.logFor(ctx).Warn("Twin bump failed", "student_id", in.StudentID, "error", err)
		}
	}
	return &SocraticOutcome{Content: res.Content, Provider: res.Provider, Model: res.Model}, nil
}
