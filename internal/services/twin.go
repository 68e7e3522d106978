package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/labtwin-backend/internal/data/repos"
	types "github.com/yungbote/labtwin-backend/internal/domain"
	learningtwin "github.com/yungbote/labtwin-backend/internal/learning/twin"
	"github.com/yungbote/labtwin-backend/internal/observability"
	"github.com/yungbote/labtwin-backend/internal/platform/apierr"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
	"github.com/yungbote/labtwin-backend/internal/realtime"
	"github.com/yungbote/labtwin-backend/internal/realtime/bus"
)

// TwinView is the twin as served to its student.
type TwinView struct {
	Twin           *types.StudentTwin             `json:"twin"`
	Competencies   []*types.StudentCompetency     `json:"competencies"`
	Persona        string                         `json:"persona"`
	ShadowPersona  string                         `json:"shadowPersona"`
	Prediction     learningtwin.SuccessPrediction `json:"prediction"`
	NextDifficulty learningtwin.DifficultyAdvice  `json:"nextDifficulty"`
}

type TwinService interface {
	GetOrCreate(ctx context.Context, studentID uuid.UUID) (*types.StudentTwin, error)
	Get(ctx context.Context, studentID uuid.UUID) (*TwinView, error)
	BumpAIRequest(ctx context.Context, studentID uuid.UUID) error
	ApplySubmission(ctx context.Context, studentID, activityID uuid.UUID, in realtime.SubmissionEvaluated) (*types.StudentTwin, error)
	RecordBehavior(ctx context.Context, studentID uuid.UUID, sample learningtwin.BehaviorSample) (*types.StudentTwin, error)
	RecordCodeRevision(ctx context.Context, studentID uuid.UUID, rev learningtwin.Revision) (*types.StudentTwin, error)
	// StartConsumer applies submission_evaluated events from b until ctx
	// is done.
	StartConsumer(ctx context.Context, b bus.Bus) error
}

type twinService struct {
	db           *gorm.DB
	log          *logger.Logger
	students     repos.StudentRepo
	activities   repos.ActivityRepo
	hints        repos.HintRequestRepo
	twins        repos.StudentTwinRepo
	competencies repos.CompetencyRepo
	events       publisher
	now          func() time.Time

	// locks serialises read-modify-write cycles per student in this
	// process; across processes the last writer wins per column.
	locks sync.Map
}

func NewTwinService(
	db *gorm.DB,
	baseLog *logger.Logger,
	studentRepo repos.StudentRepo,
	activityRepo repos.ActivityRepo,
	hintRepo repos.HintRequestRepo,
	twinRepo repos.StudentTwinRepo,
	competencyRepo repos.CompetencyRepo,
	eventBus bus.Bus,
	metrics *observability.Metrics,
) TwinService {
	serviceLog := baseLog.With("service", "TwinService")
	return &twinService{
		db:           db,
		log:          serviceLog,
		students:     studentRepo,
		activities:   activityRepo,
		hints:        hintRepo,
		twins:        twinRepo,
		competencies: competencyRepo,
		events:       publisher{bus: eventBus, log: serviceLog, metrics: metrics},
		now:          time.Now,
	}
}

func (s *twinService) lock(studentID uuid.UUID) func() {
	v, _ := s.locks.LoadOrStore(studentID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *twinService) requireStudent(ctx context.Context, studentID uuid.UUID) error {
	if studentID == uuid.Nil {
		return apierr.Validation("studentId is required")
	}
	st, err := s.students.GetByID(ctx, nil, studentID)
	if err != nil {
		return apierr.Persistence(err)
	}
	if st == nil {
		return apierr.NotFound("student")
	}
	return nil
}

func (s *twinService) GetOrCreate(ctx context.Context, studentID uuid.UUID) (*types.StudentTwin, error) {
	if err := s.requireStudent(ctx, studentID); err != nil {
		return nil, err
	}
	tw, err := s.twins.GetOrCreate(ctx, nil, studentID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return tw, nil
}

func (s *twinService) Get(ctx context.Context, studentID uuid.UUID) (*TwinView, error) {
	tw, err := s.GetOrCreate(ctx, studentID)
	if err != nil {
		return nil, err
	}
	comps, err := s.competencies.ListByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if comps == nil {
		comps = []*types.StudentCompetency{}
	}
	return &TwinView{
		Twin:           tw,
		Competencies:   comps,
		Persona:        learningtwin.Persona(tw),
		ShadowPersona:  learningtwin.ShadowPersona(tw),
		Prediction:     learningtwin.PredictSuccess(tw, comps, s.now().UTC()),
		NextDifficulty: learningtwin.RecommendDifficulty(tw),
	}, nil
}

func (s *twinService) BumpAIRequest(ctx context.Context, studentID uuid.UUID) error {
	return s.twins.BumpAIRequests(ctx, nil, studentID, s.now().UTC())
}

// ApplySubmission folds one judged submission into the topic competency
// and the twin: activity counters, dependency, velocity and insights.
func (s *twinService) ApplySubmission(ctx context.Context, studentID, activityID uuid.UUID, in realtime.SubmissionEvaluated) (*types.StudentTwin, error) {
	if studentID == uuid.Nil {
		return nil, apierr.Validation("studentId is required")
	}
	topic := strings.TrimSpace(in.Topic)
	difficulty := strings.TrimSpace(in.Difficulty)
	if (topic == "" || difficulty == "") && activityID != uuid.Nil {
		act, err := s.activities.GetByID(ctx, nil, activityID)
		if err != nil {
			return nil, apierr.Persistence(err)
		}
		if act != nil {
			if topic == "" {
				topic = act.Topic
			}
			if difficulty == "" {
				difficulty = act.Difficulty
			}
		}
	}
	score := in.Score
	if score == 0 && in.Passed {
		score = 1
	}
	now := s.now().UTC()

	unlock := s.lock(studentID)
	defer unlock()

	var out *types.StudentTwin
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if topic != "" {
			comp, err := s.competencies.GetByStudentAndTopic(ctx, tx, studentID, topic)
			if err != nil {
				return err
			}
			if comp == nil {
				comp = &types.StudentCompetency{StudentID: studentID, Topic: topic}
			}
			learningtwin.UpdateProficiency(comp, in.Passed, score, in.HintsUsed, now)
			if err := s.competencies.Upsert(ctx, tx, comp); err != nil {
				return err
			}
		}

		tw, err := s.twins.GetOrCreate(ctx, tx, studentID)
		if err != nil {
			return err
		}
		comps, err := s.competencies.ListByStudent(ctx, tx, studentID)
		if err != nil {
			return err
		}

		learningtwin.RecordActivity(tw, learningtwin.Outcome{
			Passed:     in.Passed,
			AIRequests: in.AIRequests,
			Difficulty: difficulty,
			HintsUsed:  in.HintsUsed,
			At:         now,
		})
		learningtwin.UpdateLearningVelocity(tw, comps, now)
		learningtwin.UpdateInsights(tw, comps)
		tw.ShadowPersona = learningtwin.ShadowPersona(tw)
		if err := s.twins.Save(ctx, tx, tw); err != nil {
			return err
		}

		if in.Passed && in.HintsUsed > 0 && activityID != uuid.Nil {
			last, err := s.hints.GetLatest(ctx, tx, studentID, activityID)
			if err != nil {
				return err
			}
			if last != nil && last.LedToSuccess == nil {
				if err := s.hints.SetLedToSuccess(ctx, tx, last.ID, true); err != nil {
					return err
				}
			}
		}
		out = tw
		return nil
	})
	if err != nil {
		s.log.Error("Apply submission failed", "student_id", studentID, "activity_id", activityID, "error", err)
		return nil, apierr.Persistence(fmt.Errorf("apply submission: %w", err))
	}

	s.events.publish(ctx, realtime.EventTwinUpdated, studentID, activityID, realtime.TwinUpdated{
		LearningVelocity:  out.LearningVelocity,
		AIDependencyScore: out.AIDependencyScore,
		DependencyTrend:   out.DependencyTrend,
	})
	return out, nil
}

func (s *twinService) RecordBehavior(ctx context.Context, studentID uuid.UUID, sample learningtwin.BehaviorSample) (*types.StudentTwin, error) {
	return s.mutate(ctx, studentID, func(tw *types.StudentTwin) {
		learningtwin.UpdateBehavioralData(tw, sample)
	})
}

func (s *twinService) RecordCodeRevision(ctx context.Context, studentID uuid.UUID, rev learningtwin.Revision) (*types.StudentTwin, error) {
	return s.mutate(ctx, studentID, func(tw *types.StudentTwin) {
		learningtwin.UpdateCodeRevisionMetrics(tw, rev)
		tw.ShadowPersona = learningtwin.ShadowPersona(tw)
	})
}

func (s *twinService) mutate(ctx context.Context, studentID uuid.UUID, fn func(tw *types.StudentTwin)) (*types.StudentTwin, error) {
	if err := s.requireStudent(ctx, studentID); err != nil {
		return nil, err
	}
	unlock := s.lock(studentID)
	defer unlock()

	tw, err := s.twins.GetOrCreate(ctx, nil, studentID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	fn(tw)
	if err := s.twins.Save(ctx, nil, tw); err != nil {
		return nil, apierr.Persistence(err)
	}
	return tw, nil
}

func (s *twinService) StartConsumer(ctx context.Context, b bus.Bus) error {
	if b == nil {
		return fmt.Errorf("event bus required")
	}
	return b.StartForwarder(ctx, func(ev realtime.Event) {
		if ev.Type != realtime.EventSubmissionEvaluated {
			return
		}
		var in realtime.SubmissionEvaluated
		if err := ev.Decode(&in); err != nil {
			s.log.Warn("Bad submission event", "student_id", ev.StudentID, "error", err)
			return
		}
		if _, err := s.ApplySubmission(ctx, ev.StudentID, ev.ActivityID, in); err != nil {
			s.log.Warn("Submission event not applied", "student_id", ev.StudentID, "error", err)
		}
	})
}
