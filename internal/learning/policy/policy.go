package policy

import (
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/labtwin-backend/internal/learning/prompts"
)

const ReasonGranted = "granted"

// Criteria names reported in Decision.UnlockCriteriaMet.
const (
	CriterionAttempts      = "attempts"
	CriterionTime          = "time"
	CriterionPreviousLevel = "previous_level"
	CriterionComprehension = "comprehension"
)

// History is what the orchestrator knows about one (student, activity)
// before deciding.
type History struct {
	HintCount    int
	HighestLevel int
	// Attempts counts submissions on the activity.
	Attempts     int
	Level4Passed bool
	// PendingQuestion is the question of the latest unpassed level-4 hint.
	PendingQuestion string
	AvgProficiency  float64
}

type Request struct {
	StudentID        uuid.UUID
	ActivityID       uuid.UUID
	RequestedLevel   int
	Ceiling          int
	TimeSpentSeconds int
	CurrentCode      string
	// LastHintCode is the code stored with the latest hint, if any.
	LastHintCode *string
	History      History
}

type Decision struct {
	Granted           bool     `json:"granted"`
	Reason            string   `json:"reason"`
	Message           string   `json:"message,omitempty"`
	ActualLevel       int      `json:"actualLevel"`
	Encouragement     string   `json:"encouragement,omitempty"`
	UnlockCriteriaMet []string `json:"unlockCriteriaMet,omitempty"`
	// Question is set on comprehension_required refusals.
	Question string `json:"question,omitempty"`
	Clamped  bool   `json:"clamped,omitempty"`
}

// RefusalRenderer supplies user-visible text so the engine carries no
// text tables of its own.
type RefusalRenderer interface {
	BuildRefusalMessage(kind prompts.RefusalKind, params map[string]any) string
	Encouragement() string
	FallbackQuestion(level int) string
}

type Engine struct {
	text RefusalRenderer
}

func New(text RefusalRenderer) *Engine {
	return &Engine{text: text}
}

func (e *Engine) refuse(kind prompts.RefusalKind, level int, params map[string]any) Decision {
	return Decision{
		Granted:     false,
		Reason:      string(kind),
		Message:     e.text.BuildRefusalMessage(kind, params),
		ActualLevel: level,
	}
}

// Evaluate applies the checks in a fixed order and returns at the first
// refusal. It performs no I/O.
func (e *Engine) Evaluate(req Request) Decision {
	h := req.History

	if req.Ceiling <= 0 {
		return e.refuse(prompts.RefusalLockdown, 0, nil)
	}

	level := req.RequestedLevel
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	clamped := false
	if level > req.Ceiling {
		level = req.Ceiling
		clamped = true
	}

	if h.HintCount >= MaxHintsPerActivity {
		return e.refuse(prompts.RefusalQuotaExceeded, level, map[string]any{"maxHints": MaxHintsPerActivity})
	}

	if h.HintCount == 0 && h.Attempts == 0 && req.TimeSpentSeconds < MinTimeForFirstHint {
		return e.refuse(prompts.RefusalTooSoon, level, map[string]any{
			"secondsRemaining": MinTimeForFirstHint - max(req.TimeSpentSeconds, 0),
		})
	}

	if h.HintCount > 0 && req.LastHintCode != nil {
		last := strings.TrimSpace(*req.LastHintCode)
		if last != "" && last == strings.TrimSpace(req.CurrentCode) {
			return e.refuse(prompts.RefusalNoCodeChange, level, nil)
		}
	}

	var met []string
	if level > 1 {
		u := Unlock[level]
		params := map[string]any{
			"level":            level,
			"requiredAttempts": u.Attempts,
			"requiredMinutes":  u.TimeMinutes,
		}
		// Every level above 1 needs its predecessor so the levels used on an
		// activity always form a prefix of the ladder.
		if h.HighestLevel < level-1 {
			params["previousLevel"] = level - 1
			return e.refuse(prompts.RefusalLevelLocked, level, params)
		}
		if u.RequiresPrevious {
			met = append(met, CriterionPreviousLevel)
		}
		if u.RequiresComprehension {
			if !h.Level4Passed && h.HighestLevel >= 4 {
				q := strings.TrimSpace(h.PendingQuestion)
				if q == "" {
					q = e.text.FallbackQuestion(4)
				}
				d := e.refuse(prompts.RefusalComprehensionRequired, level, map[string]any{"question": q})
				d.Question = q
				return d
			}
			met = append(met, CriterionComprehension)
		}
		byAttempts, byTime := u.effortMet(h.Attempts, req.TimeSpentSeconds)
		if !byAttempts && !byTime {
			if u.RequiresPrevious {
				params["previousLevel"] = level - 1
			}
			return e.refuse(prompts.RefusalLevelLocked, level, params)
		}
		if byAttempts {
			met = append(met, CriterionAttempts)
		}
		if byTime {
			met = append(met, CriterionTime)
		}
	}

	d := Decision{
		Granted:           true,
		Reason:            ReasonGranted,
		ActualLevel:       level,
		UnlockCriteriaMet: met,
		Clamped:           clamped,
	}
	if h.AvgProficiency > 0.7 && h.Attempts < 2 && h.HintCount == 0 {
		d.Encouragement = e.text.Encouragement()
	}
	return d
}

// RecommendedLevel is the highest level whose effort criterion is met,
// bounded by the next unused rung and the ceiling. Lockdown yields 0.
// Level 5 is only recommended once a level-4 comprehension check passed.
func RecommendedLevel(h History, ceiling, timeSpentSeconds, attempts int) int {
	if ceiling <= 0 {
		return 0
	}
	rec := 1
	for level := MaxLevel; level >= 2; level-- {
		byAttempts, byTime := Unlock[level].effortMet(attempts, timeSpentSeconds)
		if byAttempts || byTime {
			rec = level
			break
		}
	}
	rec = min(rec, h.HighestLevel+1, ceiling)
	if rec == MaxLevel && !h.Level4Passed {
		rec = MaxLevel - 1
	}
	return max(rec, 1)
}
