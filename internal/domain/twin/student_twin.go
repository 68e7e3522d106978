package twin

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
	TrendUnknown    = "unknown"

	StyleWriteThenDebug = "write_then_debug"
	StyleIncremental    = "incremental"
	StyleCopyModify     = "copy_modify"
	StyleUnknown        = "unknown"
)

// DifficultyStat tracks attempts per activity difficulty.
type DifficultyStat struct {
	Attempted   int     `json:"attempted"`
	Completed   int     `json:"completed"`
	SuccessRate float64 `json:"success_rate"`
}

type VelocityPoint struct {
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

// StudentTwin is the running per-student learning model. It is created
// lazily on first access and is one-to-one with Student.
type StudentTwin struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uuid.UUID `gorm:"type:uuid;column:student_id;not null;uniqueIndex" json:"student_id"`

	PersonalityPreference string `gorm:"column:personality_preference" json:"personality_preference,omitempty"`
	ShadowPersona         string `gorm:"column:shadow_persona" json:"shadow_persona,omitempty"`

	// Behavioral telemetry, kept as running averages.
	AvgTypingSpeed    float64 `gorm:"column:avg_typing_speed;not null;default:0" json:"avg_typing_speed"`
	AvgPauseSeconds   float64 `gorm:"column:avg_pause_seconds;not null;default:0" json:"avg_pause_seconds"`
	PasteFrequency    float64 `gorm:"column:paste_frequency;not null;default:0" json:"paste_frequency"`
	ActiveTimePercent float64 `gorm:"column:active_time_percent;not null;default:0" json:"active_time_percent"`
	AvgSessionMinutes float64 `gorm:"column:avg_session_minutes;not null;default:0" json:"avg_session_minutes"`
	BehaviorSamples   int     `gorm:"column:behavior_samples;not null;default:0" json:"behavior_samples"`
	CodingPattern     string  `gorm:"column:coding_pattern;not null;default:'unknown'" json:"coding_pattern"`

	// Code revision counters.
	TotalRevisions       int    `gorm:"column:total_revisions;not null;default:0" json:"total_revisions"`
	LinesAdded           int    `gorm:"column:lines_added;not null;default:0" json:"lines_added"`
	LinesModified        int    `gorm:"column:lines_modified;not null;default:0" json:"lines_modified"`
	LinesDeleted         int    `gorm:"column:lines_deleted;not null;default:0" json:"lines_deleted"`
	PasteEvents          int    `gorm:"column:paste_events;not null;default:0" json:"paste_events"`
	PreferredCodingStyle string `gorm:"column:preferred_coding_style;not null;default:'unknown'" json:"preferred_coding_style"`

	// AI dependency pattern.
	TotalAIRequests       int     `gorm:"column:total_ai_requests;not null;default:0" json:"total_ai_requests"`
	SuccessWithHints      int     `gorm:"column:success_with_hints;not null;default:0" json:"success_with_hints"`
	SuccessWithoutHints   int     `gorm:"column:success_without_hints;not null;default:0" json:"success_without_hints"`
	AvgHintsBeforeSuccess float64 `gorm:"column:avg_hints_before_success;not null;default:0" json:"avg_hints_before_success"`
	AIDependencyScore     float64 `gorm:"column:ai_dependency_score;not null;default:0" json:"ai_dependency_score"`
	// AvgAIRequestsPerAttempt averages the AI calls reported with each
	// submission outcome.
	AvgAIRequestsPerAttempt float64 `gorm:"column:avg_ai_requests_per_attempt;not null;default:0" json:"avg_ai_requests_per_attempt"`
	DependencyTrend         string  `gorm:"column:dependency_trend;not null;default:'unknown'" json:"dependency_trend"`

	TotalAttempts   int            `gorm:"column:total_attempts;not null;default:0" json:"total_attempts"`
	TotalCompleted  int            `gorm:"column:total_completed;not null;default:0" json:"total_completed"`
	DifficultyStats datatypes.JSON `gorm:"column:difficulty_stats" json:"difficulty_stats,omitempty"`

	LearningVelocity float64        `gorm:"column:learning_velocity;not null;default:0" json:"learning_velocity"`
	VelocityHistory  datatypes.JSON `gorm:"column:velocity_history" json:"velocity_history,omitempty"`

	Strengths         datatypes.JSON `gorm:"column:strengths" json:"strengths,omitempty"`
	Weaknesses        datatypes.JSON `gorm:"column:weaknesses" json:"weaknesses,omitempty"`
	RecommendedTopics datatypes.JSON `gorm:"column:recommended_topics" json:"recommended_topics,omitempty"`

	LastActivityDate *time.Time `gorm:"column:last_activity_date" json:"last_activity_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StudentTwin) TableName() string { return "student_twin" }

func (t *StudentTwin) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// NewStudentTwin returns the initial state used on first access.
func NewStudentTwin(studentID uuid.UUID) *StudentTwin {
	return &StudentTwin{
		StudentID:            studentID,
		CodingPattern:        StyleUnknown,
		PreferredCodingStyle: StyleUnknown,
		DependencyTrend:      TrendUnknown,
	}
}

func (t *StudentTwin) Stats() map[string]DifficultyStat {
	out := map[string]DifficultyStat{}
	if len(t.DifficultyStats) > 0 {
		_ = json.Unmarshal(t.DifficultyStats, &out)
	}
	return out
}

func (t *StudentTwin) SetStats(stats map[string]DifficultyStat) {
	t.DifficultyStats = mustJSON(stats)
}

func (t *StudentTwin) Velocities() []VelocityPoint {
	var out []VelocityPoint
	if len(t.VelocityHistory) > 0 {
		_ = json.Unmarshal(t.VelocityHistory, &out)
	}
	return out
}

func (t *StudentTwin) SetVelocities(points []VelocityPoint) {
	t.VelocityHistory = mustJSON(points)
}

func (t *StudentTwin) StrengthList() []string         { return stringList(t.Strengths) }
func (t *StudentTwin) WeaknessList() []string         { return stringList(t.Weaknesses) }
func (t *StudentTwin) RecommendedTopicList() []string { return stringList(t.RecommendedTopics) }

func (t *StudentTwin) SetInsights(strengths, weaknesses, recommended []string) {
	t.Strengths = mustJSON(nonNil(strengths))
	t.Weaknesses = mustJSON(nonNil(weaknesses))
	t.RecommendedTopics = mustJSON(nonNil(recommended))
}

func stringList(raw datatypes.JSON) []string {
	var out []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
