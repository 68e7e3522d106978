package tutor

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HintRequest is one granted hint. Rows are append-only apart from the
// comprehension fields and the feedback fields.
type HintRequest struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID  uuid.UUID `gorm:"type:uuid;column:student_id;not null;index:idx_hint_student_activity,priority:1" json:"student_id"`
	ActivityID uuid.UUID `gorm:"type:uuid;column:activity_id;not null;index:idx_hint_student_activity,priority:2" json:"activity_id"`
	HintLevel  int       `gorm:"column:hint_level;not null" json:"hint_level"`

	StudentDescription string `gorm:"column:student_description;type:text" json:"student_description"`
	StudentAttempt     string `gorm:"column:student_attempt;type:text" json:"student_attempt,omitempty"`
	StudentCode        string `gorm:"column:student_code;type:text" json:"student_code,omitempty"`
	ErrorOutput        string `gorm:"column:error_output;type:text" json:"error_output,omitempty"`
	TimeSpentSeconds   int    `gorm:"column:time_spent_seconds;not null;default:0" json:"time_spent_seconds"`

	GeneratedHint  string `gorm:"column:generated_hint;type:text;not null" json:"generated_hint"`
	Provider       string `gorm:"column:provider;not null" json:"provider"`
	Model          string `gorm:"column:model" json:"model"`
	ResponseTimeMs int64  `gorm:"column:response_time_ms;not null;default:0" json:"response_time_ms"`
	// TokenUsage is {"prompt":n,"completion":n,"total":n}.
	TokenUsage    datatypes.JSON `gorm:"column:token_usage" json:"token_usage,omitempty"`
	FallbackUsed  bool           `gorm:"column:fallback_used;not null;default:false" json:"fallback_used"`
	SelectReason  string         `gorm:"column:select_reason" json:"select_reason,omitempty"`
	FallbackLevel int            `gorm:"column:fallback_level;not null;default:0" json:"fallback_level"`

	ComprehensionRequired bool    `gorm:"column:comprehension_required;not null;default:false" json:"comprehension_required"`
	ComprehensionQuestion string  `gorm:"column:comprehension_question;type:text" json:"comprehension_question,omitempty"`
	ComprehensionAnswer   *string `gorm:"column:comprehension_answer;type:text" json:"comprehension_answer,omitempty"`
	ComprehensionPassed   *bool   `gorm:"column:comprehension_passed" json:"comprehension_passed,omitempty"`
	ComprehensionAttempts int     `gorm:"column:comprehension_attempts;not null;default:0" json:"comprehension_attempts"`

	WasHelpful   *bool `gorm:"column:was_helpful" json:"was_helpful,omitempty"`
	LedToSuccess *bool `gorm:"column:led_to_success" json:"led_to_success,omitempty"`

	// RequestEvaluation is the policy decision that admitted the request.
	RequestEvaluation datatypes.JSON `gorm:"column:request_evaluation" json:"request_evaluation,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (HintRequest) TableName() string { return "hint_request" }

func (h *HintRequest) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// Passed reports whether the comprehension check has been passed.
func (h *HintRequest) Passed() bool {
	return h != nil && h.ComprehensionPassed != nil && *h.ComprehensionPassed
}
