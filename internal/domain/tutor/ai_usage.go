package tutor

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RequestTypeHint          = "hint"
	RequestTypeComprehension = "comprehension"
	RequestTypeSocratic      = "socratic"
	RequestTypeAnalysis      = "analysis"
)

// AIUsage is an append-only log row for every provider call, successful or not.
type AIUsage struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID  uuid.UUID  `gorm:"type:uuid;column:student_id;not null;index" json:"student_id"`
	ActivityID *uuid.UUID `gorm:"type:uuid;column:activity_id;index" json:"activity_id,omitempty"`

	Provider    string `gorm:"column:provider;not null;index" json:"provider"`
	Model       string `gorm:"column:model" json:"model"`
	RequestType string `gorm:"column:request_type;not null;index" json:"request_type"`
	HintLevel   *int   `gorm:"column:hint_level" json:"hint_level,omitempty"`

	PromptTokens     int     `gorm:"column:prompt_tokens;not null;default:0" json:"prompt_tokens"`
	CompletionTokens int     `gorm:"column:completion_tokens;not null;default:0" json:"completion_tokens"`
	TotalTokens      int     `gorm:"column:total_tokens;not null;default:0" json:"total_tokens"`
	EstimatedCost    float64 `gorm:"column:estimated_cost;not null;default:0" json:"estimated_cost"`
	ResponseTimeMs   int64   `gorm:"column:response_time_ms;not null;default:0" json:"response_time_ms"`

	Success      bool   `gorm:"column:success;not null;index" json:"success"`
	FallbackUsed bool   `gorm:"column:fallback_used;not null;default:false" json:"fallback_used"`
	ErrorMessage string `gorm:"column:error_message;type:text" json:"error_message,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (AIUsage) TableName() string { return "ai_usage" }

func (u *AIUsage) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
