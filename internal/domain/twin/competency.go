package twin

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StudentCompetency is the per-topic proficiency of one student, upserted
// on every submission outcome.
type StudentCompetency struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uuid.UUID `gorm:"type:uuid;column:student_id;not null;index:idx_competency_student_topic,unique,priority:1" json:"student_id"`
	Topic     string    `gorm:"column:topic;not null;index:idx_competency_student_topic,unique,priority:2" json:"topic"`

	ProficiencyLevel float64 `gorm:"column:proficiency_level;not null;default:0" json:"proficiency_level"`
	AttemptCount     int     `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	SuccessCount     int     `gorm:"column:success_count;not null;default:0" json:"success_count"`
	HintsUsedCount   int     `gorm:"column:hints_used_count;not null;default:0" json:"hints_used_count"`

	LastAttemptAt *time.Time `gorm:"column:last_attempt_at;index" json:"last_attempt_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StudentCompetency) TableName() string { return "student_competency" }

func (c *StudentCompetency) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
