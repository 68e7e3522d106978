package lab

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Activity is a coding problem. AIAssistanceLevel is the instructor-set
// ceiling for hint levels; 0 disables hints entirely.
type Activity struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID   uuid.UUID `gorm:"type:uuid;column:session_id;index" json:"session_id"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Language    string    `gorm:"column:language" json:"language"`
	Difficulty  string    `gorm:"column:difficulty;not null;default:'medium'" json:"difficulty"`
	Topic       string    `gorm:"column:topic;index" json:"topic"`
	Examples    string    `gorm:"column:examples;type:text" json:"examples,omitempty"`

	AIAssistanceLevel int `gorm:"column:ai_assistance_level;not null;default:5" json:"ai_assistance_level"`
	TimeLimitMinutes  int `gorm:"column:time_limit_minutes" json:"time_limit_minutes,omitempty"`

	TestCases []TestCase `gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE" json:"test_cases,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Activity) TableName() string { return "activity" }

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type TestCase struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ActivityID     uuid.UUID `gorm:"type:uuid;column:activity_id;not null;index" json:"activity_id"`
	Name           string    `gorm:"column:name" json:"name"`
	Input          string    `gorm:"column:input;type:text" json:"input"`
	ExpectedOutput string    `gorm:"column:expected_output;type:text" json:"expected_output"`
	Hidden         bool      `gorm:"column:hidden;not null;default:false" json:"hidden"`
	Position       int       `gorm:"column:position;not null;default:0" json:"position"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TestCase) TableName() string { return "test_case" }

func (tc *TestCase) BeforeCreate(tx *gorm.DB) error {
	if tc.ID == uuid.Nil {
		tc.ID = uuid.New()
	}
	return nil
}
