package lab

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Submission is a judged run of a student's code. Rows are written by the
// execution flow; the hint pipeline only reads them.
type Submission struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID  uuid.UUID `gorm:"type:uuid;column:student_id;not null;index:idx_submission_student_activity,priority:1" json:"student_id"`
	ActivityID uuid.UUID `gorm:"type:uuid;column:activity_id;not null;index:idx_submission_student_activity,priority:2" json:"activity_id"`

	Code        string `gorm:"column:code;type:text" json:"code"`
	Passed      bool   `gorm:"column:passed;not null;default:false" json:"passed"`
	TestsPassed int    `gorm:"column:tests_passed;not null;default:0" json:"tests_passed"`
	TestsTotal  int    `gorm:"column:tests_total;not null;default:0" json:"tests_total"`
	ErrorOutput string `gorm:"column:error_output;type:text" json:"error_output,omitempty"`
	// FailedTests is a JSON array of failed test names.
	FailedTests datatypes.JSON `gorm:"column:failed_tests" json:"failed_tests,omitempty"`
	HintsUsed   int            `gorm:"column:hints_used;not null;default:0" json:"hints_used"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Submission) TableName() string { return "submission" }

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
