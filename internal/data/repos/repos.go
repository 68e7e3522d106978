package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/labtwin-backend/internal/data/repos/lab"
	"github.com/yungbote/labtwin-backend/internal/data/repos/tutor"
	"github.com/yungbote/labtwin-backend/internal/data/repos/twin"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

type StudentRepo = lab.StudentRepo
type ActivityRepo = lab.ActivityRepo
type SubmissionRepo = lab.SubmissionRepo

type HintRequestRepo = tutor.HintRequestRepo
type AIUsageRepo = tutor.AIUsageRepo
type ProviderUsage = tutor.ProviderUsage

type StudentTwinRepo = twin.StudentTwinRepo
type CompetencyRepo = twin.CompetencyRepo

func NewStudentRepo(db *gorm.DB, log *logger.Logger) StudentRepo { return lab.NewStudentRepo(db, log) }
func NewActivityRepo(db *gorm.DB, log *logger.Logger) ActivityRepo {
	return lab.NewActivityRepo(db, log)
}
func NewSubmissionRepo(db *gorm.DB, log *logger.Logger) SubmissionRepo {
	return lab.NewSubmissionRepo(db, log)
}
func NewHintRequestRepo(db *gorm.DB, log *logger.Logger) HintRequestRepo {
	return tutor.NewHintRequestRepo(db, log)
}
func NewAIUsageRepo(db *gorm.DB, log *logger.Logger) AIUsageRepo {
	return tutor.NewAIUsageRepo(db, log)
}
func NewStudentTwinRepo(db *gorm.DB, log *logger.Logger) StudentTwinRepo {
	return twin.NewStudentTwinRepo(db, log)
}
func NewCompetencyRepo(db *gorm.DB, log *logger.Logger) CompetencyRepo {
	return twin.NewCompetencyRepo(db, log)
}
