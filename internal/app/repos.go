package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/labtwin-backend/internal/data/repos"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

type Repos struct {
	Student     repos.StudentRepo
	Activity    repos.ActivityRepo
	Submission  repos.SubmissionRepo
	HintRequest repos.HintRequestRepo
	AIUsage     repos.AIUsageRepo
	StudentTwin repos.StudentTwinRepo
	Competency  repos.CompetencyRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Student:     repos.NewStudentRepo(db, log),
		Activity:    repos.NewActivityRepo(db, log),
		Submission:  repos.NewSubmissionRepo(db, log),
		HintRequest: repos.NewHintRequestRepo(db, log),
		AIUsage:     repos.NewAIUsageRepo(db, log),
		StudentTwin: repos.NewStudentTwinRepo(db, log),
		Competency:  repos.NewCompetencyRepo(db, log),
	}
}
