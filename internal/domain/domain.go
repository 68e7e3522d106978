package domain

import (
	"github.com/yungbote/labtwin-backend/internal/domain/lab"
	"github.com/yungbote/labtwin-backend/internal/domain/tutor"
	"github.com/yungbote/labtwin-backend/internal/domain/twin"
)

type (
	Student    = lab.Student
	Activity   = lab.Activity
	TestCase   = lab.TestCase
	Submission = lab.Submission

	HintRequest = tutor.HintRequest
	AIUsage     = tutor.AIUsage

	StudentTwin       = twin.StudentTwin
	StudentCompetency = twin.StudentCompetency
	DifficultyStat    = twin.DifficultyStat
	VelocityPoint     = twin.VelocityPoint
)

const (
	DifficultyEasy   = lab.DifficultyEasy
	DifficultyMedium = lab.DifficultyMedium
	DifficultyHard   = lab.DifficultyHard

	RequestTypeHint          = tutor.RequestTypeHint
	RequestTypeComprehension = tutor.RequestTypeComprehension
	RequestTypeSocratic      = tutor.RequestTypeSocratic
	RequestTypeAnalysis      = tutor.RequestTypeAnalysis
)

// Models lists every persisted entity in migration order.
func Models() []any {
	return []any{
		&Student{},
		&Activity{},
		&TestCase{},
		&Submission{},
		&HintRequest{},
		&AIUsage{},
		&StudentCompetency{},
		&StudentTwin{},
	}
}
