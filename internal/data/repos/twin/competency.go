package twin

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/labtwin-backend/internal/domain"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

type CompetencyRepo interface {
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.StudentCompetency, error)
	GetByStudentAndTopic(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, topic string) (*types.StudentCompetency, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.StudentCompetency) error
}

type competencyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompetencyRepo(db *gorm.DB, baseLog *logger.Logger) CompetencyRepo {
	repoLog := baseLog.With("repo", "CompetencyRepo")
	return &competencyRepo{db: db, log: repoLog}
}

func (r *competencyRepo) ListByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.StudentCompetency, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.StudentCompetency
	if err := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("topic ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *competencyRepo) GetByStudentAndTopic(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, topic string) (*types.StudentCompetency, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var rows []*types.StudentCompetency
	if err := transaction.WithContext(ctx).
		Where("student_id = ? AND topic = ?", studentID, topic).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *competencyRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.StudentCompetency) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "topic"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"proficiency_level",
				"attempt_count",
				"success_count",
				"hints_used_count",
				"last_attempt_at",
				"updated_at",
			}),
		}).
		Create(row).Error
}
