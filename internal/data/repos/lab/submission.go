package lab

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/labtwin-backend/internal/domain"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

type SubmissionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sub *types.Submission) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Submission, error)
	CountByStudentAndActivity(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID) (int, error)
	ListRecent(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID, limit int) ([]*types.Submission, error)
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	repoLog := baseLog.With("repo", "SubmissionRepo")
	return &submissionRepo{db: db, log: repoLog}
}

func (r *submissionRepo) Create(ctx context.Context, tx *gorm.DB, sub *types.Submission) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(sub).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Submission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var rows []*types.Submission
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *submissionRepo) CountByStudentAndActivity(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.Submission{}).
		Where("student_id = ? AND activity_id = ?", studentID, activityID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListRecent returns the newest submissions first.
func (r *submissionRepo) ListRecent(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID, limit int) ([]*types.Submission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 3
	}

	var results []*types.Submission
	if err := transaction.WithContext(ctx).
		Where("student_id = ? AND activity_id = ?", studentID, activityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
