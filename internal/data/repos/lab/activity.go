package lab

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/labtwin-backend/internal/domain"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

type ActivityRepo interface {
	Create(ctx context.Context, tx *gorm.DB, activity *types.Activity) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Activity, error)
	GetWithTestCases(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Activity, error)
}

type activityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityRepo(db *gorm.DB, baseLog *logger.Logger) ActivityRepo {
	repoLog := baseLog.With("repo", "ActivityRepo")
	return &activityRepo{db: db, log: repoLog}
}

// Create inserts the activity and any attached test cases.
func (r *activityRepo) Create(ctx context.Context, tx *gorm.DB, activity *types.Activity) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(activity).Error
}

func (r *activityRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Activity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var rows []*types.Activity
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

func (r *activityRepo) GetWithTestCases(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Activity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var rows []*types.Activity
	if err := transaction.WithContext(ctx).
		Preload("TestCases", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
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
