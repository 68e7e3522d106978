package lab

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/labtwin-backend/internal/domain"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

type StudentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, student *types.Student) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Student, error)
}

type studentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	repoLog := baseLog.With("repo", "StudentRepo")
	return &studentRepo{db: db, log: repoLog}
}

func (r *studentRepo) Create(ctx context.Context, tx *gorm.DB, student *types.Student) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(student).Error
}

// GetByID returns nil, nil when the student does not exist.
func (r *studentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Student, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var rows []*types.Student
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
