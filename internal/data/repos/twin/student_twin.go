package twin

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/labtwin-backend/internal/domain"
	domaintwin "github.com/yungbote/labtwin-backend/internal/domain/twin"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

type StudentTwinRepo interface {
	GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) (*types.StudentTwin, error)
	GetOrCreate(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) (*types.StudentTwin, error)
	Save(ctx context.Context, tx *gorm.DB, row *types.StudentTwin) error
	BumpAIRequests(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, at time.Time) error
}

type studentTwinRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentTwinRepo(db *gorm.DB, baseLog *logger.Logger) StudentTwinRepo {
	repoLog := baseLog.With("repo", "StudentTwinRepo")
	return &studentTwinRepo{db: db, log: repoLog}
}

func (r *studentTwinRepo) GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) (*types.StudentTwin, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var rows []*types.StudentTwin
	if err := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// GetOrCreate lazily creates the twin on first access. A concurrent creator
// losing the unique race re-reads the winner's row.
func (r *studentTwinRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) (*types.StudentTwin, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	existing, err := r.GetByStudentID(ctx, transaction, studentID)
	if err != nil || existing != nil {
		return existing, err
	}

	row := domaintwin.NewStudentTwin(studentID)
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.GetByStudentID(ctx, transaction, studentID)
		}
		return nil, err
	}
	r.log.Debug("Created student twin", "student_id", studentID)
	return row, nil
}

// Save writes every column except total_ai_requests, which only
// BumpAIRequests changes, so a read-modify-write never loses a bump.
func (r *studentTwinRepo) Save(ctx context.Context, tx *gorm.DB, row *types.StudentTwin) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).Omit("total_ai_requests").Save(row).Error
}

// BumpAIRequests increments the counter in place so concurrent hint flows
// never lose an increment.
func (r *studentTwinRepo) BumpAIRequests(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.StudentTwin{}).
		Where("student_id = ?", studentID).
		Updates(map[string]interface{}{
			"total_ai_requests":  gorm.Expr("total_ai_requests + 1"),
			"last_activity_date": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetOrCreate(ctx, transaction, studentID); err != nil {
			return err
		}
		return transaction.WithContext(ctx).
			Model(&types.StudentTwin{}).
			Where("student_id = ?", studentID).
			Updates(map[string]interface{}{
				"total_ai_requests":  gorm.Expr("total_ai_requests + 1"),
				"last_activity_date": at,
			}).Error
	}
	return nil
}
