package tutor

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/labtwin-backend/internal/domain"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

type HintRequestRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.HintRequest) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.HintRequest, error)
	GetLatest(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID) (*types.HintRequest, error)
	ListByStudentAndActivity(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID) ([]*types.HintRequest, error)
	CountByStudentAndActivity(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID) (int, error)
	HasPassedAtLevel(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID, level int) (bool, error)
	LatestUnpassedAtLevel(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID, level int) (*types.HintRequest, error)
	RecordComprehension(ctx context.Context, tx *gorm.DB, id uuid.UUID, answer string, passed bool) (*types.HintRequest, error)
	SetHelpful(ctx context.Context, tx *gorm.DB, id uuid.UUID, helpful bool) error
	SetLedToSuccess(ctx context.Context, tx *gorm.DB, id uuid.UUID, success bool) error
}

type hintRequestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHintRequestRepo(db *gorm.DB, baseLog *logger.Logger) HintRequestRepo {
	repoLog := baseLog.With("repo", "HintRequestRepo")
	return &hintRequestRepo{db: db, log: repoLog}
}

func (r *hintRequestRepo) Create(ctx context.Context, tx *gorm.DB, row *types.HintRequest) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *hintRequestRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.HintRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return first(transaction.WithContext(ctx).Where("id = ?", id))
}

func (r *hintRequestRepo) GetLatest(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID) (*types.HintRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return first(transaction.WithContext(ctx).
		Where("student_id = ? AND activity_id = ?", studentID, activityID).
		Order("created_at DESC"))
}

// ListByStudentAndActivity returns hints oldest first.
func (r *hintRequestRepo) ListByStudentAndActivity(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID) ([]*types.HintRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.HintRequest
	if err := transaction.WithContext(ctx).
		Where("student_id = ? AND activity_id = ?", studentID, activityID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *hintRequestRepo) CountByStudentAndActivity(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.HintRequest{}).
		Where("student_id = ? AND activity_id = ?", studentID, activityID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *hintRequestRepo) HasPassedAtLevel(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID, level int) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.HintRequest{}).
		Where("student_id = ? AND activity_id = ? AND hint_level = ? AND comprehension_passed = ?", studentID, activityID, level, true).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *hintRequestRepo) LatestUnpassedAtLevel(ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID, level int) (*types.HintRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return first(transaction.WithContext(ctx).
		Where("student_id = ? AND activity_id = ? AND hint_level = ?", studentID, activityID, level).
		Where("comprehension_passed IS NULL OR comprehension_passed = ?", false).
		Order("created_at DESC"))
}

// RecordComprehension stores the answer and bumps the attempt counter.
// A passed check is never reverted by a later failing answer.
func (r *hintRequestRepo) RecordComprehension(ctx context.Context, tx *gorm.DB, id uuid.UUID, answer string, passed bool) (*types.HintRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.HintRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"comprehension_answer":   answer,
			"comprehension_passed":   gorm.Expr("CASE WHEN comprehension_passed = ? THEN ? ELSE ? END", true, true, passed),
			"comprehension_attempts": gorm.Expr("comprehension_attempts + 1"),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return first(transaction.WithContext(ctx).Where("id = ?", id))
}

func (r *hintRequestRepo) SetHelpful(ctx context.Context, tx *gorm.DB, id uuid.UUID, helpful bool) error {
	return r.setFlag(ctx, tx, id, "was_helpful", helpful)
}

func (r *hintRequestRepo) SetLedToSuccess(ctx context.Context, tx *gorm.DB, id uuid.UUID, success bool) error {
	return r.setFlag(ctx, tx, id, "led_to_success", success)
}

func (r *hintRequestRepo) setFlag(ctx context.Context, tx *gorm.DB, id uuid.UUID, column string, value bool) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.HintRequest{}).
		Where("id = ?", id).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func first(q *gorm.DB) (*types.HintRequest, error) {
	var rows []*types.HintRequest
	if err := q.Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
