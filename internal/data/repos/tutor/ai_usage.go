package tutor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/labtwin-backend/internal/domain"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

// ProviderUsage aggregates usage rows for one provider.
type ProviderUsage struct {
	Provider          string  `json:"provider"`
	Requests          int64   `json:"requests"`
	Successes         int64   `json:"successes"`
	Fallbacks         int64   `json:"fallbacks"`
	TotalTokens       int64   `json:"totalTokens"`
	EstimatedCost     float64 `json:"estimatedCost"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
}

type AIUsageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows ...*types.AIUsage) error
	ListSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]*types.AIUsage, error)
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, limit int) ([]*types.AIUsage, error)
	SummarizeByProvider(ctx context.Context, tx *gorm.DB, since time.Time) ([]ProviderUsage, error)
}

type aiUsageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAIUsageRepo(db *gorm.DB, baseLog *logger.Logger) AIUsageRepo {
	repoLog := baseLog.With("repo", "AIUsageRepo")
	return &aiUsageRepo{db: db, log: repoLog}
}

func (r *aiUsageRepo) Create(ctx context.Context, tx *gorm.DB, rows ...*types.AIUsage) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&rows).Error
}

func (r *aiUsageRepo) ListSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]*types.AIUsage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.AIUsage
	if err := transaction.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *aiUsageRepo) ListByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, limit int) ([]*types.AIUsage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}

	var results []*types.AIUsage
	if err := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *aiUsageRepo) SummarizeByProvider(ctx context.Context, tx *gorm.DB, since time.Time) ([]ProviderUsage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []ProviderUsage
	if err := transaction.WithContext(ctx).
		Model(&types.AIUsage{}).
		Select(`provider,
			COUNT(*) AS requests,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) AS successes,
			SUM(CASE WHEN fallback_used THEN 1 ELSE 0 END) AS fallbacks,
			COALESCE(SUM(total_tokens), 0) AS total_tokens,
			COALESCE(SUM(estimated_cost), 0) AS estimated_cost,
			COALESCE(AVG(response_time_ms), 0) AS avg_response_time_ms`).
		Where("created_at >= ?", since).
		Group("provider").
		Order("provider ASC").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
