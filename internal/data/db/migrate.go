package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/labtwin-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// EnsureUsageIndexes adds the Postgres-only indexes used by usage analytics.
func EnsureUsageIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_ai_usage_created_provider
		ON ai_usage (created_at DESC, provider);
	`).Error; err != nil {
		return fmt.Errorf("create idx_ai_usage_created_provider: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_hint_request_passed_level4
		ON hint_request (student_id, activity_id, created_at DESC)
		WHERE hint_level = 4;
	`).Error; err != nil {
		return fmt.Errorf("create idx_hint_request_passed_level4: %w", err)
	}
	return nil
}
