package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/labtwin-backend/internal/domain"
)

func SeedStudent(tb testing.TB, ctx context.Context, tx *gorm.DB) *types.Student {
	tb.Helper()
	s := &types.Student{
		ID:        uuid.New(),
		StudentNo: "S-" + uuid.NewString()[:8],
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed student: %v", err)
	}
	return s
}

func SeedActivity(tb testing.TB, ctx context.Context, tx *gorm.DB, ceiling int) *types.Activity {
	tb.Helper()
	a := &types.Activity{
		ID:                uuid.New(),
		Title:             "Sum of digits",
		Description:       "Return the sum of the digits of n.",
		Language:          "python",
		Difficulty:        types.DifficultyMedium,
		Topic:             "loops",
		AIAssistanceLevel: ceiling,
		TestCases: []types.TestCase{
			{Name: "single digit", Input: "7", ExpectedOutput: "7", Position: 0},
			{Name: "several digits", Input: "1234", ExpectedOutput: "10", Position: 1},
		},
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed activity: %v", err)
	}
	return a
}

func SeedSubmission(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID, passed bool, failed ...string) *types.Submission {
	tb.Helper()
	raw, _ := json.Marshal(failed)
	s := &types.Submission{
		ID:          uuid.New(),
		StudentID:   studentID,
		ActivityID:  activityID,
		Code:        "def solve(n):\n    return n",
		Passed:      passed,
		TestsTotal:  2,
		FailedTests: datatypes.JSON(raw),
	}
	if passed {
		s.TestsPassed = 2
	} else {
		s.TestsPassed = 2 - len(failed)
		s.ErrorOutput = "AssertionError"
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed submission: %v", err)
	}
	return s
}

// SeedHint persists a granted hint at the given level. Each call is stamped
// one second after the previous so ordering by created_at is stable.
func SeedHint(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID, activityID uuid.UUID, level int, passed *bool) *types.HintRequest {
	tb.Helper()
	var n int64
	tx.WithContext(ctx).Model(&types.HintRequest{}).Where("student_id = ? AND activity_id = ?", studentID, activityID).Count(&n)
	h := &types.HintRequest{
		ID:                    uuid.New(),
		StudentID:             studentID,
		ActivityID:            activityID,
		HintLevel:             level,
		StudentDescription:    "stuck",
		StudentCode:           "print(1)",
		GeneratedHint:         "What does your loop do on the last digit?",
		Provider:              "local",
		Model:                 "llama3",
		ComprehensionRequired: level >= 4,
		ComprehensionPassed:   passed,
		CreatedAt:             time.Now().Add(-time.Hour).Add(time.Duration(n) * time.Second),
	}
	if level >= 4 {
		h.ComprehensionQuestion = "Why does the loop stop at zero?"
	}
	if err := tx.WithContext(ctx).Create(h).Error; err != nil {
		tb.Fatalf("seed hint: %v", err)
	}
	return h
}

func Bool(v bool) *bool { return &v }
