package twin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	types "github.com/yungbote/labtwin-backend/internal/domain"
)

func TestPredictSuccess(t *testing.T) {
	now := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

	empty := PredictSuccess(newTwin(), nil, now)
	assert.Equal(t, 0.5, empty.Probability)
	assert.Zero(t, empty.Confidence)
	assert.Equal(t, RiskUnknown, empty.RiskLevel)
	assert.Empty(t, empty.Factors)

	strong := newTwin()
	strong.TotalAttempts, strong.TotalCompleted = 10, 9
	strong.AIDependencyScore = 0.1
	strong.LearningVelocity = 70
	last := now.Add(-24 * time.Hour)
	strong.LastActivityDate = &last
	got := PredictSuccess(strong, []*types.StudentCompetency{comp("loops", 0.9), comp("arrays", 0.7)}, now)
	assert.InDelta(t, 0.831, got.Probability, 1e-9)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
	assert.Equal(t, RiskLow, got.RiskLevel)
	assert.Equal(t, []Factor{
		{Name: "High Success Rate", Impact: ImpactPositive, Value: "90%"},
		{Name: "Independent Learner", Impact: ImpactPositive, Value: "10%"},
	}, got.Factors)

	// No competencies and no recorded activity: neutral score, fully stale.
	weak := newTwin()
	weak.TotalAttempts, weak.TotalCompleted = 10, 2
	weak.AIDependencyScore = 0.8
	weak.BehaviorSamples = 30
	got = PredictSuccess(weak, nil, now)
	assert.InDelta(t, 0.215, got.Probability, 1e-9)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, RiskHigh, got.RiskLevel)
	assert.Equal(t, []Factor{
		{Name: "Low Success Rate", Impact: ImpactNegative, Value: "20%"},
		{Name: "High AI Dependency", Impact: ImpactNegative, Value: "80%"},
	}, got.Factors)
}

func TestRecommendDifficulty(t *testing.T) {
	assert.Empty(t, RecommendDifficulty(newTwin()).Difficulty)

	withStats := func(completed int, stats map[string]types.DifficultyStat) *types.StudentTwin {
		tw := newTwin()
		tw.TotalAttempts, tw.TotalCompleted = 10, completed
		tw.SetStats(stats)
		return tw
	}
	medium := map[string]types.DifficultyStat{
		types.DifficultyEasy:   {Attempted: 4, Completed: 3},
		types.DifficultyMedium: {Attempted: 6, Completed: 1},
	}
	hard := map[string]types.DifficultyStat{
		types.DifficultyHard: {Attempted: 10, Completed: 9},
	}

	cases := []struct {
		name      string
		completed int
		stats     map[string]types.DifficultyStat
		want      string
		expected  float64
	}{
		{"strong moves up", 9, medium, types.DifficultyHard, 100},
		{"steady stays", 6, medium, types.DifficultyMedium, 70},
		{"struggling steps down", 2, medium, types.DifficultyEasy, 30},
		{"hard is the ceiling", 9, hard, types.DifficultyHard, 100},
		{"nothing completed stays easy", 1, nil, types.DifficultyEasy, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RecommendDifficulty(withStats(tc.completed, tc.stats))
			assert.Equal(t, tc.want, got.Difficulty)
			assert.Equal(t, tc.expected, got.ExpectedSuccessRate)
			assert.NotEmpty(t, got.Reasoning)
		})
	}
}
