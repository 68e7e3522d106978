package twin

import (
	"sort"
	"time"

	types "github.com/yungbote/labtwin-backend/internal/domain"
	domaintwin "github.com/yungbote/labtwin-backend/internal/domain/twin"
)

const (
	MaxVelocityHistory = 30
	// MinTrendPoints is the shortest history that yields a trend.
	MinTrendPoints = 6
	trendWindow    = 5
	trendThreshold = 5.0
	insightCount   = 3
	velocitySmooth = 0.3
)

var difficultyWeight = map[string]float64{
	types.DifficultyEasy:   0.5,
	types.DifficultyMedium: 1.0,
	types.DifficultyHard:   1.5,
}

// WeightedSuccess averages per-difficulty success rates, weighting harder
// work more and by volume.
func WeightedSuccess(stats map[string]types.DifficultyStat) float64 {
	var num, den float64
	for d, st := range stats {
		w, ok := difficultyWeight[d]
		if !ok || st.Attempted <= 0 {
			continue
		}
		num += w * st.SuccessRate * float64(st.Attempted)
		den += w * float64(st.Attempted)
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// AvgProficiency is the mean proficiency across a student's topics.
func AvgProficiency(comps []*types.StudentCompetency) float64 {
	var sum float64
	var n int
	for _, c := range comps {
		if c == nil {
			continue
		}
		sum += c.ProficiencyLevel
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// UpdateLearningVelocity smooths the current performance into the velocity,
// appends it to the bounded history and refreshes the dependency trend.
func UpdateLearningVelocity(t *types.StudentTwin, comps []*types.StudentCompetency, now time.Time) float64 {
	if t == nil {
		return 0
	}
	aiIndependence := 1 - 0.3*t.AIDependencyScore
	perf := 40*AvgProficiency(comps) + 40*WeightedSuccess(t.Stats()) + 20*aiIndependence

	v := round(clamp(velocitySmooth*t.LearningVelocity+(1-velocitySmooth)*perf, -100, 100), 1)
	t.LearningVelocity = v

	points := append(t.Velocities(), types.VelocityPoint{Value: v, At: now})
	if len(points) > MaxVelocityHistory {
		points = points[len(points)-MaxVelocityHistory:]
	}
	t.SetVelocities(points)
	t.DependencyTrend = Trend(points)
	return v
}

// Trend compares the mean of the last five points with the five before.
// Rising velocity means the student leans on hints less.
func Trend(points []types.VelocityPoint) string {
	if len(points) < MinTrendPoints {
		return domaintwin.TrendUnknown
	}
	recent := points[len(points)-trendWindow:]
	start := max(len(points)-2*trendWindow, 0)
	prior := points[start : len(points)-trendWindow]

	diff := meanValue(recent) - meanValue(prior)
	switch {
	case diff > trendThreshold:
		return domaintwin.TrendDecreasing
	case diff < -trendThreshold:
		return domaintwin.TrendIncreasing
	default:
		return domaintwin.TrendStable
	}
}

func meanValue(points []types.VelocityPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}

// UpdateInsights ranks topics by proficiency. Strengths are the top three,
// weaknesses the bottom three weakest first; with fewer than six topics the
// two lists overlap. Recommended topics are the weaknesses.
func UpdateInsights(t *types.StudentTwin, comps []*types.StudentCompetency) {
	if t == nil {
		return
	}
	ranked := make([]*types.StudentCompetency, 0, len(comps))
	for _, c := range comps {
		if c != nil && c.Topic != "" {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ProficiencyLevel != ranked[j].ProficiencyLevel {
			return ranked[i].ProficiencyLevel > ranked[j].ProficiencyLevel
		}
		return ranked[i].Topic < ranked[j].Topic
	})

	n := len(ranked)
	nStrong := min(insightCount, n)
	nWeak := min(insightCount, n)

	strengths := make([]string, 0, nStrong)
	for _, c := range ranked[:nStrong] {
		strengths = append(strengths, c.Topic)
	}
	weaknesses := make([]string, 0, nWeak)
	for i := n - 1; i >= n-nWeak; i-- {
		weaknesses = append(weaknesses, ranked[i].Topic)
	}
	t.SetInsights(strengths, weaknesses, weaknesses)
}
