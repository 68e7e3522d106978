package twin

import (
	"math"
	"strings"
	"time"

	types "github.com/yungbote/labtwin-backend/internal/domain"
)

const (
	// hintsPerAttemptBaseline normalises totalAIRequests into a frequency.
	hintsPerAttemptBaseline = 3
	epsilon                 = 1e-9
)

// Outcome is one evaluated submission as seen by the twin.
type Outcome struct {
	Passed     bool
	AIRequests int
	Difficulty string
	HintsUsed  int
	At         time.Time
}

func normDifficulty(d string) string {
	switch s := strings.ToLower(strings.TrimSpace(d)); s {
	case types.DifficultyEasy, types.DifficultyMedium, types.DifficultyHard:
		return s
	default:
		return types.DifficultyMedium
	}
}

// RecordActivity folds one submission outcome into the twin's counters and
// recomputes the AI dependency score. TotalAIRequests is not touched here;
// it is bumped once per granted hint.
func RecordActivity(t *types.StudentTwin, o Outcome) {
	if t == nil {
		return
	}
	hints := max(o.HintsUsed, 0)

	t.TotalAttempts++
	if o.Passed {
		t.TotalCompleted++
	}

	stats := t.Stats()
	d := normDifficulty(o.Difficulty)
	st := stats[d]
	st.Attempted++
	if o.Passed {
		st.Completed++
	}
	st.SuccessRate = float64(st.Completed) / float64(st.Attempted)
	stats[d] = st
	t.SetStats(stats)

	t.AvgAIRequestsPerAttempt = runningAvg(t.AvgAIRequestsPerAttempt, float64(max(o.AIRequests, 0)), t.TotalAttempts)

	if o.Passed && hints > 0 {
		t.SuccessWithHints++
		t.AvgHintsBeforeSuccess = runningAvg(t.AvgHintsBeforeSuccess, float64(hints), t.SuccessWithHints)
	} else if o.Passed {
		t.SuccessWithoutHints++
	}

	t.AIDependencyScore = DependencyScore(t)

	if !o.At.IsZero() {
		at := o.At
		t.LastActivityDate = &at
	}
}

// DependencyScore is 0.4 hint frequency plus 0.6 hint reliance, in [0,1].
func DependencyScore(t *types.StudentTwin) float64 {
	if t == nil {
		return 0
	}
	var freq float64
	if t.TotalAttempts > 0 {
		freq = float64(t.TotalAIRequests) / float64(t.TotalAttempts*hintsPerAttemptBaseline)
	}
	swh := float64(t.SuccessWithHints)
	reliance := swh / (swh + float64(t.SuccessWithoutHints) + epsilon)
	return clamp(0.4*freq+0.6*reliance, 0, 1)
}

// UpdateProficiency moves a competency toward the observed score with an
// exponential moving average. Hints used on the attempt discount the
// observation by 5% each, up to five.
func UpdateProficiency(c *types.StudentCompetency, passed bool, score float64, hintsUsed int, at time.Time) {
	if c == nil {
		return
	}
	c.AttemptCount++
	if passed {
		c.SuccessCount++
	}
	c.HintsUsedCount += max(hintsUsed, 0)

	observed := clamp(score, 0, 1)
	observed *= 1 - 0.05*float64(min(max(hintsUsed, 0), 5))
	c.ProficiencyLevel = round(clamp(ProficiencyAlpha*observed+(1-ProficiencyAlpha)*c.ProficiencyLevel, 0, 1), 4)

	if !at.IsZero() {
		c.LastAttemptAt = &at
	}
}

// ProficiencyAlpha weights the newest observation.
const ProficiencyAlpha = 0.3

func runningAvg(prev, v float64, n int) float64 {
	if n <= 1 {
		return v
	}
	return (prev*float64(n-1) + v) / float64(n)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
