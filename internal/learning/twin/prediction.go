package twin

import (
	"fmt"
	"time"

	types "github.com/yungbote/labtwin-backend/internal/domain"
)

const (
	RiskLow     = "low"
	RiskMedium  = "medium"
	RiskHigh    = "high"
	RiskUnknown = "unknown"

	ImpactPositive = "positive"
	ImpactNegative = "negative"

	// confidenceSamples is the amount of evidence at which a prediction is
	// fully trusted.
	confidenceSamples = 20
	staleAfterDays    = 7
)

type Factor struct {
	Name   string `json:"name"`
	Impact string `json:"impact"`
	Value  string `json:"value"`
}

// SuccessPrediction estimates how likely the student is to complete the
// next activity.
type SuccessPrediction struct {
	Probability float64  `json:"probability"`
	Confidence  float64  `json:"confidence"`
	RiskLevel   string   `json:"riskLevel"`
	Factors     []Factor `json:"factors"`
}

// PredictSuccess blends success rate (0.30), average proficiency (0.25),
// independence from AI (0.15), learning velocity (0.20) and recency (0.10).
// A twin with no attempts gets an even, zero-confidence prediction.
func PredictSuccess(t *types.StudentTwin, comps []*types.StudentCompetency, now time.Time) SuccessPrediction {
	if t == nil || t.TotalAttempts == 0 {
		return SuccessPrediction{Probability: 0.5, RiskLevel: RiskUnknown, Factors: []Factor{}}
	}
	success := float64(t.TotalCompleted) / float64(t.TotalAttempts)
	score := 0.5
	if len(comps) > 0 {
		score = AvgProficiency(comps)
	}
	velocity := clamp(t.LearningVelocity/100, 0, 1)
	days := float64(staleAfterDays)
	if t.LastActivityDate != nil {
		days = max(now.Sub(*t.LastActivityDate).Hours()/24, 0)
	}
	stale := min(days/staleAfterDays, 1)

	p := 0.30*success + 0.25*score + 0.15*(1-t.AIDependencyScore) + 0.20*velocity + 0.10*(1-stale)
	p = clamp(p, 0, 1)
	evidence := float64(t.TotalAttempts + t.BehaviorSamples)
	return SuccessPrediction{
		Probability: round(p, 3),
		Confidence:  round(min(evidence/confidenceSamples, 1), 3),
		RiskLevel:   riskLevel(p),
		Factors:     factors(100*success, t.AIDependencyScore),
	}
}

func riskLevel(p float64) string {
	switch {
	case p >= 0.8:
		return RiskLow
	case p >= 0.5:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func factors(successPct, dependency float64) []Factor {
	out := []Factor{}
	switch {
	case successPct >= 70:
		out = append(out, Factor{Name: "High Success Rate", Impact: ImpactPositive, Value: fmt.Sprintf("%.0f%%", successPct)})
	case successPct < 40:
		out = append(out, Factor{Name: "Low Success Rate", Impact: ImpactNegative, Value: fmt.Sprintf("%.0f%%", successPct)})
	}
	switch {
	case dependency > 0.6:
		out = append(out, Factor{Name: "High AI Dependency", Impact: ImpactNegative, Value: fmt.Sprintf("%.0f%%", 100*dependency)})
	case dependency < 0.2:
		out = append(out, Factor{Name: "Independent Learner", Impact: ImpactPositive, Value: fmt.Sprintf("%.0f%%", 100*dependency)})
	}
	return out
}

// DifficultyAdvice is the next difficulty to practise at.
type DifficultyAdvice struct {
	Difficulty          string  `json:"difficulty,omitempty"`
	Reasoning           string  `json:"reasoning"`
	ExpectedSuccessRate float64 `json:"expectedSuccessRate,omitempty"`
}

var difficultyLadder = []string{types.DifficultyEasy, types.DifficultyMedium, types.DifficultyHard}

// RecommendDifficulty moves one step up the ladder from the hardest
// difficulty completed at a success rate of 80% or more, stays put from 50%
// and steps down below that.
func RecommendDifficulty(t *types.StudentTwin) DifficultyAdvice {
	if t == nil || t.TotalAttempts == 0 {
		return DifficultyAdvice{Reasoning: "Insufficient data for personalized recommendations"}
	}
	stats := t.Stats()
	current := 0
	for i, d := range difficultyLadder {
		if stats[d].Completed > 0 {
			current = i
		}
	}
	success := 100 * float64(t.TotalCompleted) / float64(t.TotalAttempts)

	next, reason := current, "Steady progress - continue at current level"
	switch {
	case success >= 80:
		next, reason = min(current+1, len(difficultyLadder)-1), "Strong performance - ready for harder challenges"
	case success < 50:
		next, reason = max(current-1, 0), "Building foundations - focus on basics first"
	}
	return DifficultyAdvice{
		Difficulty:          difficultyLadder[next],
		Reasoning:           reason,
		ExpectedSuccessRate: round(min(success+10, 100), 1),
	}
}
