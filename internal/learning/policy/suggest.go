package policy

// Profile is the slice of the learning twin the suggestion heuristic uses.
type Profile struct {
	Known        bool
	AIDependency float64
	// SuccessRate is a percentage in [0, 100].
	SuccessRate  float64
	AvgHintLevel float64
}

type Suggestion struct {
	SuggestedLevel        int    `json:"suggestedLevel"`
	Reasoning             string `json:"reasoning"`
	EncourageIndependence bool   `json:"encourageIndependence"`
}

// Suggest is advisory only: it never grants anything, and callers still
// clamp it with RecommendedLevel bounds.
func Suggest(p Profile, timeSpentSeconds, attempts int) Suggestion {
	if !p.Known {
		return Suggestion{SuggestedLevel: 2, Reasoning: "Using default hint level"}
	}
	avg := int(p.AvgHintLevel)
	if avg < 1 {
		avg = 2
	}
	s := Suggestion{SuggestedLevel: avg, Reasoning: "Standard assistance level"}
	switch {
	case p.AIDependency > 0.6:
		s.SuggestedLevel = max(1, avg-1)
		s.EncourageIndependence = true
		s.Reasoning = "Encouraging independent problem-solving"
	case p.AIDependency < 0.3 && p.SuccessRate > 70:
		s.SuggestedLevel = min(MaxLevel, avg+1)
		s.Reasoning = "Strong independent work - full assistance available"
	}
	if timeSpentSeconds > 600 {
		s.SuggestedLevel = min(s.SuggestedLevel+1, MaxLevel)
		s.Reasoning = "Extended struggle - offering more help"
	}
	if attempts >= 3 {
		s.SuggestedLevel = min(s.SuggestedLevel+1, MaxLevel)
		s.Reasoning = "Multiple attempts - providing additional guidance"
	}
	return s
}
