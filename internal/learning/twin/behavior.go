package twin

import (
	types "github.com/yungbote/labtwin-backend/internal/domain"
	domaintwin "github.com/yungbote/labtwin-backend/internal/domain/twin"
)

const (
	PatternFluent     = "fluent"
	PatternDeliberate = "deliberate"
	PatternPasteHeavy = "paste_heavy"
	PatternSteady     = "steady"

	// behaviorWindow caps the weight of history so recent sessions still
	// move the averages.
	behaviorWindow = 20

	minRevisionsForStyle = 5
	pasteStyleThreshold  = 0.3
	writeFirstRatio      = 2.5
)

// BehaviorSample is one editor telemetry report.
type BehaviorSample struct {
	TypingSpeed       float64 `json:"typingSpeed"`
	PauseSeconds      float64 `json:"pauseSeconds"`
	PasteFrequency    float64 `json:"pasteFrequency"`
	ActiveTimePercent float64 `json:"activeTimePercent"`
	SessionMinutes    float64 `json:"sessionMinutes"`
}

// Revision summarises one saved edit of the student's code.
type Revision struct {
	LinesAdded    int  `json:"linesAdded"`
	LinesModified int  `json:"linesModified"`
	LinesDeleted  int  `json:"linesDeleted"`
	Pasted        bool `json:"pasted"`
}

// UpdateBehavioralData folds a sample into the running averages and
// relabels the coding pattern.
func UpdateBehavioralData(t *types.StudentTwin, s BehaviorSample) {
	if t == nil {
		return
	}
	w := float64(min(t.BehaviorSamples, behaviorWindow-1))
	mix := func(prev, v float64) float64 {
		return round((prev*w+v)/(w+1), 3)
	}
	t.AvgTypingSpeed = mix(t.AvgTypingSpeed, max(s.TypingSpeed, 0))
	t.AvgPauseSeconds = mix(t.AvgPauseSeconds, max(s.PauseSeconds, 0))
	t.PasteFrequency = mix(t.PasteFrequency, clamp(s.PasteFrequency, 0, 1))
	t.ActiveTimePercent = mix(t.ActiveTimePercent, clamp(s.ActiveTimePercent, 0, 100))
	t.AvgSessionMinutes = mix(t.AvgSessionMinutes, max(s.SessionMinutes, 0))
	t.BehaviorSamples++
	t.CodingPattern = codingPattern(t)
}

func codingPattern(t *types.StudentTwin) string {
	switch {
	case t.BehaviorSamples == 0:
		return domaintwin.StyleUnknown
	case t.PasteFrequency > pasteStyleThreshold:
		return PatternPasteHeavy
	case t.AvgPauseSeconds > 10:
		return PatternDeliberate
	case t.AvgTypingSpeed >= 40 && t.AvgPauseSeconds < 5:
		return PatternFluent
	default:
		return PatternSteady
	}
}

// UpdateCodeRevisionMetrics counts a revision and re-derives the preferred
// coding style once enough revisions exist.
func UpdateCodeRevisionMetrics(t *types.StudentTwin, r Revision) {
	if t == nil {
		return
	}
	t.TotalRevisions++
	t.LinesAdded += max(r.LinesAdded, 0)
	t.LinesModified += max(r.LinesModified, 0)
	t.LinesDeleted += max(r.LinesDeleted, 0)
	if r.Pasted {
		t.PasteEvents++
	}
	t.PreferredCodingStyle = CodingStyle(t)
}

// CodingStyle classifies revision counters.
func CodingStyle(t *types.StudentTwin) string {
	if t == nil || t.TotalRevisions < minRevisionsForStyle {
		return domaintwin.StyleUnknown
	}
	if float64(t.PasteEvents)/float64(t.TotalRevisions) > pasteStyleThreshold {
		return domaintwin.StyleCopyModify
	}
	if float64(t.LinesAdded)/float64(max(t.LinesModified, 1)) >= writeFirstRatio {
		return domaintwin.StyleWriteThenDebug
	}
	return domaintwin.StyleIncremental
}
