package twin

import (
	"strings"

	types "github.com/yungbote/labtwin-backend/internal/domain"
	domaintwin "github.com/yungbote/labtwin-backend/internal/domain/twin"
	"github.com/yungbote/labtwin-backend/internal/learning/policy"
)

const (
	PersonaSocratic   = "socratic"
	PersonaSupportive = "supportive"
	PersonaStructured = "structured"
	PersonaBalanced   = "balanced"

	minAttemptsForPersona = 3
)

func validPersona(p string) bool {
	switch p {
	case PersonaSocratic, PersonaSupportive, PersonaStructured, PersonaBalanced:
		return true
	}
	return false
}

// Persona picks the tutoring style for prompts. An explicit preference
// wins; otherwise the shadow classifier reads dependency, success rate and
// coding style.
func Persona(t *types.StudentTwin) string {
	if t == nil {
		return PersonaBalanced
	}
	if p := strings.ToLower(strings.TrimSpace(t.PersonalityPreference)); validPersona(p) {
		return p
	}
	return ShadowPersona(t)
}

// ShadowPersona ignores the stated preference.
func ShadowPersona(t *types.StudentTwin) string {
	if t == nil || t.TotalAttempts < minAttemptsForPersona {
		return PersonaBalanced
	}
	success := float64(t.TotalCompleted) / float64(t.TotalAttempts)
	switch {
	case t.AIDependencyScore > 0.6:
		return PersonaSocratic
	case success < 0.4:
		return PersonaSupportive
	case t.PreferredCodingStyle == domaintwin.StyleWriteThenDebug || t.PreferredCodingStyle == domaintwin.StyleCopyModify:
		return PersonaStructured
	default:
		return PersonaBalanced
	}
}

// ProfileOf adapts the twin for the level-suggestion heuristic.
func ProfileOf(t *types.StudentTwin, avgHintLevel float64) policy.Profile {
	if t == nil || t.TotalAttempts == 0 {
		return policy.Profile{AvgHintLevel: avgHintLevel}
	}
	return policy.Profile{
		Known:        true,
		AIDependency: t.AIDependencyScore,
		SuccessRate:  100 * float64(t.TotalCompleted) / float64(t.TotalAttempts),
		AvgHintLevel: avgHintLevel,
	}
}
