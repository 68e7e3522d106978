package prompts

import (
	"regexp"
	"strings"

	"github.com/yungbote/labtwin-backend/internal/inference/engine"
)

// MinHintLength is the shortest cleaned output accepted as a hint.
const MinHintLength = 10

var newlineNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

var (
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
	questionRe  = regexp.MustCompile(`[^.!?\n]*\?`)
	gradeLeadRe = regexp.MustCompile(`(?is)^[\s*_#>"'` + "`" + `]*(PASS|FAIL)\b[\s*_:.,\-]*(.*)$`)
)

// Clean strips reasoning blocks, collapses runs of three or more newlines
// to two and trims. Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	s = newlineNormalizer.Replace(s)
	// Removing one block can splice the halves of another tag together.
	for {
		next := engine.StripThinking(s)
		if next == s {
			break
		}
		s = next
	}
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ExtractQuestion pulls the first interrogative sentence out of a model
// reply. ok is false when none longer than MinHintLength exists.
func ExtractQuestion(s string) (question string, ok bool) {
	m := questionRe.FindString(Clean(s))
	m = strings.TrimSpace(strings.Trim(strings.TrimSpace(m), `"'*_`+"`"))
	m = strings.TrimSpace(strings.TrimPrefix(m, "Question:"))
	if len(m) <= MinHintLength || !strings.HasSuffix(m, "?") {
		return "", false
	}
	return m, true
}

// ParseGrade reads a grader reply that must begin with PASS or FAIL. Only
// the leading verdict counts; a reply without one is ok == false and
// passed == false.
func ParseGrade(s string) (passed bool, feedback string, ok bool) {
	s = Clean(s)
	if m := gradeLeadRe.FindStringSubmatch(s); m != nil {
		return strings.EqualFold(m[1], "PASS"), strings.TrimSpace(m[2]), true
	}
	return false, s, false
}
