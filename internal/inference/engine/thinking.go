package engine

import (
	"regexp"
	"strings"
)

// Reasoning models wrap internal deliberation in <think> or <thinking>
// blocks. An unterminated block runs to the end of the text.
var thinkBlockRe = regexp.MustCompile(`(?is)<think(?:ing)?>.*?(?:</think(?:ing)?>|\z)`)

// StripThinking removes reasoning blocks and leaves everything else as is.
func StripThinking(s string) string {
	if !strings.Contains(strings.ToLower(s), "<think") {
		return s
	}
	return thinkBlockRe.ReplaceAllString(s, "")
}

// ThinkFilter turns a stream of raw deltas into user-visible deltas.
type ThinkFilter struct {
	raw     strings.Builder
	emitted int
}

// Push appends a raw delta and returns the newly visible text, if any.
func (f *ThinkFilter) Push(delta string) string {
	f.raw.WriteString(delta)
	visible := holdBackPartialTag(StripThinking(f.raw.String()))
	if len(visible) <= f.emitted {
		return ""
	}
	out := visible[f.emitted:]
	f.emitted = len(visible)
	return out
}

// Visible returns all user-visible text seen so far.
func (f *ThinkFilter) Visible() string {
	return StripThinking(f.raw.String())
}

// holdBackPartialTag drops a trailing fragment that could still become an
// opening think tag once the next delta arrives.
func holdBackPartialTag(s string) string {
	i := strings.LastIndexByte(s, '<')
	if i < 0 {
		return s
	}
	tail := strings.ToLower(s[i:])
	if strings.HasPrefix("<thinking>", tail) || strings.HasPrefix("<think>", tail) {
		return s[:i]
	}
	return s
}
