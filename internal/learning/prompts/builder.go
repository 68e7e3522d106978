package prompts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yungbote/labtwin-backend/internal/inference/engine"
)

const (
	NoCodeYet     = "// No code submitted yet"
	NoErrorOutput = "No error output"
	notProvided   = "Not provided"

	DefaultLanguage = "python"
)

// Context is the pedagogical bag of fields a level template draws from.
type Context struct {
	ProblemTitle       string
	ProblemDescription string
	Topic              string
	Difficulty         string
	Language           string
	StudentCode        string
	ErrorOutput        string
	Examples           string
	TestCases          string
	PreviousHints      string
	RecentErrors       string
	StudentDescription string
	WhatTried          string
	LearningStyle      string
	// Persona is the twin's shadow persona; it shapes tone, not content.
	Persona string
}

// Builder renders prompts from the template catalog. It is safe for
// concurrent use.
type Builder struct {
	cat             *catalog
	defaultLanguage string
}

// Default returns a Builder over the embedded templates.
func Default() *Builder {
	b, err := Load(defaultTemplates, DefaultLanguage)
	if err != nil {
		panic(err)
	}
	return b
}

// Load parses a template catalog. An empty defaultLanguage means python.
func Load(raw []byte, defaultLanguage string) (*Builder, error) {
	cat, err := parseCatalog(raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(defaultLanguage) == "" {
		defaultLanguage = DefaultLanguage
	}
	return &Builder{cat: cat, defaultLanguage: strings.TrimSpace(defaultLanguage)}, nil
}

func (b *Builder) Version() int { return b.cat.Version }

var placeholderRe = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_]*)\}`)

// substitute replaces {name} placeholders in one pass. Unknown names stay
// as written and substituted values are never rescanned.
func substitute(tmpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func (b *Builder) vars(c Context) map[string]string {
	return map[string]string{
		"problemTitle":       orDefault(c.ProblemTitle, "Untitled problem"),
		"problemDescription": orDefault(c.ProblemDescription, notProvided),
		"topic":              orDefault(c.Topic, "general"),
		"difficulty":         orDefault(c.Difficulty, "medium"),
		"language":           orDefault(c.Language, b.defaultLanguage),
		"studentCode":        orDefault(c.StudentCode, NoCodeYet),
		"errorOutput":        orDefault(c.ErrorOutput, NoErrorOutput),
		"examples":           orDefault(c.Examples, "None"),
		"testCases":          orDefault(c.TestCases, "None"),
		"previousHints":      orDefault(c.PreviousHints, "None"),
		"recentErrors":       orDefault(c.RecentErrors, "None"),
		"studentDescription": orDefault(c.StudentDescription, notProvided),
		"whatTried":          orDefault(c.WhatTried, notProvided),
		"learningStyle":      orDefault(c.LearningStyle, "balanced"),
	}
}

// Build renders the user prompt for a hint level.
func (b *Builder) Build(level int, c Context) (string, error) {
	t, ok := b.cat.Levels[level]
	if !ok || level < 1 || level > 5 {
		return "", fmt.Errorf("no template for hint level %d", level)
	}
	return strings.TrimSpace(substitute(t.Template, b.vars(c))), nil
}

// SystemPrompt returns the tutor system prompt, with the persona's tone
// line appended when one is known.
func (b *Builder) SystemPrompt(persona string) string {
	s := strings.TrimSpace(b.cat.SystemPrompt)
	if style := strings.TrimSpace(b.cat.PersonaStyles[persona]); style != "" {
		s += " " + style
	}
	return s
}

// HintPrompt is the system+user pair for a hint.
func (b *Builder) HintPrompt(level int, c Context) (Prompt, error) {
	user, err := b.Build(level, c)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{
		Name:    string(levelPromptName(level)),
		Version: b.cat.Version,
		System:  b.SystemPrompt(c.Persona),
		User:    user,
	}, nil
}

func (b *Builder) Messages(level int, c Context) ([]engine.Message, error) {
	p, err := b.HintPrompt(level, c)
	if err != nil {
		return nil, err
	}
	return p.Messages(), nil
}

func (b *Builder) LevelName(level int) string {
	return b.cat.Levels[level].Name
}

// QuestionPrompt asks for a single comprehension question about hint.
func (b *Builder) QuestionPrompt(level int, hint string, c Context) Prompt {
	vars := b.vars(c)
	vars["level"] = strconv.Itoa(level)
	vars["hint"] = hint
	return Prompt{
		Name:    string(PromptQuestion),
		Version: b.cat.Version,
		System:  b.cat.QuestionGenerator.System,
		User:    strings.TrimSpace(substitute(b.cat.QuestionGenerator.Template, vars)),
	}
}

// GraderPrompt asks the model to grade answer with a PASS/FAIL lead.
func (b *Builder) GraderPrompt(question, answer, hint string) Prompt {
	vars := map[string]string{
		"question": question,
		"answer":   orDefault(answer, "(no answer)"),
		"hint":     orDefault(hint, "None"),
	}
	return Prompt{
		Name:    string(PromptGrader),
		Version: b.cat.Version,
		System:  b.cat.Grader.System,
		User:    strings.TrimSpace(substitute(b.cat.Grader.Template, vars)),
	}
}

// SocraticMessages builds a chat turn. history holds earlier user and
// assistant turns; the current problem context always leads.
func (b *Builder) SocraticMessages(c Context, history []engine.Message) []engine.Message {
	out := []engine.Message{{Role: engine.RoleSystem, Content: strings.TrimSpace(b.cat.Socratic.System)}}
	if style := strings.TrimSpace(b.cat.PersonaStyles[c.Persona]); style != "" {
		out[0].Content += " " + style
	}
	out = append(out, engine.Message{Role: engine.RoleUser, Content: strings.TrimSpace(substitute(b.cat.Socratic.Template, b.vars(c)))})
	for _, m := range history {
		if m.Role != engine.RoleUser && m.Role != engine.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (b *Builder) FallbackQuestion(level int) string {
	if q, ok := b.cat.FallbackQuestions[level]; ok {
		return strings.TrimSpace(q)
	}
	return strings.TrimSpace(b.cat.FallbackQuestions[4])
}

func (b *Builder) Encouragement() string {
	return strings.TrimSpace(b.cat.Encouragement)
}

// BuildRefusalMessage renders the user-visible text for a refusal kind.
// Params fill {name} placeholders; level_locked additionally takes
// previousLevel to mention the previous-level requirement.
func (b *Builder) BuildRefusalMessage(kind RefusalKind, params map[string]any) string {
	tmpl, ok := b.cat.Refusals[kind]
	if !ok {
		return "This hint is not available right now."
	}
	vars := make(map[string]string, len(params)+1)
	for k, v := range params {
		vars[k] = fmt.Sprint(v)
	}
	if kind == RefusalLevelLocked {
		vars["previousRequirement"] = ""
		if _, ok := params["previousLevel"]; ok {
			vars["previousRequirement"] = substitute(b.cat.Refusals["level_locked_previous"], vars)
		}
	}
	return strings.TrimSpace(substitute(tmpl, vars))
}
