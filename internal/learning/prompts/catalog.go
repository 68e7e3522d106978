package prompts

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// DefaultTemplates returns a copy of the embedded catalog, the starting
// point for an operator-supplied PROMPTS_FILE.
func DefaultTemplates() []byte {
	return append([]byte(nil), defaultTemplates...)
}

type levelTemplate struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

type pairTemplate struct {
	System   string `yaml:"system"`
	Template string `yaml:"template"`
}

type catalog struct {
	Version           int                    `yaml:"version"`
	SystemPrompt      string                 `yaml:"system_prompt"`
	PersonaStyles     map[string]string      `yaml:"persona_styles"`
	Levels            map[int]levelTemplate  `yaml:"levels"`
	QuestionGenerator pairTemplate           `yaml:"question_generator"`
	Grader            pairTemplate           `yaml:"comprehension_grader"`
	Socratic          pairTemplate           `yaml:"socratic"`
	FallbackQuestions map[int]string         `yaml:"fallback_questions"`
	Refusals          map[RefusalKind]string `yaml:"refusals"`
	Encouragement     string                 `yaml:"encouragement"`
}

func parseCatalog(raw []byte) (*catalog, error) {
	var c catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *catalog) validate() error {
	if strings.TrimSpace(c.SystemPrompt) == "" {
		return fmt.Errorf("prompt templates: system_prompt is empty")
	}
	for level := 1; level <= 5; level++ {
		if strings.TrimSpace(c.Levels[level].Template) == "" {
			return fmt.Errorf("prompt templates: level %d template is missing", level)
		}
		if strings.TrimSpace(c.FallbackQuestions[level]) == "" {
			return fmt.Errorf("prompt templates: level %d fallback question is missing", level)
		}
	}
	for _, kind := range []RefusalKind{
		RefusalLockdown, RefusalQuotaExceeded, RefusalTooSoon,
		RefusalNoCodeChange, RefusalLevelLocked, RefusalComprehensionRequired,
	} {
		if strings.TrimSpace(c.Refusals[kind]) == "" {
			return fmt.Errorf("prompt templates: refusal %q is missing", kind)
		}
	}
	if c.QuestionGenerator.Template == "" || c.Grader.Template == "" || c.Socratic.Template == "" {
		return fmt.Errorf("prompt templates: question_generator, comprehension_grader and socratic need a template")
	}
	return nil
}
