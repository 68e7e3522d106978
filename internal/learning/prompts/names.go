package prompts

type PromptName string

const (
	PromptHintLevel1 PromptName = "hint_level_1"
	PromptHintLevel2 PromptName = "hint_level_2"
	PromptHintLevel3 PromptName = "hint_level_3"
	PromptHintLevel4 PromptName = "hint_level_4"
	PromptHintLevel5 PromptName = "hint_level_5"
	PromptQuestion   PromptName = "question_generator"
	PromptGrader     PromptName = "comprehension_grader"
	PromptSocratic   PromptName = "socratic"
)

// RefusalKind names a policy refusal. The values appear in API responses.
type RefusalKind string

const (
	RefusalLockdown              RefusalKind = "lockdown"
	RefusalQuotaExceeded         RefusalKind = "quota_exceeded"
	RefusalTooSoon               RefusalKind = "too_soon"
	RefusalNoCodeChange          RefusalKind = "no_code_change"
	RefusalLevelLocked           RefusalKind = "level_locked"
	RefusalComprehensionRequired RefusalKind = "comprehension_required"
)

func levelPromptName(level int) PromptName {
	switch level {
	case 1:
		return PromptHintLevel1
	case 2:
		return PromptHintLevel2
	case 3:
		return PromptHintLevel3
	case 4:
		return PromptHintLevel4
	default:
		return PromptHintLevel5
	}
}
