package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventHintGranted          = "hint_granted"
	EventHintRefused          = "hint_refused"
	EventComprehensionChecked = "comprehension_checked"
	EventSubmissionEvaluated  = "submission_evaluated"
	EventTwinUpdated          = "twin_updated"
)

// Event is the envelope carried on the bus. Data holds the type-specific
// payload as raw JSON so every transport moves the same bytes.
type Event struct {
	Type       string          `json:"type"`
	StudentID  uuid.UUID       `json:"studentId"`
	ActivityID uuid.UUID       `json:"activityId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func NewEvent(eventType string, studentID, activityID uuid.UUID, payload any) (Event, error) {
	ev := Event{
		Type:       eventType,
		StudentID:  studentID,
		ActivityID: activityID,
		OccurredAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
		}
		ev.Data = raw
	}
	return ev, nil
}

// Decode unmarshals Data into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s event has no payload", e.Type)
	}
	return json.Unmarshal(e.Data, v)
}

type HintGranted struct {
	HintID        uuid.UUID `json:"hintId"`
	Level         int       `json:"level"`
	Provider      string    `json:"provider"`
	FallbackUsed  bool      `json:"fallbackUsed"`
	Comprehension bool      `json:"comprehensionRequired"`
}

type HintRefused struct {
	Reason string `json:"reason"`
	Level  int    `json:"level"`
}

type ComprehensionChecked struct {
	HintID   uuid.UUID `json:"hintId"`
	Passed   bool      `json:"passed"`
	Attempts int       `json:"attempts"`
}

// SubmissionEvaluated is produced by the judge once a submission has run.
type SubmissionEvaluated struct {
	SubmissionID uuid.UUID `json:"submissionId"`
	Passed       bool      `json:"passed"`
	// Score is the fraction of tests passed, in [0,1].
	Score      float64 `json:"score"`
	HintsUsed  int     `json:"hintsUsed"`
	AIRequests int     `json:"aiRequests"`
	Topic      string  `json:"topic"`
	Difficulty string  `json:"difficulty"`
}

type TwinUpdated struct {
	LearningVelocity  float64 `json:"learningVelocity"`
	AIDependencyScore float64 `json:"aiDependencyScore"`
	DependencyTrend   string  `json:"dependencyTrend"`
}
