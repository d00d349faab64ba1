package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	WizardFirstStep = 1
	WizardLastStep  = 4
)

// WizardState is the per-session snapshot of a registration wizard that is
// cached between requests so a reload resumes on the same step.
type WizardState struct {
	DocumentID     *uuid.UUID `json:"documentId,omitempty"`
	IdempotencyKey uuid.UUID  `json:"idempotencyKey"`
	Step           int        `json:"step"`
	Sections       Sections   `json:"sections"`
	Submitted      bool       `json:"submitted"`
	AppliedAt      *time.Time `json:"appliedAt,omitempty"`
}

// NewWizardState returns the initial state: step 1, no remote record, fresh key.
func NewWizardState() WizardState {
	return WizardState{
		IdempotencyKey: uuid.New(),
		Step:           WizardFirstStep,
		Sections:       Sections{},
	}
}

// DecodeWizardState reads a cached snapshot written by any earlier version of
// the service. Fields that are missing or of the wrong shape fall back to their
// initial values; it never fails.
func DecodeWizardState(data []byte) WizardState {
	state := NewWizardState()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return state
	}

	var id uuid.UUID
	if v, ok := raw["documentId"]; ok && json.Unmarshal(v, &id) == nil && id != uuid.Nil {
		state.DocumentID = &id
	}

	var key uuid.UUID
	if v, ok := raw["idempotencyKey"]; ok && json.Unmarshal(v, &key) == nil && key != uuid.Nil {
		state.IdempotencyKey = key
	}

	var step int
	if v, ok := raw["step"]; ok && json.Unmarshal(v, &step) == nil && step >= WizardFirstStep && step <= WizardLastStep {
		state.Step = step
	}

	var sections map[SectionName]json.RawMessage
	if v, ok := raw["sections"]; ok && json.Unmarshal(v, &sections) == nil {
		for name, section := range sections {
			if len(section) == 0 || string(section) == "null" {
				continue
			}
			state.Sections[name] = section
		}
	}

	var submitted bool
	if v, ok := raw["submitted"]; ok && json.Unmarshal(v, &submitted) == nil {
		state.Submitted = submitted
	}

	var appliedAt time.Time
	if v, ok := raw["appliedAt"]; ok && json.Unmarshal(v, &appliedAt) == nil && !appliedAt.IsZero() {
		state.AppliedAt = &appliedAt
	}

	// a submitted draft without a record is not resumable
	if state.Submitted && state.DocumentID == nil {
		state.Submitted = false
		state.AppliedAt = nil
	}
	return state
}
