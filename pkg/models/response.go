package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StepExecution is the model's per-turn decision about what kind of work
// this response represents.
type StepExecution string

const (
	ExecSingle            StepExecution = "SINGLE"
	ExecSequence          StepExecution = "SEQUENCE"
	ExecSuccess           StepExecution = "SUCCESS"
	ExecWait              StepExecution = "WAIT"
	ExecBack              StepExecution = "BACK"
	ExecDismissModal      StepExecution = "DISMISS_MODAL"
	ExecCloseCurrentTab   StepExecution = "CLOSE_CURRENT_TAB"
	ExecDelegateToUser    StepExecution = "DELEGATE_TO_USER"
	ExecDelegateToAgent   StepExecution = "DELEGATE_TO_AGENT"
)

// LLMResponse is the parsed shape of one model turn. Step holds a single
// LLMStep or a list under the same JSON key (the model is permitted to
// answer either way); Steps always holds the SEQUENCE-form list. AllSteps
// normalizes both into one ordered slice.
type LLMResponse struct {
	StepExecution StepExecution `json:"step_execution"`
	Step          []LLMStep     `json:"-"`
	Steps         []LLMStep     `json:"steps,omitempty"`
	Reasoning     string        `json:"reasoning"`
	Answer        string        `json:"answer,omitempty"`
	ToolCalls     []ToolCall    `json:"tool_calls,omitempty"`
}

// AllSteps returns whichever of Step/Steps is populated, preserving order.
func (r LLMResponse) AllSteps() []LLMStep {
	if len(r.Steps) > 0 {
		return r.Steps
	}
	return r.Step
}

// HasToolCalls reports whether this turn is a tool-dispatch response
// rather than a page-action response.
func (r LLMResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

type llmResponseWire struct {
	StepExecution StepExecution   `json:"step_execution"`
	Step          json.RawMessage `json:"step,omitempty"`
	Steps         []LLMStep       `json:"steps,omitempty"`
	Reasoning     string          `json:"reasoning"`
	Answer        string          `json:"answer,omitempty"`
	ToolCalls     []ToolCall      `json:"tool_calls,omitempty"`
}

// UnmarshalJSON permissively accepts "step" as either a single LLMStep
// object or an array of LLMStep, mirroring what model output actually
// sends across vendors.
func (r *LLMResponse) UnmarshalJSON(data []byte) error {
	var wire llmResponseWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.StepExecution = wire.StepExecution
	r.Steps = wire.Steps
	r.Reasoning = wire.Reasoning
	r.Answer = wire.Answer
	r.ToolCalls = wire.ToolCalls
	r.Step = nil

	trimmed := bytes.TrimSpace(wire.Step)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '[' {
		var steps []LLMStep
		if err := json.Unmarshal(trimmed, &steps); err != nil {
			return fmt.Errorf("models: decode step array: %w", err)
		}
		r.Step = steps
		return nil
	}
	var step LLMStep
	if err := json.Unmarshal(trimmed, &step); err != nil {
		return fmt.Errorf("models: decode step object: %w", err)
	}
	r.Step = []LLMStep{step}
	return nil
}
