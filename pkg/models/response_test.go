package models

import (
	"encoding/json"
	"testing"
)

func TestLLMResponseUnmarshalSingleStepObject(t *testing.T) {
	raw := `{"step_execution":"SINGLE","step":{"action":"fill","target":"{Search}","value":"Macbook Pro"},"reasoning":"typing query"}`
	var resp LLMResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	steps := resp.AllSteps()
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].Action != ActionFill || steps[0].Target != "{Search}" {
		t.Fatalf("unexpected step: %+v", steps[0])
	}
}

func TestLLMResponseUnmarshalStepArray(t *testing.T) {
	raw := `{"step_execution":"SEQUENCE","step":[{"action":"click","target":"[Next]"},{"action":"fill","target":"{Email}","value":"a@b.com"}],"reasoning":"two actions"}`
	var resp LLMResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	steps := resp.AllSteps()
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
}

func TestLLMResponseUnmarshalStepsField(t *testing.T) {
	raw := `{"step_execution":"SEQUENCE","steps":[{"action":"click","target":"[Next]"}],"reasoning":"x"}`
	var resp LLMResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.AllSteps()) != 1 {
		t.Fatalf("expected 1 step from Steps field")
	}
}

func TestLLMResponseToolCalls(t *testing.T) {
	raw := `{"step_execution":"SINGLE","reasoning":"calling a tool","tool_calls":[{"id":"1","name":"read_file","arguments":{"path":"a.txt"}}]}`
	var resp LLMResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.HasToolCalls() {
		t.Fatal("expected HasToolCalls true")
	}
	if len(resp.AllSteps()) != 0 {
		t.Fatalf("expected no steps, got %d", len(resp.AllSteps()))
	}
}
