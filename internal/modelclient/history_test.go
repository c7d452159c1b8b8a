package modelclient

import (
	"testing"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

func TestNormalizeExpandsMultiCallAssistantMessage(t *testing.T) {
	history := []models.ChatMessage{
		models.NewUserMessage("find the widget"),
		models.NewAssistantToolCallsMessage([]models.ToolCall{
			{ID: "1", Name: "search", Arguments: map[string]any{"q": "widget"}},
			{ID: "2", Name: "click", Arguments: map[string]any{"token": "{Widget}"}},
		}),
		models.NewToolMessage("search", "1", `{"ok":true}`),
		models.NewToolMessage("click", "2", `{"ok":true}`),
	}

	turns := Normalize(history)
	if len(turns) != 5 {
		t.Fatalf("len(turns) = %d, want 5 (1 user + 2 tool_call + 2 tool_result)", len(turns))
	}
	if turns[1].Kind != TurnToolCall || turns[1].ToolCall.ID != "1" {
		t.Errorf("turns[1] = %+v, want first expanded tool call", turns[1])
	}
	if turns[2].Kind != TurnToolCall || turns[2].ToolCall.ID != "2" {
		t.Errorf("turns[2] = %+v, want second expanded tool call", turns[2])
	}
}

func TestToolResultIndexKeysByCallID(t *testing.T) {
	turns := Normalize([]models.ChatMessage{
		models.NewToolMessage("search", "abc", "result-1"),
	})
	idx := toolResultIndex(turns)
	got, ok := idx["abc"]
	if !ok {
		t.Fatal("expected call id abc in index")
	}
	if got.Payload != "result-1" {
		t.Errorf("Payload = %q, want result-1", got.Payload)
	}
}
