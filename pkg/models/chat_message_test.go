package models

import "testing"

func TestChatMessageValidate(t *testing.T) {
	cases := []struct {
		name    string
		msg     ChatMessage
		wantErr bool
	}{
		{"user ok", NewUserMessage("hi"), false},
		{"assistant text ok", NewAssistantTextMessage("hello"), false},
		{"assistant calls ok", NewAssistantToolCallsMessage([]ToolCall{{ID: "1", Name: "fill"}}), false},
		{"assistant calls empty", ChatMessage{Kind: ChatMessageAssistantCalls}, true},
		{"tool ok", NewToolMessage("fill", "1", "{}"), false},
		{"tool missing name", ChatMessage{Kind: ChatMessageTool}, true},
		{"unknown kind", ChatMessage{Kind: "bogus"}, true},
		{"user with calls", ChatMessage{Kind: ChatMessageUser, ToolCalls: []ToolCall{{Name: "x"}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestHistoryInvariant(t *testing.T) {
	good := []ChatMessage{
		NewUserMessage("search for it"),
		NewAssistantToolCallsMessage([]ToolCall{{ID: "call-1", Name: "search"}}),
		NewToolMessage("search", "call-1", `{"ok":true}`),
	}
	if err := HistoryInvariant(good); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	missing := []ChatMessage{
		NewAssistantToolCallsMessage([]ToolCall{{ID: "call-1", Name: "search"}}),
	}
	if err := HistoryInvariant(missing); err != nil {
		t.Fatalf("unmatched call id with no tool message yet should not error: %v", err)
	}

	orphan := []ChatMessage{
		NewToolMessage("search", "call-1", `{}`),
	}
	if err := HistoryInvariant(orphan); err == nil {
		t.Fatal("expected error for tool message with no declaring assistant message")
	}
}
