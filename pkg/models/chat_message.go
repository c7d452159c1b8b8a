package models

import (
	"fmt"
)

// ChatMessageKind discriminates the ChatMessage variants. Exactly one of
// the variant-specific fields on a ChatMessage is populated for a given
// kind; the others are left zero.
type ChatMessageKind string

const (
	ChatMessageUser            ChatMessageKind = "user"
	ChatMessageAssistantText   ChatMessageKind = "assistant_text"
	ChatMessageAssistantCalls  ChatMessageKind = "assistant_tool_calls"
	ChatMessageTool            ChatMessageKind = "tool"
)

// ChatMessage is a tagged sum type standing in for the teacher's dynamic
// message dict: User{text}, Assistant{text} XOR Assistant{tool_calls}, and
// Tool{name, call_id, payload}. Only the fields matching Kind are
// meaningful.
type ChatMessage struct {
	Kind ChatMessageKind `json:"kind"`

	// Text carries the message body for ChatMessageUser and
	// ChatMessageAssistantText.
	Text string `json:"text,omitempty"`

	// ToolCalls carries the assistant's requested calls for
	// ChatMessageAssistantCalls. Mutually exclusive with Text on the same
	// message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolName, ToolCallID, and Payload populate ChatMessageTool.
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Payload    string `json:"payload,omitempty"`
}

// NewUserMessage builds a User variant.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{Kind: ChatMessageUser, Text: text}
}

// NewAssistantTextMessage builds an Assistant{text} variant.
func NewAssistantTextMessage(text string) ChatMessage {
	return ChatMessage{Kind: ChatMessageAssistantText, Text: text}
}

// NewAssistantToolCallsMessage builds an Assistant{tool_calls} variant.
func NewAssistantToolCallsMessage(calls []ToolCall) ChatMessage {
	return ChatMessage{Kind: ChatMessageAssistantCalls, ToolCalls: calls}
}

// NewToolMessage builds a Tool variant carrying a call result payload.
func NewToolMessage(name, callID, payload string) ChatMessage {
	return ChatMessage{Kind: ChatMessageTool, ToolName: name, ToolCallID: callID, Payload: payload}
}

// Validate enforces the ChatMessage invariants: exactly one variant's
// fields are populated for the declared Kind.
func (m ChatMessage) Validate() error {
	switch m.Kind {
	case ChatMessageUser, ChatMessageAssistantText:
		if len(m.ToolCalls) > 0 {
			return fmt.Errorf("models: %s message must not carry tool_calls", m.Kind)
		}
	case ChatMessageAssistantCalls:
		if len(m.ToolCalls) == 0 {
			return fmt.Errorf("models: assistant_tool_calls message requires at least one ToolCall")
		}
		if m.Text != "" {
			return fmt.Errorf("models: assistant_tool_calls message must not carry text")
		}
	case ChatMessageTool:
		if m.ToolName == "" {
			return fmt.Errorf("models: tool message requires a name")
		}
	default:
		return fmt.Errorf("models: unknown ChatMessage kind %q", m.Kind)
	}
	return nil
}

// HistoryInvariant checks the ChatMessage-list-wide rule: every
// Assistant{tool_calls} message's call ids eventually have a matching Tool
// message, and the match for call id k appears after the assistant message
// that declared it.
func HistoryInvariant(history []ChatMessage) error {
	pending := map[string]int{}
	for i, msg := range history {
		switch msg.Kind {
		case ChatMessageAssistantCalls:
			for _, call := range msg.ToolCalls {
				if call.ID == "" {
					continue
				}
				pending[call.ID] = i
			}
		case ChatMessageTool:
			if msg.ToolCallID == "" {
				continue
			}
			declaredAt, ok := pending[msg.ToolCallID]
			if !ok {
				return fmt.Errorf("models: tool message call_id %q has no declaring assistant message", msg.ToolCallID)
			}
			if declaredAt > i {
				return fmt.Errorf("models: tool message call_id %q appears before its assistant message", msg.ToolCallID)
			}
			delete(pending, msg.ToolCallID)
		}
	}
	return nil
}
