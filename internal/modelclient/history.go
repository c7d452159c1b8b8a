package modelclient

import "github.com/haasonsaas/surfari-go/pkg/models"

// TurnKind discriminates a NormalizedTurn the same way models.ChatMessage
// does, except an assistant_tool_calls message has already been expanded
// into one TurnToolCall per call.
type TurnKind string

const (
	TurnUser          TurnKind = "user"
	TurnAssistantText TurnKind = "assistant_text"
	TurnToolCall      TurnKind = "tool_call"
	TurnToolResult    TurnKind = "tool_result"
)

// NormalizedTurn is one vendor-agnostic history item. Vendor adapters
// walk a []NormalizedTurn instead of []models.ChatMessage directly so the
// "one assistant message can carry N tool calls" expansion only has to be
// written once.
type NormalizedTurn struct {
	Kind TurnKind
	Text string

	ToolCall   models.ToolCall // TurnToolCall
	ToolName   string          // TurnToolResult
	ToolCallID string          // TurnToolResult
	Payload    string          // TurnToolResult
}

// Normalize expands history into NormalizedTurn, preserving order. Each
// ToolCall inside an assistant_tool_calls message becomes its own
// TurnToolCall entry in the order it appeared, matching how every vendor
// SDK expects N separate function-call items rather than one batched one.
func Normalize(history []models.ChatMessage) []NormalizedTurn {
	out := make([]NormalizedTurn, 0, len(history))
	for _, msg := range history {
		switch msg.Kind {
		case models.ChatMessageUser:
			out = append(out, NormalizedTurn{Kind: TurnUser, Text: msg.Text})
		case models.ChatMessageAssistantText:
			out = append(out, NormalizedTurn{Kind: TurnAssistantText, Text: msg.Text})
		case models.ChatMessageAssistantCalls:
			for _, call := range msg.ToolCalls {
				out = append(out, NormalizedTurn{Kind: TurnToolCall, ToolCall: call})
			}
		case models.ChatMessageTool:
			out = append(out, NormalizedTurn{
				Kind:       TurnToolResult,
				ToolName:   msg.ToolName,
				ToolCallID: msg.ToolCallID,
				Payload:    msg.Payload,
			})
		}
	}
	return out
}

// toolResultIndex builds a lookup from call_id to TurnToolResult turns.
// The adapters do not call it: the Anthropic, OpenAI and Bedrock adapters read
// ToolCallID off each result turn directly, and the Gemini adapter walks
// turns in order and pairs each TurnToolCall with the next
// TurnToolResult, since genai's FunctionResponse has no id field to key
// on.
func toolResultIndex(turns []NormalizedTurn) map[string]NormalizedTurn {
	idx := make(map[string]NormalizedTurn)
	for _, t := range turns {
		if t.Kind == TurnToolResult && t.ToolCallID != "" {
			idx[t.ToolCallID] = t
		}
	}
	return idx
}
