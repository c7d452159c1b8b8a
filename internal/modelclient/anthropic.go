package modelclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/surfari-go/internal/toolfabric"
	"github.com/haasonsaas/surfari-go/pkg/models"
)

// AnthropicProvider adapts the Messages API to Provider, grounded on
// internal/agent/providers/anthropic.go's convertMessages/convertTools
// but calling client.Messages.New (non-streaming) instead of
// NewStreaming, since process_prompt wants one Result, not a chunk
// channel.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

func NewAnthropicProvider(apiKey, defaultModel string) *AnthropicProvider {
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-20250514"
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: defaultModel,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Result, error) {
	messages, err := p.convertMessages(req)
	if err != nil {
		return Result{}, classify(ErrInvalidRequest, err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(req.Model)),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return Result{}, classify(ErrInvalidRequest, err)
		}
		params.Tools = tools
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Result{}, classify(classifyVendorError(err), err)
	}

	result := Result{
		Usage: models.TokenUsage{
			Vendor:       "anthropic",
			Model:        p.model(req.Model),
			Prompt:       int64(msg.Usage.InputTokens),
			CachedPrompt: int64(msg.Usage.CacheReadInputTokens),
			Completion:   int64(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			result.Text += block.AsText().Text
		case "tool_use":
			toolUse := block.AsToolUse()
			var args map[string]any
			if len(toolUse.Input) > 0 {
				if err := json.Unmarshal(toolUse.Input, &args); err != nil {
					args = map[string]any{"_raw": string(toolUse.Input)}
				}
			}
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:        toolUse.ID,
				Name:      toolUse.Name,
				Arguments: args,
			})
		}
	}
	return result, nil
}

func (p *AnthropicProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// convertMessages mirrors the teacher's role-folding (tool turns map to
// user messages, Anthropic has no separate tool role) but walks
// NormalizedTurn so one assistant_tool_calls message's N calls become N
// tool_use blocks in a single assistant message, matching what Anthropic
// expects for a multi-call turn.
func (p *AnthropicProvider) convertMessages(req Request) ([]anthropic.MessageParam, error) {
	turns := Normalize(req.History)
	var out []anthropic.MessageParam

	flush := func(role string, content []anthropic.ContentBlockParamUnion) {
		if len(content) == 0 {
			return
		}
		if role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}

	var pendingRole string
	var pending []anthropic.ContentBlockParamUnion
	appendBlock := func(role string, block anthropic.ContentBlockParamUnion) {
		if pendingRole != "" && pendingRole != role {
			flush(pendingRole, pending)
			pending = nil
		}
		pendingRole = role
		pending = append(pending, block)
	}

	for i, t := range turns {
		switch t.Kind {
		case TurnUser:
			appendBlock("user", anthropic.NewTextBlock(t.Text))
		case TurnAssistantText:
			appendBlock("assistant", anthropic.NewTextBlock(t.Text))
		case TurnToolCall:
			appendBlock("assistant", anthropic.NewToolUseBlock(t.ToolCall.ID, t.ToolCall.Arguments, t.ToolCall.Name))
		case TurnToolResult:
			if t.ToolCallID == "" {
				return nil, fmt.Errorf("anthropic: tool result at history index %d has no call_id", i)
			}
			appendBlock("user", anthropic.NewToolResultBlock(t.ToolCallID, t.Payload, false))
		}
	}
	flush(pendingRole, pending)
	return out, nil
}

func (p *AnthropicProvider) convertTools(decls []toolfabric.Declaration) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(decls))
	for _, d := range decls {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(d.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid schema for %s: %w", d.Name, err)
		}
		tool := anthropic.ToolUnionParamOfTool(schema, d.Name)
		if tool.OfTool != nil {
			tool.OfTool.Description = anthropic.String(d.Description)
		}
		out = append(out, tool)
	}
	return out, nil
}
