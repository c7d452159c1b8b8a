package modelclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/surfari-go/internal/toolfabric"
	"github.com/haasonsaas/surfari-go/pkg/models"
)

// OpenAIProvider adapts the OpenAI chat-completions API to Provider,
// grounded on the teacher's internal/agent/providers/openai.go request
// construction but collapsed to the SDK's non-streaming
// CreateChatCompletion call since process_prompt is synchronous.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIProvider builds a provider around an OpenAI-compatible API key.
func NewOpenAIProvider(apiKey, defaultModel string) *OpenAIProvider {
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	return &OpenAIProvider{client: openai.NewClient(apiKey), defaultModel: defaultModel}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Result, error) {
	messages, err := p.convertMessages(req)
	if err != nil {
		return Result{}, classify(ErrInvalidRequest, err)
	}

	ccr := openai.ChatCompletionRequest{
		Model:     p.model(req.Model),
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if len(req.Tools) > 0 {
		ccr.Tools = convertOpenAITools(req.Tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return Result{}, classify(classifyVendorError(err), err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, classify(ErrVendor, fmt.Errorf("openai: empty choices"))
	}

	msg := resp.Choices[0].Message
	result := Result{
		Text: msg.Content,
		Usage: models.TokenUsage{
			Vendor:     "openai",
			Model:      p.model(req.Model),
			Prompt:     int64(resp.Usage.PromptTokens),
			Completion: int64(resp.Usage.CompletionTokens),
		},
	}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{"_raw": tc.Function.Arguments}
			}
		}
		result.ToolCalls = append(result.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return result, nil
}

func (p *OpenAIProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// convertMessages walks the normalized history and appends an optional
// trailing screenshot to the last user turn, since go-openai's vision
// support is multi-part content on a user message rather than a separate
// attachment list.
func (p *OpenAIProvider) convertMessages(req Request) ([]openai.ChatCompletionMessage, error) {
	turns := Normalize(req.History)
	out := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if req.System != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}

	lastUserIdx := -1
	for _, t := range turns {
		switch t.Kind {
		case TurnUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: t.Text})
			lastUserIdx = len(out) - 1
		case TurnAssistantText:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: t.Text})
		case TurnToolCall:
			argsJSON, err := json.Marshal(t.ToolCall.Arguments)
			if err != nil {
				return nil, fmt.Errorf("openai: marshal tool call arguments: %w", err)
			}
			out = append(out, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   t.ToolCall.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      t.ToolCall.Name,
						Arguments: string(argsJSON),
					},
				}},
			})
		case TurnToolResult:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    t.Payload,
				ToolCallID: t.ToolCallID,
				Name:       t.ToolName,
			})
		}
	}

	if len(req.Image) > 0 && lastUserIdx >= 0 {
		encoded := base64.StdEncoding.EncodeToString(req.Image)
		out[lastUserIdx].MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: out[lastUserIdx].Content},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/png;base64," + encoded,
				Detail: openai.ImageURLDetailAuto,
			}},
		}
		out[lastUserIdx].Content = ""
	}

	return out, nil
}

func convertOpenAITools(decls []toolfabric.Declaration) []openai.Tool {
	out := make([]openai.Tool, 0, len(decls))
	for _, d := range decls {
		var params any
		if len(d.Parameters) > 0 {
			_ = json.Unmarshal(d.Parameters, &params)
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
