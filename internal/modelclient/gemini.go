package modelclient

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/haasonsaas/surfari-go/internal/toolfabric"
	"github.com/haasonsaas/surfari-go/pkg/models"
)

// GeminiProvider adapts google.golang.org/genai to Provider. Unlike
// Anthropic/OpenAI, Gemini's FunctionResponse has no call-id field, so
// tool results are paired with their call by ordered position rather
// than by id (spec.md §4.5's "vendor B" row).
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

func NewGeminiProvider(ctx context.Context, apiKey, defaultModel string) (*GeminiProvider, error) {
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &GeminiProvider{client: client, defaultModel: defaultModel}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (Result, error) {
	contents := p.convertMessages(req)

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		tool, err := p.convertTools(req.Tools)
		if err != nil {
			return Result{}, classify(ErrInvalidRequest, err)
		}
		config.Tools = []*genai.Tool{tool}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model(req.Model), contents, config)
	if err != nil {
		return Result{}, classify(classifyVendorError(err), err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Result{}, classify(ErrVendor, fmt.Errorf("gemini: empty candidates"))
	}

	result := Result{}
	if resp.UsageMetadata != nil {
		result.Usage = models.TokenUsage{
			Vendor:     "gemini",
			Model:      p.model(req.Model),
			Prompt:     int64(resp.UsageMetadata.PromptTokenCount),
			Completion: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			result.Text += part.Text
		}
		if part.FunctionCall != nil {
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	return result, nil
}

func (p *GeminiProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// convertMessages pairs each TurnToolCall with the next TurnToolResult in
// the turn list by position, since genai's protocol has no call-id field
// to key on the way Anthropic/OpenAI do.
func (p *GeminiProvider) convertMessages(req Request) []*genai.Content {
	turns := Normalize(req.History)
	var out []*genai.Content

	for i := 0; i < len(turns); i++ {
		t := turns[i]
		switch t.Kind {
		case TurnUser:
			out = append(out, genai.NewContentFromText(t.Text, genai.RoleUser))
		case TurnAssistantText:
			out = append(out, genai.NewContentFromText(t.Text, genai.RoleModel))
		case TurnToolCall:
			out = append(out, &genai.Content{
				Role: genai.RoleModel,
				Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{Name: t.ToolCall.Name, Args: t.ToolCall.Arguments},
				}},
			})
		case TurnToolResult:
			var response map[string]any
			if err := json.Unmarshal([]byte(t.Payload), &response); err != nil {
				response = map[string]any{"result": t.Payload}
			}
			out = append(out, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{Name: t.ToolName, Response: response},
				}},
			})
		}
	}
	return out
}

func (p *GeminiProvider) convertTools(decls []toolfabric.Declaration) (*genai.Tool, error) {
	tool := &genai.Tool{FunctionDeclarations: make([]*genai.FunctionDeclaration, 0, len(decls))}
	for _, d := range decls {
		var schema genai.Schema
		if len(d.Parameters) > 0 {
			if err := json.Unmarshal(d.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("gemini: invalid schema for %s: %w", d.Name, err)
			}
		}
		tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  &schema,
		})
	}
	return tool, nil
}
