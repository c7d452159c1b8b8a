package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/surfari-go/internal/toolfabric"
	"github.com/haasonsaas/surfari-go/pkg/models"
)

// OllamaProvider adapts a local Ollama server's /api/chat endpoint to
// Provider, grounded on internal/agent/providers/ollama.go's request
// shape but with Stream:false, since a single JSON response is simpler
// than line-scanning NDJSON for a synchronous call.
type OllamaProvider struct {
	client       *http.Client
	baseURL      string
	defaultModel string
}

func NewOllamaProvider(baseURL, defaultModel string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		client:       &http.Client{Timeout: 120 * time.Second},
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		defaultModel: defaultModel,
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	} `json:"function"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Stream   bool                `json:"stream"`
	Messages []ollamaChatMessage `json:"messages"`
	Tools    []ollamaTool        `json:"tools,omitempty"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Parameters  any    `json:"parameters,omitempty"`
	} `json:"function"`
}

type ollamaChatResponse struct {
	Message *ollamaChatMessage `json:"message"`
	Done    bool               `json:"done"`
	Error   string             `json:"error"`

	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req Request) (Result, error) {
	model := p.model(req.Model)
	payload := ollamaChatRequest{
		Model:    model,
		Stream:   false,
		Messages: p.convertMessages(req),
	}
	if len(req.Tools) > 0 {
		payload.Tools = convertOllamaTools(req.Tools)
	}
	if req.MaxTokens > 0 {
		payload.Options = map[string]any{"num_predict": req.MaxTokens}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, classify(ErrInvalidRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Result{}, classify(ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Result{}, classify(classifyVendorError(err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Result{}, classify(ErrTransientNetwork, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return Result{}, classify(classifyVendorError(fmt.Errorf("%d", resp.StatusCode)), fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var decoded ollamaChatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, classify(ErrVendor, fmt.Errorf("ollama: decode response: %w", err))
	}
	if decoded.Error != "" {
		return Result{}, classify(ErrVendor, fmt.Errorf("%s", decoded.Error))
	}

	result := Result{Usage: models.TokenUsage{
		Vendor:     "ollama",
		Model:      model,
		Prompt:     int64(decoded.PromptEvalCount),
		Completion: int64(decoded.EvalCount),
	}}
	if decoded.Message != nil {
		result.Text = decoded.Message.Content
		for _, tc := range decoded.Message.ToolCalls {
			var args map[string]any
			if len(tc.Function.Arguments) > 0 {
				_ = json.Unmarshal(tc.Function.Arguments, &args)
			}
			id := tc.ID
			if id == "" {
				id = uuid.NewString()
			}
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:        id,
				Name:      tc.Function.Name,
				Arguments: args,
			})
		}
	}
	return result, nil
}

func (p *OllamaProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

func (p *OllamaProvider) convertMessages(req Request) []ollamaChatMessage {
	turns := Normalize(req.History)
	out := make([]ollamaChatMessage, 0, len(turns)+1)
	if req.System != "" {
		out = append(out, ollamaChatMessage{Role: "system", Content: req.System})
	}
	for _, t := range turns {
		switch t.Kind {
		case TurnUser:
			out = append(out, ollamaChatMessage{Role: "user", Content: t.Text})
		case TurnAssistantText:
			out = append(out, ollamaChatMessage{Role: "assistant", Content: t.Text})
		case TurnToolCall:
			argsJSON, _ := json.Marshal(t.ToolCall.Arguments)
			msg := ollamaChatMessage{Role: "assistant"}
			call := ollamaToolCall{ID: t.ToolCall.ID}
			call.Function.Name = t.ToolCall.Name
			call.Function.Arguments = argsJSON
			msg.ToolCalls = []ollamaToolCall{call}
			out = append(out, msg)
		case TurnToolResult:
			out = append(out, ollamaChatMessage{Role: "tool", Content: t.Payload})
		}
	}
	return out
}

func convertOllamaTools(decls []toolfabric.Declaration) []ollamaTool {
	out := make([]ollamaTool, 0, len(decls))
	for _, d := range decls {
		var params any
		if len(d.Parameters) > 0 {
			_ = json.Unmarshal(d.Parameters, &params)
		}
		tool := ollamaTool{Type: "function"}
		tool.Function.Name = d.Name
		tool.Function.Description = d.Description
		tool.Function.Parameters = params
		out = append(out, tool)
	}
	return out
}
