package modelclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/haasonsaas/surfari-go/internal/toolfabric"
	"github.com/haasonsaas/surfari-go/pkg/models"
)

// BedrockProvider adapts the Bedrock Converse API to Provider, grounded
// on internal/agent/providers/bedrock.go's convertMessages but calling
// the non-streaming Converse operation instead of ConverseStream.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

func NewBedrockProvider(ctx context.Context, region, defaultModel string) (*BedrockProvider, error) {
	if defaultModel == "" {
		defaultModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return &BedrockProvider{client: bedrockruntime.NewFromConfig(awsCfg), defaultModel: defaultModel}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Complete(ctx context.Context, req Request) (Result, error) {
	messages, err := p.convertMessages(req)
	if err != nil {
		return Result{}, classify(ErrInvalidRequest, err)
	}

	converseReq := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(p.model(req.Model)),
		Messages: messages,
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if req.MaxTokens > 0 {
		converseReq.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(req.MaxTokens))}
	}
	if len(req.Tools) > 0 {
		toolConfig, err := p.convertTools(req.Tools)
		if err != nil {
			return Result{}, classify(ErrInvalidRequest, err)
		}
		converseReq.ToolConfig = toolConfig
	}

	out, err := p.client.Converse(ctx, converseReq)
	if err != nil {
		return Result{}, classify(classifyVendorError(err), err)
	}

	result := Result{}
	if out.Usage != nil {
		result.Usage = models.TokenUsage{
			Vendor:     "bedrock",
			Model:      p.model(req.Model),
			Prompt:     int64(aws.ToInt32(out.Usage.InputTokens)),
			Completion: int64(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}
	member, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return Result{}, classify(ErrVendor, fmt.Errorf("bedrock: unexpected output type %T", out.Output))
	}
	for _, block := range member.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			result.Text += b.Value
		case *types.ContentBlockMemberToolUse:
			var args map[string]any
			if err := b.Value.Input.UnmarshalSmithyDocument(&args); err != nil {
				args = map[string]any{}
			}
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}
	return result, nil
}

func (p *BedrockProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

func (p *BedrockProvider) convertMessages(req Request) ([]types.Message, error) {
	turns := Normalize(req.History)
	var out []types.Message

	flush := func(role types.ConversationRole, content []types.ContentBlock) []types.Message {
		if len(content) == 0 {
			return out
		}
		return append(out, types.Message{Role: role, Content: content})
	}

	var pendingRole types.ConversationRole
	var pending []types.ContentBlock
	appendBlock := func(role types.ConversationRole, block types.ContentBlock) {
		if pendingRole != "" && pendingRole != role {
			out = flush(pendingRole, pending)
			pending = nil
		}
		pendingRole = role
		pending = append(pending, block)
	}

	for _, t := range turns {
		switch t.Kind {
		case TurnUser:
			appendBlock(types.ConversationRoleUser, &types.ContentBlockMemberText{Value: t.Text})
		case TurnAssistantText:
			appendBlock(types.ConversationRoleAssistant, &types.ContentBlockMemberText{Value: t.Text})
		case TurnToolCall:
			appendBlock(types.ConversationRoleAssistant, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(t.ToolCall.ID),
					Name:      aws.String(t.ToolCall.Name),
					Input:     document.NewLazyDocument(t.ToolCall.Arguments),
				},
			})
		case TurnToolResult:
			appendBlock(types.ConversationRoleUser, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(t.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: t.Payload}},
				},
			})
		}
	}
	out = flush(pendingRole, pending)
	return out, nil
}

func (p *BedrockProvider) convertTools(decls []toolfabric.Declaration) (*types.ToolConfiguration, error) {
	specs := make([]types.Tool, 0, len(decls))
	for _, d := range decls {
		var schemaDoc any
		if len(d.Parameters) > 0 {
			if err := json.Unmarshal(d.Parameters, &schemaDoc); err != nil {
				return nil, fmt.Errorf("bedrock: invalid schema for %s: %w", d.Name, err)
			}
		}
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(d.Name),
				Description: aws.String(d.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schemaDoc)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}, nil
}
