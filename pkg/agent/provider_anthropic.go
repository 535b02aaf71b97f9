package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/drorm/vmpilot/pkg/message"
	"github.com/drorm/vmpilot/pkg/usage"
)

// AnthropicProvider implements Provider for Anthropic Claude
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Call makes an API call to Anthropic Claude
func (p *AnthropicProvider) Call(ctx context.Context, request Request) (*Response, error) {
	anthropicMessages := []anthropic.MessageParam{}

	for i := range request.Messages {
		msg := &request.Messages[i]
		switch msg.Role {
		case message.RoleSystem:
			continue // System prompt is a top-level request field

		case message.RoleTool:
			// Tool results travel as user-role content blocks
			isError := false
			content := ""
			for _, b := range msg.Blocks {
				if b.Type == message.BlockToolResult && b.ToolResult != nil {
					content = b.ToolResult.Content
					isError = b.ToolResult.IsError
				}
			}
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, content, isError),
			))

		case message.RoleUser:
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: convertBlocks(msg),
			})

		case message.RoleAssistant:
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: convertBlocks(msg),
			})
		}
	}

	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  anthropicMessages,
		MaxTokens: int64(request.MaxTokens),
	}

	if request.SystemPrompt != "" {
		reqParams.System = []anthropic.TextBlockParam{
			{Text: request.SystemPrompt},
		}
	}

	if request.Temperature > 0 {
		reqParams.Temperature = anthropic.Float(request.Temperature)
	}

	if len(request.Tools) > 0 {
		tools := []anthropic.ToolUnionParam{}
		for _, tool := range request.Tools {
			inputSchema, _ := tool["input_schema"].(map[string]interface{})

			toolParam := anthropic.ToolParam{
				Name: tool["name"].(string),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: inputSchema["properties"],
				},
			}
			if desc, ok := tool["description"].(string); ok {
				toolParam.Description = anthropic.String(desc)
			}

			if required, ok := inputSchema["required"]; ok {
				if reqSlice, ok := required.([]interface{}); ok {
					strSlice := make([]string, len(reqSlice))
					for i, v := range reqSlice {
						strSlice[i] = v.(string)
					}
					toolParam.InputSchema.Required = strSlice
				}
			}

			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		reqParams.Tools = tools
	}

	response, err := p.client.Messages.New(ctx, reqParams)
	if err != nil {
		return nil, err
	}

	text := ""
	toolCalls := []message.ToolCall{}

	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &args); err != nil {
				return nil, fmt.Errorf("failed to parse tool input: %w", err)
			}
			toolCalls = append(toolCalls, message.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}

	return &Response{
		Text:      text,
		ToolCalls: toolCalls,
		Usage: usage.Usage{
			InputTokens:         int(response.Usage.InputTokens),
			OutputTokens:        int(response.Usage.OutputTokens),
			CacheReadTokens:     int(response.Usage.CacheReadInputTokens),
			CacheCreationTokens: int(response.Usage.CacheCreationInputTokens),
		},
	}, nil
}

// convertBlocks maps message content, including cache-control markers,
// to Anthropic content block params.
func convertBlocks(msg *message.Message) []anthropic.ContentBlockParamUnion {
	if msg.IsPlainText() {
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Text)}
	}

	blocks := []anthropic.ContentBlockParamUnion{}
	for _, b := range msg.Blocks {
		switch b.Type {
		case message.BlockText:
			blk := anthropic.NewTextBlock(b.Text)
			if b.CacheControl != nil {
				blk.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
			}
			blocks = append(blocks, blk)
		case message.BlockToolCall:
			if b.ToolCall == nil {
				continue
			}
			blk := anthropic.NewToolUseBlock(b.ToolCall.ID, b.ToolCall.Arguments, b.ToolCall.Name)
			if b.CacheControl != nil {
				blk.OfToolUse.CacheControl = anthropic.NewCacheControlEphemeralParam()
			}
			blocks = append(blocks, blk)
		}
	}
	return blocks
}
