// Package llm implements the session.LLM collaborator against the
// Anthropic Messages API. The agent loop (internal/session) calls Complete
// once per turn and blocks for the full response; there is no streaming
// here, unlike the provider this package is modeled on, because
// session.Actor.step needs the whole assistant message (text plus any
// tool_use blocks) before it can fan tool calls out.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ruizzmauri/gsv-sub000/internal/session"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// Config configures the Anthropic binding.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int64
}

// Provider implements session.LLM against the Anthropic Messages API.
type Provider struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int64
}

var _ session.LLM = (*Provider)(nil)

// New builds a Provider. It returns an error if no API key is configured,
// since every call would otherwise fail on the first request.
func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm: anthropic api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	return &Provider{
		client:       anthropic.NewClient(opts...),
		defaultModel: model,
		maxTokens:    maxTokens,
	}, nil
}

// thinkingBudgets maps session.ThinkingLevel to an extended-thinking token
// budget. ThinkingNone and an empty level both disable thinking.
var thinkingBudgets = map[session.ThinkingLevel]int64{
	session.ThinkingMinimal: 1024,
	session.ThinkingLow:     4096,
	session.ThinkingMedium:  10000,
	session.ThinkingHigh:    24000,
	session.ThinkingXHigh:   32000,
}

// Complete sends one non-streaming Messages request and converts the reply
// back to a models.Message transcript entry.
func (p *Provider) Complete(ctx context.Context, req session.CompletionRequest) (session.CompletionResponse, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return session.CompletionResponse{}, fmt.Errorf("llm: convert messages: %w", err)
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: p.maxTokens,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.SystemPrompt}}
	}
	if budget, ok := thinkingBudgets[req.Thinking]; ok {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return session.CompletionResponse{}, fmt.Errorf("llm: convert tools: %w", err)
		}
		params.Tools = tools
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return session.CompletionResponse{}, fmt.Errorf("llm: anthropic request: %w", err)
	}

	return session.CompletionResponse{
		Message:      convertResponse(resp),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// convertMessages maps the session transcript onto Anthropic's content-block
// message shape: tool results and tool-use blocks fold into the owning
// turn's content, the way the reference provider's convertMessages does.
func convertMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tr := range msg.ToolResults {
			content = append(content, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}
		for _, tc := range msg.ToolCalls {
			var input map[string]any
			if len(tc.Input) > 0 {
				if err := json.Unmarshal(tc.Input, &input); err != nil {
					return nil, fmt.Errorf("tool call %s input: %w", tc.ID, err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == models.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, nil
}

// convertTools maps tool definitions (already namespaced nodeId__toolName by
// the tool router) onto Anthropic's tool-use schema.
func convertTools(tools []models.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		raw, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for %s: %w", tool.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)
		out = append(out, toolParam)
	}
	return out, nil
}

// convertResponse flattens an Anthropic reply's content blocks into a single
// transcript Message: text blocks concatenate, tool_use blocks become
// ToolCall entries the actor fans out to the tool router.
func convertResponse(resp *anthropic.Message) models.Message {
	var text strings.Builder
	var calls []models.ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			calls = append(calls, models.ToolCall{
				ID:    toolUse.ID,
				Name:  toolUse.Name,
				Input: json.RawMessage(toolUse.Input),
			})
		}
	}

	return models.Message{
		Role:      models.RoleAssistant,
		Content:   text.String(),
		ToolCalls: calls,
	}
}
