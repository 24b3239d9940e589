package aivendor

import (
	"context"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sitepilot/control-plane/internal/providers"
	"github.com/sitepilot/control-plane/pkg/models"
)

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropic builds an AnthropicClient for apiKey.
func NewAnthropic(apiKey string) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: client}
}

func (c *AnthropicClient) Vendor() string { return "claude" }

// Complete sends messages to model. Anthropic takes the system prompt
// as a top-level field rather than a message with role "system", so
// the leading system message (if any) is split out before the call.
func (c *AnthropicClient) Complete(ctx context.Context, model string, messages []models.ChatMessage, maxTokens int, temperature float64) (*models.AIResponse, error) {
	system, rest := splitSystemMessage(messages)

	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.F(model),
		MaxTokens:   anthropic.F(int64(maxTokens)),
		Temperature: anthropic.F(temperature),
		Messages:    anthropic.F(toAnthropicMessages(rest)),
	}
	if system != "" {
		params.System = anthropic.F(system)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, translateAnthropicError(err)
	}
	if len(resp.Content) == 0 {
		return nil, &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "anthropic returned no content blocks"}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text += block.Text
		}
	}

	return &models.AIResponse{
		Content: text,
		Model:   string(resp.Model),
		Usage: models.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func splitSystemMessage(messages []models.ChatMessage) (system string, rest []models.ChatMessage) {
	if len(messages) > 0 && messages[0].Role == "system" {
		return messages[0].Content, messages[1:]
	}
	return "", messages
}

func toAnthropicMessages(messages []models.ChatMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, len(messages))
	for i, m := range messages {
		role := anthropic.MessageParamRoleUser
		if m.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}
		out[i] = anthropic.MessageParam{
			Role:    anthropic.F(role),
			Content: anthropic.F([]anthropic.MessageParamContentUnion{anthropic.NewTextBlock(m.Content)}),
		}
	}
	return out
}

func translateAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Retryable: true, Cause: err}
	}

	status := apiErr.Response.StatusCode
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &providers.Error{Kind: providers.KindAuth, HTTPStatus: status, VendorMessage: apiErr.Message, Cause: err}
	case http.StatusNotFound:
		return &providers.Error{Kind: providers.KindNotFound, HTTPStatus: status, VendorMessage: apiErr.Message, Cause: err}
	case http.StatusTooManyRequests:
		return &providers.Error{Kind: providers.KindRateLimited, HTTPStatus: status, VendorMessage: apiErr.Message, Retryable: true, Cause: err}
	default:
		if status >= 500 {
			return &providers.Error{Kind: providers.KindUpstreamFailure, HTTPStatus: status, VendorMessage: apiErr.Message, Retryable: true, Cause: err}
		}
		return &providers.Error{Kind: providers.KindUpstreamInvalid, HTTPStatus: status, VendorMessage: apiErr.Message, Cause: err}
	}
}
