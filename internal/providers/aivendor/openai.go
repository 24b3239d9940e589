package aivendor

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sitepilot/control-plane/internal/providers"
	"github.com/sitepilot/control-plane/pkg/models"
)

// OpenAIClient talks to the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAI builds an OpenAIClient for apiKey.
func NewOpenAI(apiKey string) *OpenAIClient {
	return &OpenAIClient{client: openai.NewClient(apiKey)}
}

func (c *OpenAIClient) Vendor() string { return "openai" }

// Complete sends messages to model and normalizes the response.
func (c *OpenAIClient) Complete(ctx context.Context, model string, messages []models.ChatMessage, maxTokens int, temperature float64) (*models.AIResponse, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, translateOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "openai returned no choices"}
	}

	return &models.AIResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: models.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func toOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func translateOpenAIError(err error) error {
	var apiErr *openai.APIError
	if e, ok := err.(*openai.APIError); ok {
		apiErr = e
	}
	if apiErr == nil {
		return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Retryable: true, Cause: err}
	}

	switch apiErr.HTTPStatusCode {
	case 401, 403:
		return &providers.Error{Kind: providers.KindAuth, HTTPStatus: apiErr.HTTPStatusCode, VendorMessage: apiErr.Message, Cause: err}
	case 404:
		return &providers.Error{Kind: providers.KindNotFound, HTTPStatus: apiErr.HTTPStatusCode, VendorMessage: apiErr.Message, Cause: err}
	case 429:
		return &providers.Error{Kind: providers.KindRateLimited, HTTPStatus: apiErr.HTTPStatusCode, VendorMessage: apiErr.Message, Retryable: true, Cause: err}
	default:
		if apiErr.HTTPStatusCode >= 500 {
			return &providers.Error{Kind: providers.KindUpstreamFailure, HTTPStatus: apiErr.HTTPStatusCode, VendorMessage: apiErr.Message, Retryable: true, Cause: err}
		}
		return &providers.Error{Kind: providers.KindUpstreamInvalid, HTTPStatus: apiErr.HTTPStatusCode, VendorMessage: apiErr.Message, Cause: err}
	}
}
