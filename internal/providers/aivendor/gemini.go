package aivendor

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sitepilot/control-plane/internal/providers"
	"github.com/sitepilot/control-plane/pkg/models"
)

// GeminiClient talks to the Google Gemini generative API.
type GeminiClient struct {
	apiKey string
}

// NewGemini builds a GeminiClient for apiKey. The underlying genai
// client is created per-call since it is cheap and ties its lifecycle
// to a context.
func NewGemini(apiKey string) *GeminiClient {
	return &GeminiClient{apiKey: apiKey}
}

func (c *GeminiClient) Vendor() string { return "gemini" }

// Complete sends messages to model. Gemini has no "system" role on
// individual turns; a leading system message becomes the model's
// SystemInstruction, and our "assistant" role maps to Gemini's "model"
// role.
func (c *GeminiClient) Complete(ctx context.Context, model string, messages []models.ChatMessage, maxTokens int, temperature float64) (*models.AIResponse, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Cause: err}
	}
	defer client.Close()

	gm := client.GenerativeModel(model)
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	gm.SetMaxOutputTokens(int32(maxTokens))
	gm.SetTemperature(float32(temperature))

	system, rest := splitSystemMessage(messages)
	if system != "" {
		gm.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	if len(rest) == 0 {
		return nil, &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "no user/assistant turns to send"}
	}

	cs := gm.StartChat()
	cs.History = toGeminiHistory(rest[:len(rest)-1])

	last := rest[len(rest)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return nil, translateGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "gemini returned no candidates"}
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	usage := models.TokenUsage{}
	if resp.UsageMetadata != nil {
		usage = models.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return &models.AIResponse{Content: text, Model: model, Usage: usage}, nil
}

func toGeminiHistory(messages []models.ChatMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return out
}

func translateGeminiError(err error) error {
	// The genai SDK surfaces upstream failures as opaque errors; absent
	// a status-carrying type we classify conservatively as a transient
	// upstream failure so callers retry rather than give up.
	return &providers.Error{Kind: providers.KindUpstreamFailure, VendorMessage: fmt.Sprintf("gemini: %v", err), Retryable: true, Cause: err}
}
