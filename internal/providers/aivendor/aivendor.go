// Package aivendor wraps the OpenAI, Google Gemini, and Anthropic chat
// completion APIs behind one normalized interface, so callers never
// special-case a vendor's wire format.
package aivendor

import (
	"context"

	"github.com/sitepilot/control-plane/pkg/models"
)

// Client is satisfied by every vendor-specific client in this package.
type Client interface {
	// Vendor is the short name used for routing and usage logging
	// ("openai", "gemini", "claude").
	Vendor() string
	// Complete sends messages to model and returns the normalized
	// response. maxTokens caps the generated completion length; a
	// value of 0 lets the caller fall back to DefaultMaxTokens.
	// temperature is passed through verbatim.
	Complete(ctx context.Context, model string, messages []models.ChatMessage, maxTokens int, temperature float64) (*models.AIResponse, error)
}

// DefaultMaxTokens is applied by vendor clients when the caller passes
// maxTokens <= 0.
const DefaultMaxTokens = 1024
