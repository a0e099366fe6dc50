package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultTemperature keeps answers close to deterministic.
const DefaultTemperature = 0.01

var errEmptyCompletion = errors.New("empty completion")

// CompletionRequest is one system+user exchange against a named model.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
}

// Completer produces a single reply for a prompt pair.
// OpenAI-compatible and Anthropic backends implement this interface.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterConfig selects and tunes a completion backend.
type CompleterConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewCompleter builds the backend named by cfg.Provider ("openai" when empty).
func NewCompleter(cfg CompleterConfig) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewOpenAICompleter(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicCompleter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
}

func validateRequest(req CompletionRequest) error {
	if strings.TrimSpace(req.Model) == "" {
		return errors.New("completion model required")
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		return errors.New("completion user prompt required")
	}
	return nil
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
