package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	cfg    CompleterConfig
}

func NewAnthropicCompleter(cfg CompleterConfig) *AnthropicCompleter {
	opts := []anthropicoption.RequestOption{anthropicoption.WithMaxRetries(0)}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, anthropicoption.WithAPIKey(key))
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, anthropicoption.WithBaseURL(base))
	}
	return &AnthropicCompleter{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}
}

// Complete implements Completer. Text blocks of the reply are concatenated
// and returned as-is; a reply with no text block at all is an error.
func (c *AnthropicCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}
	ctx, cancel := withTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	maxTokens := int64(c.cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(strings.TrimSpace(req.Model)),
		MaxTokens:   maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt))},
		Temperature: anthropic.Float(c.cfg.Temperature),
	}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	var sb strings.Builder
	found := false
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
			found = true
		}
	}
	if !found {
		return "", fmt.Errorf("anthropic messages: %w", errEmptyCompletion)
	}
	return sb.String(), nil
}
