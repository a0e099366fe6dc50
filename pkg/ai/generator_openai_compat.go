package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompleter calls any OpenAI-compatible chat completions endpoint
// (OpenAI, vLLM, LiteLLM, OpenRouter, Deepseek, ...).
type OpenAICompleter struct {
	client openai.Client
	cfg    CompleterConfig
}

// NewOpenAICompleter builds an OpenAI-compatible Completer. BaseURL should
// include the /v1 prefix when set; empty means api.openai.com.
func NewOpenAICompleter(cfg CompleterConfig) *OpenAICompleter {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &OpenAICompleter{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}
	ctx, cancel := withTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(strings.TrimSpace(req.Model)),
		Messages:    messages,
		Temperature: openai.Float(c.cfg.Temperature),
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.cfg.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: %w", errEmptyCompletion)
	}
	// The reply is passed through untouched, whitespace and all.
	return resp.Choices[0].Message.Content, nil
}
