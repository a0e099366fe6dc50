package app

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const systemTemplate = `
You are a world-class receipt assistant expert. Your task is to accurately provide information about transaction history, including items bought, store location, total expenses, and provide your answer in Markdown format.

Here is the extracted information about this user previous transaction:
{receipt_history}

Here is the conversation history for context:
{conversation_history}

Please provide information accurately according to the user request.
`

const userTemplate = `Please answer accurately this user question: {message}`

// Prompt is the rendered system and user text for one completion call.
type Prompt struct {
	System string
	User   string
}

// PromptAssembler renders the two fixed templates. Values are substituted in
// a single pass, so braces inside receipt or message text stay literal.
type PromptAssembler struct {
	tpl prompt.ChatTemplate
}

func NewPromptAssembler() *PromptAssembler {
	return &PromptAssembler{
		tpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(systemTemplate),
			schema.UserMessage(userTemplate),
		),
	}
}

// Assemble fills the templates with h and message.
func (p *PromptAssembler) Assemble(ctx context.Context, h History, message string) (Prompt, error) {
	msgs, err := p.tpl.Format(ctx, map[string]any{
		"receipt_history":      h.Receipts,
		"conversation_history": h.Conversation,
		"message":              message,
	})
	if err != nil {
		return Prompt{}, fmt.Errorf("format prompt: %w", err)
	}
	if len(msgs) != 2 {
		return Prompt{}, fmt.Errorf("format prompt: got %d messages, want 2", len(msgs))
	}
	return Prompt{System: msgs[0].Content, User: msgs[1].Content}, nil
}
