package app

import (
	"context"
	"fmt"

	"receiptai/pkg/domain"
)

// LogTurn appends the user message and the AI reply, in that order.
func (a *App) LogTurn(ctx context.Context, sessionID, userText, aiText string) error {
	err := a.store.AppendMessages(ctx,
		domain.Message{SessionID: sessionID, Sender: domain.SenderUser, Text: userText},
		domain.Message{SessionID: sessionID, Sender: domain.SenderAI, Text: aiText},
	)
	if err != nil {
		return fmt.Errorf("log turn: %w", err)
	}
	return nil
}
