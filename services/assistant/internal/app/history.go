package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"receiptai/pkg/domain"
)

const (
	noReceiptHistory      = "No receipt history found."
	noConversationHistory = "No previous conversation history."
)

// History is the formatted context sent with every chat turn.
type History struct {
	Receipts     string
	Conversation string
}

// ReceiptHistory renders every receipt of the user, newest first.
func (a *App) ReceiptHistory(ctx context.Context, userID int64) (string, error) {
	receipts, err := a.store.ListReceipts(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list receipts: %w", err)
	}
	return formatReceiptHistory(receipts), nil
}

// ConversationHistory renders the most recent messages of the session,
// newest first.
func (a *App) ConversationHistory(ctx context.Context, sessionID string) (string, error) {
	msgs, err := a.store.ListRecentMessages(ctx, sessionID, a.historyLimit)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	return formatConversationHistory(msgs), nil
}

// LoadHistory reads both histories concurrently.
func (a *App) LoadHistory(ctx context.Context, userID int64, sessionID string) (History, error) {
	var h History
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := a.ReceiptHistory(gctx, userID)
		h.Receipts = text
		return err
	})
	g.Go(func() error {
		text, err := a.ConversationHistory(gctx, sessionID)
		h.Conversation = text
		return err
	})
	if err := g.Wait(); err != nil {
		return History{}, err
	}
	return h, nil
}

func formatReceiptHistory(receipts []domain.Receipt) string {
	if len(receipts) == 0 {
		return noReceiptHistory
	}
	parts := make([]string, 0, len(receipts))
	for _, r := range receipts {
		parts = append(parts, "Receipt: "+r.Text)
	}
	return strings.Join(parts, "\n\n")
}

// formatConversationHistory keeps the store order (newest first).
func formatConversationHistory(msgs []domain.Message) string {
	if len(msgs) == 0 {
		return noConversationHistory
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Sender, m.Text))
	}
	return strings.Join(lines, "\n")
}
