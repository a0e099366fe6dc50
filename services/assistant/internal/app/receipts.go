package app

import (
	"context"
	"fmt"
	"time"

	"receiptai/pkg/domain"
)

const imageURLExpiry = 15 * time.Minute

// ListReceipts returns the user's receipts newest first. Unknown users have
// no receipts; no user row is created.
func (a *App) ListReceipts(ctx context.Context, username string) ([]domain.Receipt, error) {
	user, ok, err := a.store.FindUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !ok {
		return []domain.Receipt{}, nil
	}
	receipts, err := a.store.ListReceipts(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, nil
}

// ListSessions returns the user's sessions newest first. Unknown users have
// none.
func (a *App) ListSessions(ctx context.Context, username string) ([]domain.Session, error) {
	user, ok, err := a.store.FindUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !ok {
		return []domain.Session{}, nil
	}
	sessions, err := a.store.ListSessions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Transcript returns the session's messages in chronological order. A
// positive limit keeps only the newest limit messages.
func (a *App) Transcript(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if _, ok, err := a.store.GetSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	} else if !ok {
		return nil, ErrSessionNotFound
	}
	msgs, err := a.store.ListSessionMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// ReceiptImageURL returns a short-lived download URL for the archived image.
func (a *App) ReceiptImageURL(ctx context.Context, receiptID int64) (string, error) {
	receipt, ok, err := a.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return "", fmt.Errorf("get receipt: %w", err)
	}
	if !ok {
		return "", ErrReceiptNotFound
	}
	if receipt.ImageKey == "" || a.archive == nil {
		return "", ErrImageNotArchived
	}
	url, err := a.archive.PresignGet(ctx, receipt.ImageKey, imageURLExpiry)
	if err != nil {
		return "", fmt.Errorf("presign receipt image: %w", err)
	}
	return url, nil
}
