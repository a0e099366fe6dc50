package store

import (
	"context"

	"receiptai/pkg/domain"
)

// Store defines persistence operations for users, sessions, messages, and receipts.
// Mutation is insert-only; nothing here updates or deletes rows.
type Store interface {
	// users
	ResolveUser(ctx context.Context, username string) (domain.User, error)
	FindUser(ctx context.Context, username string) (domain.User, bool, error)

	// sessions
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, bool, error)
	ListSessions(ctx context.Context, userID int64) ([]domain.Session, error)

	// messages
	AppendMessages(ctx context.Context, msgs ...domain.Message) error
	ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
	ListSessionMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	// receipts
	CreateReceipt(ctx context.Context, receipt domain.Receipt) (domain.Receipt, error)
	ListReceipts(ctx context.Context, userID int64) ([]domain.Receipt, error)
	GetReceipt(ctx context.Context, id int64) (domain.Receipt, bool, error)

	Ping(ctx context.Context) error
	Close() error
}
