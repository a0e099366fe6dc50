package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"receiptai/internal/util"
	"receiptai/pkg/domain"
)

// ResolveSession returns the session named by token when it exists and
// belongs to userID. Anything else (no token, an unknown token, or a token
// owned by another user) yields a fresh session for userID.
func (a *App) ResolveSession(ctx context.Context, token string, userID int64) (domain.Session, error) {
	token = strings.TrimSpace(token)
	if token != "" {
		session, ok, err := a.store.GetSession(ctx, token)
		if err != nil {
			return domain.Session{}, fmt.Errorf("get session: %w", err)
		}
		if ok && session.UserID == userID {
			return session, nil
		}
		if ok {
			util.LoggerFromContext(ctx).Warn("session token belongs to another user",
				"session_id", token,
				"user_id", userID,
				"owner_id", session.UserID,
			)
		}
	}

	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}
