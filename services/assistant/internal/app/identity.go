package app

import (
	"context"
	"fmt"

	"receiptai/pkg/domain"
)

// ResolveUser maps a username to its persistent user, creating it on first
// sight. A blank username resolves to "default".
func (a *App) ResolveUser(ctx context.Context, username string) (domain.User, error) {
	user, err := a.store.ResolveUser(ctx, username)
	if err != nil {
		return domain.User{}, fmt.Errorf("resolve user: %w", err)
	}
	return user, nil
}
