package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"receiptai/internal/util"
	"receiptai/pkg/ai"
	"receiptai/pkg/ocr"
	"receiptai/pkg/storage"
	"receiptai/pkg/store"
)

const defaultHistoryLimit = 5

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Completer   ai.Completer
	OCR         ocr.Engine
	// Archive is optional; receipts are stored without images when nil.
	Archive      storage.ImageArchive
	DefaultModel string
	HistoryLimit int
}

// App is the core application service wiring together storage, OCR and the
// completion backend.
type App struct {
	store        store.Store
	completer    ai.Completer
	ocr          ocr.Engine
	archive      storage.ImageArchive
	prompts      *PromptAssembler
	defaultModel string
	historyLimit int
}

// New constructs the application. When cfg.Store is nil a gorm store is
// opened from cfg.DatabaseURL.
func New(cfg Config) (*App, error) {
	if cfg.Completer == nil {
		return nil, errors.New("completer required")
	}
	if cfg.OCR == nil {
		return nil, errors.New("ocr engine required")
	}
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &App{
		store:        dataStore,
		completer:    cfg.Completer,
		ocr:          cfg.OCR,
		archive:      cfg.Archive,
		prompts:      NewPromptAssembler(),
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
		historyLimit: historyLimit,
	}, nil
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Message   string
	Model     string
	SessionID string
	Username  string
}

// ChatResult carries the reply and the session it was logged under.
type ChatResult struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// Chat runs one turn: resolve user and session, read history, build the
// prompt, call the model and log the exchange. A logging failure after a
// successful completion is reported in the log only; the reply is still
// returned.
func (a *App) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return ChatResult{}, ErrMessageRequired
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = a.defaultModel
	}
	if model == "" {
		return ChatResult{}, ErrModelRequired
	}

	user, err := a.ResolveUser(ctx, req.Username)
	if err != nil {
		return ChatResult{}, err
	}
	session, err := a.ResolveSession(ctx, req.SessionID, user.ID)
	if err != nil {
		return ChatResult{}, err
	}
	history, err := a.LoadHistory(ctx, user.ID, session.ID)
	if err != nil {
		return ChatResult{}, err
	}
	prompt, err := a.prompts.Assemble(ctx, history, req.Message)
	if err != nil {
		return ChatResult{}, err
	}

	reply, err := a.completer.Complete(ctx, ai.CompletionRequest{
		Model:        model,
		SystemPrompt: prompt.System,
		UserPrompt:   prompt.User,
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	if err := a.LogTurn(ctx, session.ID, req.Message, reply); err != nil {
		util.LoggerFromContext(ctx).Warn("transcript logging failed",
			"session_id", session.ID,
			"user_id", user.ID,
			"err", err,
		)
	}
	return ChatResult{Response: reply, SessionID: session.ID}, nil
}

// Ready reports whether the store is reachable.
func (a *App) Ready(ctx context.Context) error {
	return a.store.Ping(ctx)
}

// Close releases the underlying store.
func (a *App) Close() error {
	return a.store.Close()
}
