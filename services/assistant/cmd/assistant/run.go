package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"receiptai/internal/util"
	"receiptai/pkg/ai"
	"receiptai/pkg/ocr"
	"receiptai/pkg/storage"
	"receiptai/pkg/store"
	"receiptai/services/assistant/internal/app"
	"receiptai/services/assistant/internal/config"
	"receiptai/services/assistant/internal/server"
)

const shutdownTimeout = 10 * time.Second

func loadConfig(path string) (config.FileConfig, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, util.InitLogger(cfg.LogLevel), nil
}

// storeOptions maps the service config onto the gorm store. SQL statements
// are only logged at debug level.
func storeOptions(cfg config.FileConfig) []store.GormStoreOption {
	level := gormlogger.Warn
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug":
		level = gormlogger.Info
	case "error":
		level = gormlogger.Error
	}
	return []store.GormStoreOption{
		store.WithMaxOpenConns(cfg.DBMaxOpenConns),
		store.WithLogLevel(level),
	}
}

// buildApp opens the store and the optional image archive and wires the OCR
// engine and completion backend named in cfg.
func buildApp(cfg config.FileConfig) (*app.App, error) {
	dataStore, err := store.NewGormStore(cfg.DatabaseURL, storeOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	completer, err := ai.NewCompleter(ai.CompleterConfig{
		Provider:    cfg.CompletionProvider,
		BaseURL:     cfg.CompletionBaseURL,
		APIKey:      cfg.CompletionAPIKey,
		Temperature: cfg.TemperatureValue(),
		MaxTokens:   cfg.MaxTokens,
		Timeout:     time.Duration(cfg.CompletionTimeoutSeconds) * time.Second,
	})
	if err != nil {
		_ = dataStore.Close()
		return nil, err
	}

	engine, err := ocr.New(ocr.Config{
		Engine:  cfg.OCREngine,
		Command: cfg.OCRCommand,
		Args:    cfg.OCRArgs,
		URL:     cfg.OCRURL,
		Timeout: time.Duration(cfg.OCRTimeoutSeconds) * time.Second,
	})
	if err != nil {
		_ = dataStore.Close()
		return nil, err
	}

	var archive storage.ImageArchive
	minioCfg := storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	}
	if minioCfg.Enabled() {
		minioArchive, err := storage.NewMinioArchive(minioCfg)
		if err != nil {
			_ = dataStore.Close()
			return nil, fmt.Errorf("init image archive: %w", err)
		}
		archive = minioArchive
	}

	return app.New(app.Config{
		Store:        dataStore,
		Completer:    completer,
		OCR:          engine,
		Archive:      archive,
		DefaultModel: cfg.DefaultModel,
		HistoryLimit: cfg.HistoryLimit,
	})
}

func runServe(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	appCore, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer appCore.Close()

	httpServer := server.New(server.Config{
		App:            appCore,
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigin:     cfg.CORSOrigin,
	})
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// completion calls can be slow
		WriteTimeout: time.Duration(cfg.CompletionTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("assistant server listening",
			"addr", addr,
			"ocr_engine", cfg.OCREngine,
			"completion_provider", cfg.CompletionProvider,
			"image_archive", cfg.MinioEndpoint != "",
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("assistant server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runMigrate(configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	// NewGormStore runs AutoMigrate under the migration lock.
	dataStore, err := store.NewGormStore(cfg.DatabaseURL, storeOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("schema up to date")
	return dataStore.Close()
}

func runExtract(ctx context.Context, out io.Writer, configPath, imagePath, username string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(imagePath))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	appCore, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer appCore.Close()

	receipt, err := appCore.ExtractReceipt(ctx, app.ExtractRequest{
		Image:       data,
		ContentType: contentType,
		Filename:    filepath.Base(imagePath),
		Username:    username,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "receipt %d stored\n\n%s\n", receipt.ID, receipt.Text)
	return err
}

type askOptions struct {
	message  string
	username string
	session  string
	model    string
}

func runAsk(ctx context.Context, out io.Writer, configPath string, opts askOptions) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	appCore, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer appCore.Close()

	res, err := appCore.Chat(ctx, app.ChatRequest{
		Message:   opts.message,
		Model:     opts.model,
		SessionID: opts.session,
		Username:  opts.username,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n\nsession: %s\n", res.Response, res.SessionID)
	return err
}
