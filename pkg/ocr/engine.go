package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	EngineCommand = "command"
	EnginePaddle  = "paddle"
)

// ErrNoText is returned when an engine ran but recognised nothing.
var ErrNoText = errors.New("no text recognised")

// Engine turns a receipt image into plain text.
type Engine interface {
	Name() string
	Extract(ctx context.Context, image []byte, contentType string) (string, error)
}

// Result is recognised text plus the engine's mean line confidence.
type Result struct {
	Text       string
	Confidence float64
	// Scored is false when the engine reported no per-line scores.
	Scored bool
}

// ScoringEngine is implemented by engines that report recognition
// confidence alongside the text.
type ScoringEngine interface {
	Engine
	ExtractScored(ctx context.Context, image []byte, contentType string) (Result, error)
}

// Config selects and tunes an Engine.
type Config struct {
	Engine  string
	Command string
	Args    []string
	URL     string
	Timeout time.Duration
}

// New builds the engine named by cfg.Engine ("command" when empty).
func New(cfg Config) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "", EngineCommand:
		if strings.TrimSpace(cfg.Command) == "" {
			return nil, errors.New("ocr command required")
		}
		return NewCommandEngine(cfg.Command, cfg.Args, cfg.Timeout), nil
	case EnginePaddle:
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, errors.New("ocr url required")
		}
		return NewPaddleEngine(cfg.URL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported ocr engine %q", cfg.Engine)
	}
}

// normalizeText keeps line structure (receipts are columnar) but drops NULs,
// invalid UTF-8, trailing spaces and runs of blank lines.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
