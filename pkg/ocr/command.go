package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandEngine pipes the image to an external OCR program (tesseract, a
// PaddleOCR wrapper script, ...) on stdin and reads the text from stdout.
//
// Example: Command "tesseract", Args ["stdin", "stdout"].
type CommandEngine struct {
	command string
	args    []string
	timeout time.Duration
}

func NewCommandEngine(command string, args []string, timeout time.Duration) *CommandEngine {
	return &CommandEngine{
		command: strings.TrimSpace(command),
		args:    append([]string(nil), args...),
		timeout: timeout,
	}
}

func (e *CommandEngine) Name() string { return EngineCommand + ":" + e.command }

// Extract implements Engine.
func (e *CommandEngine) Extract(ctx context.Context, image []byte, contentType string) (string, error) {
	if _, err := exec.LookPath(e.command); err != nil {
		return "", fmt.Errorf("ocr command %s not found: %w", e.command, err)
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.command, e.args...)
	cmd.Stdin = bytes.NewReader(image)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("ocr command %s failed: %w: %s", e.command, err, msg)
		}
		return "", fmt.Errorf("ocr command %s failed: %w", e.command, err)
	}

	text := normalizeText(string(output))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
