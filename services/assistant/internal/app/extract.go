package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"receiptai/internal/util"
	"receiptai/pkg/domain"
	"receiptai/pkg/ocr"
	"receiptai/pkg/storage"
)

// ExtractRequest is one uploaded receipt image.
type ExtractRequest struct {
	Image       []byte
	ContentType string
	Filename    string
	Username    string
}

// ExtractReceipt runs OCR on the image and stores the text as a receipt of
// the named user. Only the declared content type is checked; the bytes are
// not sniffed.
func (a *App) ExtractReceipt(ctx context.Context, req ExtractRequest) (domain.Receipt, error) {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(req.ContentType)), "image") {
		return domain.Receipt{}, ErrNotAnImage
	}
	if len(req.Image) == 0 {
		return domain.Receipt{}, ErrEmptyImage
	}

	res, err := a.recognize(ctx, req)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	user, err := a.ResolveUser(ctx, req.Username)
	if err != nil {
		return domain.Receipt{}, err
	}

	metadata := map[string]string{
		"filename":    req.Filename,
		"contentType": req.ContentType,
		"sizeBytes":   strconv.Itoa(len(req.Image)),
		"engine":      a.ocr.Name(),
	}
	if res.Scored {
		metadata["ocrScore"] = strconv.FormatFloat(res.Confidence, 'f', 3, 64)
	}

	imageKey := a.archiveImage(ctx, user.ID, req)
	receipt, err := a.store.CreateReceipt(ctx, domain.Receipt{
		UserID:   user.ID,
		Text:     res.Text,
		ImageKey: imageKey,
		Metadata: metadata,
	})
	if err != nil {
		if imageKey != "" {
			if delErr := a.archive.Delete(ctx, imageKey); delErr != nil {
				util.LoggerFromContext(ctx).Warn("orphaned receipt image", "key", imageKey, "err", delErr)
			}
		}
		return domain.Receipt{}, fmt.Errorf("insert receipt: %w", err)
	}
	return receipt, nil
}

func (a *App) recognize(ctx context.Context, req ExtractRequest) (ocr.Result, error) {
	if scorer, ok := a.ocr.(ocr.ScoringEngine); ok {
		return scorer.ExtractScored(ctx, req.Image, req.ContentType)
	}
	text, err := a.ocr.Extract(ctx, req.Image, req.ContentType)
	if err != nil {
		return ocr.Result{}, err
	}
	return ocr.Result{Text: text}, nil
}

// archiveImage stores the original upload and returns its key, or "" when no
// archive is configured or the upload failed.
func (a *App) archiveImage(ctx context.Context, userID int64, req ExtractRequest) string {
	if a.archive == nil {
		return ""
	}
	key := storage.ImageKey(userID, req.Filename, req.ContentType)
	if err := a.archive.PutImage(ctx, key, req.Image, req.ContentType); err != nil {
		util.LoggerFromContext(ctx).Warn("receipt image archive failed",
			"user_id", userID,
			"key", key,
			"err", err,
		)
		return ""
	}
	return key
}
