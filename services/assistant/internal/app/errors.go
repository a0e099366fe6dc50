package app

import "errors"

var (
	// ErrNotAnImage indicates the declared upload content type is not image/*.
	ErrNotAnImage      = errors.New("Uploaded file is not an image")
	ErrEmptyImage      = errors.New("uploaded file is empty")
	ErrMessageRequired = errors.New("message required")
	ErrModelRequired   = errors.New("model required")

	// ErrExtractionFailed wraps OCR engine failures.
	ErrExtractionFailed = errors.New("receipt extraction failed")
	// ErrCompletionFailed wraps completion API failures.
	ErrCompletionFailed = errors.New("completion failed")

	ErrSessionNotFound  = errors.New("session not found")
	ErrReceiptNotFound  = errors.New("receipt not found")
	ErrImageNotArchived = errors.New("receipt image not archived")
)
