package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random 32-char hex identifier suitable for request ids and object keys.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
