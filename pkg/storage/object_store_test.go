package storage

import (
	"strings"
	"testing"
)

func TestImageKeyUsesFilenameExtension(t *testing.T) {
	key := ImageKey(42, "Lunch.PNG", "image/png")
	if !strings.HasPrefix(key, "receipts/42/") {
		t.Fatalf("key = %q, want receipts/42/ prefix", key)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Fatalf("key = %q, want .png suffix", key)
	}
	if other := ImageKey(42, "Lunch.PNG", "image/png"); other == key {
		t.Fatalf("expected unique keys, got %q twice", key)
	}
}

func TestImageKeyFallsBackToContentType(t *testing.T) {
	key := ImageKey(7, "upload", "image/png")
	if !strings.HasSuffix(key, ".png") {
		t.Fatalf("key = %q, want .png suffix", key)
	}
	bare := ImageKey(7, "", "application/x-unknown-thing")
	if strings.Contains(strings.TrimPrefix(bare, "receipts/7/"), ".") {
		t.Fatalf("key = %q, want no extension", bare)
	}
}

func TestNewMinioArchiveValidatesConfig(t *testing.T) {
	if _, err := NewMinioArchive(MinioConfig{}); err == nil {
		t.Fatalf("expected error without endpoint")
	}
	_, err := NewMinioArchive(MinioConfig{Endpoint: "localhost:9000"})
	if err == nil {
		t.Fatalf("expected error without credentials")
	}
	for _, want := range []string{"access key", "secret key", "bucket"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}
