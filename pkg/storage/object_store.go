package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ImageArchive keeps the original receipt images next to their OCR text.
type ImageArchive interface {
	PutImage(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// MinioConfig describes how to reach the archive bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an endpoint is configured at all.
func (c MinioConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

func (c MinioConfig) validate() error {
	var missing []string
	if strings.TrimSpace(c.AccessKey) == "" {
		missing = append(missing, "access key")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		missing = append(missing, "secret key")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("minio %s required", strings.Join(missing, ", "))
	}
	return nil
}

// MinioArchive implements ImageArchive on MinIO/S3 compatible storage.
type MinioArchive struct {
	client *minio.Client
	bucket string
}

// NewMinioArchive connects to MinIO and creates the bucket when missing.
func NewMinioArchive(cfg MinioConfig) (*MinioArchive, error) {
	if !cfg.Enabled() {
		return nil, errors.New("minio endpoint required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioArchive{client: client, bucket: cfg.Bucket}, nil
}

// PutImage uploads one image under key.
func (m *MinioArchive) PutImage(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put image %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a time-limited GET URL for key.
func (m *MinioArchive) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Delete removes an archived image.
func (m *MinioArchive) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete image %s: %w", key, err)
	}
	return nil
}

// ImageKey builds receipts/<userID>/<uuid><ext>. The extension comes from the
// original filename, falling back to the content type.
func ImageKey(userID int64, filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("receipts/%d/%s%s", userID, uuid.NewString(), ext)
}
