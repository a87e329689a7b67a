// Package storage archives raw media payloads pulled from the gateway so the
// original audio and images survive after transcription. Archiving is
// best-effort: a nil Archiver or a failed upload never blocks the pipeline.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"zapleads_backend/platform/logger"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Archiver struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewArchiver returns nil when MinIO is not configured; callers treat a nil
// Archiver as archiving disabled.
func NewArchiver(cfg Config, log *logger.Logger) (*Archiver, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Archiver{client: client, bucket: cfg.Bucket, log: log}, nil
}

// EnsureBucket creates the archive bucket if it does not exist.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	if a == nil {
		return nil
	}
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// Put stores a media payload and returns its object key.
func (a *Archiver) Put(ctx context.Context, leadID uuid.UUID, kind string, data []byte, contentType string) (string, error) {
	if a == nil {
		return "", nil
	}

	key := fmt.Sprintf("%s/%s/%s_%s", leadID, kind, time.Now().UTC().Format("20060102T150405"), uuid.New().String()[:8])
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("archive media %s: %w", key, err)
	}

	a.log.Info("media archived", "lead_id", leadID, "key", key, "bytes", len(data))
	return key, nil
}
