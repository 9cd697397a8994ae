// Package storage holds the object stores that back the vault: MinIO for
// self-hosted deployments, Google Cloud Storage for managed ones, and an
// in-memory store for tests.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/syncveil/apiserver/config"
)

// ObjectStore defines the object operations the vault needs from a backend.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New selects the object store backend from config: "minio" or "gcs".
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio":
		return NewMinioStore(cfg.Minio)
	case "gcs":
		return NewGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
