// Package storage publishes built artifacts to object storage.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/mangoplex/multipacks/internal/config"
)

// ObjectStorage stores a single object: the published artifact.
type ObjectStorage interface {
	// Upload replaces the object. A non-empty revision is recorded with it.
	Upload(ctx context.Context, body io.Reader, revision string) error
	Download(ctx context.Context) (io.ReadCloser, error)
}

// New returns the storage configured by cfg.
func New(ctx context.Context, cfg config.ObjectStorage) (ObjectStorage, error) {
	switch {
	case cfg.AmazonS3 != nil:
		return NewAmazonS3(ctx, cfg.AmazonS3)
	case cfg.GCPCloudStorage != nil:
		return NewGCPCloudStorage(ctx, cfg.GCPCloudStorage)
	case cfg.AzureBlobStorage != nil:
		return NewAzureBlobStorage(ctx, cfg.AzureBlobStorage)
	case cfg.FileSystemStorage != nil:
		return NewFileSystemStorage(cfg.FileSystemStorage), nil
	default:
		return nil, errors.New("no object storage configured")
	}
}

// metadata reads the body and returns it with the object metadata every
// backend records.
func metadata(body io.Reader, revision string) ([]byte, map[string]string, error) {
	bs, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	sum := sha256.Sum256(bs)
	m := map[string]string{"sha256": hex.EncodeToString(sum[:])}
	if revision != "" {
		m["revision"] = revision
	}
	return bs, m, nil
}

func resolve[T any](ctx context.Context, ref *config.SecretRef) (T, error) {
	var zero T
	value, err := ref.Resolve(ctx)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("secret %q: unsupported credentials type %T", ref.Name, value)
	}
	return typed, nil
}
