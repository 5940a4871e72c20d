package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/mangoplex/multipacks/internal/config"
)

type GCPCloudStorage struct {
	client *gcs.Client
	bucket string
	object string
}

func NewGCPCloudStorage(ctx context.Context, c *config.GCPCloudStorage) (*GCPCloudStorage, error) {
	var opts []option.ClientOption
	if c.URL != "" {
		opts = append(opts, option.WithEndpoint(c.URL))
	}

	if c.Credentials != nil {
		creds, err := resolve[config.SecretGCP](ctx, c.Credentials)
		if err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		if creds.Credentials != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(creds.Credentials)))
		} else {
			opts = append(opts, option.WithAPIKey(creds.APIKey))
		}
	} else if c.URL != "" {
		opts = append(opts, option.WithoutAuthentication())
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: failed to create client: %w", err)
	}

	return &GCPCloudStorage{client: client, bucket: c.Bucket, object: c.Object}, nil
}

func (s *GCPCloudStorage) Upload(ctx context.Context, body io.Reader, revision string) error {
	bs, meta, err := metadata(body, revision)
	if err != nil {
		return err
	}

	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "application/zip"
	w.Metadata = meta

	if _, err := w.Write(bs); err != nil {
		w.Close()
		return fmt.Errorf("gcs: failed to upload gs://%s/%s: %w", s.bucket, s.object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs: failed to upload gs://%s/%s: %w", s.bucket, s.object, err)
	}

	return nil
}

func (s *GCPCloudStorage) Download(ctx context.Context) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: failed to download gs://%s/%s: %w", s.bucket, s.object, err)
	}
	return r, nil
}
