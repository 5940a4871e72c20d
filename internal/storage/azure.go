package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/mangoplex/multipacks/internal/config"
)

type AzureBlobStorage struct {
	client    *azblob.Client
	container string
	path      string
}

func NewAzureBlobStorage(ctx context.Context, c *config.AzureBlobStorage) (*AzureBlobStorage, error) {
	var client *azblob.Client

	if c.Credentials != nil {
		creds, err := resolve[config.SecretAzure](ctx, c.Credentials)
		if err != nil {
			return nil, fmt.Errorf("azure: %w", err)
		}
		cred, err := azblob.NewSharedKeyCredential(creds.AccountName, creds.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("azure: invalid shared key: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(c.AccountURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("azure: failed to create client: %w", err)
		}
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("azure: failed to load default credentials: %w", err)
		}
		client, err = azblob.NewClient(c.AccountURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("azure: failed to create client: %w", err)
		}
	}

	return &AzureBlobStorage{client: client, container: c.Container, path: c.Path}, nil
}

func (s *AzureBlobStorage) Upload(ctx context.Context, body io.Reader, revision string) error {
	bs, meta, err := metadata(body, revision)
	if err != nil {
		return err
	}

	m := make(map[string]*string, len(meta))
	for k, v := range meta {
		m[k] = to.Ptr(v)
	}

	if _, err := s.client.UploadBuffer(ctx, s.container, s.path, bs, &azblob.UploadBufferOptions{Metadata: m}); err != nil {
		return fmt.Errorf("azure: failed to upload %s/%s: %w", s.container, s.path, err)
	}
	return nil
}

func (s *AzureBlobStorage) Download(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.path, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: failed to download %s/%s: %w", s.container, s.path, err)
	}
	return resp.Body, nil
}
