package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mangoplex/multipacks/internal/config"
)

// FileSystemStorage writes the artifact to a local path. Metadata goes to a
// sibling file with the ".sha256" suffix.
type FileSystemStorage struct {
	path string
}

func NewFileSystemStorage(c *config.FileSystemStorage) *FileSystemStorage {
	return &FileSystemStorage{path: c.Path}
}

func (s *FileSystemStorage) Upload(_ context.Context, body io.Reader, revision string) error {
	bs, meta, err := metadata(body, revision)
	if err != nil {
		return err
	}

	if err := writeFile(s.path, bs); err != nil {
		return err
	}

	sum := meta["sha256"]
	if revision != "" {
		sum += " " + revision
	}
	return writeFile(s.path+".sha256", []byte(sum+"\n"))
}

func (s *FileSystemStorage) Download(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("filesystem: %w", err)
	}
	return f, nil
}

func writeFile(path string, bs []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("filesystem: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("filesystem: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("filesystem: %w", err)
	}
	if _, err := tmp.Write(bs); err != nil {
		tmp.Close()
		return fmt.Errorf("filesystem: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filesystem: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("filesystem: %w", err)
	}
	return nil
}
