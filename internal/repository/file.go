package repository

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/mangoplex/multipacks/internal/metrics"
	"github.com/mangoplex/multipacks/internal/packs"
)

// FileRepository serves the packs stored in the immediate subdirectories of
// a directory. Each subdirectory holding a pack.yaml is one pack. The
// directory is scanned once, on first use.
type FileRepository struct {
	name string
	fsys fs.FS

	once  sync.Once
	packs []*packs.Pack
	err   error
}

func NewFileRepository(dir string) *FileRepository {
	return NewFSRepository(os.DirFS(dir), "file:"+dir)
}

// NewFSRepository serves packs from the subdirectories of fsys.
func NewFSRepository(fsys fs.FS, name string) *FileRepository {
	return &FileRepository{name: name, fsys: fsys}
}

func (r *FileRepository) String() string {
	return r.name
}

func (r *FileRepository) Query(_ context.Context, id *packs.Identifier) iter.Seq2[Index, error] {
	return func(yield func(Index, error) bool) {
		all, err := r.scan()
		if err != nil {
			yield(Index{}, err)
			return
		}

		for _, p := range all {
			if id != nil && p.ID != *id {
				continue
			}
			if !yield(Index{ID: p.ID, Version: p.Version, Repository: r}, nil) {
				return
			}
		}
	}
}

func (r *FileRepository) Fetch(_ context.Context, idx Index) (*packs.Pack, error) {
	start := time.Now()

	all, err := r.scan()
	if err != nil {
		metrics.PackFetchFailed(r.name)
		return nil, err
	}

	i := slices.IndexFunc(all, func(p *packs.Pack) bool {
		return p.ID == idx.ID && p.Version.Compare(idx.Version) == 0
	})
	if i == -1 {
		metrics.PackFetchFailed(r.name)
		return nil, fmt.Errorf("repository %s: pack %s@%s: %w", r.name, idx.ID, idx.Version, fs.ErrNotExist)
	}

	metrics.PackFetched(r.name, start)
	return all[i], nil
}

func (r *FileRepository) scan() ([]*packs.Pack, error) {
	r.once.Do(func() {
		r.packs, r.err = r.load()
	})
	return r.packs, r.err
}

func (r *FileRepository) load() ([]*packs.Pack, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("repository %s: %w", r.name, err)
	}

	var result []*packs.Pack
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := fs.Stat(r.fsys, path.Join(e.Name(), packs.ManifestFile)); err != nil {
			continue
		}

		sub, err := fs.Sub(r.fsys, e.Name())
		if err != nil {
			return nil, err
		}
		p, err := packs.Load(sub, path.Join(r.name, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("repository %s: %w", r.name, err)
		}
		result = append(result, p)
	}

	slices.SortFunc(result, func(a, b *packs.Pack) int {
		return cmp.Or(a.ID.Compare(b.ID), a.Version.Compare(b.Version))
	})

	for i := 1; i < len(result); i++ {
		if a, b := result[i-1], result[i]; a.ID == b.ID && a.Version.Compare(b.Version) == 0 {
			return nil, fmt.Errorf("repository %s: pack %s found in both %s and %s", r.name, a, a.Location, b.Location)
		}
	}

	return result, nil
}
