// Package repository defines where packs come from. A Repository lists the
// versions of a pack it holds as lightweight Index values and fetches the
// full pack only on demand.
package repository

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/mangoplex/multipacks/internal/packs"
	"github.com/mangoplex/multipacks/internal/pool"
)

type Repository interface {
	// Query lists the packs with the given identifier, or every pack the
	// repository is willing to enumerate when id is nil. Remote repositories
	// may return an empty sequence for a nil id.
	Query(ctx context.Context, id *packs.Identifier) iter.Seq2[Index, error]

	// Fetch loads the pack an Index refers to. It may block on disk or
	// network I/O.
	Fetch(ctx context.Context, idx Index) (*packs.Pack, error)

	String() string
}

// Index is a handle to one version of a pack in a repository.
type Index struct {
	ID         packs.Identifier
	Version    packs.Version
	Repository Repository
}

func (idx Index) String() string {
	return fmt.Sprintf("%s@%s (%s)", idx.ID, idx.Version, idx.Repository)
}

// Fetch loads the pack from the repository that listed it.
func (idx Index) Fetch(ctx context.Context) (*packs.Pack, error) {
	return idx.Repository.Fetch(ctx, idx)
}

// FetchAsync runs the blocking fetch on a worker of p and returns a handle to
// the result.
func FetchAsync(ctx context.Context, p *pool.Pool, idx Index) *pool.Future[*packs.Pack] {
	return pool.Go(p, ctx, idx.String(), idx.Fetch)
}

// Prefetch fetches all indices concurrently on p. The first failure cancels
// the fetches that have not started yet.
func Prefetch(ctx context.Context, p *pool.Pool, indices []Index) ([]*packs.Pack, error) {
	g, ctx := errgroup.WithContext(ctx)

	result := make([]*packs.Pack, len(indices))
	for i, idx := range indices {
		f := FetchAsync(ctx, p, idx)
		g.Go(func() error {
			pack, err := f.Wait(ctx)
			if err != nil {
				return fmt.Errorf("fetch %v: %w", idx, err)
			}
			result[i] = pack
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Collect drains a query into a slice sorted by identifier and version.
func Collect(seq iter.Seq2[Index, error]) ([]Index, error) {
	var indices []Index
	for idx, err := range seq {
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	slices.SortStableFunc(indices, compareIndex)
	return indices, nil
}

func compareIndex(a, b Index) int {
	if x := a.ID.Compare(b.ID); x != 0 {
		return x
	}
	return a.Version.Compare(b.Version)
}

// OpenFile opens a file of a pack's file system as a stream.
func OpenFile(fsys fs.FS, name string) (io.ReadCloser, error) {
	return fsys.Open(name)
}

// checkFetched verifies that the pack found at an index is the one the
// index promised.
func checkFetched(idx Index, p *packs.Pack) error {
	if p.ID != idx.ID || p.Version.Compare(idx.Version) != 0 {
		return fmt.Errorf("repository %s: index %s@%s holds pack %s", idx.Repository, idx.ID, idx.Version, p)
	}
	return nil
}
