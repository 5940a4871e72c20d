package repository

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/mangoplex/multipacks/internal/metrics"
	"github.com/mangoplex/multipacks/internal/packs"
)

// IndexFile lists the packs of an HTTP repository.
const IndexFile = "index.json"

const defaultCacheSize = 64

// HTTPRepository serves packs published on a web server: <base>/index.json
// lists them, and each pack is a zip archive with pack.yaml at its root.
// A nil Query lists nothing.
type HTTPRepository struct {
	base    *url.URL
	headers map[string]string
	client  *http.Client

	mu    sync.Mutex
	index []indexEntry

	cache *lru.Cache
	group singleflight.Group
}

type indexEntry struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Path    string `json:"path"`

	id      packs.Identifier
	version packs.Version
}

func NewHTTPRepository(base string) (*HTTPRepository, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q for http repository", u.Scheme)
	}

	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, err
	}

	return &HTTPRepository{base: u, client: http.DefaultClient, cache: cache}, nil
}

// WithHeaders sets headers sent with every request, e.g. for authorization.
func (r *HTTPRepository) WithHeaders(headers map[string]string) *HTTPRepository {
	r.headers = headers
	return r
}

func (r *HTTPRepository) WithClient(client *http.Client) *HTTPRepository {
	r.client = client
	return r
}

func (r *HTTPRepository) String() string {
	return strings.TrimSuffix(r.base.String(), "/")
}

func (r *HTTPRepository) Query(ctx context.Context, id *packs.Identifier) iter.Seq2[Index, error] {
	return func(yield func(Index, error) bool) {
		if id == nil {
			return
		}

		entries, err := r.loadIndex(ctx)
		if err != nil {
			yield(Index{}, err)
			return
		}

		for _, e := range entries {
			if e.id != *id {
				continue
			}
			if !yield(Index{ID: e.id, Version: e.version, Repository: r}, nil) {
				return
			}
		}
	}
}

func (r *HTTPRepository) Fetch(ctx context.Context, idx Index) (*packs.Pack, error) {
	key := idx.ID.String() + "@" + idx.Version.String()
	if p, ok := r.cache.Get(key); ok {
		return p.(*packs.Pack), nil
	}

	// Concurrent fetches of one pack share a single download. It is detached
	// from the caller that starts it; each caller waits on its own ctx.
	ch := r.group.DoChan(key, func() (any, error) {
		start := time.Now()
		p, err := r.fetch(context.WithoutCancel(ctx), idx)
		if err != nil {
			metrics.PackFetchFailed(r.String())
			return nil, err
		}
		metrics.PackFetched(r.String(), start)
		r.cache.Add(key, p)
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*packs.Pack), nil
	}
}

func (r *HTTPRepository) fetch(ctx context.Context, idx Index) (*packs.Pack, error) {
	entries, err := r.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	i := slices.IndexFunc(entries, func(e indexEntry) bool {
		return e.id == idx.ID && e.version.Compare(idx.Version) == 0
	})
	if i == -1 {
		return nil, fmt.Errorf("repository %s: pack %s@%s not in index", r, idx.ID, idx.Version)
	}

	u, err := r.base.Parse(entries[i].Path)
	if err != nil {
		return nil, err
	}

	bs, err := r.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(bs), int64(len(bs)))
	if err != nil {
		return nil, fmt.Errorf("repository %s: pack %s: %w", r, u, err)
	}

	p, err := packs.Load(zr, u.String())
	if err != nil {
		return nil, err
	}
	if err := checkFetched(idx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *HTTPRepository) loadIndex(ctx context.Context) ([]indexEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index != nil {
		return r.index, nil
	}

	u, err := r.base.Parse(IndexFile)
	if err != nil {
		return nil, err
	}

	bs, err := r.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var entries []indexEntry
	if err := json.Unmarshal(bs, &entries); err != nil {
		return nil, fmt.Errorf("repository %s: invalid index: %w", r, err)
	}

	for i := range entries {
		e := &entries[i]
		if e.id, err = packs.ParseIdentifier(e.ID); err != nil {
			return nil, fmt.Errorf("repository %s: invalid index: %w", r, err)
		}
		if e.version, err = packs.ParseVersion(e.Version); err != nil {
			return nil, fmt.Errorf("repository %s: invalid index: %w", r, err)
		}
	}

	slices.SortStableFunc(entries, func(a, b indexEntry) int {
		if x := a.id.Compare(b.id); x != 0 {
			return x
		}
		return a.version.Compare(b.version)
	})

	r.index = entries
	return entries, nil
}

func (r *HTTPRepository) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	r.setHeaders(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("GET %s: unsuccessful status code %d", u, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (r *HTTPRepository) setHeaders(req *http.Request) {
	for name, value := range r.headers {
		if value != "" {
			req.Header.Set(name, value)
		}
	}
}
