package repository_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-cmp/cmp"

	mpfs "github.com/mangoplex/multipacks/internal/fs"
	"github.com/mangoplex/multipacks/internal/packs"
	"github.com/mangoplex/multipacks/internal/pool"
	"github.com/mangoplex/multipacks/internal/repository"
)

func manifest(id, version string, deps ...string) string {
	s := fmt.Sprintf("id: %s\nversion: %s\n", id, version)
	if len(deps) > 0 {
		s += "dependencies:\n"
		for _, d := range deps {
			s += fmt.Sprintf("  - %q\n", d)
		}
	}
	return s
}

func testRepository() *repository.FileRepository {
	return repository.NewFSRepository(mpfs.MapFS(map[string]string{
		"foo-1.3.0/pack.yaml":                  manifest("sample/foo", "1.3.0"),
		"foo-1.1.0/pack.yaml":                  manifest("sample/foo", "1.1.0"),
		"foo-1.2.0/pack.yaml":                  manifest("sample/foo", "1.2.0"),
		"foo-1.2.0/assets/sample/textures/a.png": "a",
		"bar/pack.yaml":                        manifest("sample/bar", "0.1.0", "sample/foo >=1.0.0"),
		"not-a-pack/readme.txt":                "hello",
	}), "file:test")
}

type indexKey struct {
	ID      string
	Version string
}

func keys(indices []repository.Index) []indexKey {
	result := make([]indexKey, 0, len(indices))
	for _, idx := range indices {
		result = append(result, indexKey{idx.ID.String(), idx.Version.String()})
	}
	return result
}

func TestFileRepositoryQuery(t *testing.T) {
	repo := testRepository()
	ctx := t.Context()

	all, err := repository.Collect(repo.Query(ctx, nil))
	if err != nil {
		t.Fatal(err)
	}
	exp := []indexKey{
		{"sample/bar", "0.1.0"},
		{"sample/foo", "1.1.0"},
		{"sample/foo", "1.2.0"},
		{"sample/foo", "1.3.0"},
	}
	if diff := cmp.Diff(exp, keys(all)); diff != "" {
		t.Fatalf("unexpected packs (-want, +got):\n%s", diff)
	}

	foo := packs.NewIdentifier("sample", "foo")
	some, err := repository.Collect(repo.Query(ctx, &foo))
	if err != nil {
		t.Fatal(err)
	}
	if len(some) != 3 {
		t.Fatalf("expected 3 versions of foo, got %v", keys(some))
	}

	p, err := some[1].Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p.String() != "sample/foo@1.2.0" {
		t.Fatalf("unexpected pack %v", p)
	}
	assets, err := p.Assets()
	if err != nil {
		t.Fatal(err)
	}
	if string(assets[packs.NewResourcePath("sample", "textures/a.png")]) != "a" {
		t.Fatalf("unexpected assets %v", assets)
	}
}

func TestFileRepositoryFetchMissing(t *testing.T) {
	repo := testRepository()
	_, err := repo.Fetch(t.Context(), repository.Index{
		ID:         packs.NewIdentifier("sample", "foo"),
		Version:    packs.MustParseVersion("9.9.9"),
		Repository: repo,
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist error, got %v", err)
	}
}

func TestFileRepositoryDuplicate(t *testing.T) {
	repo := repository.NewFSRepository(mpfs.MapFS(map[string]string{
		"a/pack.yaml": manifest("sample/foo", "1.0.0"),
		"b/pack.yaml": manifest("sample/foo", "1.0.0"),
	}), "file:dup")

	if _, err := repository.Collect(repo.Query(t.Context(), nil)); err == nil {
		t.Fatal("expected duplicate pack error")
	}
}

func TestParsers(t *testing.T) {
	configured := []repository.Repository{testRepository()}
	parsers := repository.Parsers{
		repository.IndexParser(configured),
		repository.FileParser("/base"),
		repository.HTTPParser(nil, func(host string) map[string]string {
			return map[string]string{"Authorization": "Bearer " + host}
		}),
		repository.GitParser(t.TempDir(), nil),
	}

	tests := []struct {
		token string
		exp   string
		err   bool
	}{
		{token: "#0", exp: "file:test"},
		{token: "#1", err: true},
		{token: "#x", err: true},
		{token: "file:/srv/packs", exp: "file:/srv/packs"},
		{token: "file:packs", exp: "file:" + filepath.Join("/base", "packs")},
		{token: "file:", err: true},
		{token: "https://example.com/packs/", exp: "https://example.com/packs"},
		{token: "git+https://example.com/packs.git#v1", exp: "git+https://example.com/packs.git#v1"},
		{token: "git+https://example.com/packs.git", exp: "git+https://example.com/packs.git"},
		{token: "ftp://example.com", err: true},
		{token: "packs", err: true},
	}

	for _, tc := range tests {
		t.Run(tc.token, func(t *testing.T) {
			repo, err := parsers.Parse(tc.token)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error, got %v", repo)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if repo.String() != tc.exp {
				t.Fatalf("expected %s, got %s", tc.exp, repo)
			}
		})
	}

	_, err := parsers.Parse("ftp://example.com")
	var unparsable *repository.UnparsableTokenError
	if !errors.As(err, &unparsable) || unparsable.Token != "ftp://example.com" {
		t.Fatalf("expected UnparsableTokenError, got %v", err)
	}
}

func TestPrefetch(t *testing.T) {
	repo := testRepository()
	ctx := t.Context()

	indices, err := repository.Collect(repo.Query(ctx, nil))
	if err != nil {
		t.Fatal(err)
	}

	p := pool.New(2)
	defer p.Close()

	fetched, err := repository.Prefetch(ctx, p, indices)
	if err != nil {
		t.Fatal(err)
	}
	for i, pack := range fetched {
		if pack.ID != indices[i].ID || pack.Version.Compare(indices[i].Version) != 0 {
			t.Fatalf("prefetch %d: expected %v, got %v", i, indices[i], pack)
		}
	}

	missing := repository.Index{ID: packs.NewIdentifier("sample", "nope"), Version: packs.MustParseVersion("1.0.0"), Repository: repo}
	if _, err := repository.Prefetch(ctx, p, append(indices, missing)); err == nil {
		t.Fatal("expected prefetch to fail")
	}

	f := repository.FetchAsync(ctx, nil, indices[0])
	pack, err := f.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if pack.ID != indices[0].ID {
		t.Fatalf("unexpected pack %v", pack)
	}
}

func TestOpenFile(t *testing.T) {
	rc, err := repository.OpenFile(mpfs.MapFS(map[string]string{"a.txt": "hello"}), "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "hello" {
		t.Fatalf("expected hello, got %q", buf.String())
	}
}

func zipPack(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := zw.AddFS(mpfs.MapFS(files)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestHTTPRepository(t *testing.T) {
	var downloads atomic.Int32
	release := make(chan struct{})

	foo := zipPack(t, map[string]string{
		"pack.yaml":                    manifest("sample/foo", "1.2.0"),
		"assets/sample/textures/a.png": "a",
	})
	wrong := zipPack(t, map[string]string{"pack.yaml": manifest("sample/other", "1.0.0")})

	mux := http.NewServeMux()
	mux.HandleFunc("/packs/index.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `[
			{"id": "sample/foo", "version": "1.2.0", "path": "foo/1.2.0.zip"},
			{"id": "sample/foo", "version": "1.0.0", "path": "foo/1.0.0.zip"},
			{"id": "sample/wrong", "version": "1.0.0", "path": "wrong.zip"}
		]`)
	})
	mux.HandleFunc("/packs/foo/1.2.0.zip", func(w http.ResponseWriter, _ *http.Request) {
		downloads.Add(1)
		<-release
		w.Write(foo)
	})
	mux.HandleFunc("/packs/wrong.zip", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(wrong)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	repo, err := repository.NewHTTPRepository(ts.URL + "/packs")
	if err != nil {
		t.Fatal(err)
	}
	repo.WithHeaders(map[string]string{"Authorization": "Bearer s3cret"}).WithClient(ts.Client())

	ctx := t.Context()

	all, err := repository.Collect(repo.Query(ctx, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no packs listed without identifier, got %v", keys(all))
	}

	id := packs.NewIdentifier("sample", "foo")
	indices, err := repository.Collect(repo.Query(ctx, &id))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]indexKey{{"sample/foo", "1.0.0"}, {"sample/foo", "1.2.0"}}, keys(indices)); diff != "" {
		t.Fatalf("unexpected packs (-want, +got):\n%s", diff)
	}

	// Concurrent fetches share one download, which outlives the caller
	// that started it.
	first, cancel := context.WithCancel(ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := repo.Fetch(first, indices[1])
		firstErr <- err
	}()
	for downloads.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	var wg sync.WaitGroup
	results := make([]*packs.Pack, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = repo.Fetch(ctx, indices[1])
		}()
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled fetch to fail with context.Canceled, got %v", err)
	}
	close(release)
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatal(errs[i])
		}
		if results[i] != results[0] {
			t.Fatal("expected all fetches to return the same pack")
		}
	}

	// Cached from now on.
	if _, err := repo.Fetch(ctx, indices[1]); err != nil {
		t.Fatal(err)
	}
	if n := downloads.Load(); n != 1 {
		t.Fatalf("expected a single download, got %d", n)
	}

	assets, err := results[0].Assets()
	if err != nil {
		t.Fatal(err)
	}
	if string(assets[packs.NewResourcePath("sample", "textures/a.png")]) != "a" {
		t.Fatalf("unexpected assets %v", assets)
	}

	wrongID := packs.NewIdentifier("sample", "wrong")
	if _, err := repo.Fetch(ctx, repository.Index{ID: wrongID, Version: packs.MustParseVersion("1.0.0"), Repository: repo}); err == nil {
		t.Fatal("expected mismatching pack to be rejected")
	}
}

func TestHTTPRepositoryUnauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	repo, err := repository.NewHTTPRepository(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	repo.WithClient(ts.Client())

	id := packs.NewIdentifier("sample", "foo")
	if _, err := repository.Collect(repo.Query(t.Context(), &id)); err == nil {
		t.Fatal("expected error")
	}
}

func TestGitRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	src := t.TempDir()
	r, err := git.PlainInit(src, false)
	if err != nil {
		t.Fatal(err)
	}
	w, err := r.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	commit := func(files map[string]string, msg string) {
		for name, content := range files {
			p := filepath.Join(src, name)
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := w.Add(name); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := w.Commit(msg, &git.CommitOptions{
			Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
		}); err != nil {
			t.Fatal(err)
		}
	}

	commit(map[string]string{"foo/pack.yaml": manifest("sample/foo", "1.0.0")}, "foo")

	cache := t.TempDir()
	repo := repository.NewGitRepository(cache, src, "")
	ctx := context.Background()

	indices, err := repository.Collect(repo.Query(ctx, nil))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]indexKey{{"sample/foo", "1.0.0"}}, keys(indices)); diff != "" {
		t.Fatalf("unexpected packs (-want, +got):\n%s", diff)
	}
	if indices[0].Repository != repo {
		t.Fatal("expected index to refer to the git repository")
	}

	p, err := indices[0].Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p.String() != "sample/foo@1.0.0" {
		t.Fatalf("unexpected pack %v", p)
	}

	// A new repository on the same cache picks up new commits.
	commit(map[string]string{"bar/pack.yaml": manifest("sample/bar", "2.0.0")}, "bar")

	again, err := repository.Collect(repository.NewGitRepository(cache, src, "").Query(ctx, nil))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]indexKey{{"sample/bar", "2.0.0"}, {"sample/foo", "1.0.0"}}, keys(again)); diff != "" {
		t.Fatalf("unexpected packs after update (-want, +got):\n%s", diff)
	}

	if _, err := repository.Collect(repository.NewGitRepository(t.TempDir(), src, "no-such-branch").Query(ctx, nil)); err == nil {
		t.Fatal("expected unknown reference to fail")
	}
}
