package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp/capability"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/mangoplex/multipacks/internal/metrics"
	"github.com/mangoplex/multipacks/internal/packs"
)

// configFile records which remote and reference a clone was made for, so a
// changed token leads to a fresh clone instead of a confused checkout.
const configFile = "multipacks"

func init() {
	// For Azure DevOps compatibility. More details: https://github.com/go-git/go-git/issues/64
	transport.UnsupportedCapabilities = []capability.Capability{
		capability.ThinPack,
	}
}

// GitRepository serves the packs of a git repository laid out like a
// FileRepository. The repository is cloned into a cache directory, or
// updated there, on first use.
type GitRepository struct {
	url  string
	ref  string
	path string
	auth transport.AuthMethod

	once sync.Once
	repo *FileRepository
	err  error
}

type gitState struct {
	URL  string `json:"url"`
	Ref  string `json:"ref,omitempty"`
	Head string `json:"head,omitempty"` // remote default branch at clone time
}

// NewGitRepository prepares a repository for url at ref: a branch, a tag, a
// full reference name or a commit hash. An empty ref follows the remote HEAD.
func NewGitRepository(cacheDir, url, ref string) *GitRepository {
	sum := sha256.Sum256([]byte(url))
	return &GitRepository{
		url:  url,
		ref:  ref,
		path: filepath.Join(cacheDir, "git", hex.EncodeToString(sum[:8])),
	}
}

func (r *GitRepository) WithAuth(auth transport.AuthMethod) *GitRepository {
	r.auth = auth
	return r
}

func (r *GitRepository) String() string {
	if r.ref == "" {
		return "git+" + r.url
	}
	return "git+" + r.url + "#" + r.ref
}

// Dir is the local checkout.
func (r *GitRepository) Dir() string {
	return r.path
}

func (r *GitRepository) Query(ctx context.Context, id *packs.Identifier) iter.Seq2[Index, error] {
	return func(yield func(Index, error) bool) {
		repo, err := r.sync(ctx)
		if err != nil {
			yield(Index{}, err)
			return
		}
		for idx, err := range repo.Query(ctx, id) {
			idx.Repository = r
			if !yield(idx, err) {
				return
			}
		}
	}
}

func (r *GitRepository) Fetch(ctx context.Context, idx Index) (*packs.Pack, error) {
	repo, err := r.sync(ctx)
	if err != nil {
		return nil, err
	}
	idx.Repository = repo
	return repo.Fetch(ctx, idx)
}

func (r *GitRepository) sync(ctx context.Context) (*FileRepository, error) {
	r.once.Do(func() {
		start := time.Now()
		if err := r.execute(ctx); err != nil {
			metrics.GitSyncFailed(r.url)
			r.err = fmt.Errorf("repository %s: %w", r, err)
			return
		}
		metrics.GitSyncSucceeded(r.url, start)
		r.repo = NewFSRepository(os.DirFS(r.path), r.String())
	})
	return r.repo, r.err
}

// execute clones the repository if there is no usable clone yet, then
// fetches and checks out the reference.
func (r *GitRepository) execute(ctx context.Context) error {
	state := gitState{URL: r.url, Ref: r.ref}

	if data, err := os.ReadFile(filepath.Join(r.path, ".git", configFile)); err == nil {
		var existing gitState
		if err := json.Unmarshal(data, &existing); err != nil || existing.URL != state.URL || existing.Ref != state.Ref {
			if err := os.RemoveAll(r.path); err != nil {
				return err
			}
		} else {
			state.Head = existing.Head
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	repository, err := git.PlainOpen(r.path)
	if errors.Is(err, git.ErrRepositoryNotExists) { // does not exist? clone it
		repository, err = git.PlainCloneContext(ctx, r.path, false, &git.CloneOptions{
			URL:        r.url,
			Auth:       r.auth,
			NoCheckout: true, // We will checkout later
		})
		if err != nil {
			return err
		}

		head, err := repository.Reference(plumbing.HEAD, false)
		if err != nil {
			return err
		}
		state.Head = head.Target().Short()

		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(r.path, ".git", configFile), data, 0o644); err != nil {
			return err
		}
	} else if err != nil { // other errors are bubbled up
		return err
	}

	remote := "origin"
	if err := repository.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		Auth:       r.auth,
		Force:      true,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", remote)),
			gitconfig.RefSpec("+refs/tags/*:refs/tags/*"),
		},
	}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}

	hash, err := r.resolve(repository, remote, state.Head)
	if err != nil {
		return err
	}

	w, err := repository.Worktree()
	if err != nil {
		return err
	}

	return w.Checkout(&git.CheckoutOptions{
		Hash:  *hash,
		Force: true, // Discard any local changes
	})
}

func (r *GitRepository) resolve(repository *git.Repository, remote, head string) (*plumbing.Hash, error) {
	if r.ref == "" {
		if head == "" {
			return nil, errors.New("unknown default branch, set a reference")
		}
		return repository.ResolveRevision(plumbing.Revision(fmt.Sprintf("refs/remotes/%s/%s", remote, head)))
	}

	candidates := []string{
		fmt.Sprintf("refs/remotes/%s/%s", remote, strings.TrimPrefix(r.ref, "refs/heads/")),
		"refs/tags/" + strings.TrimPrefix(r.ref, "refs/tags/"),
		r.ref,
	}
	for _, c := range candidates {
		if h, err := repository.ResolveRevision(plumbing.Revision(c)); err == nil {
			return h, nil
		}
	}

	return nil, fmt.Errorf("reference %q not found", r.ref)
}
