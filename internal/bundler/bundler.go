// Package bundler builds the merged asset tree of a pack and its
// dependencies.
package bundler

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"time"

	mpfs "github.com/mangoplex/multipacks/internal/fs"
	"github.com/mangoplex/multipacks/internal/logging"
	"github.com/mangoplex/multipacks/internal/metrics"
	"github.com/mangoplex/multipacks/internal/modifier"
	"github.com/mangoplex/multipacks/internal/modifier/glyphs"
	"github.com/mangoplex/multipacks/internal/modifier/models"
	"github.com/mangoplex/multipacks/internal/modifier/patches"
	"github.com/mangoplex/multipacks/internal/modifier/sprites"
	"github.com/mangoplex/multipacks/internal/packs"
	"github.com/mangoplex/multipacks/internal/progress"
	"github.com/mangoplex/multipacks/internal/repository"
	"github.com/mangoplex/multipacks/internal/resolver"
)

// DefaultTarget is the game version bundles are built for unless set.
var DefaultTarget = packs.MustParseVersion("1.21.5")

// DefaultFactories returns the built-in modifiers in the order they run.
func DefaultFactories() []modifier.Factory {
	return []modifier.Factory{
		glyphs.Factory(),
		models.Factory(),
		sprites.Factory(),
		patches.Factory(),
	}
}

type Bundler struct {
	factories    []modifier.Factory
	repos        []repository.Repository
	target       packs.Version
	ignore       []Ignore
	ignoreErrors bool
	excluded     []string
	log          *logging.Logger
	progress     *progress.Bar
}

// New returns a bundler running the modifiers of factories, in order.
func New(factories ...modifier.Factory) *Bundler {
	return &Bundler{factories: factories, target: DefaultTarget}
}

// WithRepositories sets the repositories dependencies are resolved from, in
// priority order.
func (b *Bundler) WithRepositories(repos ...repository.Repository) *Bundler {
	b.repos = repos
	return b
}

func (b *Bundler) WithTarget(target packs.Version) *Bundler {
	if !target.IsZero() {
		b.target = target
	}
	return b
}

func (b *Bundler) WithIgnore(ignore ...Ignore) *Bundler {
	b.ignore = ignore
	return b
}

func (b *Bundler) WithIgnoreErrors(ignore bool) *Bundler {
	b.ignoreErrors = ignore
	return b
}

// WithExcluded sets globs of pack files that are left out of the bundle.
func (b *Bundler) WithExcluded(excluded []string) *Bundler {
	b.excluded = excluded
	return b
}

func (b *Bundler) WithLogger(log *logging.Logger) *Bundler {
	b.log = log
	return b
}

func (b *Bundler) WithProgress(bar *progress.Bar) *Bundler {
	b.progress = bar
	return b
}

// Result is a built bundle.
type Result struct {
	Root   *packs.Pack
	Target packs.Version

	// Order is the build order, dependencies first and root last.
	Order []*packs.Pack

	// Modifiers holds the modifiers after finalize, by ID.
	Modifiers map[string]modifier.Modifier

	// Assets is the merged asset tree including the generated assets.
	Assets modifier.Assets

	Warnings []error
}

// Digest is a hex SHA-256 of the asset tree and the target. Equal results
// have equal digests.
func (r *Result) Digest() string {
	h := sha256.New()
	h.Write([]byte(r.Target.String()))
	for _, p := range r.Assets.Paths() {
		data := r.Assets[p]
		h.Write([]byte{0})
		h.Write([]byte(p.String()))
		h.Write(binary.BigEndian.AppendUint64(nil, uint64(len(data))))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Bundle resolves the dependencies of root and merges their assets through
// the modifiers. Without ignore-errors the first error aborts.
func (b *Bundler) Bundle(ctx context.Context, root *packs.Pack) (*Result, error) {
	start := time.Now()

	result, err := b.bundle(ctx, root)
	if err != nil {
		metrics.BundleBuildFailed(root.ID.String(), errorType(err))
		return nil, err
	}

	metrics.BundleBuildSucceeded(root.ID.String(), start, len(result.Warnings))
	for _, w := range result.Warnings {
		b.log.Debugf("warning: %v", w)
	}
	return result, nil
}

func (b *Bundler) bundle(ctx context.Context, root *packs.Pack) (*Result, error) {
	b.progress.Describe("resolving " + root.ID.String())
	resolution, err := resolver.New(b.repos...).
		WithIgnoreErrors(b.ignoreErrors).
		WithLogger(b.log).
		Resolve(ctx, root)
	if err != nil {
		return nil, err
	}

	skip := make([]string, 0, len(b.ignore))
	for _, i := range b.ignore {
		skip = append(skip, i.ModifierID())
	}
	pipeline, err := modifier.NewPipeline(b.factories, skip)
	if err != nil {
		return nil, err
	}
	pipeline.WithLogger(b.log)

	result := &Result{
		Root:      root,
		Target:    b.target,
		Order:     resolution.Order,
		Modifiers: pipeline.Modifiers(),
		Assets:    make(modifier.Assets),
		Warnings:  slices.Clone(resolution.Warnings),
	}
	writers := make(map[packs.ResourcePath][]packs.Identifier)

	b.progress.AddMax(len(resolution.Order) + 1)
	for _, p := range resolution.Order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.progress.Describe("merging " + p.String())

		assets, err := b.assets(p)
		if err != nil {
			return nil, err
		}
		unclaimed, err := pipeline.Visit(p, assets)
		if err != nil {
			return nil, err
		}

		for _, path := range unclaimed.Paths() {
			if w := writers[path]; len(w) == 0 || w[len(w)-1] != p.ID {
				writers[path] = append(w, p.ID)
			}
			result.Assets[path] = unclaimed[path]
		}
		b.progress.Add(1)
	}

	// The final writer of a path must depend on every pack it replaced.
	for _, path := range slices.SortedFunc(maps.Keys(writers), packs.ResourcePath.Compare) {
		conflict := b.conflict(resolution, path, writers[path])
		if conflict == nil {
			continue
		}
		if !b.ignoreErrors {
			return nil, conflict
		}
		b.log.Warnf("%v", conflict)
		result.Warnings = append(result.Warnings, conflict)
	}

	b.progress.Describe("finalizing " + root.ID.String())
	warnings, err := pipeline.Finalize(b.target, result.Assets, b.ignoreErrors)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)
	b.progress.Add(1)

	return result, nil
}

// conflict checks the final writer of path against the packs it replaced,
// latest first.
func (b *Bundler) conflict(resolution *resolver.Resolution, path packs.ResourcePath, writers []packs.Identifier) *AssetConflictError {
	last := writers[len(writers)-1]
	for _, other := range slices.Backward(writers[:len(writers)-1]) {
		if other == last {
			continue
		}
		if !resolution.DependsOn(last, other) {
			return &AssetConflictError{Path: path, Pack: last, Other: other}
		}
		b.log.Debugf("%s: %s shadows %s", path, last, other)
	}
	return nil
}

// assets reads the asset tree of p with the bundle's exclusions applied.
func (b *Bundler) assets(p *packs.Pack) (modifier.Assets, error) {
	fsys, err := mpfs.NewFilterFS(p.FS, nil, b.excluded)
	if err != nil {
		return nil, err
	}

	ok, err := mpfs.HasFiles(fsys, packs.AssetsDir)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", p, err)
	}
	if !ok {
		b.log.Debugf("pack %s has no assets", p)
		return modifier.Assets{}, nil
	}

	assets, err := packs.ReadAssets(fsys)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", p, err)
	}
	return assets, nil
}
