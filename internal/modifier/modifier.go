// Package modifier runs the transforms that turn the assets of a resolved
// pack graph into generated game assets.
//
// A Modifier claims definition files while packs are merged (Visit) and
// produces its output once every pack has been seen (Finalize).
package modifier

import (
	"fmt"
	"slices"

	"github.com/mangoplex/multipacks/internal/logging"
	"github.com/mangoplex/multipacks/internal/packs"
)

// Assets is a set of files keyed by their resource path.
type Assets map[packs.ResourcePath][]byte

// Paths returns the keys of a in sorted order.
func (a Assets) Paths() []packs.ResourcePath {
	return packs.SortedPaths(a)
}

type Modifier interface {
	ID() string

	// Claims reports whether the asset at p is a definition the modifier
	// consumes. Claimed assets are not merged into the output.
	Claims(p packs.ResourcePath) bool

	// Visit is called once per pack in build order with the assets of the
	// pack the modifier claims.
	Visit(pack *packs.Pack, assets Assets) error

	Finalize(env *Env) error
}

// Factory creates a fresh modifier for every bundle.
type Factory struct {
	ID  string
	New func() Modifier
}

// DuplicateOutputError reports two modifiers emitting the same path.
type DuplicateOutputError struct {
	Path   packs.ResourcePath
	First  string
	Second string
}

func (err *DuplicateOutputError) Error() string {
	return fmt.Sprintf("modifiers %q and %q both emit %s", err.First, err.Second, err.Path)
}

// Pipeline holds the modifiers of one bundle, in registration order.
type Pipeline struct {
	modifiers []Modifier
	log       *logging.Logger
}

// NewPipeline instantiates every factory whose ID is not in skip.
func NewPipeline(factories []Factory, skip []string) (*Pipeline, error) {
	seen := make(map[string]struct{}, len(factories))
	p := &Pipeline{}
	for _, f := range factories {
		if _, ok := seen[f.ID]; ok {
			return nil, fmt.Errorf("duplicate modifier %q", f.ID)
		}
		seen[f.ID] = struct{}{}

		if slices.Contains(skip, f.ID) {
			continue
		}
		m := f.New()
		if m.ID() != f.ID {
			return nil, fmt.Errorf("modifier factory %q created modifier %q", f.ID, m.ID())
		}
		p.modifiers = append(p.modifiers, m)
	}
	return p, nil
}

func (p *Pipeline) WithLogger(log *logging.Logger) *Pipeline {
	p.log = log
	return p
}

// Modifiers returns the instantiated modifiers by ID.
func (p *Pipeline) Modifiers() map[string]Modifier {
	m := make(map[string]Modifier, len(p.modifiers))
	for _, mod := range p.modifiers {
		m[mod.ID()] = mod
	}
	return m
}

// Visit hands each modifier the assets of pack it claims and returns the
// assets no modifier claimed.
func (p *Pipeline) Visit(pack *packs.Pack, assets Assets) (Assets, error) {
	unclaimed := make(Assets, len(assets))
	claimed := make([]Assets, len(p.modifiers))

	for path, data := range assets {
		owned := false
		for i, m := range p.modifiers {
			if !m.Claims(path) {
				continue
			}
			if claimed[i] == nil {
				claimed[i] = make(Assets)
			}
			claimed[i][path] = data
			owned = true
		}
		if !owned {
			unclaimed[path] = data
		}
	}

	for i, m := range p.modifiers {
		if claimed[i] == nil {
			continue
		}
		p.log.Debugf("%s: %d definitions in %s", m.ID(), len(claimed[i]), pack)
		if err := m.Visit(pack, claimed[i]); err != nil {
			return nil, fmt.Errorf("modifier %s: pack %s: %w", m.ID(), pack, err)
		}
	}

	return unclaimed, nil
}

// Finalize runs every modifier's finalize hook against merged, which is
// updated in place. It returns the errors ignored under ignoreErrors.
func (p *Pipeline) Finalize(target packs.Version, merged Assets, ignoreErrors bool) ([]error, error) {
	env := &Env{
		Target:       target,
		assets:       merged,
		owners:       make(map[packs.ResourcePath]string),
		ignoreErrors: ignoreErrors,
	}
	for _, m := range p.modifiers {
		env.current = m.ID()
		env.Log = p.log.With("modifier", m.ID())
		if err := m.Finalize(env); err != nil {
			return nil, fmt.Errorf("modifier %s: %w", m.ID(), err)
		}
	}
	return env.warnings, nil
}
