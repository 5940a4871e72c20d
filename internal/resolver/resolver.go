// Package resolver computes the build order of a pack: every dependency
// selected once, at one version, dependencies before their dependents.
package resolver

import (
	"context"
	"fmt"
	"slices"

	"github.com/mangoplex/multipacks/internal/logging"
	"github.com/mangoplex/multipacks/internal/packs"
	"github.com/mangoplex/multipacks/internal/repository"
)

type Resolver struct {
	repos        []repository.Repository
	ignoreErrors bool
	log          *logging.Logger
}

// New returns a resolver searching repos in the given priority order.
func New(repos ...repository.Repository) *Resolver {
	return &Resolver{repos: repos}
}

// WithIgnoreErrors turns missing dependencies, version conflicts and cycles
// into warnings. The first selected version of a pack is kept.
func (r *Resolver) WithIgnoreErrors(ignore bool) *Resolver {
	r.ignoreErrors = ignore
	return r
}

func (r *Resolver) WithLogger(log *logging.Logger) *Resolver {
	r.log = log
	return r
}

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Root *packs.Pack

	// Order lists every selected pack once, after all its dependencies. The
	// root is last.
	Order []*packs.Pack

	// Warnings holds the errors ignored while resolving.
	Warnings []error

	selected map[packs.Identifier]*packs.Pack
	edges    map[packs.Identifier][]packs.Identifier
}

// Selected returns the pack chosen for id.
func (res *Resolution) Selected(id packs.Identifier) (*packs.Pack, bool) {
	p, ok := res.selected[id]
	return p, ok
}

// DependsOn reports whether a depends on b, directly or transitively.
func (res *Resolution) DependsOn(a, b packs.Identifier) bool {
	seen := map[packs.Identifier]struct{}{a: {}}
	queue := []packs.Identifier{a}
	for len(queue) > 0 {
		var next packs.Identifier
		next, queue = queue[0], queue[1:]
		for _, dep := range res.edges[next] {
			if dep == b {
				return true
			}
			if _, ok := seen[dep]; !ok {
				seen[dep] = struct{}{}
				queue = append(queue, dep)
			}
		}
	}
	return false
}

type pending struct {
	filter     packs.DependencyFilter
	requiredBy *packs.Pack
}

// Resolve selects a version of every transitive dependency of root and
// orders them. Without ignore-errors, the first problem aborts.
func (r *Resolver) Resolve(ctx context.Context, root *packs.Pack) (*Resolution, error) {
	res := &Resolution{
		Root:     root,
		selected: map[packs.Identifier]*packs.Pack{root.ID: root},
		edges:    make(map[packs.Identifier][]packs.Identifier),
	}

	var queue []pending
	enqueue := func(p *packs.Pack) {
		for _, f := range p.Dependencies {
			queue = append(queue, pending{filter: f, requiredBy: p})
		}
	}
	enqueue(root)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next pending
		next, queue = queue[0], queue[1:]
		f := next.filter

		if sel, ok := res.selected[f.ID]; ok {
			res.edges[next.requiredBy.ID] = append(res.edges[next.requiredBy.ID], f.ID)
			if !f.Comparator.Holds(sel.Version, f.Version) {
				err := &VersionConflictError{ID: f.ID, Required: f, Selected: sel.Version, RequiredBy: next.requiredBy.ID}
				if err := r.warn(res, err); err != nil {
					return nil, err
				}
			}
			continue
		}

		idx, found, err := r.find(ctx, res, f)
		if err != nil {
			return nil, err
		}
		if !found {
			if err := r.warn(res, &MissingDependencyError{Filter: f, RequiredBy: next.requiredBy.ID}); err != nil {
				return nil, err
			}
			continue
		}

		p, err := idx.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch %s required by %s: %w", idx, next.requiredBy.ID, err)
		}
		if p.ID != idx.ID || p.Version.Compare(idx.Version) != 0 {
			return nil, fmt.Errorf("fetch %s required by %s: got pack %s", idx, next.requiredBy.ID, p)
		}

		r.log.Debugf("selected %s from %s for %q", p, idx.Repository, f)
		res.selected[p.ID] = p
		res.edges[next.requiredBy.ID] = append(res.edges[next.requiredBy.ID], p.ID)
		enqueue(p)
	}

	sorter := topologicalSort{
		res:        res,
		resolver:   r,
		inprogress: make(map[packs.Identifier]struct{}),
		done:       make(map[packs.Identifier]struct{}),
	}
	if err := sorter.Visit(root, nil); err != nil {
		return nil, err
	}
	res.Order = sorter.sorted

	return res, nil
}

// find searches the repositories in priority order. The first repository
// holding any matching version supplies the highest one it has.
func (r *Resolver) find(ctx context.Context, res *Resolution, f packs.DependencyFilter) (repository.Index, bool, error) {
	for _, repo := range r.repos {
		var best repository.Index
		found := false

		for idx, err := range repo.Query(ctx, &f.ID) {
			if err != nil {
				if err := r.warn(res, fmt.Errorf("query %s for %q: %w", repo, f, err)); err != nil {
					return repository.Index{}, false, err
				}
				break
			}
			if !f.Matches(idx.ID, idx.Version) {
				continue
			}
			if !found || idx.Version.Compare(best.Version) > 0 {
				best, found = idx, true
			}
		}

		if found {
			return best, true, nil
		}
	}
	return repository.Index{}, false, nil
}

// warn records err as a warning with ignore-errors, and returns it otherwise.
func (r *Resolver) warn(res *Resolution, err error) error {
	if !r.ignoreErrors {
		return err
	}
	r.log.Warnf("%v", err)
	res.Warnings = append(res.Warnings, err)
	return nil
}

// topologicalSort emits packs in depth-first post-order, following each
// pack's dependencies in declaration order.
type topologicalSort struct {
	res        *Resolution
	resolver   *Resolver
	inprogress map[packs.Identifier]struct{}
	done       map[packs.Identifier]struct{}
	sorted     []*packs.Pack
}

func (s *topologicalSort) Visit(p *packs.Pack, path []packs.Identifier) error {
	path = append(path, p.ID)

	s.inprogress[p.ID] = struct{}{}
	for _, f := range p.Dependencies {
		dep, ok := s.res.selected[f.ID]
		if !ok {
			continue // dropped as missing
		}
		if _, ok := s.done[dep.ID]; ok {
			continue
		}
		if _, ok := s.inprogress[dep.ID]; ok {
			start := slices.Index(path, dep.ID)
			cycle := &CycleError{Path: append(slices.Clone(path[start:]), dep.ID)}
			if err := s.resolver.warn(s.res, cycle); err != nil {
				return err
			}
			continue // drop the back edge
		}
		if err := s.Visit(dep, path); err != nil {
			return err
		}
	}
	delete(s.inprogress, p.ID)
	s.done[p.ID] = struct{}{}
	s.sorted = append(s.sorted, p)
	return nil
}
