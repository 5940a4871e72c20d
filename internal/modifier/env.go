package modifier

import (
	"fmt"
	"slices"

	"github.com/mangoplex/multipacks/internal/logging"
	"github.com/mangoplex/multipacks/internal/packs"
)

// Env is the view of the merged asset tree modifiers get at finalize.
type Env struct {
	Target packs.Version
	Log    *logging.Logger

	assets       Assets
	owners       map[packs.ResourcePath]string // path -> modifier that emitted it
	current      string
	ignoreErrors bool
	warnings     []error
}

// Asset returns the current content of p.
func (e *Env) Asset(p packs.ResourcePath) ([]byte, bool) {
	data, ok := e.assets[p]
	return data, ok
}

// Paths returns the sorted paths of the merged tree matching keep, or all of
// them for a nil keep.
func (e *Env) Paths(keep func(packs.ResourcePath) bool) []packs.ResourcePath {
	paths := e.assets.Paths()
	if keep == nil {
		return paths
	}
	return slices.DeleteFunc(paths, func(p packs.ResourcePath) bool { return !keep(p) })
}

// Emit writes a generated asset. Emitting a path another modifier already
// emitted is a DuplicateOutputError; with ignore-errors the later write wins.
func (e *Env) Emit(p packs.ResourcePath, data []byte) error {
	if first, ok := e.owners[p]; ok && first != e.current {
		err := &DuplicateOutputError{Path: p, First: first, Second: e.current}
		if !e.ignoreErrors {
			return err
		}
		e.Warn(err)
	}
	e.owners[p] = e.current
	e.assets[p] = data
	return nil
}

// Replace rewrites an existing asset in place without taking ownership of it.
func (e *Env) Replace(p packs.ResourcePath, data []byte) error {
	if _, ok := e.assets[p]; !ok {
		return fmt.Errorf("%s: no such asset", p)
	}
	e.assets[p] = data
	return nil
}

// Remove deletes p from the merged tree.
func (e *Env) Remove(p packs.ResourcePath) {
	delete(e.assets, p)
	delete(e.owners, p)
}

// Warn records err as a warning of the bundle.
func (e *Env) Warn(err error) {
	e.Log.Warnf("%v", err)
	e.warnings = append(e.warnings, err)
}
