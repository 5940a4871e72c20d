// Package patches applies JSON patches shipped by packs to the assets of
// their dependencies.
package patches

import (
	"fmt"
	"strings"

	"github.com/akedrou/textdiff"

	"github.com/mangoplex/multipacks/internal/jsonpatch"
	"github.com/mangoplex/multipacks/internal/modifier"
	"github.com/mangoplex/multipacks/internal/packs"
)

const (
	ID  = "patches"
	Ext = ".patch"
)

// Patch is a patch of one pack. Target is the patched asset, the patch path
// without its extension.
type Patch struct {
	Path   packs.ResourcePath
	Target packs.ResourcePath
	Pack   packs.Identifier
	Patch  jsonpatch.Patch
}

type Modifier struct {
	// Patches are kept in build order, and in path order within a pack.
	Patches []*Patch
}

func Factory() modifier.Factory {
	return modifier.Factory{ID: ID, New: func() modifier.Modifier { return New() }}
}

func New() *Modifier {
	return &Modifier{}
}

func (*Modifier) ID() string { return ID }

func (*Modifier) Claims(p packs.ResourcePath) bool {
	return p.Ext() == Ext
}

func (m *Modifier) Visit(pack *packs.Pack, assets modifier.Assets) error {
	for _, p := range assets.Paths() {
		patch, err := jsonpatch.Decode(assets[p])
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		m.Patches = append(m.Patches, &Patch{
			Path:   p,
			Target: p.WithPath(strings.TrimSuffix(p.Path, Ext)),
			Pack:   pack.ID,
			Patch:  patch,
		})
	}
	return nil
}

func (m *Modifier) Finalize(env *modifier.Env) error {
	for _, p := range m.Patches {
		before, ok := env.Asset(p.Target)
		if !ok {
			return fmt.Errorf("patch %s from %s: target %s not found", p.Path, p.Pack, p.Target)
		}

		after, err := jsonpatch.Apply(p.Patch, before)
		if err != nil {
			return fmt.Errorf("patch %s from %s: %w", p.Path, p.Pack, err)
		}

		env.Log.Debugf("patch %s:\n%s", p.Path, textdiff.Unified(p.Target.String(), p.Target.String(), string(before), string(after)))
		if err := env.Replace(p.Target, after); err != nil {
			return err
		}
	}
	return nil
}
