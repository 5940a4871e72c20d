package packs

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"

	mpfs "github.com/mangoplex/multipacks/internal/fs"
)

// Pack is a loaded pack: its manifest plus its files. Packs are immutable
// once loaded and safe to share between goroutines.
type Pack struct {
	Manifest

	// FS holds the pack's files with the manifest's exclusions applied.
	FS fs.FS

	// Location describes where the pack was loaded from, for messages.
	Location string
}

// Load reads the manifest at the root of fsys and returns the pack.
func Load(fsys fs.FS, location string) (*Pack, error) {
	bs, err := fs.ReadFile(fsys, ManifestFile)
	if err != nil {
		return nil, &ManifestError{Path: location, Err: err}
	}

	m, err := ParseManifest(bs)
	if err != nil {
		return nil, &ManifestError{Path: location, Err: err}
	}

	filtered, err := mpfs.NewFilterFS(fsys, nil, m.Exclude)
	if err != nil {
		return nil, &ManifestError{Path: location, Err: err}
	}

	return &Pack{Manifest: *m, FS: filtered, Location: location}, nil
}

// LoadDir loads the pack rooted at the directory dir.
func LoadDir(dir string) (*Pack, error) {
	return Load(os.DirFS(dir), dir)
}

func (p *Pack) String() string {
	return p.ID.String() + "@" + p.Version.String()
}

// Assets reads every file under assets/, keyed by resource path. Files
// directly inside assets/ (outside any namespace) are ignored.
func (p *Pack) Assets() (map[ResourcePath][]byte, error) {
	return ReadAssets(p.FS)
}

// ReadAssets reads the asset tree of fsys.
func ReadAssets(fsys fs.FS) (map[ResourcePath][]byte, error) {
	assets := make(map[ResourcePath][]byte)

	err := fs.WalkDir(fsys, AssetsDir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rp, ok := FromFilePath(name)
		if !ok {
			return nil
		}
		bs, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		assets[rp] = bs
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) && len(assets) == 0 {
		return assets, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read assets: %w", err)
	}

	return assets, nil
}

// SortedPaths returns the keys of an asset map in lexical order.
func SortedPaths[V any](assets map[ResourcePath]V) []ResourcePath {
	return slices.SortedFunc(maps.Keys(assets), ResourcePath.Compare)
}
