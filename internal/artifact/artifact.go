// Package artifact writes bundles to disk, as a directory or a zip archive,
// and reads them back.
package artifact

import (
	"archive/zip"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yalue/merged_fs"

	"github.com/mangoplex/multipacks/internal/bundler"
	mpfs "github.com/mangoplex/multipacks/internal/fs"
	"github.com/mangoplex/multipacks/internal/logging"
	"github.com/mangoplex/multipacks/internal/packs"
)

// MetadataFile is the pack metadata at the root of an artifact.
const MetadataFile = "pack.mcmeta"

type Options struct {
	// Description overrides the description written to pack.mcmeta. It
	// defaults to the root pack's description, name or identifier.
	Description string

	Logger *logging.Logger
}

// WriteError reports a failure to write the artifact at Path. Nothing is left
// at Path when it did not exist before.
type WriteError struct {
	Path string
	Err  error
}

func (err *WriteError) Error() string {
	return fmt.Sprintf("write artifact %s: %v", err.Path, err.Err)
}

func (err *WriteError) Unwrap() error {
	return err.Err
}

type metadata struct {
	Pack struct {
		PackFormat  int    `json:"pack_format"`
		Description string `json:"description"`
	} `json:"pack"`
}

// ErrNoDestinationDir is wrapped by the WriteError of a destination whose
// parent directory does not exist.
var ErrNoDestinationDir = errors.New("destination directory does not exist")

// FS returns the artifact layout of result: pack.mcmeta and the assets.
func FS(result *bundler.Result, opts Options) (fs.FS, error) {
	format, ok := PackFormat(result.Target)
	if !ok {
		return nil, fmt.Errorf("no pack format for game version %s", result.Target)
	}

	var meta metadata
	meta.Pack.PackFormat = format
	meta.Pack.Description = cmp.Or(opts.Description, result.Root.Description, result.Root.Name, result.Root.ID.String())
	bs, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}

	assets := make(map[string][]byte, len(result.Assets))
	for p, data := range result.Assets {
		assets[p.FilePath()] = data
	}

	return merged_fs.MergeMultiple(
		mpfs.MapFS(map[string][]byte{MetadataFile: bs}),
		mpfs.MapFS(assets),
	), nil
}

// Write writes result to dest: a zip archive when dest ends in ".zip", a
// directory otherwise. dest is replaced only once the new artifact is
// complete.
func Write(result *bundler.Result, dest string, opts Options) error {
	fsys, err := FS(result, opts)
	if err != nil {
		return &WriteError{Path: dest, Err: err}
	}

	if _, err := os.Stat(filepath.Dir(dest)); errors.Is(err, fs.ErrNotExist) {
		return &WriteError{Path: dest, Err: fmt.Errorf("%w: %s", ErrNoDestinationDir, filepath.Dir(dest))}
	}

	if strings.EqualFold(filepath.Ext(dest), ".zip") {
		err = writeZip(fsys, dest)
	} else {
		err = writeDir(fsys, dest, opts.Logger)
	}
	if err != nil {
		return &WriteError{Path: dest, Err: err}
	}

	opts.Logger.Infof("wrote %d assets to %s", len(result.Assets), dest)
	return nil
}

func writeZip(fsys fs.FS, dest string) error {
	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name()) // no-op after the rename

	if err := WriteZip(f, fsys); err != nil {
		f.Close()
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), dest)
}

// WriteZip writes the files of fsys to w in lexical order, without
// timestamps, so that equal trees give equal archives.
func WriteZip(w io.Writer, fsys fs.FS) error {
	zw := zip.NewWriter(w)

	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		bs, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return err
		}
		_, err = fw.Write(bs)
		return err
	})
	if err != nil {
		return err
	}

	return zw.Close()
}

func writeDir(fsys fs.FS, dest string, log *logging.Logger) error {
	parent, base := filepath.Split(filepath.Clean(dest))
	if parent == "" {
		parent = "."
	}

	info, err := os.Stat(dest)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%s exists and is not a directory", dest)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return err
	}
	exists := err == nil

	tmp, err := os.MkdirTemp(parent, "."+base+"-*")
	if err != nil {
		return err
	}
	if err := os.CopyFS(tmp, fsys); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		os.RemoveAll(tmp)
		return err
	}

	if !exists {
		if err := os.Rename(tmp, dest); err != nil {
			os.RemoveAll(tmp)
			return err
		}
		return nil
	}

	// Swap the old tree out, then drop it.
	old := tmp + ".old"
	if err := os.Rename(dest, old); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		if rerr := os.Rename(old, dest); rerr != nil {
			log.Errorf("restore %s: %v", dest, rerr)
		}
		os.RemoveAll(tmp)
		return err
	}
	return os.RemoveAll(old)
}

// Artifact is an artifact read back from disk.
type Artifact struct {
	PackFormat  int
	Description string
	Assets      map[packs.ResourcePath][]byte
}

// Read opens a zip archive or a directory written by Write.
func Read(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return ReadFS(os.DirFS(path))
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	return ReadFS(zr)
}

// ReadFS reads an artifact laid out in fsys.
func ReadFS(fsys fs.FS) (*Artifact, error) {
	bs, err := fs.ReadFile(fsys, MetadataFile)
	if err != nil {
		return nil, err
	}
	var meta metadata
	if err := json.Unmarshal(bs, &meta); err != nil {
		return nil, fmt.Errorf("%s: %w", MetadataFile, err)
	}

	assets, err := packs.ReadAssets(fsys)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		PackFormat:  meta.Pack.PackFormat,
		Description: meta.Pack.Description,
		Assets:      assets,
	}, nil
}
