package fs

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// FilterFS hides files of the wrapped fs.FS that do not pass the inclusion
// and exclusion globs. Directories are never hidden, only their contents.
type FilterFS struct {
	fsys     fs.FS
	included []glob.Glob
	excluded []glob.Glob
}

// NewFilterFS wraps fsys. A nil or empty included list includes every file.
// Patterns use gobwas/glob syntax with '/' as separator; a pattern without a
// separator is matched against the base name as well, so "*.xcf" excludes
// xcf files at any depth.
func NewFilterFS(fsys fs.FS, included, excluded []string) (fs.FS, error) {
	if len(included) == 0 && len(excluded) == 0 {
		return fsys, nil
	}

	inc, err := compileGlobs(included)
	if err != nil {
		return nil, err
	}
	exc, err := compileGlobs(excluded)
	if err != nil {
		return nil, err
	}

	return &FilterFS{fsys: fsys, included: inc, excluded: exc}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("failed to compile file pattern %q: %w", p, err)
		}
		globs = append(globs, g)
		if !strings.Contains(p, "/") {
			globs = append(globs, baseGlob{g})
		}
	}
	return globs, nil
}

type baseGlob struct {
	glob.Glob
}

func (g baseGlob) Match(name string) bool {
	return g.Glob.Match(path.Base(name))
}

// Visible reports whether the file name passes the filters.
func (f *FilterFS) Visible(name string) bool {
	matches := func(g glob.Glob) bool { return g.Match(name) }
	if len(f.included) > 0 && !slices.ContainsFunc(f.included, matches) {
		return false
	}
	return !slices.ContainsFunc(f.excluded, matches)
}

func (f *FilterFS) Open(name string) (fs.File, error) {
	file, err := f.fsys.Open(name)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if !stat.IsDir() && !f.Visible(name) {
		file.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	return file, nil
}

func (f *FilterFS) ReadDir(name string) ([]fs.DirEntry, error) {
	entries, err := fs.ReadDir(f.fsys, name)
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(entries, func(e fs.DirEntry) bool {
		return !e.IsDir() && !f.Visible(path.Join(name, e.Name()))
	}), nil
}

func (f *FilterFS) Stat(name string) (fs.FileInfo, error) {
	info, err := fs.Stat(f.fsys, name)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() && !f.Visible(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return info, nil
}
