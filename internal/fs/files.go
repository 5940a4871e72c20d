package fs

import (
	"errors"
	"io/fs"
)

// HasFiles reports whether the directory root of fsys holds any file, at
// any depth. A missing root holds no files.
func HasFiles(fsys fs.FS, root string) (bool, error) {
	var found bool
	err := fs.WalkDir(fsys, root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return found, err
}
