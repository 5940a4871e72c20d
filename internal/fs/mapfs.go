package fs

import (
	"testing/fstest"
)

// MapFS builds an in-memory file system from file contents keyed by
// slash-separated paths.
func MapFS[T ~string | ~[]byte](m map[string]T) fstest.MapFS {
	m0 := make(fstest.MapFS, len(m))
	for p, f := range m {
		m0[p] = &fstest.MapFile{Data: []byte(f), Mode: 0o644}
	}
	return m0
}
