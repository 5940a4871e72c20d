package config

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"

	"gopkg.in/yaml.v3"
)

// Merge combines configuration files into one YAML document. Directories are
// walked in lexical order. Mappings merge key by key and lists concatenate
// without duplicates. For any other value the later file wins, or, when
// strict is set, a differing value is an error.
func Merge(paths []string, strict bool) ([]byte, error) {
	files, err := configFiles(paths)
	if err != nil {
		return nil, err
	}

	m := merger{strict: strict}
	merged := map[string]any{}
	for _, f := range files {
		bs, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %v: %w", f, err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(bs, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal configuration file %v: %w", f, err)
		}
		if merged, err = m.mapping("", merged, doc); err != nil {
			return nil, err
		}
	}

	return yaml.Marshal(merged)
}

func configFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				files = append(files, path)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

type merger struct {
	strict bool
}

func (m merger) mapping(path string, dst, src map[string]any) (map[string]any, error) {
	// Keys are visited in order so conflicts are reported deterministically.
	for _, key := range slices.Sorted(maps.Keys(src)) {
		v, err := m.value(path+"/"+key, dst[key], src[key])
		if err != nil {
			return nil, err
		}
		dst[key] = v
	}
	return dst, nil
}

func (m merger) value(path string, prev, next any) (any, error) {
	switch n := next.(type) {
	case map[string]any:
		if o, ok := prev.(map[string]any); ok {
			return m.mapping(path, o, n)
		}
	case []any:
		if o, ok := prev.([]any); ok {
			for _, v := range n {
				if !slices.ContainsFunc(o, func(x any) bool { return reflect.DeepEqual(x, v) }) {
					o = append(o, v)
				}
			}
			return o, nil
		}
	}

	if m.strict && prev != nil && !reflect.DeepEqual(prev, next) {
		return nil, fmt.Errorf("conflict for config path %s", path)
	}
	return next, nil
}
