package packs

import (
	"cmp"
	"fmt"
	"path"
	"strings"
)

// AssetsDir is the top-level directory holding assets in packs and artifacts.
const AssetsDir = "assets"

// ResourcePath is a fully-qualified key into the merged asset tree.
type ResourcePath struct {
	Namespace string
	Path      string
}

func NewResourcePath(namespace, p string) ResourcePath {
	return ResourcePath{Namespace: namespace, Path: p}
}

// ParseResourcePath parses "namespace:path". Without a namespace, "minecraft"
// is assumed, as the game does.
func ParseResourcePath(s string) (ResourcePath, error) {
	return ParseResourcePathIn(s, "minecraft")
}

func MustParseResourcePath(s string) ResourcePath {
	r, err := ParseResourcePath(s)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseResourcePathIn is ParseResourcePath with a different default namespace.
func ParseResourcePathIn(s, namespace string) (ResourcePath, error) {
	ns, p, found := strings.Cut(s, ":")
	if !found {
		ns, p = namespace, ns
	}
	if ns == "" || p == "" || !validPath(p) {
		return ResourcePath{}, fmt.Errorf("invalid resource path %q", s)
	}
	return ResourcePath{Namespace: ns, Path: p}, nil
}

// FromFilePath maps "assets/<namespace>/<path>" back to a ResourcePath.
func FromFilePath(name string) (ResourcePath, bool) {
	rest, ok := strings.CutPrefix(name, AssetsDir+"/")
	if !ok {
		return ResourcePath{}, false
	}
	ns, p, found := strings.Cut(rest, "/")
	if !found || ns == "" || p == "" {
		return ResourcePath{}, false
	}
	return ResourcePath{Namespace: ns, Path: p}, true
}

// FilePath is the slash-separated location of the resource inside a pack or
// an artifact.
func (r ResourcePath) FilePath() string {
	return path.Join(AssetsDir, r.Namespace, r.Path)
}

func (r ResourcePath) String() string {
	return r.Namespace + ":" + r.Path
}

// Ext returns the extension of the path, including the dot.
func (r ResourcePath) Ext() string {
	return path.Ext(r.Path)
}

// In reports whether the resource lives under the folder dir of its namespace.
func (r ResourcePath) In(dir string) bool {
	return strings.HasPrefix(r.Path, strings.TrimSuffix(dir, "/")+"/")
}

// WithPath returns a resource path in the same namespace.
func (r ResourcePath) WithPath(p string) ResourcePath {
	return ResourcePath{Namespace: r.Namespace, Path: p}
}

// Name returns the path below dir without its extension: "glyphs/ui/heart.json"
// in "glyphs" is "ui/heart".
func (r ResourcePath) Name(dir string) string {
	name := strings.TrimPrefix(r.Path, strings.TrimSuffix(dir, "/")+"/")
	return strings.TrimSuffix(name, path.Ext(name))
}

func (r ResourcePath) Compare(other ResourcePath) int {
	if x := cmp.Compare(r.Namespace, other.Namespace); x != 0 {
		return x
	}
	return cmp.Compare(r.Path, other.Path)
}

func validPath(p string) bool {
	return p == path.Clean(p) && !strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "../") && p != ".."
}
