// Package sprites cuts sprite sheets into separate textures.
package sprites

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/mangoplex/multipacks/internal/modifier"
	"github.com/mangoplex/multipacks/internal/packs"
)

const (
	ID  = "sprites"
	Dir = "multisprites"
)

// Sprite is a rectangle of the source image.
type Sprite struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Sprite) rect() image.Rectangle {
	return image.Rect(s.X, s.Y, s.X+s.Width, s.Y+s.Height)
}

// Sheet is one definition: a source image and the sprites cut from it, by
// suffix.
type Sheet struct {
	Source  packs.ResourcePath
	Sprites map[string]Sprite
	Pack    packs.Identifier
}

// Output returns the path of the sprite with the given suffix:
// "textures/gui/icons.png" with suffix "heart" is "textures/gui/icons_heart.png".
func (s *Sheet) Output(suffix string) packs.ResourcePath {
	dir, file := path.Split(s.Source.Path)
	base := strings.TrimSuffix(file, path.Ext(file))
	return s.Source.WithPath(dir + base + "_" + suffix + ".png")
}

type definition struct {
	Source  string            `json:"source"`
	Sprites map[string]Sprite `json:"sprites"`
}

type Modifier struct {
	Sheets map[packs.ResourcePath]*Sheet
}

func Factory() modifier.Factory {
	return modifier.Factory{ID: ID, New: func() modifier.Modifier { return New() }}
}

func New() *Modifier {
	return &Modifier{Sheets: make(map[packs.ResourcePath]*Sheet)}
}

func (*Modifier) ID() string { return ID }

func (*Modifier) Claims(p packs.ResourcePath) bool {
	return modifier.IsDefinition(p, Dir)
}

func (m *Modifier) Visit(pack *packs.Pack, assets modifier.Assets) error {
	seen := make(map[packs.ResourcePath]packs.ResourcePath, len(assets))
	for _, p := range assets.Paths() {
		key := p.WithPath(p.Name(Dir))
		if other, ok := seen[key]; ok {
			return fmt.Errorf("sprite sheet %s is defined by both %s and %s", key, other, p)
		}
		seen[key] = p

		var def definition
		if err := modifier.Decode(p, assets[p], &def); err != nil {
			return err
		}
		if def.Source == "" {
			return fmt.Errorf("%s: source is required", p)
		}
		src, err := packs.ParseResourcePathIn(def.Source, p.Namespace)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		for suffix, s := range def.Sprites {
			if suffix == "" || strings.Contains(suffix, "/") {
				return fmt.Errorf("%s: invalid sprite suffix %q", p, suffix)
			}
			if s.Width <= 0 || s.Height <= 0 {
				return fmt.Errorf("%s: sprite %q has an empty size", p, suffix)
			}
		}

		m.Sheets[key] = &Sheet{Source: src, Sprites: def.Sprites, Pack: pack.ID}
	}
	return nil
}

func (m *Modifier) Finalize(env *modifier.Env) error {
	for _, k := range packs.SortedPaths(m.Sheets) {
		sheet := m.Sheets[k]

		bs, ok := env.Asset(sheet.Source)
		if !ok {
			return fmt.Errorf("sprite sheet %s: source %s not found", k, sheet.Source)
		}
		src, err := png.Decode(bytes.NewReader(bs))
		if err != nil {
			return fmt.Errorf("sprite sheet %s: decode %s: %w", k, sheet.Source, err)
		}

		for _, suffix := range slices.Sorted(maps.Keys(sheet.Sprites)) {
			out, err := cut(src, sheet.Sprites[suffix])
			if err != nil {
				return fmt.Errorf("sprite sheet %s: sprite %q: %w", k, suffix, err)
			}
			if err := env.Emit(sheet.Output(suffix), out); err != nil {
				return err
			}
		}
		env.Log.Debugf("%d sprites cut from %s", len(sheet.Sprites), sheet.Source)
	}
	return nil
}

// cut copies the region of s out of src into a new PNG.
func cut(src image.Image, s Sprite) ([]byte, error) {
	r := s.rect().Add(src.Bounds().Min)
	if !r.In(src.Bounds()) {
		return nil, fmt.Errorf("rectangle %v is outside of the %dx%d image", s.rect(), src.Bounds().Dx(), src.Bounds().Dy())
	}

	dst := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
