// Package glyphs maps glyph definitions to private use characters of the
// default font.
package glyphs

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/mangoplex/multipacks/internal/modifier"
	"github.com/mangoplex/multipacks/internal/packs"
)

const (
	ID  = "glyphs"
	Dir = "glyphs"

	// FirstChar is the first character handed out to glyphs without an
	// explicit one: the start of the Unicode private use area.
	FirstChar = '\uE000'

	defaultHeight = 8
	defaultAscent = 7
)

// FontPath is the font the glyph providers are added to.
var FontPath = packs.NewResourcePath("minecraft", "font/default.json")

// Glyph is a single-character bitmap. Char is assigned at finalize unless the
// definition sets it.
type Glyph struct {
	Texture packs.ResourcePath
	Height  int
	Ascent  int
	Char    rune
	Pack    packs.Identifier
}

type definition struct {
	Texture string `json:"texture"`
	Height  int    `json:"height,omitempty"`
	Ascent  int    `json:"ascent,omitempty"`
	Char    string `json:"char,omitempty"`
}

type Modifier struct {
	// Glyphs is keyed by (namespace, name), the name being the definition
	// path below glyphs/ without extension.
	Glyphs map[packs.ResourcePath]*Glyph
}

func Factory() modifier.Factory {
	return modifier.Factory{ID: ID, New: func() modifier.Modifier { return New() }}
}

func New() *Modifier {
	return &Modifier{Glyphs: make(map[packs.ResourcePath]*Glyph)}
}

func (*Modifier) ID() string { return ID }

func (*Modifier) Claims(p packs.ResourcePath) bool {
	return modifier.IsDefinition(p, Dir)
}

// Visit records the glyphs of pack. A glyph of a later pack replaces the one
// with the same key.
func (m *Modifier) Visit(pack *packs.Pack, assets modifier.Assets) error {
	seen := make(map[packs.ResourcePath]packs.ResourcePath, len(assets))
	for _, p := range assets.Paths() {
		key := p.WithPath(p.Name(Dir))
		if other, ok := seen[key]; ok {
			return fmt.Errorf("glyph %s is defined by both %s and %s", key, other, p)
		}
		seen[key] = p

		var def definition
		if err := modifier.Decode(p, assets[p], &def); err != nil {
			return err
		}
		g, err := def.glyph(p)
		if err != nil {
			return err
		}
		g.Pack = pack.ID
		m.Glyphs[key] = g
	}
	return nil
}

func (def definition) glyph(p packs.ResourcePath) (*Glyph, error) {
	if def.Texture == "" {
		return nil, fmt.Errorf("%s: texture is required", p)
	}
	tex, err := packs.ParseResourcePathIn(def.Texture, p.Namespace)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}

	g := &Glyph{Texture: tex, Height: def.Height, Ascent: def.Ascent}
	if g.Height == 0 {
		g.Height = defaultHeight
	}
	if g.Ascent == 0 {
		g.Ascent = defaultAscent
	}
	if g.Ascent > g.Height {
		return nil, fmt.Errorf("%s: ascent %d is larger than height %d", p, g.Ascent, g.Height)
	}

	if def.Char != "" {
		r, size := utf8.DecodeRuneInString(def.Char)
		if r == utf8.RuneError || size != len(def.Char) {
			return nil, fmt.Errorf("%s: char must be a single character, got %q", p, def.Char)
		}
		g.Char = r
	}
	return g, nil
}

type provider struct {
	Type   string   `json:"type"`
	File   string   `json:"file"`
	Height int      `json:"height"`
	Ascent int      `json:"ascent"`
	Chars  []string `json:"chars"`
}

// Finalize assigns the missing characters in key order and adds one bitmap
// provider per glyph to the default font.
func (m *Modifier) Finalize(env *modifier.Env) error {
	if len(m.Glyphs) == 0 {
		return nil
	}

	keys := packs.SortedPaths(m.Glyphs)

	used := make(map[rune]packs.ResourcePath, len(keys))
	for _, k := range keys {
		g := m.Glyphs[k]
		if g.Char == 0 {
			continue
		}
		if other, ok := used[g.Char]; ok {
			return fmt.Errorf("glyphs %s and %s both use character %U", other, k, g.Char)
		}
		used[g.Char] = k
	}

	next := FirstChar
	for _, k := range keys {
		g := m.Glyphs[k]
		if g.Char != 0 {
			continue
		}
		for {
			if _, ok := used[next]; !ok {
				break
			}
			next++
		}
		g.Char = next
		used[next] = k
		next++
	}

	font := map[string]any{}
	if bs, ok := env.Asset(FontPath); ok {
		if err := json.Unmarshal(bs, &font); err != nil {
			return fmt.Errorf("%s: %w", FontPath, err)
		}
	}
	providers, _ := font["providers"].([]any)
	for _, k := range keys {
		g := m.Glyphs[k]
		providers = append(providers, provider{
			Type:   "bitmap",
			File:   g.Texture.String(),
			Height: g.Height,
			Ascent: g.Ascent,
			Chars:  []string{string(g.Char)},
		})
	}
	font["providers"] = providers

	bs, err := json.MarshalIndent(font, "", "  ")
	if err != nil {
		return err
	}
	env.Log.Debugf("%d glyphs added to %s", len(keys), FontPath)
	return env.Emit(FontPath, bs)
}
