package bundler

import (
	"fmt"
	"strings"

	"github.com/mangoplex/multipacks/internal/modifier/glyphs"
	"github.com/mangoplex/multipacks/internal/modifier/models"
	"github.com/mangoplex/multipacks/internal/modifier/patches"
	"github.com/mangoplex/multipacks/internal/modifier/sprites"
)

// Ignore names a built-in feature a bundle can be built without.
type Ignore int

const (
	IgnoreGlyphs Ignore = iota
	IgnoreModels
	IgnoreSprites
	IgnorePatches
)

// IgnoreNames maps every feature to its accepted names, for flag parsing.
var IgnoreNames = map[Ignore][]string{
	IgnoreGlyphs:  {glyphs.ID},
	IgnoreModels:  {models.ID},
	IgnoreSprites: {sprites.ID},
	IgnorePatches: {patches.ID},
}

// UnknownIgnoreError reports a feature name that is not a built-in modifier.
type UnknownIgnoreError struct {
	Name string
}

func (err *UnknownIgnoreError) Error() string {
	return fmt.Sprintf("unknown feature %q, must be one of %q, %q, %q, %q", err.Name, glyphs.ID, models.ID, sprites.ID, patches.ID)
}

// ParseIgnore parses a feature name, ignoring case.
func ParseIgnore(name string) (Ignore, error) {
	for i, names := range IgnoreNames {
		for _, n := range names {
			if strings.EqualFold(n, strings.TrimSpace(name)) {
				return i, nil
			}
		}
	}
	return 0, &UnknownIgnoreError{Name: name}
}

// ModifierID is the ID of the modifier the feature suppresses.
func (i Ignore) ModifierID() string {
	return IgnoreNames[i][0]
}

func (i Ignore) String() string {
	if names, ok := IgnoreNames[i]; ok {
		return names[0]
	}
	return fmt.Sprintf("Ignore(%d)", int(i))
}
