package modifier

import (
	"fmt"
	"slices"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"

	"github.com/mangoplex/multipacks/internal/packs"
)

// DefinitionExts are the extensions of definition files modifiers read.
var DefinitionExts = []string{".json", ".yml", ".yaml"}

// IsDefinition reports whether p is a definition file in dir.
func IsDefinition(p packs.ResourcePath, dir string) bool {
	return p.In(dir) && slices.Contains(DefinitionExts, p.Ext())
}

// Decode reads a JSON or YAML definition into out, a pointer to a struct
// with json tags. Unknown keys are an error.
func Decode(p packs.ResourcePath, data []byte, out any) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: false,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(doc); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	return nil
}
