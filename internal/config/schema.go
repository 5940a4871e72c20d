package config

import (
	"encoding/json"

	"github.com/swaggest/jsonschema-go"

	ext_config "github.com/mangoplex/multipacks/config"
)

var rootSchema = ext_config.MustCompile("schema.json")

// ReflectSchema generates the configuration JSON schema from Root.
func ReflectSchema() ([]byte, error) {
	s, err := (&jsonschema.Reflector{}).Reflect(Root{})
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

func (*SecretRef) PrepareJSONSchema(schema *jsonschema.Schema) error {
	schema.Type = nil
	schema.AddType(jsonschema.String)
	schema.Properties = nil
	return nil
}

// A host may be listed without settings ("packs.example.com:" maps to null).
func (*Host) PrepareJSONSchema(schema *jsonschema.Schema) error {
	schema.AddType(jsonschema.Null)
	return nil
}
