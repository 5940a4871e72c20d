//go:generate go run ../build/gen-config-schema.go schema.json manifest.schema.json

package config

import (
	"bytes"
	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed "schema.json"
var schema []byte

//go:embed "manifest.schema.json"
var manifestSchema []byte

// Schema is the JSON schema of the multipacks configuration file.
func Schema() []byte {
	return schema
}

// ManifestSchema is the JSON schema of a pack's pack.yaml.
func ManifestSchema() []byte {
	return manifestSchema
}

// MustCompile compiles one of the embedded schemas, by file name, for
// validating decoded YAML or JSON documents.
func MustCompile(name string) *jsonschema.Schema {
	docs := map[string][]byte{
		"schema.json":          schema,
		"manifest.schema.json": manifestSchema,
	}

	js, err := jsonschema.UnmarshalJSON(bytes.NewReader(docs[name]))
	if err != nil {
		panic(err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource(name, js); err != nil {
		panic(err)
	}

	return compiler.MustCompile(name)
}
