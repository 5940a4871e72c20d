package packs

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/swaggest/jsonschema-go"

	ext_config "github.com/mangoplex/multipacks/config"
)

// ManifestFile is the name of the manifest at the root of every pack.
const ManifestFile = "pack.yaml"

// Manifest describes a pack: its identity, its dependencies and the files
// that are not part of it.
type Manifest struct {
	ID           Identifier
	Version      Version
	Name         string
	Description  string
	Dependencies []DependencyFilter
	Exclude      []string
}

// manifestDoc is the on-disk form of a Manifest.
type manifestDoc struct {
	ID           string   `json:"id" required:"true"`
	Version      string   `json:"version" required:"true"`
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Exclude      []string `json:"exclude,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// ManifestError reports an invalid or unreadable pack manifest.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("invalid pack manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

var manifestSchema = ext_config.MustCompile("manifest.schema.json")

// ReflectManifestSchema generates the manifest JSON schema from its Go form.
func ReflectManifestSchema() ([]byte, error) {
	s, err := (&jsonschema.Reflector{}).Reflect(manifestDoc{})
	if err != nil {
		return nil, err
	}

	return json.MarshalIndent(s, "", "  ")
}

// ParseManifest validates bs against the manifest schema and decodes it.
func ParseManifest(bs []byte) (*Manifest, error) {
	var doc any
	if err := yaml.Unmarshal(bs, &doc); err != nil {
		return nil, err
	}
	if err := manifestSchema.Validate(doc); err != nil {
		return nil, err
	}

	var raw manifestDoc
	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}

	id, err := ParseIdentifier(raw.ID)
	if err != nil {
		return nil, err
	}
	v, err := ParseVersion(raw.Version)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		ID:          id,
		Version:     v,
		Name:        raw.Name,
		Description: raw.Description,
		Exclude:     raw.Exclude,
	}
	for _, d := range raw.Dependencies {
		f, err := ParseFilter(d)
		if err != nil {
			return nil, err
		}
		if f.ID == id {
			return nil, fmt.Errorf("pack %s depends on itself", id)
		}
		m.Dependencies = append(m.Dependencies, f)
	}

	return m, nil
}

// Marshal renders the manifest as pack.yaml content.
func (m *Manifest) Marshal() ([]byte, error) {
	raw := manifestDoc{
		ID:          m.ID.String(),
		Version:     m.Version.String(),
		Name:        m.Name,
		Description: m.Description,
		Exclude:     m.Exclude,
	}
	for _, f := range m.Dependencies {
		raw.Dependencies = append(raw.Dependencies, f.String())
	}

	return yaml.Marshal(raw)
}
