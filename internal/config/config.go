package config

import (
	"cmp"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/goccy/go-yaml"
)

// Configuration data structures of the multipacks CLI.

// Root is the top-level configuration structure.
type Root struct {
	// Repositories lists repository tokens in priority order, for example
	// "file:./packs", "https://packs.example.com" or "git+https://example.com/packs.git#main".
	Repositories  []string         `json:"repositories,omitempty"`
	CacheDir      string           `json:"cache_dir,omitempty"`
	TargetVersion string           `json:"target_version,omitempty" pattern:"^v?[0-9]+(\\.[0-9]+){0,2}$"`
	Ignore        StringSet        `json:"ignore,omitempty"`
	ExcludedFiles StringSet        `json:"excluded_files,omitempty"`
	HTTP          map[string]*Host `json:"http,omitempty"`
	Storage       *ObjectStorage   `json:"storage,omitempty"`
	Revision      string           `json:"revision,omitempty"` // Revision recorded with published artifacts, see ResolveRevision.
	Secrets       map[string]*Secret `json:"secrets,omitempty"` // Schema validation overrides Secret to object type.

	_ struct{} `additionalProperties:"false"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for the Root struct.
// It is used to inject the secret store into each secret reference so that
// internal callers can resolve secret values as needed.
func (r *Root) UnmarshalYAML(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawRoot

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw) // Assign the unmarshaled data back to the original struct
	return r.unmarshal(r)
}

func (r *Root) UnmarshalJSON(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalJSON by type aliasing
	var raw rawRoot

	if err := json.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw) // Assign the unmarshaled data back to the original struct
	return r.unmarshal(r)
}

func (*Root) unmarshal(raw *Root) error {
	for name := range raw.Secrets {
		raw.Secrets[name] = cmp.Or(raw.Secrets[name], &Secret{})
		raw.Secrets[name].Name = name
	}

	for name := range raw.HTTP {
		raw.HTTP[name] = cmp.Or(raw.HTTP[name], &Host{})
		raw.HTTP[name].Name = name
		raw.HTTP[name].Credentials.bind(raw.Secrets)
	}

	if raw.Storage != nil {
		for _, b := range raw.Storage.backends() {
			b.credentials().bind(raw.Secrets)
		}
	}

	return raw.validate()
}

func (r *Root) validate() error {
	for _, pattern := range r.ExcludedFiles {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("failed to compile excluded file pattern %q: %w", pattern, err)
		}
	}

	if r.Storage != nil {
		return r.Storage.validate()
	}
	return nil
}

func (r *Root) SortedHosts() iter.Seq2[int, *Host] {
	return iterator(r.HTTP, func(h *Host) string { return h.Name })
}

func (r *Root) SortedSecrets() iter.Seq2[int, *Secret] {
	return iterator(r.Secrets, func(s *Secret) string { return s.Name })
}

// Host returns the settings of the given host name, if any.
func (r *Root) Host(name string) (*Host, bool) {
	h, ok := r.HTTP[strings.ToLower(name)]
	return h, ok
}

func iterator[V any](m map[string]V, name func(V) string) func(func(int, V) bool) {
	return func(yield func(int, V) bool) {
		values := slices.Collect(maps.Values(m))
		slices.SortFunc(values, func(a, b V) int {
			return strings.Compare(name(a), name(b))
		})
		for i, v := range values {
			if !yield(i, v) {
				return
			}
		}
	}
}

func Validate(data []byte) error {
	var config any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}

	return rootSchema.Validate(config)
}

// Host holds the settings used for requests to one host, by HTTP and git
// repositories alike.
type Host struct {
	Name        string            `json:"-"`
	Headers     map[string]string `json:"headers,omitempty"`     // Values may refer to environment variables, ${VAR}.
	Credentials *SecretRef        `json:"credentials,omitempty"` // basic_auth, token_auth or ssh_key. JSON schema validation overrides this to string type.

	_ struct{} `additionalProperties:"false"`
}

// ResolveHeaders returns the static headers of the host, with those implied
// by an HTTP credential.
func (h *Host) ResolveHeaders(ctx context.Context) (map[string]string, error) {
	headers := make(map[string]string, len(h.Headers)+1)
	for k, v := range h.Headers {
		headers[k] = os.ExpandEnv(v)
	}
	if h.Credentials == nil {
		return headers, nil
	}

	value, err := h.Credentials.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("host %s: %w", h.Name, err)
	}

	switch value := value.(type) {
	case SecretBasicAuth:
		token := base64.StdEncoding.EncodeToString([]byte(value.Username + ":" + value.Password))
		headers["Authorization"] = "Basic " + token
		for _, header := range value.Headers {
			k, v, ok := strings.Cut(header, ":")
			if !ok {
				return nil, fmt.Errorf("host %s: invalid header %q", h.Name, header)
			}
			headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	case SecretTokenAuth:
		headers["Authorization"] = "Bearer " + value.Token
	case SecretSSHKey:
		// git over ssh only
	default:
		return nil, fmt.Errorf("host %s: unsupported credentials type %T", h.Name, value)
	}
	return headers, nil
}

func (h *Host) Equal(other *Host) bool {
	return fastEqual(h, other, func(h, other *Host) bool {
		return h.Name == other.Name &&
			maps.Equal(h.Headers, other.Headers) &&
			h.Credentials.Equal(other.Credentials)
	})
}

type StringSet []string

func (a StringSet) Equal(b StringSet) bool {
	return slices.Equal(slices.Sorted(slices.Values(a)), slices.Sorted(slices.Values(b)))
}

func (a StringSet) Add(value string) StringSet {
	i, found := slices.BinarySearch(a, value)
	if found {
		return a
	}

	return slices.Insert(a, i, value)
}

type SecretRef struct {
	Name  string `json:"-"`
	value *Secret
}

func (s *SecretRef) bind(secrets map[string]*Secret) {
	if s != nil {
		s.value = secrets[s.Name]
	}
}

// Resolve retrieves the secret value from the secret store. If the secret is not found, an error is returned.
// If the secret is found, it returns the value as an interface{} which can be further typed as needed.
func (s *SecretRef) Resolve(ctx context.Context) (any, error) {
	if s.value == nil {
		return nil, fmt.Errorf("secret %q not found", s.Name)
	}

	return s.value.Typed(ctx)
}

func (s *SecretRef) MarshalYAML() (any, error) {
	if s.Name == "" {
		return nil, nil
	}
	return s.Name, nil
}

func (s *SecretRef) MarshalJSON() ([]byte, error) {
	v, err := s.MarshalYAML()
	if err != nil {
		return nil, err
	}

	return json.Marshal(v)
}

func (s *SecretRef) UnmarshalYAML(bs []byte) error {
	if err := yaml.Unmarshal(bs, &s.Name); err != nil {
		return fmt.Errorf("expected scalar node: %w", err)
	}
	return nil
}

func (s *SecretRef) UnmarshalJSON(bs []byte) error {
	if err := json.Unmarshal(bs, &s.Name); err != nil {
		return fmt.Errorf("failed to unmarshal SecretRef: %w", err)
	}

	return nil
}

func (s *SecretRef) Equal(other *SecretRef) bool {
	return fastEqual(s, other, func(s, other *SecretRef) bool {
		return s.Name == other.Name && s.value.Equal(other.value)
	})
}

func ParseFile(filename string) (root *Root, err error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return Parse(bs)
}

func Parse(bs []byte) (*Root, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &root, nil
}

func fastEqual[V any](a, b *V, slowEqual func(a, b *V) bool) bool {
	if a == b {
		return true
	}

	if a == nil || b == nil {
		return false
	}

	return slowEqual(a, b)
}
