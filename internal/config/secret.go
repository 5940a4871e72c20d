package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/swaggest/jsonschema-go"
)

// Host keys of the public git forges, accepted when an ssh_key secret lists
// no fingerprints of its own.
var defaultFingerprints = []string{
	"SHA256:uNiVztksCsDhcc0u9e8BujQXVUpKZIDTMczCvj3tD2s", // github.com
	"SHA256:p2QAMXNIC1TJYWeIOttrVc98/R1BUFWu3/LiyKgUfQM", // github.com
	"SHA256:+DiY3wvvV6TuJJhbpZisF/zLDA0zPMSvHdkr4UvCOqU", // github.com
	"SHA256:zzXQOXSRBEiUtuE8AikJYKwbHaxvSc0ojez9YXaGp1A", // bitbucket.org
	"SHA256:ohD8VZEXGWo6Ez8GSEJQ9WpafgLFsOfLOtGGQCQo6Og", // dev.azure.com
}

// Secret is a named set of credentials. Hosts and storage backends point at
// secrets by name; the "type" key selects which other keys are read:
//
//	packs_token:
//	  type: token_auth
//	  token: ${PACKS_TOKEN}
//
// String values are expanded against the environment when the secret is used,
// not when the configuration is parsed.
//
//   - "aws_auth": "access_key_id", "secret_access_key", optional "session_token".
//   - "azure_auth": "account_name" and "account_key".
//   - "basic_auth": "username", "password" and optional "headers" ("Name: value").
//   - "gcp_auth": "api_key" or "credentials" (service account JSON).
//   - "ssh_key": "key", optional "passphrase" and "fingerprints".
//   - "token_auth": "token", sent as a bearer token.
type Secret struct {
	Name  string         `json:"-"`
	Value map[string]any `json:"-"`
}

// secretKinds maps the "type" key to a decoder for the typed value.
var secretKinds = map[string]func(map[string]any) (any, error){
	"aws_auth":   decodeSecret[SecretAWS],
	"azure_auth": decodeSecret[SecretAzure],
	"basic_auth": decodeSecret[SecretBasicAuth],
	"gcp_auth":   decodeSecret[SecretGCP],
	"ssh_key":    decodeSecret[SecretSSHKey],
	"token_auth": decodeSecret[SecretTokenAuth],
}

func (s *Secret) Ref() *SecretRef {
	return &SecretRef{Name: s.Name, value: s}
}

func (*Secret) PrepareJSONSchema(schema *jsonschema.Schema) error {
	schema.Type = nil
	schema.AddType(jsonschema.Object)
	return nil
}

func (s *Secret) MarshalYAML() (any, error) {
	if s.Value == nil {
		return map[string]any{}, nil
	}
	return s.Value, nil
}

func (s *Secret) MarshalJSON() ([]byte, error) {
	v, _ := s.MarshalYAML()
	return json.Marshal(v)
}

func (s *Secret) UnmarshalYAML(bs []byte) error {
	if err := yaml.Unmarshal(bs, &s.Value); err != nil {
		return fmt.Errorf("secret: expected a mapping: %w", err)
	}
	return nil
}

func (s *Secret) UnmarshalJSON(bs []byte) error {
	return json.Unmarshal(bs, &s.Value)
}

func (s *Secret) Equal(other *Secret) bool {
	return fastEqual(s, other, func(s, other *Secret) bool {
		return s.Name == other.Name && reflect.DeepEqual(s.Value, other.Value)
	})
}

// Typed expands the secret and decodes it into one of the Secret* value
// types, chosen by its "type" key.
func (s *Secret) Typed(context.Context) (any, error) {
	if len(s.Value) == 0 {
		return nil, fmt.Errorf("secret %q is not configured", s.Name)
	}

	m := maps.Clone(s.Value)
	for k, v := range m {
		if str, ok := v.(string); ok {
			m[k] = os.ExpandEnv(str)
		}
	}

	kind, _ := m["type"].(string)
	dec, ok := secretKinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown secret type %q", s.Value["type"])
	}
	return dec(m)
}

type SecretAWS struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
}

func (v *SecretAWS) check() error {
	if v.AccessKeyID == "" || v.SecretAccessKey == "" {
		return errors.New("missing access_key_id or secret_access_key in AWS secret")
	}
	return nil
}

type SecretGCP struct {
	APIKey      string `json:"api_key"`
	Credentials string `json:"credentials"` // service account JSON
}

func (v *SecretGCP) check() error {
	if v.APIKey == "" && v.Credentials == "" {
		return errors.New("missing api_key or credentials in GCP secret")
	}
	return nil
}

type SecretAzure struct {
	AccountName string `json:"account_name"`
	AccountKey  string `json:"account_key"`
}

func (v *SecretAzure) check() error {
	if v.AccountName == "" || v.AccountKey == "" {
		return errors.New("missing account_name or account_key in Azure secret")
	}
	return nil
}

type SecretSSHKey struct {
	Key          string   `json:"key"` // PEM
	Passphrase   string   `json:"passphrase,omitempty"`
	Fingerprints []string `json:"fingerprints,omitempty"`
}

func (v *SecretSSHKey) check() error {
	if v.Key == "" {
		return errors.New("missing key in SSH secret")
	}
	if len(v.Fingerprints) == 0 {
		v.Fingerprints = defaultFingerprints
	}
	return nil
}

type SecretBasicAuth struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Headers  []string `json:"headers,omitempty"`
}

func (v *SecretBasicAuth) check() error {
	if v.Username == "" {
		return errors.New("missing username in basic auth secret")
	}
	return nil
}

type SecretTokenAuth struct {
	Token string `json:"token"`
}

func (v *SecretTokenAuth) check() error {
	if v.Token == "" {
		return errors.New("missing token in token auth secret")
	}
	return nil
}

func decodeSecret[T any, PT interface {
	*T
	check() error
}](m map[string]any) (any, error) {
	var value T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &value})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, err
	}
	if err := PT(&value).check(); err != nil {
		return nil, err
	}
	return value, nil
}
