package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"

	"github.com/mangoplex/multipacks/internal/config"
)

func TestParseSecretResolve(t *testing.T) {

	result, err := config.Parse([]byte(`{
		http: {
			packs.example.com: {
				credentials: secret1
			}
		},
		secrets: {
			secret1: {
				type: basic_auth,
				username: bob,
				password: '${MULTIPACKS_PASSWORD}'
			}
		}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("MULTIPACKS_PASSWORD", "passw0rd")

	host, ok := result.Host("packs.example.com")
	if !ok {
		t.Fatal("expected host")
	}

	value, err := host.Credentials.Resolve(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	exp := config.SecretBasicAuth{
		Username: "bob",
		Password: "passw0rd",
	}

	if diff := cmp.Diff(exp, value); diff != "" {
		t.Fatalf("unexpected secret (-want,+got):\n%s", diff)
	}
}

func TestSecretRefNotFound(t *testing.T) {
	result, err := config.Parse([]byte(`{
		http: {
			packs.example.com: {
				credentials: missing
			}
		}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	_, err = result.HTTP["packs.example.com"].Credentials.Resolve(t.Context())
	if err == nil || err.Error() != `secret "missing" not found` {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSecretTyped(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   any
		err    string
	}{
		{
			name:   "aws",
			secret: `{type: aws_auth, access_key_id: id, secret_access_key: key}`,
			want:   config.SecretAWS{AccessKeyID: "id", SecretAccessKey: "key"},
		},
		{
			name:   "aws missing key",
			secret: `{type: aws_auth, access_key_id: id}`,
			err:    "missing access_key_id or secret_access_key in AWS secret",
		},
		{
			name:   "token",
			secret: `{type: token_auth, token: t0k3n}`,
			want:   config.SecretTokenAuth{Token: "t0k3n"},
		},
		{
			name:   "token missing",
			secret: `{type: token_auth}`,
			err:    "missing token in token auth secret",
		},
		{
			name:   "ssh key with default fingerprints",
			secret: `{type: ssh_key, key: PEM}`,
			want: config.SecretSSHKey{
				Key: "PEM",
				Fingerprints: []string{
					"SHA256:uNiVztksCsDhcc0u9e8BujQXVUpKZIDTMczCvj3tD2s",
					"SHA256:p2QAMXNIC1TJYWeIOttrVc98/R1BUFWu3/LiyKgUfQM",
					"SHA256:+DiY3wvvV6TuJJhbpZisF/zLDA0zPMSvHdkr4UvCOqU",
					"SHA256:zzXQOXSRBEiUtuE8AikJYKwbHaxvSc0ojez9YXaGp1A",
					"SHA256:ohD8VZEXGWo6Ez8GSEJQ9WpafgLFsOfLOtGGQCQo6Og",
				},
			},
		},
		{
			name:   "unknown type",
			secret: `{type: password, password: x}`,
			err:    `unknown secret type "password"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := config.Parse([]byte(`{secrets: {s: ` + tt.secret + `}}`))
			if err != nil {
				t.Fatal(err)
			}

			got, err := root.Secrets["s"].Typed(t.Context())
			if tt.err != "" {
				if err == nil || err.Error() != tt.err {
					t.Fatalf("expected error %q, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected secret (-want,+got):\n%s", diff)
			}
		})
	}
}

func TestResolveHeaders(t *testing.T) {
	t.Setenv("MULTIPACKS_TOKEN", "t0k3n")
	t.Setenv("MULTIPACKS_TENANT", "blue")

	root, err := config.Parse([]byte(`
http:
  packs.example.com:
    headers:
      X-Tenant: ${MULTIPACKS_TENANT}
    credentials: token
  mirror.example.com:
    credentials: basic
  plain.example.com:
secrets:
  token:
    type: token_auth
    token: ${MULTIPACKS_TOKEN}
  basic:
    type: basic_auth
    username: bob
    password: secret
    headers:
      - "X-Extra: 1"
`))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		host string
		want map[string]string
	}{
		{
			host: "packs.example.com",
			want: map[string]string{"X-Tenant": "blue", "Authorization": "Bearer t0k3n"},
		},
		{
			host: "mirror.example.com",
			want: map[string]string{"Authorization": "Basic Ym9iOnNlY3JldA==", "X-Extra": "1"},
		},
		{
			host: "plain.example.com",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			host, ok := root.Host(tt.host)
			if !ok {
				t.Fatalf("host %s not found", tt.host)
			}
			got, err := host.ResolveHeaders(t.Context())
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected headers (-want,+got):\n%s", diff)
			}
		})
	}
}

func TestMarshallingRoundtrip(t *testing.T) {

	cfg, err := config.Parse([]byte(`{
		repositories: ["file:./packs", "https://packs.example.com"],
		target_version: "1.20.1",
		ignore: [sprites],
		excluded_files: ["**/*.xcf", "*.disabled"],
		http: {
			packs.example.com: {
				headers: {X-Tenant: blue},
				credentials: token
			}
		},
		storage: {
			aws: {
				bucket: packs,
				key: dist/pack.zip,
				region: eu-west-1,
				credentials: aws
			}
		},
		secrets: {
			token: {type: token_auth, token: x},
			aws: {type: aws_auth, access_key_id: a, secret_access_key: b}
		}
	}`))

	if err != nil {
		t.Fatal(err)
	}

	bs, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}

	cfg2, err := config.Parse(bs)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(cfg.Repositories, cfg2.Repositories); diff != "" {
		t.Fatalf("repositories differ (-want,+got):\n%s", diff)
	}

	if !cfg.ExcludedFiles.Equal(cfg2.ExcludedFiles) || !cfg.Ignore.Equal(cfg2.Ignore) {
		t.Fatal("expected string sets to be equal")
	}

	if !cfg.HTTP["packs.example.com"].Equal(cfg2.HTTP["packs.example.com"]) {
		t.Fatal("expected hosts to be equal")
	}

	if !cfg.Storage.Equal(cfg2.Storage) {
		t.Fatal("expected storage to be equal")
	}
}

func TestValidateYAML(t *testing.T) {
	{ // A host without settings is allowed
		cfg := []byte(`
http:
  packs.example.com:
`)
		_, err := config.Parse(cfg)
		if err != nil {
			t.Fatal(err)
		}
	}
	{ // These cannot be empty or unknown
		cfg := []byte(`
repository: file:./packs
secrets:
  empty-secret:
`)
		_, err := config.Parse(cfg)
		if err == nil {
			t.Fatal("expected error")
		}
		exp := []string{
			`additional properties 'repository' not allowed`,
			`- at '/secrets/empty-secret': got null, want object`,
		}
		for _, line := range exp {
			if !strings.Contains(err.Error(), line) {
				t.Errorf("expected error with line %q", line)
			}
		}
		if t.Failed() {
			t.Logf("error: %q", err.Error())
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		err    string
	}{
		{
			name:   "bad glob",
			config: `{excluded_files: ["[a-"]}`,
			err:    `failed to compile excluded file pattern "[a-"`,
		},
		{
			name:   "bad target version",
			config: `{target_version: latest}`,
			err:    `/target_version`,
		},
		{
			name:   "empty storage",
			config: `{storage: {}}`,
			err:    "storage: exactly one of aws, gcp, azure or filesystem is required, got 0",
		},
		{
			name:   "two storages",
			config: `{storage: {filesystem: {path: out.zip}, gcp: {bucket: b, object: o}}}`,
			err:    "storage: exactly one of aws, gcp, azure or filesystem is required, got 2",
		},
		{
			name:   "s3 without key",
			config: `{storage: {aws: {bucket: b, key: ""}}}`,
			err:    "amazon s3 key is required",
		},
		{
			name:   "azure without container",
			config: `{storage: {azure: {account_url: "https://a.blob.core.windows.net", container: "", path: p}}}`,
			err:    "azure blob storage container is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.config))
			if err == nil || !strings.Contains(err.Error(), tt.err) {
				t.Fatalf("expected error containing %q, got %v", tt.err, err)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	base := write("base.yaml", `
repositories:
  - file:./packs
target_version: 1.20.1
http:
  packs.example.com:
    headers:
      X-Tenant: blue
`)
	write("conf.d/10-extra.yaml", `
repositories:
  - file:./packs
  - https://packs.example.com
http:
  packs.example.com:
    credentials: token
secrets:
  token:
    type: token_auth
    token: x
`)
	override := write("override.yaml", `
target_version: 1.21.4
`)

	bs, err := config.Merge([]string{base, filepath.Join(dir, "conf.d")}, false)
	if err != nil {
		t.Fatal(err)
	}

	root, err := config.Parse(bs)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"file:./packs", "https://packs.example.com"}, root.Repositories); diff != "" {
		t.Fatalf("unexpected repositories (-want,+got):\n%s", diff)
	}

	host := root.HTTP["packs.example.com"]
	if host.Headers["X-Tenant"] != "blue" || host.Credentials == nil || host.Credentials.Name != "token" {
		t.Fatalf("expected merged host, got %+v", host)
	}

	bs, err = config.Merge([]string{base, override}, false)
	if err != nil {
		t.Fatal(err)
	}
	root, err = config.Parse(bs)
	if err != nil {
		t.Fatal(err)
	}
	if root.TargetVersion != "1.21.4" {
		t.Fatalf("expected later file to win, got %q", root.TargetVersion)
	}

	_, err = config.Merge([]string{base, override}, true)
	if err == nil || err.Error() != "conflict for config path /target_version" {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv("HOME", "/home/steve")
	t.Setenv("MULTIPACKS_HOME", "")
	os.Unsetenv("MULTIPACKS_HOME")
	t.Setenv("MULTIPACKS_CACHE_DIR", "")
	os.Unsetenv("MULTIPACKS_CACHE_DIR")
	t.Setenv("MULTIPACKS_LOG_LEVEL", "debug")

	e, err := config.ParseEnv()
	if err != nil {
		t.Fatal(err)
	}

	exp := &config.Environment{Home: "/home/steve/.multipacks", LogLevel: "debug"}
	if diff := cmp.Diff(exp, e); diff != "" {
		t.Fatalf("unexpected environment (-want,+got):\n%s", diff)
	}

	if got := e.ConfigFile(); got != "/home/steve/.multipacks/config.yaml" {
		t.Fatalf("unexpected config file %q", got)
	}
	if got := e.Cache(nil); got != "/home/steve/.multipacks/cache" {
		t.Fatalf("unexpected cache dir %q", got)
	}
	if got := e.Cache(&config.Root{CacheDir: "/tmp/c"}); got != "/tmp/c" {
		t.Fatalf("unexpected cache dir %q", got)
	}

	t.Setenv("MULTIPACKS_CACHE_DIR", "/var/cache/multipacks")
	e, err = config.ParseEnv()
	if err != nil {
		t.Fatal(err)
	}
	if got := e.Cache(&config.Root{CacheDir: "/tmp/c"}); got != "/var/cache/multipacks" {
		t.Fatalf("unexpected cache dir %q", got)
	}
}
