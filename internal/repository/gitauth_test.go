package repository

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net/http"
	"strings"
	"testing"

	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/ssh"

	"github.com/mangoplex/multipacks/internal/config"
)

func TestGitAuth(t *testing.T) {
	root, err := config.Parse([]byte(`
http:
  git.example.com:
    credentials: token
  mirror.example.com:
    credentials: basic
  public.example.com:
  bad.example.com:
    credentials: aws
secrets:
  token:
    type: token_auth
    token: t0k3n
  basic:
    type: basic_auth
    username: bob
    password: secret
    headers:
      - "X-Tenant: blue"
  aws:
    type: aws_auth
    access_key_id: a
    secret_access_key: b
`))
	if err != nil {
		t.Fatal(err)
	}

	auth := GitAuth(t.Context(), root)

	tests := []struct {
		url     string
		headers map[string]string
		none    bool
		err     string
	}{
		{
			url:     "https://git.example.com/packs.git",
			headers: map[string]string{"Authorization": "Bearer t0k3n"},
		},
		{
			url:     "https://mirror.example.com/packs.git",
			headers: map[string]string{"Authorization": "Basic Ym9iOnNlY3JldA==", "X-Tenant": "blue"},
		},
		{
			url:  "https://public.example.com/packs.git",
			none: true,
		},
		{
			url:  "https://unknown.example.com/packs.git",
			none: true,
		},
		{
			url: "https://bad.example.com/packs.git",
			err: "unsupported authentication type for git: config.SecretAWS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			a, err := auth(tt.url)
			if tt.err != "" {
				if err == nil || err.Error() != tt.err {
					t.Fatalf("expected error %q, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if tt.none {
				if a != nil {
					t.Fatalf("expected no credentials, got %v", a)
				}
				return
			}

			setter, ok := a.(interface{ SetAuth(*http.Request) })
			if !ok {
				t.Fatalf("expected an HTTP auth method, got %T", a)
			}
			req, err := http.NewRequest(http.MethodGet, tt.url, nil)
			if err != nil {
				t.Fatal(err)
			}
			setter.SetAuth(req)

			got := map[string]string{}
			for k := range req.Header {
				got[k] = req.Header.Get(k)
			}
			if diff := cmp.Diff(tt.headers, got); diff != "" {
				t.Fatalf("unexpected headers (-want,+got):\n%s", diff)
			}
		})
	}
}

func TestBasicAuthString(t *testing.T) {
	a := &basicAuth{Username: "bob", Password: "secret", Headers: []string{"X-Tenant: blue"}}
	if got := a.String(); strings.Contains(got, "secret") {
		t.Fatalf("expected password to be masked: %s", got)
	}
}

func TestSSHAuth(t *testing.T) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKey(key, "")
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatal(err)
	}
	fingerprint := ssh.FingerprintSHA256(signer.PublicKey())

	a, err := authFromTyped(config.SecretSSHKey{
		Key:          string(pem.EncodeToMemory(block)),
		Fingerprints: []string{fingerprint},
	})
	if err != nil {
		t.Fatal(err)
	}

	keys, ok := a.(*gitssh.PublicKeys)
	if !ok {
		t.Fatalf("expected public keys auth, got %T", a)
	}
	if keys.User != "git" {
		t.Fatalf("expected user git, got %q", keys.User)
	}

	if err := keys.HostKeyCallback("example.com:22", nil, signer.PublicKey()); err != nil {
		t.Fatalf("expected known fingerprint to be accepted: %v", err)
	}

	_, other, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	otherSigner, err := ssh.NewSignerFromKey(other)
	if err != nil {
		t.Fatal(err)
	}
	if err := keys.HostKeyCallback("example.com:22", nil, otherSigner.PublicKey()); err == nil {
		t.Fatal("expected unknown fingerprint to be rejected")
	}

	if _, err := authFromTyped(config.SecretSSHKey{Key: "not a key", Fingerprints: []string{fingerprint}}); err == nil {
		t.Fatal("expected invalid key to be rejected")
	}
}
