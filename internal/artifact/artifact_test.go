package artifact_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mangoplex/multipacks/internal/artifact"
	"github.com/mangoplex/multipacks/internal/bundler"
	mpfs "github.com/mangoplex/multipacks/internal/fs"
	"github.com/mangoplex/multipacks/internal/modifier"
	"github.com/mangoplex/multipacks/internal/packs"
)

func result(t *testing.T, target string) *bundler.Result {
	t.Helper()
	root, err := packs.Load(mpfs.MapFS(map[string]string{
		"pack.yaml": "id: sample/root\nversion: 1.0.0\nname: Sample\n",
	}), "root")
	if err != nil {
		t.Fatal(err)
	}
	return &bundler.Result{
		Root:   root,
		Target: packs.MustParseVersion(target),
		Assets: modifier.Assets{
			packs.MustParseResourcePath("minecraft:textures/item/stick.png"): []byte("stick"),
			packs.MustParseResourcePath("sample:models/item/a.json"):         []byte(`{}`),
			packs.MustParseResourcePath("sample:lang/en_us.json"):            []byte(`{"a": "A"}`),
		},
	}
}

func TestPackFormat(t *testing.T) {
	for _, tc := range []struct {
		version string
		exp     int
		ok      bool
	}{
		{"1.12.2", 0, false},
		{"1.13", 4, true},
		{"1.16.1", 5, true},
		{"1.19.3", 12, true},
		{"1.20.1", 15, true},
		{"1.20.4", 22, true},
		{"1.21.1", 34, true},
		{"1.21.4", 46, true},
		{"1.21.5", 55, true},
		{"1.22", 55, true},
	} {
		act, ok := artifact.PackFormat(packs.MustParseVersion(tc.version))
		if act != tc.exp || ok != tc.ok {
			t.Errorf("%s: expected (%d, %v), got (%d, %v)", tc.version, tc.exp, tc.ok, act, ok)
		}
	}
}

func TestWriteZip(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.zip"), filepath.Join(dir, "b.zip")

	for _, dest := range []string{a, b} {
		if err := artifact.Write(result(t, "1.20.1"), dest, artifact.Options{}); err != nil {
			t.Fatal(err)
		}
	}

	bsA, err := os.ReadFile(a)
	if err != nil {
		t.Fatal(err)
	}
	bsB, err := os.ReadFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bsA, bsB) {
		t.Fatal("expected identical archives")
	}

	art, err := artifact.Read(a)
	if err != nil {
		t.Fatal(err)
	}
	exp := &artifact.Artifact{
		PackFormat:  15,
		Description: "Sample",
		Assets:      result(t, "1.20.1").Assets,
	}
	if diff := cmp.Diff(exp, art); diff != "" {
		t.Fatalf("unexpected artifact (-want, +got):\n%s", diff)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected no temporary files to remain, got %v", entries)
	}
}

func TestWriteDir(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	if err := os.MkdirAll(filepath.Join(dest, "assets", "stale"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "assets", "stale", "old.json"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := artifact.Write(result(t, "1.21.4"), dest, artifact.Options{Description: "Overridden"}); err != nil {
		t.Fatal(err)
	}

	art, err := artifact.Read(dest)
	if err != nil {
		t.Fatal(err)
	}
	exp := &artifact.Artifact{
		PackFormat:  46,
		Description: "Overridden",
		Assets:      result(t, "1.21.4").Assets,
	}
	if diff := cmp.Diff(exp, art); diff != "" {
		t.Fatalf("unexpected artifact (-want, +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(dest))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the artifact to remain, got %v", entries)
	}
}

func TestWriteErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		note      string
		dest      string
		target    string
		noDestDir bool
	}{
		{"destination is a file", file, "1.20.1", false},
		{"unknown pack format", filepath.Join(dir, "old.zip"), "1.12.2", false},
		{"missing parent", filepath.Join(dir, "missing", "a.zip"), "1.20.1", true},
		{"missing parent directory", filepath.Join(dir, "missing", "out"), "1.20.1", true},
	} {
		t.Run(tc.note, func(t *testing.T) {
			err := artifact.Write(result(t, tc.target), tc.dest, artifact.Options{})
			var werr *artifact.WriteError
			if !errors.As(err, &werr) || werr.Path != tc.dest {
				t.Fatalf("expected WriteError for %s, got %v", tc.dest, err)
			}
			if act := errors.Is(err, artifact.ErrNoDestinationDir); act != tc.noDestDir {
				t.Fatalf("expected ErrNoDestinationDir %v, got %v", tc.noDestDir, err)
			}
		})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no leftovers, got %v", entries)
	}
	if bs, _ := os.ReadFile(file); string(bs) != "keep" {
		t.Fatalf("expected %s to be untouched, got %q", file, bs)
	}
}

func TestWriteMode(t *testing.T) {
	dir := t.TempDir()

	for _, tc := range []struct {
		dest string
		mode os.FileMode
	}{
		{filepath.Join(dir, "a.zip"), 0o644},
		{filepath.Join(dir, "out"), 0o755},
	} {
		if err := artifact.Write(result(t, "1.20.1"), tc.dest, artifact.Options{}); err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(tc.dest)
		if err != nil {
			t.Fatal(err)
		}
		if act := info.Mode().Perm(); act != tc.mode {
			t.Errorf("%s: expected mode %v, got %v", tc.dest, tc.mode, act)
		}
	}
}
