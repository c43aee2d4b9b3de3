package lockfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pipg-project/pipg/internal/lockfile"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func TestWriteReadRoundTrip(t *testing.T) {
	lock := lockfile.Lock{
		Metadata: lockfile.Metadata{
			LockVersion: lockfile.CurrentLockVersion,
			ContentHash: lockfile.ContentHash([]string{"flask>=3.0"}),
			Groups:      []string{"default"},
		},
		Packages: []lockfile.Package{
			{
				Name:    "flask",
				Version: "3.0.0",
				Groups:  []string{"default"},
				Files: []lockfile.PackageFile{
					{Filename: "flask-3.0.0-py3-none-any.whl", Hashes: map[string]string{"sha256": "abc123"}},
				},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "pipg.lock")

	if err := lockfile.Write(path, lock); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := lockfile.Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if got.Metadata.LockVersion != lockfile.CurrentLockVersion {
		t.Errorf("LockVersion = %q, want %q", got.Metadata.LockVersion, lockfile.CurrentLockVersion)
	}

	if len(got.Packages) != 1 || got.Packages[0].Name != "flask" {
		t.Fatalf("unexpected packages: %+v", got.Packages)
	}
}

func TestContentHashStableUnderReordering(t *testing.T) {
	a := lockfile.ContentHash([]string{"flask>=3.0", "requests"})
	b := lockfile.ContentHash([]string{"requests", "flask>=3.0"})

	if a != b {
		t.Errorf("ContentHash should be order-independent: %q != %q", a, b)
	}
}

func TestContentHashChangesWithInput(t *testing.T) {
	a := lockfile.ContentHash([]string{"flask>=3.0"})
	b := lockfile.ContentHash([]string{"flask>=4.0"})

	if a == b {
		t.Error("ContentHash should differ for different requirement sets")
	}
}

func TestCheckCompatibilitySame(t *testing.T) {
	got, err := lockfile.CheckCompatibility(lockfile.CurrentLockVersion)
	if err != nil {
		t.Fatalf("CheckCompatibility() error: %v", err)
	}

	if got != lockfile.CompatibilitySame {
		t.Errorf("got %v, want CompatibilitySame", got)
	}
}

func TestCheckCompatibilityBackward(t *testing.T) {
	got, err := lockfile.CheckCompatibility("1.0.0")
	if err != nil {
		t.Fatalf("CheckCompatibility() error: %v", err)
	}

	if lockfile.CurrentLockVersion != "1.0.0" && got != lockfile.CompatibilityBackward {
		t.Errorf("got %v, want CompatibilityBackward", got)
	}
}

func TestCheckCompatibilityNoneAcrossMajor(t *testing.T) {
	got, err := lockfile.CheckCompatibility("2.0.0")
	if err != nil {
		t.Fatalf("CheckCompatibility() error: %v", err)
	}

	if got != lockfile.CompatibilityNone {
		t.Errorf("got %v, want CompatibilityNone across a major version bump", got)
	}
}

func TestReadPylockBytes(t *testing.T) {
	data := []byte(`
lock-version = "1.0"
requires-python = ">=3.9"

[[packages]]
name = "flask"
version = "3.0.0"

[[packages.wheels]]
name = "flask-3.0.0-py3-none-any.whl"
url = "https://example.org/flask-3.0.0-py3-none-any.whl"
`)

	doc, err := lockfile.ReadPylockBytes(data)
	if err != nil {
		t.Fatalf("ReadPylockBytes() error: %v", err)
	}

	if len(doc.Packages) != 1 || doc.Packages[0].Name != "flask" {
		t.Fatalf("unexpected packages: %+v", doc.Packages)
	}

	if len(doc.Packages[0].Wheels) != 1 {
		t.Fatalf("expected 1 wheel artifact, got %d", len(doc.Packages[0].Wheels))
	}
}

func TestReadPylockRejectsMixedVcsAndFiles(t *testing.T) {
	data := []byte(`
lock-version = "1.0"

[[packages]]
name = "pkg"
version = "1.0.0"

[packages.vcs]
type = "git"
url = "https://example.org/pkg.git"

[[packages.wheels]]
name = "pkg-1.0.0-py3-none-any.whl"
url = "https://example.org/pkg-1.0.0-py3-none-any.whl"
`)

	path := filepath.Join(t.TempDir(), "pylock.toml")

	if err := writeFile(path, data); err != nil {
		t.Fatal(err)
	}

	if _, err := lockfile.ReadPylock(path); err == nil {
		t.Error("expected error for package mixing vcs and file artifacts")
	}
}
