// Package lockfile encodes and decodes pipg's lock file: the resolver's
// pinned output plus enough metadata to detect when it is stale relative to
// the project's requirements, and a read-only decoder for the PEP 751
// "pylock" interchange format.
package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	goversion "github.com/aquasecurity/go-version/pkg/version"
)

// CurrentLockVersion is the lock_version this package writes. It follows a
// simple three-part scheme (major.minor.patch) so mismatched readers can
// tell whether an older/newer pipg can still consume a given lock.
const CurrentLockVersion = "1.0.0"

// Package is one resolved dependency entry in the lock file.
type Package struct {
	Name           string            `toml:"name"`
	Version        string            `toml:"version"`
	RequiresPython string            `toml:"requires_python,omitempty"`
	Marker         string            `toml:"marker,omitempty"`
	Groups         []string          `toml:"groups,omitempty"`
	Summary        string            `toml:"summary,omitempty"`
	Dependencies   []string          `toml:"dependencies,omitempty"`
	Files          []PackageFile     `toml:"files,omitempty"`
	VcsType        string            `toml:"vcs_type,omitempty"`
	VcsURL         string            `toml:"vcs_url,omitempty"`
	VcsRevision    string            `toml:"vcs_revision,omitempty"`
}

// PackageFile is one downloadable artifact (wheel or sdist) for a package,
// with the hash pip/pipg use to verify it after download.
type PackageFile struct {
	Filename string            `toml:"file"`
	URL      string            `toml:"url,omitempty"`
	Hashes   map[string]string `toml:"hashes"`
}

// Metadata is the lock file's header: enough to tell whether it is still
// valid for the project that references it.
type Metadata struct {
	LockVersion     string   `toml:"lock_version"`
	ContentHash     string   `toml:"content_hash"`
	Groups          []string `toml:"groups,omitempty"`
	Strategy        []string `toml:"strategy,omitempty"`
	RequiresPython  string   `toml:"requires_python,omitempty"`
}

// Lock is the full decoded lock file.
type Lock struct {
	Metadata Metadata  `toml:"metadata"`
	Packages []Package `toml:"package"`
}

// lockDocument is the on-disk TOML shape; BurntSushi/toml needs the table
// array field named "package" to match pdm's own lock file layout.
type lockDocument struct {
	Metadata Metadata  `toml:"metadata"`
	Package  []Package `toml:"package"`
}

// ContentHash computes the value stored in metadata.content_hash: "sha256:"
// plus the hex sha256 over the given requirement strings, sorted, each
// followed by a NUL byte. Only those strings are hashed; sources,
// requires-python and overrides do not contribute, so changing one of them
// alone leaves the hash unchanged.
func ContentHash(requirements []string) string {
	sorted := append([]string{}, requirements...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, r := range sorted {
		h.Write([]byte(r))
		h.Write([]byte{0})
	}

	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// Write encodes the lock to TOML and writes it atomically (temp file plus
// rename), the same convention used elsewhere in this module.
func Write(path string, lock Lock) error {
	doc := lockDocument{Metadata: lock.Metadata, Package: lock.Packages}

	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating lock file: %w", err)
	}

	enc := toml.NewEncoder(f)
	if err := enc.Encode(doc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)

		return fmt.Errorf("encoding lock file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing lock file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming lock file: %w", err)
	}

	return nil
}

// Read decodes a lock file written by Write.
func Read(path string) (Lock, error) {
	var doc lockDocument

	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return Lock{}, fmt.Errorf("decoding lock file %s: %w", path, err)
	}

	return Lock{Metadata: doc.Metadata, Packages: doc.Package}, nil
}

// Compatibility classifies how a lock's lock_version relates to
// CurrentLockVersion, per spec.md §4.9: SAME means read/write both work,
// BACKWARD means this reader can read but a write would downgrade the file,
// FORWARD means the lock was written by a newer pipg and may use fields
// this reader doesn't understand, NONE means the major version differs and
// the lock must be rejected.
type Compatibility int

const (
	CompatibilitySame Compatibility = iota
	CompatibilityBackward
	CompatibilityForward
	CompatibilityNone
)

func (c Compatibility) String() string {
	switch c {
	case CompatibilitySame:
		return "same"
	case CompatibilityBackward:
		return "backward"
	case CompatibilityForward:
		return "forward"
	default:
		return "none"
	}
}

// CheckCompatibility compares a lock file's recorded lock_version against
// CurrentLockVersion using a generic three-part version comparison (the
// lock_version scheme isn't PEP 440, so go-version's semver-ish comparator
// is used instead of go-pep440-version).
func CheckCompatibility(lockVersion string) (Compatibility, error) {
	current, err := goversion.Parse(CurrentLockVersion)
	if err != nil {
		return CompatibilityNone, fmt.Errorf("parsing current lock version: %w", err)
	}

	got, err := goversion.Parse(lockVersion)
	if err != nil {
		return CompatibilityNone, fmt.Errorf("parsing lock file version %q: %w", lockVersion, err)
	}

	if majorOf(lockVersion) != majorOf(CurrentLockVersion) {
		return CompatibilityNone, nil
	}

	switch {
	case got.Equal(current):
		return CompatibilitySame, nil
	case got.LessThan(current):
		return CompatibilityBackward, nil
	default:
		return CompatibilityForward, nil
	}
}

func majorOf(v string) string {
	for i := 0; i < len(v); i++ {
		if v[i] == '.' {
			return v[:i]
		}
	}

	return v
}
