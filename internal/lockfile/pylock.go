package lockfile

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Pylock is a read-only decode of the PEP 751 interchange lock format
// ("pylock.toml"). pipg never writes this format; it only needs to consume
// locks produced by other PEP 751-compliant tools.
type Pylock struct {
	LockVersion    string          `toml:"lock-version"`
	Environments   []string        `toml:"environments,omitempty"`
	RequiresPython string          `toml:"requires-python,omitempty"`
	CreatedBy      string          `toml:"created-by,omitempty"`
	Packages       []PylockPackage `toml:"packages"`
}

// PylockPackage is one [[packages]] table in a pylock.toml document.
type PylockPackage struct {
	Name           string               `toml:"name"`
	Version        string               `toml:"version,omitempty"`
	RequiresPython string               `toml:"requires-python,omitempty"`
	Marker         string               `toml:"marker,omitempty"`
	Dependencies   []PylockDependency   `toml:"dependencies,omitempty"`
	Wheels         []PylockArtifact     `toml:"wheels,omitempty"`
	Sdist          *PylockArtifact      `toml:"sdist,omitempty"`
	Vcs            *PylockVcs           `toml:"vcs,omitempty"`
}

// PylockDependency is a same-lock back-reference to another [[packages]]
// entry, identified by name (and optionally a disambiguating marker).
type PylockDependency struct {
	Name string `toml:"name"`
}

// PylockArtifact is one downloadable file entry (wheel or sdist).
type PylockArtifact struct {
	Name   string            `toml:"name,omitempty"`
	URL    string            `toml:"url,omitempty"`
	Path   string            `toml:"path,omitempty"`
	Hashes map[string]string `toml:"hashes,omitempty"`
}

// PylockVcs is a VCS source entry.
type PylockVcs struct {
	Type       string `toml:"type"`
	URL        string `toml:"url"`
	Requested  string `toml:"requested-revision,omitempty"`
	CommitID   string `toml:"commit-id,omitempty"`
}

// ReadPylock decodes a PEP 751 pylock.toml file.
//
// Per spec.md's format-uniformity requirement, a package entry that mixes a
// plain URL-bearing wheel/sdist artifact with an incompatible VCS source is
// rejected rather than guessed at.
func ReadPylock(path string) (Pylock, error) {
	var doc Pylock

	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return Pylock{}, fmt.Errorf("decoding pylock file %s: %w", path, err)
	}

	for _, p := range doc.Packages {
		if p.Vcs != nil && (p.Sdist != nil || len(p.Wheels) > 0) {
			return Pylock{}, fmt.Errorf("package %s: both vcs and file artifacts present", p.Name)
		}
	}

	return doc, nil
}

// ReadPylockBytes decodes a pylock document already in memory, for tests
// and for callers that fetched the file over a non-filesystem transport.
func ReadPylockBytes(data []byte) (Pylock, error) {
	var doc Pylock

	if err := toml.Unmarshal(data, &doc); err != nil {
		return Pylock{}, fmt.Errorf("decoding pylock document: %w", err)
	}

	return doc, nil
}
