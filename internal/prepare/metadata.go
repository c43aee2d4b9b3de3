package prepare

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Metadata is the subset of a distribution's core metadata (PEP 566
// METADATA, PKG-INFO) the resolver and lock-file writer need.
type Metadata struct {
	Name           string
	Version        string
	Summary        string
	RequiresPython string
	RequiresDist   []string
}

// ExtractWheelMetadata reads the METADATA file out of a built wheel's
// .dist-info directory without unpacking the whole archive.
func ExtractWheelMetadata(wheelPath string) (*Metadata, error) {
	r, err := zip.OpenReader(wheelPath)
	if err != nil {
		return nil, fmt.Errorf("opening wheel %s: %w", wheelPath, err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ".dist-info/METADATA") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening METADATA in %s: %w", wheelPath, err)
		}
		defer func() { _ = rc.Close() }()

		return parseRFC822Metadata(rc)
	}

	return nil, fmt.Errorf("no METADATA file found in %s", wheelPath)
}

// ExtractSourceMetadata reads PKG-INFO from a prepared (but not yet built)
// source tree when present, otherwise falls back to the static fields of
// its pyproject.toml — valid only when none of {name, version, dependencies,
// optional-dependencies, requires-python} is declared dynamic, per
// spec.md §4.5 step 5.
func ExtractSourceMetadata(srcDir string) (*Metadata, error) {
	if f, err := os.Open(filepath.Join(srcDir, "PKG-INFO")); err == nil {
		defer func() { _ = f.Close() }()
		return parseRFC822Metadata(f)
	}

	return parseStaticPyproject(filepath.Join(srcDir, "pyproject.toml"))
}

func parseRFC822Metadata(r io.Reader) (*Metadata, error) {
	m := &Metadata{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			// The long description (if any) follows a blank line; it is not
			// part of the structured header fields this type cares about.
			break
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}

		switch key {
		case "Name":
			m.Name = value
		case "Version":
			m.Version = value
		case "Summary":
			m.Summary = value
		case "Requires-Python":
			m.RequiresPython = value
		case "Requires-Dist":
			m.RequiresDist = append(m.RequiresDist, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	if m.Name == "" {
		return nil, fmt.Errorf("metadata is missing a Name field")
	}

	return m, nil
}

// pyprojectProject mirrors the [project] table fields this package reads;
// unrecognized keys are ignored by BurntSushi/toml.
type pyprojectProject struct {
	Name                 string              `toml:"name"`
	Version              string              `toml:"version"`
	Description          string              `toml:"description"`
	RequiresPython       string              `toml:"requires-python"`
	Dependencies         []string            `toml:"dependencies"`
	OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	Dynamic              []string            `toml:"dynamic"`
}

var staticOnlyFields = map[string]bool{
	"name":                  true,
	"version":               true,
	"dependencies":          true,
	"optional-dependencies": true,
	"requires-python":       true,
}

func parseStaticPyproject(path string) (*Metadata, error) {
	var doc struct {
		Project pyprojectProject `toml:"project"`
	}

	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	for _, d := range doc.Project.Dynamic {
		if staticOnlyFields[d] {
			return nil, fmt.Errorf("%s declares %q as dynamic: metadata requires a build-backend invocation", path, d)
		}
	}

	deps := append([]string(nil), doc.Project.Dependencies...)

	extras := make([]string, 0, len(doc.Project.OptionalDependencies))
	for extra := range doc.Project.OptionalDependencies {
		extras = append(extras, extra)
	}

	sort.Strings(extras)

	for _, extra := range extras {
		for _, d := range doc.Project.OptionalDependencies[extra] {
			deps = append(deps, fmt.Sprintf("%s ; extra == %q", d, extra))
		}
	}

	return &Metadata{
		Name:           doc.Project.Name,
		Version:        doc.Project.Version,
		Summary:        doc.Project.Description,
		RequiresPython: doc.Project.RequiresPython,
		RequiresDist:   deps,
	}, nil
}
