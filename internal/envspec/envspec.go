// Package envspec describes the target Python environment a resolution or
// installation runs against (requires-python, ABI, platform) and scores
// wheel filenames for compatibility with it, generalizing the bdist_wheel
// selection in internal/downloader into the total PEP 425 scoring function
// a repository needs to rank every candidate file, not just find one match.
package envspec

import (
	"fmt"
	"strings"
)

// Tag is a single PEP 425 compatibility tag triple, as found in a wheel
// filename or supplied by the running interpreter.
type Tag struct {
	Python   string // e.g. "cp312", "py3"
	ABI      string // e.g. "cp312", "abi3", "none"
	Platform string // e.g. "manylinux_2_17_x86_64", "any"
}

// EnvSpec is the target environment a candidate is evaluated against:
// requires-python plus an ordered list of supported tags (most specific
// first, matching the interpreter's own sys.tags() ordering).
type EnvSpec struct {
	RequiresPython string // e.g. ">=3.8"
	SupportedTags  []Tag  // priority order, index 0 is most preferred
}

// ParseWheelFilename splits a wheel filename into name, version, and tag.
// Format: {name}-{version}[-{build}]-{python}-{abi}-{platform}.whl
func ParseWheelFilename(filename string) (name, version string, tag Tag, err error) {
	filename = strings.TrimSuffix(filename, ".whl")

	parts := strings.Split(filename, "-")
	if len(parts) < 5 {
		return "", "", Tag{}, fmt.Errorf("invalid wheel filename %q: expected at least 5 parts", filename)
	}

	tag = Tag{
		Python:   parts[len(parts)-3],
		ABI:      parts[len(parts)-2],
		Platform: parts[len(parts)-1],
	}

	return parts[0], parts[1], tag, nil
}

// Score returns the priority index (0 = best) of the highest-priority
// SupportedTags entry the wheel's own compound tag set matches, or ok=false
// if the wheel is incompatible with every supported tag. Lower scores sort
// first, matching spec.md §4.4's preference ordering.
func (e EnvSpec) Score(wheelFilename string) (score int, ok bool) {
	_, _, tag, err := ParseWheelFilename(wheelFilename)
	if err != nil {
		return 0, false
	}

	return e.ScoreTag(tag)
}

// ScoreTag is Score for an already-parsed Tag.
func (e EnvSpec) ScoreTag(tag Tag) (score int, ok bool) {
	for i, compat := range e.SupportedTags {
		if tagMatches(tag, compat) {
			return i, true
		}
	}

	return 0, false
}

// tagMatches reports whether a wheel's compound tag (e.g. "py2.py3") is
// compatible with a single supported-tag entry.
func tagMatches(wheel, compat Tag) bool {
	return fieldMatches(wheel.Python, compat.Python) &&
		fieldMatches(wheel.ABI, compat.ABI) &&
		fieldMatches(wheel.Platform, compat.Platform)
}

// fieldMatches checks a single dot-separated compound field of a wheel tag
// against one supported value.
func fieldMatches(wheelField, compatValue string) bool {
	for _, w := range strings.Split(wheelField, ".") {
		if w == compatValue {
			return true
		}
	}

	return false
}

// IsPureWheel reports whether a wheel filename has the universal "py3-none-any"
// (or "py2.py3-none-any") shape that is compatible with every environment.
func IsPureWheel(wheelFilename string) bool {
	_, _, tag, err := ParseWheelFilename(wheelFilename)
	if err != nil {
		return false
	}

	return tag.ABI == "none" && tag.Platform == "any"
}
