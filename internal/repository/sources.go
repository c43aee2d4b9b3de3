package repository

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/pipg-project/pipg/internal/resolver"
)

// Source is one configured package source (§6): a base index URL plus
// optional include/exclude package-name globs restricting which packages it
// is consulted for.
type Source struct {
	Name             string
	URL              string
	IncludePackages  []string // glob patterns; empty means "all packages"
	ExcludePackages  []string // glob patterns checked before IncludePackages
}

// FilterSources returns the subset of sources that apply to a normalized
// package name, preserving source order. A source with no IncludePackages
// patterns matches every name not explicitly excluded.
func FilterSources(sources []Source, packageName string) ([]Source, error) {
	normalized := resolver.NormalizeName(packageName)

	var out []Source

	for _, s := range sources {
		excluded, err := matchesAny(s.ExcludePackages, normalized)
		if err != nil {
			return nil, fmt.Errorf("compiling exclude_packages for source %s: %w", s.Name, err)
		}

		if excluded {
			continue
		}

		if len(s.IncludePackages) == 0 {
			out = append(out, s)
			continue
		}

		included, err := matchesAny(s.IncludePackages, normalized)
		if err != nil {
			return nil, fmt.Errorf("compiling include_packages for source %s: %w", s.Name, err)
		}

		if included {
			out = append(out, s)
		}
	}

	return out, nil
}

func matchesAny(patterns []string, name string) (bool, error) {
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return false, fmt.Errorf("invalid glob %q: %w", p, err)
		}

		if g.Match(name) {
			return true, nil
		}
	}

	return false, nil
}
