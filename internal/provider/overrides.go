package provider

import (
	"context"
	"path"
	"strings"

	"github.com/pipg-project/pipg/internal/resolver"
)

// Overrides decorates a provider with a name -> version-or-URL mapping that
// takes precedence over every other requirement for any identifier it
// covers, per spec.md §4.7: IsSatisfiedBy accepts any candidate of an
// overridden identifier. A plain version pins with "==" and a full specifier
// (leading with an operator) is applied against the wrapped provider's own
// matches; a URL synthesizes a single direct-reference candidate without
// consulting the wrapped provider.
type Overrides struct {
	Inner     resolver.Provider
	Overrides map[string]string
}

var _ resolver.Provider = (*Overrides)(nil)

func (p *Overrides) Identify(req resolver.Requirement) string { return p.Inner.Identify(req) }

func (p *Overrides) GetPreference(identifier string, resolution *resolver.Candidate, candidates []resolver.Candidate, information []resolver.RequirementInformation) resolver.Preference {
	return p.Inner.GetPreference(identifier, resolution, candidates, information)
}

func (p *Overrides) FindMatches(ctx context.Context, identifier string, requirements []resolver.Requirement) ([]resolver.Candidate, error) {
	value, ok := p.Overrides[identifier]
	if !ok {
		return p.Inner.FindMatches(ctx, identifier, requirements)
	}

	if looksLikeOverrideURL(value) {
		filename := path.Base(value)

		return []resolver.Candidate{{
			Name:    identifier,
			Version: versionFromOverrideURL(filename),
			Link:    value,
			IsWheel: strings.HasSuffix(filename, ".whl"),
		}}, nil
	}

	spec := value
	if !startsWithSpecifierOperator(value) {
		spec = "==" + value
	}

	candidates, err := p.Inner.FindMatches(ctx, identifier, requirements)
	if err != nil {
		return nil, err
	}

	var out []resolver.Candidate

	for _, c := range candidates {
		matches, err := resolver.MatchesAll(c.Version, []string{spec})
		if err == nil && matches {
			out = append(out, c)
		}
	}

	return out, nil
}

func (p *Overrides) IsSatisfiedBy(req resolver.Requirement, candidate resolver.Candidate) bool {
	if _, ok := p.Overrides[p.Inner.Identify(req)]; ok {
		return true
	}

	return p.Inner.IsSatisfiedBy(req, candidate)
}

func (p *Overrides) GetDependencies(ctx context.Context, candidate resolver.Candidate) ([]resolver.Requirement, error) {
	return p.Inner.GetDependencies(ctx, candidate)
}

func looksLikeOverrideURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") ||
		strings.HasPrefix(value, "file://")
}

func startsWithSpecifierOperator(value string) bool {
	for _, op := range []string{"===", "~=", "==", "!=", ">=", "<=", ">", "<"} {
		if strings.HasPrefix(value, op) {
			return true
		}
	}

	return false
}

// versionFromOverrideURL extracts the version component of a wheel/sdist
// filename ("name-1.2.3-py3-none-any.whl" -> "1.2.3"), falling back to the
// filename itself when it doesn't look like a packaging artifact name.
func versionFromOverrideURL(filename string) string {
	base := filename
	for _, ext := range []string{".whl", ".tar.gz", ".zip"} {
		base = strings.TrimSuffix(base, ext)
	}

	parts := strings.Split(base, "-")
	if len(parts) >= 2 {
		return parts[1]
	}

	return filename
}
