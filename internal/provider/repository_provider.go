package provider

import (
	"context"
	"fmt"

	"github.com/pipg-project/pipg/internal/repository"
	"github.com/pipg-project/pipg/internal/resolver"
)

// RepositoryProvider is the base strategy layer of spec.md §4.7: it wraps a
// repository.Repository and answers the resolver's Provider protocol
// directly from it, with no reuse/eager/override behavior of its own. All,
// Reuse, Eager, ReuseInstalled, and Overrides each decorate one of these.
type RepositoryProvider struct {
	Repo             repository.Repository
	MarkerEnv        resolver.MarkerEnv
	TargetPython     resolver.PythonSpecSet
	AllowPrereleases bool

	// MinimalVersions names identifiers (normalized package names) the
	// resolver should try lowest-version-first, for direct dependencies
	// resolved under the direct_minimal_versions strategy flag (spec.md §4.4
	// preference rule 3).
	MinimalVersions map[string]bool
}

var _ resolver.Provider = (*RepositoryProvider)(nil)

func (p *RepositoryProvider) Identify(req resolver.Requirement) string {
	return resolver.NormalizeName(req.Name)
}

// GetPreference leaves every field at its zero value: the engine's own
// pickIdentifier recomputes NotRoot/NotPinned/DependencyDepth/
// NegConstraintSize from criterion state on every round regardless of what a
// provider returns here (spec.md §4.6); Tracked is the only field a provider
// ever needs to set, and the base provider never tracks anything.
func (p *RepositoryProvider) GetPreference(_ string, _ *resolver.Candidate, _ []resolver.Candidate, _ []resolver.RequirementInformation) resolver.Preference {
	return resolver.Preference{}
}

// FindMatches fetches candidates from the wrapped repository and filters out
// prereleases (unless allowed) and releases whose requires-python cannot
// overlap TargetPython, then orders them per spec.md §4.4's preference rule.
// Yanked releases are not filtered out; SortCandidates places them last.
func (p *RepositoryProvider) FindMatches(ctx context.Context, identifier string, _ []resolver.Requirement) ([]resolver.Candidate, error) {
	candidates, err := p.Repo.FindCandidates(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("finding candidates for %s: %w", identifier, err)
	}

	filtered := make([]resolver.Candidate, 0, len(candidates))

	for _, c := range candidates {
		if !p.AllowPrereleases && resolver.IsPrerelease(c.Version) {
			continue
		}

		if c.RequiresPython != "" && !p.TargetPython.IsAllowAll() {
			pyspec, err := resolver.ParsePythonSpecSet(c.RequiresPython)
			if err == nil && pyspec.Intersect(p.TargetPython).IsImpossible() {
				continue
			}
		}

		filtered = append(filtered, c)
	}

	resolver.SortCandidates(filtered)

	if p.MinimalVersions[identifier] {
		reverseCandidates(filtered)
	}

	return filtered, nil
}

func reverseCandidates(c []resolver.Candidate) {
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}
}

func (p *RepositoryProvider) IsSatisfiedBy(req resolver.Requirement, candidate resolver.Candidate) bool {
	if req.Specifier == "" {
		return true
	}

	ok, err := resolver.MatchesAll(candidate.Version, []string{req.Specifier})
	if err != nil {
		return false
	}

	return ok
}

// GetDependencies fetches candidate's raw dependencies from the repository
// and drops any whose marker is unsatisfiable in the configured environment,
// leaving the marker string itself intact on the surviving requirements so
// the post-solve inheritance pass (spec.md §4.8) can still compute it
// precisely per parent edge.
func (p *RepositoryProvider) GetDependencies(ctx context.Context, candidate resolver.Candidate) ([]resolver.Requirement, error) {
	deps, _, _, err := p.Repo.GetDependencies(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("fetching dependencies for %s %s: %w", candidate.Name, candidate.Version, err)
	}

	out := make([]resolver.Requirement, 0, len(deps))

	for _, dep := range deps {
		if dep.Marker != "" && !resolver.ParseMarker(dep.Marker).Evaluate(p.MarkerEnv, nil) {
			continue
		}

		out = append(out, dep)
	}

	return out, nil
}
