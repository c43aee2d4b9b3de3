package repository

import (
	"context"

	"github.com/pipg-project/pipg/internal/pypi"
	"github.com/pipg-project/pipg/internal/resolver"
)

// JSONAugmentedIndex decorates another Repository by cross-referencing the
// legacy PyPI "/pypi/<name>/<version>/json" endpoint, filling in
// requires-python for indexes that don't publish PEP 691 JSON or PEP 503
// data-requires-python attributes. File hashes are not filled in.
type JSONAugmentedIndex struct {
	inner  Repository
	client pypi.Client
}

var _ Repository = (*JSONAugmentedIndex)(nil)

// NewJSONAugmentedIndex wraps inner, enriching its candidates via client.
func NewJSONAugmentedIndex(inner Repository, client pypi.Client) *JSONAugmentedIndex {
	return &JSONAugmentedIndex{inner: inner, client: client}
}

// FindCandidates delegates to the wrapped repository, then backfills
// RequiresPython from the legacy "/pypi/<name>/json" endpoint on candidates
// missing it. Only candidates of the version that endpoint reports as the
// latest are filled in; Hashes are left as the wrapped repository returned
// them.
func (r *JSONAugmentedIndex) FindCandidates(ctx context.Context, name string) ([]resolver.Candidate, error) {
	candidates, err := r.inner.FindCandidates(ctx, name)
	if err != nil {
		return nil, err
	}

	needsAugment := false

	for _, c := range candidates {
		if c.RequiresPython == "" {
			needsAugment = true
			break
		}
	}

	if !needsAugment {
		return candidates, nil
	}

	info, err := r.client.GetPackage(ctx, name)
	if err != nil {
		// The legacy endpoint is best-effort enrichment; a failure here
		// shouldn't fail resolution when the simple index already answered.
		return candidates, nil
	}

	byVersion := make(map[string]pypi.Info, 1)
	byVersion[info.Info.Version] = info.Info

	out := make([]resolver.Candidate, len(candidates))

	for i, c := range candidates {
		out[i] = c

		if c.RequiresPython == "" {
			if meta, ok := byVersion[c.Version]; ok {
				out[i].RequiresPython = meta.RequiresPython
			} else if c.Version == info.Info.Version {
				out[i].RequiresPython = info.Info.RequiresPython
			}
		}
	}

	return out, nil
}

// GetDependencies short-circuits via the legacy "/pypi/<name>/<version>/json"
// endpoint (spec.md §4.4's "repository-specific fast path"), falling back to
// the wrapped repository when that endpoint has nothing for this exact
// version (e.g. a yanked or unlisted release still reachable from the index).
func (r *JSONAugmentedIndex) GetDependencies(ctx context.Context, candidate resolver.Candidate) ([]resolver.Requirement, resolver.PythonSpecSet, string, error) {
	universal := resolver.UniversalPythonSpecSet()

	versionInfo, err := r.client.GetPackageVersion(ctx, candidate.Name, candidate.Version)
	if err != nil {
		return r.inner.GetDependencies(ctx, candidate)
	}

	pyspec := universal

	if versionInfo.Info.RequiresPython != "" {
		if parsed, parseErr := resolver.ParsePythonSpecSet(versionInfo.Info.RequiresPython); parseErr == nil {
			pyspec = parsed
		}
	}

	deps := make([]resolver.Requirement, 0, len(versionInfo.Info.RequiresDist))
	for _, raw := range versionInfo.Info.RequiresDist {
		deps = append(deps, resolver.ParseRequirement(raw))
	}

	return deps, pyspec, versionInfo.Info.Summary, nil
}
