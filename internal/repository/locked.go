package repository

import (
	"context"
	"fmt"

	"github.com/pipg-project/pipg/internal/lockfile"
	"github.com/pipg-project/pipg/internal/resolver"
)

// LockedRepository serves candidates exclusively from an already-resolved
// lock file: the "frozen install" path that must not contact any index.
type LockedRepository struct {
	byName map[string][]resolver.Candidate
	info   map[candidateKey]lockfile.Package
}

type candidateKey struct {
	name    string
	version string
}

var _ Repository = (*LockedRepository)(nil)

// NewLockedRepository indexes a decoded lock file by package name.
func NewLockedRepository(lock lockfile.Lock) *LockedRepository {
	byName := make(map[string][]resolver.Candidate, len(lock.Packages))
	info := make(map[candidateKey]lockfile.Package, len(lock.Packages))

	for _, pkg := range lock.Packages {
		name := resolver.NormalizeName(pkg.Name)

		candidate := resolver.Candidate{
			Name:           name,
			Version:        pkg.Version,
			RequiresPython: pkg.RequiresPython,
		}

		if len(pkg.Files) > 0 {
			candidate.Link = pkg.Files[0].URL
			candidate.Hashes = pkg.Files[0].Hashes
		}

		byName[name] = append(byName[name], candidate)
		info[candidateKey{name: name, version: pkg.Version}] = pkg
	}

	return &LockedRepository{byName: byName, info: info}
}

// FindCandidates returns the single locked candidate for name, or none if
// the lock does not mention the package at all (a resolver conflict, not a
// silent success, per spec.md's frozen-install contract).
func (r *LockedRepository) FindCandidates(_ context.Context, name string) ([]resolver.Candidate, error) {
	return r.byName[resolver.NormalizeName(name)], nil
}

// GetDependencies returns the dependency lines recorded verbatim in the lock
// file for candidate — no index contact, matching the "dependencies come
// verbatim from the lock" rule of spec.md §4.4.
func (r *LockedRepository) GetDependencies(_ context.Context, candidate resolver.Candidate) ([]resolver.Requirement, resolver.PythonSpecSet, string, error) {
	universal := resolver.UniversalPythonSpecSet()

	pkg, ok := r.info[candidateKey{name: resolver.NormalizeName(candidate.Name), version: candidate.Version}]
	if !ok {
		return nil, universal, "", fmt.Errorf("%w: %s %s not present in lock", ErrCandidateInfoNotFound, candidate.Name, candidate.Version)
	}

	pyspec := universal

	if pkg.RequiresPython != "" {
		parsed, err := resolver.ParsePythonSpecSet(pkg.RequiresPython)
		if err == nil {
			pyspec = parsed
		}
	}

	deps := make([]resolver.Requirement, 0, len(pkg.Dependencies))
	for _, raw := range pkg.Dependencies {
		deps = append(deps, resolver.ParseRequirement(raw))
	}

	return deps, pyspec, pkg.Summary, nil
}
