package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pipg-project/pipg/internal/pypi"
)

// Resolver defines the interface for resolving package dependencies.
type Resolver interface {
	Resolve(ctx context.Context, requirements []string) ([]ResolvedPackage, error)
}

// ResolvedPackage represents a package with its resolved version and dependencies.
type ResolvedPackage struct {
	Name         string
	Version      string
	Dependencies []string
}

// Option configures a Service.
type Option func(*Service)

// WithNoDeps disables dependency resolution; only root packages are resolved.
func WithNoDeps(noDeps bool) Option {
	return func(s *Service) {
		s.noDeps = noDeps
	}
}

// WithMarkerEnv sets the environment for evaluating PEP 508 markers.
func WithMarkerEnv(env MarkerEnv) Option {
	return func(s *Service) {
		s.markerEnv = env
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service resolves package dependencies for a PyPI-backed repository, using
// the generic backtracking engine in engine.go.
type Service struct {
	client    pypi.Client
	noDeps    bool
	markerEnv MarkerEnv
	logger    *slog.Logger
}

// compile-time proof that Service implements Resolver.
var _ Resolver = (*Service)(nil)

// New creates a new dependency resolver with the given PyPI client.
func New(client pypi.Client, opts ...Option) *Service {
	s := &Service{
		client: client,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Resolve resolves all dependencies for the given package requirements,
// returning them in an arbitrary but self-consistent order.
func (s *Service) Resolve(ctx context.Context, requirements []string) ([]ResolvedPackage, error) {
	roots := make([]Requirement, 0, len(requirements))
	for _, r := range requirements {
		roots = append(roots, ParseRequirement(r))
	}

	provider := &pypiProvider{client: s.client, noDeps: s.noDeps, markerEnv: s.markerEnv}

	result, err := Resolve(ctx, provider, roots, s.logger)
	if err != nil {
		return nil, fmt.Errorf("resolving requirements: %w", err)
	}

	out := make([]ResolvedPackage, 0, len(result.Mapping))

	for name, candidate := range result.Mapping {
		deps, err := provider.GetDependencies(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("fetching dependencies for %s: %w", name, err)
		}

		depNames := make([]string, 0, len(deps))
		for _, d := range deps {
			depNames = append(depNames, d.Name)
		}

		out = append(out, ResolvedPackage{
			Name:         name,
			Version:      candidate.Version,
			Dependencies: depNames,
		})
	}

	return out, nil
}

// pypiProvider adapts a flat pypi.Client into the generic resolver Provider
// protocol: one candidate per known release, dependencies taken from
// requires_dist, markers pre-filtered by the configured environment.
type pypiProvider struct {
	client    pypi.Client
	noDeps    bool
	markerEnv MarkerEnv
}

var _ Provider = (*pypiProvider)(nil)

func (p *pypiProvider) Identify(req Requirement) string {
	return req.Name
}

func (p *pypiProvider) GetPreference(_ string, resolution *Candidate, candidates []Candidate, _ []RequirementInformation) Preference {
	return Preference{}
}

func (p *pypiProvider) FindMatches(ctx context.Context, identifier string, requirements []Requirement) ([]Candidate, error) {
	info, err := p.client.GetPackage(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("fetching %s from PyPI: %w", identifier, err)
	}

	versions := availableVersions(info)

	sorted, err := SortVersionsDesc(versions)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(sorted))

	for _, v := range sorted {
		candidates = append(candidates, Candidate{Name: identifier, Version: v})
	}

	return candidates, nil
}

func (p *pypiProvider) IsSatisfiedBy(req Requirement, candidate Candidate) bool {
	if req.Specifier == "" {
		return true
	}

	ok, err := MatchesAll(candidate.Version, []string{req.Specifier})
	if err != nil {
		return false
	}

	return ok
}

func (p *pypiProvider) GetDependencies(ctx context.Context, candidate Candidate) ([]Requirement, error) {
	if p.noDeps {
		return nil, nil
	}

	info, err := p.client.GetPackage(ctx, candidate.Name)
	if err != nil {
		return nil, fmt.Errorf("fetching %s from PyPI: %w", candidate.Name, err)
	}

	var requiresDist []string

	if candidate.Version == info.Info.Version {
		requiresDist = info.Info.RequiresDist
	} else {
		versionInfo, err := p.client.GetPackageVersion(ctx, candidate.Name, candidate.Version)
		if err != nil {
			return nil, fmt.Errorf("fetching %s version %s: %w", candidate.Name, candidate.Version, err)
		}

		requiresDist = versionInfo.Info.RequiresDist
	}

	var deps []Requirement

	for _, raw := range requiresDist {
		req := ParseRequirement(raw)
		if req.Marker != "" && !EvalMarker(req.Marker, p.markerEnv) {
			continue
		}

		deps = append(deps, req)
	}

	return deps, nil
}

// availableVersions extracts version strings from a PackageInfo's releases.
// Falls back to info.Version if no releases are present.
func availableVersions(info *pypi.PackageInfo) []string {
	if len(info.Releases) > 0 {
		versions := make([]string, 0, len(info.Releases))

		for v, files := range info.Releases {
			if len(files) > 0 {
				versions = append(versions, v)
			}
		}

		return versions
	}

	// Fallback: only the latest version is known.
	if info.Info.Version != "" {
		return []string{info.Info.Version}
	}

	return nil
}
