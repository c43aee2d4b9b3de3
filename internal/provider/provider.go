// Package provider implements the update-strategy decorators of spec.md
// §4.7: each wraps a resolver.Provider and adjusts which candidates the
// resolver sees, without altering the resolver's own backtracking logic.
package provider

import (
	"context"

	"github.com/pipg-project/pipg/internal/resolver"
)

// All is the base strategy: it never prefers a previously-locked candidate
// and always defers to the wrapped provider's fresh repository lookup. It is
// also the building block the other three strategies decorate.
type All struct {
	Inner resolver.Provider
}

var _ resolver.Provider = (*All)(nil)

func (p *All) Identify(req resolver.Requirement) string { return p.Inner.Identify(req) }

func (p *All) GetPreference(identifier string, resolution *resolver.Candidate, candidates []resolver.Candidate, information []resolver.RequirementInformation) resolver.Preference {
	return p.Inner.GetPreference(identifier, resolution, candidates, information)
}

func (p *All) FindMatches(ctx context.Context, identifier string, requirements []resolver.Requirement) ([]resolver.Candidate, error) {
	return p.Inner.FindMatches(ctx, identifier, requirements)
}

func (p *All) IsSatisfiedBy(req resolver.Requirement, candidate resolver.Candidate) bool {
	return p.Inner.IsSatisfiedBy(req, candidate)
}

func (p *All) GetDependencies(ctx context.Context, candidate resolver.Candidate) ([]resolver.Requirement, error) {
	return p.Inner.GetDependencies(ctx, candidate)
}

// Reuse decorates a base provider with preferred pins sourced from an
// existing lock file. An identifier named on the command line
// (TrackedNames) or already known to conflict (Incompatibilities) bypasses
// the pin and falls through to the wrapped provider, per spec.md §4.7.
type Reuse struct {
	Inner             resolver.Provider
	PreferredPins     map[string]resolver.Candidate
	TrackedNames      map[string]bool
	Incompatibilities map[string]bool
}

var _ resolver.Provider = (*Reuse)(nil)

func (p *Reuse) Identify(req resolver.Requirement) string { return p.Inner.Identify(req) }

func (p *Reuse) GetPreference(identifier string, resolution *resolver.Candidate, candidates []resolver.Candidate, information []resolver.RequirementInformation) resolver.Preference {
	return p.Inner.GetPreference(identifier, resolution, candidates, information)
}

func (p *Reuse) FindMatches(ctx context.Context, identifier string, requirements []resolver.Requirement) ([]resolver.Candidate, error) {
	if pin, ok := p.reusablePin(identifier, requirements); ok {
		rest, err := p.Inner.FindMatches(ctx, identifier, requirements)
		if err != nil {
			return nil, err
		}

		return prependPin(pin, rest), nil
	}

	return p.Inner.FindMatches(ctx, identifier, requirements)
}

// reusablePin returns the preferred pin for identifier, if one exists, is
// not excluded by TrackedNames/Incompatibilities, and still satisfies every
// current requirement.
func (p *Reuse) reusablePin(identifier string, requirements []resolver.Requirement) (resolver.Candidate, bool) {
	if p.TrackedNames[identifier] || p.Incompatibilities[identifier] {
		return resolver.Candidate{}, false
	}

	pin, ok := p.PreferredPins[identifier]
	if !ok {
		return resolver.Candidate{}, false
	}

	for _, req := range requirements {
		if !p.Inner.IsSatisfiedBy(req, pin) {
			return resolver.Candidate{}, false
		}
	}

	return pin, true
}

func (p *Reuse) IsSatisfiedBy(req resolver.Requirement, candidate resolver.Candidate) bool {
	return p.Inner.IsSatisfiedBy(req, candidate)
}

func (p *Reuse) GetDependencies(ctx context.Context, candidate resolver.Candidate) ([]resolver.Requirement, error) {
	return p.Inner.GetDependencies(ctx, candidate)
}

// prependPin puts pin first in the candidate list the resolver tries,
// removing any entry from rest that the pin itself already represents.
func prependPin(pin resolver.Candidate, rest []resolver.Candidate) []resolver.Candidate {
	out := make([]resolver.Candidate, 0, len(rest)+1)
	out = append(out, pin)

	for _, c := range rest {
		if c.Version != pin.Version {
			out = append(out, c)
		}
	}

	return out
}

// Eager extends Reuse: once a tracked package is pinned, its direct
// dependencies are added to the tracked set too, and tracked identifiers are
// preferred by the resolver's round loop so they pin (and their own
// dependencies become known) as early as possible.
type Eager struct {
	Reuse
	tracked map[string]bool
}

var _ resolver.Provider = (*Eager)(nil)

// NewEager seeds an Eager strategy with the initially tracked identifiers
// (typically the packages named on the command line).
func NewEager(inner resolver.Provider, preferredPins map[string]resolver.Candidate, initialTracked []string) *Eager {
	tracked := make(map[string]bool, len(initialTracked))
	for _, id := range initialTracked {
		tracked[id] = true
	}

	e := &Eager{tracked: tracked}
	e.Inner = inner
	e.PreferredPins = preferredPins
	e.TrackedNames = tracked
	e.Incompatibilities = map[string]bool{}

	return e
}

func (p *Eager) GetPreference(identifier string, resolution *resolver.Candidate, candidates []resolver.Candidate, information []resolver.RequirementInformation) resolver.Preference {
	pref := p.Inner.GetPreference(identifier, resolution, candidates, information)
	pref.Tracked = p.tracked[identifier]

	return pref
}

func (p *Eager) GetDependencies(ctx context.Context, candidate resolver.Candidate) ([]resolver.Requirement, error) {
	deps, err := p.Inner.GetDependencies(ctx, candidate)
	if err != nil {
		return nil, err
	}

	if p.tracked[candidate.Name] {
		for _, dep := range deps {
			p.tracked[p.Identify(dep)] = true
		}
	}

	return deps, nil
}

// ReuseInstalled behaves like Reuse, but also injects the version currently
// present in the target environment's working set as a candidate when no
// lock pin exists for that identifier, so `pipg install` without a fresh
// lock prefers what's already installed over re-resolving from the index.
type ReuseInstalled struct {
	Reuse
	Installed map[string]resolver.Candidate
}

var _ resolver.Provider = (*ReuseInstalled)(nil)

func (p *ReuseInstalled) FindMatches(ctx context.Context, identifier string, requirements []resolver.Requirement) ([]resolver.Candidate, error) {
	if pin, ok := p.reusablePin(identifier, requirements); ok {
		rest, err := p.Inner.FindMatches(ctx, identifier, requirements)
		if err != nil {
			return nil, err
		}

		return prependPin(pin, rest), nil
	}

	if installed, ok := p.Installed[identifier]; ok {
		satisfiesAll := true

		for _, req := range requirements {
			if !p.Inner.IsSatisfiedBy(req, installed) {
				satisfiesAll = false
				break
			}
		}

		if satisfiesAll {
			rest, err := p.Inner.FindMatches(ctx, identifier, requirements)
			if err != nil {
				return nil, err
			}

			return prependPin(installed, rest), nil
		}
	}

	return p.Inner.FindMatches(ctx, identifier, requirements)
}
