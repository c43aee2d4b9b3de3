package provider

import (
	"context"
	"testing"

	"github.com/pipg-project/pipg/internal/resolver"
)

// stubProvider is a minimal resolver.Provider backed by a fixed candidate
// list per identifier, used to test the decorators in isolation.
type stubProvider struct {
	matches map[string][]resolver.Candidate
	deps    map[string][]resolver.Requirement
}

func (s *stubProvider) Identify(req resolver.Requirement) string { return req.Name }

func (s *stubProvider) GetPreference(identifier string, resolution *resolver.Candidate, candidates []resolver.Candidate, information []resolver.RequirementInformation) resolver.Preference {
	return resolver.Preference{}
}

func (s *stubProvider) FindMatches(ctx context.Context, identifier string, requirements []resolver.Requirement) ([]resolver.Candidate, error) {
	return s.matches[identifier], nil
}

func (s *stubProvider) IsSatisfiedBy(req resolver.Requirement, candidate resolver.Candidate) bool {
	if req.Specifier == "" {
		return true
	}

	ok, err := resolver.MatchesAll(candidate.Version, []string{req.Specifier})

	return err == nil && ok
}

func (s *stubProvider) GetDependencies(ctx context.Context, candidate resolver.Candidate) ([]resolver.Requirement, error) {
	return s.deps[candidate.Name], nil
}

func TestAllDelegatesToInner(t *testing.T) {
	inner := &stubProvider{matches: map[string][]resolver.Candidate{
		"flask": {{Name: "flask", Version: "3.0.0"}},
	}}

	p := &All{Inner: inner}

	candidates, err := p.FindMatches(context.Background(), "flask", nil)
	if err != nil {
		t.Fatalf("FindMatches() error: %v", err)
	}

	if len(candidates) != 1 || candidates[0].Version != "3.0.0" {
		t.Errorf("got %+v", candidates)
	}
}

func TestReusePrefersPinWhenCompatible(t *testing.T) {
	inner := &stubProvider{matches: map[string][]resolver.Candidate{
		"flask": {{Name: "flask", Version: "3.1.0"}, {Name: "flask", Version: "3.0.0"}},
	}}

	p := &Reuse{
		Inner:         inner,
		PreferredPins: map[string]resolver.Candidate{"flask": {Name: "flask", Version: "3.0.0"}},
	}

	candidates, err := p.FindMatches(context.Background(), "flask", []resolver.Requirement{{Name: "flask"}})
	if err != nil {
		t.Fatalf("FindMatches() error: %v", err)
	}

	if len(candidates) == 0 || candidates[0].Version != "3.0.0" {
		t.Errorf("expected the preferred pin first, got %+v", candidates)
	}
}

func TestReuseSkipsPinWhenTracked(t *testing.T) {
	inner := &stubProvider{matches: map[string][]resolver.Candidate{
		"flask": {{Name: "flask", Version: "3.1.0"}},
	}}

	p := &Reuse{
		Inner:         inner,
		PreferredPins: map[string]resolver.Candidate{"flask": {Name: "flask", Version: "3.0.0"}},
		TrackedNames:  map[string]bool{"flask": true},
	}

	candidates, err := p.FindMatches(context.Background(), "flask", nil)
	if err != nil {
		t.Fatalf("FindMatches() error: %v", err)
	}

	if len(candidates) != 1 || candidates[0].Version != "3.1.0" {
		t.Errorf("expected the pin to be bypassed for a tracked identifier, got %+v", candidates)
	}
}

func TestReuseFallsThroughWhenPinIncompatible(t *testing.T) {
	inner := &stubProvider{matches: map[string][]resolver.Candidate{
		"flask": {{Name: "flask", Version: "3.1.0"}},
	}}

	p := &Reuse{
		Inner:         inner,
		PreferredPins: map[string]resolver.Candidate{"flask": {Name: "flask", Version: "2.0.0"}},
	}

	candidates, err := p.FindMatches(context.Background(), "flask", []resolver.Requirement{{Name: "flask", Specifier: ">=3.0"}})
	if err != nil {
		t.Fatalf("FindMatches() error: %v", err)
	}

	for _, c := range candidates {
		if c.Version == "2.0.0" {
			t.Error("expected the incompatible pin not to be injected")
		}
	}
}

func TestEagerTracksDependenciesOfPinnedPackage(t *testing.T) {
	inner := &stubProvider{
		matches: map[string][]resolver.Candidate{
			"flask":    {{Name: "flask", Version: "3.0.0"}},
			"werkzeug": {{Name: "werkzeug", Version: "3.0.0"}},
		},
		deps: map[string][]resolver.Requirement{
			"flask": {{Name: "werkzeug"}},
		},
	}

	p := NewEager(inner, nil, []string{"flask"})

	if _, err := p.GetDependencies(context.Background(), resolver.Candidate{Name: "flask", Version: "3.0.0"}); err != nil {
		t.Fatalf("GetDependencies() error: %v", err)
	}

	pref := p.GetPreference("werkzeug", nil, nil, nil)
	if !pref.Tracked {
		t.Error("expected werkzeug to become tracked after its parent flask was pinned")
	}
}

func TestReuseInstalledInjectsInstalledVersion(t *testing.T) {
	inner := &stubProvider{matches: map[string][]resolver.Candidate{
		"flask": {{Name: "flask", Version: "3.1.0"}},
	}}

	p := &ReuseInstalled{
		Reuse:     Reuse{Inner: inner},
		Installed: map[string]resolver.Candidate{"flask": {Name: "flask", Version: "3.0.5"}},
	}

	candidates, err := p.FindMatches(context.Background(), "flask", nil)
	if err != nil {
		t.Fatalf("FindMatches() error: %v", err)
	}

	if len(candidates) == 0 || candidates[0].Version != "3.0.5" {
		t.Errorf("expected the installed version first, got %+v", candidates)
	}
}

func TestOverridesBareVersionPins(t *testing.T) {
	inner := &stubProvider{matches: map[string][]resolver.Candidate{
		"flask": {{Name: "flask", Version: "3.1.0"}, {Name: "flask", Version: "3.0.0"}},
	}}

	p := &Overrides{Inner: inner, Overrides: map[string]string{"flask": "3.0.0"}}

	candidates, err := p.FindMatches(context.Background(), "flask", nil)
	if err != nil {
		t.Fatalf("FindMatches() error: %v", err)
	}

	if len(candidates) != 1 || candidates[0].Version != "3.0.0" {
		t.Errorf("got %+v", candidates)
	}
}

func TestOverridesSpecifierFiltersMatches(t *testing.T) {
	inner := &stubProvider{matches: map[string][]resolver.Candidate{
		"flask": {{Name: "flask", Version: "3.1.0"}, {Name: "flask", Version: "2.0.0"}},
	}}

	p := &Overrides{Inner: inner, Overrides: map[string]string{"flask": ">=3.0"}}

	candidates, err := p.FindMatches(context.Background(), "flask", nil)
	if err != nil {
		t.Fatalf("FindMatches() error: %v", err)
	}

	if len(candidates) != 1 || candidates[0].Version != "3.1.0" {
		t.Errorf("got %+v", candidates)
	}
}

func TestOverridesURLSynthesizesCandidate(t *testing.T) {
	inner := &stubProvider{}

	p := &Overrides{Inner: inner, Overrides: map[string]string{
		"flask": "https://example.org/flask-3.0.0-py3-none-any.whl",
	}}

	candidates, err := p.FindMatches(context.Background(), "flask", nil)
	if err != nil {
		t.Fatalf("FindMatches() error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected a single synthesized candidate, got %+v", candidates)
	}

	if candidates[0].Version != "3.0.0" || !candidates[0].IsWheel {
		t.Errorf("got %+v", candidates[0])
	}
}
