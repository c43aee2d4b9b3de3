package repository_test

import (
	"testing"

	"github.com/pipg-project/pipg/internal/repository"
)

func TestFilterSourcesNoPatterns(t *testing.T) {
	sources := []repository.Source{{Name: "pypi", URL: "https://pypi.org/simple"}}

	got, err := repository.FilterSources(sources, "flask")
	if err != nil {
		t.Fatalf("FilterSources() error: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 source, got %d", len(got))
	}
}

func TestFilterSourcesInclude(t *testing.T) {
	sources := []repository.Source{
		{Name: "internal", URL: "https://pkgs.internal/simple", IncludePackages: []string{"acme-*"}},
		{Name: "pypi", URL: "https://pypi.org/simple"},
	}

	got, err := repository.FilterSources(sources, "acme-widgets")
	if err != nil {
		t.Fatalf("FilterSources() error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected both sources to apply to acme-widgets, got %d", len(got))
	}

	got, err = repository.FilterSources(sources, "flask")
	if err != nil {
		t.Fatalf("FilterSources() error: %v", err)
	}

	if len(got) != 1 || got[0].Name != "pypi" {
		t.Fatalf("expected only pypi to apply to flask, got %+v", got)
	}
}

func TestFilterSourcesExcludeWins(t *testing.T) {
	sources := []repository.Source{
		{Name: "pypi", URL: "https://pypi.org/simple", ExcludePackages: []string{"internal-*"}},
	}

	got, err := repository.FilterSources(sources, "internal-tool")
	if err != nil {
		t.Fatalf("FilterSources() error: %v", err)
	}

	if len(got) != 0 {
		t.Fatalf("expected internal-tool to be excluded, got %+v", got)
	}
}

func TestFilterSourcesNormalizesName(t *testing.T) {
	sources := []repository.Source{
		{Name: "internal", URL: "https://pkgs.internal/simple", IncludePackages: []string{"my-package"}},
	}

	got, err := repository.FilterSources(sources, "My_Package")
	if err != nil {
		t.Fatalf("FilterSources() error: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected normalized name to match glob, got %+v", got)
	}
}
