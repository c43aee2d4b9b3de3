package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pipg-project/pipg/internal/lockfile"
	"github.com/pipg-project/pipg/internal/repository"
	"github.com/pipg-project/pipg/internal/resolver"
)

func TestLockedRepositoryFindCandidates(t *testing.T) {
	lock := lockfile.Lock{
		Packages: []lockfile.Package{
			{
				Name:    "Flask",
				Version: "3.0.0",
				Files: []lockfile.PackageFile{
					{Filename: "flask-3.0.0-py3-none-any.whl", URL: "https://example.org/flask.whl",
						Hashes: map[string]string{"sha256": "abc"}},
				},
			},
		},
	}

	repo := repository.NewLockedRepository(lock)

	candidates, err := repo.FindCandidates(context.Background(), "flask")
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	if candidates[0].Version != "3.0.0" {
		t.Errorf("Version = %q, want %q", candidates[0].Version, "3.0.0")
	}

	if candidates[0].Hashes["sha256"] != "abc" {
		t.Errorf("expected hash to carry through from lock file")
	}
}

func TestLockedRepositoryMissingPackage(t *testing.T) {
	repo := repository.NewLockedRepository(lockfile.Lock{})

	candidates, err := repo.FindCandidates(context.Background(), "missing")
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}

	if len(candidates) != 0 {
		t.Errorf("expected no candidates for a package absent from the lock, got %+v", candidates)
	}
}

func TestLockedRepositoryGetDependencies(t *testing.T) {
	lock := lockfile.Lock{
		Packages: []lockfile.Package{
			{
				Name:           "Flask",
				Version:        "3.0.0",
				RequiresPython: ">=3.8",
				Summary:        "A simple framework",
				Dependencies:   []string{"werkzeug>=3.0.0", "click>=8.0.0"},
			},
		},
	}

	repo := repository.NewLockedRepository(lock)

	candidate := resolver.Candidate{Name: "flask", Version: "3.0.0"}

	deps, pyspec, summary, err := repo.GetDependencies(context.Background(), candidate)
	if err != nil {
		t.Fatalf("GetDependencies() error: %v", err)
	}

	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(deps))
	}

	if summary != "A simple framework" {
		t.Errorf("Summary = %q, want %q", summary, "A simple framework")
	}

	if pyspec.IsAllowAll() {
		t.Errorf("expected a constrained requires-python, got allow-all")
	}
}

func TestLockedRepositoryGetDependenciesMissing(t *testing.T) {
	repo := repository.NewLockedRepository(lockfile.Lock{})

	_, _, _, err := repo.GetDependencies(context.Background(), resolver.Candidate{Name: "missing", Version: "1.0.0"})
	if !errors.Is(err, repository.ErrCandidateInfoNotFound) {
		t.Errorf("expected ErrCandidateInfoNotFound, got %v", err)
	}
}
