// Package repository supplies candidates to the resolver from one of
// several backing sources: a PEP 503/691 package index, a previously
// written lock file, or a legacy JSON-augmented index endpoint.
package repository

import (
	"context"
	"errors"

	"github.com/pipg-project/pipg/internal/resolver"
)

// Repository is the source of truth the resolver's provider consults for
// candidates of a given (normalized) package name.
type Repository interface {
	FindCandidates(ctx context.Context, name string) ([]resolver.Candidate, error)

	// GetDependencies returns candidate's raw dependency requirements
	// (markers left intact for the post-solve inheritance pass), its
	// requires-python constraint, and its summary, per spec.md §4.4.
	GetDependencies(ctx context.Context, candidate resolver.Candidate) (deps []resolver.Requirement, requiresPython resolver.PythonSpecSet, summary string, err error)
}

// ErrCandidateInfoNotFound is the internal "candidate info not found" signal
// from spec.md §7: caught inside a repository's own source chain so the next
// source is tried, never surfaced past this package.
var ErrCandidateInfoNotFound = errors.New("candidate info not found")
