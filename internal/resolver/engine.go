package resolver

import (
	"context"
	"log/slog"

	"golang.org/x/xerrors"
)

// Provider is the resolver's sole collaborator: everything it needs to know
// about identifiers, candidates, and dependencies comes through here. This
// mirrors the provider protocol pdm builds on top of resolvelib
// (identify/get_preference/find_matches/is_satisfied_by/get_dependencies).
type Provider interface {
	// Identify returns the criterion key a requirement resolves against.
	// Two requirements that should compete for the same slot (e.g. the same
	// package with different extras) must return the same identifier.
	Identify(req Requirement) string

	// GetPreference ranks identifiers for the order the engine tries to
	// pin them in; lower is tried first. identifier is not yet pinned.
	GetPreference(identifier string, resolution *Candidate, candidates []Candidate, information []RequirementInformation) Preference

	// FindMatches returns every candidate for identifier, in the order the
	// engine should try them (most preferred first).
	FindMatches(ctx context.Context, identifier string, requirements []Requirement) ([]Candidate, error)

	// IsSatisfiedBy reports whether candidate satisfies requirement.
	IsSatisfiedBy(req Requirement, candidate Candidate) bool

	// GetDependencies returns the dependency requirements of candidate.
	GetDependencies(ctx context.Context, candidate Candidate) ([]Requirement, error)
}

// RequirementInformation pairs a requirement with the candidate that
// introduced it (nil for root requirements), for preference scoring.
type RequirementInformation struct {
	Requirement Requirement
	Parent      *Candidate
}

// Preference is a tuple compared lexicographically; the engine pins
// identifiers in ascending Preference order on each round (spec.md §4.6):
// (not is_python, not is_top_level, not is_file_or_url, not is_pinned,
// not is_backtrack_cause, dependency_depth, -len(constraints), identifier).
type Preference struct {
	Tracked           bool // set by the provider; true sorts first regardless of the fields below
	NotPython         bool // false only for the synthetic "python" identifier
	NotRoot           bool // true if every requirement came from a transitive dependency
	NotFileOrURL      bool // false if any requirement is a file/URL/VCS reference
	NotPinned         bool // true if no candidate has been tried yet
	NotBacktrackCause bool // false if this identifier caused the most recent backtrack
	DependencyDepth   int
	NegConstraintSize int // -len(requirements), so "more constrained first" sorts ascending
	Identifier        string
}

func (p Preference) less(o Preference) bool {
	if p.Tracked != o.Tracked {
		return p.Tracked
	}
	if p.NotPython != o.NotPython {
		return !p.NotPython
	}
	if p.NotRoot != o.NotRoot {
		return !p.NotRoot
	}
	if p.NotFileOrURL != o.NotFileOrURL {
		return !p.NotFileOrURL
	}
	if p.NotPinned != o.NotPinned {
		return !p.NotPinned
	}
	if p.NotBacktrackCause != o.NotBacktrackCause {
		return !p.NotBacktrackCause
	}
	if p.DependencyDepth != o.DependencyDepth {
		return p.DependencyDepth < o.DependencyDepth
	}
	if p.NegConstraintSize != o.NegConstraintSize {
		return p.NegConstraintSize < o.NegConstraintSize
	}
	return p.Identifier < o.Identifier
}

// pythonIdentifier is the reserved identifier a synthetic "python"
// requirement would resolve against. No such requirement is seeded into the
// graph today (see DESIGN.md); the constant exists so Preference.NotPython
// is well defined and a future pseudo-requirement slots in without another
// tuple change.
const pythonIdentifier = "python"

// Criterion tracks everything known so far about one identifier: the
// requirements that constrain it and the remaining untried candidates.
type Criterion struct {
	Information []RequirementInformation
	Candidates  []Candidate
}

func (c Criterion) requirements() []Requirement {
	reqs := make([]Requirement, len(c.Information))
	for i, info := range c.Information {
		reqs[i] = info.Requirement
	}

	return reqs
}

// Result is a completed resolution: one pinned candidate per identifier plus
// the full dependency graph (identifier -> identifiers it directly depends
// on), which the post-solve marker/group inheritance pass consumes.
type Result struct {
	Mapping map[string]Candidate
	Graph   map[string][]string

	// Edges maps parentID -> childID -> the requirement that introduced the
	// edge, for the marker/group inheritance pass (spec.md §4.8). The
	// synthetic parent ID "" holds the original root requirements.
	Edges map[string]map[string]Requirement
}

// ResolutionImpossible is returned when no combination of candidates
// satisfies every constraint.
type ResolutionImpossible struct {
	Identifier string
	Reason     string
}

func (e *ResolutionImpossible) Error() string {
	return "resolution impossible for " + e.Identifier + ": " + e.Reason
}

// state is one node in the engine's backtracking search; Resolve keeps the
// state saved before each pin on its backtrack stack, so undoing a decision
// pops that saved copy.
type state struct {
	criteria map[string]*Criterion
	mapping  map[string]Candidate
	order    []string // identifiers in pin order, for graph reconstruction
}

func (s state) clone() state {
	criteria := make(map[string]*Criterion, len(s.criteria))
	for k, v := range s.criteria {
		cp := *v
		cp.Information = append([]RequirementInformation{}, v.Information...)
		// A nil Candidates list means FindMatches has not run yet; keep it nil.
		if v.Candidates != nil {
			cp.Candidates = append([]Candidate{}, v.Candidates...)
		}
		criteria[k] = &cp
	}

	mapping := make(map[string]Candidate, len(s.mapping))
	for k, v := range s.mapping {
		mapping[k] = v
	}

	return state{criteria: criteria, mapping: mapping, order: append([]string{}, s.order...)}
}

// maxRounds bounds the search so a pathological input fails fast instead of
// hanging, matching pdm's own resolve() default.
const maxRounds = 10000

// Resolve runs the backtracking search to a fixed point, per spec.md §4.6.
func Resolve(ctx context.Context, provider Provider, rootRequirements []Requirement, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cur := state{
		criteria: make(map[string]*Criterion),
		mapping:  make(map[string]Candidate),
	}

	for _, req := range rootRequirements {
		id := provider.Identify(req)
		cur.criteria[id] = &Criterion{Information: []RequirementInformation{{Requirement: req}}}
	}

	var backtrack []backtrackFrame

	// backtrackCauses holds the identifiers implicated in the most recent
	// backtrack, so pickIdentifier can prefer re-trying them first (spec.md
	// §4.6's is_backtrack_cause). It is replaced wholesale on each backtrack
	// rather than accumulated, so it always reflects the latest conflict.
	backtrackCauses := make(map[string]bool)

	for round := 0; round < maxRounds; round++ {
		unsatisfied := unsatisfiedIdentifiers(cur)
		if len(unsatisfied) == 0 {
			return buildResult(cur), nil
		}

		id := pickIdentifier(provider, cur, unsatisfied, backtrackCauses)
		crit := cur.criteria[id]

		if crit.Candidates == nil {
			matches, err := provider.FindMatches(ctx, id, crit.requirements())
			if err != nil {
				return nil, xerrors.Errorf("finding candidates for %s: %w", id, err)
			}

			crit.Candidates = filterSatisfying(matches, crit.requirements(), provider)
		}

		if len(crit.Candidates) == 0 {
			logger.Debug("no candidates satisfy constraints", slog.String("identifier", id))

			next, ok := popBacktrack(&backtrack)
			if !ok {
				return nil, &ResolutionImpossible{Identifier: id, Reason: "no candidate satisfies all constraints"}
			}

			backtrackCauses = map[string]bool{id: true}
			cur = next

			continue
		}

		candidate := crit.Candidates[0]
		crit.Candidates = crit.Candidates[1:]

		logger.Debug("pinning candidate", slog.String("identifier", id), slog.String("version", candidate.Version))

		next := cur.clone()
		next.mapping[id] = candidate
		next.order = append(next.order, id)

		deps, err := provider.GetDependencies(ctx, candidate)
		if err != nil {
			return nil, xerrors.Errorf("fetching dependencies of %s: %w", id, err)
		}

		conflict := false
		conflictID := ""

		for _, dep := range deps {
			depID := provider.Identify(dep)
			if depID == "" {
				continue
			}

			depCrit, exists := next.criteria[depID]
			if !exists {
				depCrit = &Criterion{}
				next.criteria[depID] = depCrit
			}

			depCrit.Information = append(depCrit.Information, RequirementInformation{Requirement: dep, Parent: &candidate})

			if depCrit.Candidates != nil {
				depCrit.Candidates = filterSatisfying(depCrit.Candidates, depCrit.requirements(), provider)
				if len(depCrit.Candidates) == 0 && !hasPinned(next, depID) {
					conflict = true
					conflictID = depID
				}
			}

			if pinned, ok := next.mapping[depID]; ok && !provider.IsSatisfiedBy(dep, pinned) {
				conflict = true
				conflictID = depID
			}
		}

		backtrack = append(backtrack, backtrackFrame{state: cur})

		if conflict {
			logger.Debug("dependency conflict, backtracking", slog.String("identifier", id))

			bnext, ok := popBacktrack(&backtrack)
			if !ok {
				return nil, &ResolutionImpossible{Identifier: id, Reason: "dependency conflict"}
			}

			backtrackCauses = map[string]bool{id: true}
			if conflictID != "" {
				backtrackCauses[conflictID] = true
			}

			cur = bnext

			continue
		}

		cur = next
	}

	return nil, &ResolutionImpossible{Identifier: "", Reason: "exceeded maximum resolution rounds"}
}

type backtrackFrame struct {
	state state
}

func popBacktrack(stack *[]backtrackFrame) (state, bool) {
	if len(*stack) == 0 {
		return state{}, false
	}

	last := (*stack)[len(*stack)-1]
	*stack = (*stack)[:len(*stack)-1]

	return last.state, true
}

func hasPinned(s state, id string) bool {
	_, ok := s.mapping[id]
	return ok
}

func unsatisfiedIdentifiers(s state) []string {
	var ids []string

	for id := range s.criteria {
		if _, ok := s.mapping[id]; !ok {
			ids = append(ids, id)
		}
	}

	return ids
}

func pickIdentifier(provider Provider, s state, candidates []string, backtrackCauses map[string]bool) string {
	best := ""
	var bestPref Preference
	first := true

	for _, id := range candidates {
		crit := s.criteria[id]

		var resolution *Candidate
		if c, ok := s.mapping[id]; ok {
			resolution = &c
		}

		depth := 0
		for _, info := range crit.Information {
			if info.Parent != nil {
				depth++
				break
			}
		}

		notRoot := true
		fileOrURL := false

		for _, info := range crit.Information {
			if info.Parent == nil {
				notRoot = false
			}

			if info.Requirement.Kind != KindNamed {
				fileOrURL = true
			}
		}

		pref := provider.GetPreference(id, resolution, crit.Candidates, crit.Information)
		pref.NotPython = id != pythonIdentifier
		pref.NotRoot = notRoot
		pref.NotFileOrURL = !fileOrURL
		pref.NotPinned = len(crit.Candidates) == 0
		pref.NotBacktrackCause = !backtrackCauses[id]
		pref.DependencyDepth = depth
		pref.NegConstraintSize = -len(crit.Information)
		pref.Identifier = id

		if first || pref.less(bestPref) {
			best = id
			bestPref = pref
			first = false
		}
	}

	return best
}

func filterSatisfying(candidates []Candidate, reqs []Requirement, provider Provider) []Candidate {
	var out []Candidate

	for _, c := range candidates {
		ok := true

		for _, r := range reqs {
			if !provider.IsSatisfiedBy(r, c) {
				ok = false
				break
			}
		}

		if ok {
			out = append(out, c)
		}
	}

	return out
}

func buildResult(s state) *Result {
	graph := make(map[string][]string)
	edges := make(map[string]map[string]Requirement)

	for id, crit := range s.criteria {
		for _, info := range crit.Information {
			parentID := ""
			if info.Parent != nil {
				parentID = info.Parent.Name
			}

			if parentID != "" {
				graph[parentID] = append(graph[parentID], id)
			}

			if edges[parentID] == nil {
				edges[parentID] = make(map[string]Requirement)
			}

			// Prefer the requirement carrying a marker when an identifier is
			// reached from the same parent through more than one line.
			if existing, ok := edges[parentID][id]; !ok || existing.Marker == "" {
				edges[parentID][id] = info.Requirement
			}
		}
	}

	return &Result{Mapping: s.mapping, Graph: graph, Edges: edges}
}
