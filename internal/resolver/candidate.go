package resolver

import (
	"sort"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

func versionOf(s string) (pep440.Version, error) {
	return pep440.Parse(s)
}

// Candidate is a single resolvable version of a package, as surfaced by a
// repository. Link is empty for a locked/installed candidate with no
// download source (e.g. a self-reference).
type Candidate struct {
	Name           string
	Version        string
	Requirement    Requirement // the requirement that produced this candidate (VCS/file pin, if any)
	RequiresPython string      // raw specifier string, e.g. ">=3.8"
	Link           string      // download URL, empty for editable/local
	IsWheel        bool
	Yanked         bool
	YankedReason   string
	Hashes         map[string]string // algorithm -> hex digest
}

// SortCandidates orders candidates by the preference pdm's _find_candidates
// applies before the resolver tries them in order: non-yanked before yanked,
// wheels before sdists, newest version first.
func SortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]

		if a.Yanked != b.Yanked {
			return !a.Yanked
		}

		if a.IsWheel != b.IsWheel {
			return a.IsWheel
		}

		av, aerr := versionOf(a.Version)
		bv, berr := versionOf(b.Version)

		if aerr == nil && berr == nil {
			return av.GreaterThan(bv)
		}

		return a.Version > b.Version
	})
}
