package resolver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// version3 is a completed (major, minor, patch) tuple used for bound tracking.
// A patch of -1 in the wildcard-exclude set means "any patch at this minor".
type version3 = [3]int

var (
	minVersion = version3{-1, -1, -1}
	maxVersion = version3{99, 99, 99}
)

// maxPatchTable bounds the highest known patch release for a given (major, minor)
// so that union across a gap can be materialized as explicit wildcard exclusions.
var maxPatchTable = map[[2]int]int{
	{2, 0}: 1, {2, 1}: 3, {2, 2}: 3, {2, 3}: 7, {2, 4}: 6, {2, 5}: 6,
	{2, 6}: 9, {2, 7}: 18,
	{3, 0}: 1, {3, 1}: 5, {3, 2}: 6, {3, 3}: 7, {3, 4}: 10, {3, 5}: 10,
	{3, 6}: 10, {3, 7}: 6, {3, 8}: 20, {3, 9}: 21, {3, 10}: 16, {3, 11}: 11,
	{3, 12}: 8, {3, 13}: 5,
}

func maxPatch(major, minor int) int {
	if p, ok := maxPatchTable[[2]int{major, minor}]; ok {
		return p
	}
	return 20
}

// exclusion is one !=X.Y.Z or !=X.Y.* entry. Wildcard exclusions have Wildcard=true
// and Patch is ignored.
type exclusion struct {
	Major, Minor, Patch int
	Wildcard            bool
}

func (e exclusion) key(length int) [3]int {
	if e.Wildcard {
		return [3]int{e.Major, e.Minor, -1}
	}
	return [3]int{e.Major, e.Minor, e.Patch}
}

func (e exclusion) less(o exclusion) bool {
	// wildcard excludes sort before concrete ones at the same prefix, per spec.md §4.1.
	a := [3]int{e.Major, e.Minor, e.Patch}
	b := [3]int{o.Major, o.Minor, o.Patch}
	if e.Wildcard {
		a[2] = -1
	}
	if o.Wildcard {
		b[2] = -1
	}
	return a != b && lessVersion(a, b)
}

func lessVersion(a, b version3) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func geVersion(a, b version3) bool  { return !lessVersion(a, b) }
func gtVersion(a, b version3) bool  { return lessVersion(b, a) }
func leVersion(a, b version3) bool  { return !lessVersion(b, a) }
func eqVersion(a, b version3) bool  { return a == b }

// PythonSpecSet is the normalized Python-version range algebra of spec.md §3/§4.1:
// a lower (inclusive) bound, an upper (exclusive) bound, and a set of exclusions.
type PythonSpecSet struct {
	lower, upper version3
	excludes     []exclusion
}

// UniversalPythonSpecSet is the set containing every version.
func UniversalPythonSpecSet() PythonSpecSet {
	return PythonSpecSet{lower: minVersion, upper: maxVersion}
}

// ImpossiblePythonSpecSet is the set containing no version.
func ImpossiblePythonSpecSet() PythonSpecSet {
	return PythonSpecSet{lower: maxVersion, upper: minVersion}
}

// ParsePythonSpecSet parses a comma-separated list of Python version specifiers
// (e.g. ">=3.8,<3.12,!=3.9.*"). The empty string is the universal set.
func ParsePythonSpecSet(s string) (PythonSpecSet, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return UniversalPythonSpecSet(), nil
	}

	lower, upper := minVersion, maxVersion
	var excludes []exclusion

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		op, verStr, err := splitSpecifier(part)
		if err != nil {
			return PythonSpecSet{}, err
		}

		ver, wildcard, specified, err := parseVersionTuple(verStr)
		if err != nil {
			return PythonSpecSet{}, err
		}

		switch op {
		case "==", "===":
			if wildcard {
				lower = completeVersion(ver)
				upper = bumpVersion(ver, 1)
			} else {
				v := completeVersion(ver)
				lower = v
				upper = bumpVersion(v, 2)
			}
		case "!=":
			if wildcard {
				excludes = append(excludes, exclusion{ver[0], ver[1], 0, true})
			} else {
				v := completeVersion(ver)
				excludes = append(excludes, exclusion{v[0], v[1], v[2], false})
			}
		case ">=", ">":
			v := completeVersion(ver)
			newLower := v
			if op == ">" {
				newLower = bumpVersion(v, 2)
			}
			if gtVersion(newLower, lower) {
				lower = newLower
			}
		case "<=", "<":
			v := completeVersion(ver)
			newUpper := v
			if op == "<=" {
				newUpper = bumpVersion(v, 2)
			}
			if lessVersion(newUpper, upper) {
				upper = newUpper
			}
		case "~=":
			// The compatible-release clause bumps relative to however many
			// components were actually written, per pdm's bump_version(v, -2):
			// ~=3.9 -> >=3.9,<4.0 (bump index 0), ~=3.9.1 -> >=3.9.1,<3.10.0
			// (bump index 1).
			if specified < 2 {
				return PythonSpecSet{}, fmt.Errorf("~= requires at least two version components: %q", verStr)
			}
			newLower := completeVersion(ver)
			newUpper := bumpVersion(ver, specified-2)
			if lessVersion(newUpper, upper) {
				upper = newUpper
			}
			if gtVersion(newLower, lower) {
				lower = newLower
			}
		default:
			return PythonSpecSet{}, fmt.Errorf("unsupported python version specifier: %s%s", op, verStr)
		}
	}

	return mergeBoundsAndExcludes(lower, upper, excludes), nil
}

// splitSpecifier splits an operator-prefixed version specifier like ">=3.8".
func splitSpecifier(s string) (op, version string, err error) {
	ops := []string{"===", "~=", "==", "!=", ">=", "<=", ">", "<"}
	for _, o := range ops {
		if strings.HasPrefix(s, o) {
			return o, strings.TrimSpace(s[len(o):]), nil
		}
	}
	return "", "", fmt.Errorf("invalid python version specifier: %q", s)
}

// parseVersionTuple parses "3", "3.8", "3.8.1", or "3.8.*" into up to 3 ints.
// wildcard reports whether the final component was "*"; specified is the
// number of concrete (non-wildcard) components actually written, which the
// "~=" operator needs to bump relative to the tuple's original length
// instead of always assuming three components.
func parseVersionTuple(s string) (ver [3]int, wildcard bool, specified int, err error) {
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return ver, false, 0, fmt.Errorf("invalid python version: %q", s)
	}

	for i, p := range parts {
		if p == "*" && i == len(parts)-1 {
			wildcard = true
			specified = i
			break
		}

		n, err := strconv.Atoi(p)
		if err != nil {
			return ver, false, 0, fmt.Errorf("invalid python version component %q in %q: %w", p, s, err)
		}
		ver[i] = n
		specified = i + 1
	}

	return ver, wildcard, specified, nil
}

func completeVersion(v [3]int) version3 { return v }

// bumpVersion increments the component at index and zeroes everything after it.
func bumpVersion(v [3]int, keep int) version3 {
	out := v
	if keep < 3 {
		out[keep]++
		for i := keep + 1; i < 3; i++ {
			out[i] = 0
		}
	}
	return out
}

func mergeBoundsAndExcludes(lower, upper version3, excludes []exclusion) PythonSpecSet {
	if lower == minVersion && upper == maxVersion {
		sortExcludes(excludes)
		return PythonSpecSet{lower: lower, upper: upper, excludes: excludes}
	}

	sortExcludes(excludes)

	var wildcardExcludes [][2]int
	kept := excludes[:0:0]

	for _, e := range excludes {
		covered := false
		for _, wv := range wildcardExcludes {
			if e.Major == wv[0] && e.Minor == wv[1] {
				covered = true
				break
			}
		}
		if covered {
			continue
		}

		if e.Wildcard {
			wildcardExcludes = append(wildcardExcludes, [2]int{e.Major, e.Minor})
			vv := version3{e.Major, e.Minor, 0}
			vvUpper := version3{e.Major, e.Minor + 1, 0}
			if lessVersion(vvUpper, lower) || gtVersion(vv, upper) && !eqVersion(vv, upper) {
				continue
			}
			switch {
			case eqVersion(vv, version3{lower[0], lower[1], 0}) || (lower[0] == e.Major && lower[1] == e.Minor):
				lower = bumpVersion(version3{e.Major, e.Minor, 0}, 1)
			case upper[0] == e.Major && upper[1] == e.Minor:
				upper = version3{e.Major, e.Minor, 0}
			default:
				kept = append(kept, e)
			}
			continue
		}

		v := version3{e.Major, e.Minor, e.Patch}
		if lessVersion(v, lower) || geVersion(v, upper) {
			continue
		}
		if eqVersion(v, lower) {
			lower = bumpVersion(v, 2)
			continue
		}
		kept = append(kept, e)
	}

	sortExcludes(kept)
	return PythonSpecSet{lower: lower, upper: upper, excludes: kept}
}

func sortExcludes(excludes []exclusion) {
	sort.Slice(excludes, func(i, j int) bool { return excludes[i].less(excludes[j]) })
}

// IsImpossible reports whether the set admits no version.
func (s PythonSpecSet) IsImpossible() bool {
	if s.lower == minVersion || s.upper == maxVersion {
		return false
	}
	return geVersion(s.lower, s.upper)
}

// IsAllowAll reports whether the set admits every version.
func (s PythonSpecSet) IsAllowAll() bool {
	if s.IsImpossible() {
		return false
	}
	return s.lower == minVersion && s.upper == maxVersion && len(s.excludes) == 0
}

// Intersect returns a ∩ b.
func (s PythonSpecSet) Intersect(o PythonSpecSet) PythonSpecSet {
	if s.IsImpossible() || o.IsImpossible() {
		return ImpossiblePythonSpecSet()
	}
	if s.IsAllowAll() {
		return o
	}
	if o.IsAllowAll() {
		return s
	}

	lower := s.lower
	if gtVersion(o.lower, lower) {
		lower = o.lower
	}
	upper := s.upper
	if lessVersion(o.upper, upper) {
		upper = o.upper
	}

	excludes := append(append([]exclusion{}, s.excludes...), o.excludes...)
	return mergeBoundsAndExcludes(lower, upper, dedupExcludes(excludes))
}

// Union returns a ∪ b, populating any gap between disjoint ranges with explicit
// exclusions from the max-patch table (spec.md §4.1).
func (s PythonSpecSet) Union(o PythonSpecSet) PythonSpecSet {
	if s.IsImpossible() {
		return o
	}
	if o.IsImpossible() {
		return s
	}
	if s.IsAllowAll() {
		return s
	}
	if o.IsAllowAll() {
		return o
	}

	left, right := s, o
	if gtVersion(left.lower, right.lower) {
		left, right = right, left
	}

	excludes := intersectExcludes(left.excludes, right.excludes)
	lower := left.lower
	upper := left.upper
	if gtVersion(right.upper, upper) {
		upper = right.upper
	}

	if gtVersion(right.lower, left.upper) {
		excludes = append(excludes, populateRange(left.upper, right.lower)...)
	}

	return mergeBoundsAndExcludes(lower, upper, dedupExcludes(excludes))
}

// populateRange materializes the half-open gap [lower, upper) as a minimal list
// of wildcard/concrete exclusions, using the per-minor max-patch table.
func populateRange(lower, upper version3) []exclusion {
	var out []exclusion
	prev := lower

	for lessVersion(prev, upper) {
		if prev[1] == 0 && prev[2] == 0 {
			next := bumpVersion(prev, 0)
			if leVersion(next, upper) {
				out = append(out, exclusion{prev[0], 0, 0, false}) // placeholder, replaced below
				out[len(out)-1] = exclusion{prev[0], -1, 0, false}
				out[len(out)-1].Wildcard = true
				out[len(out)-1].Minor = 0
				// Represent "major.*" by excluding minor 0..maxMinorForMajor is not tracked;
				// fall back to per-minor population for the whole major version.
				out = out[:len(out)-1]
				for min := 0; min <= 99; min++ {
					if min > 40 {
						break
					}
					out = append(out, exclusion{prev[0], min, 0, true})
				}
				prev = next
				continue
			}
		}

		if prev[2] == 0 {
			next := bumpVersion(prev, 1)
			if leVersion(next, upper) {
				out = append(out, exclusion{prev[0], prev[1], 0, true})
				prev = next
				continue
			}
			for prev[2] <= maxPatch(prev[0], prev[1]) && lessVersion(prev, upper) {
				out = append(out, exclusion{prev[0], prev[1], prev[2], false})
				prev = bumpVersion(prev, 2)
			}
			break
		}

		next := bumpVersion(prev, 1)
		if leVersion(next, upper) {
			for z := prev[2]; z <= maxPatch(prev[0], prev[1]); z++ {
				out = append(out, exclusion{prev[0], prev[1], z, false})
			}
			prev = next
			continue
		}

		for lessVersion(prev, upper) {
			out = append(out, exclusion{prev[0], prev[1], prev[2], false})
			prev = bumpVersion(prev, 2)
		}
		break
	}

	return out
}

func dedupExcludes(in []exclusion) []exclusion {
	seen := make(map[exclusion]bool, len(in))
	out := in[:0:0]
	for _, e := range in {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func intersectExcludes(a, b []exclusion) []exclusion {
	bs := make(map[exclusion]bool, len(b))
	for _, e := range b {
		bs[e] = true
	}
	var out []exclusion
	for _, e := range a {
		if bs[e] {
			out = append(out, e)
		}
	}
	return out
}

// IsSubset reports whether s ⊆ o.
func (s PythonSpecSet) IsSubset(o PythonSpecSet) bool {
	if s.IsImpossible() {
		return true
	}
	if o.IsAllowAll() {
		return true
	}
	if lessVersion(s.lower, o.lower) || gtVersion(s.upper, o.upper) {
		return false
	}
	oExcludesInRange := restrictToRange(o.excludes, s.lower, s.upper)
	return excludeSubset(oExcludesInRange, s.excludes)
}

// IsSuperset reports whether s ⊇ o.
func (s PythonSpecSet) IsSuperset(o PythonSpecSet) bool {
	return o.IsSubset(s)
}

func restrictToRange(excludes []exclusion, lower, upper version3) []exclusion {
	var out []exclusion
	for _, e := range excludes {
		v := version3{e.Major, e.Minor, e.Patch}
		if e.Wildcard {
			out = append(out, e)
			continue
		}
		if lessVersion(v, lower) || geVersion(v, upper) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func excludeSubset(a, b []exclusion) bool {
	bs := make(map[exclusion]bool, len(b))
	for _, e := range b {
		bs[e] = true
	}
	for _, e := range a {
		if !bs[e] {
			return false
		}
	}
	return true
}

// Contains reports whether the version string (e.g. "3.9.1") is admitted by the set.
func (s PythonSpecSet) Contains(versionStr string) bool {
	if s.IsImpossible() {
		return false
	}
	if s.IsAllowAll() {
		return true
	}

	ver, _, _, err := parseVersionTuple(versionStr)
	if err != nil {
		return false
	}
	v := completeVersion(ver)

	if lessVersion(v, s.lower) || geVersion(v, s.upper) {
		return false
	}

	for _, e := range s.excludes {
		if e.Wildcard {
			if v[0] == e.Major && v[1] == e.Minor {
				return false
			}
			continue
		}
		if v == (version3{e.Major, e.Minor, e.Patch}) {
			return false
		}
	}

	return true
}

// MaxMajorMinor returns the highest (major, minor) admitted, or ok=false for an
// unbounded-above set.
func (s PythonSpecSet) MaxMajorMinor() (major, minor int, ok bool) {
	if s.upper == maxVersion {
		return 0, 0, false
	}
	if s.upper[2] == 0 {
		if s.upper[1] == 0 {
			return s.upper[0] - 1, 99, true
		}
		return s.upper[0], s.upper[1] - 1, true
	}
	return s.upper[0], s.upper[1], true
}

// String renders the set back into comma-separated specifier form.
func (s PythonSpecSet) String() string {
	if s.IsImpossible() {
		return "impossible"
	}
	if s.IsAllowAll() {
		return ""
	}

	var parts []string
	if s.lower != minVersion {
		parts = append(parts, ">="+formatVersion(s.lower))
	}
	if s.upper != maxVersion {
		parts = append(parts, "<"+formatVersion(s.upper))
	}
	for _, e := range s.excludes {
		if e.Wildcard {
			parts = append(parts, fmt.Sprintf("!=%d.%d.*", e.Major, e.Minor))
		} else {
			parts = append(parts, fmt.Sprintf("!=%d.%d.%d", e.Major, e.Minor, e.Patch))
		}
	}

	return strings.Join(parts, ",")
}

func formatVersion(v version3) string {
	trimmed := v[:]
	for len(trimmed) > 1 && trimmed[len(trimmed)-1] == 0 {
		trimmed = trimmed[:len(trimmed)-1]
	}
	strs := make([]string, len(trimmed))
	for i, n := range trimmed {
		strs[i] = strconv.Itoa(n)
	}
	return strings.Join(strs, ".")
}

// AsMarkerString renders the set as a PEP 508 marker expression using
// python_version/python_full_version, per spec.md §4.1.
func (s PythonSpecSet) AsMarkerString() string {
	if s.IsAllowAll() {
		return ""
	}
	if s.IsImpossible() {
		return `python_version < "0"`
	}

	var parts []string
	if s.lower != minVersion {
		parts = append(parts, fmt.Sprintf(`python_version >= "%s"`, formatVersion(s.lower)))
	}
	if s.upper != maxVersion {
		parts = append(parts, fmt.Sprintf(`python_version < "%s"`, formatVersion(s.upper)))
	}

	var wildcardExcl, concreteExcl []string
	for _, e := range s.excludes {
		if e.Wildcard {
			wildcardExcl = append(wildcardExcl, fmt.Sprintf("%d.%d", e.Major, e.Minor))
		} else {
			concreteExcl = append(concreteExcl, fmt.Sprintf("%d.%d.%d", e.Major, e.Minor, e.Patch))
		}
	}
	if len(wildcardExcl) > 0 {
		sort.Strings(wildcardExcl)
		parts = append(parts, fmt.Sprintf(`python_version not in "%s"`, strings.Join(wildcardExcl, ", ")))
	}
	if len(concreteExcl) > 0 {
		sort.Strings(concreteExcl)
		parts = append(parts, fmt.Sprintf(`python_full_version not in "%s"`, strings.Join(concreteExcl, ", ")))
	}

	return strings.Join(parts, " and ")
}
