package resolver

import "sort"

// edgeInfo is one reversed dependency edge: id was reached from parentID via
// req. parentID is "" for a root requirement.
type edgeInfo struct {
	parentID string
	req      Requirement
}

// InheritMarkers runs the post-solve marker/group inheritance pass of
// spec.md §4.8 over result, mutating result.Mapping in place: each
// candidate's Requirement.Marker becomes the disjunction over its parents of
// (parent marker AND edge marker), and its Requirement.Groups becomes the
// union of every edge's groups reaching it. rootPythonSpec is intersected
// into the merged marker's python-only component; a candidate whose merged
// constraint becomes impossible is removed, along with anything that only
// remained reachable through it.
//
// Grounded on the original implementation's trace_graph /
// _calculate_markers_and_pyspecs work-list, which makes repeated passes over
// still-unresolved nodes until no progress is made, then runs one final
// best-effort pass to fix up any remaining circular cluster.
func InheritMarkers(result *Result, rootPythonSpec PythonSpecSet) {
	rev := reverseEdges(result.Edges)

	markers := make(map[string]Marker, len(result.Mapping))
	groups := make(map[string]map[string]bool, len(result.Mapping))

	pending := make(map[string]bool, len(result.Mapping))
	for id := range result.Mapping {
		pending[id] = true
	}

	for progress := true; progress && len(pending) > 0; {
		progress = false

		for id := range pending {
			m, g, ok := mergeFromParents(rev[id], markers, groups, true)
			if !ok {
				continue
			}

			markers[id] = m
			groups[id] = g
			delete(pending, id)
			progress = true
		}
	}

	// Circular cluster fixup: resolve whatever is left using parents'
	// possibly-still-partial markers instead of demanding completeness.
	for id := range pending {
		m, g, _ := mergeFromParents(rev[id], markers, groups, false)
		markers[id] = m
		groups[id] = g
	}

	for id, m := range markers {
		c, ok := result.Mapping[id]
		if !ok {
			continue
		}

		_, pyspec := m.SplitPySpec()

		if pyspec.Intersect(rootPythonSpec).IsImpossible() {
			delete(result.Mapping, id)
			continue
		}

		c.Requirement.Marker = m.String()
		c.Requirement.Groups = sortedGroupNames(groups[id])
		result.Mapping[id] = c
	}
}

func reverseEdges(edges map[string]map[string]Requirement) map[string][]edgeInfo {
	rev := make(map[string][]edgeInfo)

	for parentID, children := range edges {
		for childID, req := range children {
			rev[childID] = append(rev[childID], edgeInfo{parentID: parentID, req: req})
		}
	}

	return rev
}

// mergeFromParents computes the merged marker/groups for a node from its
// parent edges. When strict is true, any parent whose own marker is not yet
// known causes ok=false (the caller should retry on a later pass); when
// false, an unknown parent is treated as the always-true marker.
func mergeFromParents(parentEdges []edgeInfo, markers map[string]Marker, groups map[string]map[string]bool, strict bool) (Marker, map[string]bool, bool) {
	if len(parentEdges) == 0 {
		return Marker{}, map[string]bool{}, true
	}

	var merged Marker

	mergedGroups := make(map[string]bool)
	first := true

	for _, pe := range parentEdges {
		var parentMarker Marker

		if pe.parentID != "" {
			pm, ok := markers[pe.parentID]
			if !ok {
				if strict {
					return Marker{}, nil, false
				}
			} else {
				parentMarker = pm
			}
		}

		childMarker := parentMarker.And(ParseMarker(pe.req.Marker))

		if first {
			merged = childMarker
			first = false
		} else {
			merged = merged.Or(childMarker)
		}

		for _, g := range pe.req.Groups {
			mergedGroups[g] = true
		}

		if pe.parentID != "" {
			for g := range groups[pe.parentID] {
				mergedGroups[g] = true
			}
		}
	}

	return merged, mergedGroups, true
}

func sortedGroupNames(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}

	names := make([]string, 0, len(set))
	for g := range set {
		names = append(names, g)
	}

	sort.Strings(names)

	return names
}
