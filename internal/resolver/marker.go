package resolver

import (
	"strings"
)

// markerNode is a node in a parsed PEP 508 marker expression tree: either a
// leaf comparison ("python_version" ">=" "3.8") or an "and"/"or" of children.
type markerNode struct {
	op       string // "and", "or", or "" for a leaf
	left     string // leaf only
	cmp      string // leaf only
	right    string // leaf only
	children []markerNode
}

// Marker is a parsed, immutable PEP 508 environment marker expression.
type Marker struct {
	raw  string
	node markerNode
}

// ParseMarker parses a PEP 508 marker expression. An empty string parses to
// the always-true marker.
func ParseMarker(s string) Marker {
	s = strings.TrimSpace(s)
	return Marker{raw: s, node: parseMarkerNode(s)}
}

func parseMarkerNode(s string) markerNode {
	s = strings.TrimSpace(s)
	if s == "" {
		return markerNode{op: "and"} // no children => vacuously true
	}

	if orParts := splitOutside(s, " or "); len(orParts) > 1 {
		children := make([]markerNode, len(orParts))
		for i, p := range orParts {
			children[i] = parseMarkerNode(strings.TrimSpace(stripParens(p)))
		}

		return markerNode{op: "or", children: children}
	}

	if andParts := splitOutside(s, " and "); len(andParts) > 1 {
		children := make([]markerNode, len(andParts))
		for i, p := range andParts {
			children[i] = parseMarkerNode(strings.TrimSpace(stripParens(p)))
		}

		return markerNode{op: "and", children: children}
	}

	s = stripParens(s)

	m := markerTermRe.FindStringSubmatch(s)
	if m == nil {
		return markerNode{op: "and"}
	}

	return markerNode{left: m[1], cmp: m[2], right: m[3]}
}

func stripParens(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && balancedParens(s[1:len(s)-1]) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	return s
}

func balancedParens(s string) bool {
	depth := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}

	return depth == 0
}

// String renders the marker back to PEP 508 text, parenthesizing an "or"
// operand nested inside an "and" join (mirrors python-pdm's Marker.__and__).
func (m Marker) String() string {
	return renderMarkerNode(m.node)
}

func renderMarkerNode(n markerNode) string {
	if n.op == "" {
		if n.cmp == "" {
			return ""
		}

		return n.left + " " + n.cmp + " " + n.right
	}

	if len(n.children) == 0 {
		return ""
	}

	parts := make([]string, 0, len(n.children))

	for _, c := range n.children {
		s := renderMarkerNode(c)
		if s == "" {
			continue
		}

		if n.op == "and" && c.op == "or" {
			s = "(" + s + ")"
		}

		parts = append(parts, s)
	}

	sep := " and "
	if n.op == "or" {
		sep = " or "
	}

	return strings.Join(parts, sep)
}

// IsEmpty reports whether the marker has no constraints (always true).
func (m Marker) IsEmpty() bool {
	return m.String() == ""
}

// And combines two markers with "and", flattening the trivial empty case.
func (m Marker) And(o Marker) Marker {
	if m.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return m
	}

	node := markerNode{op: "and", children: []markerNode{m.node, o.node}}

	return Marker{raw: renderMarkerNode(node), node: node}
}

// Or combines two markers with "or".
func (m Marker) Or(o Marker) Marker {
	if m.IsEmpty() || o.IsEmpty() {
		return Marker{}
	}

	node := markerNode{op: "or", children: []markerNode{m.node, o.node}}

	return Marker{raw: renderMarkerNode(node), node: node}
}

// Evaluate reports whether the marker is satisfied in the given environment.
// Unlike the package-level EvalMarker, this walks the parsed tree so
// "extra == \"x\""-mixed expressions evaluate correctly once extras are
// supplied via activeExtras.
func (m Marker) Evaluate(env MarkerEnv, activeExtras map[string]bool) bool {
	return evalMarkerNode(m.node, env, activeExtras)
}

func evalMarkerNode(n markerNode, env MarkerEnv, activeExtras map[string]bool) bool {
	if n.op == "" {
		if n.cmp == "" {
			return true
		}

		return evalMarkerLeaf(n, env, activeExtras)
	}

	if len(n.children) == 0 {
		return true
	}

	if n.op == "or" {
		for _, c := range n.children {
			if evalMarkerNode(c, env, activeExtras) {
				return true
			}
		}

		return false
	}

	for _, c := range n.children {
		if !evalMarkerNode(c, env, activeExtras) {
			return false
		}
	}

	return true
}

func evalMarkerLeaf(n markerNode, env MarkerEnv, activeExtras map[string]bool) bool {
	lVar := unquote(n.left)
	if lVar == "extra" {
		return evalExtraTerm(unquote(n.right), n.cmp, activeExtras)
	}

	rVar := unquote(n.right)
	if rVar == "extra" {
		return evalExtraTerm(unquote(n.left), n.cmp, activeExtras)
	}

	left := resolveMarkerValue(n.left, env)
	right := resolveMarkerValue(n.right, env)

	if isVersionVariable(lVar) || isVersionVariable(rVar) {
		return compareVersionMarker(left, n.cmp, right)
	}

	return compareStringMarker(left, n.cmp, right)
}

func evalExtraTerm(extraName, op string, activeExtras map[string]bool) bool {
	has := activeExtras[extraName]

	switch op {
	case "==":
		return has
	case "!=":
		return !has
	default:
		return has
	}
}

// SplitPySpec separates the marker into a (rest, PythonSpecSet) pair, per
// spec.md §4.1: a marker built solely from python_version/python_full_version
// comparisons joined by "and" collapses entirely into the PythonSpecSet,
// leaving an empty rest marker. A marker that contains an "or" anywhere and
// also mixes python and non-python terms anywhere is not split: it is
// returned unchanged with an allow-all spec.
func (m Marker) SplitPySpec() (rest Marker, pyspec PythonSpecSet) {
	if m.IsEmpty() {
		return m, UniversalPythonSpecSet()
	}

	if containsOr(m.node) && mixesPythonAndOther(m.node) {
		return m, UniversalPythonSpecSet()
	}

	if onlyPythonKeys(m.node) {
		spec, ok := buildPySpec(m.node)
		if !ok {
			return m, UniversalPythonSpecSet()
		}

		return Marker{}, spec
	}

	if m.node.op != "and" {
		return m, UniversalPythonSpecSet()
	}

	var restChildren []markerNode

	spec := UniversalPythonSpecSet()
	any := false

	for _, c := range m.node.children {
		if onlyPythonKeys(c) {
			s, ok := buildPySpec(c)
			if ok {
				spec = spec.Intersect(s)
				any = true

				continue
			}
		}

		restChildren = append(restChildren, c)
	}

	if !any {
		return m, UniversalPythonSpecSet()
	}

	if len(restChildren) == 0 {
		return Marker{}, spec
	}

	if len(restChildren) == 1 {
		return Marker{raw: renderMarkerNode(restChildren[0]), node: restChildren[0]}, spec
	}

	node := markerNode{op: "and", children: restChildren}

	return Marker{raw: renderMarkerNode(node), node: node}, spec
}

func containsOr(n markerNode) bool {
	if n.op == "or" {
		return true
	}

	for _, c := range n.children {
		if containsOr(c) {
			return true
		}
	}

	return false
}

func mixesPythonAndOther(n markerNode) bool {
	return !onlyPythonKeys(n) && !onlyNonPythonKeys(n)
}

func onlyPythonKeys(n markerNode) bool {
	if n.op == "" {
		if n.cmp == "" {
			return true
		}

		v := unquote(n.left)

		return isVersionVariable(v) || isVersionVariable(unquote(n.right))
	}

	for _, c := range n.children {
		if !onlyPythonKeys(c) {
			return false
		}
	}

	return true
}

func onlyNonPythonKeys(n markerNode) bool {
	if n.op == "" {
		if n.cmp == "" {
			return true
		}

		v := unquote(n.left)

		return !isVersionVariable(v) && !isVersionVariable(unquote(n.right))
	}

	for _, c := range n.children {
		if !onlyNonPythonKeys(c) {
			return false
		}
	}

	return true
}

// buildPySpec reduces a python-only marker node tree into a PythonSpecSet,
// unioning "or" groups and intersecting "and" groups, mirroring
// _build_pyspec_from_marker.
func buildPySpec(n markerNode) (PythonSpecSet, bool) {
	if n.op == "" {
		if n.cmp == "" {
			return UniversalPythonSpecSet(), true
		}

		return leafToPySpec(n)
	}

	if len(n.children) == 0 {
		return UniversalPythonSpecSet(), true
	}

	result, ok := buildPySpec(n.children[0])
	if !ok {
		return PythonSpecSet{}, false
	}

	for _, c := range n.children[1:] {
		s, ok := buildPySpec(c)
		if !ok {
			return PythonSpecSet{}, false
		}

		if n.op == "or" {
			result = result.Union(s)
		} else {
			result = result.Intersect(s)
		}
	}

	return result, true
}

func leafToPySpec(n markerNode) (PythonSpecSet, bool) {
	value := unquote(n.right)
	if !isVersionVariable(unquote(n.left)) {
		value = unquote(n.left)
	}

	op := n.cmp

	switch op {
	case "in", "not in":
		var values []string
		for _, v := range strings.Fields(strings.ReplaceAll(value, ",", " ")) {
			values = append(values, v)
		}

		result := ImpossiblePythonSpecSet()
		if op == "not in" {
			result = UniversalPythonSpecSet()
		}

		for _, v := range values {
			s, err := ParsePythonSpecSet("==" + v)
			if err != nil {
				return PythonSpecSet{}, false
			}

			if op == "in" {
				result = result.Union(s)
			} else {
				excl, err := ParsePythonSpecSet("!=" + v)
				if err != nil {
					return PythonSpecSet{}, false
				}

				result = result.Intersect(excl)
			}
		}

		return result, true
	default:
		goOp := op
		if op == "==" || op == "!=" {
			if strings.Count(value, ".") < 2 {
				value += ".*"
			}
		}

		s, err := ParsePythonSpecSet(goOp + value)
		if err != nil {
			return PythonSpecSet{}, false
		}

		return s, true
	}
}

// SplitExtras extracts the top-level "extra == \"x\""/"extra in \"a, b\""
// terms from a marker, when the marker is entirely an "and" of such terms
// (optionally alongside other terms). Returns the extra names and the
// marker with those terms removed. ok is false if extras are mixed with
// other terms under an "or", matching split_marker_extras' refusal case.
func (m Marker) SplitExtras() (extras []string, rest Marker, ok bool) {
	if m.IsEmpty() {
		return nil, m, true
	}

	if containsOr(m.node) && mixesExtraAndOther(m.node) {
		return nil, m, false
	}

	if m.node.op != "and" {
		if isExtraLeaf(m.node) {
			return extraNamesFromLeaf(m.node), Marker{}, true
		}

		return nil, m, true
	}

	var restChildren []markerNode

	for _, c := range m.node.children {
		if isExtraLeaf(c) {
			extras = append(extras, extraNamesFromLeaf(c)...)
			continue
		}

		restChildren = append(restChildren, c)
	}

	switch len(restChildren) {
	case 0:
		return extras, Marker{}, true
	case 1:
		return extras, Marker{raw: renderMarkerNode(restChildren[0]), node: restChildren[0]}, true
	default:
		node := markerNode{op: "and", children: restChildren}
		return extras, Marker{raw: renderMarkerNode(node), node: node}, true
	}
}

func isExtraLeaf(n markerNode) bool {
	return n.op == "" && n.cmp != "" && (unquote(n.left) == "extra" || unquote(n.right) == "extra")
}

func extraNamesFromLeaf(n markerNode) []string {
	value := unquote(n.right)
	if unquote(n.left) == "extra" {
		value = unquote(n.right)
	} else {
		value = unquote(n.left)
	}

	if n.cmp == "in" || n.cmp == "not in" {
		var out []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}

		return out
	}

	return []string{value}
}

func mixesExtraAndOther(n markerNode) bool {
	hasExtra, hasOther := false, false
	scanExtraMix(n, &hasExtra, &hasOther)

	return hasExtra && hasOther
}

func scanExtraMix(n markerNode, hasExtra, hasOther *bool) {
	if n.op == "" {
		if n.cmp == "" {
			return
		}

		if isExtraLeaf(n) {
			*hasExtra = true
		} else {
			*hasOther = true
		}

		return
	}

	for _, c := range n.children {
		scanExtraMix(c, hasExtra, hasOther)
	}
}
