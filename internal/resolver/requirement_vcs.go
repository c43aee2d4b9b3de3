package resolver

import "strings"

// AsLine renders r back into a dependency line ParseRequirementLine can
// parse, for the round-trip law of spec.md §8 and for writing the
// "dependencies" list of a lock-file package entry.
func (r Requirement) AsLine() string {
	var b strings.Builder

	if r.Editable {
		b.WriteString("-e ")
	}

	switch r.Kind {
	case KindVcs:
		b.WriteString(r.VcsType)
		b.WriteString("+")
		b.WriteString(r.VcsURL)

		if r.VcsRef != "" {
			b.WriteString("@")
			b.WriteString(r.VcsRef)
		}

		if r.Name != "" {
			b.WriteString("#egg=")
			b.WriteString(r.Name)
		}
	case KindFile:
		if r.Name != "" {
			b.WriteString(r.Name)
			b.WriteString(" @ ")
		}

		b.WriteString(r.URL)
	default:
		b.WriteString(r.Name)

		if len(r.Extras) > 0 {
			b.WriteString("[")
			b.WriteString(strings.Join(r.Extras, ","))
			b.WriteString("]")
		}

		b.WriteString(r.Specifier)
	}

	if r.Marker != "" {
		b.WriteString("; ")
		b.WriteString(r.Marker)
	}

	return b.String()
}

var vcsPrefixes = []string{"git+", "hg+", "svn+", "bzr+"}

// ParseRequirementLine parses one dependency line in any of the three forms
// spec.md §4.3 recognizes: a named requirement, a VCS reference, or a direct
// file/URL reference. It is the general entry point; ParseRequirement remains
// the fast path for plain named lines.
func ParseRequirementLine(s string) Requirement {
	line := strings.TrimSpace(s)

	editable := false
	if strings.HasPrefix(line, "-e ") {
		editable = true
		line = strings.TrimSpace(line[len("-e "):])
	}

	if vcsType, rest, ok := stripVcsPrefix(line); ok {
		return parseVcsRequirement(vcsType, rest, editable)
	}

	if looksLikeFileRequirement(line) {
		return parseFileRequirement(line, editable)
	}

	req := ParseRequirement(line)
	req.Editable = editable

	return req
}

func stripVcsPrefix(line string) (vcsType, rest string, ok bool) {
	for _, p := range vcsPrefixes {
		if strings.HasPrefix(line, p) {
			return strings.TrimSuffix(p, "+"), line[len(p):], true
		}
	}

	return "", "", false
}

// looksLikeFileRequirement reports whether a dependency line is a direct
// path/URL reference rather than a "name specifier" line, including the
// PEP 508 direct-reference form "name @ url".
func looksLikeFileRequirement(line string) bool {
	if idx := strings.Index(line, " @ "); idx >= 0 {
		line = strings.TrimSpace(line[idx+3:])
	}

	switch {
	case strings.HasPrefix(line, "http://"), strings.HasPrefix(line, "https://"),
		strings.HasPrefix(line, "file://"):
		return true
	case strings.HasPrefix(line, "./"), strings.HasPrefix(line, "../"),
		strings.HasPrefix(line, "/"):
		return true
	case strings.HasSuffix(line, ".whl"), strings.HasSuffix(line, ".tar.gz"),
		strings.HasSuffix(line, ".zip"):
		return true
	default:
		return false
	}
}

// parseVcsRequirement parses "git+https://github.com/org/repo.git@ref#egg=name".
func parseVcsRequirement(vcsType, rest string, editable bool) Requirement {
	marker := ""
	if idx := strings.Index(rest, ";"); idx >= 0 {
		marker = strings.TrimSpace(rest[idx+1:])
		rest = rest[:idx]
	}

	name := ""
	if idx := strings.Index(rest, "#egg="); idx >= 0 {
		name = NormalizeName(rest[idx+len("#egg="):])
		rest = rest[:idx]
	} else if idx := strings.Index(rest, "#"); idx >= 0 {
		rest = rest[:idx]
	}

	ref := ""
	url := rest
	if idx := strings.LastIndex(rest, "@"); idx >= 0 && idx > strings.Index(rest, "://")+2 {
		url = rest[:idx]
		ref = rest[idx+1:]
	}

	return Requirement{
		Kind:     KindVcs,
		Name:     name,
		Marker:   marker,
		Editable: editable,
		VcsType:  vcsType,
		VcsURL:   url,
		VcsRef:   ref,
	}
}

// parseFileRequirement parses a direct path/URL reference, with an optional
// trailing "#egg=name" fragment and/or a leading "name @ url" PEP 508 form.
func parseFileRequirement(line string, editable bool) Requirement {
	marker := ""
	if idx := strings.Index(line, ";"); idx >= 0 {
		marker = strings.TrimSpace(line[idx+1:])
		line = strings.TrimSpace(line[:idx])
	}

	name := ""
	if idx := strings.Index(line, " @ "); idx >= 0 {
		name = NormalizeName(strings.TrimSpace(line[:idx]))
		line = strings.TrimSpace(line[idx+3:])
	}

	url := line
	if idx := strings.Index(line, "#egg="); idx >= 0 {
		if name == "" {
			name = NormalizeName(line[idx+len("#egg="):])
		}

		url = line[:idx]
	}

	return Requirement{
		Kind:     KindFile,
		Name:     name,
		Marker:   marker,
		Editable: editable,
		URL:      url,
	}
}
