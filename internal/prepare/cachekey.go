// Package prepare implements the candidate preparation pipeline: unpacking
// an sdist or VCS checkout, invoking a PEP 517 build-backend hook inside an
// isolated environment, and extracting the resulting distribution metadata.
package prepare

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"path/filepath"
	"regexp"

	"github.com/pipg-project/pipg/internal/envspec"
)

// CacheKeyInput is the set of fields that determine a built wheel's cache
// identity: the same source at the same URL, built for the same target
// environment, always lands at the same cache path.
type CacheKeyInput struct {
	LinkURL      string // with any #fragment stripped before hashing
	EnvSpec      envspec.EnvSpec
	Subdirectory string // optional, e.g. a monorepo subdirectory fragment
	HashName     string // e.g. "sha256", empty if the link carries no hash
	HashValue    string
}

// Key computes the sha224 hex digest of in's canonical JSON encoding, then
// splits it into four nested two-character directories so a single cache
// directory never accumulates an unbounded number of entries.
func Key(in CacheKeyInput) (digest string, dirs [4]string) {
	doc := map[string]any{
		"url":      normalizedURL(in.LinkURL),
		"env_spec": envSpecAsDict(in.EnvSpec),
	}

	if in.Subdirectory != "" {
		doc["subdirectory"] = in.Subdirectory
	}

	if in.HashName != "" {
		doc[in.HashName] = in.HashValue
	}

	// encoding/json sorts map keys, giving a stable encoding regardless of
	// map iteration order.
	encoded, _ := json.Marshal(doc)

	sum := sha256.Sum224(encoded)
	digest = hex.EncodeToString(sum[:])

	for i := range dirs {
		dirs[i] = digest[i*2 : i*2+2]
	}

	return digest, dirs
}

// Dir joins the four nested hash-prefix directories onto base.
func Dir(base string, dirs [4]string) string {
	parts := append([]string{base}, dirs[:]...)
	return filepath.Join(parts...)
}

func normalizedURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Fragment = ""

	return u.String()
}

func envSpecAsDict(e envspec.EnvSpec) map[string]any {
	tags := make([]map[string]string, len(e.SupportedTags))
	for i, t := range e.SupportedTags {
		tags[i] = map[string]string{"python": t.Python, "abi": t.ABI, "platform": t.Platform}
	}

	return map[string]any{
		"requires_python": e.RequiresPython,
		"tags":            tags,
	}
}

var commitSHAPattern = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

// IsCacheable reports whether a candidate's build result may be persisted
// across runs, per spec.md §4.5: either its link carries a content hash, or
// it is a VCS requirement pinned to an immutable commit SHA rather than a
// branch or tag ref. Anything else belongs in an ephemeral, per-run cache.
func IsCacheable(hashes map[string]string, vcsRef string) bool {
	if len(hashes) > 0 {
		return true
	}

	return vcsRef != "" && commitSHAPattern.MatchString(vcsRef)
}
