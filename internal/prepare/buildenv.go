package prepare

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IsolatedEnv is the two-layer (shared + overlay) prefix environment a PEP
// 517 build-backend hook runs inside, per spec.md §4.5's build isolation
// contract: a shared base deduplicated by the hash of build-system.requires,
// and a per-source overlay on top of it.
type IsolatedEnv struct {
	Shared  string
	Overlay string
	SiteDir string
	LibDirs []string
	BinDirs []string
}

// SharedEnvKey derives a stable cache key for the shared build-system
// environment from its requires list, independent of the order the
// pyproject.toml lists them in.
func SharedEnvKey(requires []string) string {
	sorted := append([]string(nil), requires...)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))

	return hex.EncodeToString(sum[:])[:16]
}

// NewIsolatedEnv lays out bin/lib directories under sharedDir and
// overlayDir (both already allocated by the caller, typically tracked temp
// directories) and writes the synthetic sitecustomize.py that strips user
// and system site-packages before re-adding the shared+overlay lib dirs.
func NewIsolatedEnv(sharedDir, overlayDir string) (*IsolatedEnv, error) {
	env := &IsolatedEnv{
		Shared:  sharedDir,
		Overlay: overlayDir,
		SiteDir: filepath.Join(overlayDir, "site"),
		LibDirs: []string{filepath.Join(overlayDir, "lib"), filepath.Join(sharedDir, "lib")},
		BinDirs: []string{filepath.Join(overlayDir, "bin"), filepath.Join(sharedDir, "bin")},
	}

	if err := os.MkdirAll(env.SiteDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating isolated site dir: %w", err)
	}

	script := filepath.Join(env.SiteDir, "sitecustomize.py")
	if err := os.WriteFile(script, []byte(siteCustomizeScript(env.LibDirs)), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", script, err)
	}

	return env, nil
}

func siteCustomizeScript(libDirs []string) string {
	var b strings.Builder

	b.WriteString("import sys, os, site\n\n")
	b.WriteString("original_sys_path = sys.path[:]\n")
	b.WriteString("known_paths = set()\n")
	b.WriteString("site.addusersitepackages(known_paths)\n")
	b.WriteString("site.addsitepackages(known_paths)\n")
	b.WriteString("known_paths = {os.path.normcase(p) for p in known_paths}\n")
	b.WriteString("original_sys_path = [p for p in original_sys_path if os.path.normcase(p) not in known_paths]\n")
	b.WriteString("sys.path[:] = original_sys_path\n")

	for _, dir := range libDirs {
		fmt.Fprintf(&b, "site.addsitedir(%q)\n", dir)
	}

	return b.String()
}

// Environ returns base (typically os.Environ()) extended with the
// PATH/PYTHONPATH/PYTHONNOUSERSITE entries needed to run a subprocess
// inside this isolated environment.
func (e *IsolatedEnv) Environ(base []string) []string {
	path := strings.Join(append(append([]string{}, e.BinDirs...), os.Getenv("PATH")), string(os.PathListSeparator))

	env := append([]string(nil), base...)

	return append(env,
		"PATH="+path,
		"PYTHONPATH="+e.SiteDir,
		"PYTHONNOUSERSITE=1",
	)
}
