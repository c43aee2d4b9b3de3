package prepare

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/pipg-project/pipg/internal/python"
	"github.com/pipg-project/pipg/internal/resolver"
)

// BuildSystem is the [build-system] table of a source tree's pyproject.toml.
type BuildSystem struct {
	Requires     []string
	BuildBackend string
	BackendPath  []string
}

// defaultBuildSystem is used when a source tree carries no pyproject.toml
// (or no [build-system] table), matching pip's own legacy-setuptools
// fallback for pre-PEP-517 trees.
var defaultBuildSystem = BuildSystem{
	Requires:     []string{"setuptools >= 40.8.0", "wheel"},
	BuildBackend: "setuptools.build_meta:__legacy__",
}

// ReadBuildSystem loads the [build-system] table from srcDir/pyproject.toml,
// falling back to defaultBuildSystem when the file or table is absent.
func ReadBuildSystem(srcDir string) (BuildSystem, error) {
	path := filepath.Join(srcDir, "pyproject.toml")

	var doc struct {
		BuildSystem struct {
			Requires     []string `toml:"requires"`
			BuildBackend string   `toml:"build-backend"`
			BackendPath  []string `toml:"backend-path"`
		} `toml:"build-system"`
	}

	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if os.IsNotExist(err) {
			return defaultBuildSystem, nil
		}

		return BuildSystem{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	bs := BuildSystem{
		Requires:     doc.BuildSystem.Requires,
		BuildBackend: doc.BuildSystem.BuildBackend,
		BackendPath:  doc.BuildSystem.BackendPath,
	}

	if len(bs.Requires) == 0 {
		bs.Requires = defaultBuildSystem.Requires
	}

	if bs.BuildBackend == "" {
		bs.BuildBackend = defaultBuildSystem.BuildBackend
	}

	return bs, nil
}

// fallbackEditableBackend is tried by Prepare when building an editable
// candidate with its configured backend fails, whatever the cause; whether
// that backend has a PEP 660 editable-install hook is not checked.
// setuptools_pep660 backfills that hook for legacy setuptools projects,
// per spec.md §4.5 step 4.
const fallbackEditableBackend = "setuptools_pep660.build_meta"

// PreparedArtifact is the result of preparing one candidate.
type PreparedArtifact struct {
	WheelPath string
	SrcDir    string
	Metadata  *Metadata
}

// Preparer runs spec.md §4.5's candidate preparation pipeline over a
// source tree that has already been unpacked (see Unpack/CheckoutVCS): read
// its build-system requirements, build a wheel inside an isolated
// environment when the repository did not already supply one, and extract
// the resulting distribution metadata.
type Preparer struct {
	Env    *python.Environment
	Logger *slog.Logger
}

// Prepare builds candidate from srcDir (a directory produced by Unpack or
// CheckoutVCS) and returns the built wheel plus its metadata. wheelPath,
// when non-empty, is an already-available wheel (e.g. downloaded directly
// from the repository) that only needs its metadata extracted — build is
// skipped entirely in that case.
func (p *Preparer) Prepare(ctx context.Context, candidate resolver.Candidate, srcDir, wheelPath string) (*PreparedArtifact, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if wheelPath != "" {
		meta, err := ExtractWheelMetadata(wheelPath)
		if err != nil {
			return nil, fmt.Errorf("extracting metadata from %s: %w", wheelPath, err)
		}

		return &PreparedArtifact{WheelPath: wheelPath, Metadata: meta}, nil
	}

	buildSystem, err := ReadBuildSystem(srcDir)
	if err != nil {
		return nil, err
	}

	built, buildErr := p.build(ctx, srcDir, buildSystem.Requires, buildSystem.BuildBackend, logger)
	if buildErr != nil && candidate.Requirement.Editable {
		logger.Debug("build_wheel failed for editable install, falling back to setuptools_pep660",
			slog.String("package", candidate.Name), slog.String("error", buildErr.Error()))

		built, buildErr = p.build(ctx, srcDir, buildSystem.Requires, fallbackEditableBackend, logger)
	}

	if buildErr != nil {
		return nil, fmt.Errorf("building %s: %w", candidate.Name, buildErr)
	}

	meta, err := ExtractWheelMetadata(built)
	if err != nil {
		meta, err = ExtractSourceMetadata(srcDir)
		if err != nil {
			return nil, fmt.Errorf("extracting metadata for %s: %w", candidate.Name, err)
		}
	}

	return &PreparedArtifact{WheelPath: built, SrcDir: srcDir, Metadata: meta}, nil
}

// build lays out the isolated environment, installs build-system.requires
// into its shared layer, invokes the backend's build_wheel hook, and
// returns the built wheel's absolute path.
func (p *Preparer) build(ctx context.Context, srcDir string, requires []string, backend string, logger *slog.Logger) (string, error) {
	sharedDir := filepath.Join(os.TempDir(), "pipg-build-shared-"+SharedEnvKey(requires))
	if err := os.MkdirAll(sharedDir, 0o755); err != nil {
		return "", fmt.Errorf("creating shared build env: %w", err)
	}

	overlayDir, err := os.MkdirTemp("", "pipg-build-overlay-")
	if err != nil {
		return "", fmt.Errorf("creating overlay build env: %w", err)
	}

	isolated, err := NewIsolatedEnv(sharedDir, overlayDir)
	if err != nil {
		return "", err
	}

	environ := isolated.Environ(os.Environ())

	if err := p.installBuildRequires(ctx, requires, sharedDir, environ, logger); err != nil {
		return "", err
	}

	outDir, err := os.MkdirTemp("", "pipg-build-out-")
	if err != nil {
		return "", fmt.Errorf("creating build output dir: %w", err)
	}

	filename, err := invokeBuildWheel(ctx, p.Env.PythonPath, srcDir, outDir, backend, environ, logger)
	if err != nil {
		return "", err
	}

	return filepath.Join(outDir, filename), nil
}

func (p *Preparer) installBuildRequires(ctx context.Context, requires []string, prefix string, environ []string, logger *slog.Logger) error {
	if len(requires) == 0 {
		return nil
	}

	cmd := append([]string{p.Env.PythonPath, "-m", "pip", "install",
		"--isolated", "--ignore-installed", "--prefix", prefix}, requires...)

	if err := runBuildHook(ctx, cmd, "", environ, logger); err != nil {
		return fmt.Errorf("installing build requirements %v: %w", requires, err)
	}

	return nil
}
