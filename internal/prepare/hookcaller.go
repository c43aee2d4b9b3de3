package prepare

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// buildWheelBootstrap is run inside the isolated build environment to
// invoke a PEP 517 backend's build_wheel hook. It resolves the backend
// object from its "module_path[:object_path]" form, calls build_wheel with
// the target output directory, and writes the returned wheel filename as a
// JSON string to a result file — keeping the hook's actual return value
// out of the log-captured stdout stream, the same separation pep517's own
// hook caller makes between subprocess output and hook results.
const buildWheelBootstrap = `import importlib, json, sys

module_path, _, obj_path = %q.partition(":")
backend = importlib.import_module(module_path)
if obj_path:
    for attr in obj_path.split("."):
        backend = getattr(backend, attr)

filename = backend.build_wheel(sys.argv[1])

with open(sys.argv[2], "w") as f:
    json.dump(filename, f)
`

// invokeBuildWheel writes the bootstrap script to a temp file inside
// srcDir (so that sys.path[0], which Python derives from the running
// script's own directory, also resolves an in-tree backend-path backend),
// runs it with the target interpreter, and returns the built wheel's path
// under outDir.
func invokeBuildWheel(ctx context.Context, pythonBin, srcDir, outDir, backend string, environ []string, logger *slog.Logger) (string, error) {
	script, err := os.CreateTemp(srcDir, "pipg-build-hook-*.py")
	if err != nil {
		return "", fmt.Errorf("creating build hook script: %w", err)
	}

	scriptPath := script.Name()
	defer func() { _ = os.Remove(scriptPath) }()

	if _, err := script.WriteString(fmt.Sprintf(buildWheelBootstrap, backend)); err != nil {
		_ = script.Close()
		return "", fmt.Errorf("writing build hook script: %w", err)
	}

	if err := script.Close(); err != nil {
		return "", fmt.Errorf("closing build hook script: %w", err)
	}

	resultFile := scriptPath + ".result"
	defer func() { _ = os.Remove(resultFile) }()

	cmd := []string{pythonBin, scriptPath, outDir, resultFile}

	if err := runBuildHook(ctx, cmd, srcDir, environ, logger); err != nil {
		return "", fmt.Errorf("invoking build_wheel for backend %s: %w", backend, err)
	}

	raw, err := os.ReadFile(resultFile)
	if err != nil {
		return "", fmt.Errorf("reading build_wheel result: %w", err)
	}

	var filename string
	if err := json.Unmarshal(raw, &filename); err != nil {
		return "", fmt.Errorf("decoding build_wheel result: %w", err)
	}

	return filename, nil
}
