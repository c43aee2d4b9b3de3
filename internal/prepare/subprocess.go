package prepare

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ringBufferSize is the number of trailing output lines kept for a build
// error report, per spec.md §4.5's build isolation contract.
const ringBufferSize = 10

// BuildError is raised when a build-backend hook subprocess exits non-zero.
// It carries the trailing output lines for diagnosis, plus a heuristic hint
// when the failure looks like a missing build dependency.
type BuildError struct {
	Cmd  []string
	Code int
	Tail []string
	Hint string
}

func (e *BuildError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "build command %v exited with status %d", e.Cmd, e.Code)

	if e.Hint != "" {
		fmt.Fprintf(&b, ": %s", e.Hint)
	}

	for _, line := range e.Tail {
		b.WriteString("\n")
		b.WriteString(line)
	}

	return b.String()
}

// lineWriter is an io.Writer that splits arbitrary write chunks into
// complete lines, logs each one at debug level, and keeps the trailing
// ringBufferSize of them for inclusion in a BuildError.
type lineWriter struct {
	logger  *slog.Logger
	partial string
	tail    []string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.partial += string(p)

	for {
		idx := strings.IndexByte(w.partial, '\n')
		if idx < 0 {
			break
		}

		w.emit(strings.TrimSuffix(w.partial[:idx], "\r"))
		w.partial = w.partial[idx+1:]
	}

	return len(p), nil
}

func (w *lineWriter) flush() {
	if w.partial != "" {
		w.emit(w.partial)
		w.partial = ""
	}
}

func (w *lineWriter) emit(line string) {
	w.logger.Debug(line)

	w.tail = append(w.tail, line)
	if len(w.tail) > ringBufferSize {
		w.tail = w.tail[len(w.tail)-ringBufferSize:]
	}
}

// runBuildHook runs cmd in dir with environ as its full environment,
// streaming combined stdout/stderr line-by-line into logger and a trailing
// ring buffer. On non-zero exit it returns a *BuildError carrying that
// buffer, with a hint attached when the final line names a
// ModuleNotFoundError (almost always a missing build-system.requires entry).
func runBuildHook(ctx context.Context, cmd []string, dir string, environ []string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	lw := &lineWriter{logger: logger}

	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	c.Dir = dir
	c.Env = environ
	c.Stdout = lw
	c.Stderr = lw

	runErr := c.Run()
	lw.flush()

	if runErr == nil {
		return nil
	}

	code := -1
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	}

	return &BuildError{
		Cmd:  cmd,
		Code: code,
		Tail: append([]string(nil), lw.tail...),
		Hint: hintFor(lw.tail),
	}
}

func hintFor(tail []string) string {
	if len(tail) == 0 {
		return ""
	}

	if strings.Contains(tail[len(tail)-1], "ModuleNotFoundError") {
		return "the build backend may be missing a declared build-system.requires dependency"
	}

	return ""
}
