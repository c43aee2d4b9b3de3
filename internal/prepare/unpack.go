package prepare

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Unpack extracts an sdist archive (.tar.gz, .tgz, or .zip) at archivePath
// into a fresh directory under baseDir (baseDir="" uses the OS temp dir,
// suitable for a tracked, non-persistent unpack) and returns the directory
// containing the unpacked project, with the archive's own conventional
// top-level "name-version/" directory stripped.
func Unpack(archivePath, baseDir string) (string, error) {
	dest, err := os.MkdirTemp(baseDir, "pipg-src-")
	if err != nil {
		return "", fmt.Errorf("creating unpack dir: %w", err)
	}

	switch {
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		err = unpackTarGz(archivePath, dest)
	case strings.HasSuffix(archivePath, ".zip"):
		err = unpackZip(archivePath, dest)
	default:
		return "", fmt.Errorf("unsupported sdist archive format: %s", archivePath)
	}

	if err != nil {
		return "", err
	}

	return stripSingleTopDir(dest)
}

func unpackTarGz(archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading gzip %s: %w", archivePath, err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}

		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target := filepath.Join(dest, hdr.Name)
		if !isInsideDir(target, dest) {
			return fmt.Errorf("tar slip detected: %s resolves outside %s", hdr.Name, dest)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeTarFile(tr, target, hdr.Mode); err != nil {
				return err
			}
		}
	}
}

func writeTarFile(tr *tar.Reader, target string, mode int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(mode))
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	if _, err := io.Copy(out, tr); err != nil { //nolint:gosec // archive size is bounded by the repository layer
		_ = out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}

	return out.Close()
}

func unpackZip(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		target := filepath.Join(dest, f.Name)
		if !isInsideDir(target, dest) {
			return fmt.Errorf("zip slip detected: %s resolves outside %s", f.Name, dest)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}

			continue
		}

		if err := extractZipEntry(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractZipEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening zip entry %s: %w", f.Name, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}

	return out.Close()
}

// stripSingleTopDir returns the path to dest's single top-level entry when
// it is the only thing in dest and is itself a directory (the conventional
// sdist/zip layout), otherwise dest itself.
func stripSingleTopDir(dest string) (string, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dest, err)
	}

	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dest, entries[0].Name()), nil
	}

	return dest, nil
}

// isInsideDir checks that path is inside dir, guarding archive extraction
// against path traversal ("zip slip"/"tar slip") entries.
func isInsideDir(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}

	return absPath == absDir || strings.HasPrefix(absPath, absDir+string(filepath.Separator))
}
