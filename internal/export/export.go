// Package export packages a project either as a PyInstaller bundle or as a
// source archive, both delivered as zip files.
package export

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pythautom/pythautom/internal/project"
	"github.com/pythautom/pythautom/internal/task"
)

// DefaultTimeout bounds a PyInstaller build.
const DefaultTimeout = 15 * time.Minute

// Environment is the part of the Python environment manager an export needs.
type Environment interface {
	InstallDependencies(ctx context.Context, projectPath string, deps []string, progress func(string)) error
	RunModule(ctx context.Context, projectPath, module string, args []string, progress func(string)) (task.ScriptResult, error)
}

// Exporter builds export archives for projects in Store.
type Exporter struct {
	Store   *project.Store
	Env     Environment
	Timeout time.Duration
	// Ignore lists doublestar patterns left out of source archives.
	Ignore []string
}

// New returns an exporter with default ignore patterns.
func New(store *project.Store, env Environment, timeout time.Duration) *Exporter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Exporter{Store: store, Env: env, Timeout: timeout, Ignore: project.IgnorePatterns}
}

// NormalizeOutputPath makes sure the archive path ends in .zip.
func NormalizeOutputPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return path
	}
	return path + ".zip"
}

// ExportSource zips the project's files, minus the environment and build
// artefacts, and returns the archive path.
func (e *Exporter) ExportSource(ctx context.Context, name, output string, progress func(string)) (string, error) {
	dir, err := e.Store.Path(name)
	if err != nil {
		return "", err
	}
	output = NormalizeOutputPath(output)
	emit(progress, fmt.Sprintf("Archiving sources of %s...", name))

	n, err := zipDir(ctx, dir, output, filepath.Base(dir), e.Ignore, progress)
	if err != nil {
		return "", err
	}
	emit(progress, fmt.Sprintf("Wrote %d files to %s", n, output))
	return output, nil
}

// ExportExecutable installs PyInstaller into the project environment, builds a
// one-folder bundle of the main script and zips it.
func (e *Exporter) ExportExecutable(ctx context.Context, name, output string, progress func(string)) (string, error) {
	dir, err := e.Store.Path(name)
	if err != nil {
		return "", err
	}
	if e.Env == nil {
		return "", errors.New("no python environment configured for export")
	}
	output = NormalizeOutputPath(output)

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	emit(progress, "Installing PyInstaller in project environment...")
	if err := e.Env.InstallDependencies(ctx, dir, []string{"pyinstaller"}, progress); err != nil {
		return "", fmt.Errorf("installing pyinstaller: %w", err)
	}

	work, err := os.MkdirTemp("", "pythautom-export-")
	if err != nil {
		return "", fmt.Errorf("creating build directory: %w", err)
	}
	defer os.RemoveAll(work)

	distDir := filepath.Join(work, "dist")
	args := []string{
		"--noconfirm",
		"--onedir",
		"--name", name,
		"--distpath", distDir,
		"--workpath", filepath.Join(work, "build"),
		"--specpath", work,
		e.Store.ScriptName(),
	}
	emit(progress, "Running PyInstaller (this can take a while)...")
	res, err := e.Env.RunModule(ctx, dir, "PyInstaller", args, progress)
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("pyinstaller did not finish within %v", e.Timeout)
	}
	if err != nil {
		return "", fmt.Errorf("running pyinstaller: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("pyinstaller failed with exit code %d", res.ExitCode)
	}

	bundle := filepath.Join(distDir, name)
	if info, err := os.Stat(bundle); err != nil || !info.IsDir() {
		return "", fmt.Errorf("pyinstaller output %s not found", bundle)
	}
	emit(progress, fmt.Sprintf("Creating archive %s...", filepath.Base(output)))
	if _, err := zipDir(ctx, bundle, output, name, nil, progress); err != nil {
		return "", err
	}
	emit(progress, fmt.Sprintf("Executable bundle written to %s", output))
	return output, nil
}

// zipDir writes every file below src into a zip at dst, under the folder
// prefix. Files matching ignore are skipped.
func zipDir(ctx context.Context, src, dst, prefix string, ignore []string, progress func(string)) (int, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}
	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("creating archive: %w", err)
	}
	zw := zip.NewWriter(f)

	count := 0
	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if project.Ignored(rel, ignore) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if err := addFile(zw, path, prefix+"/"+rel); err != nil {
			return err
		}
		count++
		return nil
	})

	closeErr := zw.Close()
	if err := f.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if walkErr != nil || closeErr != nil {
		os.Remove(tmp)
		if walkErr != nil {
			return 0, fmt.Errorf("archiving %s: %w", src, walkErr)
		}
		return 0, fmt.Errorf("finishing archive: %w", closeErr)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("moving archive into place: %w", err)
	}
	return count, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(w, src)
	return err
}

func emit(progress func(string), msg string) {
	if progress != nil {
		progress(msg)
	}
}
