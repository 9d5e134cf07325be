// Package project stores user projects on disk: one directory per project
// holding the main script and a small JSON metadata file.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

const (
	// MetadataFile is the per-project metadata file name.
	MetadataFile = "project_meta.json"
	// DefaultScript is the entry point created for new projects.
	DefaultScript = "main.py"
)

var (
	ErrNotFound    = errors.New("project not found")
	ErrExists      = errors.New("project already exists")
	ErrInvalidName = errors.New("invalid project name")
	ErrItemExists  = errors.New("item already exists in project")
	ErrExcluded    = errors.New("item matches an exclusion pattern")

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

const starterScript = `# Main script for project %s

def main():
    print("Hello from %s!")


if __name__ == "__main__":
    main()
`

// Metadata is the content of MetadataFile.
type Metadata struct {
	Name         string    `json:"name"`
	Dependencies []string  `json:"dependencies"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
	LastModified time.Time `json:"last_modified,omitzero"`
}

// Store manages projects below Root.
type Store struct {
	Root   string
	Script string

	now func() time.Time
}

// NewStore returns a store rooted at root. script defaults to DefaultScript.
func NewStore(root, script string) *Store {
	if script == "" {
		script = DefaultScript
	}
	return &Store{Root: root, Script: script, now: time.Now}
}

// Sanitize turns a user supplied name into a directory name.
func Sanitize(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	safe := strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "_")
	if safe == "" || safe == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return safe, nil
}

// Path returns the directory of an existing project.
func (s *Store) Path(name string) (string, error) {
	safe, err := Sanitize(name)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.Root, safe)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, safe)
	}
	return dir, nil
}

// ScriptName is the entry point file name used for every project.
func (s *Store) ScriptName() string {
	return s.Script
}

// List returns the names of all projects, sorted. A directory counts as a
// project when it holds the main script or a metadata file.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading projects directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(s.Root, e.Name())
		if fileExists(filepath.Join(dir, s.Script)) || fileExists(filepath.Join(dir, MetadataFile)) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Create makes a new project with a starter script and returns its sanitized
// name.
func (s *Store) Create(name string) (string, error) {
	safe, err := Sanitize(name)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.Root, safe)
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, safe)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating project directory: %w", err)
	}

	script := fmt.Sprintf(starterScript, safe, safe)
	if err := writeFileAtomic(filepath.Join(dir, s.Script), []byte(script)); err != nil {
		return "", err
	}
	now := s.now().UTC()
	meta := Metadata{Name: safe, Dependencies: []string{}, CreatedAt: now, LastModified: now}
	if err := s.writeMetadata(dir, meta); err != nil {
		return "", err
	}
	return safe, nil
}

// Delete removes a project directory. Only direct children of Root are ever
// removed.
func (s *Store) Delete(name string) error {
	dir, err := s.Path(name)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return fmt.Errorf("resolving projects directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving project directory: %w", err)
	}
	if filepath.Dir(abs) != root {
		return fmt.Errorf("refusing to delete %s: outside %s", abs, root)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}

// LoadMetadata reads a project's metadata. A missing file yields defaults.
func (s *Store) LoadMetadata(name string) (Metadata, error) {
	dir, err := s.Path(name)
	if err != nil {
		return Metadata{}, err
	}
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return Metadata{Name: filepath.Base(dir), Dependencies: []string{}}, nil
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("reading metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parsing %s: %w", MetadataFile, err)
	}
	if meta.Name == "" {
		meta.Name = filepath.Base(dir)
	}
	if meta.Dependencies == nil {
		meta.Dependencies = []string{}
	}
	return meta, nil
}

// SaveMetadata writes a project's metadata, stamping LastModified.
func (s *Store) SaveMetadata(name string, meta Metadata) error {
	dir, err := s.Path(name)
	if err != nil {
		return err
	}
	meta.LastModified = s.now().UTC()
	if meta.Dependencies == nil {
		meta.Dependencies = []string{}
	}
	return s.writeMetadata(dir, meta)
}

// SaveDependencies replaces the recorded dependency list.
func (s *Store) SaveDependencies(name string, deps []string) error {
	meta, err := s.LoadMetadata(name)
	if err != nil {
		return err
	}
	meta.Dependencies = slices.Clone(deps)
	return s.SaveMetadata(name, meta)
}

func (s *Store) writeMetadata(dir string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, MetadataFile), append(data, '\n'))
}

// ScriptContent returns the main script, or "" when it does not exist yet.
func (s *Store) ScriptContent(name string) (string, error) {
	dir, err := s.Path(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(dir, s.Script))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading script: %w", err)
	}
	return string(data), nil
}

// SaveScriptContent overwrites the main script.
func (s *Store) SaveScriptContent(name, content string) error {
	dir, err := s.Path(name)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, s.Script), []byte(content))
}

// AddItem copies the file or directory src into the top level of a project
// and returns the item name. An existing item of the same name is replaced
// only when overwrite is set.
func (s *Store) AddItem(name, src string, overwrite bool) (string, error) {
	dir, err := s.Path(name)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", src, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", src, err)
	}
	item := filepath.Base(abs)
	if item == MetadataFile || Ignored(item, IgnorePatterns) {
		return "", fmt.Errorf("%w: %s", ErrExcluded, item)
	}
	projectDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving project directory: %w", err)
	}
	if rel, err := filepath.Rel(abs, projectDir); err == nil && !strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("cannot add %s: it contains the project", src)
	}

	dst := filepath.Join(projectDir, item)
	if _, err := os.Lstat(dst); err == nil {
		if !overwrite {
			return "", fmt.Errorf("%w: %s", ErrItemExists, item)
		}
		if err := os.RemoveAll(dst); err != nil {
			return "", fmt.Errorf("removing existing %s: %w", item, err)
		}
	}

	if info.IsDir() {
		if err := os.CopyFS(dst, os.DirFS(abs)); err != nil {
			return "", fmt.Errorf("copying %s: %w", item, err)
		}
		return item, nil
	}
	if err := copyFile(abs, dst, info.Mode().Perm()); err != nil {
		return "", err
	}
	return item, nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// writeFileAtomic writes via a temp file and rename so readers never see a
// partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
