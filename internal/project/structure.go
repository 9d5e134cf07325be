package project

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultStructureInfoMaxLen bounds the listing handed to the model.
const DefaultStructureInfoMaxLen = 1500

// IgnorePatterns are skipped when listing or exporting a project.
var IgnorePatterns = []string{
	".venv",
	"**/__pycache__",
	"**/*.pyc",
	".git",
	"**/.DS_Store",
	"build",
	"dist",
	"*.spec",
	"**/*.tmp",
}

// Ignored reports whether rel (slash separated, relative to the project root)
// matches one of patterns.
func Ignored(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// StructureInfo renders an indented listing of a project's files for use as
// model context. It returns "" for a project containing only its metadata.
func (s *Store) StructureInfo(name string, maxLen int) (string, error) {
	dir, err := s.Path(name)
	if err != nil {
		return "", err
	}
	if maxLen <= 0 {
		maxLen = DefaultStructureInfoMaxLen
	}

	var lines []string
	err = fs.WalkDir(os.DirFS(dir), ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if Ignored(rel, IgnorePatterns) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if rel == MetadataFile {
			return nil
		}
		indent := strings.Repeat("  ", strings.Count(rel, "/"))
		kind := "[F]"
		if d.IsDir() {
			kind = "[D]"
		}
		lines = append(lines, fmt.Sprintf("%s%s %s", indent, kind, path.Base(rel)))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("listing project files: %w", err)
	}

	info := strings.Join(lines, "\n")
	if len(info) > maxLen {
		info = info[:maxLen] + "\n[... structure truncated ...]"
	}
	return info, nil
}
