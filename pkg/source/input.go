// Package source enumerates the file sets a build reads from: the workspace
// sources and the raw resources copied before scanning.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Input describes a file set relative to a root directory. Files are taken
// as-is; Include and Exclude are doublestar globs. With neither Files nor
// Include set, every file under the root is included.
type Input struct {
	Files   []string `mapstructure:"files" json:"files,omitempty" yaml:"files,omitempty"`
	Include []string `mapstructure:"include" json:"include,omitempty" yaml:"include,omitempty"`
	Exclude []string `mapstructure:"exclude" json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// DefaultInput includes everything outside node_modules.
func DefaultInput() Input {
	return Input{
		Include: []string{"**/*"},
		Exclude: []string{"node_modules/**/*"},
	}
}

// IsEmpty reports whether the input names no files at all.
func (in Input) IsEmpty() bool {
	return len(in.Files) == 0 && len(in.Include) == 0
}

// Validate checks every glob pattern.
func (in Input) Validate() error {
	for _, pattern := range in.Include {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}
	for _, pattern := range in.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	return nil
}

// WithExclude returns a copy of the input with extra exclude patterns.
func (in Input) WithExclude(patterns ...string) Input {
	out := in
	out.Exclude = append(append([]string(nil), in.Exclude...), patterns...)
	return out
}

// Enumerate returns the absolute paths of every regular file in the set,
// sorted and without duplicates.
func Enumerate(root string, in Input) ([]string, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, f := range in.Files {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(absRoot, filepath.FromSlash(f))
		}
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			add(filepath.Clean(path))
		}
	}

	include := in.Include
	if in.IsEmpty() {
		include = []string{"**/*"}
	}
	if len(include) > 0 {
		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // Continue walking on errors.
			}
			relPath, err := filepath.Rel(absRoot, path)
			if err != nil {
				relPath = path
			}
			relPath = filepath.ToSlash(relPath)
			if relPath == "." {
				return nil
			}

			if d.IsDir() {
				if excludesDir(in.Exclude, relPath) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if matchAny(in.Exclude, relPath) || !matchAny(include, relPath) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

// Match reports whether path, absolute or relative to root, belongs to the
// set. It does not touch the filesystem.
func (in Input) Match(root, path string) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(r, "..") {
			return false
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)

	for _, f := range in.Files {
		if filepath.ToSlash(filepath.Clean(f)) == rel {
			return true
		}
	}
	if matchAny(in.Exclude, rel) {
		return false
	}
	for dir := pathDir(rel); dir != ""; dir = pathDir(dir) {
		if excludesDir(in.Exclude, dir) {
			return false
		}
	}
	if in.IsEmpty() {
		return true
	}
	return matchAny(in.Include, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if m, _ := doublestar.Match(pattern, rel); m {
			return true
		}
	}
	return false
}

// excludesDir reports whether a pattern excludes a whole directory, either
// by naming it or by naming everything below it ("dir/**", "dir/**/*").
func excludesDir(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if m, _ := doublestar.Match(pattern, rel); m {
			return true
		}
		for _, suffix := range []string{"/**/*", "/**"} {
			if base, ok := strings.CutSuffix(pattern, suffix); ok {
				if m, _ := doublestar.Match(base, rel); m {
					return true
				}
			}
		}
	}
	return false
}

func pathDir(rel string) string {
	i := strings.LastIndex(rel, "/")
	if i < 0 {
		return ""
	}
	return rel[:i]
}
