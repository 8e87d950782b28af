package npm

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gnana997/esmpack/pkg/source"
	"github.com/gnana997/esmpack/pkg/util"
)

// Package is a descriptor bound to its install location and its output
// location. Identity is by name; a registry never holds two packages with
// the same name.
type Package struct {
	Descriptor *Descriptor
	SrcRoot    string // directory holding package.json
	OutRoot    string // directory the package is emitted to
	Entry      string // entry file relative to both roots, slash separated
	IsModule   bool

	// Transformed is set once the package's entry has been traversed.
	Transformed bool
}

// NewPackage binds d, read from manifestPath, to outDir/<name>.
func NewPackage(d *Descriptor, manifestPath, outDir string) *Package {
	return NewPackageAt(d, filepath.Dir(manifestPath), filepath.Join(outDir, filepath.FromSlash(d.Name)))
}

// NewPackageAt binds d to explicit source and output roots. The workspace
// package uses this to emit directly into the output directory.
func NewPackageAt(d *Descriptor, srcRoot, outRoot string) *Package {
	return &Package{
		Descriptor: d,
		SrcRoot:    filepath.Clean(srcRoot),
		OutRoot:    filepath.Clean(outRoot),
		Entry:      strings.TrimPrefix(filepath.ToSlash(d.EntryPoint()), "./"),
		IsModule:   d.IsModule(),
	}
}

// Name returns the package name.
func (p *Package) Name() string {
	return p.Descriptor.Name
}

// ResolveSrc resolves a path against the source root.
func (p *Package) ResolveSrc(rel string) string {
	return resolve(p.SrcRoot, rel)
}

// ResolveOut resolves a path against the output root.
func (p *Package) ResolveOut(rel string) string {
	return resolve(p.OutRoot, rel)
}

// SrcEntry returns the absolute path of the entry file in the source tree.
func (p *Package) SrcEntry() string {
	return p.ResolveSrc(p.Entry)
}

// OutEntry returns the absolute path of the entry file in the output tree.
func (p *Package) OutEntry() string {
	return p.ResolveOut(p.Entry)
}

// RelativeOut returns the link from an output directory to the package's
// output entry file.
func (p *Package) RelativeOut(fromDir string) string {
	return RelativeLink(fromDir, p.OutEntry())
}

// RelativeSub returns the link from an output directory to a sub-path of
// the package's output root.
func (p *Package) RelativeSub(fromDir, subPath string) string {
	return RelativeLink(fromDir, p.ResolveOut(subPath))
}

// RelativeInternal returns the link from an output directory to a file
// below an internal directory of the package, such as a nested bundle dir.
func (p *Package) RelativeInternal(fromDir, internal, subPath string) string {
	return RelativeLink(fromDir, p.ResolveOut(filepath.Join(filepath.FromSlash(internal), filepath.FromSlash(subPath))))
}

// Contains reports whether path lies inside the package's source root.
func (p *Package) Contains(path string) bool {
	rel, err := filepath.Rel(p.SrcRoot, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// buildDir returns the first segment of the output root relative to the
// source root when the output lives inside the package, else "".
func (p *Package) buildDir() string {
	rel, err := filepath.Rel(p.SrcRoot, p.OutRoot)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	rel = filepath.ToSlash(rel)
	if slash := strings.Index(rel, "/"); slash > 0 {
		rel = rel[:slash]
	}
	return rel
}

// CopyFiles duplicates every file of the package into its output root,
// skipping node_modules and the package's own build directory. It returns
// the number of files copied.
func (p *Package) CopyFiles(logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	in := source.Input{
		Include: []string{"**/*"},
		Exclude: []string{LookupDirName + "/**/*"},
	}
	if dir := p.buildDir(); dir != "" {
		in.Exclude = append(in.Exclude, dir+"/**/*")
	}

	files, err := source.Enumerate(p.SrcRoot, in)
	if err != nil {
		return 0, fmt.Errorf("failed to list files of %s: %w", p.Name(), err)
	}

	copied := 0
	for _, file := range files {
		rel, err := filepath.Rel(p.SrcRoot, file)
		if err != nil {
			continue
		}
		if err := util.CopyFile(file, p.ResolveOut(rel)); err != nil {
			logger.Error("failed to copy package file", "package", p.Name(), "file", file, "error", err)
			continue
		}
		copied++
	}
	logger.Debug("copied package files", "package", p.Name(), "files", copied, "out", p.OutRoot)
	return copied, nil
}

// RelativeLink returns a module specifier that reaches target from fromDir:
// slash separated and always starting with "./" or "../".
func RelativeLink(fromDir, target string) string {
	rel, err := filepath.Rel(fromDir, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") && rel != ".." {
		rel = "./" + rel
	}
	return rel
}

func resolve(root, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(root, filepath.FromSlash(rel))
}
