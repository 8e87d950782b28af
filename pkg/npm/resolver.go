package npm

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LookupDirName is the conventional installed-packages directory.
const LookupDirName = "node_modules"

// DefaultManifestCacheSize bounds the number of decoded manifests kept in memory.
const DefaultManifestCacheSize = 1024

// ErrNoLookupDir is returned when no usable node_modules directory exists
// between the working directory and the filesystem root.
var ErrNoLookupDir = errors.New("no node_modules directory found")

// FindLookupDir walks upward from cwd and returns the first node_modules
// directory that holds at least one package. A directory that is empty or
// only contains .bin does not count.
func FindLookupDir(cwd string) (string, error) {
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", cwd, err)
	}
	for {
		candidate := filepath.Join(dir, LookupDirName)
		if hasPackages(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w (searched upward from %s)", ErrNoLookupDir, cwd)
		}
		dir = parent
	}
}

func hasPackages(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Name() != ".bin" {
			return true
		}
	}
	return false
}

// Track is the result of resolving a bare specifier.
type Track struct {
	LookupDir    string // node_modules directory the package was found in
	Name         string // package name, e.g. "@scope/pkg"
	ManifestPath string // absolute path of the package's package.json
	SubPath      string // remainder of the specifier inside the package, slash separated
}

// Dir returns the package's install directory.
func (t *Track) Dir() string {
	return filepath.Dir(t.ManifestPath)
}

// Resolver maps bare specifiers onto installed packages. Decoded manifests
// are cached by path.
type Resolver struct {
	manifests *lru.Cache[string, *Descriptor]
	logger    *slog.Logger
}

// NewResolver creates a Resolver with a manifest cache of the given size.
// A size <= 0 uses DefaultManifestCacheSize.
func NewResolver(cacheSize int, logger *slog.Logger) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultManifestCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, *Descriptor](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest cache: %w", err)
	}
	return &Resolver{manifests: cache, logger: logger}, nil
}

// Track finds the installed package a bare specifier points into. The full
// specifier is tried first, then one trailing segment at a time is moved
// into the sub-path until a directory with a manifest is found.
func (r *Resolver) Track(specifier, lookupDir string) (*Track, bool) {
	name := strings.Trim(specifier, "/")
	if name == "" || strings.HasPrefix(name, ".") || filepath.IsAbs(specifier) {
		return nil, false
	}

	subPath := ""
	for name != "" {
		manifest := filepath.Join(lookupDir, filepath.FromSlash(name), ManifestFile)
		if info, err := os.Stat(manifest); err == nil && !info.IsDir() {
			return &Track{
				LookupDir:    lookupDir,
				Name:         name,
				ManifestPath: manifest,
				SubPath:      subPath,
			}, true
		}

		slash := strings.LastIndex(name, "/")
		if slash < 0 {
			break
		}
		stripped := name[slash+1:]
		if subPath == "" {
			subPath = stripped
		} else {
			subPath = stripped + "/" + subPath
		}
		name = name[:slash]
	}

	r.logger.Debug("package not found in lookup dir", "specifier", specifier, "lookupDir", lookupDir)
	return nil, false
}

// Descriptor returns the decoded manifest at path, reading it at most once
// while it stays in the cache.
func (r *Resolver) Descriptor(path string) (*Descriptor, error) {
	if d, ok := r.manifests.Get(path); ok {
		return d, nil
	}
	d, err := ReadDescriptor(path)
	if err != nil {
		return nil, err
	}
	r.manifests.Add(path, d)
	return d, nil
}

// Forget drops a cached manifest so the next read sees changes on disk.
func (r *Resolver) Forget(path string) {
	r.manifests.Remove(path)
}

// Provide returns the registered package t points at, loading and
// registering it on first reference.
func (r *Resolver) Provide(reg *Registry, t *Track, outDir string) (*Package, error) {
	if p, ok := reg.Get(t.Name); ok {
		return p, nil
	}
	d, err := r.Descriptor(t.ManifestPath)
	if err != nil {
		return nil, err
	}
	if d.Name != t.Name {
		// Register under the directory name it is imported by.
		renamed := *d
		renamed.Name = t.Name
		d = &renamed
	}
	p, _ := reg.Add(NewPackage(d, t.ManifestPath, outDir))
	return p, nil
}
