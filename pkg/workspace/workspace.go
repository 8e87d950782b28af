// Package workspace orchestrates a build: it discovers the dependency
// packages a project declares, transforms them and the project's own
// sources, copies resources and keeps the output current in watch mode.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gnana997/esmpack/pkg/config"
	"github.com/gnana997/esmpack/pkg/npm"
	"github.com/gnana997/esmpack/pkg/plugin"
	"github.com/gnana997/esmpack/pkg/rewrite"
	"github.com/gnana997/esmpack/pkg/source"
	"github.com/gnana997/esmpack/pkg/transform"
	"github.com/gnana997/esmpack/pkg/util"
)

// ErrUnsafeClean is returned when the output directory would contain the
// workspace itself.
var ErrUnsafeClean = errors.New("refusing to delete output directory")

// Options configures a Workspace beyond the build configuration.
type Options struct {
	// PackageMode builds only the dependencies of the manifest in the
	// working directory, the manifest's own package included.
	PackageMode bool
	// ManifestCacheSize bounds the decoded manifest cache.
	ManifestCacheSize int
}

// Workspace is one project build. Its entry points are safe for concurrent
// use; every transformation runs under one lock.
type Workspace struct {
	cfg     *config.Config
	opts    Options
	cwd     string
	outDir  string
	plugins *plugin.Registry
	linker  rewrite.Linker
	logger  *slog.Logger

	// Set by Init.
	lookupDir string
	host      *npm.Package
	packages  *npm.Registry
	resolver  *npm.Resolver
	engine    *transform.Engine

	mu sync.Mutex
}

// New validates cfg and prepares a workspace rooted at cwd. Call Init
// before building.
func New(cfg *config.Config, cwd string, opts Options, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", cwd, err)
	}
	outDir := cfg.OutDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(absCwd, filepath.FromSlash(outDir))
	}
	outDir = filepath.Clean(outDir)
	if outDir == absCwd {
		return nil, fmt.Errorf("%w: %s", config.ErrOutDirIsWorkspace, outDir)
	}

	plugins, err := plugin.FromSpecs(cfg.Plugins)
	if err != nil {
		return nil, err
	}
	linker, err := rewrite.NewLinker(cfg.Strategy(), cfg.BaseURL, outDir)
	if err != nil {
		return nil, err
	}

	return &Workspace{
		cfg:     cfg,
		opts:    opts,
		cwd:     absCwd,
		outDir:  outDir,
		plugins: plugins,
		linker:  linker,
		logger:  logger,
	}, nil
}

// Init locates the lookup directory, reads the workspace manifest and
// registers every package reachable through dependencies and peer
// dependencies. A missing lookup directory is fatal.
func (w *Workspace) Init() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	lookupDir, err := npm.FindLookupDir(w.cwd)
	if err != nil {
		return err
	}
	w.lookupDir = lookupDir

	resolver, err := npm.NewResolver(w.opts.ManifestCacheSize, w.logger)
	if err != nil {
		return err
	}
	w.resolver = resolver
	w.packages = npm.NewRegistry()

	manifest := filepath.Join(w.cwd, npm.ManifestFile)
	d, err := resolver.Descriptor(manifest)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		w.logger.Warn("workspace has no manifest; no dependencies will be built", "path", manifest)
		d = &npm.Descriptor{Name: filepath.Base(w.cwd)}
	}
	if d.Name == "" {
		d.Name = filepath.Base(w.cwd)
	}

	if w.opts.PackageMode {
		w.host, _ = w.packages.Add(npm.NewPackage(d, manifest, w.outDir))
	} else {
		w.host = npm.NewPackageAt(d, w.cwd, w.outDir)
	}

	w.discover(d)

	rewriter := rewrite.NewRewriter(w.linker, w.logger)
	w.engine = transform.New(transform.Options{
		Extension:   w.cfg.Extension,
		Prod:        w.cfg.Prod,
		FollowDepth: w.cfg.FollowDepth,
		OutDir:      w.outDir,
		LookupDir:   w.lookupDir,
	}, resolver, w.packages, w.plugins, rewriter, w.logger)

	w.logger.Info("workspace initialized",
		"workspace", d.Name,
		"lookup_dir", w.lookupDir,
		"out_dir", w.outDir,
		"packages", w.packages.Len())
	return nil
}

// discover registers the dependency closure of d. Names already in the
// registry are not revisited.
func (w *Workspace) discover(d *npm.Descriptor) {
	queue := d.Requires()
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, ok := w.packages.Get(name); ok {
			continue
		}

		tr, ok := w.resolver.Track(name, w.lookupDir)
		if !ok || tr.SubPath != "" {
			w.logger.Warn("dependency not installed", "package", name, "lookup_dir", w.lookupDir)
			continue
		}
		p, err := w.resolver.Provide(w.packages, tr, w.outDir)
		if err != nil {
			w.logger.Error("failed to load dependency", "package", name, "error", err)
			continue
		}
		queue = append(queue, p.Descriptor.Requires()...)
	}
}

// Build transforms the dependencies and, unless in package mode, the
// workspace sources.
func (w *Workspace) Build() (transform.Stats, error) {
	stats, err := w.TransformDependencies()
	if err != nil || w.opts.PackageMode {
		return stats, err
	}
	ws, err := w.TransformWorkspace()
	stats.Add(ws)
	if err != nil {
		return stats, err
	}
	// Packages first imported by workspace files.
	late, err := w.TransformDependencies()
	stats.Add(late)
	return stats, err
}

// TransformDependencies builds every registered package not built yet,
// starting at its entry file. Packages discovered while building are
// built too. Outside production mode each package's raw files are copied
// first.
func (w *Workspace) TransformDependencies() (transform.Stats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ready(); err != nil {
		return transform.Stats{}, err
	}

	st := transform.NewState()
	if built := w.buildPending(st); built > 0 {
		w.logger.Info("dependencies transformed",
			"packages", built,
			"files", st.Stats.Written,
			"failures", st.Stats.Failures)
	}
	return st.Stats, nil
}

// buildPending transforms registered packages until none is left
// unbuilt and returns how many it built.
func (w *Workspace) buildPending(st *transform.State) int {
	built := 0
	for {
		pending := w.pendingPackages()
		if len(pending) == 0 {
			return built
		}
		for _, p := range pending {
			w.transformPackage(p, st)
			built++
		}
	}
}

func (w *Workspace) pendingPackages() []*npm.Package {
	var pending []*npm.Package
	for _, p := range w.packages.Packages() {
		if !p.Transformed {
			pending = append(pending, p)
		}
	}
	return pending
}

func (w *Workspace) transformPackage(p *npm.Package, st *transform.State) {
	p.Transformed = true
	if !w.cfg.Prod {
		if _, err := p.CopyFiles(w.logger); err != nil {
			w.logger.Error("failed to copy package files", "package", p.Name(), "error", err)
		}
	}

	in, out := p.SrcEntry(), p.OutEntry()
	if suffix, ok := transform.Probe(in, w.cfg.Extension); ok && suffix != "" {
		in += filepath.FromSlash(suffix)
		out += filepath.FromSlash(suffix)
	}
	outcome, err := w.engine.TransformFile(in, out, p, st)
	if err != nil {
		st.Stats.Failures++
		w.logger.Error("failed to transform package", "package", p.Name(), "entry", in, "error", err)
		return
	}
	w.logger.Debug("package transformed", "package", p.Name(), "entry", in, "outcome", outcome.String())
}

// TransformWorkspace copies resources into the source tree, copies the
// workspace's raw files outside production mode, then transforms the
// workspace's sources: every script of the source set, or with
// workspaceResolution "follow" only the manifest's entry file and what it
// imports.
func (w *Workspace) TransformWorkspace() (transform.Stats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ready(); err != nil {
		return transform.Stats{}, err
	}

	if _, err := w.copyResources(); err != nil {
		return transform.Stats{}, err
	}
	if !w.cfg.Prod {
		if _, err := w.host.CopyFiles(w.logger); err != nil {
			return transform.Stats{}, err
		}
	}

	st := transform.NewState()
	if w.cfg.Follow() {
		in, out := w.host.SrcEntry(), w.host.OutEntry()
		if suffix, ok := transform.Probe(in, w.cfg.Extension); ok && suffix != "" {
			in += filepath.FromSlash(suffix)
			out += filepath.FromSlash(suffix)
		}
		w.transformSource(in, out, st)
	} else {
		files, err := source.Enumerate(w.cwd, w.sourceInput())
		if err != nil {
			return st.Stats, fmt.Errorf("failed to list workspace sources: %w", err)
		}
		for _, file := range files {
			if !transform.IsScript(file, w.cfg.Extension) {
				continue
			}
			w.transformSource(file, w.outPath(file), st)
		}
	}

	w.logger.Info("workspace transformed",
		"files", st.Stats.Written,
		"rewrites", st.Stats.Rewrites,
		"assets", st.Stats.Assets,
		"failures", st.Stats.Failures)
	return st.Stats, nil
}

func (w *Workspace) transformSource(in, out string, st *transform.State) {
	if _, err := w.engine.TransformFile(in, out, w.host, st); err != nil {
		st.Stats.Failures++
		w.logger.Error("failed to transform file", "file", in, "error", err)
	}
}

// TransformFile re-transforms one workspace file, or copies it when it is
// a resource. Used by the watch driver and the MCP server.
func (w *Workspace) TransformFile(path string) (transform.Stats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changed(path)
}

func (w *Workspace) changed(path string) (transform.Stats, error) {
	if err := w.ready(); err != nil {
		return transform.Stats{}, err
	}
	path = w.abs(path)

	if w.isResource(path) {
		return transform.Stats{}, w.refreshResource(path)
	}
	if !transform.IsScript(path, w.cfg.Extension) {
		return transform.Stats{}, fmt.Errorf("%s is not a script", path)
	}

	st := transform.NewState()
	if _, err := w.engine.TransformFile(path, w.outPath(path), w.host, st); err != nil {
		return st.Stats, err
	}
	if built := w.buildPending(st); built > 0 {
		w.logger.Info("new dependencies transformed", "packages", built)
	}
	w.logger.Info("file transformed", "file", w.rel(path), "files", st.Stats.Written)
	return st.Stats, nil
}

// RemoveFile deletes the output of a removed workspace file, or the copy
// of a removed resource.
func (w *Workspace) RemoveFile(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removed(path)
}

func (w *Workspace) removed(path string) error {
	path = w.abs(path)
	if w.isResource(path) {
		return w.deleteResource(path)
	}
	out := w.outPath(path)
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", out, err)
	}
	w.logger.Info("output removed", "file", w.rel(path), "out", out)
	return nil
}

// CopyResources copies every resource file to its mapped path in the
// source tree. It returns the number of files copied. Without a path map
// every resource already is its own copy and nothing happens.
func (w *Workspace) CopyResources() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.copyResources()
}

func (w *Workspace) copyResources() (int, error) {
	if w.cfg.Resources.IsEmpty() || len(w.cfg.PathMap) == 0 {
		return 0, nil
	}
	files, err := source.Enumerate(w.cwd, w.resourceInput())
	if err != nil {
		return 0, fmt.Errorf("failed to list resources: %w", err)
	}
	copied := 0
	for _, file := range files {
		if w.ResourcePath(file) == file {
			continue
		}
		if err := w.copyResource(file); err != nil {
			w.logger.Error("failed to copy resource", "file", file, "error", err)
			continue
		}
		copied++
	}
	w.logger.Debug("resources copied", "files", copied)
	return copied, nil
}

// CopyResource copies one resource file to its mapped path in the source
// tree and, outside production mode, on to the output directory.
func (w *Workspace) CopyResource(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ready(); err != nil {
		return err
	}
	return w.refreshResource(w.abs(path))
}

func (w *Workspace) copyResource(path string) error {
	dst := w.ResourcePath(path)
	if dst == path {
		return nil
	}
	if err := util.CopyFile(path, dst); err != nil {
		return err
	}
	w.logger.Debug("resource copied", "file", w.rel(path), "to", w.rel(dst))
	return nil
}

// refreshResource copies a changed resource. A full build mirrors the
// copy through the raw file copy; a single change mirrors it here.
func (w *Workspace) refreshResource(path string) error {
	if err := w.copyResource(path); err != nil {
		return err
	}
	dst := w.ResourcePath(path)
	if w.cfg.Prod || inLookupDir(w.cwd, dst) {
		return nil
	}
	return util.CopyFile(dst, w.outPath(dst))
}

// DeleteResource removes the mapped copy of a resource and its raw copy in
// the output directory. An unmapped resource itself is never removed.
func (w *Workspace) DeleteResource(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ready(); err != nil {
		return err
	}
	return w.deleteResource(w.abs(path))
}

func (w *Workspace) deleteResource(path string) error {
	dst := w.ResourcePath(path)
	targets := []string{w.outPath(dst)}
	if dst != path {
		targets = append(targets, dst)
	}
	for _, target := range targets {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", target, err)
		}
	}
	return nil
}

// ResourcePath returns where a resource is copied: its path relative to
// the workspace with the path map applied, inside the workspace.
func (w *Workspace) ResourcePath(path string) string {
	rel := w.rel(w.abs(path))
	return filepath.Join(w.cwd, filepath.FromSlash(w.cfg.MapPath(rel)))
}

// Clean deletes the output directory.
func (w *Workspace) Clean() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.outDir == w.cwd || isWithin(w.outDir, w.cwd) {
		return fmt.Errorf("%w %s: it contains the workspace", ErrUnsafeClean, w.outDir)
	}
	if err := os.RemoveAll(w.outDir); err != nil {
		return fmt.Errorf("failed to clean %s: %w", w.outDir, err)
	}
	w.logger.Debug("output directory cleaned", "out_dir", w.outDir)
	return nil
}

// Config returns the effective configuration.
func (w *Workspace) Config() *config.Config { return w.cfg }

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string { return w.cwd }

// OutDir returns the absolute output directory.
func (w *Workspace) OutDir() string { return w.outDir }

// LookupDir returns the node_modules directory found by Init.
func (w *Workspace) LookupDir() string { return w.lookupDir }

// Host returns the workspace package.
func (w *Workspace) Host() *npm.Package { return w.host }

// Packages returns the provider registry.
func (w *Workspace) Packages() *npm.Registry { return w.packages }

func (w *Workspace) ready() error {
	if w.engine == nil {
		return errors.New("workspace not initialized")
	}
	return nil
}

// sourceInput is the configured source set minus the lookup and output
// directories.
func (w *Workspace) sourceInput() source.Input {
	in := w.cfg.Src.WithExclude(npm.LookupDirName + "/**/*")
	if rel, ok := w.inside(w.outDir); ok {
		in = in.WithExclude(rel + "/**/*")
	}
	return in
}

func (w *Workspace) resourceInput() source.Input {
	in := w.cfg.Resources
	if rel, ok := w.inside(w.outDir); ok {
		in = in.WithExclude(rel + "/**/*")
	}
	return in
}

func (w *Workspace) isSource(path string) bool {
	return w.sourceInput().Match(w.cwd, path) && transform.IsScript(path, w.cfg.Extension)
}

func (w *Workspace) isResource(path string) bool {
	return !w.cfg.Resources.IsEmpty() && w.resourceInput().Match(w.cwd, path)
}

func (w *Workspace) outPath(path string) string {
	return w.host.ResolveOut(w.rel(path))
}

func (w *Workspace) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.cwd, path)
}

func (w *Workspace) rel(path string) string {
	rel, err := filepath.Rel(w.cwd, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// inside returns dir relative to the workspace when it lies inside it.
func (w *Workspace) inside(dir string) (string, bool) {
	if !isWithin(w.cwd, dir) || dir == w.cwd {
		return "", false
	}
	return w.rel(dir), true
}

// inLookupDir reports whether path lies in a node_modules directory below
// root.
func inLookupDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg == npm.LookupDirName {
			return true
		}
	}
	return false
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
