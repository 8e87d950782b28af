// Package transform implements the traversal engine: it rewrites one file's
// import/export statements, writes the result, and follows the files it
// references depth-first.
package transform

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gnana997/esmpack/pkg/npm"
	"github.com/gnana997/esmpack/pkg/plugin"
	"github.com/gnana997/esmpack/pkg/rewrite"
	"github.com/gnana997/esmpack/pkg/syntax"
	"github.com/gnana997/esmpack/pkg/util"
)

// DefaultExtension is the script extension used when none is configured.
const DefaultExtension = ".js"

// ErrNoPlugin is reported for asset imports no plugin pattern matches.
var ErrNoPlugin = errors.New("no plugin matches asset")

// Options configures an Engine.
type Options struct {
	// Extension is appended to specifiers that lack it (".js" or ".mjs").
	Extension string
	// Prod selects the eager module-dir helper, prepended to the file.
	Prod bool
	// FollowDepth bounds how many import hops are followed inside a
	// dependency package from the file a run starts at. Zero is unbounded.
	// Workspace files are always followed.
	FollowDepth int
	// OutDir is the output root. The workspace package is emitted directly
	// into it; dependencies go to OutDir/<name>.
	OutDir string
	// LookupDir is the node_modules directory bare specifiers resolve in.
	LookupDir string
}

// Engine transforms files. An Engine holds no per-run state; pass a fresh
// State to every independent run.
type Engine struct {
	opts     Options
	resolver *npm.Resolver
	packages *npm.Registry
	plugins  *plugin.Registry
	rewriter *rewrite.Rewriter
	logger   *slog.Logger
}

// New creates an Engine. packages is the provider registry shared with the
// orchestrator; packages discovered through bare specifiers are added to it.
func New(opts Options, resolver *npm.Resolver, packages *npm.Registry, plugins *plugin.Registry, rewriter *rewrite.Rewriter, logger *slog.Logger) *Engine {
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	opts.OutDir = filepath.Clean(opts.OutDir)
	if logger == nil {
		logger = slog.Default()
	}
	if plugins == nil {
		plugins = plugin.DefaultRegistry()
	}
	if rewriter == nil {
		rewriter = rewrite.NewRewriter(rewrite.Linker{Strategy: rewrite.StrategyRelative, OutDir: opts.OutDir}, logger)
	}
	return &Engine{
		opts:     opts,
		resolver: resolver,
		packages: packages,
		plugins:  plugins,
		rewriter: rewriter,
		logger:   logger,
	}
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

type job struct {
	input  string
	output string
	host   *npm.Package
	depth  int
}

// edit replaces src[start:end] with text.
type edit struct {
	start, end int
	text       string
}

// TransformFile transforms input into output, then follows every file the
// result references inside host, depth-first. host is the package input
// belongs to.
//
// The returned outcome and error describe input itself. Failures in
// followed files are logged and counted in st.Stats.
func (e *Engine) TransformFile(input, output string, host *npm.Package, st *State) (Outcome, error) {
	return e.run(job{input: filepath.Clean(input), output: filepath.Clean(output), host: host}, st)
}

func (e *Engine) run(j job, st *State) (Outcome, error) {
	outcome, follow, err := e.file(j, st)
	if err != nil || outcome != Written {
		return outcome, err
	}
	for _, next := range follow {
		if _, err := e.run(next, st); err != nil {
			st.Stats.Failures++
			e.logger.Error("failed to transform file", "file", next.input, "error", err)
		}
	}
	return outcome, nil
}

// file transforms a single file and returns the follow-ups it discovered.
func (e *Engine) file(j job, st *State) (Outcome, []job, error) {
	if st.Done(j.output) {
		st.Stats.Skipped++
		return SkippedAlreadyDone, nil, nil
	}
	if !util.IsFile(j.input) {
		st.Stats.Skipped++
		e.logger.Debug("input not found", "file", j.input)
		return SkippedNotFound, nil, nil
	}

	data, err := util.ReadFile(j.input)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read %s: %w", j.input, err)
	}
	src := string(data)

	stmts, scanErrs := syntax.Scan(src)
	for _, se := range scanErrs {
		e.logger.Debug("skipped malformed statement", "file", j.input, "line", se.Line, "reason", se.Msg)
	}

	srcDir, outDir := filepath.Dir(j.input), filepath.Dir(j.output)
	var (
		edits      []edit
		follow     []job
		needHelper bool
	)
	for i := range stmts {
		stmt := &stmts[i]
		st.Stats.Statements++

		res, err := e.statement(stmt, j, srcDir, outDir, st)
		if err != nil {
			return 0, nil, fmt.Errorf("%s:%d: %w", j.input, stmt.Line, err)
		}
		if res.replace != nil {
			edits = append(edits, edit{start: stmt.Offset, end: stmt.End(), text: *res.replace})
		}
		needHelper = needHelper || res.helper
		if res.follow != nil {
			follow = append(follow, *res.follow)
		}
	}

	out := apply(src, edits)
	if needHelper {
		out = plugin.InjectHelper(out, e.opts.Prod)
	}
	if err := util.WriteFile(j.output, []byte(out)); err != nil {
		return 0, nil, fmt.Errorf("failed to write %s: %w", j.output, err)
	}
	st.markDone(j.output)
	e.logger.Debug("transformed file", "file", j.input, "out", j.output, "statements", len(stmts), "edits", len(edits))
	return Written, follow, nil
}

// apply splices edits into src. Every edit addresses one statement by
// offset, so identical statements are each replaced exactly once.
func apply(src string, edits []edit) string {
	if len(edits) == 0 {
		return src
	}
	sort.Slice(edits, func(a, b int) bool { return edits[a].start > edits[b].start })
	out := src
	for _, ed := range edits {
		out = out[:ed.start] + ed.text + out[ed.end:]
	}
	return out
}

// stmtResult is what processing one statement produced.
type stmtResult struct {
	replace *string
	follow  *job
	helper  bool
}

// target is a statement's specifier resolved to files.
type target struct {
	pkg    *npm.Package // set for bare specifiers
	in     string
	out    string
	suffix string
}

func (e *Engine) statement(stmt *syntax.Statement, j job, srcDir, outDir string, st *State) (stmtResult, error) {
	t, ok := e.resolve(stmt, srcDir, outDir)
	if !ok {
		// The rewriter reports unresolved packages and keeps the statement.
		e.rewriter.Decide(stmt, outDir, rewrite.Target{})
		st.Stats.Failures++
		return stmtResult{}, nil
	}

	if !t.probe(e.opts.Extension) {
		e.logger.Warn("import target not found",
			"file", j.input,
			"line", stmt.Line,
			"specifier", stmt.ModulePath,
			"path", t.in)
		return stmtResult{}, nil
	}

	if !e.isScript(t.in) {
		return e.asset(stmt, t, outDir, st)
	}

	var res stmtResult
	d := e.rewriter.Decide(stmt, outDir, rewrite.Target{Package: t.pkg, Suffix: t.suffix, OutFile: t.out})
	if d.Action == rewrite.Rewrite {
		text := stmt.WithSpecifier(d.Path)
		res.replace = &text
		st.Stats.Rewrites++
	}
	if next, ok := e.followUp(j, t); ok {
		res.follow = &next
	}
	return res, nil
}

// resolve maps a specifier onto input and output locations before probing.
func (e *Engine) resolve(stmt *syntax.Statement, srcDir, outDir string) (target, bool) {
	if stmt.IsRelative() {
		rel := filepath.FromSlash(stmt.ModulePath)
		return target{in: filepath.Join(srcDir, rel), out: filepath.Join(outDir, rel)}, true
	}

	if e.opts.LookupDir == "" {
		return target{}, false
	}
	tr, ok := e.resolver.Track(stmt.ModulePath, e.opts.LookupDir)
	if !ok {
		return target{}, false
	}
	pkg, err := e.resolver.Provide(e.packages, tr, e.opts.OutDir)
	if err != nil {
		e.logger.Error("failed to load package", "package", tr.Name, "manifest", tr.ManifestPath, "error", err)
		return target{}, false
	}
	if tr.SubPath != "" {
		return target{pkg: pkg, in: pkg.ResolveSrc(tr.SubPath), out: pkg.ResolveOut(tr.SubPath)}, true
	}
	return target{pkg: pkg, in: pkg.SrcEntry(), out: pkg.OutEntry()}, true
}

// probe resolves the target to an existing file and applies the suffix
// that was needed to the output path too.
func (t *target) probe(ext string) bool {
	suffix, ok := Probe(t.in, ext)
	if !ok {
		return false
	}
	t.suffix = suffix
	t.in += filepath.FromSlash(suffix)
	t.out += filepath.FromSlash(suffix)
	return true
}

// Probe finds the file path names: path itself, path plus ext, or an
// index file when path is a directory. It returns the slash separated
// suffix that had to be appended.
func Probe(path, ext string) (string, bool) {
	switch {
	case util.IsFile(path):
		return "", true
	case util.IsFile(path + ext):
		return ext, true
	case util.IsDir(path) && util.IsFile(filepath.Join(path, "index"+ext)):
		return "/index" + ext, true
	}
	return "", false
}

// IsScript reports whether path names a script module for the given
// configured extension.
func IsScript(path, ext string) bool {
	switch filepath.Ext(path) {
	case ".js", ".mjs", ext:
		return true
	}
	return false
}

func (e *Engine) isScript(path string) bool {
	return IsScript(path, e.opts.Extension)
}

// asset hands a non-script target to the first matching plugin.
func (e *Engine) asset(stmt *syntax.Statement, t target, outDir string, st *State) (stmtResult, error) {
	b, ok := e.plugins.Match(stmt.ModulePath)
	if !ok {
		st.Stats.Failures++
		e.logger.Error(ErrNoPlugin.Error(), "specifier", stmt.ModulePath, "statement", stmt.Raw, "line", stmt.Line)
		return stmtResult{}, nil
	}

	relPath, err := filepath.Rel(outDir, t.out)
	if err != nil {
		return stmtResult{}, fmt.Errorf("failed to locate asset %s: %w", t.out, err)
	}
	relPath = filepath.ToSlash(relPath)

	pr, err := b.Handler.Transform(stmt, relPath)
	if err != nil {
		return stmtResult{}, fmt.Errorf("plugin %s: %w", b.Name, err)
	}
	st.Stats.Assets++

	var text string
	switch pr.Action {
	case plugin.ActionInject:
		text = pr.Code
	case plugin.ActionFetch:
		if err := util.CopyFile(t.in, t.out); err != nil {
			return stmtResult{}, fmt.Errorf("failed to copy asset %s: %w", t.in, err)
		}
		text = pr.Code
	case plugin.ActionModule:
		content, err := util.ReadFile(t.in)
		if err != nil {
			return stmtResult{}, fmt.Errorf("failed to read asset %s: %w", t.in, err)
		}
		wrapper := t.out + e.opts.Extension
		if err := util.WriteFile(wrapper, []byte(plugin.ModuleWrapper(content))); err != nil {
			return stmtResult{}, fmt.Errorf("failed to write module wrapper %s: %w", wrapper, err)
		}
		spec := rewrite.AppendSuffix(stmt.ModulePath, t.suffix) + e.opts.Extension
		if t.pkg != nil {
			spec = e.rewriter.Linker.Link(outDir, t.pkg, wrapper)
		}
		text = stmt.WithSpecifier(spec)
	default:
		return stmtResult{}, fmt.Errorf("plugin %s: unknown action %s", b.Name, pr.Action)
	}
	e.logger.Debug("transformed asset import", "plugin", b.Name, "action", pr.Action.String(), "asset", t.in)
	return stmtResult{replace: &text, helper: true}, nil
}

// followUp decides whether the script target is transformed in this run.
// Only targets owned by the host package are followed; other packages are
// built from their own entry. Inside dependency packages the hop count is
// bounded by FollowDepth.
func (e *Engine) followUp(j job, t target) (job, bool) {
	if j.host == nil || e.owner(t.in, j.host) != j.host {
		return job{}, false
	}
	next := job{input: t.in, output: t.out, host: j.host, depth: j.depth + 1}
	if e.opts.FollowDepth > 0 && !e.isWorkspace(j.host) && next.depth > e.opts.FollowDepth {
		e.logger.Debug("follow depth reached", "package", j.host.Name(), "file", t.in, "depth", next.depth)
		return job{}, false
	}
	return next, true
}

// owner returns the package whose source tree holds path: the innermost
// registered package, or host when path lies in host outside any
// node_modules directory. The workspace is usually not registered.
func (e *Engine) owner(path string, host *npm.Package) *npm.Package {
	p, ok := e.packages.Owner(path)
	if ok && len(p.SrcRoot) >= len(host.SrcRoot) {
		return p
	}
	if host.Contains(path) && !inLookupDir(host.SrcRoot, path) {
		return host
	}
	return p
}

// isWorkspace reports whether pkg is emitted directly into the output root,
// which only the workspace package is.
func (e *Engine) isWorkspace(pkg *npm.Package) bool {
	return pkg.OutRoot == e.opts.OutDir
}

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
