package transform

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/esmpack/pkg/npm"
	"github.com/gnana997/esmpack/pkg/plugin"
)

// fixture is a workspace at root/app with node_modules and an output dir.
type fixture struct {
	t        *testing.T
	ws       string
	lookup   string
	out      string
	packages *npm.Registry
	host     *npm.Package
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	ws := filepath.Join(root, "app")
	f := &fixture{
		t:        t,
		ws:       ws,
		lookup:   filepath.Join(ws, npm.LookupDirName),
		out:      filepath.Join(root, "dist"),
		packages: npm.NewRegistry(),
	}
	f.host = npm.NewPackageAt(&npm.Descriptor{Name: "app"}, ws, f.out)
	require.NoError(t, os.MkdirAll(f.lookup, 0o755))
	return f
}

func (f *fixture) write(rel, content string) string {
	f.t.Helper()
	path := filepath.Join(f.ws, filepath.FromSlash(rel))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) read(rel string) string {
	f.t.Helper()
	data, err := os.ReadFile(filepath.Join(f.out, filepath.FromSlash(rel)))
	require.NoError(f.t, err)
	return string(data)
}

func (f *fixture) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(f.out, filepath.FromSlash(rel)))
	return err == nil
}

func (f *fixture) engine(opts Options, plugins *plugin.Registry) *Engine {
	f.t.Helper()
	resolver, err := npm.NewResolver(0, quiet())
	require.NoError(f.t, err)
	opts.OutDir = f.out
	opts.LookupDir = f.lookup
	return New(opts, resolver, f.packages, plugins, nil, quiet())
}

// run transforms a workspace file with a fresh state.
func (f *fixture) run(e *Engine, rel string) (*State, Outcome, error) {
	f.t.Helper()
	st := NewState()
	outcome, err := e.TransformFile(f.host.ResolveSrc(rel), f.host.ResolveOut(rel), f.host, st)
	return st, outcome, err
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCircularImportsTransformOnce(t *testing.T) {
	f := newFixture(t)
	f.write("a.js", "import { b } from './b.js';\nexport const a = 1;\n")
	f.write("b.js", "import { a } from './a.js';\nexport const b = 2;\n")

	st, outcome, err := f.run(f.engine(Options{}, nil), "a.js")
	require.NoError(t, err)
	assert.Equal(t, Written, outcome)
	assert.Equal(t, 2, st.Len())
	assert.Equal(t, []string{filepath.Join(f.out, "a.js"), filepath.Join(f.out, "b.js")}, st.Written())
	assert.Equal(t, 1, st.Stats.Skipped)
	assert.Equal(t, "import { a } from './a.js';\nexport const b = 2;\n", f.read("b.js"))
}

func TestRelativeImportGetsExtension(t *testing.T) {
	f := newFixture(t)
	f.write("main.js", "import x from './y'\nconsole.log(x);\n")
	f.write("y.js", "export default 1;\n")

	st, _, err := f.run(f.engine(Options{}, nil), "main.js")
	require.NoError(t, err)
	assert.Equal(t, "import x from './y.js'\nconsole.log(x);\n", f.read("main.js"))
	assert.Equal(t, "export default 1;\n", f.read("y.js"))
	assert.Equal(t, 1, st.Stats.Rewrites)
}

func TestDirectoryImportGetsIndex(t *testing.T) {
	f := newFixture(t)
	f.write("main.mjs", `export * from "./lib";`)
	f.write("lib/index.mjs", "export const v = 1;")

	_, _, err := f.run(f.engine(Options{Extension: ".mjs"}, nil), "main.mjs")
	require.NoError(t, err)
	assert.Equal(t, `export * from "./lib/index.mjs";`, f.read("main.mjs"))
	assert.True(t, f.exists("lib/index.mjs"))
}

func TestDirectoryImportWithTrailingSlash(t *testing.T) {
	f := newFixture(t)
	f.write("main.js", "import './dir/';\nexport * from './dir';\n")
	f.write("dir/index.js", "export const v = 1;")

	_, _, err := f.run(f.engine(Options{}, nil), "main.js")
	require.NoError(t, err)
	assert.Equal(t, "import './dir/index.js';\nexport * from './dir/index.js';\n", f.read("main.js"))
}

func TestCSSImportInjectsWithoutCopy(t *testing.T) {
	f := newFixture(t)
	f.write("node_modules/pkg/package.json", `{"name": "pkg"}`)
	f.write("node_modules/pkg/style.css", "body { margin: 0 }")
	f.write("main.js", "import 'pkg/style.css';\nstart();\n")

	st, _, err := f.run(f.engine(Options{}, nil), "main.js")
	require.NoError(t, err)

	out := f.read("main.js")
	assert.NotContains(t, out, "import 'pkg/style.css'")
	assert.Contains(t, out, `fetch(__GetModuleDir() + "pkg/style.css"`)
	assert.Contains(t, out, "document.createElement('style')")
	assert.True(t, strings.HasSuffix(out, plugin.ModuleDirHelper(false)))
	assert.False(t, f.exists("pkg/style.css"), "injected assets are not copied")
	assert.Equal(t, 1, st.Stats.Assets)
}

func TestJSONImportFetchesAndCopies(t *testing.T) {
	f := newFixture(t)
	f.write("node_modules/pkg/package.json", `{"name": "pkg"}`)
	f.write("node_modules/pkg/data.json", `{"answer": 42}`)
	f.write("src/main.js", "import data from 'pkg/data.json';\n")

	_, _, err := f.run(f.engine(Options{}, nil), "src/main.js")
	require.NoError(t, err)

	out := f.read("src/main.js")
	assert.Contains(t, out, "let data;")
	assert.Contains(t, out, `fetch(__GetModuleDir() + "../pkg/data.json", {"cache":"force-cache"})`)
	assert.Contains(t, out, "response.json()")
	assert.Equal(t, `{"answer": 42}`, f.read("pkg/data.json"))
}

func TestModuleActionWritesWrapper(t *testing.T) {
	f := newFixture(t)
	f.write("view.html", `<p class="x">hi</p>`)
	f.write("main.js", "import tpl from './view.html';\nexport { tpl };\n")

	plugins, err := plugin.FromSpecs([]plugin.Spec{{Test: `\.html$`, Action: "module"}})
	require.NoError(t, err)

	_, _, err = f.run(f.engine(Options{}, plugins), "main.js")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.read("main.js"), "import tpl from './view.html.js';\nexport { tpl };\n"))
	assert.Equal(t, `export default "<p class=\"x\">hi</p>";`, f.read("view.html.js"))
}

func TestTransformIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.write("node_modules/pkg/package.json", `{"name": "pkg", "module": "esm/index.js"}`)
	f.write("node_modules/pkg/esm/index.js", "export default {};")
	f.write("node_modules/pkg/data.json", `[1, 2]`)
	f.write("main.js", "import pkg from 'pkg';\nimport data from 'pkg/data.json';\nimport './y';\n")
	f.write("y.js", "import 'pkg/theme.css';\n")

	e := f.engine(Options{}, nil)
	_, _, err := f.run(e, "main.js")
	require.NoError(t, err)
	first := f.read("main.js")
	firstY := f.read("y.js")

	_, _, err = f.run(e, "main.js")
	require.NoError(t, err)
	assert.Equal(t, first, f.read("main.js"))
	assert.Equal(t, firstY, f.read("y.js"))
}

func TestDuplicateStatementsEachReplacedOnce(t *testing.T) {
	f := newFixture(t)
	f.write("main.js", "import './y';\nrun();\nimport './y';\n")
	f.write("y.js", "")

	st, _, err := f.run(f.engine(Options{}, nil), "main.js")
	require.NoError(t, err)
	assert.Equal(t, "import './y.js';\nrun();\nimport './y.js';\n", f.read("main.js"))
	assert.Equal(t, 2, st.Stats.Rewrites)
	assert.Equal(t, 2, st.Len())
}

func TestBareImportLinksWithoutFollowing(t *testing.T) {
	f := newFixture(t)
	f.write("node_modules/lib/package.json", `{"name": "lib", "module": "esm/index.js"}`)
	f.write("node_modules/lib/esm/index.js", "export * from './util';")
	f.write("node_modules/lib/esm/util.js", "export const u = 1;")
	f.write("main.js", "import lib from 'lib';\nimport { u } from 'lib/esm/util';\n")

	st, _, err := f.run(f.engine(Options{}, nil), "main.js")
	require.NoError(t, err)
	assert.Equal(t, "import lib from './lib/esm/index.js';\nimport { u } from './lib/esm/util.js';\n", f.read("main.js"))
	assert.Equal(t, 1, st.Len())
	assert.False(t, f.exists("lib/esm/index.js"), "dependencies are built from their own entry")

	p, ok := f.packages.Get("lib")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(f.out, "lib"), p.OutRoot)
}

func TestFollowDepthBoundsDependencies(t *testing.T) {
	chain := func(f *fixture, dir string) {
		f.write(dir+"/index.js", "import './a';")
		f.write(dir+"/a.js", "import './b';")
		f.write(dir+"/b.js", "import './c';")
		f.write(dir+"/c.js", "")
	}

	for _, tc := range []struct {
		depth int
		want  int
	}{
		{depth: 0, want: 4},
		{depth: 1, want: 2},
		{depth: 2, want: 3},
	} {
		f := newFixture(t)
		f.write("node_modules/dep/package.json", `{"name": "dep"}`)
		chain(f, "node_modules/dep")

		e := f.engine(Options{FollowDepth: tc.depth}, nil)
		resolver, err := npm.NewResolver(0, quiet())
		require.NoError(t, err)
		tr, ok := resolver.Track("dep", f.lookup)
		require.True(t, ok)
		dep, err := resolver.Provide(f.packages, tr, f.out)
		require.NoError(t, err)

		st := NewState()
		_, err = e.TransformFile(dep.SrcEntry(), dep.OutEntry(), dep, st)
		require.NoError(t, err)
		assert.Equal(t, tc.want, st.Len(), "followDepth %d", tc.depth)
	}
}

func TestFollowDepthIgnoredForWorkspace(t *testing.T) {
	f := newFixture(t)
	f.write("index.js", "import './a';")
	f.write("a.js", "import './b';")
	f.write("b.js", "import './c';")
	f.write("c.js", "")

	st, _, err := f.run(f.engine(Options{FollowDepth: 1}, nil), "index.js")
	require.NoError(t, err)
	assert.Equal(t, 4, st.Len())
}

func TestUnresolvedPackageIsKept(t *testing.T) {
	f := newFixture(t)
	src := "import x from 'missing';\nimport { y } from './nowhere';\n"
	f.write("main.js", src)

	st, outcome, err := f.run(f.engine(Options{}, nil), "main.js")
	require.NoError(t, err)
	assert.Equal(t, Written, outcome)
	assert.Equal(t, src, f.read("main.js"))
	assert.Equal(t, 1, st.Stats.Failures)
}

func TestAssetWithoutPluginIsKept(t *testing.T) {
	f := newFixture(t)
	f.write("d.json", "{}")
	f.write("main.js", "import d from './d.json';")

	plugins, err := plugin.FromSpecs([]plugin.Spec{{Name: "css"}})
	require.NoError(t, err)

	st, _, err := f.run(f.engine(Options{}, plugins), "main.js")
	require.NoError(t, err)
	assert.Equal(t, "import d from './d.json';", f.read("main.js"))
	assert.Equal(t, 1, st.Stats.Failures)
	assert.False(t, f.exists("d.json"))
}

func TestHelperPlacement(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "hello")
	f.write("main.js", "import text from './a.txt';")

	_, _, err := f.run(f.engine(Options{Prod: true}, nil), "main.js")
	require.NoError(t, err)
	prod := f.read("main.js")
	assert.True(t, strings.HasPrefix(prod, plugin.ModuleDirHelper(true)+"\n"))
	assert.Contains(t, prod, "let text;")

	_, _, err = f.run(f.engine(Options{}, nil), "main.js")
	require.NoError(t, err)
	dev := f.read("main.js")
	assert.True(t, strings.HasSuffix(dev, "\n"+plugin.ModuleDirHelper(false)))
	assert.Equal(t, "hello", f.read("a.txt"))
}

func TestPluginErrorAbortsFile(t *testing.T) {
	f := newFixture(t)
	f.write("a.css", "")
	f.write("main.js", "export * from './a.css';")

	_, _, err := f.run(f.engine(Options{}, nil), "main.js")
	require.Error(t, err)
	assert.True(t, errors.Is(err, plugin.ErrExportUnsupported))
	assert.Contains(t, err.Error(), "main.js:1")
	assert.False(t, f.exists("main.js"))
}

func TestSkippedOutcomes(t *testing.T) {
	f := newFixture(t)
	f.write("main.js", "")
	e := f.engine(Options{}, nil)

	st := NewState()
	outcome, err := e.TransformFile(filepath.Join(f.ws, "nope.js"), filepath.Join(f.out, "nope.js"), f.host, st)
	require.NoError(t, err)
	assert.Equal(t, SkippedNotFound, outcome)

	outcome, err = e.TransformFile(f.ws, f.out, f.host, st)
	require.NoError(t, err)
	assert.Equal(t, SkippedNotFound, outcome, "directories are not inputs")

	_, err = e.TransformFile(filepath.Join(f.ws, "main.js"), filepath.Join(f.out, "main.js"), f.host, st)
	require.NoError(t, err)
	outcome, err = e.TransformFile(filepath.Join(f.ws, "main.js"), filepath.Join(f.out, "main.js"), f.host, st)
	require.NoError(t, err)
	assert.Equal(t, SkippedAlreadyDone, outcome)
	assert.Equal(t, "skipped (already done)", outcome.String())

	st.Reset()
	assert.Zero(t, st.Len())
	assert.Zero(t, st.Stats)
}
