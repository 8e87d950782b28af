package npm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(0, nil)
	require.NoError(t, err)
	return r
}

func TestFindLookupDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "node_modules/lib/package.json", `{"name":"lib"}`)
	nested := filepath.Join(root, "packages", "app", "src")
	require.NoError(t, os.MkdirAll(nested, 0755))

	// Only .bin does not count as a lookup dir.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "packages", "app", "node_modules", ".bin"), 0755))

	dir, err := FindLookupDir(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules"), dir)
}

func TestFindLookupDir_NotFound(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0755))

	_, err := FindLookupDir(root)
	if err == nil {
		t.Skip("a node_modules directory exists above the temp dir")
	}
	assert.True(t, errors.Is(err, ErrNoLookupDir))
}

func TestTrack_ScopedSubPath(t *testing.T) {
	lookup := t.TempDir()
	writeFile(t, lookup, "@scope/pkg/package.json", `{"name":"@scope/pkg"}`)
	r := newTestResolver(t)

	tr, ok := r.Track("@scope/pkg/sub/path", lookup)
	require.True(t, ok)
	assert.Equal(t, "@scope/pkg", tr.Name)
	assert.Equal(t, "sub/path", tr.SubPath)
	assert.Equal(t, filepath.Join(lookup, "@scope", "pkg", "package.json"), tr.ManifestPath)
	assert.Equal(t, filepath.Join(lookup, "@scope", "pkg"), tr.Dir())

	tr, ok = r.Track("@scope/pkg", lookup)
	require.True(t, ok)
	assert.Empty(t, tr.SubPath)
}

func TestTrack_NestedPackageWins(t *testing.T) {
	lookup := t.TempDir()
	writeFile(t, lookup, "lodash/package.json", `{"name":"lodash"}`)
	writeFile(t, lookup, "lodash/fp/package.json", `{"name":"lodash/fp"}`)
	r := newTestResolver(t)

	tr, ok := r.Track("lodash/fp/map", lookup)
	require.True(t, ok)
	assert.Equal(t, "lodash/fp", tr.Name)
	assert.Equal(t, "map", tr.SubPath)
}

func TestTrack_Fails(t *testing.T) {
	lookup := t.TempDir()
	// Only a nested manifest: "lodash" itself has none.
	writeFile(t, lookup, "lodash/fp/package.json", `{"name":"lodash/fp"}`)
	r := newTestResolver(t)

	_, ok := r.Track("lodash", lookup)
	assert.False(t, ok)
	_, ok = r.Track("missing/deep/path", lookup)
	assert.False(t, ok)
	_, ok = r.Track("./relative", lookup)
	assert.False(t, ok)
	_, ok = r.Track("", lookup)
	assert.False(t, ok)
}

func TestEntryPoint(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want string
	}{
		{"main only", Descriptor{Main: "lib/main.js"}, "lib/main.js"},
		{"nothing", Descriptor{}, "index.js"},
		{"module over main", Descriptor{Module: "esm/index.js", Main: "cjs/index.js"}, "esm/index.js"},
		{"jsnext over module", Descriptor{JSNextMain: "next.js", Module: "esm.js"}, "next.js"},
		{"esm2015 first", Descriptor{ESM2015: "esm2015/a.js", JSNextMain: "next.js", Module: "esm.js"}, "esm2015/a.js"},
		{"browser last", Descriptor{Browser: "browser.js"}, "browser.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.EntryPoint())
		})
	}
}

func TestReadDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "package.json", `{
  "name": "demo",
  "version": "1.0.0",
  "type": "module",
  "browser": {"./node.js": "./browser.js"},
  "dependencies": {"b": "^1", "a": "^2"},
  "peerDependencies": {"a": "^2", "c": "*"}
}`)

	d, err := ReadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", d.Name)
	assert.Empty(t, string(d.Browser), "object browser maps are ignored")
	assert.True(t, d.IsModule())
	assert.Equal(t, []string{"a", "b", "c"}, d.Requires())

	bad := writeFile(t, dir, "bad/package.json", `{`)
	_, err = ReadDescriptor(bad)
	assert.Error(t, err)
}

func TestPackagePathAlgebra(t *testing.T) {
	d := &Descriptor{Name: "@scope/pkg", Module: "./esm/index.js"}
	p := NewPackage(d, "/work/node_modules/@scope/pkg/package.json", "/work/dist")

	assert.Equal(t, "/work/node_modules/@scope/pkg", p.SrcRoot)
	assert.Equal(t, "/work/dist/@scope/pkg", p.OutRoot)
	assert.Equal(t, "esm/index.js", p.Entry)
	assert.True(t, p.IsModule)
	assert.Equal(t, "/work/node_modules/@scope/pkg/esm/index.js", p.SrcEntry())
	assert.Equal(t, "/work/dist/@scope/pkg/esm/index.js", p.OutEntry())
	assert.Equal(t, "/work/dist/@scope/pkg/a/b.js", p.ResolveOut("a/b.js"))
	assert.Equal(t, "/abs/x.js", p.ResolveSrc("/abs/x.js"))

	assert.Equal(t, "../@scope/pkg/esm/index.js", p.RelativeOut("/work/dist/app"))
	assert.Equal(t, "./@scope/pkg/esm/index.js", p.RelativeOut("/work/dist"))
	assert.Equal(t, "../@scope/pkg/sub/path", p.RelativeSub("/work/dist/app", "sub/path"))
	assert.Equal(t, "../@scope/pkg/bundles/sub.js", p.RelativeInternal("/work/dist/app", "bundles", "sub.js"))

	assert.True(t, p.Contains("/work/node_modules/@scope/pkg/esm/x.js"))
	assert.False(t, p.Contains("/work/node_modules/@scope/pkg-other/x.js"))
}

func TestRelativeLink(t *testing.T) {
	assert.Equal(t, "./y.js", RelativeLink("/out", "/out/y.js"))
	assert.Equal(t, "../lib/y.js", RelativeLink("/out/app", "/out/lib/y.js"))
	assert.Equal(t, "./..hidden/y.js", RelativeLink("/out", "/out/..hidden/y.js"))
}

func TestPackageCopyFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name":"app"}`)
	writeFile(t, root, "src/index.js", "export {};")
	writeFile(t, root, "assets/logo.svg", "<svg/>")
	writeFile(t, root, "node_modules/dep/index.js", "")
	writeFile(t, root, "esmpack/dist/stale.js", "")

	d, err := ReadDescriptor(filepath.Join(root, "package.json"))
	require.NoError(t, err)
	p := NewPackageAt(d, root, filepath.Join(root, "esmpack", "dist", "app"))

	n, err := p.CopyFiles(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.FileExists(t, filepath.Join(p.OutRoot, "src", "index.js"))
	assert.FileExists(t, filepath.Join(p.OutRoot, "assets", "logo.svg"))
	assert.FileExists(t, filepath.Join(p.OutRoot, "package.json"))
	assert.NoFileExists(t, filepath.Join(p.OutRoot, "node_modules", "dep", "index.js"))
	assert.NoFileExists(t, filepath.Join(p.OutRoot, "esmpack", "dist", "stale.js"))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	a := NewPackageAt(&Descriptor{Name: "a"}, "/w/node_modules/a", "/w/dist/a")
	b := NewPackageAt(&Descriptor{Name: "b"}, "/w/node_modules/b", "/w/dist/b")
	ws := NewPackageAt(&Descriptor{Name: "ws"}, "/w", "/w/dist")

	_, added := reg.Add(ws)
	assert.True(t, added)
	reg.Add(b)
	reg.Add(a)

	// A second package with the same name never replaces the first.
	dup := NewPackageAt(&Descriptor{Name: "a"}, "/elsewhere/a", "/elsewhere/out")
	got, added := reg.Add(dup)
	assert.False(t, added)
	assert.Same(t, a, got)

	assert.Equal(t, []string{"ws", "b", "a"}, reg.Names())
	assert.Equal(t, 3, reg.Len())

	owner, ok := reg.Owner("/w/node_modules/a/lib/x.js")
	require.True(t, ok)
	assert.Equal(t, "a", owner.Name())
	owner, ok = reg.Owner("/w/src/main.js")
	require.True(t, ok)
	assert.Equal(t, "ws", owner.Name())
	_, ok = reg.Owner("/other/x.js")
	assert.False(t, ok)
}

func TestResolverProvideRegistersOnce(t *testing.T) {
	lookup := t.TempDir()
	writeFile(t, lookup, "dep/package.json", `{"name":"dep","main":"lib/index.js","dependencies":{"x":"1"}}`)
	r := newTestResolver(t)
	reg := NewRegistry()

	tr, ok := r.Track("dep/lib/util", lookup)
	require.True(t, ok)

	p1, err := r.Provide(reg, tr, "/out")
	require.NoError(t, err)
	p2, err := r.Provide(reg, tr, "/out")
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, "lib/index.js", p1.Entry)
	assert.Equal(t, filepath.Join("/out", "dep"), p1.OutRoot)
}

func TestPackageName(t *testing.T) {
	assert.Equal(t, "lodash", PackageName("lodash/fp/map"))
	assert.Equal(t, "@scope/pkg", PackageName("@scope/pkg/sub"))
	assert.Equal(t, "@scope", PackageName("@scope"))
}
