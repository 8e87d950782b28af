package source

import (
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

func relNames(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "src/app.js", "")
	writeFile(t, root, "src/lib/util.js", "")
	writeFile(t, root, "src/style.css", "")
	writeFile(t, root, "node_modules/dep/index.js", "")
	writeFile(t, root, "README.md", "")
	return root
}

func TestEnumerate_DefaultInput(t *testing.T) {
	root := setupTree(t)

	files, err := Enumerate(root, DefaultInput())
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "src/app.js", "src/lib/util.js", "src/style.css"}, relNames(t, root, files))

	for _, f := range files {
		assert.True(t, filepath.IsAbs(f), "expected absolute path, got %s", f)
	}
}

func TestEnumerate_EmptyInputIncludesEverything(t *testing.T) {
	root := setupTree(t)

	files, err := Enumerate(root, Input{})
	require.NoError(t, err)
	assert.Contains(t, relNames(t, root, files), "node_modules/dep/index.js")
}

func TestEnumerate_FilesAndIncludeDeduplicated(t *testing.T) {
	root := setupTree(t)

	in := Input{
		Files:   []string{"src/app.js", "missing.js"},
		Include: []string{"src/**/*.js"},
	}
	files, err := Enumerate(root, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.js", "src/lib/util.js"}, relNames(t, root, files))
}

func TestEnumerate_InvalidPattern(t *testing.T) {
	_, err := Enumerate(t.TempDir(), Input{Include: []string{"src/[a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid include pattern")
}

func TestEnumerate_ExcludeDirectory(t *testing.T) {
	root := setupTree(t)

	files, err := Enumerate(root, DefaultInput().WithExclude("src/lib/**"))
	require.NoError(t, err)
	assert.NotContains(t, relNames(t, root, files), "src/lib/util.js")
	assert.Contains(t, relNames(t, root, files), "src/app.js")
}

func TestInputMatch(t *testing.T) {
	root := "/work"
	in := Input{Include: []string{"src/**/*.js"}, Exclude: []string{"src/vendor/**/*"}}

	assert.True(t, in.Match(root, "/work/src/a/b.js"))
	assert.True(t, in.Match(root, "src/b.js"))
	assert.False(t, in.Match(root, "/work/src/b.css"))
	assert.False(t, in.Match(root, "/work/src/vendor/x.js"))
	assert.False(t, in.Match(root, "/elsewhere/src/b.js"))

	assert.True(t, DefaultInput().Match(root, "/work/any/file.txt"))
	assert.False(t, DefaultInput().Match(root, "/work/node_modules/dep/index.js"))
	assert.True(t, Input{}.Match(root, "/work/x"))
}
