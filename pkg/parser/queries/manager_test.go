package queries

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/esmpack/pkg/parser"
)

func run(t *testing.T, path, src string) []Match {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pm := parser.NewParserManager(1, logger)
	defer pm.Close()
	qm := NewQueryManager(logger)
	defer qm.Close()

	tree, err := pm.ParseFile([]byte(src), path)
	require.NoError(t, err)
	defer tree.Close()

	q, err := qm.Query(parser.DetectDialect(path), KindModules)
	require.NoError(t, err)
	matches, err := qm.Run(tree, q, []byte(src))
	require.NoError(t, err)
	return matches
}

func captured(matches []Match, name string) []string {
	var out []string
	for _, m := range matches {
		if c, ok := m.Get(name); ok {
			out = append(out, c.Text)
		}
	}
	return out
}

func TestModuleQuery(t *testing.T) {
	src := `import a from './a';
import './side';
export { b } from 'b';
export * from "./c";
export const local = 1;
const d = require('d');
const { e } = require("./e").x;
import('./lazy').then(m => m);
module.exports = a;
exports.one = 1;
module.exports.two = 2;
`
	for _, path := range []string{"mod.js", "mod.ts", "mod.tsx"} {
		t.Run(path, func(t *testing.T) {
			matches := run(t, path, src)
			assert.Equal(t, []string{"./a", "./side", "b", "./c"}, captured(matches, "static.source"))
			assert.Equal(t, []string{"d", "./e"}, captured(matches, "require.source"))
			assert.Equal(t, []string{"./lazy"}, captured(matches, "dynamic.source"))
			assert.Equal(t, []string{"one", "two"}, captured(matches, "cjs.name"))
			assert.Len(t, captured(matches, "cjs.default"), 1)
		})
	}
}

func TestModuleQueryIgnoresLookalikes(t *testing.T) {
	src := `const s = "import x from 'y'";
// const z = require('z');
obj.require('w');
require(name);
other.exports = 1;
`
	matches := run(t, "a.js", src)
	assert.Empty(t, captured(matches, "static.source"))
	assert.Empty(t, captured(matches, "require.source"))
	assert.Empty(t, captured(matches, "cjs.name"))
	assert.Empty(t, captured(matches, "cjs.default"))
}

func TestCaptureLocation(t *testing.T) {
	matches := run(t, "a.js", "\n\nimport x from './x';\n")
	require.NotEmpty(t, matches)
	c, ok := matches[0].Get("static.statement")
	require.True(t, ok)
	assert.Equal(t, "static", c.Category)
	assert.Equal(t, "statement", c.Field)
	assert.Equal(t, uint32(3), c.Location.StartLine)
	assert.Equal(t, uint32(1), c.Location.StartColumn)
	assert.Equal(t, uint32(2), c.Location.StartByte)
}

func TestQueryCache(t *testing.T) {
	qm := NewQueryManager(nil)
	defer qm.Close()

	d := parser.Dialect{Language: parser.LanguageJavaScript}
	q1, err := qm.Query(d, KindModules)
	require.NoError(t, err)
	q2, err := qm.Query(d, KindModules)
	require.NoError(t, err)
	assert.Same(t, q1, q2)

	_, err = qm.Query(parser.Dialect{}, KindModules)
	assert.Error(t, err)
	_, err = qm.Query(d, Kind(9))
	assert.Error(t, err)
	_, err = qm.Run(nil, q1, nil)
	assert.Error(t, err)
}
