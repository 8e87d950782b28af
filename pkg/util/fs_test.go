package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "mod.js")
	content := "import a from './a';\n// ünïcode 你好\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	empty := filepath.Join(dir, "empty.js")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	data, err = ReadFile(empty)
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = ReadFile(filepath.Join(dir, "missing.js"))
	assert.True(t, os.IsNotExist(err))

	_, err = ReadFile(dir)
	assert.Error(t, err)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "data.json")
	large := strings.Repeat(`{"k":"v"},`, 10000)
	require.NoError(t, os.WriteFile(src, []byte(large), 0644))

	dst := filepath.Join(dir, "out", "nested", "data.json")
	require.NoError(t, CopyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, large, string(got))

	// Overwrites an existing, longer file.
	require.NoError(t, os.WriteFile(src, []byte("{}"), 0644))
	require.NoError(t, CopyFile(src, dst))
	got, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))

	emptySrc := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(emptySrc, nil, 0644))
	require.NoError(t, CopyFile(emptySrc, filepath.Join(dir, "out", "empty.txt")))
	assert.True(t, IsFile(filepath.Join(dir, "out", "empty.txt")))
}

func TestCopyFileOntoItself(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"a":1}`), 0644))

	require.NoError(t, CopyFile(src, src))
	require.NoError(t, CopyFile(src, filepath.Join(dir, ".", "data.json")))

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "c.js")

	require.NoError(t, WriteFile(path, []byte("export {};")))
	assert.True(t, IsFile(path))
	assert.True(t, IsDir(filepath.Join(dir, "a", "b")))
	assert.False(t, IsDir(path))
	assert.False(t, IsFile(filepath.Join(dir, "a")))
}

func TestParseLogLevelAndFormat(t *testing.T) {
	level, err := ParseLogLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, level)

	level, err = ParseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, level)

	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)

	format, err := ParseLogFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, format)

	_, err = ParseLogFormat("xml")
	assert.Error(t, err)
}

func TestNewLoggerFormats(t *testing.T) {
	var sb strings.Builder
	logger := NewLogger(LoggerConfig{Level: LevelInfo, Format: FormatJSON, Output: &sb})
	logger.Debug("hidden")
	logger.Info("transformed", "file", "a.js")
	assert.NotContains(t, sb.String(), "hidden")
	assert.Contains(t, sb.String(), `"file":"a.js"`)

	sb.Reset()
	pretty := NewLogger(LoggerConfig{Level: LevelWarn, Format: FormatPretty, Output: &sb})
	pretty.Info("quiet")
	pretty.Warn("loud", "file", "b.js")
	assert.NotContains(t, sb.String(), "quiet")
	assert.Contains(t, sb.String(), "loud")
	assert.Contains(t, sb.String(), "b.js")
}
