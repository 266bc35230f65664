package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileTree(t *testing.T) {
	tree := NewFileTree("output")
	tree.Insert("index.html", -1)
	tree.Insert(filepath.Join("js", "index.js"), 2048)
	tree.Insert(filepath.Join("js", "async_component", "chunk-A.js"), 10)

	out := tree.Render()
	lines := strings.Split(strings.TrimSpace(out), "\n")

	require.Equal(t, "output", lines[0])
	require.Contains(t, out, "index.html")
	require.Contains(t, out, "index.js  2.0 KiB")
	require.Contains(t, out, "chunk-A.js  10 B")
	require.Equal(t, 1, strings.Count(out, "js\n"), "directories are added once")
	require.Less(t, strings.Index(out, "async_component"), strings.Index(out, "chunk-A.js"))
}

func TestBuildTree(t *testing.T) {
	root := t.TempDir()
	page := filepath.Join(root, "index.html")
	require.NoError(t, os.WriteFile(page, []byte("<html></html>"), 0o600))

	out := BuildTree(root, []string{page, filepath.Join(root, "missing.js")})
	require.Contains(t, out, "index.html  13 B")
	require.Contains(t, out, "missing.js")
	require.NotContains(t, out, "missing.js  ")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{size: 0, expected: "0 B"},
		{size: 1023, expected: "1023 B"},
		{size: 1536, expected: "1.5 KiB"},
		{size: 5 * 1024 * 1024, expected: "5.0 MiB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatSize(tt.size))
		})
	}
}
