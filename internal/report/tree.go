package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disiqueira/gotree/v3"
)

// FileTree renders paths as an indented tree.
type FileTree struct {
	tree gotree.Tree
	dirs map[string]gotree.Tree
}

func NewFileTree(rootLabel string) FileTree {
	return FileTree{tree: gotree.New(rootLabel), dirs: make(map[string]gotree.Tree)}
}

func (t FileTree) dir(dirPath string) gotree.Tree {
	if dirPath == "." || dirPath == string(filepath.Separator) {
		return t.tree
	}
	d := t.dirs[dirPath]
	if d == nil {
		d = t.dir(filepath.Dir(dirPath)).Add(filepath.Base(dirPath))
		t.dirs[dirPath] = d
	}
	return d
}

// Insert adds the file at relPath, labelled with its size when known.
func (t FileTree) Insert(relPath string, size int64) {
	label := filepath.Base(relPath)
	if size >= 0 {
		label += "  " + FormatSize(size)
	}
	t.dir(filepath.Dir(relPath)).Add(label)
}

func (t FileTree) Render() string {
	return t.tree.Print()
}

// BuildTree renders files relative to root with their sizes on disk.
func BuildTree(root string, files []string) string {
	t := NewFileTree(root)
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			rel = f
		}
		size := int64(-1)
		if info, err := os.Stat(f); err == nil {
			size = info.Size()
		}
		t.Insert(rel, size)
	}
	return t.Render()
}

func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
