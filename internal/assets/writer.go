package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
)

// writer writes build output and remembers what it wrote so the build can be
// fingerprinted.
type writer struct {
	files map[string][]byte
}

func newWriter() *writer {
	return &writer{files: make(map[string][]byte)}
}

func (w *writer) write(path string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.files[path] = contents
	return nil
}

func (w *writer) paths() []string {
	out := make([]string, 0, len(w.files))
	for path := range w.files {
		out = append(out, path)
	}
	slices.Sort(out)
	return out
}

// digest is a CRC64-NVME over every written path and its contents, base58
// encoded. Identical output gives an identical digest.
func (w *writer) digest() string {
	h := crc64nvme.New()
	for _, path := range w.paths() {
		_, _ = h.Write([]byte(path))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(w.files[path])
	}
	return base58.Encode(h.Sum(nil))
}
