package host

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FSWriter writes assets under Root. Names are slash-separated and relative
// to Root unless absolute. In DryRun mode content is only kept in memory.
//
// FSWriter is safe for concurrent use.
type FSWriter struct {
	Root   string
	DryRun bool

	mu      sync.Mutex
	written map[string][]byte
}

// NewFSWriter returns a writer rooted at root.
func NewFSWriter(root string, dryRun bool) *FSWriter {
	return &FSWriter{Root: root, DryRun: dryRun}
}

// Path returns the filesystem path name is written to.
func (w *FSWriter) Path(name string) string {
	p := filepath.FromSlash(name)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.Root, p)
}

// WriteAsset stores content under name, replacing any existing file
// atomically.
func (w *FSWriter) WriteAsset(name string, content []byte) error {
	if name == "" {
		return fmt.Errorf("asset name is required")
	}
	buf := append([]byte(nil), content...)

	if !w.DryRun {
		if err := writeFileAtomic(w.Path(name), buf); err != nil {
			return fmt.Errorf("writing asset %s: %w", name, err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written == nil {
		w.written = make(map[string][]byte)
	}
	w.written[name] = buf
	return nil
}

// Content returns what was last written under name.
func (w *FSWriter) Content(name string) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.written[name]
	return b, ok
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
