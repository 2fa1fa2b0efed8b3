package host

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSWriter_WritesRelativeAndAbsolute(t *testing.T) {
	root := t.TempDir()
	w := NewFSWriter(root, false)

	require.NoError(t, w.WriteAsset("nested/manifest.json", []byte("{}")))
	b, err := os.ReadFile(filepath.Join(root, "nested", "manifest.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	abs := filepath.Join(t.TempDir(), "elsewhere.json")
	require.NoError(t, w.WriteAsset(abs, []byte("[]")))
	b, err = os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	entries, err := os.ReadDir(filepath.Join(root, "nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFSWriter_DryRunKeepsContentInMemory(t *testing.T) {
	root := t.TempDir()
	w := NewFSWriter(root, true)
	require.NoError(t, w.WriteAsset("manifest.json", []byte("{}")))

	_, err := os.Stat(filepath.Join(root, "manifest.json"))
	assert.True(t, os.IsNotExist(err))

	b, ok := w.Content("manifest.json")
	require.True(t, ok)
	assert.Equal(t, "{}", string(b))
}

func TestFSWriter_RejectsEmptyName(t *testing.T) {
	assert.Error(t, NewFSWriter(t.TempDir(), false).WriteAsset("", nil))
}
