package atomicwrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile_ReplacesContent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "marker")

	require.NoError(t, AtomicWriteFile(p, []byte("one"), 0o644))
	require.NoError(t, AtomicWriteFile(p, []byte("two"), 0o644))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "two", string(b))

	// no quedan temporales
	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestPublishDir(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, ".tmp-v1")
	target := filepath.Join(dir, "v1")

	require.NoError(t, os.MkdirAll(tmp, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "metadata.json"), []byte("{}"), 0o644))
	require.NoError(t, PublishDir(tmp, target))

	_, err := os.Stat(filepath.Join(target, "metadata.json"))
	require.NoError(t, err)
	_, err = os.Stat(tmp)
	require.True(t, os.IsNotExist(err))

	// segundo publish no pisa
	require.NoError(t, os.MkdirAll(tmp, 0o755))
	require.ErrorIs(t, PublishDir(tmp, target), ErrExists)
}

func TestPublishDir_RejectsNonSibling(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "a", ".tmp")
	require.NoError(t, os.MkdirAll(tmp, 0o755))
	require.Error(t, PublishDir(tmp, filepath.Join(dir, "b", "v1")))
}
