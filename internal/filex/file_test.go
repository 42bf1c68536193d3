package filex

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir_CreatesDirectory(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "data", "bookly.db")

	require.NoError(t, EnsureParentDir(path))
	fi, err := os.Stat(filepath.Join(tmp, "data"))
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	// idempotent
	require.NoError(t, EnsureParentDir(path))
}

func TestEnsureParentDir_BareFileName(t *testing.T) {
	require.NoError(t, EnsureParentDir("bookly.db"))
}

func TestEnsureParentDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o660))

	require.Error(t, EnsureParentDir(filepath.Join(blocker, "bookly.db")))
}

func TestOpenLocal_ContentTypeFromExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novel.PDF")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 body"), 0o600))

	f, err := OpenLocal(path)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, "novel.PDF", f.Name)
	require.Equal(t, "application/pdf", f.ContentType)
	require.EqualValues(t, 13, f.Size)
}

func TestOpenLocal_SniffsWithoutExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover")
	png := []byte("\x89PNG\r\n\x1a\n0000")
	require.NoError(t, os.WriteFile(path, png, 0o600))

	f, err := OpenLocal(path)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, "image/png", f.ContentType)

	// the sniffed prefix must still be readable
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, png, b)
}

func TestOpenLocal_Errors(t *testing.T) {
	_, err := OpenLocal(filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)

	_, err = OpenLocal(t.TempDir())
	require.Error(t, err)
}
