package blob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStorePutWritesAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "http://localhost:8080/uploads/")
	require.NoError(t, err)

	url, err := store.Put("report.pdf", "application/pdf", []byte("pdf bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/report.pdf", url)

	data, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))
}

func TestFSStoreSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "http://localhost:8080/uploads")
	require.NoError(t, err)

	url, err := store.Put("../../etc/pass wd?.txt", "text/plain", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/pass_wd_.txt", url)

	_, err = os.Stat(filepath.Join(dir, "pass_wd_.txt"))
	assert.NoError(t, err)
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "photo.png", SanitizeKey("photo.png"))
	assert.Equal(t, "a_b.png", SanitizeKey("a b.png"))
	assert.Equal(t, "passwd", SanitizeKey("/etc/passwd"))
	assert.Equal(t, "sc_ipt_.js", SanitizeKey("sc<ipt>.js"))
}
