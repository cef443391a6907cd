package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Load("ext-a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save("ext-a", []byte(`{"a":1}`)))

	data, ok, err := store.Load("ext-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(data))

	require.NoError(t, store.Delete("ext-a"))
	_, ok, err = store.Load("ext-a")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting again is not an error
	require.NoError(t, store.Delete("ext-a"))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("ext-a", []byte(`{}`)))
	require.NoError(t, store.Save("ext-a", []byte(`{"b":2}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileStoreEscapesExtensionID(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("../evil", []byte(`{}`)))

	_, err = os.Stat(filepath.Join(dir, "..", "evil.json"))
	assert.True(t, os.IsNotExist(err), "record must stay inside the storage dir")

	data, ok, err := store.Load("../evil")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{}`), data)
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Load("ext-a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save("ext-a", []byte(`{"a":1}`)))

	data, ok, err := store.Load("ext-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(data))

	require.NoError(t, store.Delete("ext-a"))
	_, ok, err = store.Load("ext-a")
	require.NoError(t, err)
	assert.False(t, ok)
}
