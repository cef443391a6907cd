package storage

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webextkit/bridge/internal/logging"
	"github.com/webextkit/bridge/internal/types"
)

func newTestEngine(t *testing.T, quota int) (*Engine, *FileStore) {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewEngine(store, quota, logging.NewDefault()), store
}

func TestRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	require.NoError(t, e.Set("ext-a", map[string]interface{}{"a": 1.0, "b": 2.0}))

	got, err := e.Get("ext-a", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": 1.0}, got)

	require.NoError(t, e.Remove("ext-a", []string{"a"}))
	got, err = e.Get("ext-a", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"b": 2.0}, got)

	require.NoError(t, e.Clear("ext-a"))
	got, err = e.Get("ext-a", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetAbsentKeysOmitted(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	require.NoError(t, e.Set("ext-a", map[string]interface{}{"a": 1.0}))

	got, err := e.Get("ext-a", []string{"a", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": 1.0}, got)
}

func TestQuotaAtomicity(t *testing.T) {
	e, store := newTestEngine(t, 256)

	require.NoError(t, e.Set("ext-a", map[string]interface{}{"keep": "small"}))
	before, ok, err := store.Load("ext-a")
	require.NoError(t, err)
	require.True(t, ok)

	huge := strings.Repeat("x", 1024)
	err = e.Set("ext-a", map[string]interface{}{"big": huge})
	assert.ErrorIs(t, err, types.ErrQuotaExceeded)

	// Durable mapping is byte-for-byte untouched
	after, ok, err := store.Load("ext-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before, after)

	// In-memory view untouched too
	got, err := e.Get("ext-a", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"keep": "small"}, got)
}

func TestChangeEvents(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	var gotExt string
	var gotChanges map[string]Change
	e.Subscribe(func(ext string, changes map[string]Change) {
		gotExt = ext
		gotChanges = changes
	})

	require.NoError(t, e.Set("ext-a", map[string]interface{}{"a": 1.0}))
	assert.Equal(t, "ext-a", gotExt)
	require.Contains(t, gotChanges, "a")
	assert.Nil(t, gotChanges["a"].OldValue)
	assert.Equal(t, 1.0, gotChanges["a"].NewValue)

	// Overwrite reports old and new; a same-value overwrite still counts
	require.NoError(t, e.Set("ext-a", map[string]interface{}{"a": 1.0}))
	assert.Equal(t, 1.0, gotChanges["a"].OldValue)
	assert.Equal(t, 1.0, gotChanges["a"].NewValue)

	require.NoError(t, e.Remove("ext-a", []string{"a"}))
	assert.Equal(t, 1.0, gotChanges["a"].OldValue)
	assert.Nil(t, gotChanges["a"].NewValue)
}

func TestRemoveAbsentKeysEmitsNothing(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	fired := false
	e.Subscribe(func(string, map[string]Change) { fired = true })

	require.NoError(t, e.Remove("ext-a", []string{"ghost"}))
	assert.False(t, fired, "no-op mutation must not emit a change-set")
}

func TestGetBytesInUse(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	require.NoError(t, e.Set("ext-a", map[string]interface{}{"a": 1.0, "bb": "vv"}))

	whole, err := e.GetBytesInUse("ext-a", nil)
	require.NoError(t, err)
	full, _ := json.Marshal(map[string]interface{}{"a": 1.0, "bb": "vv"})
	assert.Equal(t, len(full), whole)

	subset, err := e.GetBytesInUse("ext-a", []string{"bb"})
	require.NoError(t, err)
	value, _ := json.Marshal("vv")
	assert.Equal(t, len("bb")+len(value), subset)

	absent, err := e.GetBytesInUse("ext-a", []string{"ghost"})
	require.NoError(t, err)
	assert.Zero(t, absent)
}

func TestPerExtensionIsolation(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	require.NoError(t, e.Set("ext-a", map[string]interface{}{"k": "a"}))
	require.NoError(t, e.Set("ext-b", map[string]interface{}{"k": "b"}))

	got, err := e.Get("ext-a", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"k": "a"}, got)
}

func TestReadThroughAfterRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	e := NewEngine(store, 0, logging.NewDefault())
	require.NoError(t, e.Set("ext-a", map[string]interface{}{"persisted": true}))

	// Fresh engine over the same directory sees the durable mapping
	store2, err := NewFileStore(dir)
	require.NoError(t, err)
	e2 := NewEngine(store2, 0, logging.NewDefault())

	got, err := e2.Get("ext-a", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"persisted": true}, got)
}
