package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaver_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	store := NewStore()
	store.Publish("demo", CategoryScene, json.RawMessage(`{"t":"DISPLAY_SCENE_STATE","room":"demo","title":"Ambush"}`))
	store.Publish("demo", CategoryClocks, json.RawMessage(`{"t":"DISPLAY_CLOCKS_STATE","room":"demo","clocks":[]}`))
	store.Publish("other", CategoryCountdown, json.RawMessage(`{"t":"DISPLAY_COUNTDOWN","room":"other","n":3}`))

	saver := NewSaver(store, dir, time.Second)
	require.NoError(t, saver.Flush())
	assert.False(t, store.Dirty())

	restored := NewStore()
	NewSaver(restored, dir, time.Second).Load()

	scene, ok := restored.Get("demo", CategoryScene)
	require.True(t, ok)
	assert.JSONEq(t, `{"t":"DISPLAY_SCENE_STATE","room":"demo","title":"Ambush"}`, string(scene))

	countdown, ok := restored.Get("other", CategoryCountdown)
	require.True(t, ok)
	assert.JSONEq(t, `{"t":"DISPLAY_COUNTDOWN","room":"other","n":3}`, string(countdown))

	assert.Len(t, restored.Snapshot("demo"), 2)
	assert.False(t, restored.Dirty())
}

func TestSaver_FlushSkippedWhenClean(t *testing.T) {
	dir := t.TempDir()
	saver := NewSaver(NewStore(), dir, time.Second)

	require.NoError(t, saver.Flush())

	_, err := os.Stat(filepath.Join(dir, snapshotName))
	assert.True(t, os.IsNotExist(err))
}

func TestSaver_LoadMissingFile(t *testing.T) {
	store := NewStore()
	NewSaver(store, t.TempDir(), time.Second).Load()

	assert.Empty(t, store.Snapshot("demo"))
	assert.False(t, store.Dirty())
}

func TestSaver_LoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotName), []byte("{not json"), 0o644))

	store := NewStore()
	store.Publish("demo", CategoryScene, json.RawMessage(`{"kept":true}`))
	NewSaver(store, dir, time.Second).Load()

	// Malformed snapshot is ignored; in-memory state untouched.
	payload, ok := store.Get("demo", CategoryScene)
	require.True(t, ok)
	assert.JSONEq(t, `{"kept":true}`, string(payload))
}

func TestSaver_LoadTolerantOfMissingKeys(t *testing.T) {
	dir := t.TempDir()
	partial := `{"scene":{"demo":{"title":"Ambush"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotName), []byte(partial), 0o644))

	store := NewStore()
	NewSaver(store, dir, time.Second).Load()

	scene, ok := store.Get("demo", CategoryScene)
	require.True(t, ok)
	assert.JSONEq(t, `{"title":"Ambush"}`, string(scene))
	_, ok = store.Get("demo", CategoryCountdown)
	assert.False(t, ok)
}

func TestSaver_BurstsCollapseIntoOneWrite(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()
	saver := NewSaver(store, dir, time.Second)

	for i := 0; i < 10; i++ {
		store.Publish("demo", CategoryScene, json.RawMessage(`{"rev":1}`))
	}
	require.NoError(t, saver.Flush())
	info1, err := os.Stat(filepath.Join(dir, snapshotName))
	require.NoError(t, err)

	// Nothing new published: the next flush must not rewrite the file.
	require.NoError(t, saver.Flush())
	info2, err := os.Stat(filepath.Join(dir, snapshotName))
	require.NoError(t, err)
	assert.Equal(t, info1.ModTime(), info2.ModTime())
}
