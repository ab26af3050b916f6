package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session_id")
	store := NewFileStore(path)

	id, err := store.LoadSessionID()
	require.NoError(t, err)
	assert.Empty(t, id, "no file written yet")

	require.NoError(t, store.SaveSessionID("abc"))

	id, err = store.LoadSessionID()
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session_id")
	first := NewFileStore(path)
	require.NoError(t, first.SaveSessionID("abc"))

	second := NewFileStore(path)
	id, err := second.LoadSessionID()
	require.NoError(t, err)
	assert.Equal(t, "abc", id, "a fresh store instance over the same path picks up the persisted id")
}
