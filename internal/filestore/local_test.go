package filestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := New("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, SaveBytes(ctx, store, "cards/abc123", []byte("hello world")))
	data, err := ReadBytes(ctx, store, "cards/abc123")
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))

	// Overwrite replaces content.
	require.NoError(t, SaveBytes(ctx, store, "cards/abc123", []byte("v2")))
	data, err = ReadBytes(ctx, store, "cards/abc123")
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))

	require.NoError(t, store.Delete(ctx, "cards/abc123"))
	_, err = ReadBytes(ctx, store, "cards/abc123")
	require.Error(t, err)
}

func TestLocalStoreDeleteMissingIsNoop(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Delete(context.Background(), "cards/never-existed"))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.Error(t, SaveBytes(ctx, store, "../escape", []byte("x")))
	_, err := ReadBytes(ctx, store, "a/../../etc/passwd")
	require.Error(t, err)
}

func TestNewUnknownStoreType(t *testing.T) {
	_, err := New("tape-drive", nil)
	require.Error(t, err)
}
