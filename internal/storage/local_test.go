package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte("fake jpeg bytes")

	err = store.Put(ctx, "reports/r1/photo.jpg", data, "image/jpeg")
	require.NoError(t, err)

	got, err := store.Get(ctx, "reports/r1/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	err = store.Delete(ctx, "reports/r1/photo.jpg")
	require.NoError(t, err)

	_, err = store.Get(ctx, "reports/r1/photo.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_GetMissing(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nope.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_DeleteMissingIsNoop(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "missing.jpg"))
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	for _, key := range []string{"../outside.jpg", "a/../../outside.jpg", ""} {
		err := store.Put(ctx, key, []byte("x"), "image/jpeg")
		assert.Error(t, err, "key %q should be rejected", key)
	}
}

func TestLocalStore_OverwriteReplacesObject(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k", []byte("one"), "image/jpeg"))
	require.NoError(t, store.Put(ctx, "k", []byte("two"), "image/jpeg"))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}
