package blob

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "abc.png", "image/png", []byte("pngdata")))

	rc, ct, err := store.Get(ctx, "abc.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, []byte("pngdata"), data)
	assert.Equal(t, "image/png", ct)

	require.NoError(t, store.Delete(ctx, "abc.png"))
	_, _, err = store.Get(ctx, "abc.png")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, "abc.png"))
}

func TestLocal_NestedKey(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	key := ThumbnailKey("abc.png")
	assert.Equal(t, "thumbnails/abc.jpg", key)
	require.NoError(t, store.Put(ctx, key, "image/jpeg", []byte{1, 2, 3}))

	rc, ct, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/jpeg", ct)
}

func TestLocal_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../x.png", "a/../../x", "/etc/passwd", "a\\b", "a//b"} {
		assert.ErrorIs(t, store.Put(ctx, key, "", []byte("x")), ErrInvalidKey, key)
		_, _, err := store.Get(ctx, key)
		assert.Error(t, err, key)
	}
}
