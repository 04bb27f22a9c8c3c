package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoltBlobs(t *testing.T) (*BoltBlobs, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	blobs := NewBoltBlobs(openTestBolt(t))
	blobs.now = clock.now
	return blobs, clock
}

func TestBoltBlobs_PutGetHead(t *testing.T) {
	ctx := context.Background()
	blobs, clock := newTestBoltBlobs(t)

	_, _, err := blobs.Get(ctx, "vaults/v/a")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, err = blobs.Head(ctx, "vaults/v/a")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, blobs.Put(ctx, "vaults/v/a", []byte("cipher"), "text/markdown"))

	data, meta, err := blobs.Get(ctx, "vaults/v/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("cipher"), data)
	assert.Equal(t, "vaults/v/a", meta.Key)
	assert.Equal(t, int64(6), meta.Size)
	assert.Equal(t, "text/markdown", meta.ContentType)
	assert.True(t, clock.now().Equal(meta.Uploaded))

	head, err := blobs.Head(ctx, "vaults/v/a")
	require.NoError(t, err)
	assert.Equal(t, meta.Size, head.Size)
	assert.Equal(t, meta.ContentType, head.ContentType)
}

func TestBoltBlobs_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	blobs, clock := newTestBoltBlobs(t)

	require.NoError(t, blobs.Put(ctx, "k", []byte("first"), "text/plain"))
	clock.advance(time.Minute)
	require.NoError(t, blobs.Put(ctx, "k", []byte("second!"), "application/json"))

	data, meta, err := blobs.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("second!"), data)
	assert.Equal(t, int64(7), meta.Size)
	assert.Equal(t, "application/json", meta.ContentType)
	assert.True(t, clock.now().Equal(meta.Uploaded))
}

func TestBoltBlobs_Delete(t *testing.T) {
	ctx := context.Background()
	blobs, _ := newTestBoltBlobs(t)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, blobs.Put(ctx, k, []byte(k), "text/plain"))
	}

	require.NoError(t, blobs.Delete(ctx, "a", "c", "missing"))
	require.NoError(t, blobs.Delete(ctx))

	_, err := blobs.Head(ctx, "a")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, err = blobs.Head(ctx, "b")
	assert.NoError(t, err)
	_, err = blobs.Head(ctx, "c")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestBoltBlobs_ListPagination(t *testing.T) {
	ctx := context.Background()
	blobs, _ := newTestBoltBlobs(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, blobs.Put(ctx, fmt.Sprintf("vaults/v1/f%d", i), []byte("x"), "text/plain"))
	}
	// neighbouring namespaces must not leak into the listing
	require.NoError(t, blobs.Put(ctx, "vaults/v10/other", []byte("x"), "text/plain"))
	require.NoError(t, blobs.Put(ctx, "vaults/v0/other", []byte("x"), "text/plain"))

	var keys []string
	cursor := ""
	pages := 0
	for {
		res, err := blobs.List(ctx, ListOptions{Prefix: "vaults/v1/", Cursor: cursor, Limit: 2})
		require.NoError(t, err)
		pages++
		for _, o := range res.Objects {
			keys = append(keys, o.Key)
		}
		if !res.Truncated {
			assert.Empty(t, res.Cursor)
			break
		}
		require.NotEmpty(t, res.Cursor)
		cursor = res.Cursor
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{
		"vaults/v1/f0", "vaults/v1/f1", "vaults/v1/f2", "vaults/v1/f3", "vaults/v1/f4",
	}, keys)
}

func TestBoltBlobs_ListExactPageIsNotTruncated(t *testing.T) {
	ctx := context.Background()
	blobs, _ := newTestBoltBlobs(t)

	require.NoError(t, blobs.Put(ctx, "p/a", []byte("x"), ""))
	require.NoError(t, blobs.Put(ctx, "p/b", []byte("x"), ""))

	res, err := blobs.List(ctx, ListOptions{Prefix: "p/", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Objects, 2)
	assert.False(t, res.Truncated)
}

func TestBoltBlobs_ListResumesAfterDeletedCursorKey(t *testing.T) {
	ctx := context.Background()
	blobs, _ := newTestBoltBlobs(t)

	for _, k := range []string{"p/a", "p/b", "p/c"} {
		require.NoError(t, blobs.Put(ctx, k, []byte("x"), ""))
	}

	first, err := blobs.List(ctx, ListOptions{Prefix: "p/", Limit: 1})
	require.NoError(t, err)
	require.True(t, first.Truncated)
	require.NoError(t, blobs.Delete(ctx, "p/a"))

	second, err := blobs.List(ctx, ListOptions{Prefix: "p/", Cursor: first.Cursor, Limit: 10})
	require.NoError(t, err)
	require.Len(t, second.Objects, 2)
	assert.Equal(t, "p/b", second.Objects[0].Key)
}

func TestBoltBlobs_ListInvalidCursor(t *testing.T) {
	ctx := context.Background()
	blobs, _ := newTestBoltBlobs(t)

	_, err := blobs.List(ctx, ListOptions{Prefix: "vaults/a/", Cursor: "%%%"})
	assert.ErrorIs(t, err, ErrInvalidCursor)

	// a cursor from another namespace is rejected
	foreign := encodeCursor("vaults/b/x")
	_, err = blobs.List(ctx, ListOptions{Prefix: "vaults/a/", Cursor: foreign})
	assert.ErrorIs(t, err, ErrInvalidCursor)
}
