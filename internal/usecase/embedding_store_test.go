package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingStore_UnavailableBeforeLoad(t *testing.T) {
	store := NewEmbeddingStore(&staticSource{err: e.ErrDataUnavailable}, flatBuilder(), logger.NewNopLogger(), 0)

	_, err := store.Snapshot()
	assert.ErrorIs(t, err, e.ErrDataUnavailable)

	_, err = store.Reload(context.Background())
	assert.ErrorIs(t, err, e.ErrDataUnavailable)

	_, err = store.Snapshot()
	assert.ErrorIs(t, err, e.ErrDataUnavailable)
}

func TestEmbeddingStore_ReloadSwapsSnapshot(t *testing.T) {
	src := &staticSource{ds: domain.NewEmbeddingDataset("v1", 2, []domain.ProductEmbedding{emb("A", 1, 0)})}
	store := NewEmbeddingStore(src, flatBuilder(), logger.NewNopLogger(), 0)

	res, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &ReloadRes{Version: "v1", Products: 1, Dim: 2}, res)

	first, err := store.Snapshot()
	require.NoError(t, err)

	src.set(domain.NewEmbeddingDataset("v2", 2, []domain.ProductEmbedding{emb("A", 1, 0), emb("B", 0, 1)}), nil)
	_, err = store.Reload(context.Background())
	require.NoError(t, err)

	second, err := store.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, "v1", first.Version())
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, "v2", second.Version())
	assert.Equal(t, 2, second.Len())
	assert.True(t, first.index.(*trackedIndex).closed.Load())
	assert.False(t, second.index.(*trackedIndex).closed.Load())
}

func TestEmbeddingStore_FailedReloadKeepsCurrent(t *testing.T) {
	src := &staticSource{ds: domain.NewEmbeddingDataset("v1", 2, []domain.ProductEmbedding{emb("A", 1, 0)})}
	store := NewEmbeddingStore(src, flatBuilder(), logger.NewNopLogger(), 0)
	_, err := store.Reload(context.Background())
	require.NoError(t, err)

	src.set(nil, errors.New("object storage down"))
	_, err = store.Reload(context.Background())
	require.Error(t, err)

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.Version())
}

func TestEmbeddingStore_BuildFailureKeepsCurrent(t *testing.T) {
	src := &staticSource{ds: domain.NewEmbeddingDataset("v1", 2, []domain.ProductEmbedding{emb("A", 1, 0)})}
	store := NewEmbeddingStore(src, flatBuilder(), logger.NewNopLogger(), 0)
	_, err := store.Reload(context.Background())
	require.NoError(t, err)

	src.set(domain.NewEmbeddingDataset("v2", 2, []domain.ProductEmbedding{emb("A", 1, 0), emb("B", 1)}), nil)
	_, err = store.Reload(context.Background())
	assert.ErrorIs(t, err, e.ErrDimensionMismatch)

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.Version())
}

func TestSnapshot_Lookups(t *testing.T) {
	store := newLoadedStore(t, catalogRows()...)
	snap, err := store.Snapshot()
	require.NoError(t, err)

	v, ok := snap.Vector("B")
	require.True(t, ok)
	assert.Equal(t, []float32{0.9, 0.1, 0}, v)

	meta, ok := snap.Product("C")
	require.True(t, ok)
	assert.Equal(t, "name C", meta.ProductName)

	_, ok = snap.Vector("missing")
	assert.False(t, ok)

	require.NoError(t, store.Close(context.Background()))
	_, err = store.Snapshot()
	assert.ErrorIs(t, err, e.ErrDataUnavailable)
}

func TestEmbeddingStore_DelayedRetire(t *testing.T) {
	src := &staticSource{ds: domain.NewEmbeddingDataset("v1", 2, []domain.ProductEmbedding{emb("A", 1, 0)})}
	store := NewEmbeddingStore(src, flatBuilder(), logger.NewNopLogger(), 200*time.Millisecond)
	_, err := store.Reload(context.Background())
	require.NoError(t, err)
	first, err := store.Snapshot()
	require.NoError(t, err)

	_, err = store.Reload(context.Background())
	require.NoError(t, err)

	prev := first.index.(*trackedIndex)
	assert.False(t, prev.closed.Load())
	assert.Eventually(t, prev.closed.Load, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, store.Close(context.Background()))
}

func TestEmbeddingStore_CloseReleasesPendingRetirements(t *testing.T) {
	src := &staticSource{ds: domain.NewEmbeddingDataset("v1", 2, []domain.ProductEmbedding{emb("A", 1, 0)})}
	store := NewEmbeddingStore(src, flatBuilder(), logger.NewNopLogger(), time.Hour)

	var indexes []*trackedIndex
	for range 3 {
		_, err := store.Reload(context.Background())
		require.NoError(t, err)
		snap, err := store.Snapshot()
		require.NoError(t, err)
		indexes = append(indexes, snap.index.(*trackedIndex))
	}
	for _, idx := range indexes {
		assert.False(t, idx.closed.Load())
	}

	require.NoError(t, store.Close(context.Background()))
	for _, idx := range indexes {
		assert.True(t, idx.closed.Load())
	}

	_, err := store.Snapshot()
	assert.ErrorIs(t, err, e.ErrDataUnavailable)
}
