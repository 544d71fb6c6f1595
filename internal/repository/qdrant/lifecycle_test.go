package qdrant

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCollections хранит коллекции по имени, как сервер Qdrant.
type fakeCollections struct {
	mu          sync.Mutex
	collections map[string][]*qdrant.PointStruct
	upsertErr   error
}

func newFakeCollections() *fakeCollections {
	return &fakeCollections{collections: make(map[string][]*qdrant.PointStruct)}
}

func (f *fakeCollections) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.collections[req.CollectionName]; ok {
		return fmt.Errorf("collection %s already exists", req.CollectionName)
	}
	f.collections[req.CollectionName] = nil
	return nil
}

func (f *fakeCollections) DeleteCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.collections, name)
	return nil
}

func (f *fakeCollections) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	if _, ok := f.collections[req.CollectionName]; !ok {
		return nil, fmt.Errorf("collection %s not found", req.CollectionName)
	}
	f.collections[req.CollectionName] = append(f.collections[req.CollectionName], req.Points...)
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeCollections) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	points, ok := f.collections[req.CollectionName]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", req.CollectionName)
	}

	query := req.GetQuery().GetNearest().GetDense().GetData()
	out := make([]*qdrant.ScoredPoint, 0, len(points))
	for _, p := range points {
		var score float32
		for i, x := range p.GetVectors().GetVector().GetDense().GetData() {
			score += x * query[i]
		}
		out = append(out, &qdrant.ScoredPoint{Id: p.Id, Payload: p.Payload, Score: score})
	}
	slices.SortStableFunc(out, func(a, b *qdrant.ScoredPoint) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit := int(req.GetLimit()); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCollections) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	return names
}

func sequentialBuildIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("b%d", n)
	}
}

func newTestIndexRepo(client collectionClient) *IndexRepo {
	return newIndexRepo(client, &cfg.QdrantCfg{QdrantCollectionName: "products"}, logger.NewNopLogger(), sequentialBuildIDs())
}

func sameVersionDataset() *domain.EmbeddingDataset {
	return domain.NewEmbeddingDataset("etag1", 2, []domain.ProductEmbedding{
		{ProductID: "A", Vector: []float32{1, 0}},
		{ProductID: "B", Vector: []float32{0, 1}},
		{ProductID: "C", Vector: []float32{1, 1}},
	})
}

func TestIndexRepo_BuildAndSearch(t *testing.T) {
	fake := newFakeCollections()
	repo := newTestIndexRepo(fake)

	idx, err := repo.Build(context.Background(), sameVersionDataset())
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Dim())
	assert.Equal(t, []string{"products_etag1_b1"}, fake.names())

	hits, err := idx.Search(context.Background(), []float32{2, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "A", hits[0].ProductID)
	assert.Equal(t, "C", hits[1].ProductID)
	assert.Equal(t, "B", hits[2].ProductID)
}

func TestIndexRepo_RebuildSameVersionKeepsLiveCollection(t *testing.T) {
	fake := newFakeCollections()
	repo := newTestIndexRepo(fake)
	ctx := context.Background()

	first, err := repo.Build(ctx, sameVersionDataset())
	require.NoError(t, err)
	second, err := repo.Build(ctx, sameVersionDataset())
	require.NoError(t, err)

	hits, err := first.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", hits[0].ProductID)

	require.NoError(t, first.Close(ctx))
	assert.Equal(t, []string{"products_etag1_b2"}, fake.names())

	hits, err = second.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "B", hits[0].ProductID)
}

func TestIndexRepo_UpsertFailureDropsNewCollection(t *testing.T) {
	fake := newFakeCollections()
	fake.upsertErr = errors.New("qdrant unavailable")
	repo := newTestIndexRepo(fake)

	_, err := repo.Build(context.Background(), sameVersionDataset())
	require.Error(t, err)
	assert.Empty(t, fake.names())
}

type staticDatasetSource struct {
	ds *domain.EmbeddingDataset
}

func (s staticDatasetSource) Load(context.Context) (*domain.EmbeddingDataset, error) {
	return s.ds, nil
}

func TestEmbeddingStore_PeriodicReloadOfUnchangedDataset(t *testing.T) {
	fake := newFakeCollections()
	store := usecase.NewEmbeddingStore(staticDatasetSource{ds: sameVersionDataset()}, newTestIndexRepo(fake), logger.NewNopLogger(), 0)
	ctx := context.Background()

	for range 3 {
		_, err := store.Reload(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"products_etag1_b3"}, fake.names())

	snap, err := store.Snapshot()
	require.NoError(t, err)
	hits, err := snap.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "A", hits[0].ProductID)

	require.NoError(t, store.Close(ctx))
	assert.Empty(t, fake.names())
}
