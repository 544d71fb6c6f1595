package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/index"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testRecommendCfg() *cfg.RecommendCfg {
	return &cfg.RecommendCfg{
		WeightPurchase:    5,
		WeightCart:        3,
		WeightView:        1,
		DecayEnabled:      true,
		DecayLambda:       0.05,
		DecayUnit:         time.Second,
		CartDecayRate:     0.1,
		ViewSeeds:         3,
		ViewTopK:          5,
		CartSeeds:         3,
		CartTopK:          3,
		PurchaseSeeds:     3,
		PurchaseTopK:      3,
		ProfileTopK:       10,
		FinalTopK:         5,
		EnrichConcurrency: 2,
	}
}

func emb(id string, v ...float32) domain.ProductEmbedding {
	return domain.ProductEmbedding{ProductID: id, Vector: v, ProductMeta: domain.ProductMeta{ProductName: "name " + id}}
}

// catalogRows — небольшой трёхмерный каталог для сценарных тестов.
func catalogRows() []domain.ProductEmbedding {
	return []domain.ProductEmbedding{
		emb("A", 1, 0, 0),
		emb("B", 0.9, 0.1, 0),
		emb("C", 0, 1, 0),
		emb("D", 0, 0.9, 0.1),
		emb("E", 0, 0, 1),
		emb("F", 0.5, 0.5, 0),
	}
}

type staticSource struct {
	mu  sync.Mutex
	ds  *domain.EmbeddingDataset
	err error
}

func (s *staticSource) Load(context.Context) (*domain.EmbeddingDataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.ds, nil
}

func (s *staticSource) set(ds *domain.EmbeddingDataset, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds, s.err = ds, err
}

type trackedIndex struct {
	*index.Flat
	closed atomic.Bool
}

func (t *trackedIndex) Close(ctx context.Context) error {
	t.closed.Store(true)
	return t.Flat.Close(ctx)
}

func flatBuilder() IndexBuilder {
	return IndexBuilderFunc(func(_ context.Context, ds *domain.EmbeddingDataset) (VectorIndex, error) {
		f, err := index.NewFlat(ds)
		if err != nil {
			return nil, err
		}
		return &trackedIndex{Flat: f}, nil
	})
}

func newLoadedStore(t *testing.T, rows ...domain.ProductEmbedding) *EmbeddingStore {
	t.Helper()
	src := &staticSource{ds: domain.NewEmbeddingDataset("v1", len(rows[0].Vector), rows)}
	store := NewEmbeddingStore(src, flatBuilder(), logger.NewNopLogger(), 0)
	_, err := store.Reload(context.Background())
	require.NoError(t, err)
	return store
}

type memInteractions struct {
	mu     sync.Mutex
	events map[string][]domain.InteractionEvent
	err    error
}

func newMemInteractions() *memInteractions {
	return &memInteractions{events: make(map[string][]domain.InteractionEvent)}
}

func (m *memInteractions) ListByUser(_ context.Context, userID string) ([]domain.InteractionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.InteractionEvent(nil), m.events[userID]...), nil
}

func (m *memInteractions) Append(_ context.Context, events []domain.InteractionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, ev := range events {
		m.events[ev.UserID] = append(m.events[ev.UserID], ev)
	}
	return nil
}

func (m *memInteractions) add(userID, productID string, t domain.EventType, ts time.Time) {
	_ = m.Append(context.Background(), []domain.InteractionEvent{*domain.NewInteractionEvent(userID, productID, t, ts)})
}

type memProfileCache struct {
	mu      sync.Mutex
	data    map[string]*domain.UserProfileEmbedding
	upserts int
	getErr  error
	setErr  error
}

func newMemProfileCache() *memProfileCache {
	return &memProfileCache{data: make(map[string]*domain.UserProfileEmbedding)}
}

func (m *memProfileCache) Get(_ context.Context, userID string) (*domain.UserProfileEmbedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.data[userID]
	if !ok {
		return nil, e.ErrCacheMiss
	}
	cp := *p
	return &cp, nil
}

func (m *memProfileCache) Upsert(_ context.Context, p *domain.UserProfileEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.setErr != nil {
		return m.setErr
	}
	cp := *p
	m.data[p.UserID] = &cp
	return nil
}

func (m *memProfileCache) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

type memCatalog struct {
	products map[string]domain.ProductInfo
	err      error
}

func (m *memCatalog) GetProductsInfo(_ context.Context, req *GetProductsReq) (*GetProductsRes, error) {
	if m.err != nil {
		return nil, m.err
	}
	var (
		found    []domain.ProductInfo
		notFound []string
	)
	for _, id := range req.IDs {
		if p, ok := m.products[id]; ok {
			found = append(found, p)
		} else {
			notFound = append(notFound, id)
		}
	}
	return NewGetProductsRes(found, notFound), nil
}

type mockExplainer struct {
	mock.Mock
}

func (m *mockExplainer) Explain(ctx context.Context, req *ExplainRequest) (*Explanation, error) {
	args := m.Called(ctx, req)
	exp, _ := args.Get(0).(*Explanation)
	return exp, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishServed(ctx context.Context, userID string, recs []domain.Recommendation) error {
	return m.Called(ctx, userID, recs).Error(0)
}
