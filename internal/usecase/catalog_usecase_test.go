package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) GetProductsInfo(ctx context.Context, ids []string) ([]domain.ProductInfo, error) {
	args := m.Called(ctx, ids)
	products, _ := args.Get(0).([]domain.ProductInfo)
	return products, args.Error(1)
}

type memProductCache struct {
	mu     sync.Mutex
	data   map[string]domain.ProductInfo
	getErr error
	stored chan struct{}
}

func newMemProductCache() *memProductCache {
	return &memProductCache{data: map[string]domain.ProductInfo{}, stored: make(chan struct{}, 1)}
}

func (m *memProductCache) GetProducts(_ context.Context, ids []string) (map[string]domain.ProductInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := map[string]domain.ProductInfo{}
	for _, id := range ids {
		if p, ok := m.data[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memProductCache) SetProducts(_ context.Context, products []domain.ProductInfo) error {
	m.mu.Lock()
	for _, p := range products {
		m.data[p.ID] = p
	}
	m.mu.Unlock()
	select {
	case m.stored <- struct{}{}:
	default:
	}
	return nil
}

func TestCatalog_CacheAside(t *testing.T) {
	repo := &mockProductRepo{}
	cache := newMemProductCache()
	cache.data["P1"] = domain.ProductInfo{ID: "P1", Name: "cached"}

	repo.On("GetProductsInfo", mock.Anything, []string{"P2", "P3"}).
		Return([]domain.ProductInfo{{ID: "P2", Name: "from db"}}, nil).Once()

	uc := NewCatalogUC(repo, cache, logger.NewNopLogger())
	res, err := uc.GetProductsInfo(context.Background(), NewGetProductsReq([]string{"P1", "P2", " P3 ", "P1"}))
	require.NoError(t, err)

	require.Len(t, res.Products, 2)
	assert.Equal(t, "cached", res.Products[0].Name)
	assert.Equal(t, "from db", res.Products[1].Name)
	assert.Equal(t, []string{"P3"}, res.NotFoundProducts)

	<-cache.stored
	repo.AssertExpectations(t)

	// Второй запрос обслуживается из кэша
	res, err = uc.GetProductsInfo(context.Background(), NewGetProductsReq([]string{"P2"}))
	require.NoError(t, err)
	assert.Equal(t, "from db", res.Products[0].Name)
	repo.AssertNumberOfCalls(t, "GetProductsInfo", 1)
}

func TestCatalog_CacheErrorFallsBackToDB(t *testing.T) {
	repo := &mockProductRepo{}
	cache := newMemProductCache()
	cache.getErr = errors.New("redis down")

	repo.On("GetProductsInfo", mock.Anything, []string{"P1"}).
		Return([]domain.ProductInfo{{ID: "P1", Name: "db"}}, nil)

	uc := NewCatalogUC(repo, cache, logger.NewNopLogger())
	res, err := uc.GetProductsInfo(context.Background(), NewGetProductsReq([]string{"P1"}))
	require.NoError(t, err)
	assert.Equal(t, "db", res.Products[0].Name)
}

func TestCatalog_Validation(t *testing.T) {
	uc := NewCatalogUC(&mockProductRepo{}, newMemProductCache(), logger.NewNopLogger())

	_, err := uc.GetProductsInfo(context.Background(), NewGetProductsReq([]string{" ", ""}))
	assert.ErrorIs(t, err, e.ErrNoProducts)

	many := make([]string, maxProductsPerRequest+1)
	for i := range many {
		many[i] = string(rune('a'+i%26)) + string(rune('0'+i/26))
	}
	_, err = uc.GetProductsInfo(context.Background(), NewGetProductsReq(many))
	assert.ErrorIs(t, err, e.ErrTooManyProducts)
}

func TestCatalog_ProductName(t *testing.T) {
	repo := &mockProductRepo{}
	repo.On("GetProductsInfo", mock.Anything, []string{"P1"}).Return([]domain.ProductInfo{{ID: "P1", Name: "Kettle"}}, nil)
	repo.On("GetProductsInfo", mock.Anything, []string{"P9"}).Return([]domain.ProductInfo{}, nil)

	uc := NewCatalogUC(repo, newMemProductCache(), logger.NewNopLogger())

	name, err := uc.ProductName(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "Kettle", name)

	_, err = uc.ProductName(context.Background(), "P9")
	assert.ErrorIs(t, err, e.ErrLookupMiss)
}
