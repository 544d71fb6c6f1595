package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, userID, productID string) (*usecase.Explanation, error) {
	args := m.Called(ctx, userID, productID)
	exp, _ := args.Get(0).(*usecase.Explanation)
	return exp, args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, userID, productID string, exp *usecase.Explanation) error {
	args := m.Called(ctx, userID, productID, exp)
	return args.Error(0)
}

type countingExplainer struct {
	calls int
	exp   *usecase.Explanation
	err   error
}

func (c *countingExplainer) Explain(context.Context, *usecase.ExplainRequest) (*usecase.Explanation, error) {
	c.calls++
	return c.exp, c.err
}

func explainReq() *usecase.ExplainRequest {
	return &usecase.ExplainRequest{
		UserID:    "u1",
		Candidate: domain.NewCandidate("P00001", 0.9, domain.SourceView),
	}
}

func TestCachedExplainer_Hit(t *testing.T) {
	cache := &mockCache{}
	cached := &usecase.Explanation{Text: "cached", Evidence: []string{}}
	cache.On("Get", mock.Anything, "u1", "P00001").Return(cached, nil)

	next := &countingExplainer{}
	exp, err := NewCachedExplainer(next, cache, logger.NewNopLogger()).Explain(context.Background(), explainReq())

	require.NoError(t, err)
	assert.Equal(t, "cached", exp.Text)
	assert.Zero(t, next.calls)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedExplainer_MissStores(t *testing.T) {
	fresh := &usecase.Explanation{Text: "fresh", Evidence: []string{"view"}}

	cache := &mockCache{}
	cache.On("Get", mock.Anything, "u1", "P00001").Return(nil, e.ErrCacheMiss)
	cache.On("Set", mock.Anything, "u1", "P00001", fresh).Return(nil)

	next := &countingExplainer{exp: fresh}
	exp, err := NewCachedExplainer(next, cache, logger.NewNopLogger()).Explain(context.Background(), explainReq())

	require.NoError(t, err)
	assert.Same(t, fresh, exp)
	assert.Equal(t, 1, next.calls)
	cache.AssertExpectations(t)
}

func TestCachedExplainer_CacheErrorsDoNotFail(t *testing.T) {
	fresh := &usecase.Explanation{Text: "fresh", Evidence: []string{}}

	cache := &mockCache{}
	cache.On("Get", mock.Anything, "u1", "P00001").Return(nil, errors.New("redis down"))
	cache.On("Set", mock.Anything, "u1", "P00001", fresh).Return(errors.New("redis down"))

	next := &countingExplainer{exp: fresh}
	exp, err := NewCachedExplainer(next, cache, logger.NewNopLogger()).Explain(context.Background(), explainReq())

	require.NoError(t, err)
	assert.Equal(t, "fresh", exp.Text)
}

func TestCachedExplainer_FailureNotCached(t *testing.T) {
	cache := &mockCache{}
	cache.On("Get", mock.Anything, "u1", "P00001").Return(nil, e.ErrCacheMiss)

	next := &countingExplainer{err: e.ErrCollaboratorTimeout}
	_, err := NewCachedExplainer(next, cache, logger.NewNopLogger()).Explain(context.Background(), explainReq())

	require.ErrorIs(t, err, e.ErrCollaboratorTimeout)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
