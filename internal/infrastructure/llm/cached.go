package llm

import (
	"context"
	"errors"
	"time"

	"github.com/DRSN-tech/recommender/internal/metrics"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

const cacheWriteTimeout = 500 * time.Millisecond

// CachedExplainer отдаёт объяснение из кэша, а при промахе зовёт next
// и сохраняет успешный ответ. Ошибки кэша не прерывают генерацию.
type CachedExplainer struct {
	next   usecase.Explainer
	cache  usecase.ExplanationCache
	logger logger.Logger
}

func NewCachedExplainer(next usecase.Explainer, cache usecase.ExplanationCache, logger logger.Logger) *CachedExplainer {
	return &CachedExplainer{
		next:   next,
		cache:  cache,
		logger: logger,
	}
}

func (c *CachedExplainer) Explain(ctx context.Context, req *usecase.ExplainRequest) (*usecase.Explanation, error) {
	productID := req.Candidate.ProductID

	cached, err := c.cache.Get(ctx, req.UserID, productID)
	switch {
	case err == nil:
		metrics.RecordExplanationCache("hit")
		return cached, nil
	case errors.Is(err, e.ErrCacheMiss):
		metrics.RecordExplanationCache("miss")
	default:
		metrics.RecordExplanationCache("error")
		c.logger.Warnf("explanation cache read failed for %s/%s: %v", req.UserID, productID, err)
	}

	exp, err := c.next.Explain(ctx, req)
	if err != nil {
		return nil, err
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := c.cache.Set(writeCtx, req.UserID, productID, exp); err != nil {
		c.logger.Warnf("explanation cache write failed for %s/%s: %v", req.UserID, productID, err)
	}

	return exp, nil
}
