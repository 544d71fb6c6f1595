package usecase

import (
	"context"
	"errors"
	"math"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/metrics"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// ProfileUseCase строит долгосрочный вектор пользователя и кэширует его
// до появления более нового события.
type ProfileUseCase struct {
	interactions InteractionRepository
	cache        ProfileCache
	store        *EmbeddingStore
	cfg          *cfg.RecommendCfg
	logger       logger.Logger
	group        singleflight.Group
}

func NewProfileUC(
	interactions InteractionRepository,
	cache ProfileCache,
	store *EmbeddingStore,
	cfg *cfg.RecommendCfg,
	logger logger.Logger,
) *ProfileUseCase {
	return &ProfileUseCase{
		interactions: interactions,
		cache:        cache,
		store:        store,
		cfg:          cfg,
		logger:       logger,
	}
}

// Get возвращает актуальный профиль пользователя.
func (p *ProfileUseCase) Get(ctx context.Context, userID string) (*domain.UserProfileEmbedding, error) {
	const op = "ProfileUseCase.Get"

	snap, events, err := p.load(ctx, userID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return p.GetOrCompute(ctx, userID, events, snap)
}

// Refresh принудительно пересчитывает профиль, игнорируя кэш.
func (p *ProfileUseCase) Refresh(ctx context.Context, userID string) error {
	const op = "ProfileUseCase.Refresh"

	snap, events, err := p.load(ctx, userID)
	if err != nil {
		return e.Wrap(op, err)
	}

	if _, err := p.recompute(ctx, userID, events, snap); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// GetOrCompute возвращает профиль из кэша, если он свежий, иначе пересчитывает
// его по переданной истории и сохраняет. Одновременные промахи по одному
// пользователю схлопываются в один пересчёт.
func (p *ProfileUseCase) GetOrCompute(
	ctx context.Context,
	userID string,
	events []domain.InteractionEvent,
	snap *Snapshot,
) (*domain.UserProfileEmbedding, error) {
	const op = "ProfileUseCase.GetOrCompute"

	if len(events) == 0 {
		return nil, e.Wrap(op, e.ErrNoInteractions)
	}
	maxTS := domain.MaxTimestamp(events)

	cached, err := p.cache.Get(ctx, userID)
	switch {
	case err == nil && cached.IsFresh(maxTS, snap.Dim()):
		metrics.RecordProfileCache("hit")
		return cached, nil
	case err == nil:
		metrics.RecordProfileCache("stale")
	case errors.Is(err, e.ErrCacheMiss):
		metrics.RecordProfileCache("miss")
	default:
		metrics.RecordProfileCache("error")
		p.logger.Warnf("profile cache read failed for user %s, recomputing: %v", userID, e.Wrap(op, err))
	}

	v, err, _ := p.group.Do(userID, func() (any, error) {
		return p.recompute(ctx, userID, events, snap)
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return v.(*domain.UserProfileEmbedding), nil
}

func (p *ProfileUseCase) recompute(
	ctx context.Context,
	userID string,
	events []domain.InteractionEvent,
	snap *Snapshot,
) (*domain.UserProfileEmbedding, error) {
	const op = "ProfileUseCase.recompute"

	vector, err := p.compute(events, snap)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	profile := domain.NewUserProfileEmbedding(userID, vector, domain.MaxTimestamp(events))
	if err := p.cache.Upsert(ctx, profile); err != nil {
		p.logger.Warnf("failed to persist profile for user %s: %v", userID, e.Wrap(op, err))
	}

	return profile, nil
}

// compute — взвешенное среднее векторов товаров из истории.
// Вес события: базовый вес типа × exp(-λ·Δt), где Δt отсчитывается от
// последнего события самого пользователя.
func (p *ProfileUseCase) compute(events []domain.InteractionEvent, snap *Snapshot) ([]float32, error) {
	if len(events) == 0 {
		return nil, e.ErrNoInteractions
	}
	maxTS := domain.MaxTimestamp(events)

	var (
		sum  = make([]float64, snap.Dim())
		sumW float64
	)
	for _, ev := range events {
		vec, ok := snap.Vector(ev.ProductID)
		if !ok {
			continue
		}

		w := eventWeight(p.cfg, ev.EventType)
		if p.cfg.DecayEnabled {
			dt := float64(maxTS.Sub(ev.Timestamp)) / float64(p.cfg.DecayUnit)
			w *= math.Exp(-p.cfg.DecayLambda * dt)
		}

		for i, x := range vec {
			sum[i] += w * float64(x)
		}
		sumW += w
	}

	if sumW == 0 {
		return nil, e.ErrNoInteractions
	}

	out := make([]float32, len(sum))
	for i, x := range sum {
		out[i] = float32(x / sumW)
	}
	return out, nil
}

func (p *ProfileUseCase) load(ctx context.Context, userID string) (*Snapshot, []domain.InteractionEvent, error) {
	snap, err := p.store.Snapshot()
	if err != nil {
		return nil, nil, err
	}

	events, err := p.interactions.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	return snap, events, nil
}

// eventWeight возвращает базовый вес типа события. Неизвестные типы весят 1.
func eventWeight(c *cfg.RecommendCfg, t domain.EventType) float64 {
	switch t {
	case domain.EventPurchase:
		return c.WeightPurchase
	case domain.EventAddToCart:
		return c.WeightCart
	case domain.EventView:
		return c.WeightView
	}
	return 1
}
