package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/metrics"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// RecommendUseCase собирает гибридные рекомендации: сигналы view/cart/purchase
// параллельно, профиль последним, затем слияние и объяснения.
type RecommendUseCase struct {
	store        *EmbeddingStore
	interactions InteractionRepository
	catalog      CatalogUC
	signals      []CandidateGenerator
	profile      CandidateGenerator
	merger       *Merger
	explainer    Explainer
	publisher    RecommendationPublisher
	logger       logger.Logger

	explainTimeout    time.Duration
	enrichConcurrency int
}

// NewRecommendUC принимает сигнальные генераторы в порядке слияния.
// publisher может быть nil.
func NewRecommendUC(
	store *EmbeddingStore,
	interactions InteractionRepository,
	catalog CatalogUC,
	signals []CandidateGenerator,
	profile CandidateGenerator,
	merger *Merger,
	explainer Explainer,
	publisher RecommendationPublisher,
	logger logger.Logger,
	explainTimeout time.Duration,
	enrichConcurrency int,
) *RecommendUseCase {
	return &RecommendUseCase{
		store:             store,
		interactions:      interactions,
		catalog:           catalog,
		signals:           signals,
		profile:           profile,
		merger:            merger,
		explainer:         explainer,
		publisher:         publisher,
		logger:            logger,
		explainTimeout:    explainTimeout,
		enrichConcurrency: max(enrichConcurrency, 1),
	}
}

// RecommendForUser возвращает ранжированные рекомендации. Пользователь без
// истории получает пустой список без ошибки; прерывает запрос только
// отсутствие датасета эмбеддингов.
func (r *RecommendUseCase) RecommendForUser(ctx context.Context, userID string) (res *RecommendRes, err error) {
	const op = "RecommendUseCase.RecommendForUser"

	start := time.Now()
	defer func() {
		switch {
		case err != nil:
			metrics.RecordRecommend(metrics.ResultError, time.Since(start))
		case len(res.Recommendations) == 0:
			metrics.RecordRecommend(metrics.ResultEmpty, time.Since(start))
		default:
			metrics.RecordRecommend(metrics.ResultOK, time.Since(start))
		}
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, e.Wrap(op, e.ErrUserIDRequired)
	}

	snap, err := r.store.Snapshot()
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	events, err := r.interactions.ListByUser(ctx, userID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	res = &RecommendRes{UserID: userID, Recommendations: []domain.Recommendation{}}
	if len(events) == 0 {
		r.logger.Debugf("user %s has no interactions", userID)
		return res, nil
	}

	req := &GenerateRequest{
		UserID:   userID,
		Events:   events,
		Snapshot: snap,
		Now:      time.Now(),
	}

	lists, err := r.generate(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	final := r.merger.Merge(lists...)
	if len(final) == 0 {
		return res, nil
	}

	res.Recommendations = r.enrich(ctx, userID, events, final)
	r.publish(ctx, userID, res.Recommendations)

	return res, nil
}

// generate запускает сигнальные генераторы параллельно, раскладывая результаты
// по индексам, затем профильный генератор с накопленным множеством Seen.
func (r *RecommendUseCase) generate(ctx context.Context, req *GenerateRequest) ([][]domain.Candidate, error) {
	lists := make([][]domain.Candidate, len(r.signals)+1)

	g, gctx := errgroup.WithContext(ctx)
	for i, gen := range r.signals {
		g.Go(func() error {
			candidates, err := r.runGenerator(gctx, gen, req)
			if err != nil {
				return err
			}
			lists[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if r.profile != nil {
		profileReq := *req
		profileReq.Seen = SeenIDs(lists[:len(r.signals)]...)

		candidates, err := r.runGenerator(ctx, r.profile, &profileReq)
		if err != nil {
			return nil, err
		}
		lists[len(r.signals)] = candidates
	}

	return lists, nil
}

// runGenerator изолирует сбой одного сигнала: он даёт пустой список, кроме
// отсутствия датасета.
func (r *RecommendUseCase) runGenerator(ctx context.Context, gen CandidateGenerator, req *GenerateRequest) ([]domain.Candidate, error) {
	candidates, err := gen.Generate(ctx, req)
	if err != nil {
		if e.IsDataUnavailable(err) {
			return nil, err
		}
		metrics.RecordSignalFailure(gen.Name())
		r.logger.Warnf("signal %s failed for user %s: %v", gen.Name(), req.UserID, err)
		return nil, nil
	}

	metrics.RecordCandidates(gen.Name(), len(candidates))
	return candidates, nil
}

// enrich добавляет названия товаров и объяснения. Порядок выдачи сохраняется.
func (r *RecommendUseCase) enrich(
	ctx context.Context,
	userID string,
	events []domain.InteractionEvent,
	final []domain.Candidate,
) []domain.Recommendation {
	products := r.productsByID(ctx, final)
	recs := make([]domain.Recommendation, len(final))

	var g errgroup.Group
	g.SetLimit(r.enrichConcurrency)
	for i, c := range final {
		g.Go(func() error {
			rec := domain.Recommendation{Candidate: c, ProductName: domain.UnknownProductName}

			var product *domain.ProductInfo
			if p, ok := products[c.ProductID]; ok {
				product = &p
				if p.Name != "" {
					rec.ProductName = p.Name
				}
			}

			exp := r.explain(ctx, &ExplainRequest{
				UserID:       userID,
				Candidate:    c,
				Interactions: events,
				Product:      product,
			})
			rec.Explanation = exp.Text
			rec.Evidence = exp.Evidence

			recs[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	return recs
}

// explain вызывает генератор объяснений с таймаутом и при сбое подставляет заглушку.
func (r *RecommendUseCase) explain(ctx context.Context, req *ExplainRequest) Explanation {
	ctx, cancel := context.WithTimeout(ctx, r.explainTimeout)
	defer cancel()

	exp, err := r.explainer.Explain(ctx, req)
	if err != nil || exp == nil {
		metrics.RecordExplanationFallback()
		r.logger.Warnf("explanation for %s/%s unavailable: %v", req.UserID, req.Candidate.ProductID, err)
		return Explanation{Text: PlaceholderExplanation, Evidence: []string{}}
	}

	out := *exp
	if out.Evidence == nil {
		out.Evidence = []string{}
	}
	return out
}

func (r *RecommendUseCase) productsByID(ctx context.Context, final []domain.Candidate) map[string]domain.ProductInfo {
	ids := make([]string, len(final))
	for i, c := range final {
		ids[i] = c.ProductID
	}

	res, err := r.catalog.GetProductsInfo(ctx, NewGetProductsReq(ids))
	if err != nil {
		r.logger.Warnf("catalog lookup failed, using sentinel names: %v", err)
		return nil
	}

	byID := make(map[string]domain.ProductInfo, len(res.Products))
	for _, p := range res.Products {
		byID[p.ID] = p
	}
	return byID
}

func (r *RecommendUseCase) publish(ctx context.Context, userID string, recs []domain.Recommendation) {
	if r.publisher == nil {
		return
	}

	if err := r.publisher.PublishServed(ctx, userID, recs); err != nil {
		r.logger.Warnf("failed to publish served recommendations for user %s: %v", userID, err)
	}
}
