package usecase

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
)

// CandidateGenerator — один поведенческий сигнал, порождающий кандидатов.
type CandidateGenerator interface {
	Name() string
	Generate(ctx context.Context, req *GenerateRequest) ([]domain.Candidate, error)
}

// seedSearchFactor — во сколько раз больше соседей запрашивается на одно семя,
// чтобы после исключений осталось top_k кандидатов.
const seedSearchFactor = 3

// ViewGenerator ищет товары, похожие на недавно просмотренные.
type ViewGenerator struct {
	seeds int
	topK  int
}

func NewViewGenerator(c *cfg.RecommendCfg) *ViewGenerator {
	return &ViewGenerator{seeds: c.ViewSeeds, topK: c.ViewTopK}
}

func (g *ViewGenerator) Name() string {
	return string(domain.SourceView)
}

func (g *ViewGenerator) Generate(ctx context.Context, req *GenerateRequest) ([]domain.Candidate, error) {
	return skipOnNoSeed(g.generate(ctx, req))
}

func (g *ViewGenerator) generate(ctx context.Context, req *GenerateRequest) ([]domain.Candidate, error) {
	seeds := recentSeeds(req.Events, domain.EventView, req.Snapshot, g.seeds)
	if len(seeds) == 0 {
		return nil, e.ErrNoSeed
	}

	return collectNeighbours(ctx, req.Snapshot, seeds, g.topK, domain.SourceView)
}

// IntentGenerator ищет товары, похожие на добавленные в корзину или купленные.
// Семена упорядочены по вероятности, затухающей с возрастом события в днях.
type IntentGenerator struct {
	eventType domain.EventType
	seeds     int
	topK      int
	decayRate float64
	weight    float64
}

func NewCartGenerator(c *cfg.RecommendCfg) *IntentGenerator {
	return &IntentGenerator{
		eventType: domain.EventAddToCart,
		seeds:     c.CartSeeds,
		topK:      c.CartTopK,
		decayRate: c.CartDecayRate,
		weight:    eventWeight(c, domain.EventAddToCart),
	}
}

func NewPurchaseGenerator(c *cfg.RecommendCfg) *IntentGenerator {
	return &IntentGenerator{
		eventType: domain.EventPurchase,
		seeds:     c.PurchaseSeeds,
		topK:      c.PurchaseTopK,
		decayRate: c.CartDecayRate,
		weight:    eventWeight(c, domain.EventPurchase),
	}
}

func (g *IntentGenerator) Name() string {
	return string(g.eventType)
}

func (g *IntentGenerator) Generate(ctx context.Context, req *GenerateRequest) ([]domain.Candidate, error) {
	return skipOnNoSeed(g.generate(ctx, req))
}

func (g *IntentGenerator) generate(ctx context.Context, req *GenerateRequest) ([]domain.Candidate, error) {
	seeds := g.rankSeeds(req)
	if len(seeds) == 0 {
		return nil, e.ErrNoSeed
	}

	return collectNeighbours(ctx, req.Snapshot, seeds, g.topK, domain.Source(g.eventType))
}

type seedProb struct {
	productID string
	prob      float64
}

// rankSeeds возвращает до g.seeds различных товаров с наибольшей вероятностью.
// Вероятности используются только для упорядочивания.
func (g *IntentGenerator) rankSeeds(req *GenerateRequest) []string {
	var (
		probs []seedProb
		total float64
	)
	for _, ev := range req.Events {
		if ev.EventType != g.eventType {
			continue
		}

		ageDays := req.Now.Sub(ev.Timestamp).Hours() / 24
		w := g.weight * math.Exp(-g.decayRate*ageDays)
		probs = append(probs, seedProb{productID: ev.ProductID, prob: w})
		total += w
	}
	if len(probs) == 0 {
		return nil
	}

	if total > 0 {
		for i := range probs {
			probs[i].prob /= total
		}
	}

	slices.SortStableFunc(probs, func(a, b seedProb) int {
		return cmp.Compare(b.prob, a.prob)
	})

	seeds := make([]string, 0, g.seeds)
	picked := make(map[string]struct{}, g.seeds)
	for _, sp := range probs {
		if len(seeds) == g.seeds {
			break
		}
		if _, dup := picked[sp.productID]; dup {
			continue
		}
		if _, ok := req.Snapshot.Vector(sp.productID); !ok {
			continue
		}
		picked[sp.productID] = struct{}{}
		seeds = append(seeds, sp.productID)
	}

	return seeds
}

// ProfileGenerator ищет по долгосрочному профилю пользователя, исключая всё,
// что уже предложили остальные сигналы. Запускается последним.
type ProfileGenerator struct {
	profiles *ProfileUseCase
	topK     int
}

func NewProfileGenerator(profiles *ProfileUseCase, c *cfg.RecommendCfg) *ProfileGenerator {
	return &ProfileGenerator{profiles: profiles, topK: c.ProfileTopK}
}

func (g *ProfileGenerator) Name() string {
	return string(domain.SourceProfile)
}

func (g *ProfileGenerator) Generate(ctx context.Context, req *GenerateRequest) ([]domain.Candidate, error) {
	return skipOnNoSeed(g.generate(ctx, req))
}

func (g *ProfileGenerator) generate(ctx context.Context, req *GenerateRequest) ([]domain.Candidate, error) {
	const op = "ProfileGenerator.Generate"

	profile, err := g.profiles.GetOrCompute(ctx, req.UserID, req.Events, req.Snapshot)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	hits, err := req.Snapshot.Search(ctx, profile.Vector, 2*g.topK)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	out := make([]domain.Candidate, 0, g.topK)
	for _, h := range hits {
		if len(out) == g.topK {
			break
		}
		if _, seen := req.Seen[h.ProductID]; seen {
			continue
		}
		out = append(out, domain.NewCandidate(h.ProductID, h.Score, domain.SourceProfile))
	}

	return out, nil
}

// skipOnNoSeed превращает отсутствие семени в пустой результат без ошибки.
func skipOnNoSeed(candidates []domain.Candidate, err error) ([]domain.Candidate, error) {
	if errors.Is(err, e.ErrNoSeed) || errors.Is(err, e.ErrNoInteractions) {
		return []domain.Candidate{}, nil
	}
	return candidates, err
}

// recentSeeds возвращает до n различных товаров из самых свежих событий типа t,
// у которых есть эмбеддинг.
func recentSeeds(events []domain.InteractionEvent, t domain.EventType, snap *Snapshot, n int) []string {
	seeds := make([]string, 0, n)
	picked := make(map[string]struct{}, n)

	for i := len(events) - 1; i >= 0 && len(seeds) < n; i-- {
		ev := events[i]
		if ev.EventType != t {
			continue
		}
		if _, dup := picked[ev.ProductID]; dup {
			continue
		}
		if _, ok := snap.Vector(ev.ProductID); !ok {
			continue
		}
		picked[ev.ProductID] = struct{}{}
		seeds = append(seeds, ev.ProductID)
	}

	return seeds
}

// collectNeighbours ищет соседей каждого семени по очереди и собирает до topK
// различных кандидатов, пропуская само семя.
func collectNeighbours(
	ctx context.Context,
	snap *Snapshot,
	seeds []string,
	topK int,
	source domain.Source,
) ([]domain.Candidate, error) {
	out := make([]domain.Candidate, 0, topK)
	collected := make(map[string]struct{}, topK)

	for _, seed := range seeds {
		if len(out) == topK {
			break
		}

		vec, ok := snap.Vector(seed)
		if !ok {
			continue
		}

		hits, err := snap.Search(ctx, vec, seedSearchFactor*topK)
		if err != nil {
			return nil, e.Wrap("collectNeighbours", err)
		}

		for _, h := range hits {
			if len(out) == topK {
				break
			}
			if h.ProductID == seed {
				continue
			}
			if _, dup := collected[h.ProductID]; dup {
				continue
			}
			collected[h.ProductID] = struct{}{}
			out = append(out, domain.NewCandidate(h.ProductID, h.Score, source))
		}
	}

	return out, nil
}
