package qdrant

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/index"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadProductID = "product_id"
	payloadOrder     = "ord"
	upsertBatchSize  = 256
)

// collectionClient — часть qdrant.Client, нужная индексу.
type collectionClient interface {
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// IndexRepo строит индекс эмбеддингов в Qdrant: по отдельной коллекции на каждую сборку.
type IndexRepo struct {
	client  collectionClient
	cfg     *cfg.QdrantCfg
	logger  logger.Logger
	buildID func() string
}

func NewIndexRepo(client *qdrant.Client, cfg *cfg.QdrantCfg, logger logger.Logger) *IndexRepo {
	return newIndexRepo(client, cfg, logger, newBuildID)
}

func newIndexRepo(client collectionClient, cfg *cfg.QdrantCfg, logger logger.Logger, buildID func() string) *IndexRepo {
	return &IndexRepo{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		buildID: buildID,
	}
}

// Build создаёт новую коллекцию <prefix>_<version>_<build> и загружает в неё нормализованные векторы.
// Коллекции предыдущих снапшотов не трогаются, даже если версия датасета не изменилась.
func (q *IndexRepo) Build(ctx context.Context, ds *domain.EmbeddingDataset) (usecase.VectorIndex, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrDataUnavailable)
	}

	name := CollectionName(q.cfg.QdrantCollectionName, ds.Version, q.buildID())

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(ds.Dim),
			Distance: qdrant.Distance_Dot,
		}),
	}); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	points, err := BuildPoints(ds)
	if err != nil {
		q.dropQuietly(name)
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	wait := true
	for batch := range slices.Chunk(points, upsertBatchSize) {
		reqPoints := make([]*qdrant.PointStruct, 0, len(batch))
		for _, p := range batch {
			reqPoints = append(reqPoints, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(p.ID),
				Vectors: qdrant.NewVectors(p.Vector...),
				Payload: qdrant.NewValueMap(p.Payload),
			})
		}

		if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           &wait,
			Points:         reqPoints,
		}); err != nil {
			q.dropQuietly(name)
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
	}

	q.logger.Infof("qdrant collection %s built with %d points", name, len(points))

	return &collectionIndex{
		client: q.client,
		name:   name,
		dim:    ds.Dim,
		logger: q.logger,
	}, nil
}

func (q *IndexRepo) dropQuietly(name string) {
	if err := q.client.DeleteCollection(context.Background(), name); err != nil {
		q.logger.Warnf("failed to drop qdrant collection %s: %v", name, err)
	}
}

// collectionIndex — снапшот индекса, привязанный к одной коллекции.
type collectionIndex struct {
	client collectionClient
	name   string
	dim    int
	logger logger.Logger
}

func (c *collectionIndex) Dim() int {
	return c.dim
}

// Search ищет k ближайших товаров. Равные оценки упорядочиваются по позиции в датасете.
func (c *collectionIndex) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredID, error) {
	if len(query) != c.dim {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: query has %d, want %d", e.ErrDimensionMismatch, len(query), c.dim))
	}

	q := index.Normalize(query)
	if q == nil || k <= 0 {
		return nil, nil
	}

	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.name,
		Query:          qdrant.NewQuery(q...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return ScoredFromPoints(points), nil
}

// Close удаляет коллекцию выведенного из оборота снапшота.
func (c *collectionIndex) Close(ctx context.Context) error {
	if err := c.client.DeleteCollection(ctx, c.name); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	c.logger.Infof("qdrant collection %s dropped", c.name)
	return nil
}

// CollectionName возвращает имя коллекции для сборки индекса по версии датасета.
func CollectionName(prefix, version, buildID string) string {
	return fmt.Sprintf("%s_%s_%s", prefix, version, buildID)
}

func newBuildID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// PointID — детерминированный UUIDv5 идентификатора товара.
func PointID(productID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(productID)).String()
}

// BuildPoints превращает строки датасета в точки Qdrant с нормализованными векторами.
// Нулевые векторы пропускаются.
func BuildPoints(ds *domain.EmbeddingDataset) ([]*domain.QdrantPoint, error) {
	points := make([]*domain.QdrantPoint, 0, ds.Len())
	for i, row := range ds.Rows {
		if len(row.Vector) != ds.Dim {
			return nil, fmt.Errorf("%w: product %s has %d, want %d",
				e.ErrDimensionMismatch, row.ProductID, len(row.Vector), ds.Dim)
		}

		v := index.Normalize(row.Vector)
		if v == nil {
			continue
		}

		points = append(points, domain.NewQdrantPoint(PointID(row.ProductID), v, map[string]any{
			payloadProductID: row.ProductID,
			payloadOrder:     int64(i),
		}))
	}

	return points, nil
}

// ScoredFromPoints достаёт идентификаторы товаров из payload. Точки без product_id пропускаются.
func ScoredFromPoints(points []*qdrant.ScoredPoint) []domain.ScoredID {
	type hit struct {
		domain.ScoredID
		ord int64
	}

	hits := make([]hit, 0, len(points))
	for _, p := range points {
		id := p.GetPayload()[payloadProductID].GetStringValue()
		if id == "" {
			continue
		}
		hits = append(hits, hit{
			ScoredID: domain.ScoredID{ProductID: id, Score: float64(p.GetScore())},
			ord:      p.GetPayload()[payloadOrder].GetIntegerValue(),
		})
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ord, b.ord)
	})

	out := make([]domain.ScoredID, len(hits))
	for i, h := range hits {
		out[i] = h.ScoredID
	}
	return out
}
