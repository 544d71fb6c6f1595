package qdrant

import (
	"errors"
	"testing"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "products_abc123_b1", CollectionName("products", "abc123", "b1"))
}

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("P00001")
	b := PointID("P00001")
	c := PointID("P00002")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestBuildPoints(t *testing.T) {
	ds := domain.NewEmbeddingDataset("v1", 2, []domain.ProductEmbedding{
		{ProductID: "A", Vector: []float32{3, 4}},
		{ProductID: "Z", Vector: []float32{0, 0}},
		{ProductID: "B", Vector: []float32{0, 2}},
	})

	points, err := BuildPoints(ds)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, PointID("A"), points[0].ID)
	assert.InDelta(t, 0.6, points[0].Vector[0], 1e-6)
	assert.InDelta(t, 0.8, points[0].Vector[1], 1e-6)
	assert.Equal(t, "A", points[0].Payload[payloadProductID])
	assert.Equal(t, int64(0), points[0].Payload[payloadOrder])

	assert.Equal(t, "B", points[1].Payload[payloadProductID])
	assert.Equal(t, int64(2), points[1].Payload[payloadOrder])
}

func TestBuildPoints_DimensionMismatch(t *testing.T) {
	ds := domain.NewEmbeddingDataset("v1", 2, []domain.ProductEmbedding{
		{ProductID: "A", Vector: []float32{1, 0, 0}},
	})

	_, err := BuildPoints(ds)
	assert.True(t, errors.Is(err, e.ErrDimensionMismatch))
}

func TestScoredFromPoints(t *testing.T) {
	point := func(id string, ord int64, score float32) *qdrant.ScoredPoint {
		payload := map[string]any{payloadOrder: ord}
		if id != "" {
			payload[payloadProductID] = id
		}
		return &qdrant.ScoredPoint{Score: score, Payload: qdrant.NewValueMap(payload)}
	}

	got := ScoredFromPoints([]*qdrant.ScoredPoint{
		point("C", 5, 0.5),
		point("B", 1, 0.9),
		point("", 0, 0.99),
		point("A", 0, 0.9),
	})

	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].ProductID)
	assert.Equal(t, "B", got[1].ProductID)
	assert.Equal(t, "C", got[2].ProductID)
	assert.InDelta(t, 0.9, got[0].Score, 1e-6)
}
