package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRecommend(t *testing.T) {
	before := testutil.ToFloat64(RecommendRequestsTotal.WithLabelValues(ResultOK))
	RecordRecommend(ResultOK, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(RecommendRequestsTotal.WithLabelValues(ResultOK)))
}

func TestRecordCandidates(t *testing.T) {
	before := testutil.ToFloat64(CandidatesTotal.WithLabelValues("view"))
	RecordCandidates("view", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(CandidatesTotal.WithLabelValues("view")))
}

func TestRecordEmbeddingReload(t *testing.T) {
	RecordEmbeddingReload(ResultOK, 42)
	assert.Equal(t, 42.0, testutil.ToFloat64(EmbeddingDatasetSize))

	RecordEmbeddingReload(ResultError, 0)
	assert.Equal(t, 42.0, testutil.ToFloat64(EmbeddingDatasetSize))
}
