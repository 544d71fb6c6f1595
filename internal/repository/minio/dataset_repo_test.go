package minio

import (
	"errors"
	"strings"
	"testing"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataset(t *testing.T) {
	input := `{"product_id":"P00001","product_name":"Cable","category":"Electronics","text":"usb cable","embedding":[1,0,0]}
{"product_id":"P00002","product_name":"Charger","category":"Electronics","text":"fast charger","embedding":[0,1,0]}
`
	ds, err := DecodeDataset(strings.NewReader(input), "v1")
	require.NoError(t, err)

	assert.Equal(t, "v1", ds.Version)
	assert.Equal(t, 3, ds.Dim)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "P00001", ds.Rows[0].ProductID)
	assert.Equal(t, "Cable", ds.Rows[0].ProductName)
	assert.Equal(t, "fast charger", ds.Rows[1].Text)
	assert.Equal(t, []float32{0, 1, 0}, ds.Rows[1].Vector)
}

func TestDecodeDataset_Errors(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantMissing bool
		wantDim     bool
	}{
		{name: "empty", input: "", wantMissing: true},
		{name: "whitespace only", input: "\n\n", wantMissing: true},
		{name: "no embedding", input: `{"product_id":"P1"}`, wantMissing: true},
		{name: "no product id", input: `{"embedding":[1,0]}`, wantMissing: true},
		{name: "blank product id", input: "{\"product_id\":\"P1\",\"embedding\":[1,0]}\n{\"product_id\":\" \",\"embedding\":[0,1]}", wantMissing: true},
		{name: "empty embedding", input: `{"product_id":"P1","embedding":[]}`, wantMissing: true},
		{name: "broken json", input: `{"product_id":`, wantMissing: true},
		{
			name:        "dimension mismatch",
			input:       "{\"product_id\":\"P1\",\"embedding\":[1,0]}\n{\"product_id\":\"P2\",\"embedding\":[1,0,0]}",
			wantMissing: true,
			wantDim:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDataset(strings.NewReader(tt.input), "v")
			require.Error(t, err)
			assert.Equal(t, tt.wantMissing, errors.Is(err, e.ErrDataUnavailable))
			assert.Equal(t, tt.wantDim, errors.Is(err, e.ErrDimensionMismatch))
		})
	}
}

func TestDatasetVersion(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00", datasetVersion(`"D41D8CD98F00B204E9800998ECF8427E"`))
	assert.Equal(t, "abc1", datasetVersion(`"abc-1"`))
	assert.Equal(t, "", datasetVersion(""))
}

func TestClassifyMinioErr(t *testing.T) {
	missing := minio.ErrorResponse{Code: "NoSuchKey", Message: "not found"}
	assert.ErrorIs(t, classifyMinioErr(missing), e.ErrDataUnavailable)

	other := minio.ErrorResponse{Code: "AccessDenied"}
	assert.NotErrorIs(t, classifyMinioErr(other), e.ErrDataUnavailable)
}
