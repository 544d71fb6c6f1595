package index

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
)

// Flat — точный индекс по скалярному произведению над нормализованными векторами,
// что эквивалентно косинусной близости. Неизменяем после построения.
type Flat struct {
	ids  []string
	vecs [][]float32
	dim  int
}

// NewFlat строит индекс по снапшоту датасета. Строки с нулевым вектором
// в индекс не попадают.
func NewFlat(ds *domain.EmbeddingDataset) (*Flat, error) {
	const op = "index.NewFlat"

	if ds == nil || ds.Len() == 0 {
		return nil, e.Wrap(op, e.ErrDataUnavailable)
	}

	f := &Flat{
		ids:  make([]string, 0, ds.Len()),
		vecs: make([][]float32, 0, ds.Len()),
		dim:  ds.Dim,
	}

	for _, row := range ds.Rows {
		if len(row.Vector) != ds.Dim {
			return nil, e.Wrap(op, fmt.Errorf("%w: product %s has %d, want %d",
				e.ErrDimensionMismatch, row.ProductID, len(row.Vector), ds.Dim))
		}

		v := Normalize(row.Vector)
		if v == nil {
			continue
		}
		f.ids = append(f.ids, row.ProductID)
		f.vecs = append(f.vecs, v)
	}

	return f, nil
}

func (f *Flat) Dim() int {
	return f.dim
}

func (f *Flat) Len() int {
	return len(f.ids)
}

// Search возвращает k ближайших товаров по убыванию оценки.
// При равных оценках выше стоит товар, раньше встретившийся в датасете.
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredID, error) {
	const op = "Flat.Search"

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(query) != f.dim {
		return nil, e.Wrap(op, fmt.Errorf("%w: query has %d, want %d", e.ErrDimensionMismatch, len(query), f.dim))
	}

	q := Normalize(query)
	if q == nil || k <= 0 {
		return nil, nil
	}

	type hit struct {
		idx   int
		score float64
	}
	hits := make([]hit, len(f.vecs))
	for i, v := range f.vecs {
		hits[i] = hit{idx: i, score: Dot(q, v)}
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		return cmp.Compare(b.score, a.score)
	})

	k = min(k, len(hits))
	out := make([]domain.ScoredID, k)
	for i := 0; i < k; i++ {
		out[i] = domain.ScoredID{ProductID: f.ids[hits[i].idx], Score: hits[i].score}
	}

	return out, nil
}

// Close ничего не делает: индекс целиком в памяти.
func (f *Flat) Close(context.Context) error {
	return nil
}
