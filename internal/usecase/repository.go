package usecase

import (
	"context"

	"github.com/DRSN-tech/recommender/internal/domain"
)

// InteractionRepository — журнал взаимодействий пользователей.
type InteractionRepository interface {
	// ListByUser возвращает историю пользователя по возрастанию времени.
	ListByUser(ctx context.Context, userID string) ([]domain.InteractionEvent, error)
	Append(ctx context.Context, events []domain.InteractionEvent) error
}

type ProductRepository interface {
	GetProductsInfo(ctx context.Context, ids []string) ([]domain.ProductInfo, error)
}

// ProfileCache хранит профили пользователей. При отсутствии записи возвращает e.ErrCacheMiss.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*domain.UserProfileEmbedding, error)
	Upsert(ctx context.Context, profile *domain.UserProfileEmbedding) error
}

type ProductCache interface {
	GetProducts(ctx context.Context, ids []string) (map[string]domain.ProductInfo, error)
	SetProducts(ctx context.Context, products []domain.ProductInfo) error
}

// EmbeddingSource загружает снапшот датасета эмбеддингов.
type EmbeddingSource interface {
	Load(ctx context.Context) (*domain.EmbeddingDataset, error)
}

// VectorIndex — индекс ближайших соседей по косинусной близости.
type VectorIndex interface {
	Search(ctx context.Context, query []float32, k int) ([]domain.ScoredID, error)
	Dim() int
	// Close освобождает ресурсы бэкенда после вывода снапшота из оборота.
	Close(ctx context.Context) error
}

type IndexBuilder interface {
	Build(ctx context.Context, ds *domain.EmbeddingDataset) (VectorIndex, error)
}

// IndexBuilderFunc позволяет использовать функцию как IndexBuilder.
type IndexBuilderFunc func(ctx context.Context, ds *domain.EmbeddingDataset) (VectorIndex, error)

func (f IndexBuilderFunc) Build(ctx context.Context, ds *domain.EmbeddingDataset) (VectorIndex, error) {
	return f(ctx, ds)
}

// ExplanationCache хранит сгенерированные объяснения по паре пользователь/товар.
// При отсутствии записи возвращает e.ErrCacheMiss.
type ExplanationCache interface {
	Get(ctx context.Context, userID, productID string) (*Explanation, error)
	Set(ctx context.Context, userID, productID string, exp *Explanation) error
}
