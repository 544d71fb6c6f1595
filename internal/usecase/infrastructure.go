package usecase

import (
	"context"

	"github.com/DRSN-tech/recommender/internal/domain"
)

// Explainer генерирует объяснение рекомендации.
type Explainer interface {
	Explain(ctx context.Context, req *ExplainRequest) (*Explanation, error)
}

// RecommendationPublisher публикует события о выданных рекомендациях.
type RecommendationPublisher interface {
	PublishServed(ctx context.Context, userID string, recs []domain.Recommendation) error
}
