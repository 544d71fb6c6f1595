package usecase

import "context"

type RecommendUC interface {
	RecommendForUser(ctx context.Context, userID string) (*RecommendRes, error)
}

type InteractionUC interface {
	Record(ctx context.Context, req *RecordInteractionReq) error
	RecordBatch(ctx context.Context, reqs []RecordInteractionReq) error
}

type CatalogUC interface {
	GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error)
}

type EmbeddingUC interface {
	Reload(ctx context.Context) (*ReloadRes, error)
}

type ProfileUC interface {
	Refresh(ctx context.Context, userID string) error
}
