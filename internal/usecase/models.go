package usecase

import (
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
)

// PlaceholderExplanation подставляется при ошибке или таймауте генератора объяснений.
const PlaceholderExplanation = "Explanation temporarily unavailable."

// RECOMMEND USECASE

// ExplainRequest — вход генератора объяснений.
type ExplainRequest struct {
	UserID       string
	Candidate    domain.Candidate
	Interactions []domain.InteractionEvent
	Product      *domain.ProductInfo // nil, если товара нет в каталоге
}

// Explanation — ответ генератора объяснений.
type Explanation struct {
	Text     string   `json:"explanation"`
	Evidence []string `json:"evidence"`
}

// GenerateRequest — общий контекст генераторов кандидатов в рамках одного запроса.
type GenerateRequest struct {
	UserID   string
	Events   []domain.InteractionEvent // по возрастанию времени
	Snapshot *Snapshot
	Seen     map[string]struct{}
	Now      time.Time
}

// RecommendRes — ответ на запрос рекомендаций.
type RecommendRes struct {
	UserID          string
	Recommendations []domain.Recommendation
}

// INTERACTION USECASE

// RecordInteractionReq — запрос на запись события. Пустой Timestamp означает «сейчас».
type RecordInteractionReq struct {
	UserID    string
	ProductID string
	EventType string
	Timestamp time.Time
}

// CATALOG USECASE

// GetProductsReq запрос информации о товарах по их идентификаторам.
type GetProductsReq struct {
	IDs []string
}

// GetProductsRes — ответ с данными запрошенных товаров.
type GetProductsRes struct {
	Products         []domain.ProductInfo
	NotFoundProducts []string
}

// EMBEDDINGS

// ReloadRes — итог перезагрузки датасета эмбеддингов.
type ReloadRes struct {
	Version  string
	Products int
	Dim      int
}

// MAPPERS

func NewGetProductsRes(products []domain.ProductInfo, notFound []string) *GetProductsRes {
	return &GetProductsRes{
		Products:         products,
		NotFoundProducts: notFound,
	}
}

func NewGetProductsReq(ids []string) *GetProductsReq {
	return &GetProductsReq{IDs: ids}
}

func NewRecordInteractionReq(userID, productID, eventType string, ts time.Time) *RecordInteractionReq {
	return &RecordInteractionReq{
		UserID:    userID,
		ProductID: productID,
		EventType: eventType,
		Timestamp: ts,
	}
}
