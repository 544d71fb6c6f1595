package http

import (
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
)

type RecommendRequest struct {
	UserID string `json:"user_id"`
}

type RecommendationDTO struct {
	ProductID   string   `json:"product_id"`
	ProductName string   `json:"product_name"`
	Score       float64  `json:"score"`
	SourceEvent string   `json:"source_event"`
	Explanation string   `json:"explanation"`
	Evidence    []string `json:"evidence"`
}

type RecommendResponse struct {
	UserID          string              `json:"user_id"`
	Recommendations []RecommendationDTO `json:"recommendations"`
}

type InteractionRequest struct {
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

type InteractionBatchRequest struct {
	Events []InteractionRequest `json:"events"`
}

type ProductDTO struct {
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	Category        string  `json:"category"`
	Brand           string  `json:"brand,omitempty"`
	ActualPrice     string  `json:"actual_price"`
	DiscountedPrice string  `json:"discounted_price"`
	Rating          float64 `json:"rating"`
}

type ProductsResponse struct {
	Products []ProductDTO `json:"products"`
	NotFound []string     `json:"not_found"`
}

type ReloadResponse struct {
	Version  string `json:"version"`
	Products int    `json:"products"`
	Dim      int    `json:"dim"`
}

func toRecommendResponse(res *usecase.RecommendRes) *RecommendResponse {
	out := &RecommendResponse{
		UserID:          res.UserID,
		Recommendations: make([]RecommendationDTO, 0, len(res.Recommendations)),
	}
	for _, rec := range res.Recommendations {
		evidence := rec.Evidence
		if evidence == nil {
			evidence = []string{}
		}
		out.Recommendations = append(out.Recommendations, RecommendationDTO{
			ProductID:   rec.ProductID,
			ProductName: rec.ProductName,
			Score:       rec.Score,
			SourceEvent: string(rec.SourceEvent),
			Explanation: rec.Explanation,
			Evidence:    evidence,
		})
	}
	return out
}

func toProductsResponse(res *usecase.GetProductsRes) *ProductsResponse {
	out := &ProductsResponse{
		Products: make([]ProductDTO, 0, len(res.Products)),
		NotFound: res.NotFoundProducts,
	}
	if out.NotFound == nil {
		out.NotFound = []string{}
	}
	for _, p := range res.Products {
		out.Products = append(out.Products, toProductDTO(p))
	}
	return out
}

func toProductDTO(p domain.ProductInfo) ProductDTO {
	return ProductDTO{
		ProductID:       p.ID,
		ProductName:     p.Name,
		Category:        p.Category,
		Brand:           p.Brand,
		ActualPrice:     p.ActualPrice.StringFixed(2),
		DiscountedPrice: p.DiscountedPrice.StringFixed(2),
		Rating:          p.Rating,
	}
}

func (i InteractionRequest) toUseCase() usecase.RecordInteractionReq {
	return *usecase.NewRecordInteractionReq(i.UserID, i.ProductID, i.EventType, i.Timestamp)
}
