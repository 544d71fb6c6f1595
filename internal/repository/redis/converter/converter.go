package converter

import (
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/shopspring/decimal"
)

type ProductInfoConverter struct{}

func (ProductInfoConverter) ToRedisModel(entity *domain.ProductInfo) *ProductInfoRedisModel {
	return &ProductInfoRedisModel{
		ID:              entity.ID,
		Name:            entity.Name,
		Category:        entity.Category,
		Brand:           entity.Brand,
		About:           entity.About,
		ActualPrice:     entity.ActualPrice.String(),
		DiscountedPrice: entity.DiscountedPrice.String(),
		Rating:          entity.Rating,
	}
}

// ToEntity восстанавливает товар; нечитаемая цена считается нулевой.
func (ProductInfoConverter) ToEntity(model *ProductInfoRedisModel) *domain.ProductInfo {
	return &domain.ProductInfo{
		ID:              model.ID,
		Name:            model.Name,
		Category:        model.Category,
		Brand:           model.Brand,
		About:           model.About,
		ActualPrice:     parseDecimal(model.ActualPrice),
		DiscountedPrice: parseDecimal(model.DiscountedPrice),
		Rating:          model.Rating,
	}
}

func (c ProductInfoConverter) ToArrRedisModel(entities []domain.ProductInfo) []ProductInfoRedisModel {
	out := make([]ProductInfoRedisModel, 0, len(entities))
	for i := range entities {
		out = append(out, *c.ToRedisModel(&entities[i]))
	}
	return out
}

type ProfileConverter struct{}

func (ProfileConverter) ToRedisModel(entity *domain.UserProfileEmbedding) *ProfileRedisModel {
	return &ProfileRedisModel{
		UserID:      entity.UserID,
		Vector:      entity.Vector,
		LastEventTS: entity.LastEventTS.UTC(),
	}
}

func (ProfileConverter) ToEntity(model *ProfileRedisModel) *domain.UserProfileEmbedding {
	return domain.NewUserProfileEmbedding(model.UserID, model.Vector, model.LastEventTS.UTC())
}

type ExplanationConverter struct{}

func (ExplanationConverter) ToRedisModel(entity *usecase.Explanation) *ExplanationRedisModel {
	evidence := entity.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	return &ExplanationRedisModel{
		Explanation: entity.Text,
		Evidence:    evidence,
	}
}

func (ExplanationConverter) ToUseCase(model *ExplanationRedisModel) *usecase.Explanation {
	evidence := model.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	return &usecase.Explanation{
		Text:     model.Explanation,
		Evidence: evidence,
	}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
