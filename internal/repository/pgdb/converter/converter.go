package converter

import (
	"github.com/DRSN-tech/recommender/internal/domain"
)

// InteractionConverter преобразует события между domain и моделью PostgreSQL.
type InteractionConverter struct{}

func (InteractionConverter) ToModel(entity *domain.InteractionEvent) *InteractionModel {
	return &InteractionModel{
		ID:        entity.ID,
		UserID:    entity.UserID,
		ProductID: entity.ProductID,
		EventType: string(entity.EventType),
		Timestamp: entity.Timestamp.UTC(),
	}
}

func (InteractionConverter) ToEntity(model *InteractionModel) *domain.InteractionEvent {
	return &domain.InteractionEvent{
		ID:        model.ID,
		UserID:    model.UserID,
		ProductID: model.ProductID,
		EventType: domain.EventType(model.EventType),
		Timestamp: model.Timestamp.UTC(),
	}
}

// ProductConverter преобразует товары каталога из модели PostgreSQL в domain.
type ProductConverter struct{}

func (ProductConverter) ToEntity(model *ProductModel) *domain.ProductInfo {
	p := &domain.ProductInfo{
		ID:       model.ProductID,
		Name:     model.ProductName,
		Category: model.Category,
		Brand:    deref(model.Brand),
		About:    deref(model.AboutProduct),
	}
	if model.ActualPrice.Valid {
		p.ActualPrice = model.ActualPrice.Decimal
	}
	if model.DiscountedPrice.Valid {
		p.DiscountedPrice = model.DiscountedPrice.Decimal
	}
	if model.Rating != nil {
		p.Rating = *model.Rating
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
