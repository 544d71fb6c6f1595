package domain

import "github.com/shopspring/decimal"

// UnknownProductName подставляется, если товар не найден в каталоге
const UnknownProductName = "Unknown Product"

// ProductInfo описывает товар каталога
type ProductInfo struct {
	ID              string
	Name            string
	Category        string
	Brand           string
	About           string
	ActualPrice     decimal.Decimal
	DiscountedPrice decimal.Decimal
	Rating          float64
}

// Price возвращает цену со скидкой, если она задана, иначе обычную.
func (p *ProductInfo) Price() decimal.Decimal {
	if p.DiscountedPrice.IsPositive() {
		return p.DiscountedPrice
	}
	return p.ActualPrice
}
