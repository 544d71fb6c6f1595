package converter

import (
	"time"

	"github.com/shopspring/decimal"
)

// InteractionModel представляет запись таблицы interactions в PostgreSQL.
type InteractionModel struct {
	ID        int64     `db:"id"`
	UserID    string    `db:"user_id"`
	ProductID string    `db:"product_id"`
	EventType string    `db:"event_type"`
	Timestamp time.Time `db:"timestamp"`
}

// ProductModel представляет запись таблицы products в PostgreSQL.
type ProductModel struct {
	ProductID       string              `db:"product_id"`
	ProductName     string              `db:"product_name"`
	Category        string              `db:"category"`
	Brand           *string             `db:"brand"`
	AboutProduct    *string             `db:"about_product"`
	ActualPrice     decimal.NullDecimal `db:"actual_price"`
	DiscountedPrice decimal.NullDecimal `db:"discounted_price"`
	Rating          *float64            `db:"rating"`
}
