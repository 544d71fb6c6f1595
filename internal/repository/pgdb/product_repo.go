package pgdb

import (
	"context"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// ProductRepo реализует каталог товаров поверх PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductConverter
}

func NewProductRepo(pool *pgxpool.Pool, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		pool: pool,
		conv: conv,
	}
}

// GetProductsInfo возвращает информацию о товарах по их идентификаторам.
func (p *ProductRepo) GetProductsInfo(ctx context.Context, ids []string) ([]domain.ProductInfo, error) {
	query := `
		SELECT product_id, product_name, category, brand, about_product,
		       actual_price, discounted_price, rating
		FROM products
		WHERE product_id = ANY($1)
	`

	rows, err := p.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.ProductInfo, 0, len(ids))
	for rows.Next() {
		var m converter.ProductModel
		if err := rows.Scan(
			&m.ProductID, &m.ProductName, &m.Category, &m.Brand, &m.AboutProduct,
			&m.ActualPrice, &m.DiscountedPrice, &m.Rating,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, *p.conv.ToEntity(&m))
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}
