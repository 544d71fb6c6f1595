package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

// maxProductsPerRequest ограничивает размер одного запроса к каталогу.
const maxProductsPerRequest = 100

// CatalogUseCase отдаёт информацию о товарах каталога с кэшированием в Redis.
type CatalogUseCase struct {
	productRepo ProductRepository
	cacheRepo   ProductCache
	logger      logger.Logger
}

func NewCatalogUC(productRepo ProductRepository, cacheRepo ProductCache, logger logger.Logger) *CatalogUseCase {
	return &CatalogUseCase{
		productRepo: productRepo,
		cacheRepo:   cacheRepo,
		logger:      logger,
	}
}

// GetProductsInfo возвращает информацию о товарах по их идентификаторам.
func (c *CatalogUseCase) GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error) {
	const op = "CatalogUseCase.GetProductsInfo"

	ids := normalizeIDs(req.IDs)
	if len(ids) == 0 {
		return nil, e.Wrap(op, e.ErrNoProducts)
	}
	if len(ids) > maxProductsPerRequest {
		return nil, e.Wrap(op, e.ErrTooManyProducts)
	}

	// Поиск товаров в кэше; ошибка кэша означает поход в БД за всеми
	cached, err := c.cacheRepo.GetProducts(ctx, ids)
	if err != nil {
		c.logger.Debugf("product cache unavailable: %v", e.Wrap(op, err))
		cached = nil
	}

	var nonCached []string
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			nonCached = append(nonCached, id)
		}
	}

	// Получение товаров из БД
	fromDB := make(map[string]domain.ProductInfo, len(nonCached))
	if len(nonCached) > 0 {
		products, err := c.productRepo.GetProductsInfo(ctx, nonCached)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		for _, p := range products {
			fromDB[p.ID] = p
		}

		if len(products) > 0 {
			// Фоновое добавление товаров в кэш
			go func() {
				bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				defer cancel()

				if err := c.cacheRepo.SetProducts(bgCtx, products); err != nil {
					c.logger.Warnf("Failed to cache products in background: %v", e.Wrap(op, err))
				}
			}()
		}
	}

	// Формирование результата в порядке запроса
	result := make([]domain.ProductInfo, 0, len(ids))
	notFound := make([]string, 0)
	for _, id := range ids {
		if p, ok := cached[id]; ok {
			result = append(result, p)
		} else if p, ok := fromDB[id]; ok {
			result = append(result, p)
		} else {
			notFound = append(notFound, id)
		}
	}

	return NewGetProductsRes(result, notFound), nil
}

// ProductName возвращает название товара или e.ErrLookupMiss.
func (c *CatalogUseCase) ProductName(ctx context.Context, productID string) (string, error) {
	const op = "CatalogUseCase.ProductName"

	res, err := c.GetProductsInfo(ctx, NewGetProductsReq([]string{productID}))
	if err != nil {
		return "", e.Wrap(op, err)
	}

	if len(res.Products) == 0 || res.Products[0].Name == "" {
		return "", e.Wrap(op, e.ErrLookupMiss)
	}

	return res.Products[0].Name, nil
}

// normalizeIDs убирает пробелы, пустые значения и дубликаты, сохраняя порядок.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
