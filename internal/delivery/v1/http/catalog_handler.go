package http

import (
	"net/http"
	"strings"

	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

type CatalogHandler struct {
	catalogUsecase usecase.CatalogUC
	logger         logger.Logger
}

func NewCatalogHandler(catalogUsecase usecase.CatalogUC, logger logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogUsecase: catalogUsecase,
		logger:         logger,
	}
}

// getProducts — GET /products?ids=P1,P2
//
//	@Summary		Карточки товаров
//	@Tags			products
//	@Produce		json
//	@Param			ids	query		string	true	"Идентификаторы через запятую"
//	@Success		200		{object}	ProductsResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/products [get]
func (h *CatalogHandler) getProducts(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, raw := range r.URL.Query()["ids"] {
		ids = append(ids, strings.Split(raw, ",")...)
	}

	res, err := h.catalogUsecase.GetProductsInfo(r.Context(), usecase.NewGetProductsReq(ids))
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toProductsResponse(res))
}
