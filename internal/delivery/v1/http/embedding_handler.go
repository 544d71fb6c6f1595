package http

import (
	"net/http"

	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

type EmbeddingHandler struct {
	embeddingUsecase usecase.EmbeddingUC
	logger           logger.Logger
}

func NewEmbeddingHandler(embeddingUsecase usecase.EmbeddingUC, logger logger.Logger) *EmbeddingHandler {
	return &EmbeddingHandler{
		embeddingUsecase: embeddingUsecase,
		logger:           logger,
	}
}

// reload — POST /embeddings/reload. При ошибке продолжает работать прежний снапшот.
//
//	@Summary		Перезагрузка эмбеддингов
//	@Tags			embeddings
//	@Produce		json
//	@Success		200		{object}	ReloadResponse
//	@Failure		503		{object}	ErrorResponse	"Датасет недоступен"
//	@Router			/embeddings/reload [post]
func (h *EmbeddingHandler) reload(w http.ResponseWriter, r *http.Request) {
	res, err := h.embeddingUsecase.Reload(r.Context())
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	h.logger.Infof("embeddings reloaded: version=%s products=%d", res.Version, res.Products)
	WriteSuccess(w, http.StatusOK, &ReloadResponse{
		Version:  res.Version,
		Products: res.Products,
		Dim:      res.Dim,
	})
}
