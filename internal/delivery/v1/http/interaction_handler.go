package http

import (
	"net/http"

	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

const maxEventsPerRequest = 1000

type InteractionHandler struct {
	interactionUsecase usecase.InteractionUC
	logger             logger.Logger
}

func NewInteractionHandler(interactionUsecase usecase.InteractionUC, logger logger.Logger) *InteractionHandler {
	return &InteractionHandler{
		interactionUsecase: interactionUsecase,
		logger:             logger,
	}
}

// record — POST /interactions. Принимает одно событие или {"events": [...]}.
//
//	@Summary		Запись взаимодействий
//	@Description	Принимает одно событие или пачку до 1000 событий
//	@Tags			interactions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		InteractionBatchRequest	true	"События"
//	@Success		201		{object}	map[string]interface{}
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/interactions [post]
func (h *InteractionHandler) record(w http.ResponseWriter, r *http.Request) {
	var body struct {
		InteractionRequest
		Events []InteractionRequest `json:"events"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	if body.Events == nil {
		req := body.InteractionRequest.toUseCase()
		if err := h.interactionUsecase.Record(r.Context(), &req); err != nil {
			logRequestError(h.logger, r, err)
			WriteError(w, err)
			return
		}

		WriteSuccess(w, http.StatusCreated, map[string]interface{}{"recorded": 1})
		return
	}

	if len(body.Events) > maxEventsPerRequest {
		err := e.Wrap("too many events", e.ErrStatusBadRequest)
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	reqs := make([]usecase.RecordInteractionReq, 0, len(body.Events))
	for _, ev := range body.Events {
		reqs = append(reqs, ev.toUseCase())
	}

	if err := h.interactionUsecase.RecordBatch(r.Context(), reqs); err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, map[string]interface{}{"recorded": len(reqs)})
}
