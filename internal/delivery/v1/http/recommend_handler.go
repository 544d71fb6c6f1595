package http

import (
	"net/http"

	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type RecommendHandler struct {
	recommendUsecase usecase.RecommendUC
	profileUsecase   usecase.ProfileUC
	logger           logger.Logger
}

func NewRecommendHandler(recommendUsecase usecase.RecommendUC, profileUsecase usecase.ProfileUC, logger logger.Logger) *RecommendHandler {
	return &RecommendHandler{
		recommendUsecase: recommendUsecase,
		profileUsecase:   profileUsecase,
		logger:           logger,
	}
}

// recommend — POST /recommend {"user_id": "..."}
//
//	@Summary		Рекомендации для пользователя
//	@Description	Строит список рекомендаций по истории взаимодействий пользователя
//	@Tags			recommendations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RecommendRequest	true	"Пользователь"
//	@Success		200		{object}	RecommendResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		404		{object}	ErrorResponse	"Нет истории взаимодействий"
//	@Failure		503		{object}	ErrorResponse	"Эмбеддинги не загружены"
//	@Router			/recommend [post]
func (h *RecommendHandler) recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	h.respond(w, r, req.UserID)
}

// userRecommendations — GET /users/{userID}/recommendations
//
//	@Summary		Рекомендации для пользователя
//	@Tags			recommendations
//	@Produce		json
//	@Param			userID	path		string	true	"Идентификатор пользователя"
//	@Success		200		{object}	RecommendResponse
//	@Failure		404		{object}	ErrorResponse	"Нет истории взаимодействий"
//	@Failure		503		{object}	ErrorResponse	"Эмбеддинги не загружены"
//	@Router			/users/{userID}/recommendations [get]
func (h *RecommendHandler) userRecommendations(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, chi.URLParam(r, "userID"))
}

func (h *RecommendHandler) respond(w http.ResponseWriter, r *http.Request, userID string) {
	res, err := h.recommendUsecase.RecommendForUser(r.Context(), userID)
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toRecommendResponse(res))
}

// refreshProfile — POST /users/{userID}/profile/refresh
//
//	@Summary		Пересчёт профиля пользователя
//	@Tags			profiles
//	@Produce		json
//	@Param			userID	path		string					true	"Идентификатор пользователя"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		503		{object}	ErrorResponse	"Эмбеддинги не загружены"
//	@Router			/users/{userID}/profile/refresh [post]
func (h *RecommendHandler) refreshProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.profileUsecase.Refresh(r.Context(), userID); err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"user_id":   userID,
		"refreshed": true,
	})
}
