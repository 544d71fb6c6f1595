package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

const maxBodySize = 1 << 20

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// ToHTTPResponse сопоставляет доменную ошибку HTTP-статусу и сообщению.
func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrUserIDRequired):
		return http.StatusBadRequest, e.ErrUserIDRequired.Error()
	case errors.Is(err, e.ErrProductIDRequired):
		return http.StatusBadRequest, e.ErrProductIDRequired.Error()
	case errors.Is(err, e.ErrInvalidEventType):
		return http.StatusBadRequest, e.ErrInvalidEventType.Error()
	case errors.Is(err, e.ErrInvalidTimestamp):
		return http.StatusBadRequest, e.ErrInvalidTimestamp.Error()
	case errors.Is(err, e.ErrNoProducts):
		return http.StatusBadRequest, e.ErrNoProducts.Error()
	case errors.Is(err, e.ErrTooManyProducts):
		return http.StatusBadRequest, e.ErrTooManyProducts.Error()
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrNoInteractions):
		return http.StatusNotFound, e.ErrNoInteractions.Error()
	case errors.Is(err, e.ErrDataUnavailable):
		return http.StatusServiceUnavailable, e.ErrDataUnavailable.Error()
	case errors.Is(err, e.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, e.ErrServiceUnavailable.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса. Любая ошибка разбора превращается в ErrStatusBadRequest.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return e.Wrap(err.Error(), e.ErrStatusBadRequest)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return e.Wrap(err.Error(), e.ErrStatusBadRequest)
	}

	return nil
}

// logRequestError пишет 4xx в Warn, остальное в Error.
func logRequestError(log logger.Logger, r *http.Request, err error) {
	code, _ := ToHTTPResponse(err)
	if code < http.StatusInternalServerError {
		log.Warnf("%d %s %s: %v", code, r.Method, r.URL.Path, err)
		return
	}
	log.Errorf(err, "%d %s %s", code, r.Method, r.URL.Path)
}
