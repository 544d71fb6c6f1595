package e

import (
	"errors"
	"fmt"
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Данные эмбеддингов: отсутствие датасета фатально для всего запроса
	ErrDataUnavailable   = fmt.Errorf("embedding dataset unavailable")
	ErrDimensionMismatch = fmt.Errorf("embedding dimension mismatch")
	ErrEmptyVector       = fmt.Errorf("vector is empty")

	// Ошибки по отдельному пользователю/сигналу, не фатальны
	ErrNoInteractions = fmt.Errorf("no interactions found for user")
	ErrNoSeed         = fmt.Errorf("no qualifying seed for signal")

	// Внешний генератор объяснений
	ErrCollaboratorTimeout = fmt.Errorf("explanation collaborator timeout")
	ErrCollaboratorError   = fmt.Errorf("explanation collaborator error")

	// Каталог
	ErrLookupMiss = fmt.Errorf("product lookup miss")

	// Кэш
	ErrCacheMiss = fmt.Errorf("cache miss")

	// 400 Bad Request
	ErrStatusBadRequest  = fmt.Errorf("bad request")
	ErrUserIDRequired    = fmt.Errorf("user_id is required")
	ErrProductIDRequired = fmt.Errorf("product_id is required")
	ErrInvalidEventType  = fmt.Errorf("invalid event type")
	ErrInvalidTimestamp  = fmt.Errorf("invalid timestamp")
	ErrNoProducts        = fmt.Errorf("no product ids provided")
	ErrTooManyProducts   = fmt.Errorf("too many product ids")

	// Конфигурация
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")

	// 500/503
	ErrInternalServerError = fmt.Errorf("internal server error")
	ErrServiceUnavailable  = fmt.Errorf("service unavailable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// IsDataUnavailable сообщает, что ошибка означает отсутствие датасета эмбеддингов.
func IsDataUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}

// IsValidation сообщает, что ошибка вызвана некорректным запросом клиента.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrStatusBadRequest, ErrUserIDRequired, ErrProductIDRequired, ErrInvalidEventType,
		ErrInvalidTimestamp, ErrNoProducts, ErrTooManyProducts,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
