package e

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	err := Wrap("Repo.Get", ErrCacheMiss)
	assert.EqualError(t, err, "Repo.Get: cache miss")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestIsDataUnavailable(t *testing.T) {
	assert.True(t, IsDataUnavailable(Wrap("op", ErrDataUnavailable)))
	assert.True(t, IsDataUnavailable(fmt.Errorf("%w: %w", ErrDataUnavailable, ErrDimensionMismatch)))
	assert.False(t, IsDataUnavailable(ErrNoSeed))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(Wrap("op", ErrInvalidEventType)))
	assert.True(t, IsValidation(fmt.Errorf("event 3: %w", ErrUserIDRequired)))
	assert.False(t, IsValidation(ErrDataUnavailable))
	assert.False(t, IsValidation(errors.New("connection refused")))
}
