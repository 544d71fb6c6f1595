package jitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(time.Second, 10*time.Second, tt.attempt))
	}
}

func TestDurationWithRand(t *testing.T) {
	assert.Equal(t, time.Second, DurationWithRand(time.Second, 0.5, func() float64 { return 0 }))
	assert.Equal(t, 1500*time.Millisecond, DurationWithRand(time.Second, 0.5, func() float64 { return 1 }))
	assert.Equal(t, time.Second, DurationWithRand(time.Second, 0, func() float64 { return 1 }))
}

func TestExponentialBackoff_Bounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := ExponentialBackoff(100*time.Millisecond, time.Second, 3, DefaultJitter)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}
