// Package jitter добавляет случайность в интервалы повторных попыток,
// чтобы одновременные клиенты не били во внешний сервис синхронно.
package jitter

import (
	"math/rand/v2"
	"time"
)

// DefaultJitter — стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

// Duration возвращает продолжительность с применённым джиттером.
// Результат находится в диапазоне [d, d*(1+jitterFactor)].
func Duration(d time.Duration, jitterFactor float64) time.Duration {
	return DurationWithRand(d, jitterFactor, rand.Float64)
}

// DurationWithRand то же, что Duration, но с заданным источником случайности в [0, 1).
func DurationWithRand(d time.Duration, jitterFactor float64, randFloat func() float64) time.Duration {
	if d <= 0 || jitterFactor <= 0 {
		return d
	}

	return d + time.Duration(randFloat()*jitterFactor*float64(d))
}

// ExponentialBackoff вычисляет экспоненциальную задержку с джиттером.
// attempt нумеруется с нуля; задержка до джиттера ограничена max.
func ExponentialBackoff(base, max time.Duration, attempt int, jitterFactor float64) time.Duration {
	return Duration(backoff(base, max, attempt), jitterFactor)
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > max {
			return max
		}
	}

	return d
}
