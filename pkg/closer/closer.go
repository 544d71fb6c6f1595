package closer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// successIdx — индекс, который возвращается в случае успешного закрытия всех ресурсов
const successIdx = -1

// Closer обеспечивает потокобезопасное закрытие ресурсов.
type Closer struct {
	items         []item
	mu            sync.Mutex
	once          sync.Once
	forcedTimeout time.Duration
}

// Func — сигнатура функции закрытия ресурса.
type Func func(ctx context.Context) error

type item struct {
	name string
	f    Func
}

// NewCloser создает новый экземпляр Closer.
// forcedTimeout — время, отводимое на принудительное закрытие оставшихся ресурсов при таймауте контекста в Close.
func NewCloser(forcedTimeout time.Duration) *Closer {
	const defaultForcedTimeout = 2 * time.Second

	if forcedTimeout <= 0 {
		forcedTimeout = defaultForcedTimeout
	}

	return &Closer{forcedTimeout: forcedTimeout}
}

// Add регистрирует именованную функцию закрытия.
func (c *Closer) Add(name string, f Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item{name: name, f: f})
}

// Close последовательно закрывает ресурсы в порядке LIFO.
// Если контекст отменяется до завершения, оставшиеся ресурсы закрываются параллельно
// с собственным таймаутом. Повторные вызовы ничего не делают.
func (c *Closer) Close(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		items := c.items
		c.mu.Unlock()

		stopIdx, errs := c.gracefulClose(ctx, items)
		if stopIdx == successIdx {
			err = errors.Join(errs...)
			return
		}

		errs = append(errs, c.forcedClose(items[:stopIdx+1])...)
		err = fmt.Errorf(
			"shutdown interrupted after %d/%d resources: %w",
			len(items)-1-stopIdx,
			len(items),
			errors.Join(errs...),
		)
	})

	return err
}

func (c *Closer) gracefulClose(ctx context.Context, items []item) (int, []error) {
	var errs []error
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		done := make(chan error, 1)

		go func() {
			done <- it.f(ctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", it.name, err))
			}
		case <-ctx.Done():
			return i, errs
		}
	}

	return successIdx, errs
}

func (c *Closer) forcedClose(items []item) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	ctx, cancel := context.WithTimeout(context.Background(), c.forcedTimeout)
	defer cancel()

	for _, it := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := it.f(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("forced %s: %w", it.name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errs
}
