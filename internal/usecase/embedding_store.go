package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/metrics"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

// Snapshot — неизменяемая пара «датасет + индекс». Запрос берёт один снапшот и
// работает с ним до конца, не видя последующих перезагрузок.
type Snapshot struct {
	dataset *domain.EmbeddingDataset
	index   VectorIndex
	rows    map[string]int
}

func newSnapshot(ds *domain.EmbeddingDataset, index VectorIndex) *Snapshot {
	rows := make(map[string]int, ds.Len())
	for i, row := range ds.Rows {
		if _, ok := rows[row.ProductID]; !ok {
			rows[row.ProductID] = i
		}
	}

	return &Snapshot{dataset: ds, index: index, rows: rows}
}

func (s *Snapshot) Version() string {
	return s.dataset.Version
}

func (s *Snapshot) Dim() int {
	return s.dataset.Dim
}

func (s *Snapshot) Len() int {
	return s.dataset.Len()
}

// Vector возвращает исходный (ненормализованный) вектор товара.
func (s *Snapshot) Vector(productID string) ([]float32, bool) {
	i, ok := s.rows[productID]
	if !ok {
		return nil, false
	}
	return s.dataset.Rows[i].Vector, true
}

// Product возвращает метаданные строки датасета.
func (s *Snapshot) Product(productID string) (domain.ProductMeta, bool) {
	i, ok := s.rows[productID]
	if !ok {
		return domain.ProductMeta{}, false
	}
	return s.dataset.Rows[i].ProductMeta, true
}

func (s *Snapshot) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredID, error) {
	return s.index.Search(ctx, query, k)
}

// EmbeddingStore держит текущий снапшот эмбеддингов. Писатель один: Reload.
type EmbeddingStore struct {
	source      EmbeddingSource
	builder     IndexBuilder
	logger      logger.Logger
	retireDelay time.Duration

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]

	retireMu sync.Mutex
	pending  map[*Snapshot]*time.Timer
	retiring sync.WaitGroup
}

// NewEmbeddingStore создаёт пустое хранилище. retireDelay задаёт, сколько ждать перед
// освобождением индекса предыдущего снапшота, чтобы завершились запросы, которые его держат.
func NewEmbeddingStore(source EmbeddingSource, builder IndexBuilder, logger logger.Logger, retireDelay time.Duration) *EmbeddingStore {
	return &EmbeddingStore{
		source:      source,
		builder:     builder,
		logger:      logger,
		retireDelay: retireDelay,
	}
}

// Snapshot возвращает текущий снапшот или e.ErrDataUnavailable до первой успешной загрузки.
func (s *EmbeddingStore) Snapshot() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, e.ErrDataUnavailable
	}
	return snap, nil
}

// Reload загружает датасет, полностью строит индекс и атомарно подменяет снапшот.
// При ошибке текущий снапшот остаётся в силе.
func (s *EmbeddingStore) Reload(ctx context.Context) (*ReloadRes, error) {
	const op = "EmbeddingStore.Reload"

	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.source.Load(ctx)
	if err != nil {
		metrics.RecordEmbeddingReload(metrics.ResultError, 0)
		return nil, e.Wrap(op, err)
	}

	index, err := s.builder.Build(ctx, ds)
	if err != nil {
		metrics.RecordEmbeddingReload(metrics.ResultError, 0)
		return nil, e.Wrap(op, err)
	}

	next := newSnapshot(ds, index)
	prev := s.current.Swap(next)
	if prev != nil {
		s.retire(prev)
	}

	metrics.RecordEmbeddingReload(metrics.ResultOK, ds.Len())
	s.logger.Infof("embedding snapshot %s loaded: %d products, dim %d", ds.Version, ds.Len(), ds.Dim)

	return &ReloadRes{Version: ds.Version, Products: ds.Len(), Dim: ds.Dim}, nil
}

// RunReloadLoop периодически перезагружает датасет до отмены контекста.
func (s *EmbeddingStore) RunReloadLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Reload(ctx); err != nil {
				s.logger.Errorf(err, "periodic embedding reload failed, keeping current snapshot")
			}
		}
	}
}

// Close освобождает индекс текущего снапшота и снапшотов, ожидающих вывода из оборота.
func (s *EmbeddingStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retireMu.Lock()
	var retired []*Snapshot
	for snap, timer := range s.pending {
		if timer.Stop() {
			s.retiring.Done()
			retired = append(retired, snap)
		}
	}
	s.pending = nil
	s.retireMu.Unlock()

	if snap := s.current.Swap(nil); snap != nil {
		retired = append(retired, snap)
	}

	var errs []error
	for _, snap := range retired {
		if err := snap.index.Close(ctx); err != nil {
			errs = append(errs, e.Wrap(snap.Version(), err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.retiring.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	return errors.Join(errs...)
}

func (s *EmbeddingStore) release(prev *Snapshot) {
	if err := prev.index.Close(context.Background()); err != nil {
		s.logger.Warnf("failed to release embedding snapshot %s: %v", prev.Version(), err)
	}
}

// retire освобождает индекс предыдущего снапшота через retireDelay.
// Отложенные освобождения, не успевшие сработать, выполняет Close.
func (s *EmbeddingStore) retire(prev *Snapshot) {
	if s.retireDelay <= 0 {
		s.release(prev)
		return
	}

	s.retireMu.Lock()
	defer s.retireMu.Unlock()

	if s.pending == nil {
		s.pending = make(map[*Snapshot]*time.Timer)
	}
	s.retiring.Add(1)
	s.pending[prev] = time.AfterFunc(s.retireDelay, func() {
		defer s.retiring.Done()

		s.retireMu.Lock()
		_, ok := s.pending[prev]
		delete(s.pending, prev)
		s.retireMu.Unlock()

		if ok {
			s.release(prev)
		}
	})
}
