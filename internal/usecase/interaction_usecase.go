package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/metrics"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/DRSN-tech/recommender/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
)

// InteractionUseCase дописывает события в журнал взаимодействий.
type InteractionUseCase struct {
	repo   InteractionRepository
	dbPool transaction.Transactional
	logger logger.Logger
}

func NewInteractionUC(repo InteractionRepository, dbPool transaction.Transactional, logger logger.Logger) *InteractionUseCase {
	return &InteractionUseCase{
		repo:   repo,
		dbPool: dbPool,
		logger: logger,
	}
}

// Record валидирует и сохраняет одно событие.
func (i *InteractionUseCase) Record(ctx context.Context, req *RecordInteractionReq) error {
	const op = "InteractionUseCase.Record"

	ev, err := toInteractionEvent(req, time.Now().UTC())
	if err != nil {
		return e.Wrap(op, err)
	}

	if err := i.repo.Append(ctx, []domain.InteractionEvent{*ev}); err != nil {
		return e.Wrap(op, err)
	}

	metrics.RecordInteraction(string(ev.EventType))
	return nil
}

// RecordBatch сохраняет пачку событий в одной транзакции: либо все, либо ни одного.
func (i *InteractionUseCase) RecordBatch(ctx context.Context, reqs []RecordInteractionReq) (err error) {
	const op = "InteractionUseCase.RecordBatch"

	if len(reqs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	events := make([]domain.InteractionEvent, 0, len(reqs))
	for idx := range reqs {
		ev, err := toInteractionEvent(&reqs[idx], now)
		if err != nil {
			return e.Wrap(op, fmt.Errorf("event %d: %w", idx, err))
		}
		events = append(events, *ev)
	}

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, i.dbPool)
	if err != nil {
		return e.Wrap(op, err)
	}
	// При ошибке транзакция откатывается
	defer func() {
		if err != nil && tx.IsActive() {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				i.logger.Warnf("rollback failed: %v", e.Wrap(op, rbErr))
			}
		}
	}()
	pgxTx, ok := tx.Transaction().(pgx.Tx)
	if !ok {
		err = e.ErrTransactionNotFound
		return e.Wrap(op, err)
	}
	ctx = tr.WithTx(ctx, pgxTx)

	if err = i.repo.Append(ctx, events); err != nil {
		return e.Wrap(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(op, err)
	}

	for _, ev := range events {
		metrics.RecordInteraction(string(ev.EventType))
	}
	return nil
}

func toInteractionEvent(req *RecordInteractionReq, now time.Time) (*domain.InteractionEvent, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, e.ErrUserIDRequired
	}

	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return nil, e.ErrProductIDRequired
	}

	eventType, ok := domain.ParseEventType(req.EventType)
	if !ok {
		return nil, e.ErrInvalidEventType
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = now
	}
	if ts.After(now.Add(time.Minute)) {
		return nil, e.ErrInvalidTimestamp
	}

	return domain.NewInteractionEvent(userID, productID, eventType, ts.UTC()), nil
}
