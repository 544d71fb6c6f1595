package pgdb

import (
	"context"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// InteractionRepo реализует журнал взаимодействий поверх PostgreSQL.
type InteractionRepo struct {
	pool *pgxpool.Pool
	conv converter.InteractionConverter
}

func NewInteractionRepo(pool *pgxpool.Pool, conv converter.InteractionConverter) *InteractionRepo {
	return &InteractionRepo{
		pool: pool,
		conv: conv,
	}
}

// ListByUser возвращает историю пользователя по возрастанию времени.
// При равных отметках порядок задаётся порядком вставки.
func (r *InteractionRepo) ListByUser(ctx context.Context, userID string) ([]domain.InteractionEvent, error) {
	query := `
		SELECT id, user_id, product_id, event_type, timestamp
		FROM interactions
		WHERE user_id = $1
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := querierFromCtx(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.InteractionEvent, 0)
	for rows.Next() {
		var model converter.InteractionModel
		if err := rows.Scan(&model.ID, &model.UserID, &model.ProductID, &model.EventType, &model.Timestamp); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, *r.conv.ToEntity(&model))
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// Append дописывает события одним батчем. В транзакции из контекста, если она есть.
func (r *InteractionRepo) Append(ctx context.Context, events []domain.InteractionEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO interactions (user_id, product_id, event_type, timestamp)
		VALUES ($1, $2, $3, $4)
	`

	batch := &pgx.Batch{}
	for i := range events {
		model := r.conv.ToModel(&events[i])
		batch.Queue(query, model.UserID, model.ProductID, model.EventType, model.Timestamp)
	}

	if err := querierFromCtx(ctx, r.pool).SendBatch(ctx, batch).Close(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
