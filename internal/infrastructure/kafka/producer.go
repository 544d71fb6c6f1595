package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
)

// messageWriter — часть kafka.Writer, нужная продюсеру.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// servedEvent — событие о выданных пользователю рекомендациях.
type servedEvent struct {
	EventID  string       `json:"event_id"`
	UserID   string       `json:"user_id"`
	ServedAt time.Time    `json:"served_at"`
	Items    []servedItem `json:"items"`
}

type servedItem struct {
	ProductID   string  `json:"product_id"`
	Score       float64 `json:"score"`
	SourceEvent string  `json:"source_event"`
}

// Producer публикует события о выданных рекомендациях.
type Producer struct {
	writer messageWriter
	logger logger.Logger
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.ServedTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warnf("Kafka producer error: %s", err.Error())
			}
		},
	}

	return &Producer{
		writer: writer,
		logger: logger,
	}
}

// PublishServed отправляет событие с ключом по пользователю, чтобы сохранить порядок.
func (p *Producer) PublishServed(ctx context.Context, userID string, recs []domain.Recommendation) error {
	value, err := servedPayload(userID, recs, time.Now().UTC())
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: value,
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func servedPayload(userID string, recs []domain.Recommendation, now time.Time) ([]byte, error) {
	items := make([]servedItem, 0, len(recs))
	for _, r := range recs {
		items = append(items, servedItem{
			ProductID:   r.ProductID,
			Score:       r.Score,
			SourceEvent: string(r.SourceEvent),
		})
	}

	return json.Marshal(servedEvent{
		EventID:  uuid.NewString(),
		UserID:   userID,
		ServedAt: now,
		Items:    items,
	})
}
