package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/jitter"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
)

const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 30 * time.Second
)

// messageReader — часть kafka.Reader, нужная консьюмеру.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// interactionMessage — формат события во входящем топике.
type interactionMessage struct {
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractionConsumer читает события взаимодействий из Kafka и пишет их
// в журнал пачками. Оффсеты коммитятся только после успешной записи.
type InteractionConsumer struct {
	reader       messageReader
	uc           usecase.InteractionUC
	logger       logger.Logger
	batchSize    int
	batchTimeout time.Duration
}

func NewInteractionConsumer(c *cfg.KafkaCfg, uc usecase.InteractionUC, logger logger.Logger) *InteractionConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		Topic:          c.InteractionsTopic,
		GroupID:        c.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Warnf("kafka reader: "+msg, args...)
		}),
	})

	return newInteractionConsumer(reader, uc, logger, c.BatchSize, c.BatchTimeout)
}

func newInteractionConsumer(reader messageReader, uc usecase.InteractionUC, logger logger.Logger,
	batchSize int, batchTimeout time.Duration) *InteractionConsumer {
	return &InteractionConsumer{
		reader:       reader,
		uc:           uc,
		logger:       logger,
		batchSize:    max(batchSize, 1),
		batchTimeout: batchTimeout,
	}
}

// Run обрабатывает сообщения до отмены ctx.
func (c *InteractionConsumer) Run(ctx context.Context) error {
	c.logger.Infof("interaction consumer started")
	for {
		batch, err := c.fetchBatch(ctx)
		if len(batch) > 0 {
			if perr := c.processWithRetry(ctx, batch); perr != nil {
				return e.Wrap(whereami.WhereAmI(), perr)
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				c.logger.Infof("interaction consumer stopped")
				return nil
			}
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}
}

// fetchBatch набирает до batchSize сообщений, но ждёт не дольше batchTimeout
// после первого сообщения.
func (c *InteractionConsumer) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}

	batch := []kafka.Message{first}
	if c.batchSize == 1 {
		return batch, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.batchTimeout)
	defer cancel()

	for len(batch) < c.batchSize {
		msg, err := c.reader.FetchMessage(fetchCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return batch, nil
			}
			return batch, err
		}
		batch = append(batch, msg)
	}

	return batch, nil
}

// processWithRetry повторяет запись пачки при ошибках инфраструктуры.
func (c *InteractionConsumer) processWithRetry(ctx context.Context, batch []kafka.Message) error {
	for attempt := 0; ; attempt++ {
		err := c.process(ctx, batch)
		if err == nil {
			break
		}

		sleepTime := jitter.ExponentialBackoff(retryBaseDelay, retryMaxDelay, attempt, jitter.DefaultJitter)
		c.logger.Errorf(err, "failed to record %d interactions, retrying in %v", len(batch), sleepTime)

		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Коммит не должен теряться при остановке сразу после записи
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.reader.CommitMessages(commitCtx, batch...); err != nil {
		return err
	}

	return nil
}

// process пишет пачку одной транзакцией. Если в пачке есть некорректное событие,
// события пишутся по одному, а некорректные пропускаются.
func (c *InteractionConsumer) process(ctx context.Context, batch []kafka.Message) error {
	reqs := make([]usecase.RecordInteractionReq, 0, len(batch))
	for _, msg := range batch {
		req, err := decodeMessage(msg)
		if err != nil {
			c.logger.Warnf("skip malformed interaction at %s/%d/%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			continue
		}
		reqs = append(reqs, *req)
	}

	err := c.uc.RecordBatch(ctx, reqs)
	if err == nil || !e.IsValidation(err) {
		return err
	}

	for i := range reqs {
		if err := c.uc.Record(ctx, &reqs[i]); err != nil {
			if e.IsValidation(err) {
				c.logger.Warnf("skip invalid interaction for user %q: %v", reqs[i].UserID, err)
				continue
			}
			return err
		}
	}

	return nil
}

func decodeMessage(msg kafka.Message) (*usecase.RecordInteractionReq, error) {
	var m interactionMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return nil, err
	}

	return usecase.NewRecordInteractionReq(m.UserID, m.ProductID, m.EventType, m.Timestamp), nil
}

func (c *InteractionConsumer) Close() error {
	return c.reader.Close()
}
