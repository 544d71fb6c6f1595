package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/DRSN-tech/recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/clients"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// ExplanationCacheRepo кэширует объяснения по паре пользователь/товар.
type ExplanationCacheRepo struct {
	client *clients.RedisClient
	conv   converter.ExplanationConverter
	ttl    time.Duration
}

func NewExplanationCacheRepo(client *clients.RedisClient, conv converter.ExplanationConverter, ttl time.Duration) *ExplanationCacheRepo {
	return &ExplanationCacheRepo{
		client: client,
		conv:   conv,
		ttl:    ttl,
	}
}

func (x *ExplanationCacheRepo) Get(ctx context.Context, userID, productID string) (*usecase.Explanation, error) {
	data, err := x.client.Client.Get(ctx, ExplanationKey(userID, productID)).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, e.ErrCacheMiss
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var model converter.ExplanationRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return x.conv.ToUseCase(&model), nil
}

func (x *ExplanationCacheRepo) Set(ctx context.Context, userID, productID string, exp *usecase.Explanation) error {
	data, err := json.Marshal(x.conv.ToRedisModel(exp))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := x.client.Client.Set(ctx, ExplanationKey(userID, productID), data, x.ttl).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// ExplanationKey — первые 16 hex-символов sha256 от "<user>_<product>".
func ExplanationKey(userID, productID string) string {
	sum := sha256.Sum256([]byte(userID + "_" + productID))
	return "explanation:" + hex.EncodeToString(sum[:])[:16]
}
