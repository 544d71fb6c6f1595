package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/recommender/pkg/clients"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// ProfileCacheRepo хранит профили пользователей без TTL: актуальность
// определяется отметкой последнего события, а не временем жизни ключа.
type ProfileCacheRepo struct {
	client *clients.RedisClient
	conv   converter.ProfileConverter
}

func NewProfileCacheRepo(client *clients.RedisClient, conv converter.ProfileConverter) *ProfileCacheRepo {
	return &ProfileCacheRepo{
		client: client,
		conv:   conv,
	}
}

func (p *ProfileCacheRepo) Get(ctx context.Context, userID string) (*domain.UserProfileEmbedding, error) {
	data, err := p.client.Client.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, e.ErrCacheMiss
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var model converter.ProfileRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.conv.ToEntity(&model), nil
}

func (p *ProfileCacheRepo) Upsert(ctx context.Context, profile *domain.UserProfileEmbedding) error {
	data, err := json.Marshal(p.conv.ToRedisModel(profile))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.client.Client.Set(ctx, profileKey(profile.UserID), data, 0).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func profileKey(userID string) string {
	return fmt.Sprintf("user_profile:%s", userID)
}
