package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/repository"
	"agri-sponsorship/internal/infra/metrics"
	red "agri-sponsorship/internal/infra/redis"
)

var _ repository.TierRepository = (*tierRepoCacheDecorator)(nil)

// tierRepoCacheDecorator caches the tier catalog in redis. Tiers change
// rarely; a one-hour TTL keeps the hot allocation path off the database.
type tierRepoCacheDecorator struct {
	inner repository.TierRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewTierRepoCacheDecorator(inner repository.TierRepository, cache red.RedisClient) repository.TierRepository {
	return &tierRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func (d *tierRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionTier, error) {
	key := fmt.Sprintf("tier:%s", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("tier", "hit")
		var tier model.SubscriptionTier
		if json.Unmarshal([]byte(val), &tier) == nil {
			return &tier, nil
		}
	} else if err != goredis.Nil {
		// A real redis error; fall through to the database.
	}

	metrics.IncCacheRequest("tier", "miss")
	tier, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(tier); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return tier, nil
}

func (d *tierRepoCacheDecorator) FindByName(ctx context.Context, tx repository.Tx, name model.TierName) (*model.SubscriptionTier, error) {
	key := fmt.Sprintf("tier:name:%s", name)
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("tier", "hit")
		var tier model.SubscriptionTier
		if json.Unmarshal([]byte(val), &tier) == nil {
			return &tier, nil
		}
	}

	metrics.IncCacheRequest("tier", "miss")
	tier, err := d.inner.FindByName(ctx, tx, name)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(tier); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return tier, nil
}

// Save invalidates every key the saved tier could live under.
func (d *tierRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, tier *model.SubscriptionTier) error {
	_ = d.cache.Del(ctx,
		fmt.Sprintf("tier:%s", tier.ID),
		fmt.Sprintf("tier:name:%s", tier.TierName),
		"tiers:all",
	)
	return d.inner.Save(ctx, tx, tier)
}

func (d *tierRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionTier, error) {
	key := "tiers:all"
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("tier_list", "hit")
		var tiers []*model.SubscriptionTier
		if json.Unmarshal([]byte(val), &tiers) == nil {
			return tiers, nil
		}
	}

	metrics.IncCacheRequest("tier_list", "miss")
	tiers, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(tiers) > 0 {
		if bytes, err := json.Marshal(tiers); err == nil {
			_ = d.cache.Set(ctx, key, bytes, d.ttl)
		}
	}
	return tiers, nil
}
