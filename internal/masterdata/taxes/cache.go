package taxes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RateSource resolves tax rates by ID; *Service satisfies it.
type RateSource interface {
	ResolveRates(ctx context.Context, ids []int64) ([]float64, error)
}

// RateCache fronts a RateSource with Redis. Rates change rarely but are read
// on every document creation, so cached values carry a short TTL instead of
// explicit invalidation. Concurrent misses for the same tax collapse into
// one load.
type RateCache struct {
	source RateSource
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewRateCache constructs a RateCache. A nil client disables caching.
func NewRateCache(source RateSource, client *redis.Client, ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RateCache{source: source, client: client, ttl: ttl}
}

func rateKey(id int64) string {
	return fmt.Sprintf("tax:rate:%d", id)
}

// ResolveRates returns the rate for each tax ID, consulting Redis first.
func (c *RateCache) ResolveRates(ctx context.Context, ids []int64) ([]float64, error) {
	if c.client == nil {
		return c.source.ResolveRates(ctx, ids)
	}
	rates := make([]float64, 0, len(ids))
	for _, id := range ids {
		rate, err := c.resolveOne(ctx, id)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

func (c *RateCache) resolveOne(ctx context.Context, id int64) (float64, error) {
	val, err := c.client.Get(ctx, rateKey(id)).Result()
	if err == nil {
		return strconv.ParseFloat(val, 64)
	}
	if !errors.Is(err, redis.Nil) {
		// Redis being down should not block document creation.
		return c.loadOne(ctx, id)
	}

	result, err, _ := c.group.Do(rateKey(id), func() (interface{}, error) {
		rate, err := c.loadOne(ctx, id)
		if err != nil {
			return 0.0, err
		}
		c.client.Set(ctx, rateKey(id), strconv.FormatFloat(rate, 'f', -1, 64), c.ttl)
		return rate, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(float64), nil
}

func (c *RateCache) loadOne(ctx context.Context, id int64) (float64, error) {
	rates, err := c.source.ResolveRates(ctx, []int64{id})
	if err != nil {
		return 0, err
	}
	return rates[0], nil
}
