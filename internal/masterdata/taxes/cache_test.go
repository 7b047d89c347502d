package taxes

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	rates map[int64]float64
	calls int
}

func (s *countingSource) ResolveRates(ctx context.Context, ids []int64) ([]float64, error) {
	s.calls++
	out := make([]float64, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.rates[id])
	}
	return out, nil
}

func TestRateCacheHitsRedisOnSecondLookup(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	source := &countingSource{rates: map[int64]float64{1: 15, 2: 2.5}}
	cache := NewRateCache(source, client, time.Minute)
	ctx := context.Background()

	rates, err := cache.ResolveRates(ctx, []int64{1, 2})
	require.NoError(t, err)
	require.Equal(t, []float64{15, 2.5}, rates)
	require.Equal(t, 2, source.calls)

	rates, err = cache.ResolveRates(ctx, []int64{1, 2})
	require.NoError(t, err)
	require.Equal(t, []float64{15, 2.5}, rates)
	require.Equal(t, 2, source.calls, "second lookup must come from redis")
}

func TestRateCacheExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	source := &countingSource{rates: map[int64]float64{7: 10}}
	cache := NewRateCache(source, client, time.Minute)
	ctx := context.Background()

	_, err := cache.ResolveRates(ctx, []int64{7})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.ResolveRates(ctx, []int64{7})
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)
}

func TestRateCacheNilClientPassesThrough(t *testing.T) {
	source := &countingSource{rates: map[int64]float64{1: 15}}
	cache := NewRateCache(source, nil, time.Minute)

	rates, err := cache.ResolveRates(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Equal(t, []float64{15}, rates)
}
