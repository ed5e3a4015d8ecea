package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"balancebook/internal/domain/currency"
)

// fetchedTTL bounds how long a pair's fetched dates are remembered.
const fetchedTTL = 30 * 24 * time.Hour

// FetchedCache implements currency.FetchedCache with one set per pair.
type FetchedCache struct {
	client goredis.UniversalClient
}

var _ currency.FetchedCache = (*FetchedCache)(nil)

func NewFetchedCache(client goredis.UniversalClient) *FetchedCache {
	return &FetchedCache{client: client}
}

func fetchedKey(pair currency.Pair) string {
	return "fx:fetched:" + pair.Key()
}

func (c *FetchedCache) FetchedDates(ctx context.Context, pair currency.Pair, dates []string) (map[string]bool, error) {
	out := make(map[string]bool, len(dates))
	if len(dates) == 0 {
		return out, nil
	}

	members := make([]any, len(dates))
	for i, d := range dates {
		members[i] = d
	}
	found, err := c.client.SMIsMember(ctx, fetchedKey(pair), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read fetched dates for %s: %w", pair.Key(), err)
	}
	for i, ok := range found {
		if ok {
			out[dates[i]] = true
		}
	}
	return out, nil
}

func (c *FetchedCache) MarkFetched(ctx context.Context, pair currency.Pair, dates []string) error {
	if len(dates) == 0 {
		return nil
	}

	members := make([]any, len(dates))
	for i, d := range dates {
		members[i] = d
	}
	key := fetchedKey(pair)
	_, err := c.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.SAdd(ctx, key, members...)
		p.Expire(ctx, key, fetchedTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark fetched dates for %s: %w", pair.Key(), err)
	}
	return nil
}
