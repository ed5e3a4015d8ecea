package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"balancebook/internal/domain/dashboard"
)

// DashboardTTL is how long a computed summary is served from cache.
const DashboardTTL = 5 * time.Minute

// baseField stands for "the user's base currency" when no code was requested.
const baseField = "_base"

// DashboardCache keeps one hash per user, one field per requested currency,
// so a single DEL invalidates every currency. The hash TTL is refreshed on each
// write, so every entry also carries its own timestamp.
type DashboardCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

type cachedSummary struct {
	CachedAt time.Time          `json:"cachedAt"`
	Summary  *dashboard.Summary `json:"summary"`
}

var _ dashboard.Cache = (*DashboardCache)(nil)

func NewDashboardCache(client goredis.UniversalClient) *DashboardCache {
	return &DashboardCache{client: client, ttl: DashboardTTL, now: time.Now}
}

func dashboardKey(userID int64) string {
	return "dashboard:" + strconv.FormatInt(userID, 10)
}

func dashboardField(code string) string {
	if code == "" {
		return baseField
	}
	return code
}

func (c *DashboardCache) Get(ctx context.Context, userID int64, code string) (*dashboard.Summary, bool, error) {
	data, err := c.client.HGet(ctx, dashboardKey(userID), dashboardField(code)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read dashboard cache: %w", err)
	}

	return c.decode(data)
}

// decode treats entries older than the TTL as misses.
func (c *DashboardCache) decode(data []byte) (*dashboard.Summary, bool, error) {
	var entry cachedSummary
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached dashboard: %w", err)
	}
	if entry.Summary == nil || c.now().Sub(entry.CachedAt) > c.ttl {
		return nil, false, nil
	}
	return entry.Summary, true, nil
}

func (c *DashboardCache) Set(ctx context.Context, userID int64, code string, summary *dashboard.Summary) error {
	data, err := json.Marshal(cachedSummary{CachedAt: c.now(), Summary: summary})
	if err != nil {
		return fmt.Errorf("failed to marshal dashboard: %w", err)
	}

	key := dashboardKey(userID)
	_, err = c.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, key, dashboardField(code), data)
		p.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write dashboard cache: %w", err)
	}
	return nil
}

func (c *DashboardCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, dashboardKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate dashboard cache: %w", err)
	}
	return nil
}
