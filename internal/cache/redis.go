// Package cache implements the fast store: a Redis-backed projection of
// users and positions that is authoritative for AvailableCash and
// AvailableVolume during the trading session, so the hot path of order
// submission never round-trips to Postgres. internal/userengine flushes
// this projection back to the durable store at market close and reloads it
// from the durable store at startup.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/hyu9999/paper-trading-1/internal/domain"
)

const reloadKey = "paper-trading:reload"

// NewClient builds a *redis.Client from a redis:// URI.
func NewClient(uri string) (*redis.Client, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis uri: %w", err)
	}
	return redis.NewClient(opts), nil
}

// UserCache is the Redis-backed domain.UserCache.
type UserCache struct {
	rdb *redis.Client
}

var _ domain.UserCache = (*UserCache)(nil)

// NewUserCache wraps rdb as a domain.UserCache.
func NewUserCache(rdb *redis.Client) *UserCache { return &UserCache{rdb: rdb} }

func userKey(id string) string { return "user:" + id }

func (c *UserCache) Set(ctx context.Context, u *domain.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("cache: marshal user: %w", err)
	}
	if err := c.rdb.Set(ctx, userKey(u.ID), b, 0).Err(); err != nil {
		return fmt.Errorf("cache: set user: %w", err)
	}
	return nil
}

func (c *UserCache) Get(ctx context.Context, id string) (*domain.User, error) {
	b, err := c.rdb.Get(ctx, userKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrEntityNotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get user: %w", err)
	}
	u := &domain.User{}
	if err := json.Unmarshal(b, u); err != nil {
		return nil, fmt.Errorf("cache: unmarshal user: %w", err)
	}
	return u, nil
}

func (c *UserCache) Delete(ctx context.Context, id string) error {
	if err := c.rdb.Del(ctx, userKey(id)).Err(); err != nil {
		return fmt.Errorf("cache: delete user: %w", err)
	}
	return nil
}

func (c *UserCache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.rdb.Keys(ctx, "user:*").Result()
	if err != nil {
		return nil, fmt.Errorf("cache: keys user: %w", err)
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, "user:"))
	}
	return out, nil
}

func (c *UserCache) IsReload(ctx context.Context) (bool, error) {
	n, err := c.rdb.Exists(ctx, reloadKey).Result()
	if err != nil {
		return false, fmt.Errorf("cache: is reload: %w", err)
	}
	return n > 0, nil
}

func (c *UserCache) ClearReload(ctx context.Context) error {
	if err := c.rdb.Del(ctx, reloadKey).Err(); err != nil {
		return fmt.Errorf("cache: clear reload: %w", err)
	}
	return nil
}

func (c *UserCache) SetReload(ctx context.Context) error {
	if err := c.rdb.Set(ctx, reloadKey, "1", 0).Err(); err != nil {
		return fmt.Errorf("cache: set reload: %w", err)
	}
	return nil
}

// PositionCache is the Redis-backed domain.PositionCache.
type PositionCache struct {
	rdb *redis.Client
}

var _ domain.PositionCache = (*PositionCache)(nil)

// NewPositionCache wraps rdb as a domain.PositionCache.
func NewPositionCache(rdb *redis.Client) *PositionCache { return &PositionCache{rdb: rdb} }

func positionKey(user, symbol string, exchange domain.Exchange) string {
	return fmt.Sprintf("position:%s:%s:%s", user, symbol, exchange)
}

func (c *PositionCache) Set(ctx context.Context, p *domain.Position) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cache: marshal position: %w", err)
	}
	key := positionKey(p.User, p.Symbol, p.Exchange)
	if err := c.rdb.Set(ctx, key, b, 0).Err(); err != nil {
		return fmt.Errorf("cache: set position: %w", err)
	}
	return c.rdb.SAdd(ctx, positionIndexKey(p.User), key).Err()
}

func positionIndexKey(user string) string { return "position-index:" + user }

func (c *PositionCache) Get(ctx context.Context, user, symbol string, exchange domain.Exchange) (*domain.Position, error) {
	b, err := c.rdb.Get(ctx, positionKey(user, symbol, exchange)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrEntityNotFound("position", positionKey(user, symbol, exchange))
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get position: %w", err)
	}
	p := &domain.Position{}
	if err := json.Unmarshal(b, p); err != nil {
		return nil, fmt.Errorf("cache: unmarshal position: %w", err)
	}
	return p, nil
}

func (c *PositionCache) Delete(ctx context.Context, user, symbol string, exchange domain.Exchange) error {
	key := positionKey(user, symbol, exchange)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: delete position: %w", err)
	}
	return c.rdb.SRem(ctx, positionIndexKey(user), key).Err()
}

func (c *PositionCache) ListByUser(ctx context.Context, user string) ([]*domain.Position, error) {
	keys, err := c.rdb.SMembers(ctx, positionIndexKey(user)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: list position keys: %w", err)
	}
	return c.getMany(ctx, keys)
}

func (c *PositionCache) ListAll(ctx context.Context) ([]*domain.Position, error) {
	keys, err := c.rdb.Keys(ctx, "position:*").Result()
	if err != nil {
		return nil, fmt.Errorf("cache: list all position keys: %w", err)
	}
	return c.getMany(ctx, keys)
}

func (c *PositionCache) getMany(ctx context.Context, keys []string) ([]*domain.Position, error) {
	out := make([]*domain.Position, 0, len(keys))
	for _, key := range keys {
		b, err := c.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cache: get position %s: %w", key, err)
		}
		p := &domain.Position{}
		if err := json.Unmarshal(b, p); err != nil {
			return nil, fmt.Errorf("cache: unmarshal position %s: %w", key, err)
		}
		out = append(out, p)
	}
	return out, nil
}
