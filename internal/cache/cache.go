// Package cache содержит версионируемый кэш представления списка счетов в Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionKey = "invoices:list:version"
	listKey    = "invoices:list"
)

// ListCache кэширует список счетов. Инвалидация выполняется увеличением версии,
// поэтому устаревшие ключи просто истекают по TTL.
type ListCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListCache создаёт кэш списка. При client == nil кэш отключён и всегда вызывает loader.
func NewListCache(client *redis.Client, ttl time.Duration) *ListCache {
	return &ListCache{client: client, ttl: ttl}
}

func (c *ListCache) enabled() bool {
	return c != nil && c.client != nil
}

// Version возвращает текущую версию списка, инициализируя её при отсутствии.
func (c *ListCache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}

	ver, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, fmt.Errorf("init version: %w", err)
		}
		return c.client.Get(ctx, versionKey).Int64()
	}
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}

	return ver, nil
}

// Fetch загружает значение из кэша или заполняет его результатом loader.
func (c *ListCache) Fetch(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}

	if !c.enabled() {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}

	ver, err := c.Version(ctx)
	if err != nil {
		return err
	}
	key := listKey + ":" + strconv.FormatInt(ver, 10)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get list: %w", err)
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal list: %w", err)
	}

	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set list: %w", err)
	}

	return json.Unmarshal(raw, dest)
}

// Invalidate делает закэшированный список устаревшим.
func (c *ListCache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}

	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	return nil
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
