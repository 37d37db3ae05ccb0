// Package cache はレポート集計結果のRedisキャッシュ。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 世代番号をキーに含めて、INCRだけで全キーを無効にする
type ReportCache struct {
	client *redis.Client
	prefix string
}

func NewReportCache(client *redis.Client, prefix string) *ReportCache {
	if prefix == "" {
		prefix = "pos:reports:"
	}
	return &ReportCache{client: client, prefix: prefix}
}

// REDIS_ADDRから接続。つながらなければエラー
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (c *ReportCache) genKey() string { return c.prefix + "gen" }

// 現在の世代。Get/Setには同じ値を渡す
func (c *ReportCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache generation error: %w", err)
	}
	return gen, nil
}

func (c *ReportCache) fullKey(gen int64, key string) string {
	return fmt.Sprintf("%sg%d:%s", c.prefix, gen, key)
}

// 見つかれば dst に入れて true
func (c *ReportCache) Get(ctx context.Context, gen int64, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, c.fullKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return true, nil
}

// 集計前に読んだ世代で書く。途中でInvalidateされていれば古い世代に入るだけ
func (c *ReportCache) Set(ctx context.Context, gen int64, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.client.Set(ctx, c.fullKey(gen, key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// 古い世代のキーはTTLで消える
func (c *ReportCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.genKey()).Err(); err != nil {
		return fmt.Errorf("cache invalidate error: %w", err)
	}
	return nil
}

func (c *ReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
