package reports

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheVersionKey = "reports:version"
	bumpChannel     = "ledger.bump"
)

// Cache stores rendered report payloads in Redis under a global version that
// is bumped whenever the ledger changes.
type Cache struct {
	client      *redis.Client
	ttl         time.Duration
	loadTimeout time.Duration
	group       singleflight.Group
}

const defaultLoadTimeout = 30 * time.Second

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, loadTimeout: defaultLoadTimeout}
}

// WithLoadTimeout bounds a shared miss. The load is detached from the caller
// that started it, so this is its only deadline.
func (c *Cache) WithLoadTimeout(d time.Duration) *Cache {
	if d > 0 {
		c.loadTimeout = d
	}
	return c
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"reports"}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// Fetch returns the payload stored under key, calling loader and storing its
// result on a miss. Concurrent misses on one key share a single loader call
// that outlives any one caller; each caller only waits on its own ctx.
// The bool reports a cache hit.
func (c *Cache) Fetch(ctx context.Context, key string, loader func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if loader == nil {
		return nil, false, errors.New("reports: cache loader required")
	}
	if c == nil || c.client == nil {
		raw, err := loader(ctx)
		return raw, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return payload, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, false, err
	}
	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		timeout := c.loadTimeout
		if timeout <= 0 {
			timeout = defaultLoadTimeout
		}
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		raw, err := loader(lctx)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(lctx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, queryError("report request cancelled", ctx.Err())
	case res := <-resultChan:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	}
}

// Bump invalidates the cache by incrementing the global version and publishing an event.
func (c *Cache) Bump(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return 0, err
	}
	return ver, c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// Invalidate bumps the version, dropping the result. It fits
// accounting.CommitHook so ledger writers can expire cached reports.
func (c *Cache) Invalidate(ctx context.Context) error {
	_, err := c.Bump(ctx)
	return err
}

// ListenForInvalidation subscribes to version bump notifications published by
// other instances sharing the channel.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = bumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
					current, _ := c.client.Get(ctx, cacheVersionKey).Int64()
					if ver > current {
						_ = c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
					}
					continue
				}
				_ = c.client.Incr(ctx, cacheVersionKey).Err()
			}
		}
	}()
	return nil
}
