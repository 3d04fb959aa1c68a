// Package cache keeps the last good catalog target list in Redis so a cycle
// can still run when the catalog database is unreachable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scrapemonitor/packages/domain"

	"github.com/redis/go-redis/v9"
)

// TargetSource is the uncached catalog.
type TargetSource interface {
	ListTargets(ctx context.Context) ([]domain.Target, error)
}

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Config names the snapshot key. TTL bounds how old a snapshot may be when it
// is served in place of the catalog.
type Config struct {
	Key string
	TTL time.Duration
}

// CachedCatalog always reads the underlying source and snapshots each good
// result. The snapshot is served only when the source fails.
type CachedCatalog struct {
	source TargetSource
	rdb    redisClient
	cfg    Config
}

func New(source TargetSource, rdb redisClient, cfg Config) *CachedCatalog {
	return &CachedCatalog{source: source, rdb: rdb, cfg: cfg}
}

// NewRedisClient connects and pings. The caller owns Close.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("unable to ping redis at %s: %w", addr, err)
	}
	slog.Info("Redis connected", "addr", addr, "db", db)
	return rdb, nil
}

func (c *CachedCatalog) ListTargets(ctx context.Context) ([]domain.Target, error) {
	targets, err := c.source.ListTargets(ctx)
	if err == nil {
		c.store(ctx, targets)
		return targets, nil
	}

	cached, ok := c.load(ctx)
	if !ok {
		return nil, err
	}
	slog.Warn("Catalog unavailable, serving last snapshot", "key", c.cfg.Key, "count", len(cached), "error", err)
	c.Reset()
	return cached, nil
}

func (c *CachedCatalog) store(ctx context.Context, targets []domain.Target) {
	payload, err := json.Marshal(targets)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.cfg.Key, payload, c.cfg.TTL).Err(); err != nil {
		slog.Warn("Catalog snapshot write failed", "key", c.cfg.Key, "error", err)
	}
}

func (c *CachedCatalog) load(ctx context.Context) ([]domain.Target, bool) {
	cached, err := c.rdb.Get(ctx, c.cfg.Key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		slog.Debug("No catalog snapshot", "key", c.cfg.Key)
		return nil, false
	case err != nil:
		slog.Warn("Catalog snapshot read failed", "key", c.cfg.Key, "error", err)
		return nil, false
	}

	var targets []domain.Target
	if err := json.Unmarshal(cached, &targets); err != nil {
		slog.Warn("Discarding corrupt catalog snapshot", "key", c.cfg.Key, "error", err)
		return nil, false
	}
	return targets, true
}

// Reset resets the underlying source when it supports it. The snapshot is kept.
func (c *CachedCatalog) Reset() {
	if r, ok := c.source.(interface{ Reset() }); ok {
		r.Reset()
	}
}
