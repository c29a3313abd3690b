package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/fxrate/pkg/config"
	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/source"
	"github.com/redis/go-redis/v9"
)

// RedisPairCache implements source.PairCache using Redis. Quotes are stored
// as JSON under prefix+"FROM/TO" and expire through the key TTL.
type RedisPairCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisPairCache creates a RedisPairCache from the Redis settings.
func NewRedisPairCache(
	cfg *config.Redis,
	ttl time.Duration,
	logger *slog.Logger,
) (*RedisPairCache, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.WriteTimeout
	}
	return NewRedisPairCacheWithClient(redis.NewClient(opt), cfg.KeyPrefix, ttl, logger), nil
}

// NewRedisPairCacheWithClient wraps an existing client.
func NewRedisPairCacheWithClient(
	client *redis.Client,
	prefix string,
	ttl time.Duration,
	logger *slog.Logger,
) *RedisPairCache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = source.DefaultPairCacheTTL
	}
	return &RedisPairCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With("component", "pair_cache", "backend", "redis"),
	}
}

func (r *RedisPairCache) key(from, to currency.Code) string {
	return r.prefix + source.PairKey{From: from, To: to}.String()
}

func (r *RedisPairCache) Get(
	ctx context.Context,
	from, to currency.Code,
) (core.Quote, bool, error) {
	key := r.key(from, to)
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis cache miss", "key", key)
		return core.Quote{}, false, nil
	}
	if err != nil {
		r.logger.Error("Redis cache get error", "key", key, "error", err)
		return core.Quote{}, false, err
	}
	var q core.Quote
	if err := json.Unmarshal(val, &q); err != nil {
		r.logger.Error("Redis cache unmarshal error", "key", key, "error", err)
		return core.Quote{}, false, err
	}
	r.logger.Debug("Redis cache hit", "key", key)
	return q, true, nil
}

func (r *RedisPairCache) Set(
	ctx context.Context,
	from, to currency.Code,
	q core.Quote,
) error {
	key := r.key(from, to)
	data, err := json.Marshal(q)
	if err != nil {
		r.logger.Error("Redis cache marshal error", "key", key, "error", err)
		return err
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Error("Redis cache set error", "key", key, "error", err)
		return err
	}
	r.logger.Debug("Redis cache set", "key", key, "ttl", r.ttl)
	return nil
}

// Ping checks the connection.
func (r *RedisPairCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisPairCache) Close() error {
	return r.client.Close()
}

var _ source.PairCache = (*RedisPairCache)(nil)
