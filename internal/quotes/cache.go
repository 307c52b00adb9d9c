package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cache is the minimal key/value contract the quote cache needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache implements Cache over a Redis client.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr string) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// cachedQuote is the serialized form stored in the cache.
type cachedQuote struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Price  string `json:"price"`
}

// CachedService decorates a Service with a short-lived quote cache.
// Only successful lookups are cached; not-found and provider errors always
// go back to the underlying service.
type CachedService struct {
	next   Service
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

var _ Service = (*CachedService)(nil)

// NewCachedService wraps next with the given cache.
func NewCachedService(next Service, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedService {
	return &CachedService{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (s *CachedService) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	key := fmt.Sprintf("quote:%s", symbol)

	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		// A broken cache must not take quoting down with it.
		s.logger.Warn("Quote cache read failed", zap.String("symbol", symbol), zap.Error(err))
	} else if ok {
		var cq cachedQuote
		if err := json.Unmarshal([]byte(raw), &cq); err == nil {
			if price, err := decimal.NewFromString(cq.Price); err == nil {
				return &Quote{Symbol: cq.Symbol, Name: cq.Name, Price: price}, nil
			}
		}
		s.logger.Warn("Discarding malformed cached quote", zap.String("symbol", symbol))
	}

	quote, err := s.next.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(cachedQuote{Symbol: quote.Symbol, Name: quote.Name, Price: quote.Price.String()})
	if err == nil {
		if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
			s.logger.Warn("Quote cache write failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	return quote, nil
}
