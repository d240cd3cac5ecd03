package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrek82/leasedb/core"
	"github.com/shrek82/leasedb/logger"
)

// RedisCacheMiddleware caches query results in Redis.
// Queries are cached when their context carries core.WithCacheTTL. A
// successful execute deletes the scope's keys; on a cluster client only the
// node answering SCAN is swept.
type RedisCacheMiddleware struct {
	Client redis.UniversalClient
	// DefaultTTL applies to core.CacheDefault; 0 stores without expiry.
	DefaultTTL time.Duration

	scope  string
	logger logger.Logger
}

func NewRedisCache(opt *redis.Options) *RedisCacheMiddleware {
	return &RedisCacheMiddleware{
		Client: redis.NewClient(opt),
	}
}

func (m *RedisCacheMiddleware) Name() string {
	return "RedisCache"
}

func (m *RedisCacheMiddleware) Init(db *core.DB) error {
	m.scope = db.Dialect().Name()
	m.logger = db.Logger()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Client.Ping(ctx).Err()
}

func (m *RedisCacheMiddleware) Shutdown() error {
	return m.Client.Close()
}

func (m *RedisCacheMiddleware) Process(ctx context.Context, st *core.Statement, next core.StatementFunc) (*core.Result, error) {
	ttl, ok := cacheTTL(ctx, st, m.DefaultTTL)
	if !ok {
		res, err := next(ctx, st)
		if invalidates(st, err) {
			m.purge(ctx)
		}
		return res, err
	}
	key := cacheKey(m.scope, st.SQL)

	data, err := m.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if res, err := core.DecodeResult(data); err == nil {
			return res, nil
		}
	case !errors.Is(err, redis.Nil):
		m.logger.Warn("redis cache get %s: %v", key, err)
	}

	res, err := next(ctx, st)
	if err != nil {
		return res, err
	}

	if data, err := core.EncodeResult(res); err == nil {
		if err := m.Client.Set(ctx, key, data, ttl).Err(); err != nil {
			m.logger.Warn("redis cache set %s: %v", key, err)
		}
	}

	return res, nil
}

func (m *RedisCacheMiddleware) purge(ctx context.Context) {
	iter := m.Client.Scan(ctx, 0, cachePrefix(m.scope)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		m.logger.Warn("redis cache scan %s: %v", m.scope, err)
	}
	if len(keys) == 0 {
		return
	}
	if err := m.Client.Del(ctx, keys...).Err(); err != nil {
		m.logger.Warn("redis cache purge %s: %v", m.scope, err)
	}
}
