package core

import (
	"context"
	"time"
)

// ContextKey is the type of context keys read by the executor and middleware.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	TraceIDKey   ContextKey = "trace_id"
	UserIPKey    ContextKey = "user_ip"

	cacheTTLKey ContextKey = "cache_ttl"
)

// CacheDefault asks cache middleware to use its own default TTL.
const CacheDefault time.Duration = -1

// WithCacheTTL marks queries run with ctx as cacheable for ttl. Pass
// CacheDefault for the middleware's default; 0 disables caching. The cache
// middlewares drop all cached results of a dialect after any successful
// execute on it, whatever context the execute carries. Writes made outside
// the DB are not seen; such results stay until ttl runs out.
func WithCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, cacheTTLKey, ttl)
}

// CacheTTL returns the TTL set by WithCacheTTL.
func CacheTTL(ctx context.Context) (time.Duration, bool) {
	ttl, ok := ctx.Value(cacheTTLKey).(time.Duration)
	if !ok || ttl == 0 {
		return 0, false
	}
	return ttl, true
}

// WithRequestID attaches a request id that tracing middleware logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithTraceID attaches a trace id that tracing middleware logs.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// WithUserIP attaches the caller's address that tracing middleware logs.
func WithUserIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, UserIPKey, ip)
}
