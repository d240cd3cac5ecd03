package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/shrek82/leasedb/core"
)

// cacheTTL reports whether st should be cached and for how long. Only queries
// run with core.WithCacheTTL are cached; core.CacheDefault selects def.
func cacheTTL(ctx context.Context, st *core.Statement, def time.Duration) (time.Duration, bool) {
	if st.Kind != core.StatementQuery {
		return 0, false
	}
	ttl, ok := core.CacheTTL(ctx)
	if !ok {
		return 0, false
	}
	if ttl < 0 {
		ttl = def
	}
	return ttl, true
}

// invalidates reports whether st finished as a successful write. The cache
// drops every result of its scope after one.
func invalidates(st *core.Statement, err error) bool {
	return st.Kind == core.StatementExecute && err == nil
}

// cachePrefix is shared by every key of scope. scope keeps targets of
// different dialects apart.
func cachePrefix(scope string) string {
	return "leasedb:cache:" + scope + ":"
}

// cacheKey names a cached result.
func cacheKey(scope, sql string) string {
	return fmt.Sprintf("%s%016x", cachePrefix(scope), xxhash.Sum64String(sql))
}
