package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shrek82/leasedb/core"
)

// MemoryCacheMiddleware caches query results in memory.
// Queries are cached when their context carries core.WithCacheTTL. A
// successful execute drops every cached result of the scope.
type MemoryCacheMiddleware struct {
	items      map[string]memoryCacheEntry
	mu         sync.RWMutex
	stopClean  chan struct{}
	stopOnce   sync.Once
	DefaultTTL time.Duration
	scope      string
}

type memoryCacheEntry struct {
	SQL       string
	Data      []byte
	ExpiresAt time.Time
}

func NewMemoryCache(defaultTTL ...time.Duration) *MemoryCacheMiddleware {
	ttl := 5 * time.Minute
	if len(defaultTTL) > 0 {
		ttl = defaultTTL[0]
	}
	return &MemoryCacheMiddleware{
		items:      make(map[string]memoryCacheEntry),
		stopClean:  make(chan struct{}),
		DefaultTTL: ttl,
	}
}

func (m *MemoryCacheMiddleware) Name() string {
	return "MemoryCache"
}

func (m *MemoryCacheMiddleware) Init(db *core.DB) error {
	m.scope = db.Dialect().Name()
	go m.cleanupLoop()
	return nil
}

func (m *MemoryCacheMiddleware) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopClean:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *MemoryCacheMiddleware) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for k, v := range m.items {
		if !v.ExpiresAt.IsZero() && now.After(v.ExpiresAt) {
			delete(m.items, k)
		}
	}
}

func (m *MemoryCacheMiddleware) Shutdown() error {
	m.stopOnce.Do(func() { close(m.stopClean) })
	return nil
}

func (m *MemoryCacheMiddleware) purge() {
	prefix := cachePrefix(m.scope)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
}

// Len returns the number of cached results, expired ones included.
func (m *MemoryCacheMiddleware) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCacheMiddleware) Process(ctx context.Context, st *core.Statement, next core.StatementFunc) (*core.Result, error) {
	ttl, ok := cacheTTL(ctx, st, m.DefaultTTL)
	if !ok {
		res, err := next(ctx, st)
		if invalidates(st, err) {
			m.purge()
		}
		return res, err
	}
	key := cacheKey(m.scope, st.SQL)

	m.mu.RLock()
	entry, found := m.items[key]
	m.mu.RUnlock()

	if found && entry.SQL == st.SQL {
		if entry.ExpiresAt.IsZero() || time.Now().Before(entry.ExpiresAt) {
			if res, err := core.DecodeResult(entry.Data); err == nil {
				return res, nil
			}
		} else {
			m.mu.Lock()
			delete(m.items, key)
			m.mu.Unlock()
		}
	}

	res, err := next(ctx, st)
	if err != nil {
		return res, err
	}

	if data, err := core.EncodeResult(res); err == nil {
		var expires time.Time
		if ttl > 0 {
			expires = time.Now().Add(ttl)
		}
		m.mu.Lock()
		m.items[key] = memoryCacheEntry{SQL: st.SQL, Data: data, ExpiresAt: expires}
		m.mu.Unlock()
	}

	return res, nil
}
