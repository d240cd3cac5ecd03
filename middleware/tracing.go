package middleware

import (
	"context"

	"github.com/shrek82/leasedb/core"
)

// TracingMiddleware copies request_id, trace_id and user_ip from the context
// into the statement's log fields.
type TracingMiddleware struct{}

func NewTracing() *TracingMiddleware {
	return &TracingMiddleware{}
}

func (m *TracingMiddleware) Name() string {
	return "Tracing"
}

func (m *TracingMiddleware) Init(db *core.DB) error {
	return nil
}

func (m *TracingMiddleware) Shutdown() error {
	return nil
}

func (m *TracingMiddleware) Process(ctx context.Context, st *core.Statement, next core.StatementFunc) (*core.Result, error) {
	for _, key := range []core.ContextKey{core.RequestIDKey, core.TraceIDKey, core.UserIPKey} {
		if v := ctx.Value(key); v != nil {
			if st.Fields == nil {
				st.Fields = make(map[string]any)
			}
			st.Fields[string(key)] = v
		}
	}
	return next(ctx, st)
}
