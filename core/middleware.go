package core

import (
	"context"

	"github.com/shrek82/leasedb/pool"
)

// Component is the base interface for everything plugged into a DB.
type Component interface {
	Name() string
	Init(db *DB) error
	Shutdown() error
}

// StatementKind tells queries from executes.
type StatementKind int

const (
	StatementQuery StatementKind = iota
	StatementExecute
)

func (k StatementKind) String() string {
	if k == StatementExecute {
		return "execute"
	}
	return "query"
}

// Statement is one SQL text on its way to a leased connection.
type Statement struct {
	Kind StatementKind
	SQL  string
	Conn *pool.Conn
	// Fields are attached to every log line the statement produces.
	Fields map[string]any
}

// StatementFunc is the next step in the middleware chain.
type StatementFunc func(ctx context.Context, st *Statement) (*Result, error)

// Middleware intercepts statements before they reach the executor.
type Middleware interface {
	Component
	Process(ctx context.Context, st *Statement, next StatementFunc) (*Result, error)
}

// chain wraps final with mws so that mws[0] runs first.
func chain(mws []Middleware, final StatementFunc) StatementFunc {
	next := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context, st *Statement) (*Result, error) {
			return mw.Process(ctx, st, inner)
		}
	}
	return next
}
