// Package leasedb leases connections from a bounded pool and runs plain SQL
// on them, decoding rows by declared column type.
//
//	db, err := leasedb.Open(leasedb.Target{URL: "localhost/hello_world", Driver: "mysql", User: "u", Password: "p"}, nil)
//	err = db.WithConn(ctx, func(conn *leasedb.Conn) error {
//		res, err := db.Query(ctx, conn, "SELECT * FROM World WHERE id=2")
//		...
//	})
package leasedb

import (
	"github.com/shrek82/leasedb/core"
	"github.com/shrek82/leasedb/dialect"
	"github.com/shrek82/leasedb/pool"
)

// Re-export core types and functions
type DB = core.DB
type Options = core.Options
type Source = core.Source
type Result = core.Result
type Row = core.Row
type Column = core.Column
type Kind = core.Kind
type Statement = core.Statement
type Middleware = core.Middleware
type DecodeError = core.DecodeError

type Target = dialect.Target
type Conn = pool.Conn
type Stats = pool.Stats

var (
	Open         = core.Open
	New          = core.New
	WithCacheTTL = core.WithCacheTTL
	EncodeResult = core.EncodeResult
	DecodeResult = core.DecodeResult
)

const (
	KindNull   = core.KindNull
	KindBool   = core.KindBool
	KindInt    = core.KindInt
	KindFloat  = core.KindFloat
	KindString = core.KindString
	KindTime   = core.KindTime
)

// Errors
var (
	ErrConnectFailed  = pool.ErrConnectFailed
	ErrPoolExhausted  = pool.ErrPoolExhausted
	ErrDoubleRelease  = pool.ErrDoubleRelease
	ErrForeignRelease = pool.ErrForeignRelease
	ErrPoolClosed     = pool.ErrPoolClosed
	ErrLeaseReleased  = pool.ErrLeaseReleased
	ErrQueryFailed    = core.ErrQueryFailed
	ErrExecuteFailed  = core.ErrExecuteFailed
	ErrDecodeFailed   = core.ErrDecodeFailed
	ErrInvalidSQL     = core.ErrInvalidSQL
	ErrUnknownDialect = dialect.ErrUnknownDialect
)
