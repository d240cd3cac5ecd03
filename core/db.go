package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/shrek82/leasedb/dialect"
	"github.com/shrek82/leasedb/logger"
	"github.com/shrek82/leasedb/pool"
)

// Options defines the configuration for the DB connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	WaitTimeout     time.Duration
	TestOnBorrow    bool
	// VerifyOnOpen pings the target once in Open so a bad URL or credentials
	// surface immediately instead of on the first Acquire.
	VerifyOnOpen bool
	Logger       logger.Logger
}

func (o *Options) poolOptions() pool.Options {
	if o == nil {
		return pool.Options{}
	}
	return pool.Options{
		MaxOpenConns:    o.MaxOpenConns,
		MaxIdleConns:    o.MaxIdleConns,
		ConnMaxLifetime: o.ConnMaxLifetime,
		WaitTimeout:     o.WaitTimeout,
		TestOnBorrow:    o.TestOnBorrow,
	}
}

// DB ties a connection pool to the executor for its dialect and runs every
// statement through the registered middleware.
type DB struct {
	pool    *pool.Pool
	dialect dialect.Dialect
	logger  logger.Logger
	exec    *Executor

	mu          sync.RWMutex
	middlewares []Middleware
	run         StatementFunc
}

// Open resolves t to a driver and DSN and builds a DB on it. Physical
// connections are opened lazily unless opts.VerifyOnOpen is set.
func Open(t dialect.Target, opts *Options) (*DB, error) {
	r, err := dialect.Resolve(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pool.ErrConnectFailed, err)
	}

	sqlDB, err := sql.Open(r.DriverName, r.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pool.ErrConnectFailed, err)
	}

	db := New(sqlDB, r.Dialect, opts)
	db.logger.Info("opened %s target %s", r.Dialect.Name(), t)

	if opts != nil && opts.VerifyOnOpen {
		if err := db.Ping(context.Background()); err != nil {
			_ = db.pool.Close()
			return nil, err
		}
	}
	return db, nil
}

// New builds a DB over an existing *sql.DB, which the DB then owns.
func New(sqlDB *sql.DB, d dialect.Dialect, opts *Options) *DB {
	var l logger.Logger
	if opts != nil {
		l = opts.Logger
	}
	if l == nil {
		l = logger.NewStdLogger()
	}

	db := &DB{
		pool:    pool.New(sqlDB, opts.poolOptions(), l),
		dialect: d,
		logger:  l,
		exec:    NewExecutor(d, l),
	}
	db.run = db.exec.Run
	return db
}

// Dialect returns the dialect statements are run with.
func (db *DB) Dialect() dialect.Dialect { return db.dialect }

// Logger returns the DB logger.
func (db *DB) Logger() logger.Logger { return db.logger }

// Executor returns the executor behind Query and Execute. Statements run on
// it directly skip the middleware chain.
func (db *DB) Executor() *Executor { return db.exec }

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pool.Pool { return db.pool }

// Use initializes mws and appends them to the chain. Middlewares run in the
// order they were added.
func (db *DB) Use(mws ...Middleware) error {
	for _, mw := range mws {
		if err := mw.Init(db); err != nil {
			return fmt.Errorf("init middleware %s: %w", mw.Name(), err)
		}
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.middlewares = append(db.middlewares, mws...)
	db.run = chain(db.middlewares, db.exec.Run)
	return nil
}

// Acquire leases a connection from the pool.
func (db *DB) Acquire(ctx context.Context) (*pool.Conn, error) {
	return db.pool.Acquire(ctx)
}

// Release returns a lease to the pool.
func (db *DB) Release(conn *pool.Conn) error {
	return db.pool.Release(conn)
}

// WithConn leases a connection for the duration of fn and releases it on
// every exit path. A panic inside fn marks the connection broken before the
// panic continues. A lease fn already gave back is logged, not released twice.
func (db *DB) WithConn(ctx context.Context, fn func(conn *pool.Conn) error) (err error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		p := recover()
		if conn.Released() {
			db.logger.WithFields(map[string]any{"lease": conn.ID()}).
				Warn("lease released inside WithConn after %v", time.Since(conn.AcquiredAt()))
		} else {
			if p != nil {
				conn.MarkBroken()
			}
			rerr := db.pool.Release(conn)
			switch {
			case rerr == nil:
			case p != nil:
				db.logger.Warn("release after panic: %v", rerr)
			case err == nil:
				err = rerr
			}
		}
		if p != nil {
			panic(p)
		}
	}()

	return fn(conn)
}

// Query runs sql on conn in read-only mode and returns the decoded rows.
func (db *DB) Query(ctx context.Context, conn *pool.Conn, sql string) (*Result, error) {
	return db.dispatch(ctx, StatementQuery, conn, sql)
}

// Execute runs sql on conn in read-write mode and returns the affected-row count.
func (db *DB) Execute(ctx context.Context, conn *pool.Conn, sql string) (int64, error) {
	res, err := db.dispatch(ctx, StatementExecute, conn, sql)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// Select leases a connection, runs a query on it and releases it.
func (db *DB) Select(ctx context.Context, sql string) (res *Result, err error) {
	err = db.WithConn(ctx, func(conn *pool.Conn) error {
		res, err = db.Query(ctx, conn, sql)
		return err
	})
	return res, err
}

// Exec leases a connection, executes sql on it and releases it.
func (db *DB) Exec(ctx context.Context, sql string) (n int64, err error) {
	err = db.WithConn(ctx, func(conn *pool.Conn) error {
		n, err = db.Execute(ctx, conn, sql)
		return err
	})
	return n, err
}

func (db *DB) dispatch(ctx context.Context, kind StatementKind, conn *pool.Conn, sql string) (*Result, error) {
	if conn == nil {
		return nil, ErrNoConnection
	}
	st := &Statement{
		Kind:   kind,
		SQL:    sql,
		Conn:   conn,
		Fields: map[string]any{"lease": conn.ID()},
	}

	db.mu.RLock()
	run := db.run
	db.mu.RUnlock()
	return run(ctx, st)
}

// Ping checks that a connection can be leased and answers.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Stats returns pool counters.
func (db *DB) Stats() pool.Stats {
	return db.pool.Stats()
}

// Close shuts middleware down in reverse order, then closes the pool.
func (db *DB) Close() error {
	db.mu.Lock()
	mws := db.middlewares
	db.middlewares = nil
	db.run = db.exec.Run
	db.mu.Unlock()

	for i := len(mws) - 1; i >= 0; i-- {
		if err := mws[i].Shutdown(); err != nil {
			db.logger.Warn("shutdown middleware %s: %v", mws[i].Name(), err)
		}
	}
	return db.pool.Close()
}
