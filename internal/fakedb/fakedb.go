// Package fakedb is an in-memory database/sql driver for tests. It records
// every statement it sees and counts physical opens, closes and cursor closes
// so tests can assert on resource handling.
package fakedb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
)

// Column is a result column with its declared database type name.
type Column struct {
	Name string
	Type string
}

// Result is what a query handler returns.
type Result struct {
	Columns []Column
	Rows    [][]driver.Value
}

// QueryFunc answers a query.
type QueryFunc func(query string) (*Result, error)

// ExecFunc answers a statement that returns no rows.
type ExecFunc func(query string) (driver.Result, error)

// Connector is a driver.Connector backed by handler funcs.
type Connector struct {
	Query QueryFunc
	Exec  ExecFunc

	mu         sync.Mutex
	connectErr error
	pingErr    error
	opens      int
	closes     int
	rowsClosed int
	statements []string
}

// New returns a connector with the given handlers. Either may be nil.
func New(q QueryFunc, e ExecFunc) *Connector {
	return &Connector{Query: q, Exec: e}
}

// DB opens a *sql.DB on c.
func (c *Connector) DB() *sql.DB {
	return sql.OpenDB(c)
}

// Connect implements driver.Connector.
func (c *Connector) Connect(context.Context) (driver.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	c.opens++
	return &conn{c: c}, nil
}

// Driver implements driver.Connector.
func (c *Connector) Driver() driver.Driver { return fakeDriver{} }

// SetConnectErr makes future connects fail with err (nil restores them).
func (c *Connector) SetConnectErr(err error) {
	c.mu.Lock()
	c.connectErr = err
	c.mu.Unlock()
}

// SetPingErr makes pings on every connection fail with err (nil restores them).
func (c *Connector) SetPingErr(err error) {
	c.mu.Lock()
	c.pingErr = err
	c.mu.Unlock()
}

// Opens returns the number of physical connections opened.
func (c *Connector) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// Closes returns the number of physical connections closed.
func (c *Connector) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// RowsClosed returns the number of cursors closed.
func (c *Connector) RowsClosed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rowsClosed
}

// Statements returns every query and exec seen, in order.
func (c *Connector) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.statements...)
}

func (c *Connector) record(query string) {
	c.mu.Lock()
	c.statements = append(c.statements, query)
	c.mu.Unlock()
}

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("fakedb: use sql.OpenDB with a Connector")
}

type conn struct {
	c      *Connector
	closed bool
}

func (cn *conn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("fakedb: prepared statements not supported")
}

func (cn *conn) Begin() (driver.Tx, error) {
	return nil, errors.New("fakedb: transactions not supported")
}

func (cn *conn) Close() error {
	if cn.closed {
		return nil
	}
	cn.closed = true
	cn.c.mu.Lock()
	cn.c.closes++
	cn.c.mu.Unlock()
	return nil
}

func (cn *conn) Ping(context.Context) error {
	cn.c.mu.Lock()
	defer cn.c.mu.Unlock()
	return cn.c.pingErr
}

func (cn *conn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	cn.c.record(query)
	if cn.c.Query == nil {
		return nil, errors.New("fakedb: no query handler")
	}
	res, err := cn.c.Query(query)
	if err != nil {
		return nil, err
	}
	return &rows{c: cn.c, res: res}, nil
}

func (cn *conn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	cn.c.record(query)
	if cn.c.Exec == nil {
		return driver.ResultNoRows, nil
	}
	return cn.c.Exec(query)
}

type rows struct {
	c      *Connector
	res    *Result
	i      int
	closed bool
}

func (r *rows) Columns() []string {
	names := make([]string, len(r.res.Columns))
	for i, col := range r.res.Columns {
		names[i] = col.Name
	}
	return names
}

func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.res.Columns[index].Type
}

func (r *rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.c.mu.Lock()
	r.c.rowsClosed++
	r.c.mu.Unlock()
	return nil
}

func (r *rows) Next(dest []driver.Value) error {
	if r.i >= len(r.res.Rows) {
		return io.EOF
	}
	row := r.res.Rows[r.i]
	for i := range dest {
		if i < len(row) {
			dest[i] = row[i]
		} else {
			dest[i] = nil
		}
	}
	r.i++
	return nil
}

// Affected is an ExecFunc result reporting n affected rows.
func Affected(n int64) driver.Result {
	return driver.RowsAffected(n)
}
