package core

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shrek82/leasedb/dialect"
	"github.com/shrek82/leasedb/logger"
	"github.com/shrek82/leasedb/pool"
)

// Executor runs plain SQL text on a leased connection and decodes the rows.
// It holds no connection state of its own and is safe for concurrent use.
type Executor struct {
	dialect dialect.Dialect
	logger  logger.Logger
}

// NewExecutor returns an Executor for connections speaking d.
func NewExecutor(d dialect.Dialect, l logger.Logger) *Executor {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Executor{dialect: d, logger: l}
}

// Run dispatches st to Query or Execute according to its kind.
func (e *Executor) Run(ctx context.Context, st *Statement) (*Result, error) {
	log := e.logger
	if len(st.Fields) > 0 {
		log = log.WithFields(st.Fields)
	}
	if st.Kind == StatementExecute {
		start := time.Now()
		n, err := e.execute(ctx, log, st.Conn, st.SQL)
		if err != nil {
			return nil, err
		}
		return &Result{RowsAffected: n, Duration: time.Since(start)}, nil
	}
	return e.query(ctx, log, st.Conn, st.SQL)
}

// Query switches the session to read-only, runs sql and decodes every row.
// The cursor is closed on every path.
func (e *Executor) Query(ctx context.Context, conn *pool.Conn, sql string) (*Result, error) {
	return e.query(ctx, e.logger, conn, sql)
}

// Execute switches the session to read-write, runs sql and returns the
// affected-row count, 0 when the driver reports none.
func (e *Executor) Execute(ctx context.Context, conn *pool.Conn, sql string) (int64, error) {
	return e.execute(ctx, e.logger, conn, sql)
}

func (e *Executor) query(ctx context.Context, log logger.Logger, conn *pool.Conn, sql string) (res *Result, err error) {
	if conn == nil {
		return nil, ErrNoConnection
	}
	if strings.TrimSpace(sql) == "" {
		return nil, ErrInvalidSQL
	}
	if err := e.setReadOnly(ctx, log, conn, true); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	start := time.Now()
	rows, err := conn.QueryContext(ctx, sql)
	log.SQL(sql, time.Since(start))
	if err != nil {
		markBad(conn, err)
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("closing cursor for lease %s: %v", conn.ID(), cerr)
		}
	}()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	cols := make([]Column, len(types))
	decs := make([]decoder, len(types))
	for i, ct := range types {
		name := ct.DatabaseTypeName()
		cols[i] = Column{Label: ct.Name(), TypeName: name, Code: dialect.TypeCodeOf(name)}
		decs[i] = decoderFor(cols[i].Code)
	}

	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}

	res = &Result{Columns: cols}
	for n := 0; rows.Next(); n++ {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}
		row := NewRow(len(cols))
		for i, col := range cols {
			v, err := decodeValue(decs[i], raw[i])
			if err != nil {
				return nil, &DecodeError{Row: n, Column: col.Label, TypeName: col.TypeName, Cause: err}
			}
			row.Set(col.Label, v)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		markBad(conn, err)
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (e *Executor) execute(ctx context.Context, log logger.Logger, conn *pool.Conn, sql string) (int64, error) {
	if conn == nil {
		return 0, ErrNoConnection
	}
	if strings.TrimSpace(sql) == "" {
		return 0, ErrInvalidSQL
	}
	if err := e.setReadOnly(ctx, log, conn, false); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecuteFailed, err)
	}

	start := time.Now()
	r, err := conn.ExecContext(ctx, sql)
	log.SQL(sql, time.Since(start))
	if err != nil {
		markBad(conn, err)
		return 0, fmt.Errorf("%w: %w", ErrExecuteFailed, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// setReadOnly sends the dialect's session statement unless the connection is
// already known to be in the wanted mode.
func (e *Executor) setReadOnly(ctx context.Context, log logger.Logger, conn *pool.Conn, readOnly bool) error {
	stmt := e.dialect.ReadOnlySQL(readOnly)
	if stmt == "" {
		return nil
	}
	if cur, known := conn.ReadOnly(); known && cur == readOnly {
		return nil
	}
	start := time.Now()
	_, err := conn.ExecContext(ctx, stmt)
	log.SQL(stmt, time.Since(start))
	if err != nil {
		markBad(conn, err)
		return err
	}
	conn.SetReadOnly(readOnly)
	return nil
}

func markBad(conn *pool.Conn, err error) {
	if errors.Is(err, driver.ErrBadConn) {
		conn.MarkBroken()
	}
}
