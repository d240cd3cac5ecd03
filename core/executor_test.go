package core

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/shrek82/leasedb/dialect"
	"github.com/shrek82/leasedb/internal/fakedb"
	"github.com/shrek82/leasedb/logger"
	"github.com/shrek82/leasedb/pool"
)

func newTestDB(t *testing.T, q fakedb.QueryFunc, e fakedb.ExecFunc) (*DB, *fakedb.Connector) {
	t.Helper()
	d, ok := dialect.Get("mysql")
	if !ok {
		t.Fatal("mysql dialect not registered")
	}
	c := fakedb.New(q, e)
	db := New(c.DB(), d, &Options{MaxOpenConns: 2, Logger: logger.NewNopLogger()})
	t.Cleanup(func() { _ = db.Close() })
	return db, c
}

func acquire(t *testing.T, db *DB) *pool.Conn {
	t.Helper()
	conn, err := db.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Release(conn) })
	return conn
}

// worldTable answers queries on World(id INTEGER, value VARCHAR) holding (2, "hello").
func worldTable(query string) (*fakedb.Result, error) {
	if !strings.HasPrefix(query, "SELECT") {
		return nil, fmt.Errorf("unexpected query %q", query)
	}
	return &fakedb.Result{
		Columns: []fakedb.Column{{Name: "id", Type: "INTEGER"}, {Name: "value", Type: "VARCHAR"}},
		Rows:    [][]driver.Value{{int64(2), []byte("hello")}},
	}, nil
}

func TestWorldExample(t *testing.T) {
	db, _ := newTestDB(t, worldTable, func(query string) (driver.Result, error) {
		if strings.HasPrefix(query, "UPDATE World") {
			return fakedb.Affected(1), nil
		}
		return driver.ResultNoRows, nil
	})
	ctx := context.Background()
	conn := acquire(t, db)

	res, err := db.Query(ctx, conn, "SELECT * FROM World WHERE id=2")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	row := res.Rows[0]
	if id, _ := row.Get("id"); id != int64(2) {
		t.Errorf("id = %v (%T), want int64 2", id, id)
	}
	if v, _ := row.Get("value"); v != "hello" {
		t.Errorf("value = %v (%T), want \"hello\"", v, v)
	}

	n, err := db.Execute(ctx, conn, "UPDATE World SET value='x' WHERE id=2")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if n != 1 {
		t.Errorf("affected = %d, want 1", n)
	}
}

func TestRowShape(t *testing.T) {
	const m, k = 4, 7
	db, _ := newTestDB(t, func(string) (*fakedb.Result, error) {
		res := &fakedb.Result{}
		for i := 0; i < m; i++ {
			res.Columns = append(res.Columns, fakedb.Column{Name: fmt.Sprintf("c%d", i), Type: "INT"})
		}
		for j := 0; j < k; j++ {
			row := make([]driver.Value, m)
			for i := range row {
				row[i] = int64(i * j)
			}
			res.Rows = append(res.Rows, row)
		}
		return res, nil
	}, nil)

	res, err := db.Query(context.Background(), acquire(t, db), "SELECT shape")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(res.Rows) != k {
		t.Fatalf("got %d rows, want %d", len(res.Rows), k)
	}
	want := []string{"c0", "c1", "c2", "c3"}
	for j, row := range res.Rows {
		if got := row.Columns(); !reflect.DeepEqual(got, want) {
			t.Errorf("row %d columns = %v, want %v", j, got, want)
		}
	}
	if len(res.Columns) != m || res.Columns[0].Kind() != KindInt {
		t.Errorf("unexpected column descriptors %+v", res.Columns)
	}
}

func TestCursorClosedOnDecodeFailure(t *testing.T) {
	db, c := newTestDB(t, func(string) (*fakedb.Result, error) {
		res := &fakedb.Result{Columns: []fakedb.Column{{Name: "n", Type: "BIGINT"}}}
		for i := 0; i < 10; i++ {
			v := driver.Value(int64(i))
			if i == 2 {
				v = []byte("not a number")
			}
			res.Rows = append(res.Rows, []driver.Value{v})
		}
		return res, nil
	}, nil)

	_, err := db.Query(context.Background(), acquire(t, db), "SELECT n FROM ten")
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Row != 2 || de.Column != "n" || de.TypeName != "BIGINT" {
		t.Errorf("unexpected decode error %+v", de)
	}
	if got := c.RowsClosed(); got != 1 {
		t.Errorf("cursor closed %d times, want 1", got)
	}
}

func TestQueryFailed(t *testing.T) {
	driverErr := errors.New("syntax error near FROM")
	db, c := newTestDB(t, func(string) (*fakedb.Result, error) { return nil, driverErr }, nil)

	_, err := db.Query(context.Background(), acquire(t, db), "SELECT FROM")
	if !errors.Is(err, ErrQueryFailed) || !errors.Is(err, driverErr) {
		t.Fatalf("expected ErrQueryFailed wrapping the driver error, got %v", err)
	}
	if c.RowsClosed() != 0 {
		t.Error("no cursor should have been opened")
	}
}

func TestExecuteFailed(t *testing.T) {
	driverErr := errors.New("table is locked")
	db, _ := newTestDB(t, nil, func(query string) (driver.Result, error) {
		if strings.HasPrefix(query, "SET SESSION") {
			return driver.ResultNoRows, nil
		}
		return nil, driverErr
	})

	_, err := db.Execute(context.Background(), acquire(t, db), "DELETE FROM t")
	if !errors.Is(err, ErrExecuteFailed) || !errors.Is(err, driverErr) {
		t.Fatalf("expected ErrExecuteFailed wrapping the driver error, got %v", err)
	}
}

func TestExecuteWithoutAffectedRows(t *testing.T) {
	db, _ := newTestDB(t, nil, nil)
	n, err := db.Execute(context.Background(), acquire(t, db), "CREATE TABLE t (id INT)")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if n != 0 {
		t.Errorf("affected = %d, want 0", n)
	}
}

func TestEmptySQL(t *testing.T) {
	db, c := newTestDB(t, worldTable, nil)
	conn := acquire(t, db)
	if _, err := db.Query(context.Background(), conn, "  "); !errors.Is(err, ErrInvalidSQL) {
		t.Errorf("expected ErrInvalidSQL, got %v", err)
	}
	if _, err := db.Execute(context.Background(), conn, ""); !errors.Is(err, ErrInvalidSQL) {
		t.Errorf("expected ErrInvalidSQL, got %v", err)
	}
	if _, err := db.Query(context.Background(), nil, "SELECT 1"); !errors.Is(err, ErrNoConnection) {
		t.Errorf("expected ErrNoConnection, got %v", err)
	}
	if len(c.Statements()) != 0 {
		t.Errorf("nothing should reach the driver, saw %v", c.Statements())
	}
}

func TestReadOnlyModeCached(t *testing.T) {
	db, c := newTestDB(t, worldTable, nil)
	ctx := context.Background()
	conn := acquire(t, db)

	steps := []func() error{
		func() error { _, err := db.Query(ctx, conn, "SELECT 1"); return err },
		func() error { _, err := db.Query(ctx, conn, "SELECT 2"); return err },
		func() error { _, err := db.Execute(ctx, conn, "UPDATE t SET a=1"); return err },
		func() error { _, err := db.Query(ctx, conn, "SELECT 3"); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	want := []string{
		"SET SESSION TRANSACTION READ ONLY",
		"SELECT 1",
		"SELECT 2",
		"SET SESSION TRANSACTION READ WRITE",
		"UPDATE t SET a=1",
		"SET SESSION TRANSACTION READ ONLY",
		"SELECT 3",
	}
	if got := c.Statements(); !reflect.DeepEqual(got, want) {
		t.Errorf("statements =\n%v\nwant\n%v", got, want)
	}
	if ro, known := conn.ReadOnly(); !known || !ro {
		t.Error("connection should be known read-only")
	}
}

func TestReadOnlyModeSurvivesReuse(t *testing.T) {
	db, c := newTestDB(t, worldTable, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := db.Select(ctx, "SELECT 1"); err != nil {
			t.Fatalf("select %d failed: %v", i, err)
		}
	}
	mode := 0
	for _, s := range c.Statements() {
		if strings.HasPrefix(s, "SET SESSION") {
			mode++
		}
	}
	if mode != 1 {
		t.Errorf("mode statement sent %d times on one physical connection, want 1", mode)
	}
}

func TestBadConnectionMarkedBroken(t *testing.T) {
	db, c := newTestDB(t, func(string) (*fakedb.Result, error) { return nil, driver.ErrBadConn }, nil)
	ctx := context.Background()

	conn, err := db.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if _, err := db.Query(ctx, conn, "SELECT 1"); !errors.Is(err, ErrQueryFailed) {
		t.Fatalf("expected ErrQueryFailed, got %v", err)
	}
	if err := db.Release(conn); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if c.Closes() != 1 {
		t.Errorf("broken connection should be closed, closes = %d", c.Closes())
	}
	if s := db.Stats(); s.Idle != 0 || s.Destroyed != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestQueryOnReleasedLease(t *testing.T) {
	db, _ := newTestDB(t, worldTable, nil)
	conn, err := db.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := db.Release(conn); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := db.Query(context.Background(), conn, "SELECT 1"); !errors.Is(err, pool.ErrLeaseReleased) {
		t.Errorf("expected ErrLeaseReleased, got %v", err)
	}
}
