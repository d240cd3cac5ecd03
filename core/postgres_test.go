package core

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shrek82/leasedb/dialect"
	"github.com/shrek82/leasedb/logger"
	"github.com/shrek82/leasedb/pool"
)

func TestPostgresIntegration(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set, skipping Postgres tests")
	}

	for _, driverName := range []string{"postgres", "pgx"} {
		t.Run(driverName, func(t *testing.T) {
			db, err := Open(dialect.Target{URL: dsn, Driver: driverName}, &Options{
				MaxOpenConns: 2,
				VerifyOnOpen: true,
				Logger:       logger.NewNopLogger(),
			})
			if err != nil {
				t.Fatalf("failed to open Postgres: %v", err)
			}
			defer db.Close()

			ctx := context.Background()
			err = db.WithConn(ctx, func(conn *pool.Conn) error {
				for _, stmt := range []string{
					`DROP TABLE IF EXISTS leasedb_world`,
					`CREATE TABLE leasedb_world (id INTEGER, value VARCHAR(32), price NUMERIC(10,2), ok BOOLEAN, at TIMESTAMPTZ)`,
					`INSERT INTO leasedb_world VALUES (2, 'hello', 12.50, true, '2026-01-15 16:08:38+00')`,
				} {
					if _, err := db.Execute(ctx, conn, stmt); err != nil {
						return err
					}
				}

				res, err := db.Query(ctx, conn, "SELECT * FROM leasedb_world WHERE id=2")
				if err != nil {
					return err
				}
				row := res.Rows[0]
				if v, _ := row.Get("id"); v != int64(2) {
					t.Errorf("id = %v (%T)", v, v)
				}
				if v, _ := row.Get("value"); v != "hello" {
					t.Errorf("value = %v (%T)", v, v)
				}
				if v, _ := row.Get("price"); v != 12.5 {
					t.Errorf("price = %v (%T)", v, v)
				}
				if v, _ := row.Get("ok"); v != true {
					t.Errorf("ok = %v (%T)", v, v)
				}
				if v, _ := row.Get("at"); !v.(time.Time).Equal(time.Date(2026, 1, 15, 16, 8, 38, 0, time.UTC)) {
					t.Errorf("at = %v", v)
				}

				n, err := db.Execute(ctx, conn, "UPDATE leasedb_world SET value='x' WHERE id=2")
				if err != nil {
					return err
				}
				if n != 1 {
					t.Errorf("affected = %d, want 1", n)
				}
				_, err = db.Execute(ctx, conn, `DROP TABLE leasedb_world`)
				return err
			})
			if err != nil {
				t.Fatalf("scenario failed: %v", err)
			}
		})
	}
}
