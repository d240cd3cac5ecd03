package pool

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"
)

// Conn is an exclusive lease on one physical connection. It is valid from
// Acquire until the matching Release and must not be shared between
// goroutines. Every Acquire returns a fresh Conn, even when the physical
// connection is reused, so a stale lease can always be told apart.
type Conn struct {
	pool       *Pool
	phys       *physConn
	id         string
	acquiredAt time.Time

	released atomic.Bool
	broken   atomic.Bool
}

// ID returns the lease id, unique per Acquire.
func (c *Conn) ID() string { return c.id }

// Seq returns the sequence number of the physical connection behind the lease.
func (c *Conn) Seq() int64 { return c.phys.seq }

// AcquiredAt reports when the lease was handed out.
func (c *Conn) AcquiredAt() time.Time { return c.acquiredAt }

// Released reports whether the lease has been given back.
func (c *Conn) Released() bool { return c.released.Load() }

// MarkBroken flags the physical connection so Release destroys it instead of
// returning it to the idle list.
func (c *Conn) MarkBroken() { c.broken.Store(true) }

// ReadOnly reports the session mode last set through SetReadOnly on this
// physical connection. known is false until the mode has been set once.
func (c *Conn) ReadOnly() (readOnly, known bool) {
	return c.phys.readOnly, c.phys.readOnlyKnown
}

// SetReadOnly records the session mode. It does not talk to the database;
// the caller sends the dialect's statement first.
func (c *Conn) SetReadOnly(readOnly bool) {
	c.phys.readOnly = readOnly
	c.phys.readOnlyKnown = true
}

func (c *Conn) check() error {
	if c.released.Load() {
		return fmt.Errorf("%w: %s", ErrLeaseReleased, c.id)
	}
	return nil
}

// QueryContext runs a query on the leased session.
func (c *Conn) QueryContext(ctx context.Context, query string) (*sql.Rows, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.phys.conn.QueryContext(ctx, query)
}

// ExecContext runs a statement on the leased session.
func (c *Conn) ExecContext(ctx context.Context, query string) (sql.Result, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.phys.conn.ExecContext(ctx, query)
}

// PingContext verifies the leased session is alive.
func (c *Conn) PingContext(ctx context.Context) error {
	if err := c.check(); err != nil {
		return err
	}
	return c.phys.conn.PingContext(ctx)
}
