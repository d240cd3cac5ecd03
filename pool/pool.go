package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shrek82/leasedb/logger"
)

var (
	// ErrConnectFailed is returned when a new physical connection cannot be established.
	ErrConnectFailed = errors.New("connect failed")
	// ErrPoolExhausted is returned when no connection became available within the wait timeout.
	ErrPoolExhausted = errors.New("pool exhausted")
	// ErrDoubleRelease is returned when a lease is released more than once.
	ErrDoubleRelease = errors.New("connection already released")
	// ErrForeignRelease is returned when releasing a lease that this pool did not hand out.
	ErrForeignRelease = errors.New("connection not leased from this pool")
	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("pool closed")
	// ErrLeaseReleased is returned when a statement runs on a lease that was already released.
	ErrLeaseReleased = errors.New("lease already released")
)

// Options configures a Pool. Zero values select the defaults noted per field.
type Options struct {
	// MaxOpenConns bounds the number of physical connections. Default 8.
	MaxOpenConns int
	// MaxIdleConns bounds the idle list; surplus connections are destroyed on
	// release. Default MaxOpenConns.
	MaxIdleConns int
	// ConnMaxLifetime destroys connections older than this. 0 keeps them forever.
	ConnMaxLifetime time.Duration
	// WaitTimeout bounds how long Acquire blocks at capacity. 0 waits forever.
	WaitTimeout time.Duration
	// TestOnBorrow pings idle connections before handing them out.
	TestOnBorrow bool
}

const defaultMaxOpenConns = 8

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = defaultMaxOpenConns
	}
	if o.MaxIdleConns <= 0 || o.MaxIdleConns > o.MaxOpenConns {
		o.MaxIdleConns = o.MaxOpenConns
	}
	return o
}

// physConn is one physical database session. It is idle, leased, or being
// opened/destroyed; never two of these at once.
type physConn struct {
	conn      *sql.Conn
	seq       int64
	createdAt time.Time

	// session state, only touched by the lease holder
	readOnlyKnown bool
	readOnly      bool
}

// Pool hands out exclusive leases on a bounded set of physical connections
// taken from db. The Pool owns db and closes it on Close.
//
// slots holds exactly one token per physical connection (idle, leased or
// being opened), so len(slots) never exceeds MaxOpenConns. Callers that find
// neither an idle connection nor a free token queue on waiters in FIFO order;
// Release hands its connection straight to the oldest waiter.
type Pool struct {
	db     *sql.DB
	opts   Options
	logger logger.Logger

	slots chan struct{}

	mu      sync.Mutex
	idle    []*physConn
	leased  map[*physConn]*Conn
	waiters []chan *physConn
	closed  bool
	seq     int64

	opened       int64
	destroyed    int64
	waitCount    int64
	waitDuration time.Duration
}

// New builds a Pool over db. Physical connections are opened lazily on Acquire.
func New(db *sql.DB, opts Options, l logger.Logger) *Pool {
	opts = opts.withDefaults()
	if l == nil {
		l = logger.NewNopLogger()
	}
	// database/sql must not keep idle connections of its own: a *sql.Conn
	// closed by the pool is then closed physically.
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(0)

	return &Pool{
		db:     db,
		opts:   opts,
		logger: l,
		slots:  make(chan struct{}, opts.MaxOpenConns),
		leased: make(map[*physConn]*Conn),
	}
}

// Acquire leases a connection. It reuses an idle connection when one exists,
// opens a new one while under capacity, and otherwise blocks until a release,
// the wait timeout, or the end of ctx.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	var (
		deadline <-chan time.Time
		waitFrom time.Time
	)
	defer func() {
		if !waitFrom.IsZero() {
			p.mu.Lock()
			p.waitDuration += time.Since(waitFrom)
			p.mu.Unlock()
		}
	}()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if n := len(p.idle); n > 0 {
			pc := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.mu.Unlock()
			if p.usable(ctx, pc) {
				return p.lease(pc)
			}
			continue
		}
		select {
		case p.slots <- struct{}{}:
			p.mu.Unlock()
			return p.open(ctx)
		default:
		}
		req := make(chan *physConn, 1)
		p.waiters = append(p.waiters, req)
		if waitFrom.IsZero() {
			waitFrom = time.Now()
			p.waitCount++
		}
		p.mu.Unlock()

		if deadline == nil && p.opts.WaitTimeout > 0 {
			timer := time.NewTimer(p.opts.WaitTimeout)
			defer timer.Stop()
			deadline = timer.C
		}

		select {
		case pc := <-req:
			// nil means a token was freed or the pool closed; loop and look again
			if pc != nil && p.usable(ctx, pc) {
				return p.lease(pc)
			}
		case <-deadline:
			p.cancelWait(req)
			return nil, fmt.Errorf("%w: no connection within %v (capacity %d)", ErrPoolExhausted, p.opts.WaitTimeout, p.opts.MaxOpenConns)
		case <-ctx.Done():
			p.cancelWait(req)
			return nil, ctx.Err()
		}
	}
}

// open establishes a new physical connection. The caller holds a token.
func (p *Pool) open(ctx context.Context) (*Conn, error) {
	sc, err := p.db.Conn(ctx)
	if err != nil {
		<-p.slots
		p.mu.Lock()
		p.wakeOne()
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	p.mu.Lock()
	p.seq++
	p.opened++
	pc := &physConn{conn: sc, seq: p.seq, createdAt: time.Now()}
	p.mu.Unlock()
	p.logger.Info("pool: opened connection #%d", pc.seq)

	return p.lease(pc)
}

// usable checks an idle connection before it is leased again, destroying it
// when it is too old or fails validation.
func (p *Pool) usable(ctx context.Context, pc *physConn) bool {
	if p.expired(pc) {
		p.destroy(pc, "expired")
		return false
	}
	if p.opts.TestOnBorrow {
		if err := pc.conn.PingContext(ctx); err != nil {
			p.logger.Warn("pool: idle connection #%d failed validation: %v", pc.seq, err)
			p.destroy(pc, "validation failed")
			return false
		}
	}
	return true
}

func (p *Pool) lease(pc *physConn) (*Conn, error) {
	c := &Conn{
		pool:       p,
		phys:       pc,
		id:         uuid.NewString(),
		acquiredAt: time.Now(),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroy(pc, "pool closed")
		return nil, ErrPoolClosed
	}
	p.leased[pc] = c
	p.mu.Unlock()
	return c, nil
}

// cancelWait withdraws req from the queue. A connection handed over in the
// meantime is passed on rather than lost.
func (p *Pool) cancelWait(req chan *physConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == req {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	select {
	case pc := <-req:
		if pc != nil {
			p.putIdle(pc)
		} else {
			p.wakeOne()
		}
	default:
	}
}

// putIdle hands pc to the oldest waiter, or parks it on the idle list. p.mu must be held.
func (p *Pool) putIdle(pc *physConn) {
	if len(p.waiters) > 0 {
		req := p.waiters[0]
		p.waiters = p.waiters[1:]
		req <- pc
		return
	}
	p.idle = append(p.idle, pc)
}

// wakeOne tells the oldest waiter to look again. p.mu must be held.
func (p *Pool) wakeOne() {
	if len(p.waiters) > 0 {
		req := p.waiters[0]
		p.waiters = p.waiters[1:]
		req <- nil
	}
}

// Release returns c to the pool. Releasing the same lease twice yields
// ErrDoubleRelease; a lease from another pool, or nil, yields ErrForeignRelease.
// Rejected releases leave pool state untouched.
func (p *Pool) Release(c *Conn) error {
	if c == nil || c.pool != p {
		return ErrForeignRelease
	}

	p.mu.Lock()
	if c.released.Load() || p.leased[c.phys] != c {
		p.mu.Unlock()
		p.logger.Warn("pool: rejected release of lease %s on connection #%d", c.id, c.phys.seq)
		return fmt.Errorf("%w: lease %s", ErrDoubleRelease, c.id)
	}
	c.released.Store(true)
	delete(p.leased, c.phys)

	reason := ""
	switch {
	case p.closed:
		reason = "pool closed"
	case c.broken.Load():
		reason = "broken"
	case p.expired(c.phys):
		reason = "expired"
	case len(p.waiters) == 0 && len(p.idle) >= p.opts.MaxIdleConns:
		reason = "idle limit"
	default:
		p.putIdle(c.phys)
	}
	p.mu.Unlock()

	if reason != "" {
		p.destroy(c.phys, reason)
	}
	return nil
}

// destroy closes pc physically and frees its token.
func (p *Pool) destroy(pc *physConn, reason string) {
	if err := pc.conn.Close(); err != nil {
		p.logger.Warn("pool: closing connection #%d: %v", pc.seq, err)
	}
	<-p.slots
	p.mu.Lock()
	p.destroyed++
	p.wakeOne()
	p.mu.Unlock()
	p.logger.Info("pool: destroyed connection #%d (%s)", pc.seq, reason)
}

func (p *Pool) expired(pc *physConn) bool {
	return p.opts.ConnMaxLifetime > 0 && time.Since(pc.createdAt) > p.opts.ConnMaxLifetime
}

// Ping leases a connection, pings it and releases it.
func (p *Pool) Ping(ctx context.Context) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Release(c) }()
	if err := c.PingContext(ctx); err != nil {
		c.MarkBroken()
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	return nil
}

// Close destroys idle connections, wakes every waiter and closes the
// underlying *sql.DB. Leases still outstanding are destroyed when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	for len(p.waiters) > 0 {
		p.wakeOne()
	}
	leased := len(p.leased)
	p.mu.Unlock()

	for _, pc := range idle {
		p.destroy(pc, "pool closed")
	}
	if leased > 0 {
		p.logger.Warn("pool: closed with %d connection(s) still leased", leased)
	}
	return p.db.Close()
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Capacity     int
	Open         int
	Idle         int
	Leased       int
	Waiting      int
	Opened       int64
	Destroyed    int64
	WaitCount    int64
	WaitDuration time.Duration
}

// Stats returns current pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity:     p.opts.MaxOpenConns,
		Open:         len(p.slots),
		Idle:         len(p.idle),
		Leased:       len(p.leased),
		Waiting:      len(p.waiters),
		Opened:       p.opened,
		Destroyed:    p.destroyed,
		WaitCount:    p.waitCount,
		WaitDuration: p.waitDuration,
	}
}
