package middleware

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/shrek82/leasedb/core"
	"github.com/shrek82/leasedb/logger"
)

// SlowStatement is one slow log record.
type SlowStatement struct {
	Kind      core.StatementKind
	Lease     string
	SQL       string
	Elapsed   time.Duration
	Threshold time.Duration
	Held      time.Duration // lease age when the statement finished
	Rows      int64         // rows returned by a query, rows affected by an execute
	Err       error
}

func (s SlowStatement) String() string {
	return fmt.Sprintf("[SLOW SQL] %s lease=%s elapsed=%v threshold=%v held=%v rows=%d err=%v sql=%s",
		s.Kind, s.Lease, s.Elapsed, s.Threshold, s.Held, s.Rows, s.Err, s.SQL)
}

// SlowLogMiddleware records statements whose run time exceeds a threshold,
// one line per statement. Records go to an explicit writer, to a file, or
// failing both to the database logger at WARN.
type SlowLogMiddleware struct {
	threshold time.Duration
	path      string

	mu   sync.Mutex
	out  io.Writer
	file *os.File
	log  logger.Logger
}

// NewSlowLog records statements slower than threshold. A non-empty path
// appends records to that file.
func NewSlowLog(threshold time.Duration, path string) *SlowLogMiddleware {
	return &SlowLogMiddleware{threshold: threshold, path: path}
}

// SetOutput sends records to w, overriding the file path.
func (m *SlowLogMiddleware) SetOutput(w io.Writer) {
	m.mu.Lock()
	m.out = w
	m.mu.Unlock()
}

func (m *SlowLogMiddleware) Name() string {
	return "SlowLog"
}

func (m *SlowLogMiddleware) Init(db *core.DB) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = db.Logger()
	if m.out != nil || m.path == "" {
		return nil
	}
	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open slow log %s: %w", m.path, err)
	}
	m.file = f
	m.out = f
	return nil
}

func (m *SlowLogMiddleware) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file, m.out = nil, nil
	return err
}

func (m *SlowLogMiddleware) Process(ctx context.Context, st *core.Statement, next core.StatementFunc) (*core.Result, error) {
	start := time.Now()
	res, err := next(ctx, st)
	elapsed := time.Since(start)
	if elapsed <= m.threshold {
		return res, err
	}

	rec := SlowStatement{
		Kind:      st.Kind,
		SQL:       st.SQL,
		Elapsed:   elapsed,
		Threshold: m.threshold,
		Err:       err,
	}
	if st.Conn != nil {
		rec.Lease = st.Conn.ID()
		rec.Held = time.Since(st.Conn.AcquiredAt())
	}
	if res != nil {
		rec.Rows = res.RowsAffected
		if st.Kind == core.StatementQuery {
			rec.Rows = int64(len(res.Rows))
		}
	}
	m.record(rec)
	return res, err
}

func (m *SlowLogMiddleware) record(rec SlowStatement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out != nil {
		fmt.Fprintln(m.out, rec)
		return
	}
	if m.log != nil {
		m.log.WithFields(map[string]any{"lease": rec.Lease}).Warn("%s", rec)
	}
}
