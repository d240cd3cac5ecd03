package core

import (
	"sync"

	"github.com/shrek82/leasedb/dialect"
)

// Source holds at most one DB for the life of a process. The first Configure
// builds it; later calls return the same DB whatever target they name.
type Source struct {
	mu     sync.Mutex
	db     *DB
	target dialect.Target
}

// Configure returns the DB of s, opening it for t on the first call. A later
// call with a different target logs a warning and keeps the existing DB.
func (s *Source) Configure(t dialect.Target, opts *Options) (*DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if t != s.target {
			s.db.logger.Warn("source already configured for %s, ignoring %s", s.target, t)
		}
		return s.db, nil
	}

	db, err := Open(t, opts)
	if err != nil {
		return nil, err
	}
	s.db = db
	s.target = t
	return db, nil
}

// DB returns the configured DB, or nil before Configure succeeds.
func (s *Source) DB() *DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// Close closes the configured DB. Configure may then open a new one.
func (s *Source) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.target = dialect.Target{}
	s.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close()
}
