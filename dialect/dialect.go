package dialect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ErrUnknownDialect is returned when a JDBC-style URL names a product with no registered dialect.
var ErrUnknownDialect = errors.New("unknown dialect")

// Dialect captures what the access layer needs to know about one database product:
// the database/sql driver to open, how to expand shorthand connection URLs, and how
// to switch a session between read-only and read-write.
type Dialect interface {
	// Name returns the canonical product name (mysql, postgres, ...).
	Name() string
	// DriverName returns the database/sql driver name to pass to sql.Open.
	DriverName() string
	// Expand turns url into a driver DSN. Bare addresses (host, host:port,
	// host/db, host:port/db) go through the product template together with the
	// credentials; anything else is returned verbatim.
	Expand(url, user, password string) (string, error)
	// ReadOnlySQL returns the statement that switches the session mode, or ""
	// when the product has no session-level switch.
	ReadOnlySQL(readOnly bool) string
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// Register registers d under name. Names are matched case-insensitively, so
// product aliases and JDBC driver class names can all point at one dialect.
func Register(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[strings.ToLower(name)] = d
}

// Get retrieves a registered dialect by alias.
func Get(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// Target names one database: a URL (full DSN, JDBC URL or bare address), a
// driver name or alias, and credentials.
type Target struct {
	URL      string
	Driver   string
	User     string
	Password string
}

// String hides the password.
func (t Target) String() string {
	return fmt.Sprintf("%s@%s (%s)", t.User, t.URL, t.Driver)
}

// Resolved is a Target turned into something sql.Open accepts.
type Resolved struct {
	Dialect    Dialect
	DriverName string
	DSN        string
}

// Resolve expands t using the registered aliases.
//
// A "jdbc:<product>:" URL picks the dialect from <product> unless t.Driver is
// itself a known alias. A known alias expands bare addresses through its
// template. Anything else is used verbatim: the URL as DSN and t.Driver as the
// database/sql driver name.
func Resolve(t Target) (Resolved, error) {
	url := strings.TrimSpace(t.URL)
	d, known := Get(t.Driver)

	if rest, ok := cutPrefixFold(url, "jdbc:"); ok {
		product, tail, found := strings.Cut(rest, ":")
		if !found {
			return Resolved{}, fmt.Errorf("%w: malformed jdbc url %q", ErrUnknownDialect, url)
		}
		if !known {
			d, known = Get(product)
			if !known {
				return Resolved{}, fmt.Errorf("%w: %s", ErrUnknownDialect, product)
			}
		}
		bare, err := jdbcAddress(d, tail)
		if err != nil {
			return Resolved{}, err
		}
		url = bare
	}

	if !known {
		if t.Driver == "" {
			return Resolved{}, fmt.Errorf("%w: no driver for %q", ErrUnknownDialect, url)
		}
		g := Generic(t.Driver)
		return Resolved{Dialect: g, DriverName: g.DriverName(), DSN: url}, nil
	}

	dsn, err := d.Expand(url, t.User, t.Password)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Dialect: d, DriverName: d.DriverName(), DSN: dsn}, nil
}

// JDBCParser is implemented by dialects whose JDBC URL body is not the usual
// //host:port/database[?params] shape.
type JDBCParser interface {
	ParseJDBC(body string) (string, error)
}

// jdbcAddress reduces the body of a jdbc URL to a bare address. JDBC
// connection properties have no portable DSN equivalent and are dropped.
func jdbcAddress(d Dialect, body string) (string, error) {
	if p, ok := d.(JDBCParser); ok {
		return p.ParseJDBC(body)
	}
	body = strings.TrimPrefix(body, "//")
	if i := strings.IndexAny(body, "?;"); i >= 0 {
		body = body[:i]
	}
	return body, nil
}

// Address is a parsed bare address.
type Address struct {
	Host     string
	Port     int
	Database string
}

// HostPort joins host and port.
func (a Address) HostPort() string {
	return a.Host + ":" + strconv.Itoa(a.Port)
}

// IsBareAddress reports whether s looks like host[:port][/database] rather
// than a full DSN or URL.
func IsBareAddress(s string) bool {
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, "@=?;() ") && !strings.Contains(s, "://")
}

// ParseAddress parses host[:port][/database], filling in defaultPort.
func ParseAddress(s string, defaultPort int) (Address, error) {
	hostPort, db, _ := strings.Cut(s, "/")
	host, portStr, hasPort := strings.Cut(hostPort, ":")
	if host == "" {
		return Address{}, fmt.Errorf("address %q: missing host", s)
	}
	a := Address{Host: host, Port: defaultPort, Database: db}
	if hasPort {
		p, err := strconv.Atoi(portStr)
		if err != nil || p <= 0 || p > 65535 {
			return Address{}, fmt.Errorf("address %q: invalid port %q", s, portStr)
		}
		a.Port = p
	}
	return a, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

type generic struct {
	driver string
}

// Generic returns a dialect for a driver with no registered product knowledge:
// URLs are used verbatim and sessions are never switched to read-only.
func Generic(driverName string) Dialect {
	return generic{driver: driverName}
}

func (g generic) Name() string { return g.driver }
func (g generic) DriverName() string { return g.driver }
func (g generic) Expand(url, _, _ string) (string, error) { return url, nil }
func (g generic) ReadOnlySQL(bool) string { return "" }
