package dialect

import (
	_ "github.com/mattn/go-sqlite3"
)

// SQLite through mattn/go-sqlite3. The URL is a file path or a file: URI and
// is never templated; credentials are ignored.
type sqlite3 struct{}

func init() {
	d := &sqlite3{}
	for _, name := range []string{"sqlite3", "sqlite", "org.sqlite.JDBC"} {
		Register(name, d)
	}
}

func (d *sqlite3) Name() string       { return "sqlite3" }
func (d *sqlite3) DriverName() string { return "sqlite3" }

func (d *sqlite3) Expand(url, _, _ string) (string, error) {
	return url, nil
}

// ParseJDBC keeps the path of jdbc:sqlite:<path> as is.
func (d *sqlite3) ParseJDBC(body string) (string, error) {
	return body, nil
}

func (d *sqlite3) ReadOnlySQL(readOnly bool) string {
	if readOnly {
		return "PRAGMA query_only = ON"
	}
	return "PRAGMA query_only = OFF"
}
