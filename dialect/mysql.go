package dialect

import (
	"github.com/go-sql-driver/mysql"
)

type mysqlDialect struct{}

func init() {
	d := &mysqlDialect{}
	for _, name := range []string{"mysql", "mariadb", "com.mysql.jdbc.Driver", "com.mysql.cj.jdbc.Driver", "org.mariadb.jdbc.Driver"} {
		Register(name, d)
	}
}

func (d *mysqlDialect) Name() string       { return "mysql" }
func (d *mysqlDialect) DriverName() string { return "mysql" }

// Expand builds a go-sql-driver DSN. parseTime is always on so DATE, DATETIME
// and TIMESTAMP columns arrive as time.Time.
func (d *mysqlDialect) Expand(url, user, password string) (string, error) {
	if !IsBareAddress(url) {
		return url, nil
	}
	a, err := ParseAddress(url, 3306)
	if err != nil {
		return "", err
	}
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = a.HostPort()
	cfg.DBName = a.Database
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (d *mysqlDialect) ReadOnlySQL(readOnly bool) string {
	if readOnly {
		return "SET SESSION TRANSACTION READ ONLY"
	}
	return "SET SESSION TRANSACTION READ WRITE"
}
