package dialect

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgreSQL through the pgx stdlib adapter. The DSN is validated with
// pgx.ParseConfig so a bad URL fails at configure time instead of on first acquire.
type pgxDialect struct{}

func init() {
	Register("pgx", &pgxDialect{})
}

func (d *pgxDialect) Name() string       { return "postgres" }
func (d *pgxDialect) DriverName() string { return "pgx" }

func (d *pgxDialect) Expand(url, user, password string) (string, error) {
	dsn := url
	if IsBareAddress(url) {
		var err error
		if dsn, err = postgresURL(url, user, password); err != nil {
			return "", err
		}
	}
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("pgx config: %w", err)
	}
	return dsn, nil
}

func (d *pgxDialect) ReadOnlySQL(readOnly bool) string {
	return postgresReadOnlySQL(readOnly)
}
