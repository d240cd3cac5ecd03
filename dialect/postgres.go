package dialect

import (
	neturl "net/url"

	_ "github.com/lib/pq"
)

// PostgreSQL through lib/pq.
type postgres struct{}

func init() {
	d := &postgres{}
	for _, name := range []string{"postgres", "postgresql", "org.postgresql.Driver"} {
		Register(name, d)
	}
}

func (d *postgres) Name() string       { return "postgres" }
func (d *postgres) DriverName() string { return "postgres" }

func (d *postgres) Expand(url, user, password string) (string, error) {
	if !IsBareAddress(url) {
		return url, nil
	}
	return postgresURL(url, user, password)
}

func (d *postgres) ReadOnlySQL(readOnly bool) string {
	return postgresReadOnlySQL(readOnly)
}

func postgresURL(bare, user, password string) (string, error) {
	a, err := ParseAddress(bare, 5432)
	if err != nil {
		return "", err
	}
	u := neturl.URL{
		Scheme: "postgres",
		Host:   a.HostPort(),
		Path:   "/" + a.Database,
	}
	if user != "" {
		if password != "" {
			u.User = neturl.UserPassword(user, password)
		} else {
			u.User = neturl.User(user)
		}
	}
	return u.String(), nil
}

func postgresReadOnlySQL(readOnly bool) string {
	if readOnly {
		return "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"
	}
	return "SET SESSION CHARACTERISTICS AS TRANSACTION READ WRITE"
}
