package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

const (
	sqliteMemory      = ":memory:"
	mysqlDefaultPort  = "3306"
	sqliteBusyTimeout = "_pragma=busy_timeout(5000)"
)

var ErrUnsupportedScheme = errors.New("unsupported database scheme")

// Target is a parsed connection URL ready to be handed to database/sql.
type Target struct {
	Dialect    Dialect
	DriverName string
	DSN        string
	// Path is the database file for SQLite targets.
	Path string

	raw string
}

// ParseURL understands postgres://, postgresql://, mysql:// and sqlite:// URLs.
// SQLAlchemy driver suffixes such as "postgresql+asyncpg" or
// "sqlite+aiosqlite" are accepted and ignored.
func ParseURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, raw)
	}
	scheme, _, _ = strings.Cut(strings.ToLower(scheme), "+")

	switch scheme {
	case "postgres", "postgresql":
		return Target{
			Dialect:    Postgres,
			DriverName: "pgx",
			DSN:        "postgres://" + rest,
			raw:        raw,
		}, nil
	case "mysql":
		return parseMySQL(raw, rest)
	case "sqlite", "sqlite3":
		return parseSQLite(raw, rest), nil
	default:
		return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

func parseMySQL(raw, rest string) (Target, error) {
	u, err := url.Parse("mysql://" + rest)
	if err != nil {
		return Target{}, fmt.Errorf("invalid mysql url: %w", err)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.ParseTime = true
	cfg.DBName = strings.TrimPrefix(u.Path, "/")

	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}

	host, port := u.Hostname(), u.Port()
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = mysqlDefaultPort
	}
	cfg.Addr = net.JoinHostPort(host, port)

	if q := u.Query(); len(q) > 0 {
		cfg.Params = make(map[string]string, len(q))
		for key := range q {
			cfg.Params[key] = q.Get(key)
		}
	}

	return Target{
		Dialect:    MySQL,
		DriverName: "mysql",
		DSN:        cfg.FormatDSN(),
		raw:        raw,
	}, nil
}

// parseSQLite follows the SQLAlchemy convention: three slashes for a relative
// path, four for an absolute one.
func parseSQLite(raw, rest string) Target {
	path, _, _ := strings.Cut(rest, "?")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		path = sqliteMemory
	}

	return Target{
		Dialect:    SQLite,
		DriverName: "sqlite",
		DSN:        path + "?" + sqliteBusyTimeout,
		Path:       path,
		raw:        raw,
	}
}

func (t Target) IsMemory() bool {
	return t.Dialect == SQLite && t.Path == sqliteMemory
}

// String returns the URL with any password masked.
func (t Target) String() string {
	u, err := url.Parse(t.raw)
	if err != nil {
		return string(t.Dialect)
	}
	return u.Redacted()
}
