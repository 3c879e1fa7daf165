package env

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Environment keys for the relational sink.
const (
	KeyDBDriver   = "DB_DRIVER"
	KeyDBHost     = "DB_HOST"
	KeyDBPort     = "DB_PORT"
	KeyDBName     = "DB_NAME"
	KeyDBUser     = "DB_USER"
	KeyDBPassword = "DB_PASSWORD"
	KeyDBSSLMode  = "DB_SSLMODE"
)

// Supported database drivers.
const (
	DriverPgx    = "pgx"
	DriverSQLite = "sqlite"
)

// Database holds connection settings for the relational sink.
type Database struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// DefaultDatabase returns the settings used when nothing is
// configured: a local PostgreSQL database named speedtest.
func DefaultDatabase() Database {
	return Database{
		Driver:   DriverPgx,
		Host:     "localhost",
		Port:     5432,
		Name:     "speedtest",
		User:     "postgres",
		Password: "postgres",
		SSLMode:  "disable",
	}
}

// LoadDatabase reads DB_* settings through l, falling back to
// DefaultDatabase for anything unset.
func LoadDatabase(l Loader) (Database, error) {
	db := DefaultDatabase()
	db.Driver = strings.ToLower(l.GetWithDefault(KeyDBDriver, db.Driver))
	db.Host = l.GetWithDefault(KeyDBHost, db.Host)
	db.Name = l.GetWithDefault(KeyDBName, db.Name)
	db.User = l.GetWithDefault(KeyDBUser, db.User)
	db.Password = l.GetWithDefault(KeyDBPassword, db.Password)
	db.SSLMode = l.GetWithDefault(KeyDBSSLMode, db.SSLMode)

	if raw := l.Get(KeyDBPort); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port < 1 || port > 65535 {
			return db, fmt.Errorf("invalid %s %q", KeyDBPort, raw)
		}
		db.Port = port
	}

	switch db.Driver {
	case DriverPgx, "postgres", "postgresql":
		db.Driver = DriverPgx
	case DriverSQLite, "sqlite3":
		db.Driver = DriverSQLite
	default:
		return db, fmt.Errorf("unsupported %s %q", KeyDBDriver, db.Driver)
	}
	return db, nil
}

// DSN returns the data source name for the configured driver. For
// sqlite the database name is a file path; a bare name gets a .db
// suffix.
func (d Database) DSN() string {
	if d.Driver == DriverSQLite {
		if strings.ContainsAny(d.Name, "./") {
			return d.Name
		}
		return d.Name + ".db"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// Redacted returns the DSN with the password masked, for logs.
func (d Database) Redacted() string {
	return RedactURL(d.DSN())
}
