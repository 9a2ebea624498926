package conf

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// DriverFromURL infers the driver from a database URL scheme. A value
// without a recognised scheme is treated as a SQLite file path.
func DriverFromURL(raw string) (string, error) {
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(lower, "mysql://"):
		return DriverMySQL, nil
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"):
		return DriverSQLite, nil
	case strings.Contains(lower, "://"):
		return "", fmt.Errorf("unsupported database URL scheme in %q", schemeOf(raw))
	default:
		return DriverSQLite, nil
	}
}

func schemeOf(raw string) string {
	if i := strings.Index(raw, "://"); i > 0 {
		return raw[:i]
	}
	return raw
}

// ResolvedDriver returns the driver implied by URL, or the configured driver
func (d *DatabaseSettings) ResolvedDriver() string {
	if d.URL != "" {
		if driver, err := DriverFromURL(d.URL); err == nil {
			return driver
		}
	}
	return strings.ToLower(d.Driver)
}

// DSN returns the connection string handed to the GORM dialector
func (d *DatabaseSettings) DSN() string {
	if d.URL != "" {
		return dsnFromURL(d.URL)
	}

	switch strings.ToLower(d.Driver) {
	case DriverPostgres:
		u := url.URL{
			Scheme: "postgresql",
			User:   url.UserPassword(d.User, d.Password),
			Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
			Path:   "/" + d.Name,
		}
		return u.String()
	case DriverMySQL:
		port := d.Port
		// the shared default port belongs to postgres
		if port == 5432 {
			port = 3306
		}
		return mysqlConfig(d.User, d.Password, d.Host, strconv.Itoa(port), d.Name).FormatDSN()
	default:
		return d.SQLitePath
	}
}

// dsnFromURL adapts a URL to the form each driver expects
func dsnFromURL(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "mysql://"):
		u, err := url.Parse(raw)
		if err != nil {
			return raw[len("mysql://"):]
		}
		port := u.Port()
		if port == "" {
			port = "3306"
		}
		password, _ := u.User.Password()
		cfg := mysqlConfig(u.User.Username(), password, u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		if u.RawQuery != "" {
			// explicit parameters replace the defaults
			if parsed, err := mysql.ParseDSN(cfg.Net + "(" + cfg.Addr + ")/" + cfg.DBName + "?" + u.RawQuery); err == nil {
				parsed.User, parsed.Passwd = cfg.User, cfg.Passwd
				cfg = parsed
			}
		}
		return cfg.FormatDSN()
	case strings.HasPrefix(lower, "sqlite://"):
		return raw[len("sqlite://"):]
	default:
		return raw
	}
}

// mysqlConfig builds a go-sql-driver config so credentials and parameters
// are escaped by the driver itself
func mysqlConfig(user, password, host, port, name string) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = name
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg
}
