package connectors

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/snowflakedb/gosnowflake"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/ajitpratap0/layerconf/pkg/errors"
)

// Postgres is a resolved PostgreSQL connection.
type Postgres struct {
	Dialect  string `settings:"DIALECT" json:"dialect"`
	Host     string `settings:"HOST" json:"host"`
	Port     int    `settings:"PORT" json:"port"`
	User     string `settings:"USER" json:"user"`
	Password string `settings:"PASSWORD" json:"-"`
	Database string `settings:"DATABASE" json:"database"`
	URL      string `settings:"DATABASE_URL" json:"-"`
}

// Validate fills the fields from URL when set, and URL from the fields otherwise.
func (p *Postgres) Validate() error {
	if p.URL != "" {
		cfg, err := pgx.ParseConfig(p.URL)
		if err != nil {
			return invalidURL(err)
		}
		p.Host, p.Port = cfg.Host, int(cfg.Port)
		p.User, p.Password, p.Database = cfg.User, cfg.Password, cfg.Database
		return nil
	}
	if p.Database == "" {
		return missing("DATABASE")
	}
	u := serverURL("postgresql", p.Host, p.Port, p.User, p.Password, p.Database)
	if _, err := pgx.ParseConfig(u); err != nil {
		return invalidURL(err)
	}
	p.URL = u
	return nil
}

// DSN returns the connection string
func (p *Postgres) DSN() string { return p.URL }

// MySQL is a resolved MySQL connection. URL holds a driver DSN, not a URL.
type MySQL struct {
	Dialect  string `settings:"DIALECT" json:"dialect"`
	Host     string `settings:"HOST" json:"host"`
	Port     int    `settings:"PORT" json:"port"`
	User     string `settings:"USER" json:"user"`
	Password string `settings:"PASSWORD" json:"-"`
	Database string `settings:"DATABASE" json:"database"`
	URL      string `settings:"DATABASE_URL" json:"-"`
}

// Validate fills the fields from URL when set, and URL from the fields otherwise.
func (m *MySQL) Validate() error {
	if m.URL != "" {
		cfg, err := mysql.ParseDSN(m.URL)
		if err != nil {
			return invalidURL(err)
		}
		m.Host, m.Port = splitAddr(cfg.Addr, m.Port)
		m.User, m.Password, m.Database = cfg.User, cfg.Passwd, cfg.DBName
		return nil
	}
	if m.Database == "" {
		return missing("DATABASE")
	}
	cfg := mysql.NewConfig()
	cfg.User = m.User
	cfg.Passwd = m.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	cfg.DBName = m.Database
	m.URL = cfg.FormatDSN()
	return nil
}

// DSN returns the driver DSN
func (m *MySQL) DSN() string { return m.URL }

// Mongo is a resolved MongoDB connection.
type Mongo struct {
	Dialect  string `settings:"DIALECT" json:"dialect"`
	Host     string `settings:"HOST" json:"host"`
	Port     int    `settings:"PORT" json:"port"`
	User     string `settings:"USER" json:"user"`
	Password string `settings:"PASSWORD" json:"-"`
	Database string `settings:"DATABASE" json:"database"`
	URL      string `settings:"DATABASE_URL" json:"-"`
}

// Validate fills the fields from URL when set, and URL from the fields otherwise.
func (m *Mongo) Validate() error {
	if m.URL != "" {
		cs, err := connstring.ParseAndValidate(m.URL)
		if err != nil {
			return invalidURL(err)
		}
		if len(cs.Hosts) > 0 {
			m.Host, m.Port = splitAddr(cs.Hosts[0], m.Port)
		}
		m.User, m.Password, m.Database = cs.Username, cs.Password, cs.Database
		return nil
	}
	if m.Database == "" {
		return missing("DATABASE")
	}
	u := serverURL("mongodb", m.Host, m.Port, m.User, m.Password, m.Database)
	if err := options.Client().ApplyURI(u).Validate(); err != nil {
		return invalidURL(err)
	}
	m.URL = u
	return nil
}

// DSN returns the connection string
func (m *Mongo) DSN() string { return m.URL }

// Snowflake is a resolved Snowflake connection.
type Snowflake struct {
	Dialect   string `settings:"DIALECT" json:"dialect"`
	Account   string `settings:"ACCOUNT" json:"account"`
	User      string `settings:"USER" json:"user"`
	Password  string `settings:"PASSWORD" json:"-"`
	Database  string `settings:"DATABASE" json:"database"`
	Schema    string `settings:"SCHEMA" json:"schema"`
	Warehouse string `settings:"WAREHOUSE" json:"warehouse"`
	Role      string `settings:"ROLE" json:"role"`
	URL       string `settings:"DATABASE_URL" json:"-"`
}

// Validate fills the fields from URL when set, and URL from the fields otherwise.
func (s *Snowflake) Validate() error {
	if s.URL != "" {
		cfg, err := gosnowflake.ParseDSN(s.URL)
		if err != nil {
			return invalidURL(err)
		}
		s.Account, s.User, s.Password = cfg.Account, cfg.User, cfg.Password
		s.Database, s.Schema = cfg.Database, cfg.Schema
		s.Warehouse, s.Role = cfg.Warehouse, cfg.Role
		return nil
	}
	if s.Account == "" {
		return missing("ACCOUNT")
	}
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   s.Account,
		User:      s.User,
		Password:  s.Password,
		Database:  s.Database,
		Schema:    s.Schema,
		Warehouse: s.Warehouse,
		Role:      s.Role,
	})
	if err != nil {
		return invalidURL(err)
	}
	s.URL = dsn
	return nil
}

// DSN returns the driver DSN
func (s *Snowflake) DSN() string { return s.URL }

// MemoryDatabase is the SQLite in-memory database name
const MemoryDatabase = ":memory:"

// SQLite is a resolved SQLite database. Database is a file path or
// MemoryDatabase.
type SQLite struct {
	Dialect  string `settings:"DIALECT" json:"dialect"`
	Database string `settings:"DATABASE" json:"database"`
	URL      string `settings:"DATABASE_URL" json:"url"`
}

// Validate fills Database from URL when set, and URL from Database otherwise.
// A URL must be sqlite:///path; a host part is rejected.
func (s *SQLite) Validate() error {
	if s.URL == "" {
		if s.Database == "" {
			s.Database = MemoryDatabase
		}
		s.URL = DialectSQLite + ":///" + s.Database
		return nil
	}
	if !strings.Contains(s.URL, "://") {
		return errors.New(errors.ErrorTypeValidation, "invalid DATABASE_URL").WithDetail("url", s.URL)
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return invalidURL(err)
	}
	if u.Scheme != DialectSQLite && !strings.HasPrefix(u.Scheme, DialectSQLite+"+") {
		return errors.New(errors.ErrorTypeValidation, "invalid DATABASE_URL scheme").WithDetail("scheme", u.Scheme)
	}
	if u.Host != "" {
		return errors.New(errors.ErrorTypeValidation, "sqlite DATABASE_URL takes no host").WithDetail("host", u.Host)
	}
	s.Database = strings.TrimPrefix(u.Path, "/")
	if s.Database == "" {
		s.Database = MemoryDatabase
		s.URL = u.Scheme + ":///" + MemoryDatabase
	}
	return nil
}

// DSN returns the database URL
func (s *SQLite) DSN() string { return s.URL }

func serverURL(scheme, host string, port int, user, password, database string) string {
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + database,
	}
	switch {
	case user != "" && password != "":
		u.User = url.UserPassword(user, password)
	case user != "":
		u.User = url.User(user)
	}
	return u.String()
}

// splitAddr splits host:port, keeping fallback when addr carries no port.
func splitAddr(addr string, fallback int) (string, int) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, fallback
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return host, fallback
	}
	return host, n
}

func missing(field string) error {
	return errors.Newf(errors.ErrorTypeValidation, "%s is required unless DATABASE_URL is set", field)
}

func invalidURL(err error) error {
	return errors.Wrap(err, errors.ErrorTypeValidation, "invalid DATABASE_URL")
}
