package dbengine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
)

// Identifier length limits enforced by the server.
const (
	MaxDatabaseNameLen = 64
	MaxUsernameLen     = 32
)

// grantable is the closed set of privileges GrantPrivileges accepts.
var grantable = map[string]struct{}{
	"ALL PRIVILEGES": {}, "SELECT": {}, "INSERT": {}, "UPDATE": {}, "DELETE": {},
	"CREATE": {}, "DROP": {}, "ALTER": {}, "INDEX": {}, "REFERENCES": {},
	"CREATE VIEW": {}, "SHOW VIEW": {}, "TRIGGER": {}, "EXECUTE": {},
	"CREATE ROUTINE": {}, "ALTER ROUTINE": {}, "LOCK TABLES": {}, "CREATE TEMPORARY TABLES": {},
}

// Schemas and accounts that belong to the server itself. They are never
// created, granted on or dropped through the panel.
var (
	reservedDatabases = map[string]struct{}{
		"mysql": {}, "sys": {}, "information_schema": {}, "performance_schema": {},
	}
	reservedUsers = map[string]struct{}{
		"root": {}, "mysql": {}, "mariadb": {}, "debian_sys_maint": {},
	}
)

// IsReservedDatabase reports whether name is a system schema.
func IsReservedDatabase(name string) bool {
	_, ok := reservedDatabases[strings.ToLower(name)]
	return ok
}

// IsReservedUser reports whether name is a system account. Every name in the
// mysql.* account namespace is reserved.
func IsReservedUser(name string) bool {
	name = strings.ToLower(name)
	if strings.HasPrefix(name, "mysql.") || strings.HasPrefix(name, "mariadb.") {
		return true
	}
	_, ok := reservedUsers[name]
	return ok
}

// Execer is the subset of *sql.DB the adapter needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// MySQL manages customer databases and principals over an administrative connection.
type MySQL struct {
	db       Execer
	userHost string
	logger   *slog.Logger
}

// OpenAdmin opens the administrative connection described by cfg. Parameters are
// interpolated client side so account names and passwords can be bound in
// statements the server refuses to prepare.
func OpenAdmin(cfg models.MySQLConfig) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	if cfg.Socket != "" {
		mc.Net = "unix"
		mc.Addr = cfg.Socket
	} else {
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}
	mc.InterpolateParams = true
	mc.Timeout = 10 * time.Second

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// NewMySQL creates the adapter. Accounts are created for userHost.
func NewMySQL(db Execer, userHost string, logger *slog.Logger) *MySQL {
	if logger == nil {
		logger = slog.Default()
	}
	if userHost == "" {
		userHost = "localhost"
	}
	return &MySQL{db: db, userHost: userHost, logger: logger}
}

// UserHost is the host part of every account this adapter manages
func (m *MySQL) UserHost() string { return m.userHost }

// SanitizeIdentifier keeps [A-Za-z0-9_] and truncates to max.
func SanitizeIdentifier(s string, max int) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == max {
			break
		}
	}
	return b.String()
}

func quoteIdent(name string) string {
	return "`" + name + "`"
}

func identifier(kind, s string, max int) (string, error) {
	clean := SanitizeIdentifier(s, max)
	if clean == "" {
		return "", apperr.Validation("invalid %s %q", kind, s)
	}
	return clean, nil
}

func databaseName(s string) (string, error) {
	name, err := identifier("database name", s, MaxDatabaseNameLen)
	if err != nil {
		return "", err
	}
	if IsReservedDatabase(name) || IsReservedDatabase(s) {
		return "", apperr.Validation("database name %q is reserved", s)
	}
	return name, nil
}

func accountName(s string) (string, error) {
	name, err := identifier("database username", s, MaxUsernameLen)
	if err != nil {
		return "", err
	}
	if IsReservedUser(name) || IsReservedUser(s) {
		return "", apperr.Validation("database username %q is reserved", s)
	}
	return name, nil
}

// CreateDatabase creates name. An existing schema is an error so the panel
// never adopts a database it did not create.
func (m *MySQL) CreateDatabase(ctx context.Context, name string) error {
	name, err := databaseName(name)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("CREATE DATABASE %s CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", quoteIdent(name))
	if _, err := m.db.ExecContext(ctx, q); err != nil {
		return apperr.Operational(fmt.Sprintf("failed to create database %s", name), err)
	}
	m.logger.Info("database created", "database", name)
	return nil
}

// DeleteDatabase drops name if it exists.
func (m *MySQL) DeleteDatabase(ctx context.Context, name string) error {
	name, err := databaseName(name)
	if err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+quoteIdent(name)); err != nil {
		return apperr.Operational(fmt.Sprintf("failed to drop database %s", name), err)
	}
	m.logger.Info("database dropped", "database", name)
	return nil
}

// CreateUser creates username@host and fails if the account exists. The
// password is only ever a bind parameter.
func (m *MySQL) CreateUser(ctx context.Context, username, password string) error {
	username, err := accountName(username)
	if err != nil {
		return err
	}
	if password == "" {
		return apperr.Validation("database password is required")
	}
	if _, err := m.db.ExecContext(ctx, "CREATE USER ?@? IDENTIFIED BY ?", username, m.userHost, password); err != nil {
		return apperr.Operational(fmt.Sprintf("failed to create database user %s", username), err)
	}
	m.logger.Info("database user created", "user", username, "host", m.userHost)
	return nil
}

// ChangePassword sets a new password for username@host.
func (m *MySQL) ChangePassword(ctx context.Context, username, password string) error {
	username, err := accountName(username)
	if err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, "ALTER USER ?@? IDENTIFIED BY ?", username, m.userHost, password); err != nil {
		return apperr.Operational(fmt.Sprintf("failed to change password for %s", username), err)
	}
	return nil
}

// DeleteUser drops username@host if it exists.
func (m *MySQL) DeleteUser(ctx context.Context, username string) error {
	username, err := accountName(username)
	if err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, "DROP USER IF EXISTS ?@?", username, m.userHost); err != nil {
		return apperr.Operational(fmt.Sprintf("failed to drop database user %s", username), err)
	}
	m.logger.Info("database user dropped", "user", username, "host", m.userHost)
	return nil
}

// GrantPrivileges grants privileges on every table of database to username.
func (m *MySQL) GrantPrivileges(ctx context.Context, database, username string, privileges []string) error {
	database, err := databaseName(database)
	if err != nil {
		return err
	}
	username, err = accountName(username)
	if err != nil {
		return err
	}
	if len(privileges) == 0 {
		return apperr.Validation("no privileges to grant")
	}
	normalized := make([]string, 0, len(privileges))
	for _, p := range privileges {
		p = strings.ToUpper(strings.Join(strings.Fields(p), " "))
		if _, ok := grantable[p]; !ok {
			return apperr.Validation("unknown privilege %q", p)
		}
		normalized = append(normalized, p)
	}

	q := fmt.Sprintf("GRANT %s ON %s.* TO ?@?", strings.Join(normalized, ", "), quoteIdent(database))
	if _, err := m.db.ExecContext(ctx, q, username, m.userHost); err != nil {
		return apperr.Operational(fmt.Sprintf("failed to grant privileges on %s to %s", database, username), err)
	}
	if _, err := m.db.ExecContext(ctx, "FLUSH PRIVILEGES"); err != nil {
		return apperr.Operational("failed to flush privileges", err)
	}
	return nil
}
