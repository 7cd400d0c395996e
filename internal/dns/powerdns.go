package dns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
)

// PowerDNS writes zones straight into the generic SQL backend schema
// (domains and records tables).
type PowerDNS struct {
	db       *sql.DB
	dollar   bool
	settings Settings
	now      func() time.Time
	logger   *slog.Logger
}

// OpenPowerDNS connects to the PowerDNS database with the mysql or pgx driver.
func OpenPowerDNS(cfg models.PowerDNSConfig) (*sql.DB, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	var dsn string
	switch cfg.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = cfg.Database
		mc.ParseTime = true
		dsn = mc.FormatDSN()
	case "pgx":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   addr,
			Path:   "/" + cfg.Database,
		}
		dsn = u.String()
	default:
		return nil, fmt.Errorf("unknown powerdns driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open powerdns database: %w", err)
	}
	db.SetMaxOpenConns(4)
	return db, nil
}

// NewPowerDNS creates the SQL backend. driver selects the placeholder style.
func NewPowerDNS(db *sql.DB, driver string, settings Settings, logger *slog.Logger) *PowerDNS {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.DefaultTTL <= 0 {
		settings.DefaultTTL = 3600
	}
	return &PowerDNS{
		db:       db,
		dollar:   driver == "pgx" || driver == "postgres",
		settings: settings,
		now:      time.Now,
		logger:   logger,
	}
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func rebind(dollar bool, q string) string {
	if !dollar {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *PowerDNS) exec(ctx context.Context, q queryer, query string, args ...any) error {
	_, err := q.ExecContext(ctx, rebind(p.dollar, query), args...)
	return err
}

func (p *PowerDNS) domainID(ctx context.Context, q queryer, domain string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, rebind(p.dollar, "SELECT id FROM domains WHERE name = ?"), domain).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound("zone %s not found", domain)
	}
	if err != nil {
		return 0, apperr.Operational("failed to look up zone", err)
	}
	return id, nil
}

func (p *PowerDNS) soaContent(serial string) string {
	primary := "localhost"
	if len(p.settings.Nameservers) > 0 {
		primary = strings.TrimSuffix(p.settings.Nameservers[0], ".")
	}
	hostmaster := strings.TrimSuffix(p.settings.Hostmaster, ".")
	return fmt.Sprintf("%s %s %s 3600 1800 604800 86400", primary, hostmaster, serial)
}

// CreateZone inserts the domain with its SOA and NS records in one transaction.
func (p *PowerDNS) CreateZone(ctx context.Context, domain string) error {
	if err := ValidateZoneName(domain); err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Operational("failed to begin powerdns transaction", err)
	}
	defer tx.Rollback()

	if err := p.exec(ctx, tx, "INSERT INTO domains (name, type) VALUES (?, 'NATIVE')", domain); err != nil {
		return apperr.Operational(fmt.Sprintf("failed to create zone %s", domain), err)
	}
	id, err := p.domainID(ctx, tx, domain)
	if err != nil {
		return err
	}

	ttl := p.settings.DefaultTTL
	insert := "INSERT INTO records (domain_id, name, type, content, ttl, prio) VALUES (?, ?, ?, ?, ?, ?)"
	if err := p.exec(ctx, tx, insert, id, domain, "SOA", p.soaContent(NextSerial("", p.now())), ttl, 0); err != nil {
		return apperr.Operational("failed to create SOA record", err)
	}
	for _, ns := range p.settings.Nameservers {
		if err := p.exec(ctx, tx, insert, id, domain, "NS", strings.TrimSuffix(ns, "."), ttl, 0); err != nil {
			return apperr.Operational("failed to create NS record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Operational("failed to commit zone", err)
	}
	p.logger.Info("zone created", "domain", domain, "backend", "powerdns")
	return nil
}

// DeleteZone removes the domain and all of its records.
func (p *PowerDNS) DeleteZone(ctx context.Context, domain string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Operational("failed to begin powerdns transaction", err)
	}
	defer tx.Rollback()

	id, err := p.domainID(ctx, tx, domain)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.exec(ctx, tx, "DELETE FROM records WHERE domain_id = ?", id); err != nil {
		return apperr.Operational("failed to delete zone records", err)
	}
	if err := p.exec(ctx, tx, "DELETE FROM domains WHERE id = ?", id); err != nil {
		return apperr.Operational("failed to delete zone", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Operational("failed to commit zone deletion", err)
	}
	return nil
}

// AddRecord inserts rec and bumps the SOA serial.
func (p *PowerDNS) AddRecord(ctx context.Context, domain string, rec *models.DNSRecord) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}
	return p.change(ctx, domain, func(tx *sql.Tx, id int64) error {
		return p.insertRecord(ctx, tx, id, domain, rec)
	})
}

// UpdateRecord replaces old with rec.
func (p *PowerDNS) UpdateRecord(ctx context.Context, domain string, old, rec *models.DNSRecord) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}
	return p.change(ctx, domain, func(tx *sql.Tx, id int64) error {
		if err := p.deleteRecord(ctx, tx, id, domain, old); err != nil {
			return err
		}
		return p.insertRecord(ctx, tx, id, domain, rec)
	})
}

// DeleteRecord removes the rows matching rec's name, type and content.
func (p *PowerDNS) DeleteRecord(ctx context.Context, domain string, rec *models.DNSRecord) error {
	return p.change(ctx, domain, func(tx *sql.Tx, id int64) error {
		return p.deleteRecord(ctx, tx, id, domain, rec)
	})
}

func (p *PowerDNS) insertRecord(ctx context.Context, tx *sql.Tx, id int64, domain string, rec *models.DNSRecord) error {
	ttl := rec.TTL
	if ttl <= 0 {
		ttl = p.settings.DefaultTTL
	}
	prio := 0
	if rec.Priority != nil {
		prio = *rec.Priority
	}
	err := p.exec(ctx, tx, "INSERT INTO records (domain_id, name, type, content, ttl, prio) VALUES (?, ?, ?, ?, ?, ?)",
		id, AbsoluteName(rec.Name, domain), strings.ToUpper(rec.Type), sqlContent(rec), ttl, prio)
	if err != nil {
		return apperr.Operational("failed to insert record", err)
	}
	return nil
}

func (p *PowerDNS) deleteRecord(ctx context.Context, tx *sql.Tx, id int64, domain string, rec *models.DNSRecord) error {
	err := p.exec(ctx, tx, "DELETE FROM records WHERE domain_id = ? AND name = ? AND type = ? AND content = ?",
		id, AbsoluteName(rec.Name, domain), strings.ToUpper(rec.Type), sqlContent(rec))
	if err != nil {
		return apperr.Operational("failed to delete record", err)
	}
	return nil
}

// sqlContent is the content as PowerDNS stores it: hostnames without the
// trailing dot, TXT data quoted.
func sqlContent(rec *models.DNSRecord) string {
	content := strings.TrimSpace(rec.Content)
	switch t := strings.ToUpper(rec.Type); {
	case fqdnTypes[t]:
		return strings.TrimSuffix(content, ".")
	case t == "TXT":
		return quoteTXT(content)
	}
	return content
}

func (p *PowerDNS) change(ctx context.Context, domain string, fn func(tx *sql.Tx, id int64) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Operational("failed to begin powerdns transaction", err)
	}
	defer tx.Rollback()

	id, err := p.domainID(ctx, tx, domain)
	if err != nil {
		return err
	}
	if err := fn(tx, id); err != nil {
		return err
	}
	if err := p.bumpSOA(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Operational("failed to commit record change", err)
	}
	return nil
}

func (p *PowerDNS) bumpSOA(ctx context.Context, tx *sql.Tx, id int64) error {
	var content string
	err := tx.QueryRowContext(ctx, rebind(p.dollar, "SELECT content FROM records WHERE domain_id = ? AND type = 'SOA'"), id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return apperr.Operational("failed to read SOA record", err)
	}
	fields := strings.Fields(content)
	if len(fields) < 3 {
		return nil
	}
	fields[2] = NextSerial(fields[2], p.now())
	if err := p.exec(ctx, tx, "UPDATE records SET content = ? WHERE domain_id = ? AND type = 'SOA'", strings.Join(fields, " "), id); err != nil {
		return apperr.Operational("failed to update SOA serial", err)
	}
	return nil
}
