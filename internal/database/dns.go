package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/panelkit/hostpanel/internal/models"
)

// Domain operations
func (db *DB) CreateDomain(ctx context.Context, d *models.Domain) error {
	res, err := db.ExecContext(ctx, "INSERT INTO domains (site_id, name) VALUES (?, ?)", d.SiteID, d.Name)
	if err != nil {
		return mapErr(err)
	}
	d.ID, err = res.LastInsertId()
	d.CreatedAt = time.Now()
	return err
}

func (db *DB) GetDomain(ctx context.Context, id int64) (*models.Domain, error) {
	var d models.Domain
	err := db.QueryRowContext(ctx, "SELECT id, site_id, name, created_at FROM domains WHERE id = ?", id).
		Scan(&d.ID, &d.SiteID, &d.Name, &d.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (db *DB) GetDomainByName(ctx context.Context, name string) (*models.Domain, error) {
	var d models.Domain
	err := db.QueryRowContext(ctx, "SELECT id, site_id, name, created_at FROM domains WHERE name = ?", name).
		Scan(&d.ID, &d.SiteID, &d.Name, &d.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (db *DB) ListDomains(ctx context.Context, siteID int64) ([]*models.Domain, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, site_id, name, created_at FROM domains WHERE site_id = ? ORDER BY id", siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []*models.Domain
	for rows.Next() {
		var d models.Domain
		if err := rows.Scan(&d.ID, &d.SiteID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		domains = append(domains, &d)
	}
	return domains, rows.Err()
}

// DeleteDomain removes the zone row; its records go with it
func (db *DB) DeleteDomain(ctx context.Context, id int64) (bool, error) {
	return deleted(db.ExecContext(ctx, "DELETE FROM domains WHERE id = ?", id))
}

func (db *DB) CreateDNSRecord(ctx context.Context, r *models.DNSRecord) error {
	var prio sql.NullInt64
	if r.Priority != nil {
		prio = sql.NullInt64{Int64: int64(*r.Priority), Valid: true}
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO dns_records (domain_id, name, type, content, ttl, priority) VALUES (?, ?, ?, ?, ?, ?)",
		r.DomainID, r.Name, r.Type, r.Content, r.TTL, prio,
	)
	if err != nil {
		return mapErr(err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

func scanDNSRecord(row interface{ Scan(...any) error }) (*models.DNSRecord, error) {
	var r models.DNSRecord
	var prio sql.NullInt64
	if err := row.Scan(&r.ID, &r.DomainID, &r.Name, &r.Type, &r.Content, &r.TTL, &prio); err != nil {
		return nil, mapErr(err)
	}
	if prio.Valid {
		p := int(prio.Int64)
		r.Priority = &p
	}
	return &r, nil
}

func (db *DB) GetDNSRecord(ctx context.Context, id int64) (*models.DNSRecord, error) {
	return scanDNSRecord(db.QueryRowContext(ctx,
		"SELECT id, domain_id, name, type, content, ttl, priority FROM dns_records WHERE id = ?", id))
}

func (db *DB) ListDNSRecords(ctx context.Context, domainID int64) ([]*models.DNSRecord, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, domain_id, name, type, content, ttl, priority FROM dns_records WHERE domain_id = ? ORDER BY id",
		domainID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.DNSRecord
	for rows.Next() {
		r, err := scanDNSRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (db *DB) DeleteDNSRecord(ctx context.Context, id int64) (bool, error) {
	return deleted(db.ExecContext(ctx, "DELETE FROM dns_records WHERE id = ?", id))
}
