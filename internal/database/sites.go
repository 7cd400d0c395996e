package database

import (
	"context"
	"time"

	"github.com/panelkit/hostpanel/internal/models"
)

const siteColumns = `id, user_id, domain, document_root, php_version, ssl_enabled, created_at`

func scanSite(row interface{ Scan(...any) error }) (*models.Site, error) {
	var s models.Site
	if err := row.Scan(&s.ID, &s.UserID, &s.Domain, &s.DocumentRoot, &s.PHPVersion, &s.SSL, &s.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

// Site operations
func (db *DB) CreateSite(ctx context.Context, site *models.Site) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO sites (user_id, domain, document_root, php_version, ssl_enabled)
		 VALUES (?, ?, ?, ?, ?)`,
		site.UserID, site.Domain, site.DocumentRoot, site.PHPVersion, site.SSL,
	)
	if err != nil {
		return mapErr(err)
	}
	site.ID, err = res.LastInsertId()
	site.CreatedAt = time.Now()
	return err
}

func (db *DB) GetSite(ctx context.Context, id int64) (*models.Site, error) {
	return scanSite(db.QueryRowContext(ctx, "SELECT "+siteColumns+" FROM sites WHERE id = ?", id))
}

func (db *DB) GetSiteByDomain(ctx context.Context, domain string) (*models.Site, error) {
	return scanSite(db.QueryRowContext(ctx, "SELECT "+siteColumns+" FROM sites WHERE domain = ?", domain))
}

func (db *DB) ListSites(ctx context.Context, userID int64) ([]*models.Site, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+siteColumns+" FROM sites WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*models.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// DeleteSite reports whether a row was removed
func (db *DB) DeleteSite(ctx context.Context, id int64) (bool, error) {
	return deleted(db.ExecContext(ctx, "DELETE FROM sites WHERE id = ?", id))
}
