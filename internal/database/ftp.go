package database

import (
	"context"
	"time"

	"github.com/panelkit/hostpanel/internal/models"
)

const ftpColumns = `id, user_id, username, home_dir, enabled, created_at`

func scanFTPUser(row interface{ Scan(...any) error }) (*models.FTPUser, error) {
	var f models.FTPUser
	if err := row.Scan(&f.ID, &f.UserID, &f.Username, &f.HomeDir, &f.Enabled, &f.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &f, nil
}

// FTP account operations
func (db *DB) CreateFTPUser(ctx context.Context, f *models.FTPUser) error {
	res, err := db.ExecContext(ctx,
		"INSERT INTO ftp_users (user_id, username, home_dir, enabled) VALUES (?, ?, ?, ?)",
		f.UserID, f.Username, f.HomeDir, f.Enabled,
	)
	if err != nil {
		return mapErr(err)
	}
	f.ID, err = res.LastInsertId()
	f.CreatedAt = time.Now()
	return err
}

func (db *DB) GetFTPUser(ctx context.Context, id int64) (*models.FTPUser, error) {
	return scanFTPUser(db.QueryRowContext(ctx, "SELECT "+ftpColumns+" FROM ftp_users WHERE id = ?", id))
}

func (db *DB) GetFTPUserByUsername(ctx context.Context, username string) (*models.FTPUser, error) {
	return scanFTPUser(db.QueryRowContext(ctx, "SELECT "+ftpColumns+" FROM ftp_users WHERE username = ?", username))
}

func (db *DB) ListFTPUsers(ctx context.Context, userID int64) ([]*models.FTPUser, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+ftpColumns+" FROM ftp_users WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.FTPUser
	for rows.Next() {
		f, err := scanFTPUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, f)
	}
	return users, rows.Err()
}

func (db *DB) UpdateFTPUserHome(ctx context.Context, id int64, homeDir string) error {
	res, err := db.ExecContext(ctx, "UPDATE ftp_users SET home_dir = ? WHERE id = ?", homeDir, id)
	if ok, err := deleted(res, err); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	return nil
}

func (db *DB) DeleteFTPUser(ctx context.Context, id int64) (bool, error) {
	return deleted(db.ExecContext(ctx, "DELETE FROM ftp_users WHERE id = ?", id))
}
