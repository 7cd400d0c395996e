package database

import (
	"context"
	"time"

	"github.com/panelkit/hostpanel/internal/models"
)

const databaseColumns = `id, user_id, name, engine, created_at`

func scanDatabase(row interface{ Scan(...any) error }) (*models.Database, error) {
	var d models.Database
	if err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Engine, &d.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

// Database operations
func (db *DB) CreateDatabase(ctx context.Context, d *models.Database) error {
	res, err := db.ExecContext(ctx,
		"INSERT INTO databases (user_id, name, engine) VALUES (?, ?, ?)",
		d.UserID, d.Name, d.Engine,
	)
	if err != nil {
		return mapErr(err)
	}
	d.ID, err = res.LastInsertId()
	d.CreatedAt = time.Now()
	return err
}

func (db *DB) GetDatabase(ctx context.Context, id int64) (*models.Database, error) {
	return scanDatabase(db.QueryRowContext(ctx, "SELECT "+databaseColumns+" FROM databases WHERE id = ?", id))
}

func (db *DB) GetDatabaseByName(ctx context.Context, name string) (*models.Database, error) {
	return scanDatabase(db.QueryRowContext(ctx, "SELECT "+databaseColumns+" FROM databases WHERE name = ?", name))
}

func (db *DB) ListDatabases(ctx context.Context, userID int64) ([]*models.Database, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+databaseColumns+" FROM databases WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dbs []*models.Database
	for rows.Next() {
		d, err := scanDatabase(rows)
		if err != nil {
			return nil, err
		}
		dbs = append(dbs, d)
	}
	return dbs, rows.Err()
}

// DeleteDatabase removes the database row; its users go with it
func (db *DB) DeleteDatabase(ctx context.Context, id int64) (bool, error) {
	return deleted(db.ExecContext(ctx, "DELETE FROM databases WHERE id = ?", id))
}

func (db *DB) CreateDatabaseUser(ctx context.Context, u *models.DatabaseUser) error {
	res, err := db.ExecContext(ctx,
		"INSERT INTO database_users (database_id, username, host) VALUES (?, ?, ?)",
		u.DatabaseID, u.Username, u.Host,
	)
	if err != nil {
		return mapErr(err)
	}
	u.ID, err = res.LastInsertId()
	u.CreatedAt = time.Now()
	return err
}

func (db *DB) GetDatabaseUserByUsername(ctx context.Context, username string) (*models.DatabaseUser, error) {
	var u models.DatabaseUser
	err := db.QueryRowContext(ctx,
		"SELECT id, database_id, username, host, created_at FROM database_users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.DatabaseID, &u.Username, &u.Host, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (db *DB) ListDatabaseUsers(ctx context.Context, databaseID int64) ([]*models.DatabaseUser, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, database_id, username, host, created_at FROM database_users WHERE database_id = ? ORDER BY id",
		databaseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.DatabaseUser
	for rows.Next() {
		var u models.DatabaseUser
		if err := rows.Scan(&u.ID, &u.DatabaseID, &u.Username, &u.Host, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
