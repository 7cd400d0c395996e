package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/panelkit/hostpanel/internal/models"
)

const userColumns = `id, username, email, password_hash, COALESCE(role_id, 0), created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.RoleID, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	var roleID sql.NullInt64
	if u.RoleID != 0 {
		roleID = sql.NullInt64{Int64: u.RoleID, Valid: true}
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role_id) VALUES (?, ?, ?, ?)",
		u.Username, u.Email, u.PasswordHash, roleID,
	)
	if err != nil {
		return mapErr(err)
	}
	u.ID, err = res.LastInsertId()
	u.CreatedAt = time.Now()
	return err
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var r models.Role
	err := db.QueryRowContext(ctx, "SELECT id, name FROM roles WHERE name = ?", name).Scan(&r.ID, &r.Name)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}
