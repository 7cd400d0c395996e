package database

import (
	"context"
	"time"

	"github.com/panelkit/hostpanel/internal/models"
)

const cronColumns = `id, user_id, schedule, command, enabled, created_at`

func scanCronJob(row interface{ Scan(...any) error }) (*models.CronJob, error) {
	var j models.CronJob
	if err := row.Scan(&j.ID, &j.UserID, &j.Schedule, &j.Command, &j.Enabled, &j.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &j, nil
}

// Cron job operations
func (db *DB) CreateCronJob(ctx context.Context, job *models.CronJob) error {
	res, err := db.ExecContext(ctx,
		"INSERT INTO cron_jobs (user_id, schedule, command, enabled) VALUES (?, ?, ?, ?)",
		job.UserID, job.Schedule, job.Command, job.Enabled,
	)
	if err != nil {
		return mapErr(err)
	}
	job.ID, err = res.LastInsertId()
	job.CreatedAt = time.Now()
	return err
}

func (db *DB) GetCronJob(ctx context.Context, id int64) (*models.CronJob, error) {
	return scanCronJob(db.QueryRowContext(ctx, "SELECT "+cronColumns+" FROM cron_jobs WHERE id = ?", id))
}

func (db *DB) ListCronJobs(ctx context.Context, userID int64) ([]*models.CronJob, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+cronColumns+" FROM cron_jobs WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.CronJob
	for rows.Next() {
		j, err := scanCronJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (db *DB) SetCronJobEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := db.ExecContext(ctx, "UPDATE cron_jobs SET enabled = ? WHERE id = ?", enabled, id)
	if ok, err := deleted(res, err); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	return nil
}

func (db *DB) UpdateCronJob(ctx context.Context, job *models.CronJob) error {
	res, err := db.ExecContext(ctx, "UPDATE cron_jobs SET schedule = ?, command = ? WHERE id = ?", job.Schedule, job.Command, job.ID)
	if ok, err := deleted(res, err); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	return nil
}

func (db *DB) DeleteCronJob(ctx context.Context, id int64) (bool, error) {
	return deleted(db.ExecContext(ctx, "DELETE FROM cron_jobs WHERE id = ?", id))
}
