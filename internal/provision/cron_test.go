package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/database"
)

func newCronFixture(t *testing.T) (*database.DB, *recorder, *CronJobService) {
	t.Helper()
	store := openStore(t)
	rec := newRecorder()
	return store, rec, NewCronJobService(store, fakeScheduler{rec}, Options{})
}

func TestCronCreate(t *testing.T) {
	store, rec, svc := newCronFixture(t)
	ctx := context.Background()
	owner := createOwner(t, store, "alice")

	job, err := svc.Create(ctx, &CreateCronJobRequest{UserID: owner.ID, Schedule: "*/5   *  * * *", Command: "php artisan schedule:run"})
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", job.Schedule)
	assert.True(t, job.Enabled)
	assert.Equal(t, 1, rec.count("cron.CreateJob"))

	disabled := false
	job, err = svc.Create(ctx, &CreateCronJobRequest{UserID: owner.ID, Schedule: "0 0 * * *", Command: "backup.sh", Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, job.Enabled)
	assert.Equal(t, 1, rec.count("cron.CreateJob"))
}

func TestCronCreateRejectsInput(t *testing.T) {
	store, rec, svc := newCronFixture(t)
	owner := createOwner(t, store, "alice")

	tests := []*CreateCronJobRequest{
		{UserID: owner.ID, Schedule: "* * *", Command: "true"},
		{UserID: owner.ID, Schedule: "61 * * * *", Command: "true"},
		{UserID: owner.ID, Schedule: "* * * * *", Command: "echo a\necho b"},
		{UserID: owner.ID, Schedule: "* * * * *", Command: "rm -rf /"},
		{UserID: owner.ID, Schedule: "* * * * *", Command: ""},
	}
	for _, req := range tests {
		_, err := svc.Create(context.Background(), req)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "%q %q: %v", req.Schedule, req.Command, err)
	}
	assert.Empty(t, rec.Calls())
}

func TestCronCreateRollsBackRecord(t *testing.T) {
	store, rec, svc := newCronFixture(t)
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	rec.failOn["cron.CreateJob"] = errors.New("crontab failed")

	_, err := svc.Create(ctx, &CreateCronJobRequest{UserID: owner.ID, Schedule: "0 3 * * *", Command: "backup.sh"})
	assert.True(t, apperr.Is(err, apperr.KindOperational))

	jobs, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestCronToggle(t *testing.T) {
	store, rec, svc := newCronFixture(t)
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	job, err := svc.Create(ctx, &CreateCronJobRequest{UserID: owner.ID, Schedule: "0 3 * * *", Command: "backup.sh"})
	require.NoError(t, err)

	job, err = svc.SetEnabled(ctx, job.ID, false)
	require.NoError(t, err)
	assert.False(t, job.Enabled)
	assert.Equal(t, 1, rec.count("cron.DeleteJob"))

	// already disabled
	_, err = svc.SetEnabled(ctx, job.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count("cron.DeleteJob"))

	rec.failOn["cron.CreateJob"] = errors.New("crontab failed")
	_, err = svc.SetEnabled(ctx, job.ID, true)
	require.Error(t, err)
	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
}

func TestCronUpdate(t *testing.T) {
	store, rec, svc := newCronFixture(t)
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	job, err := svc.Create(ctx, &CreateCronJobRequest{UserID: owner.ID, Schedule: "0 3 * * *", Command: "backup.sh"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, job.ID, &UpdateCronJobRequest{Schedule: "30 4 * * 1", Command: "backup.sh --full"})
	require.NoError(t, err)
	assert.Equal(t, "30 4 * * 1", updated.Schedule)
	assert.Equal(t, 1, rec.count("cron.UpdateJob"))

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "backup.sh --full", got.Command)

	_, err = svc.Update(ctx, 999, &UpdateCronJobRequest{Schedule: "* * * * *", Command: "true"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCronDelete(t *testing.T) {
	store, rec, svc := newCronFixture(t)
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	job, err := svc.Create(ctx, &CreateCronJobRequest{UserID: owner.ID, Schedule: "0 3 * * *", Command: "backup.sh"})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count("cron.DeleteJob"))

	_, err = svc.Get(ctx, job.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
