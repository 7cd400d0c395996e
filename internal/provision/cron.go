package provision

import (
	"context"
	"strings"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/crontab"
	"github.com/panelkit/hostpanel/internal/models"
)

// CronStore is the persistence a CronJobService needs
type CronStore interface {
	UserStore
	CreateCronJob(ctx context.Context, job *models.CronJob) error
	GetCronJob(ctx context.Context, id int64) (*models.CronJob, error)
	ListCronJobs(ctx context.Context, userID int64) ([]*models.CronJob, error)
	UpdateCronJob(ctx context.Context, job *models.CronJob) error
	SetCronJobEnabled(ctx context.Context, id int64, enabled bool) error
	DeleteCronJob(ctx context.Context, id int64) (bool, error)
}

// CreateCronJobRequest is the input of CronJobService.Create
type CreateCronJobRequest struct {
	UserID   int64  `json:"user_id" validate:"required,gt=0"`
	Schedule string `json:"schedule" validate:"required,cronexpr"`
	Command  string `json:"command" validate:"required,max=1024,singleline"`
	Enabled  *bool  `json:"enabled"`
}

// UpdateCronJobRequest changes schedule and command of a job
type UpdateCronJobRequest struct {
	Schedule string `json:"schedule" validate:"required,cronexpr"`
	Command  string `json:"command" validate:"required,max=1024,singleline"`
}

// CronJobService manages scheduled jobs in the shared crontab
type CronJobService struct {
	base
	store     CronStore
	scheduler Scheduler
}

// NewCronJobService creates the cron service
func NewCronJobService(store CronStore, scheduler Scheduler, opts Options) *CronJobService {
	return &CronJobService{base: newBase(opts), store: store, scheduler: scheduler}
}

// Create persists the job and, unless it is created disabled, installs it.
func (s *CronJobService) Create(ctx context.Context, req *CreateCronJobRequest) (*models.CronJob, error) {
	req.Schedule = strings.Join(strings.Fields(req.Schedule), " ")
	req.Command = strings.TrimSpace(req.Command)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := crontab.ValidateCommand(req.Command); err != nil {
		return nil, err
	}

	owner, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, storeErr(err, "user")
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	job := &models.CronJob{UserID: owner.ID, Schedule: req.Schedule, Command: req.Command, Enabled: enabled}
	if err := s.store.CreateCronJob(ctx, job); err != nil {
		return nil, storeErr(err, "cron job")
	}

	if job.Enabled {
		if err := s.scheduler.CreateJob(ctx, job); err != nil {
			return nil, s.fail(ctx, "Failed to install cron job", "cron_job", err, []undo{
				deleteRecord("delete cron job record", func(ctx context.Context) (bool, error) {
					return s.store.DeleteCronJob(ctx, job.ID)
				}),
			})
		}
	}

	s.logger.Info("cron job created", "id", job.ID, "user_id", job.UserID, "schedule", job.Schedule, "enabled", job.Enabled)
	return job, nil
}

// Get returns a job by id
func (s *CronJobService) Get(ctx context.Context, id int64) (*models.CronJob, error) {
	job, err := s.store.GetCronJob(ctx, id)
	if err != nil {
		return nil, storeErr(err, "cron job")
	}
	return job, nil
}

// List returns the jobs of a user
func (s *CronJobService) List(ctx context.Context, userID int64) ([]*models.CronJob, error) {
	list, err := s.store.ListCronJobs(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "cron jobs")
	}
	return list, nil
}

// Update rewrites an enabled job's crontab line, then the record.
func (s *CronJobService) Update(ctx context.Context, id int64, req *UpdateCronJobRequest) (*models.CronJob, error) {
	req.Schedule = strings.Join(strings.Fields(req.Schedule), " ")
	req.Command = strings.TrimSpace(req.Command)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := crontab.ValidateCommand(req.Command); err != nil {
		return nil, err
	}

	old, err := s.store.GetCronJob(ctx, id)
	if err != nil {
		return nil, storeErr(err, "cron job")
	}
	updated := *old
	updated.Schedule = req.Schedule
	updated.Command = req.Command

	if old.Enabled {
		if err := s.scheduler.UpdateJob(ctx, old, &updated); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateCronJob(ctx, &updated); err != nil {
		var steps []undo
		if old.Enabled {
			steps = append(steps, undo{"restore crontab line", func(ctx context.Context) error {
				return s.scheduler.UpdateJob(ctx, &updated, old)
			}})
		}
		return nil, s.fail(ctx, "Failed to update cron job", "cron_job", storeErr(err, "cron job"), steps)
	}
	return &updated, nil
}

// SetEnabled installs or removes the crontab line, then records the flag.
func (s *CronJobService) SetEnabled(ctx context.Context, id int64, enabled bool) (*models.CronJob, error) {
	job, err := s.store.GetCronJob(ctx, id)
	if err != nil {
		return nil, storeErr(err, "cron job")
	}
	if job.Enabled == enabled {
		return job, nil
	}

	apply, revert := s.scheduler.CreateJob, s.scheduler.DeleteJob
	if !enabled {
		apply, revert = revert, apply
	}
	if err := apply(ctx, job); err != nil {
		return nil, err
	}
	if err := s.store.SetCronJobEnabled(ctx, id, enabled); err != nil {
		return nil, s.fail(ctx, "Failed to toggle cron job", "cron_job", storeErr(err, "cron job"), []undo{
			{"revert crontab", func(ctx context.Context) error { return revert(ctx, job) }},
		})
	}
	job.Enabled = enabled
	s.logger.Info("cron job toggled", "id", job.ID, "enabled", enabled)
	return job, nil
}

// Delete removes the crontab line of an enabled job and the record.
func (s *CronJobService) Delete(ctx context.Context, id int64) (*apperr.RollbackReport, error) {
	job, err := s.store.GetCronJob(ctx, id)
	if err != nil {
		return nil, storeErr(err, "cron job")
	}
	var external []undo
	if job.Enabled {
		external = append(external, undo{"remove crontab line", func(ctx context.Context) error { return s.scheduler.DeleteJob(ctx, job) }})
	}
	report, err := s.teardown(ctx, "cron_job", external, deleteRecord("delete cron job record", func(ctx context.Context) (bool, error) {
		return s.store.DeleteCronJob(ctx, job.ID)
	}))
	if err != nil {
		return report, err
	}
	s.logger.Info("cron job deleted", "id", job.ID)
	return report, nil
}
