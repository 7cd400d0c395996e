package api

import (
	"net/http"
	"time"

	"github.com/panelkit/hostpanel/internal/crontab"
	"github.com/panelkit/hostpanel/internal/models"
	"github.com/panelkit/hostpanel/internal/provision"
)

// CronJob is a job as returned by the API, with a readable schedule
type CronJob struct {
	*models.CronJob
	Description string     `json:"description"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

func cronView(job *models.CronJob) *CronJob {
	view := &CronJob{CronJob: job, Description: crontab.Describe(job.Schedule)}
	if job.Enabled {
		if next, err := crontab.NextRun(job.Schedule, time.Now()); err == nil {
			view.NextRun = &next
		}
	}
	return view
}

func (s *Server) listCronJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.queryID(w, r, "user_id")
	if !ok {
		return
	}
	jobs, err := s.svc.Cron.List(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]*CronJob, len(jobs))
	for i, j := range jobs {
		views[i] = cronView(j)
	}
	s.success(w, map[string]interface{}{
		"cron_jobs": views,
		"total":     len(views),
	})
}

func (s *Server) createCronJob(w http.ResponseWriter, r *http.Request) {
	var req provision.CreateCronJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.svc.Cron.Create(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.created(w, cronView(job))
}

func (s *Server) getCronJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	job, err := s.svc.Cron.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, cronView(job))
}

func (s *Server) updateCronJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	var req provision.UpdateCronJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.svc.Cron.Update(r.Context(), id, &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, cronView(job))
}

func (s *Server) deleteCronJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	report, err := s.svc.Cron.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.deleted(w, report)
}

func (s *Server) enableCronJob(w http.ResponseWriter, r *http.Request) {
	s.toggleCronJob(w, r, true)
}

func (s *Server) disableCronJob(w http.ResponseWriter, r *http.Request) {
	s.toggleCronJob(w, r, false)
}

func (s *Server) toggleCronJob(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	job, err := s.svc.Cron.SetEnabled(r.Context(), id, enabled)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, cronView(job))
}
