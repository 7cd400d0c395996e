// Package provision holds the services that create and tear down hosting
// resources. Each service validates, persists a provisional record, drives
// one or more adapters and, on failure, undoes what it already did.
package provision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/database"
	"github.com/panelkit/hostpanel/internal/models"
)

// DefaultRollbackTimeout bounds each undo step.
const DefaultRollbackTimeout = 30 * time.Second

// Adapter contracts the services depend on.

type WebServer interface {
	CreateSite(ctx context.Context, site *models.Site, phpSocket string) error
	DeleteSite(ctx context.Context, domain string) error
}

type PHPRuntime interface {
	Supports(version string) bool
	Installed(version string) bool
	SocketPath(version, domain string) string
	CreatePool(ctx context.Context, site *models.Site) error
	DeletePool(ctx context.Context, version, domain string) error
	ListAvailable() []models.PHPRuntime
}

type SiteFiles interface {
	OwnerDir(username string) string
	DocumentRoot(username, domain string) string
	Contains(path string) bool
	EnsureOwnerDir(ctx context.Context, username string) error
	CreateDocumentRoot(ctx context.Context, path string) error
	WriteLanding(ctx context.Context, site *models.Site) error
	RemoveDocumentRoot(ctx context.Context, path string) error
}

type DatabaseEngine interface {
	CreateDatabase(ctx context.Context, name string) error
	DeleteDatabase(ctx context.Context, name string) error
	CreateUser(ctx context.Context, username, password string) error
	ChangePassword(ctx context.Context, username, password string) error
	DeleteUser(ctx context.Context, username string) error
	GrantPrivileges(ctx context.Context, database, username string, privileges []string) error
	UserHost() string
}

type FTPServer interface {
	CreateUser(ctx context.Context, username, password, homeDir string) error
	UpdateUser(ctx context.Context, username, homeDir string) error
	DeleteUser(ctx context.Context, username string) error
	ChangePassword(ctx context.Context, username, password string) error
}

type Scheduler interface {
	CreateJob(ctx context.Context, job *models.CronJob) error
	UpdateJob(ctx context.Context, old, job *models.CronJob) error
	DeleteJob(ctx context.Context, job *models.CronJob) error
}

// UserStore resolves resource owners.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Options shared by every service
type Options struct {
	Logger          *slog.Logger
	RollbackTimeout time.Duration
}

type base struct {
	logger          *slog.Logger
	rollbackTimeout time.Duration
}

func newBase(opts Options) base {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RollbackTimeout <= 0 {
		opts.RollbackTimeout = DefaultRollbackTimeout
	}
	return base{logger: opts.Logger, rollbackTimeout: opts.RollbackTimeout}
}

// undo is one compensating action.
type undo struct {
	name string
	fn   func(ctx context.Context) error
}

// undoStack records compensations as forward steps complete.
type undoStack []undo

func (s *undoStack) push(name string, fn func(ctx context.Context) error) {
	*s = append(*s, undo{name: name, fn: fn})
}

// reversed returns the steps last-in first-out.
func (s undoStack) reversed() []undo {
	out := make([]undo, len(s))
	for i, u := range s {
		out[len(s)-1-i] = u
	}
	return out
}

// runSteps executes every step with its own timeout. A failing step never
// prevents the next one from running.
func (b *base) runSteps(ctx context.Context, resource string, steps []undo) *apperr.RollbackReport {
	report := &apperr.RollbackReport{}
	parent := context.WithoutCancel(ctx)
	for _, step := range steps {
		stepCtx, cancel := context.WithTimeout(parent, b.rollbackTimeout)
		err := step.fn(stepCtx)
		if err == nil && stepCtx.Err() != nil {
			err = stepCtx.Err()
		}
		cancel()
		report.Add(step.name, err)
		if err != nil {
			b.logger.Error("rollback step failed", "resource", resource, "step", step.name, "error", err)
		} else {
			b.logger.Info("rollback step done", "resource", resource, "step", step.name)
		}
	}
	return report
}

// fail rolls back steps and returns the error reaching the caller. Sandbox
// rejections keep their security kind; everything else is operational.
func (b *base) fail(ctx context.Context, msg, resource string, cause error, steps []undo) error {
	report := b.runSteps(ctx, resource, steps)
	b.logger.Error(msg, "resource", resource, "error", cause, "rollback", report.String())

	kind := apperr.KindOperational
	if apperr.Is(cause, apperr.KindSecurity) {
		kind = apperr.KindSecurity
	}
	return &apperr.Error{Kind: kind, Msg: msg, Err: cause, Rollback: report}
}

// teardown runs best-effort external removal followed by the store delete.
// Only a failed store delete is returned as an error.
func (b *base) teardown(ctx context.Context, resource string, external []undo, record undo) (*apperr.RollbackReport, error) {
	report := b.runSteps(ctx, resource, external)
	if err := record.fn(ctx); err != nil {
		report.Add(record.name, err)
		return report, &apperr.Error{Kind: apperr.KindOperational, Msg: "failed to delete " + resource, Err: err, Rollback: report}
	}
	report.Add(record.name, nil)
	if failed := report.Failed(); len(failed) > 0 {
		b.logger.Warn("resource deleted with external leftovers", "resource", resource, "failed", failed)
	}
	return report, nil
}

// storeErr maps store sentinels onto error kinds.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, database.ErrDuplicate):
		return apperr.Conflict("%s already exists", what)
	default:
		return apperr.Operational("failed to access store", err)
	}
}

// ensureAbsent returns a conflict when lookup finds an existing record.
func ensureAbsent(err error, what string) error {
	if err == nil {
		return apperr.Conflict("%s already exists", what)
	}
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	return apperr.Operational("failed to access store", err)
}

// deleteRecord adapts a store delete func to an undo step.
func deleteRecord(name string, del func(ctx context.Context) (bool, error)) undo {
	return undo{name: name, fn: func(ctx context.Context) error {
		_, err := del(ctx)
		return err
	}}
}
