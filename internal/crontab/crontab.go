package crontab

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
	"github.com/panelkit/hostpanel/internal/sandbox"
)

const header = "# hostpanel managed cron jobs. Lines tagged below are rewritten by the panel."

var tagPattern = regexp.MustCompile(`^# hostpanel user=(\d+) job=(\d+)$`)

// Entry is one panel-owned line of the crontab.
type Entry struct {
	UserID   int64
	JobID    int64
	Schedule string
	Command  string
}

// Crontab edits the crontab of the shared panel user. Every job line is
// preceded by an ownership tag so jobs of different panel users coexist.
type Crontab struct {
	runner  sandbox.Runner
	user    string
	tempDir string
	locks   *sandbox.FileLocks
	logger  *slog.Logger
}

// New creates the cron adapter for the crontab of user
func New(runner sandbox.Runner, user, tempDir string, locks *sandbox.FileLocks, logger *slog.Logger) *Crontab {
	if logger == nil {
		logger = slog.Default()
	}
	if locks == nil {
		locks = sandbox.NewFileLocks()
	}
	return &Crontab{runner: runner, user: user, tempDir: tempDir, locks: locks, logger: logger}
}

// Tag returns the ownership comment written above job's line
func Tag(job *models.CronJob) string {
	return fmt.Sprintf("# hostpanel user=%d job=%d", job.UserID, job.ID)
}

// Line returns the crontab line of job
func Line(job *models.CronJob) string {
	return strings.TrimSpace(job.Schedule) + " " + EscapeCommand(strings.TrimSpace(job.Command))
}

// EscapeCommand escapes every % cron would otherwise turn into a newline.
// A % that is already escaped is left alone.
func EscapeCommand(cmd string) string {
	var b strings.Builder
	for i := 0; i < len(cmd); i++ {
		if cmd[i] == '%' && (i == 0 || cmd[i-1] != '\\') {
			b.WriteByte('\\')
		}
		b.WriteByte(cmd[i])
	}
	return b.String()
}

func unescapeCommand(cmd string) string {
	return strings.ReplaceAll(cmd, `\%`, "%")
}

// CreateJob appends job to the crontab.
func (c *Crontab) CreateJob(ctx context.Context, job *models.CronJob) error {
	if err := ValidateSchedule(job.Schedule); err != nil {
		return err
	}
	if err := ValidateCommand(job.Command); err != nil {
		return err
	}
	return c.edit(ctx, func(lines []string) []string {
		return append(removeJob(lines, job), Tag(job), Line(job))
	})
}

// UpdateJob replaces old with job in one write.
func (c *Crontab) UpdateJob(ctx context.Context, old, job *models.CronJob) error {
	if err := ValidateSchedule(job.Schedule); err != nil {
		return err
	}
	if err := ValidateCommand(job.Command); err != nil {
		return err
	}
	return c.edit(ctx, func(lines []string) []string {
		return append(removeJob(removeJob(lines, old), job), Tag(job), Line(job))
	})
}

// DeleteJob removes job's tagged line. Only a line containing job's command
// directly under its tag is removed.
func (c *Crontab) DeleteJob(ctx context.Context, job *models.CronJob) error {
	return c.edit(ctx, func(lines []string) []string {
		return removeJob(lines, job)
	})
}

// ListJobs returns every panel-owned entry in the crontab.
func (c *Crontab) ListJobs(ctx context.Context) ([]Entry, error) {
	unlock := c.locks.Lock(c.lockKey())
	defer unlock()

	lines, err := c.read(ctx)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for i := 0; i+1 < len(lines); i++ {
		m := tagPattern.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			continue
		}
		fields := strings.Fields(lines[i+1])
		if len(fields) < 6 {
			continue
		}
		userID, _ := strconv.ParseInt(m[1], 10, 64)
		jobID, _ := strconv.ParseInt(m[2], 10, 64)
		entries = append(entries, Entry{
			UserID:   userID,
			JobID:    jobID,
			Schedule: strings.Join(fields[:5], " "),
			Command:  unescapeCommand(strings.Join(fields[5:], " ")),
		})
		i++
	}
	return entries, nil
}

func removeJob(lines []string, job *models.CronJob) []string {
	tag := Tag(job)
	cmd := EscapeCommand(strings.TrimSpace(job.Command))
	kept := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == tag && i+1 < len(lines) && strings.Contains(lines[i+1], cmd) {
			i++
			continue
		}
		kept = append(kept, lines[i])
	}
	return kept
}

func (c *Crontab) lockKey() string {
	return "crontab:" + c.user
}

func (c *Crontab) edit(ctx context.Context, change func([]string) []string) error {
	unlock := c.locks.Lock(c.lockKey())
	defer unlock()

	lines, err := c.read(ctx)
	if err != nil {
		return err
	}
	if len(lines) == 0 || lines[0] != header {
		lines = append([]string{header}, lines...)
	}
	return c.write(ctx, change(lines))
}

// read returns the current crontab lines; a missing crontab is empty.
func (c *Crontab) read(ctx context.Context) ([]string, error) {
	res, err := c.runner.RunPrivileged(ctx, "crontab", "-l", "-u", c.user)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		if strings.Contains(res.Output, "no crontab for") {
			return nil, nil
		}
		return nil, sandbox.Failure("failed to read crontab", res, nil)
	}
	content := strings.TrimRight(res.Output, "\n")
	if content == "" {
		return nil, nil
	}
	return strings.Split(content, "\n"), nil
}

func (c *Crontab) write(ctx context.Context, lines []string) error {
	f, err := os.CreateTemp(c.tempDir, "hostpanel-cron-*")
	if err != nil {
		return apperr.Operational("failed to create crontab file", err)
	}
	path := f.Name()
	defer os.Remove(path)

	content := strings.Join(lines, "\n") + "\n"
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return apperr.Operational("failed to write crontab file", err)
	}
	if err := f.Close(); err != nil {
		return apperr.Operational("failed to write crontab file", err)
	}

	res, err := c.runner.RunPrivilegedInput(ctx, path, "crontab", "-u", c.user, "-")
	if err := sandbox.Failure("failed to install crontab", res, err); err != nil {
		return err
	}
	c.logger.Debug("crontab installed", "user", c.user, "lines", len(lines))
	return nil
}
