package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/user"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/panelkit/hostpanel/internal/apperr"
)

// metaChars may never appear in a command name, allowlisted or not.
const metaChars = ";|&$`<>(){}[]\\"

// DefaultAllowed is the general allowlist of program names.
var DefaultAllowed = []string{
	"systemctl", "nginx", "mkdir", "rm", "cp", "mv", "chmod", "chown", "ln", "cat", "test", "id",
	"useradd", "usermod", "userdel", "named-checkzone", "named-checkconf", "rndc",
	"mysql", "mysqladmin", "pure-pw", "crontab", "printf",
}

// DefaultPrivileged must be a subset of DefaultAllowed.
var DefaultPrivileged = []string{
	"systemctl", "nginx", "mkdir", "rm", "cp", "mv", "chmod", "chown", "ln", "cat", "test",
	"useradd", "usermod", "userdel", "named-checkzone", "named-checkconf", "rndc", "pure-pw", "crontab",
}

// Result is what a spawned process reported. A non-zero ExitCode is data, not an error.
type Result struct {
	Output   string
	ExitCode int
}

// OK reports whether the process exited with status 0.
func (r *Result) OK() bool { return r != nil && r.ExitCode == 0 }

// Runner is the contract every adapter uses to touch the operating system.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
	RunPrivileged(ctx context.Context, name string, args ...string) (*Result, error)
	RunPrivilegedInput(ctx context.Context, stdinPath, name string, args ...string) (*Result, error)
	WriteFile(ctx context.Context, path string, content []byte, mode os.FileMode) (*Result, error)
}

// Options configures a Sandbox.
type Options struct {
	Allowed    []string
	Privileged []string
	// PrivilegePrefix is prepended to privileged command lines, e.g. ["sudo", "-n"].
	// It is skipped when the process already runs as root.
	PrivilegePrefix []string
	Shell           string
	Timeout         time.Duration
	TempDir         string
	Audit           *slog.Logger
	Logger          *slog.Logger
}

// Sandbox validates and executes allowlisted commands.
type Sandbox struct {
	allowed    map[string]struct{}
	privileged map[string]struct{}
	prefix     []string
	shell      string
	timeout    time.Duration
	tempDir    string
	audit      *slog.Logger
	logger     *slog.Logger

	userOnce sync.Once
	osUser   string
}

// runShell executes a composed command line through the shell.
// Tests can override this variable to avoid spawning processes.
var runShell = func(ctx context.Context, shell, line string, stdin io.Reader) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, shell, "-c", line)
	cmd.Stdin = stdin
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return out.Bytes(), exitErr.ExitCode(), nil
		}
		return out.Bytes(), -1, err
	}
	return out.Bytes(), 0, nil
}

// New builds a Sandbox. The privileged list must be a subset of the general one.
func New(opts Options) (*Sandbox, error) {
	if len(opts.Allowed) == 0 {
		opts.Allowed = DefaultAllowed
	}
	if opts.Privileged == nil {
		opts.Privileged = DefaultPrivileged
	}
	if opts.Shell == "" {
		opts.Shell = "/bin/sh"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Audit == nil {
		opts.Audit = opts.Logger
	}

	s := &Sandbox{
		allowed:    make(map[string]struct{}, len(opts.Allowed)),
		privileged: make(map[string]struct{}, len(opts.Privileged)),
		prefix:     opts.PrivilegePrefix,
		shell:      opts.Shell,
		timeout:    opts.Timeout,
		tempDir:    opts.TempDir,
		audit:      opts.Audit,
		logger:     opts.Logger,
	}
	for _, name := range opts.Allowed {
		if err := checkName(name); err != nil {
			return nil, err
		}
		s.allowed[name] = struct{}{}
	}
	for _, name := range opts.Privileged {
		if _, ok := s.allowed[name]; !ok {
			return nil, fmt.Errorf("privileged command %q is not in the general allowlist", name)
		}
		s.privileged[name] = struct{}{}
	}
	return s, nil
}

// Run executes an allowlisted command as the panel user.
func (s *Sandbox) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	return s.execute(ctx, false, "", name, args)
}

// RunPrivileged executes a command from the privileged allowlist with elevation.
func (s *Sandbox) RunPrivileged(ctx context.Context, name string, args ...string) (*Result, error) {
	return s.execute(ctx, true, "", name, args)
}

// RunPrivilegedInput is RunPrivileged with stdin read from stdinPath.
func (s *Sandbox) RunPrivilegedInput(ctx context.Context, stdinPath, name string, args ...string) (*Result, error) {
	return s.execute(ctx, true, stdinPath, name, args)
}

// WriteFile writes content to a private temp file, copies it to path with the
// privileged cp, then applies mode. The destination is never opened directly.
func (s *Sandbox) WriteFile(ctx context.Context, path string, content []byte, mode os.FileMode) (*Result, error) {
	tmp, err := os.CreateTemp(s.tempDir, "hostpanel-"+uuid.NewString()[:8]+"-*")
	if err != nil {
		return nil, apperr.Operational("failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return nil, apperr.Operational("failed to secure temp file", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, apperr.Operational("failed to write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, apperr.Operational("failed to close temp file", err)
	}

	res, err := s.RunPrivileged(ctx, "cp", tmpPath, path)
	if err != nil || !res.OK() {
		return res, err
	}
	return s.RunPrivileged(ctx, "chmod", fmt.Sprintf("%o", mode.Perm()), path)
}

// CommandLine returns the shell line that would run name with args.
func CommandLine(name string, args ...string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(Quote(a))
	}
	return b.String()
}

func (s *Sandbox) execute(ctx context.Context, privileged bool, stdinPath, name string, args []string) (*Result, error) {
	if err := checkName(name); err != nil {
		s.reject(name, args, privileged, err)
		return nil, err
	}
	if _, ok := s.allowed[name]; !ok {
		err := apperr.Security("command %q is not allowlisted", name)
		s.reject(name, args, privileged, err)
		return nil, err
	}
	if privileged {
		if _, ok := s.privileged[name]; !ok {
			err := apperr.Security("command %q may not run privileged", name)
			s.reject(name, args, privileged, err)
			return nil, err
		}
	}

	line := CommandLine(name, args...)
	if privileged && len(s.prefix) > 0 && os.Geteuid() != 0 {
		line = strings.Join(s.prefix, " ") + " " + line
	}

	var stdin io.Reader
	if stdinPath != "" {
		f, err := os.Open(stdinPath)
		if err != nil {
			return nil, apperr.Operational("failed to open command input", err)
		}
		defer f.Close()
		stdin = f
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id := uuid.NewString()
	s.logger.Debug("running command", "invocation_id", id, "line", line)
	start := time.Now()
	out, code, err := runShell(ctx, s.shell, line, stdin)
	elapsed := time.Since(start)

	attrs := []any{
		"invocation_id", id,
		"os_user", s.currentUser(),
		"command", name,
		"args", args,
		"privileged", privileged,
		"exit_code", code,
		"duration_ms", elapsed.Milliseconds(),
	}
	s.audit.Info("command executed", attrs...)

	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%s timed out after %s: %w", name, s.timeout, ctx.Err())
		}
		s.audit.Warn("command failed to run", append(attrs, "error", err.Error())...)
		return nil, apperr.Operational(fmt.Sprintf("failed to run %s", name), err)
	}
	if code != 0 {
		s.audit.Warn("command exited non-zero", append(attrs, "output", truncate(string(out), 2048))...)
	}
	return &Result{Output: string(out), ExitCode: code}, nil
}

func (s *Sandbox) reject(name string, args []string, privileged bool, err error) {
	s.audit.Warn("command rejected",
		"os_user", s.currentUser(),
		"command", name,
		"args", args,
		"privileged", privileged,
		"error", err.Error(),
	)
}

func (s *Sandbox) currentUser() string {
	s.userOnce.Do(func() {
		if u, err := user.Current(); err == nil {
			s.osUser = u.Username
			return
		}
		s.osUser = os.Getenv("USER")
	})
	return s.osUser
}

func checkName(name string) error {
	if name == "" {
		return apperr.Security("empty command name")
	}
	if strings.ContainsAny(name, metaChars) {
		return apperr.Security("command name %q contains shell metacharacters", name)
	}
	if strings.IndexFunc(name, isSpace) >= 0 {
		return apperr.Security("command name %q contains whitespace", name)
	}
	return nil
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Failure turns a non-zero Result into an operational error naming the step.
// It passes through err unchanged when the command could not run at all.
func Failure(step string, res *Result, err error) error {
	if err != nil {
		return err
	}
	if res.OK() {
		return nil
	}
	out := strings.TrimSpace(res.Output)
	if out == "" {
		return apperr.Operational(step, fmt.Errorf("exit status %d", res.ExitCode))
	}
	return apperr.Operational(step, fmt.Errorf("exit status %d: %s", res.ExitCode, truncate(out, 512)))
}
