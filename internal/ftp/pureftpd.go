package ftp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
	"github.com/panelkit/hostpanel/internal/sandbox"
)

// PureFTPd manages virtual accounts in the pure-pw database. Every account maps
// to the same system uid/gid.
type PureFTPd struct {
	runner     sandbox.Runner
	uid        int
	gid        int
	passwdFile string
	pdbFile    string
	tempDir    string
	logger     *slog.Logger
}

// NewPureFTPd creates the FTP adapter
func NewPureFTPd(runner sandbox.Runner, cfg models.FTPConfig, uid, gid int, tempDir string, logger *slog.Logger) *PureFTPd {
	if logger == nil {
		logger = slog.Default()
	}
	return &PureFTPd{
		runner:     runner,
		uid:        uid,
		gid:        gid,
		passwdFile: cfg.PasswdFile,
		pdbFile:    cfg.PDBFile,
		tempDir:    tempDir,
		logger:     logger,
	}
}

func (p *PureFTPd) fileArgs() []string {
	return []string{"-f", p.passwdFile, "-F", p.pdbFile, "-m"}
}

// CreateUser adds username rooted at homeDir.
func (p *PureFTPd) CreateUser(ctx context.Context, username, password, homeDir string) error {
	args := []string{"useradd", username,
		"-u", strconv.Itoa(p.uid),
		"-g", strconv.Itoa(p.gid),
		"-d", homeDir,
	}
	args = append(args, p.fileArgs()...)
	if err := p.withPassword(ctx, password, "failed to create ftp user", args); err != nil {
		return err
	}
	p.logger.Info("ftp user created", "user", username, "home", homeDir)
	return nil
}

// UpdateUser moves username's home to homeDir.
func (p *PureFTPd) UpdateUser(ctx context.Context, username, homeDir string) error {
	args := append([]string{"usermod", username, "-d", homeDir}, p.fileArgs()...)
	res, err := p.runner.RunPrivileged(ctx, "pure-pw", args...)
	return sandbox.Failure("failed to update ftp user", res, err)
}

// DeleteUser removes username.
func (p *PureFTPd) DeleteUser(ctx context.Context, username string) error {
	args := append([]string{"userdel", username}, p.fileArgs()...)
	res, err := p.runner.RunPrivileged(ctx, "pure-pw", args...)
	if err := sandbox.Failure("failed to delete ftp user", res, err); err != nil {
		return err
	}
	p.logger.Info("ftp user deleted", "user", username)
	return nil
}

// ChangePassword sets a new password for username.
func (p *PureFTPd) ChangePassword(ctx context.Context, username, password string) error {
	args := append([]string{"passwd", username}, p.fileArgs()...)
	return p.withPassword(ctx, password, "failed to change ftp password", args)
}

// withPassword runs pure-pw with the password (entered twice) on stdin. The
// password file is removed whatever the outcome.
func (p *PureFTPd) withPassword(ctx context.Context, password, step string, args []string) error {
	if password == "" {
		return apperr.Validation("password is required")
	}
	f, err := os.CreateTemp(p.tempDir, "hostpanel-ftp-*")
	if err != nil {
		return apperr.Operational("failed to create password file", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if err := f.Chmod(0600); err != nil {
		f.Close()
		return apperr.Operational("failed to secure password file", err)
	}
	if _, err := fmt.Fprintf(f, "%s\n%s\n", password, password); err != nil {
		f.Close()
		return apperr.Operational("failed to write password file", err)
	}
	if err := f.Close(); err != nil {
		return apperr.Operational("failed to write password file", err)
	}

	res, err := p.runner.RunPrivilegedInput(ctx, path, "pure-pw", args...)
	return sandbox.Failure(step, res, err)
}
