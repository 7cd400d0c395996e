package sites

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
	"github.com/panelkit/hostpanel/internal/sandbox"
	"github.com/panelkit/hostpanel/internal/templates"
)

var (
	domainRegex   = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,63}$`)
	usernameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)
)

// Layout owns the directory tree under the sites root:
// <root>/<owner>/<domain> is the document root of a site.
type Layout struct {
	runner sandbox.Runner
	root   string
	owner  string
	group  string
	logger *slog.Logger
}

// NewLayout creates the filesystem adapter. Files are chowned to owner:group.
func NewLayout(runner sandbox.Runner, root, owner, group string, logger *slog.Logger) *Layout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layout{
		runner: runner,
		root:   filepath.Clean(root),
		owner:  owner,
		group:  group,
		logger: logger,
	}
}

// IsValidDomain validates a site domain
func IsValidDomain(domain string) bool {
	if domain == "" || len(domain) > 253 {
		return false
	}
	if strings.Contains(domain, "..") || strings.ContainsAny(domain, "/\\") {
		return false
	}
	return domainRegex.MatchString(domain)
}

// Root returns the sites root
func (l *Layout) Root() string { return l.root }

// OwnerDir is the base directory of a panel user
func (l *Layout) OwnerDir(username string) string {
	return filepath.Join(l.root, username)
}

// DocumentRoot is where domain's files live for username
func (l *Layout) DocumentRoot(username, domain string) string {
	return filepath.Join(l.root, username, domain)
}

// Contains reports whether path lies strictly below the sites root.
func (l *Layout) Contains(path string) bool {
	if !filepath.IsAbs(path) {
		return false
	}
	clean := filepath.Clean(path)
	return clean != l.root && strings.HasPrefix(clean, l.root+string(filepath.Separator))
}

// EnsureOwnerDir creates the owner's base directory. It is a no-op when the
// directory already exists.
func (l *Layout) EnsureOwnerDir(ctx context.Context, username string) error {
	if !usernameRegex.MatchString(username) {
		return apperr.Validation("invalid owner name %q", username)
	}
	dir := l.OwnerDir(username)
	res, err := l.runner.RunPrivileged(ctx, "test", "-d", dir)
	if err != nil {
		return err
	}
	if res.OK() {
		return nil
	}
	if err := l.mkdir(ctx, dir); err != nil {
		return err
	}
	res, err = l.runner.RunPrivileged(ctx, "chmod", "750", dir)
	return sandbox.Failure("failed to secure owner directory", res, err)
}

// CreateDocumentRoot creates path and hands it to the panel user.
func (l *Layout) CreateDocumentRoot(ctx context.Context, path string) error {
	if !l.Contains(path) {
		return apperr.Validation("document root %s is outside %s", path, l.root)
	}
	return l.mkdir(ctx, path)
}

// WriteLanding writes the default index page into site's document root.
func (l *Layout) WriteLanding(ctx context.Context, site *models.Site) error {
	content, err := templates.GenerateLanding(&templates.LandingConfig{Domain: site.Domain, PHPVersion: site.PHPVersion})
	if err != nil {
		return apperr.Operational("failed to render landing page", err)
	}
	path := filepath.Join(site.DocumentRoot, "index.php")
	res, err := l.runner.WriteFile(ctx, path, []byte(content), 0644)
	if err := sandbox.Failure("failed to write landing page", res, err); err != nil {
		return err
	}
	res, err = l.runner.RunPrivileged(ctx, "chown", l.owner+":"+l.group, path)
	return sandbox.Failure("failed to set landing page ownership", res, err)
}

// RemoveDocumentRoot deletes path recursively. Paths outside the sites root
// and owner directories themselves are refused.
func (l *Layout) RemoveDocumentRoot(ctx context.Context, path string) error {
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(l.root, clean)
	if !l.Contains(clean) || err != nil || !strings.Contains(rel, string(filepath.Separator)) {
		return apperr.Security("refusing to remove %s", path)
	}
	res, err := l.runner.RunPrivileged(ctx, "rm", "-rf", clean)
	if err := sandbox.Failure(fmt.Sprintf("failed to remove %s", clean), res, err); err != nil {
		return err
	}
	l.logger.Info("document root removed", "path", clean)
	return nil
}

func (l *Layout) mkdir(ctx context.Context, dir string) error {
	res, err := l.runner.RunPrivileged(ctx, "mkdir", "-p", dir)
	if err := sandbox.Failure(fmt.Sprintf("failed to create %s", dir), res, err); err != nil {
		return err
	}
	res, err = l.runner.RunPrivileged(ctx, "chown", l.owner+":"+l.group, dir)
	return sandbox.Failure(fmt.Sprintf("failed to set ownership of %s", dir), res, err)
}
