package webserver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
	"github.com/panelkit/hostpanel/internal/sandbox"
	"github.com/panelkit/hostpanel/internal/templates"
)

// Nginx manages per-site server blocks in sites-available / sites-enabled.
type Nginx struct {
	runner    sandbox.Runner
	available string
	enabled   string
	logDir    string
	certDir   string
	logger    *slog.Logger
}

// NewNginx creates the nginx adapter
func NewNginx(runner sandbox.Runner, cfg models.NginxConfig, logger *slog.Logger) *Nginx {
	if logger == nil {
		logger = slog.Default()
	}
	return &Nginx{
		runner:    runner,
		available: cfg.SitesAvailable,
		enabled:   cfg.SitesEnabled,
		logDir:    cfg.LogDir,
		certDir:   cfg.CertDir,
		logger:    logger,
	}
}

// VHostPath returns the sites-available file for domain
func (n *Nginx) VHostPath(domain string) string {
	return filepath.Join(n.available, domain+".conf")
}

func (n *Nginx) linkPath(domain string) string {
	return filepath.Join(n.enabled, domain+".conf")
}

// CreateSite writes and enables the vhost, validates the whole configuration
// and reloads. A vhost that fails validation or reload is removed before
// returning.
func (n *Nginx) CreateSite(ctx context.Context, site *models.Site, phpSocket string) error {
	cfg := &templates.VHostConfig{
		Domain:       site.Domain,
		DocumentRoot: site.DocumentRoot,
		PHPSocket:    phpSocket,
		LogDir:       n.logDir,
		SSLEnabled:   site.SSL,
	}
	if site.SSL {
		cfg.CertPath = filepath.Join(n.certDir, site.Domain, "fullchain.pem")
		cfg.KeyPath = filepath.Join(n.certDir, site.Domain, "privkey.pem")
	}
	content, err := templates.GenerateVHost(cfg)
	if err != nil {
		return apperr.Operational("failed to render vhost", err)
	}

	res, err := n.runner.WriteFile(ctx, n.VHostPath(site.Domain), []byte(content), 0644)
	if err := sandbox.Failure("failed to write vhost", res, err); err != nil {
		return err
	}

	res, err = n.runner.RunPrivileged(ctx, "ln", "-sfn", n.VHostPath(site.Domain), n.linkPath(site.Domain))
	if err := sandbox.Failure("failed to enable vhost", res, err); err != nil {
		n.removeFiles(ctx, site.Domain)
		return err
	}

	if err := n.validate(ctx); err != nil {
		n.logger.Warn("vhost failed validation, removing", "domain", site.Domain, "error", err)
		n.removeFiles(ctx, site.Domain)
		return err
	}

	if err := n.Reload(ctx); err != nil {
		n.logger.Warn("reload failed, removing vhost", "domain", site.Domain, "error", err)
		n.removeFiles(ctx, site.Domain)
		return err
	}
	return nil
}

// UpdateSite re-renders the vhost for site.
func (n *Nginx) UpdateSite(ctx context.Context, site *models.Site, phpSocket string) error {
	return n.CreateSite(ctx, site, phpSocket)
}

// DeleteSite removes the vhost and its enabled link, then reloads.
func (n *Nginx) DeleteSite(ctx context.Context, domain string) error {
	if err := n.removeFiles(ctx, domain); err != nil {
		return err
	}
	if err := n.validate(ctx); err != nil {
		return err
	}
	return n.Reload(ctx)
}

// Reload asks the running server to pick up the new configuration
func (n *Nginx) Reload(ctx context.Context) error {
	res, err := n.runner.RunPrivileged(ctx, "systemctl", "reload", "nginx")
	return sandbox.Failure("failed to reload nginx", res, err)
}

func (n *Nginx) validate(ctx context.Context) error {
	res, err := n.runner.RunPrivileged(ctx, "nginx", "-t")
	return sandbox.Failure("nginx configuration test failed", res, err)
}

func (n *Nginx) removeFiles(ctx context.Context, domain string) error {
	res, err := n.runner.RunPrivileged(ctx, "rm", "-f", n.linkPath(domain), n.VHostPath(domain))
	if err := sandbox.Failure(fmt.Sprintf("failed to remove vhost for %s", domain), res, err); err != nil {
		n.logger.Error("failed to remove vhost", "domain", domain, "error", err)
		return err
	}
	return nil
}
