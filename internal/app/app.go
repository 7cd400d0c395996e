// Package app wires the store, the sandbox, every adapter and the
// provisioning services from a loaded configuration.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/panelkit/hostpanel/internal/api"
	"github.com/panelkit/hostpanel/internal/config"
	"github.com/panelkit/hostpanel/internal/crontab"
	"github.com/panelkit/hostpanel/internal/database"
	"github.com/panelkit/hostpanel/internal/dbengine"
	"github.com/panelkit/hostpanel/internal/dns"
	"github.com/panelkit/hostpanel/internal/ftp"
	"github.com/panelkit/hostpanel/internal/models"
	"github.com/panelkit/hostpanel/internal/php"
	"github.com/panelkit/hostpanel/internal/provision"
	"github.com/panelkit/hostpanel/internal/sandbox"
	"github.com/panelkit/hostpanel/internal/sites"
	"github.com/panelkit/hostpanel/internal/webserver"
)

// App holds every long-lived component of the panel
type App struct {
	Config   *models.Config
	Store    *database.DB
	Sandbox  *sandbox.Sandbox
	Services api.Services

	logger  *slog.Logger
	closers []io.Closer
}

// New builds the application. The caller must Close it.
func New(cfg *models.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, logger: logger}
	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.Config
	tempDir := filepath.Join(cfg.DataDir, "tmp")
	for _, dir := range []string{cfg.DataDir, cfg.LogDir, tempDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	store, err := database.Open(filepath.Join(cfg.DataDir, "hostpanel.db"))
	if err != nil {
		return err
	}
	a.Store = store
	a.closers = append(a.closers, store)

	auditFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "commands.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	a.closers = append(a.closers, auditFile)

	sb, err := sandbox.New(sandbox.Options{
		Allowed:         cfg.Sandbox.Allowed,
		Privileged:      cfg.Sandbox.Privileged,
		PrivilegePrefix: cfg.Sandbox.PrivilegePrefix,
		Shell:           cfg.Sandbox.Shell,
		Timeout:         time.Duration(cfg.Sandbox.TimeoutSeconds) * time.Second,
		TempDir:         tempDir,
		Audit:           slog.New(slog.NewJSONHandler(auditFile, nil)),
		Logger:          a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build sandbox: %w", err)
	}
	a.Sandbox = sb

	locks := sandbox.NewFileLocks()
	layout := sites.NewLayout(sb, cfg.SitesDir, cfg.PanelUser, cfg.PanelGroup, a.logger)
	fpm := php.NewFPM(sb, cfg.PHP, cfg.PanelUser, cfg.PanelGroup, a.logger)
	nginx := webserver.NewNginx(sb, cfg.Nginx, a.logger)
	pureftpd := ftp.NewPureFTPd(sb, cfg.FTP, cfg.PanelUID, cfg.PanelGID, tempDir, a.logger)
	cron := crontab.New(sb, cfg.PanelUser, tempDir, locks, a.logger)

	adminDB, err := dbengine.OpenAdmin(cfg.MySQL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, adminDB)
	engine := dbengine.NewMySQL(adminDB, cfg.MySQL.UserHost, a.logger)

	provider, err := a.dnsProvider(sb, locks)
	if err != nil {
		return err
	}

	opts := provision.Options{
		Logger:          a.logger,
		RollbackTimeout: time.Duration(cfg.Provision.RollbackTimeoutSeconds) * time.Second,
	}
	a.Services = api.Services{
		Users:     provision.NewUserService(store, opts),
		Sites:     provision.NewSiteService(store, layout, fpm, nginx, cfg.PHP.Default, opts),
		Databases: provision.NewDatabaseService(store, engine, opts),
		FTP:       provision.NewFTPUserService(store, layout, pureftpd, opts),
		Cron:      provision.NewCronJobService(store, cron, opts),
		Zones:     provision.NewDnsZoneService(store, provider, cfg.DNS.DefaultTTL, opts),
	}

	a.logger.Info("application initialized",
		"data_dir", cfg.DataDir,
		"sites_dir", cfg.SitesDir,
		"dns_backend", cfg.DNS.Backend,
	)
	return nil
}

// dnsProvider selects the zone backend named by the configuration
func (a *App) dnsProvider(sb sandbox.Runner, locks *sandbox.FileLocks) (dns.Provider, error) {
	cfg := a.Config.DNS
	settings := dns.Settings{
		Nameservers: cfg.Nameservers,
		Hostmaster:  cfg.Hostmaster,
		DefaultTTL:  cfg.DefaultTTL,
	}
	switch cfg.Backend {
	case config.DNSBackendBind:
		return dns.NewBind(sb, cfg.Bind, settings, locks, a.logger), nil
	case config.DNSBackendPowerDNS:
		db, err := dns.OpenPowerDNS(cfg.PowerDNS)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		return dns.NewPowerDNS(db, cfg.PowerDNS.Driver, settings, a.logger), nil
	default:
		return nil, fmt.Errorf("unknown dns backend %q", cfg.Backend)
	}
}

// Handler returns the HTTP API over the application's services
func (a *App) Handler() http.Handler {
	return api.NewServer(a.Services, 0, a.logger)
}

// Close releases connections and files in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
