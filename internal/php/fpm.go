package php

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
	"github.com/panelkit/hostpanel/internal/sandbox"
	"github.com/panelkit/hostpanel/internal/templates"
)

var versionPattern = regexp.MustCompile(`^\d+\.\d+$`)

// FPM manages per-site PHP-FPM pools for the system-packaged interpreters.
type FPM struct {
	runner    sandbox.Runner
	versions  []string
	poolDir   string
	socketDir string
	binaryDir string
	user      string
	group     string
	logger    *slog.Logger
}

// NewFPM creates the PHP-FPM adapter. Pools run as user:group.
func NewFPM(runner sandbox.Runner, cfg models.PHPConfig, user, group string, logger *slog.Logger) *FPM {
	if logger == nil {
		logger = slog.Default()
	}
	return &FPM{
		runner:    runner,
		versions:  cfg.Versions,
		poolDir:   cfg.PoolDir,
		socketDir: cfg.SocketDir,
		binaryDir: cfg.BinaryDir,
		user:      user,
		group:     group,
		logger:    logger,
	}
}

func normalizeVersion(version string) string {
	v := strings.TrimSpace(version)
	if !versionPattern.MatchString(v) {
		return ""
	}
	return v
}

func binaryCandidates(dir, version string) []string {
	return []string{
		filepath.Join(dir, fmt.Sprintf("php-fpm%s", version)),
		filepath.Join(dir, fmt.Sprintf("php%s-fpm", version)),
	}
}

// ServiceName returns the systemd unit of the FPM master for version
func ServiceName(version string) string {
	return fmt.Sprintf("php%s-fpm", version)
}

// ListAvailable probes the configured versions and returns only those whose
// FPM binary is present.
func (f *FPM) ListAvailable() []models.PHPRuntime {
	seen := make(map[string]struct{}, len(f.versions))
	var runtimes []models.PHPRuntime
	for _, raw := range f.versions {
		version := normalizeVersion(raw)
		if version == "" {
			continue
		}
		if _, ok := seen[version]; ok {
			continue
		}
		for _, candidate := range binaryCandidates(f.binaryDir, version) {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				seen[version] = struct{}{}
				runtimes = append(runtimes, models.PHPRuntime{
					Version:    version,
					BinaryPath: candidate,
					SocketDir:  f.socketDir,
					Service:    ServiceName(version),
				})
				break
			}
		}
	}
	sort.Slice(runtimes, func(i, j int) bool {
		majI, minI := 0, 0
		majJ, minJ := 0, 0
		fmt.Sscanf(runtimes[i].Version, "%d.%d", &majI, &minI)
		fmt.Sscanf(runtimes[j].Version, "%d.%d", &majJ, &minJ)
		if majI != majJ {
			return majI < majJ
		}
		return minI < minJ
	})
	return runtimes
}

// Supports reports whether version is one of the configured versions.
func (f *FPM) Supports(version string) bool {
	v := normalizeVersion(version)
	return v != "" && slices.Contains(f.versions, v)
}

// Installed reports whether version is configured and its FPM binary is
// present on the host.
func (f *FPM) Installed(version string) bool {
	v := normalizeVersion(version)
	if v == "" || !f.Supports(v) {
		return false
	}
	for _, rt := range f.ListAvailable() {
		if rt.Version == v {
			return true
		}
	}
	return false
}

// PoolName is the pool identifier for domain
func PoolName(domain string) string {
	return templates.SafeName(domain)
}

// SocketPath is the listen socket of domain's pool under version
func (f *FPM) SocketPath(version, domain string) string {
	return filepath.Join(f.socketDir, fmt.Sprintf("php%s-fpm-%s.sock", version, PoolName(domain)))
}

func (f *FPM) poolPath(version, domain string) string {
	return filepath.Join(fmt.Sprintf(f.poolDir, version), PoolName(domain)+".conf")
}

// CreatePool writes the pool file for site and reloads the matching FPM service.
// The pool file is removed again when the reload fails.
func (f *FPM) CreatePool(ctx context.Context, site *models.Site) error {
	version := normalizeVersion(site.PHPVersion)
	if version == "" || !f.Supports(version) {
		return apperr.Validation("unsupported php version %q", site.PHPVersion)
	}

	content, err := templates.GeneratePool(&templates.PoolConfig{
		Name:         PoolName(site.Domain),
		User:         f.user,
		Group:        f.group,
		Socket:       f.SocketPath(version, site.Domain),
		DocumentRoot: site.DocumentRoot,
	})
	if err != nil {
		return apperr.Operational("failed to render php-fpm pool", err)
	}

	path := f.poolPath(version, site.Domain)
	res, err := f.runner.WriteFile(ctx, path, []byte(content), 0644)
	if err := sandbox.Failure("failed to write php-fpm pool", res, err); err != nil {
		return err
	}

	if err := f.reload(ctx, version); err != nil {
		f.logger.Warn("php-fpm reload failed, removing pool", "domain", site.Domain, "version", version, "error", err)
		f.runner.RunPrivileged(ctx, "rm", "-f", path)
		return err
	}
	return nil
}

// DeletePool removes domain's pool under version and reloads.
func (f *FPM) DeletePool(ctx context.Context, version, domain string) error {
	version = normalizeVersion(version)
	if version == "" {
		return apperr.Validation("invalid php version")
	}
	res, err := f.runner.RunPrivileged(ctx, "rm", "-f", f.poolPath(version, domain))
	if err := sandbox.Failure("failed to remove php-fpm pool", res, err); err != nil {
		return err
	}
	return f.reload(ctx, version)
}

func (f *FPM) reload(ctx context.Context, version string) error {
	res, err := f.runner.RunPrivileged(ctx, "systemctl", "reload", ServiceName(version))
	return sandbox.Failure(fmt.Sprintf("failed to reload %s", ServiceName(version)), res, err)
}
