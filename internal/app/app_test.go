package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelkit/hostpanel/internal/config"
	"github.com/panelkit/hostpanel/internal/models"
)

func testConfig(t *testing.T) *models.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	base := t.TempDir()
	cfg.DataDir = filepath.Join(base, "data")
	cfg.LogDir = filepath.Join(base, "logs")
	cfg.SitesDir = filepath.Join(base, "sites")
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWiresBindBackend(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Services.Sites)
	assert.NotNil(t, a.Services.Zones)
	assert.FileExists(t, filepath.Join(cfg.LogDir, "commands.log"))
	assert.DirExists(t, filepath.Join(cfg.DataDir, "tmp"))

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewWiresPowerDNSBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.DNS.Backend = config.DNSBackendPowerDNS
	cfg.DNS.PowerDNS.Driver = "pgx"
	cfg.DNS.PowerDNS.Port = 5432

	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	assert.NotNil(t, a.Services.Zones)
	require.NoError(t, a.Close())
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.DNS.Backend = "route53"

	_, err := New(cfg, quietLogger())
	assert.ErrorContains(t, err, "unknown dns backend")
	_, statErr := os.Stat(filepath.Join(cfg.DataDir, "hostpanel.db"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewRejectsPrivilegedOutsideAllowlist(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sandbox.Allowed = []string{"cat"}
	cfg.Sandbox.Privileged = []string{"rm"}

	_, err := New(cfg, quietLogger())
	assert.Error(t, err)
}
