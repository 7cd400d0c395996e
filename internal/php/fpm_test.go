package php

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
	"github.com/panelkit/hostpanel/internal/sandbox/sandboxtest"
)

func newTestFPM(t *testing.T, r *sandboxtest.Runner) *FPM {
	t.Helper()
	return NewFPM(r, models.PHPConfig{
		Versions:  []string{"7.4", "8.2", "8.3"},
		PoolDir:   "/etc/php/%s/fpm/pool.d",
		SocketDir: "/run/php",
		BinaryDir: t.TempDir(),
	}, "hostpanel", "hostpanel", nil)
}

func TestListAvailableOnlyReturnsInstalled(t *testing.T) {
	f := newTestFPM(t, sandboxtest.New())
	require.NoError(t, os.WriteFile(filepath.Join(f.binaryDir, "php-fpm8.3"), []byte{}, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.binaryDir, "php7.4-fpm"), []byte{}, 0755))

	runtimes := f.ListAvailable()
	require.Len(t, runtimes, 2)
	assert.Equal(t, "7.4", runtimes[0].Version)
	assert.Equal(t, "8.3", runtimes[1].Version)
	assert.Equal(t, "php8.3-fpm", runtimes[1].Service)
	assert.Equal(t, filepath.Join(f.binaryDir, "php-fpm8.3"), runtimes[1].BinaryPath)
}

func TestSocketPathIsDeterministic(t *testing.T) {
	f := newTestFPM(t, sandboxtest.New())
	assert.Equal(t, "/run/php/php8.3-fpm-shop_example_com.sock", f.SocketPath("8.3", "shop.example.com"))
	assert.Equal(t, f.SocketPath("8.3", "shop.example.com"), f.SocketPath("8.3", "shop.example.com"))
	assert.Equal(t, "shop_example_com", PoolName("shop.example.com"))
}

func TestCreatePool(t *testing.T) {
	r := sandboxtest.New()
	f := newTestFPM(t, r)
	site := &models.Site{Domain: "example.com", DocumentRoot: "/var/www/alice/example.com/public", PHPVersion: "8.3"}

	require.NoError(t, f.CreatePool(context.Background(), site))

	pool := r.Files["/etc/php/8.3/fpm/pool.d/example_com.conf"]
	assert.Contains(t, pool, "[example_com]")
	assert.Contains(t, pool, "listen = /run/php/php8.3-fpm-example_com.sock")
	assert.Contains(t, pool, "pm.max_children = 5")
	assert.Contains(t, pool, "pm.start_servers = 2")
	assert.Contains(t, pool, "pm.min_spare_servers = 1")
	assert.Contains(t, pool, "pm.max_spare_servers = 3")
	assert.Equal(t, 1, r.Count("systemctl reload php8.3-fpm"))
}

func TestCreatePoolRejectsUnknownVersion(t *testing.T) {
	r := sandboxtest.New()
	f := newTestFPM(t, r)
	err := f.CreatePool(context.Background(), &models.Site{Domain: "example.com", PHPVersion: "5.6"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, r.Calls)
}

func TestCreatePoolRemovesFileWhenReloadFails(t *testing.T) {
	r := sandboxtest.New()
	r.FailOn("systemctl reload")
	f := newTestFPM(t, r)

	err := f.CreatePool(context.Background(), &models.Site{Domain: "example.com", DocumentRoot: "/srv", PHPVersion: "8.2"})
	require.Error(t, err)
	assert.Equal(t, 1, r.Count("rm -f /etc/php/8.2/fpm/pool.d/example_com.conf"))
	_, exists := r.Files["/etc/php/8.2/fpm/pool.d/example_com.conf"]
	assert.False(t, exists)
}

func TestDeletePool(t *testing.T) {
	r := sandboxtest.New()
	f := newTestFPM(t, r)
	require.NoError(t, f.DeletePool(context.Background(), "8.3", "example.com"))
	assert.Equal(t, []string{
		"rm -f /etc/php/8.3/fpm/pool.d/example_com.conf",
		"systemctl reload php8.3-fpm",
	}, r.Lines())
}

func TestInstalledRequiresBinary(t *testing.T) {
	f := newTestFPM(t, sandboxtest.New())
	require.NoError(t, os.WriteFile(filepath.Join(f.binaryDir, "php-fpm8.3"), []byte{}, 0755))

	assert.True(t, f.Installed("8.3"))
	assert.True(t, f.Supports("8.2"))
	assert.False(t, f.Installed("8.2"))
	assert.False(t, f.Installed("5.6"))
	assert.False(t, f.Installed("8.3; rm"))
}
