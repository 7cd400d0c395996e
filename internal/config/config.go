package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/panelkit/hostpanel/internal/models"
)

var (
	cfg   *models.Config
	cfgMu sync.RWMutex
)

// Environment variable names
const (
	EnvDevMode      = "HOSTPANEL_DEV"        // Set to "1" for development mode
	EnvConfigDir    = "HOSTPANEL_CONFIG_DIR" // Override config directory
	EnvDataDir      = "HOSTPANEL_DATA_DIR"
	EnvSitesDir     = "HOSTPANEL_SITES_DIR"
	EnvLogDir       = "HOSTPANEL_LOG_DIR"
	EnvListenAddr   = "HOSTPANEL_LISTEN"
	EnvPanelUser    = "HOSTPANEL_USER"
	EnvMySQLHost    = "HOSTPANEL_MYSQL_HOST"
	EnvMySQLPort    = "HOSTPANEL_MYSQL_PORT"
	EnvMySQLUser    = "HOSTPANEL_MYSQL_USER"
	EnvMySQLPass    = "HOSTPANEL_MYSQL_PASSWORD"
	EnvDNSBackend   = "HOSTPANEL_DNS_BACKEND"
	EnvZoneDir      = "HOSTPANEL_ZONE_DIR"
	EnvPDNSDriver   = "HOSTPANEL_PDNS_DRIVER"
	EnvPDNSHost     = "HOSTPANEL_PDNS_HOST"
	EnvPDNSPort     = "HOSTPANEL_PDNS_PORT"
	EnvPDNSDatabase = "HOSTPANEL_PDNS_DATABASE"
	EnvPDNSUser     = "HOSTPANEL_PDNS_USER"
	EnvPDNSPass     = "HOSTPANEL_PDNS_PASSWORD"
	EnvTimeout      = "HOSTPANEL_COMMAND_TIMEOUT"
)

// DNS backends
const (
	DNSBackendBind     = "bind"
	DNSBackendPowerDNS = "powerdns"
)

// IsDevMode returns true if running in development mode
func IsDevMode() bool {
	return os.Getenv(EnvDevMode) == "1"
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getDefaultPaths returns paths based on environment and mode
func getDefaultPaths() (dataDir, sitesDir, logDir, configDir string) {
	if IsDevMode() {
		// Development mode: keep everything under the working directory
		cwd, _ := os.Getwd()
		base := filepath.Join(cwd, ".hostpanel")
		return filepath.Join(base, "data"), filepath.Join(base, "sites"), filepath.Join(base, "logs"),
			getEnvOrDefault(EnvConfigDir, base)
	}
	return "/var/lib/hostpanel", "/var/www", "/var/log/hostpanel", getEnvOrDefault(EnvConfigDir, "/etc/hostpanel")
}

// DefaultConfigPath returns the default config path based on mode
func DefaultConfigPath() string {
	_, _, _, configDir := getDefaultPaths()
	return filepath.Join(configDir, "config.yaml")
}

// DefaultConfig returns the default configuration
func DefaultConfig() *models.Config {
	dataDir, sitesDir, logDir, _ := getDefaultPaths()

	return &models.Config{
		ListenAddr: ":8080",
		DataDir:    dataDir,
		LogDir:     logDir,
		SitesDir:   sitesDir,
		PanelUser:  "hostpanel",
		PanelGroup: "hostpanel",
		PanelUID:   1001,
		PanelGID:   1001,
		Sandbox: models.SandboxConfig{
			TimeoutSeconds:  60,
			PrivilegePrefix: []string{"sudo", "-n"},
			Shell:           "/bin/sh",
		},
		Nginx: models.NginxConfig{
			SitesAvailable: "/etc/nginx/sites-available",
			SitesEnabled:   "/etc/nginx/sites-enabled",
			LogDir:         "/var/log/nginx",
			CertDir:        "/etc/ssl/hostpanel",
		},
		PHP: models.PHPConfig{
			Versions:  []string{"7.4", "8.0", "8.1", "8.2", "8.3", "8.4"},
			PoolDir:   "/etc/php/%s/fpm/pool.d",
			SocketDir: "/run/php",
			BinaryDir: "/usr/sbin",
			Default:   "8.3",
		},
		MySQL: models.MySQLConfig{
			Host:     "127.0.0.1",
			Port:     3306,
			User:     "root",
			UserHost: "localhost",
		},
		DNS: models.DNSConfig{
			Backend:     DNSBackendBind,
			Nameservers: []string{"ns1.localhost", "ns2.localhost"},
			Hostmaster:  "hostmaster.localhost",
			DefaultTTL:  3600,
			Bind: models.BindConfig{
				ZoneDir:     "/etc/bind/zones",
				IncludeFile: "/etc/bind/named.conf.hostpanel",
			},
			PowerDNS: models.PowerDNSConfig{
				Driver:   "mysql",
				Host:     "127.0.0.1",
				Port:     3306,
				Database: "powerdns",
				User:     "powerdns",
			},
		},
		FTP: models.FTPConfig{
			PasswdFile: "/etc/pure-ftpd/pureftpd.passwd",
			PDBFile:    "/etc/pure-ftpd/pureftpd.pdb",
		},
		Provision: models.ProvisionConfig{
			RollbackTimeoutSeconds: 30,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at configPath and
// HOSTPANEL_* environment variables, in that order. A .env file in the working
// directory is read first when present.
func Load(configPath string) (*models.Config, error) {
	_ = godotenv.Load()

	c := DefaultConfig()

	if configPath == "" {
		configPath = DefaultConfigPath()
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	applyEnv(c)

	if err := Validate(c); err != nil {
		return nil, err
	}

	Update(c)
	return c, nil
}

func applyEnv(c *models.Config) {
	c.ListenAddr = getEnvOrDefault(EnvListenAddr, c.ListenAddr)
	c.DataDir = getEnvOrDefault(EnvDataDir, c.DataDir)
	c.SitesDir = getEnvOrDefault(EnvSitesDir, c.SitesDir)
	c.LogDir = getEnvOrDefault(EnvLogDir, c.LogDir)
	c.PanelUser = getEnvOrDefault(EnvPanelUser, c.PanelUser)
	c.Sandbox.TimeoutSeconds = getEnvIntOrDefault(EnvTimeout, c.Sandbox.TimeoutSeconds)

	c.MySQL.Host = getEnvOrDefault(EnvMySQLHost, c.MySQL.Host)
	c.MySQL.Port = getEnvIntOrDefault(EnvMySQLPort, c.MySQL.Port)
	c.MySQL.User = getEnvOrDefault(EnvMySQLUser, c.MySQL.User)
	c.MySQL.Password = getEnvOrDefault(EnvMySQLPass, c.MySQL.Password)

	c.DNS.Backend = getEnvOrDefault(EnvDNSBackend, c.DNS.Backend)
	c.DNS.Bind.ZoneDir = getEnvOrDefault(EnvZoneDir, c.DNS.Bind.ZoneDir)
	c.DNS.PowerDNS.Driver = getEnvOrDefault(EnvPDNSDriver, c.DNS.PowerDNS.Driver)
	c.DNS.PowerDNS.Host = getEnvOrDefault(EnvPDNSHost, c.DNS.PowerDNS.Host)
	c.DNS.PowerDNS.Port = getEnvIntOrDefault(EnvPDNSPort, c.DNS.PowerDNS.Port)
	c.DNS.PowerDNS.Database = getEnvOrDefault(EnvPDNSDatabase, c.DNS.PowerDNS.Database)
	c.DNS.PowerDNS.User = getEnvOrDefault(EnvPDNSUser, c.DNS.PowerDNS.User)
	c.DNS.PowerDNS.Password = getEnvOrDefault(EnvPDNSPass, c.DNS.PowerDNS.Password)
}

// Validate rejects configurations the composition root cannot wire.
func Validate(c *models.Config) error {
	switch c.DNS.Backend {
	case DNSBackendBind, DNSBackendPowerDNS:
	default:
		return fmt.Errorf("unknown dns backend %q", c.DNS.Backend)
	}
	if c.DNS.Backend == DNSBackendPowerDNS {
		switch c.DNS.PowerDNS.Driver {
		case "mysql", "pgx":
		default:
			return fmt.Errorf("unknown powerdns driver %q", c.DNS.PowerDNS.Driver)
		}
	}
	if c.SitesDir == "" || !filepath.IsAbs(c.SitesDir) {
		return fmt.Errorf("sites_dir must be an absolute path")
	}
	if len(c.PHP.Versions) == 0 {
		return fmt.Errorf("at least one php version must be configured")
	}
	return nil
}

// Get returns the current configuration
func Get() *models.Config {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg
}

// Save writes the current configuration to configPath as YAML
func Save(configPath string) error {
	cfgMu.RLock()
	defer cfgMu.RUnlock()

	if configPath == "" {
		configPath = DefaultConfigPath()
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Update updates the configuration
func Update(newCfg *models.Config) {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	cfg = newCfg
}
