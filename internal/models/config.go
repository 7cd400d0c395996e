package models

// Config holds the main application configuration
type Config struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	DataDir    string `yaml:"data_dir" json:"data_dir"`
	LogDir     string `yaml:"log_dir" json:"log_dir"`

	// SitesDir is the root under which every owner directory, document root
	// and FTP home lives.
	SitesDir string `yaml:"sites_dir" json:"sites_dir"`

	// PanelUser owns site files, PHP pools, FTP accounts and the shared crontab.
	PanelUser  string `yaml:"panel_user" json:"panel_user"`
	PanelGroup string `yaml:"panel_group" json:"panel_group"`
	PanelUID   int    `yaml:"panel_uid" json:"panel_uid"`
	PanelGID   int    `yaml:"panel_gid" json:"panel_gid"`

	Sandbox   SandboxConfig   `yaml:"sandbox" json:"sandbox"`
	Nginx     NginxConfig     `yaml:"nginx" json:"nginx"`
	PHP       PHPConfig       `yaml:"php" json:"php"`
	MySQL     MySQLConfig     `yaml:"mysql" json:"mysql"`
	DNS       DNSConfig       `yaml:"dns" json:"dns"`
	FTP       FTPConfig       `yaml:"ftp" json:"ftp"`
	Provision ProvisionConfig `yaml:"provision" json:"provision"`
}

// SandboxConfig controls command execution
type SandboxConfig struct {
	TimeoutSeconds  int      `yaml:"timeout_seconds" json:"timeout_seconds"`
	PrivilegePrefix []string `yaml:"privilege_prefix" json:"privilege_prefix"`
	Shell           string   `yaml:"shell" json:"shell"`
	Allowed         []string `yaml:"allowed" json:"allowed"`
	Privileged      []string `yaml:"privileged" json:"privileged"`
}

// NginxConfig locates the web server configuration directories
type NginxConfig struct {
	SitesAvailable string `yaml:"sites_available" json:"sites_available"`
	SitesEnabled   string `yaml:"sites_enabled" json:"sites_enabled"`
	LogDir         string `yaml:"log_dir" json:"log_dir"`
	CertDir        string `yaml:"cert_dir" json:"cert_dir"`
}

// PHPConfig describes where PHP-FPM lives on the host
type PHPConfig struct {
	// Versions is the fixed list probed for installed interpreters.
	Versions []string `yaml:"versions" json:"versions"`
	// PoolDir is a pattern with one %s for the version, e.g. /etc/php/%s/fpm/pool.d
	PoolDir   string `yaml:"pool_dir" json:"pool_dir"`
	SocketDir string `yaml:"socket_dir" json:"socket_dir"`
	BinaryDir string `yaml:"binary_dir" json:"binary_dir"`
	Default   string `yaml:"default" json:"default"`
}

// MySQLConfig is the administrative connection used to manage customer databases
type MySQLConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Socket   string `yaml:"socket" json:"socket"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"-"`
	UserHost string `yaml:"user_host" json:"user_host"`
}

// DNSConfig selects and configures the DNS backend
type DNSConfig struct {
	Backend     string         `yaml:"backend" json:"backend"` // bind, powerdns
	Nameservers []string       `yaml:"nameservers" json:"nameservers"`
	Hostmaster  string         `yaml:"hostmaster" json:"hostmaster"`
	DefaultTTL  int            `yaml:"default_ttl" json:"default_ttl"`
	Bind        BindConfig     `yaml:"bind" json:"bind"`
	PowerDNS    PowerDNSConfig `yaml:"powerdns" json:"powerdns"`
}

// BindConfig locates zone files and the named include config
type BindConfig struct {
	ZoneDir     string `yaml:"zone_dir" json:"zone_dir"`
	IncludeFile string `yaml:"include_file" json:"include_file"`
}

// PowerDNSConfig is the connection to the PowerDNS generic SQL backend
type PowerDNSConfig struct {
	Driver   string `yaml:"driver" json:"driver"` // mysql, pgx
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Database string `yaml:"database" json:"database"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"-"`
}

// FTPConfig configures the Pure-FTPd virtual user database
type FTPConfig struct {
	PasswdFile string `yaml:"passwd_file" json:"passwd_file"`
	PDBFile    string `yaml:"pdb_file" json:"pdb_file"`
}

// ProvisionConfig tunes the provisioning services
type ProvisionConfig struct {
	RollbackTimeoutSeconds int `yaml:"rollback_timeout_seconds" json:"rollback_timeout_seconds"`
}
