package models

import (
	"time"
)

// User represents a control panel user. Users own every other resource.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	RoleID       int64     `json:"role_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role groups users for the HTTP layer. The provisioning core never reads it.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Site represents a hosted website
type Site struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Domain       string    `json:"domain"`
	DocumentRoot string    `json:"document_root"`
	PHPVersion   string    `json:"php_version"`
	SSL          bool      `json:"ssl"`
	CreatedAt    time.Time `json:"created_at"`
}

// PHPRuntime describes an interpreter installed on the host. It is never persisted.
type PHPRuntime struct {
	Version    string `json:"version"`
	BinaryPath string `json:"binary_path"`
	SocketDir  string `json:"socket_dir"`
	Service    string `json:"service"`
}

// Database represents a customer database
type Database struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Name      string          `json:"name"`
	Engine    string          `json:"engine"`
	CreatedAt time.Time       `json:"created_at"`
	Users     []*DatabaseUser `json:"users,omitempty"`
}

// DatabaseUser is a principal granted privileges on one database
type DatabaseUser struct {
	ID         int64     `json:"id"`
	DatabaseID int64     `json:"database_id"`
	Username   string    `json:"username"`
	Host       string    `json:"host"`
	CreatedAt  time.Time `json:"created_at"`
}

// FTPUser is a virtual FTP account
type FTPUser struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	HomeDir   string    `json:"home_dir"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// CronJob represents a scheduled job in the shared crontab
type CronJob struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Schedule  string    `json:"schedule"`
	Command   string    `json:"command"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Domain is a DNS zone attached to a site
type Domain struct {
	ID        int64        `json:"id"`
	SiteID    int64        `json:"site_id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
	Records   []*DNSRecord `json:"records,omitempty"`
}

// DNSRecord is a single resource record of a zone
type DNSRecord struct {
	ID       int64  `json:"id"`
	DomainID int64  `json:"domain_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	TTL      int    `json:"ttl"`
	Priority *int   `json:"priority,omitempty"`
}
