package templates

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// VHostConfig holds what an nginx server block needs for one site
type VHostConfig struct {
	Domain       string
	DocumentRoot string
	PHPSocket    string
	LogDir       string
	SSLEnabled   bool
	CertPath     string
	KeyPath      string
}

const vhostTemplate = `# Managed by hostpanel. Site: {{.Domain}}
server {
    listen 80;
    listen [::]:80;
    server_name {{.Domain}} www.{{.Domain}};
{{- if .SSLEnabled}}

    return 301 https://$host$request_uri;
}

server {
    listen 443 ssl http2;
    listen [::]:443 ssl http2;
    server_name {{.Domain}} www.{{.Domain}};

    ssl_certificate {{.CertPath}};
    ssl_certificate_key {{.KeyPath}};
    ssl_protocols TLSv1.2 TLSv1.3;
{{- end}}

    root {{.DocumentRoot}};
    index index.php index.html;

    access_log {{.LogDir}}/{{.Domain | safeName}}.access.log;
    error_log {{.LogDir}}/{{.Domain | safeName}}.error.log;

    location / {
        try_files $uri $uri/ /index.php?$query_string;
    }

    location ~ \.php$ {
        include fastcgi_params;
        fastcgi_pass unix:{{.PHPSocket}};
        fastcgi_param SCRIPT_FILENAME $document_root$fastcgi_script_name;
    }

    location ~ /\.(?!well-known) {
        deny all;
    }

    add_header X-Content-Type-Options nosniff;
    add_header X-Frame-Options SAMEORIGIN;
    add_header Referrer-Policy strict-origin-when-cross-origin;
}
`

// PoolConfig holds the settings of one PHP-FPM pool
type PoolConfig struct {
	Name         string
	User         string
	Group        string
	Socket       string
	DocumentRoot string
}

// Process manager tuning shared by every site pool.
const (
	PoolMaxChildren     = 5
	PoolStartServers    = 2
	PoolMinSpareServers = 1
	PoolMaxSpareServers = 3
)

const poolTemplate = `; Managed by hostpanel
[{{.Name}}]
user = {{.User}}
group = {{.Group}}
listen = {{.Socket}}
listen.owner = {{.User}}
listen.group = {{.Group}}
listen.mode = 0660

pm = dynamic
pm.max_children = {{maxChildren}}
pm.start_servers = {{startServers}}
pm.min_spare_servers = {{minSpare}}
pm.max_spare_servers = {{maxSpare}}

chdir = {{.DocumentRoot}}
php_admin_value[open_basedir] = {{.DocumentRoot}}:/tmp
`

// LandingConfig is rendered into the default index file of a new site
type LandingConfig struct {
	Domain     string
	PHPVersion string
}

const landingTemplate = `<!DOCTYPE html>
<html>
<head><title>{{.Domain}}</title></head>
<body>
<h1>{{.Domain}}</h1>
<p>This site is ready. Upload your files to replace this page.</p>
<p>PHP <?php echo PHP_VERSION; ?> (pool {{.PHPVersion}})</p>
</body>
</html>
`

// ZoneHeader holds the SOA and NS preamble of a BIND zone file
type ZoneHeader struct {
	Domain      string
	Serial      string
	TTL         int
	PrimaryNS   string
	Hostmaster  string
	Nameservers []string
}

// SOA timers written into every zone.
const (
	SOARefresh = 3600
	SOARetry   = 1800
	SOAExpire  = 604800
	SOAMinimum = 86400
)

const zoneHeaderTemplate = `; Managed by hostpanel. Zone: {{.Domain}}
$TTL {{.TTL}}
$ORIGIN {{fqdn .Domain}}
@ IN SOA {{fqdn .PrimaryNS}} {{fqdn .Hostmaster}} (
    {{.Serial}} ; serial
    {{refresh}} ; refresh
    {{retry}} ; retry
    {{expire}} ; expire
    {{minimum}} ; minimum
)
{{range .Nameservers}}@ IN NS {{fqdn .}}
{{end}}`

// ZoneStanzaConfig is one zone entry in the named include config
type ZoneStanzaConfig struct {
	Domain   string
	ZoneFile string
}

const zoneStanzaTemplate = `zone "{{.Domain}}" {
    type master;
    file "{{.ZoneFile}}";
};
`

var funcs = template.FuncMap{
	"safeName": SafeName,
	"fqdn": func(name string) string {
		if strings.HasSuffix(name, ".") {
			return name
		}
		return name + "."
	},
	"maxChildren":  func() int { return PoolMaxChildren },
	"startServers": func() int { return PoolStartServers },
	"minSpare":     func() int { return PoolMinSpareServers },
	"maxSpare":     func() int { return PoolMaxSpareServers },
	"refresh":      func() int { return SOARefresh },
	"retry":        func() int { return SOARetry },
	"expire":       func() int { return SOAExpire },
	"minimum":      func() int { return SOAMinimum },
}

// SafeName turns a domain into an identifier usable in file and pool names.
func SafeName(domain string) string {
	return strings.ReplaceAll(domain, ".", "_")
}

func render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// GenerateVHost renders an nginx server block
func GenerateVHost(cfg *VHostConfig) (string, error) {
	return render("vhost", vhostTemplate, cfg)
}

// GeneratePool renders a PHP-FPM pool file
func GeneratePool(cfg *PoolConfig) (string, error) {
	return render("pool", poolTemplate, cfg)
}

// GenerateLanding renders the default index page of a new site
func GenerateLanding(cfg *LandingConfig) (string, error) {
	return render("landing", landingTemplate, cfg)
}

// GenerateZoneHeader renders the $TTL, SOA and NS lines of a zone file
func GenerateZoneHeader(cfg *ZoneHeader) (string, error) {
	return render("zone", zoneHeaderTemplate, cfg)
}

// GenerateZoneStanza renders the named.conf entry for a zone
func GenerateZoneStanza(cfg *ZoneStanzaConfig) (string, error) {
	return render("stanza", zoneStanzaTemplate, cfg)
}
