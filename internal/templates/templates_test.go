package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVHost(t *testing.T) {
	out, err := GenerateVHost(&VHostConfig{
		Domain:       "example.com",
		DocumentRoot: "/var/www/alice/example.com/public",
		PHPSocket:    "/run/php/php8.3-fpm-example_com.sock",
		LogDir:       "/var/log/nginx",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "server_name example.com www.example.com;")
	assert.Contains(t, out, "root /var/www/alice/example.com/public;")
	assert.Contains(t, out, "fastcgi_pass unix:/run/php/php8.3-fpm-example_com.sock;")
	assert.Contains(t, out, "/var/log/nginx/example_com.access.log")
	assert.NotContains(t, out, "ssl_certificate")
}

func TestGenerateVHostWithTLS(t *testing.T) {
	out, err := GenerateVHost(&VHostConfig{
		Domain:       "example.com",
		DocumentRoot: "/srv/example.com",
		PHPSocket:    "/run/php/x.sock",
		LogDir:       "/var/log/nginx",
		SSLEnabled:   true,
		CertPath:     "/etc/ssl/example.com/fullchain.pem",
		KeyPath:      "/etc/ssl/example.com/privkey.pem",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "listen 443 ssl http2;")
	assert.Contains(t, out, "ssl_certificate /etc/ssl/example.com/fullchain.pem;")
	assert.Contains(t, out, "return 301 https://$host$request_uri;")
	assert.Equal(t, 2, strings.Count(out, "server {"))
}

func TestGeneratePoolUsesFixedTuning(t *testing.T) {
	out, err := GeneratePool(&PoolConfig{
		Name:         "example_com",
		User:         "hostpanel",
		Group:        "hostpanel",
		Socket:       "/run/php/php8.3-fpm-example_com.sock",
		DocumentRoot: "/var/www/alice/example.com",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "; Managed by hostpanel\n[example_com]\n"))
	assert.Contains(t, out, "pm = dynamic\n")
	assert.Contains(t, out, "pm.max_children = 5\n")
	assert.Contains(t, out, "pm.start_servers = 2\n")
	assert.Contains(t, out, "pm.min_spare_servers = 1\n")
	assert.Contains(t, out, "pm.max_spare_servers = 3\n")
	assert.Contains(t, out, "listen = /run/php/php8.3-fpm-example_com.sock\n")
}

func TestGenerateZoneHeader(t *testing.T) {
	out, err := GenerateZoneHeader(&ZoneHeader{
		Domain:      "example.com",
		Serial:      "2026101901",
		TTL:         3600,
		PrimaryNS:   "ns1.panel.test",
		Hostmaster:  "hostmaster.example.com.",
		Nameservers: []string{"ns1.panel.test", "ns2.panel.test."},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "$ORIGIN example.com.\n")
	assert.Contains(t, out, "@ IN SOA ns1.panel.test. hostmaster.example.com. (")
	assert.Contains(t, out, "2026101901 ; serial")
	assert.Contains(t, out, "@ IN NS ns1.panel.test.\n")
	assert.Contains(t, out, "@ IN NS ns2.panel.test.\n")
}

func TestGenerateZoneStanza(t *testing.T) {
	out, err := GenerateZoneStanza(&ZoneStanzaConfig{Domain: "example.com", ZoneFile: "/etc/bind/zones/db.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "zone \"example.com\" {\n    type master;\n    file \"/etc/bind/zones/db.example.com\";\n};\n", out)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "shop_example_co_uk", SafeName("shop.example.co.uk"))
}
