// Package dns manages authoritative zones for hosted domains. Two backends
// implement Provider: BIND zone files and the PowerDNS generic SQL schema.
package dns

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	mdns "github.com/miekg/dns"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
)

// Provider is implemented by every DNS backend.
type Provider interface {
	CreateZone(ctx context.Context, domain string) error
	DeleteZone(ctx context.Context, domain string) error
	AddRecord(ctx context.Context, domain string, rec *models.DNSRecord) error
	UpdateRecord(ctx context.Context, domain string, old, rec *models.DNSRecord) error
	DeleteRecord(ctx context.Context, domain string, rec *models.DNSRecord) error
}

// Settings shared by both backends.
type Settings struct {
	Nameservers []string
	Hostmaster  string
	DefaultTTL  int
}

// SupportedTypes lists the record types the panel manages.
var SupportedTypes = []string{"A", "AAAA", "CNAME", "MX", "NS", "TXT", "SRV", "CAA"}

// fqdnTypes carry a hostname as content and are written with a trailing dot.
var fqdnTypes = map[string]bool{"CNAME": true, "MX": true, "NS": true}

var serialPattern = regexp.MustCompile(`^(\d{8})(\d{2})$`)

// NextSerial returns the serial following prev for a change made at now.
// Serials are YYYYMMDDnn: same-day edits increment nn, a new day restarts at 01.
func NextSerial(prev string, now time.Time) string {
	today := now.Format("20060102")
	m := serialPattern.FindStringSubmatch(strings.TrimSpace(prev))
	if m == nil || m[1] != today {
		if m != nil && m[1] > today {
			// clock went backwards; keep the serial increasing
			return bump(m[1], m[2])
		}
		return today + "01"
	}
	return bump(m[1], m[2])
}

func bump(day, seq string) string {
	var n int
	fmt.Sscanf(seq, "%d", &n)
	if n >= 99 {
		t, err := time.Parse("20060102", day)
		if err == nil {
			return t.AddDate(0, 0, 1).Format("20060102") + "01"
		}
	}
	return fmt.Sprintf("%s%02d", day, n+1)
}

// ValidateRecord checks rec against the rules of its type and normalizes Type to upper case.
func ValidateRecord(rec *models.DNSRecord) error {
	rec.Type = strings.ToUpper(strings.TrimSpace(rec.Type))
	if _, ok := mdns.StringToType[rec.Type]; !ok {
		return apperr.Validation("unknown record type %q", rec.Type)
	}
	supported := false
	for _, t := range SupportedTypes {
		if t == rec.Type {
			supported = true
			break
		}
	}
	if !supported {
		return apperr.Validation("record type %s is not supported", rec.Type)
	}

	name := strings.TrimSpace(rec.Name)
	if name == "" {
		name = "@"
	}
	if name != "@" {
		check := strings.TrimPrefix(name, "*.")
		if name == "*" {
			check = ""
		}
		if check != "" {
			if _, ok := mdns.IsDomainName(check); !ok {
				return apperr.Validation("invalid record name %q", rec.Name)
			}
		}
	}
	rec.Name = name

	content := strings.TrimSpace(rec.Content)
	if content == "" || strings.ContainsAny(content, "\n\r") {
		return apperr.Validation("invalid record content")
	}
	switch rec.Type {
	case "A":
		ip := net.ParseIP(content)
		if ip == nil || ip.To4() == nil {
			return apperr.Validation("invalid IPv4 address %q", content)
		}
	case "AAAA":
		ip := net.ParseIP(content)
		if ip == nil || ip.To4() != nil {
			return apperr.Validation("invalid IPv6 address %q", content)
		}
	case "CNAME", "MX", "NS":
		if _, ok := mdns.IsDomainName(content); !ok {
			return apperr.Validation("invalid hostname %q", content)
		}
	}
	rec.Content = content

	if rec.Type == "MX" && rec.Priority == nil {
		return apperr.Validation("MX records require a priority")
	}
	if rec.Priority != nil && (*rec.Priority < 0 || *rec.Priority > 65535) {
		return apperr.Validation("priority out of range")
	}
	if rec.TTL < 0 {
		return apperr.Validation("ttl must not be negative")
	}
	return nil
}

// RecordContent returns the content as written to the zone. Hostname-valued
// types always end in a dot and TXT data is quoted.
func RecordContent(rec *models.DNSRecord) string {
	content := rec.Content
	switch {
	case fqdnTypes[rec.Type]:
		content = mdns.Fqdn(content)
	case rec.Type == "TXT":
		content = quoteTXT(content)
	}
	return content
}

// quoteTXT wraps TXT data in the quoted form both zone files and the
// PowerDNS generic SQL schema expect. Already quoted data is kept as is.
func quoteTXT(content string) string {
	if strings.HasPrefix(content, `"`) {
		return content
	}
	return `"` + strings.ReplaceAll(content, `"`, `\"`) + `"`
}

// RecordLine renders rec as a zone-file line: name IN type [priority] content.
func RecordLine(rec *models.DNSRecord) string {
	if rec.Priority != nil {
		return fmt.Sprintf("%s IN %s %d %s", rec.Name, rec.Type, *rec.Priority, RecordContent(rec))
	}
	return fmt.Sprintf("%s IN %s %s", rec.Name, rec.Type, RecordContent(rec))
}

// AbsoluteName expands a zone-relative record name to the full owner name
// without trailing dot.
func AbsoluteName(name, domain string) string {
	domain = strings.TrimSuffix(domain, ".")
	switch {
	case name == "" || name == "@":
		return domain
	case strings.HasSuffix(name, "."):
		return strings.TrimSuffix(name, ".")
	case name == domain || strings.HasSuffix(name, "."+domain):
		return name
	default:
		return name + "." + domain
	}
}

// ValidateZoneName reports whether domain is usable as a zone apex.
func ValidateZoneName(domain string) error {
	labels, ok := mdns.IsDomainName(domain)
	if !ok || labels < 2 || strings.HasSuffix(domain, ".") {
		return apperr.Validation("invalid domain %q", domain)
	}
	return nil
}
