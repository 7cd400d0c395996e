package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/database"
	"github.com/panelkit/hostpanel/internal/dns"
	"github.com/panelkit/hostpanel/internal/models"
	"github.com/panelkit/hostpanel/internal/sandbox/sandboxtest"
)

func newZoneFixture(t *testing.T) (*database.DB, *recorder, *DnsZoneService, *models.Site) {
	t.Helper()
	store := openStore(t)
	rec := newRecorder()
	owner := createOwner(t, store, "alice")
	site := &models.Site{UserID: owner.ID, Domain: "example.com", DocumentRoot: "/var/www/alice/example.com", PHPVersion: "8.3"}
	require.NoError(t, store.CreateSite(context.Background(), site))
	return store, rec, NewDnsZoneService(store, fakeDNS{rec}, 0, Options{}), site
}

func TestZoneCreateWithDefaults(t *testing.T) {
	_, rec, svc, site := newZoneFixture(t)
	ctx := context.Background()

	zone, err := svc.Create(ctx, &CreateZoneRequest{SiteID: site.ID, Domain: "Example.com", ServerIP: "203.0.113.10"})
	require.NoError(t, err)
	assert.Equal(t, "example.com", zone.Name)
	require.Len(t, zone.Records, 2)
	assert.Equal(t, 3600, zone.Records[0].TTL)

	assert.Equal(t, []string{
		"dns.CreateZone example.com",
		"dns.AddRecord example.com @ A 203.0.113.10",
		"dns.AddRecord example.com www CNAME example.com",
	}, rec.Calls())

	got, err := svc.Get(ctx, zone.ID)
	require.NoError(t, err)
	assert.Len(t, got.Records, 2)
}

func TestZoneCreateRejects(t *testing.T) {
	_, rec, svc, site := newZoneFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateZoneRequest{SiteID: site.ID, Domain: "localhost"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Create(ctx, &CreateZoneRequest{SiteID: site.ID, Domain: "example.com", ServerIP: "not-an-ip"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Create(ctx, &CreateZoneRequest{SiteID: 999, Domain: "example.com"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Create(ctx, &CreateZoneRequest{SiteID: site.ID, Domain: "example.com"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateZoneRequest{SiteID: site.ID, Domain: "example.com"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 1, rec.count("dns.CreateZone"))
}

func TestZoneCreateRollsBack(t *testing.T) {
	store, rec, svc, site := newZoneFixture(t)
	ctx := context.Background()
	rec.failOn["dns.AddRecord example.com www"] = errors.New("named-checkzone failed")

	_, err := svc.Create(ctx, &CreateZoneRequest{SiteID: site.ID, Domain: "example.com", ServerIP: "203.0.113.10"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindOperational))
	assert.Equal(t, 1, rec.count("dns.DeleteZone example.com"))

	_, err = store.GetDomainByName(ctx, "example.com")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestZoneRecords(t *testing.T) {
	store, rec, svc, site := newZoneFixture(t)
	ctx := context.Background()
	zone, err := svc.Create(ctx, &CreateZoneRequest{SiteID: site.ID, Domain: "example.com"})
	require.NoError(t, err)

	prio := 10
	mx, err := svc.AddRecord(ctx, zone.ID, &models.DNSRecord{Name: "@", Type: "mx", Content: "mail.example.com", Priority: &prio})
	require.NoError(t, err)
	assert.Equal(t, "MX", mx.Type)
	assert.Equal(t, 3600, mx.TTL)

	_, err = svc.AddRecord(ctx, zone.ID, &models.DNSRecord{Name: "@", Type: "A", Content: "999.1.1.1"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	rec.failOn["dns.AddRecord example.com txt"] = errors.New("rejected")
	_, err = svc.AddRecord(ctx, zone.ID, &models.DNSRecord{Name: "txt", Type: "TXT", Content: "v=spf1 -all"})
	require.Error(t, err)
	records, err := store.ListDNSRecords(ctx, zone.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, svc.DeleteRecord(ctx, mx.ID))
	assert.Equal(t, 1, rec.count("dns.DeleteRecord example.com @ MX"))
	_, err = store.GetDNSRecord(ctx, mx.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestZoneDelete(t *testing.T) {
	_, rec, svc, site := newZoneFixture(t)
	ctx := context.Background()
	zone, err := svc.Create(ctx, &CreateZoneRequest{SiteID: site.ID, Domain: "example.com", ServerIP: "203.0.113.10"})
	require.NoError(t, err)

	report, err := svc.Delete(ctx, zone.ID)
	require.NoError(t, err)
	assert.Empty(t, report.Failed())
	assert.Equal(t, 1, rec.count("dns.DeleteZone example.com"))

	zones, err := svc.List(ctx, site.ID)
	require.NoError(t, err)
	assert.Empty(t, zones)
}

func TestZoneCreateLeavesNoBindStateWhenReconfigFails(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	site := &models.Site{UserID: owner.ID, Domain: "example.com", DocumentRoot: "/var/www/alice/example.com", PHPVersion: "8.3"}
	require.NoError(t, store.CreateSite(ctx, site))

	runner := sandboxtest.New()
	runner.FailOn("rndc reconfig")
	bind := dns.NewBind(runner, models.BindConfig{ZoneDir: "/etc/bind/zones", IncludeFile: "/etc/bind/named.conf.hostpanel"},
		dns.Settings{Nameservers: []string{"ns1.panel.test"}, Hostmaster: "hostmaster.panel.test", DefaultTTL: 3600}, nil, nil)
	svc := NewDnsZoneService(store, bind, 0, Options{})

	_, err := svc.Create(ctx, &CreateZoneRequest{SiteID: site.ID, Domain: "example.com"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindOperational))

	_, exists := runner.Files["/etc/bind/zones/db.example.com"]
	assert.False(t, exists)
	assert.NotContains(t, runner.Files["/etc/bind/named.conf.hostpanel"], `zone "example.com"`)
	_, err = store.GetDomainByName(ctx, "example.com")
	assert.ErrorIs(t, err, database.ErrNotFound)
}
