package provision

import (
	"context"
	"strings"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/dns"
	"github.com/panelkit/hostpanel/internal/models"
)

// ZoneStore is the persistence a DnsZoneService needs
type ZoneStore interface {
	GetSite(ctx context.Context, id int64) (*models.Site, error)
	CreateDomain(ctx context.Context, d *models.Domain) error
	GetDomain(ctx context.Context, id int64) (*models.Domain, error)
	GetDomainByName(ctx context.Context, name string) (*models.Domain, error)
	ListDomains(ctx context.Context, siteID int64) ([]*models.Domain, error)
	DeleteDomain(ctx context.Context, id int64) (bool, error)
	CreateDNSRecord(ctx context.Context, r *models.DNSRecord) error
	GetDNSRecord(ctx context.Context, id int64) (*models.DNSRecord, error)
	ListDNSRecords(ctx context.Context, domainID int64) ([]*models.DNSRecord, error)
	DeleteDNSRecord(ctx context.Context, id int64) (bool, error)
}

// CreateZoneRequest is the input of DnsZoneService.Create. When ServerIP is
// set the zone gets an apex A record and a www CNAME.
type CreateZoneRequest struct {
	SiteID   int64  `json:"site_id" validate:"required,gt=0"`
	Domain   string `json:"domain" validate:"required,max=253,sitedomain"`
	ServerIP string `json:"server_ip" validate:"omitempty,ipv4"`
}

// DnsZoneService provisions authoritative zones
type DnsZoneService struct {
	base
	store      ZoneStore
	provider   dns.Provider
	defaultTTL int
}

// NewDnsZoneService creates the zone service
func NewDnsZoneService(store ZoneStore, provider dns.Provider, defaultTTL int, opts Options) *DnsZoneService {
	if defaultTTL <= 0 {
		defaultTTL = 3600
	}
	return &DnsZoneService{base: newBase(opts), store: store, provider: provider, defaultTTL: defaultTTL}
}

// Create persists the domain, creates the zone and adds the default records.
// On failure the zone is removed from the backend as well as from the store.
func (s *DnsZoneService) Create(ctx context.Context, req *CreateZoneRequest) (*models.Domain, error) {
	req.Domain = strings.ToLower(strings.TrimSpace(req.Domain))
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := dns.ValidateZoneName(req.Domain); err != nil {
		return nil, err
	}

	_, err := s.store.GetDomainByName(ctx, req.Domain)
	if err := ensureAbsent(err, "zone "+req.Domain); err != nil {
		return nil, err
	}

	site, err := s.store.GetSite(ctx, req.SiteID)
	if err != nil {
		return nil, storeErr(err, "site")
	}

	domain := &models.Domain{SiteID: site.ID, Name: req.Domain}
	if err := s.store.CreateDomain(ctx, domain); err != nil {
		return nil, storeErr(err, "zone "+req.Domain)
	}

	var undos undoStack
	undos.push("delete domain record", func(ctx context.Context) error {
		_, err := s.store.DeleteDomain(ctx, domain.ID)
		return err
	})
	fail := func(cause error) error {
		return s.fail(ctx, "Failed to create dns zone "+domain.Name, "zone", cause, undos.reversed())
	}

	if err := s.provider.CreateZone(ctx, domain.Name); err != nil {
		return nil, fail(err)
	}
	undos.push("delete zone", func(ctx context.Context) error {
		return s.provider.DeleteZone(ctx, domain.Name)
	})

	if req.ServerIP != "" {
		defaults := []*models.DNSRecord{
			{DomainID: domain.ID, Name: "@", Type: "A", Content: req.ServerIP, TTL: s.defaultTTL},
			{DomainID: domain.ID, Name: "www", Type: "CNAME", Content: domain.Name, TTL: s.defaultTTL},
		}
		for _, rec := range defaults {
			if err := s.store.CreateDNSRecord(ctx, rec); err != nil {
				return nil, fail(storeErr(err, "dns record"))
			}
			if err := s.provider.AddRecord(ctx, domain.Name, rec); err != nil {
				return nil, fail(err)
			}
			domain.Records = append(domain.Records, rec)
		}
	}

	s.logger.Info("zone created", "id", domain.ID, "domain", domain.Name, "site_id", site.ID, "records", len(domain.Records))
	return domain, nil
}

// Get returns a zone with its records
func (s *DnsZoneService) Get(ctx context.Context, id int64) (*models.Domain, error) {
	domain, err := s.store.GetDomain(ctx, id)
	if err != nil {
		return nil, storeErr(err, "zone")
	}
	records, err := s.store.ListDNSRecords(ctx, id)
	if err != nil {
		return nil, storeErr(err, "dns records")
	}
	domain.Records = records
	return domain, nil
}

// List returns the zones attached to a site
func (s *DnsZoneService) List(ctx context.Context, siteID int64) ([]*models.Domain, error) {
	list, err := s.store.ListDomains(ctx, siteID)
	if err != nil {
		return nil, storeErr(err, "zones")
	}
	return list, nil
}

// AddRecord persists rec and adds it to the zone. The row is removed again
// when the backend refuses the record.
func (s *DnsZoneService) AddRecord(ctx context.Context, domainID int64, rec *models.DNSRecord) (*models.DNSRecord, error) {
	if err := dns.ValidateRecord(rec); err != nil {
		return nil, err
	}
	if rec.TTL == 0 {
		rec.TTL = s.defaultTTL
	}

	domain, err := s.store.GetDomain(ctx, domainID)
	if err != nil {
		return nil, storeErr(err, "zone")
	}
	rec.DomainID = domain.ID
	if err := s.store.CreateDNSRecord(ctx, rec); err != nil {
		return nil, storeErr(err, "dns record")
	}

	if err := s.provider.AddRecord(ctx, domain.Name, rec); err != nil {
		return nil, s.fail(ctx, "Failed to add dns record", "dns_record", err, []undo{
			deleteRecord("delete dns record row", func(ctx context.Context) (bool, error) {
				return s.store.DeleteDNSRecord(ctx, rec.ID)
			}),
		})
	}
	s.logger.Info("dns record added", "zone", domain.Name, "name", rec.Name, "type", rec.Type)
	return rec, nil
}

// DeleteRecord removes a record from the zone, then its row.
func (s *DnsZoneService) DeleteRecord(ctx context.Context, recordID int64) error {
	rec, err := s.store.GetDNSRecord(ctx, recordID)
	if err != nil {
		return storeErr(err, "dns record")
	}
	domain, err := s.store.GetDomain(ctx, rec.DomainID)
	if err != nil {
		return storeErr(err, "zone")
	}
	if err := s.provider.DeleteRecord(ctx, domain.Name, rec); err != nil {
		return err
	}
	if _, err := s.store.DeleteDNSRecord(ctx, rec.ID); err != nil {
		return storeErr(err, "dns record")
	}
	s.logger.Info("dns record deleted", "zone", domain.Name, "name", rec.Name, "type", rec.Type)
	return nil
}

// Delete removes the zone from the backend, then the domain and its records.
func (s *DnsZoneService) Delete(ctx context.Context, id int64) (*apperr.RollbackReport, error) {
	domain, err := s.store.GetDomain(ctx, id)
	if err != nil {
		return nil, storeErr(err, "zone")
	}
	report, err := s.teardown(ctx, "zone",
		[]undo{{"delete zone", func(ctx context.Context) error { return s.provider.DeleteZone(ctx, domain.Name) }}},
		deleteRecord("delete domain record", func(ctx context.Context) (bool, error) { return s.store.DeleteDomain(ctx, domain.ID) }),
	)
	if err != nil {
		return report, err
	}
	s.logger.Info("zone deleted", "id", domain.ID, "domain", domain.Name)
	return report, nil
}
