package provision

import (
	"context"
	"strings"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
)

// SiteStore is the persistence a SiteService needs
type SiteStore interface {
	UserStore
	CreateSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, id int64) (*models.Site, error)
	GetSiteByDomain(ctx context.Context, domain string) (*models.Site, error)
	ListSites(ctx context.Context, userID int64) ([]*models.Site, error)
	DeleteSite(ctx context.Context, id int64) (bool, error)
}

// CreateSiteRequest is the input of SiteService.Create
type CreateSiteRequest struct {
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	Domain     string `json:"domain" validate:"required,max=253,sitedomain"`
	PHPVersion string `json:"php_version" validate:"omitempty,max=8"`
	SSL        bool   `json:"ssl"`
}

// SiteService provisions websites
type SiteService struct {
	base
	store      SiteStore
	files      SiteFiles
	php        PHPRuntime
	web        WebServer
	defaultPHP string
}

// NewSiteService creates the site service
func NewSiteService(store SiteStore, files SiteFiles, php PHPRuntime, web WebServer, defaultPHP string, opts Options) *SiteService {
	return &SiteService{
		base:       newBase(opts),
		store:      store,
		files:      files,
		php:        php,
		web:        web,
		defaultPHP: defaultPHP,
	}
}

// Create provisions a site: owner directory, document root, PHP-FPM pool,
// vhost and landing page, in that order.
func (s *SiteService) Create(ctx context.Context, req *CreateSiteRequest) (*models.Site, error) {
	req.Domain = strings.ToLower(strings.TrimSpace(req.Domain))
	if req.PHPVersion == "" {
		req.PHPVersion = s.defaultPHP
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if !s.php.Supports(req.PHPVersion) {
		return nil, apperr.Validation("php version %s is not supported", req.PHPVersion)
	}
	if !s.php.Installed(req.PHPVersion) {
		return nil, apperr.Validation("php version %s is not installed", req.PHPVersion)
	}

	_, err := s.store.GetSiteByDomain(ctx, req.Domain)
	if err := ensureAbsent(err, "site "+req.Domain); err != nil {
		return nil, err
	}

	owner, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, storeErr(err, "user")
	}

	site := &models.Site{
		UserID:       owner.ID,
		Domain:       req.Domain,
		DocumentRoot: s.files.DocumentRoot(owner.Username, req.Domain),
		PHPVersion:   req.PHPVersion,
		SSL:          req.SSL,
	}
	if err := s.store.CreateSite(ctx, site); err != nil {
		return nil, storeErr(err, "site "+req.Domain)
	}

	var rootDone, poolDone, vhostDone bool
	fail := func(cause error) error {
		var steps []undo
		if poolDone {
			steps = append(steps, undo{"delete php-fpm pool", func(ctx context.Context) error {
				return s.php.DeletePool(ctx, site.PHPVersion, site.Domain)
			}})
		}
		if vhostDone {
			steps = append(steps, undo{"delete vhost", func(ctx context.Context) error {
				return s.web.DeleteSite(ctx, site.Domain)
			}})
		}
		if rootDone {
			steps = append(steps, undo{"remove document root", func(ctx context.Context) error {
				return s.files.RemoveDocumentRoot(ctx, site.DocumentRoot)
			}})
		}
		steps = append(steps, deleteRecord("delete site record", func(ctx context.Context) (bool, error) {
			return s.store.DeleteSite(ctx, site.ID)
		}))
		return s.fail(ctx, "Failed to create site "+site.Domain, "site", cause, steps)
	}

	if err := s.files.EnsureOwnerDir(ctx, owner.Username); err != nil {
		return nil, fail(err)
	}
	if err := s.files.CreateDocumentRoot(ctx, site.DocumentRoot); err != nil {
		return nil, fail(err)
	}
	rootDone = true

	if err := s.php.CreatePool(ctx, site); err != nil {
		return nil, fail(err)
	}
	poolDone = true

	if err := s.web.CreateSite(ctx, site, s.php.SocketPath(site.PHPVersion, site.Domain)); err != nil {
		return nil, fail(err)
	}
	vhostDone = true

	if err := s.files.WriteLanding(ctx, site); err != nil {
		return nil, fail(err)
	}

	s.logger.Info("site created", "id", site.ID, "domain", site.Domain, "user_id", site.UserID, "php", site.PHPVersion)
	return site, nil
}

// Get returns a site by id
func (s *SiteService) Get(ctx context.Context, id int64) (*models.Site, error) {
	site, err := s.store.GetSite(ctx, id)
	if err != nil {
		return nil, storeErr(err, "site")
	}
	return site, nil
}

// List returns the sites of a user
func (s *SiteService) List(ctx context.Context, userID int64) ([]*models.Site, error) {
	list, err := s.store.ListSites(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "sites")
	}
	return list, nil
}

// Delete tears a site down: pool, vhost, document root, then the record.
func (s *SiteService) Delete(ctx context.Context, id int64) (*apperr.RollbackReport, error) {
	site, err := s.store.GetSite(ctx, id)
	if err != nil {
		return nil, storeErr(err, "site")
	}

	external := []undo{
		{"delete php-fpm pool", func(ctx context.Context) error { return s.php.DeletePool(ctx, site.PHPVersion, site.Domain) }},
		{"delete vhost", func(ctx context.Context) error { return s.web.DeleteSite(ctx, site.Domain) }},
		{"remove document root", func(ctx context.Context) error { return s.files.RemoveDocumentRoot(ctx, site.DocumentRoot) }},
	}
	report, err := s.teardown(ctx, "site", external, deleteRecord("delete site record", func(ctx context.Context) (bool, error) {
		return s.store.DeleteSite(ctx, site.ID)
	}))
	if err != nil {
		return report, err
	}
	s.logger.Info("site deleted", "id", site.ID, "domain", site.Domain)
	return report, nil
}

// PHPRuntimes lists the interpreters installed on the host
func (s *SiteService) PHPRuntimes() []models.PHPRuntime {
	return s.php.ListAvailable()
}
