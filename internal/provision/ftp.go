package provision

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
)

// FTPStore is the persistence a FTPUserService needs
type FTPStore interface {
	UserStore
	CreateFTPUser(ctx context.Context, f *models.FTPUser) error
	GetFTPUser(ctx context.Context, id int64) (*models.FTPUser, error)
	GetFTPUserByUsername(ctx context.Context, username string) (*models.FTPUser, error)
	ListFTPUsers(ctx context.Context, userID int64) ([]*models.FTPUser, error)
	UpdateFTPUserHome(ctx context.Context, id int64, homeDir string) error
	DeleteFTPUser(ctx context.Context, id int64) (bool, error)
}

// CreateFTPUserRequest is the input of FTPUserService.Create. An empty
// HomeDir defaults to the owner's directory.
type CreateFTPUserRequest struct {
	UserID   int64  `json:"user_id" validate:"required,gt=0"`
	Username string `json:"username" validate:"required,ftpuser"`
	Password string `json:"password" validate:"required,min=8,max=128,singleline"`
	HomeDir  string `json:"home_dir" validate:"omitempty,startswith=/"`
	Enabled  *bool  `json:"enabled"`
}

// FTPUserService provisions virtual FTP accounts
type FTPUserService struct {
	base
	store FTPStore
	files SiteFiles
	ftp   FTPServer
}

// NewFTPUserService creates the FTP service
func NewFTPUserService(store FTPStore, files SiteFiles, ftp FTPServer, opts Options) *FTPUserService {
	return &FTPUserService{base: newBase(opts), store: store, files: files, ftp: ftp}
}

func (s *FTPUserService) checkHome(home string) (string, error) {
	home = filepath.Clean(home)
	if !s.files.Contains(home) {
		return "", apperr.Validation("home directory must be inside the sites root")
	}
	return home, nil
}

// Create persists the account then creates the backend principal.
func (s *FTPUserService) Create(ctx context.Context, req *CreateFTPUserRequest) (*models.FTPUser, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.HomeDir != "" {
		if _, err := s.checkHome(req.HomeDir); err != nil {
			return nil, err
		}
	}

	_, err := s.store.GetFTPUserByUsername(ctx, req.Username)
	if err := ensureAbsent(err, "ftp user "+req.Username); err != nil {
		return nil, err
	}

	owner, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, storeErr(err, "user")
	}

	home := req.HomeDir
	if home == "" {
		home = s.files.OwnerDir(owner.Username)
	}
	home, err = s.checkHome(home)
	if err != nil {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	account := &models.FTPUser{UserID: owner.ID, Username: req.Username, HomeDir: home, Enabled: enabled}
	if err := s.store.CreateFTPUser(ctx, account); err != nil {
		return nil, storeErr(err, "ftp user "+req.Username)
	}

	if err := s.ftp.CreateUser(ctx, account.Username, req.Password, account.HomeDir); err != nil {
		return nil, s.fail(ctx, "Failed to create ftp account "+account.Username, "ftp_user", err, []undo{
			deleteRecord("delete ftp user record", func(ctx context.Context) (bool, error) {
				return s.store.DeleteFTPUser(ctx, account.ID)
			}),
		})
	}

	s.logger.Info("ftp user created", "id", account.ID, "username", account.Username, "home", account.HomeDir)
	return account, nil
}

// Get returns an FTP account by id
func (s *FTPUserService) Get(ctx context.Context, id int64) (*models.FTPUser, error) {
	f, err := s.store.GetFTPUser(ctx, id)
	if err != nil {
		return nil, storeErr(err, "ftp user")
	}
	return f, nil
}

// List returns the FTP accounts of a user
func (s *FTPUserService) List(ctx context.Context, userID int64) ([]*models.FTPUser, error) {
	list, err := s.store.ListFTPUsers(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "ftp users")
	}
	return list, nil
}

// ChangePassword sets a new password on the backend principal
func (s *FTPUserService) ChangePassword(ctx context.Context, id int64, password string) error {
	if len(password) < 8 || strings.ContainsAny(password, "\r\n") {
		return apperr.Validation("password must be at least 8 characters on a single line")
	}
	account, err := s.store.GetFTPUser(ctx, id)
	if err != nil {
		return storeErr(err, "ftp user")
	}
	return s.ftp.ChangePassword(ctx, account.Username, password)
}

// UpdateHome moves the account's home directory. The record is only updated
// once the backend accepted the change.
func (s *FTPUserService) UpdateHome(ctx context.Context, id int64, homeDir string) (*models.FTPUser, error) {
	home, err := s.checkHome(homeDir)
	if err != nil {
		return nil, err
	}
	account, err := s.store.GetFTPUser(ctx, id)
	if err != nil {
		return nil, storeErr(err, "ftp user")
	}
	if err := s.ftp.UpdateUser(ctx, account.Username, home); err != nil {
		return nil, err
	}
	if err := s.store.UpdateFTPUserHome(ctx, id, home); err != nil {
		previous := account.HomeDir
		return nil, s.fail(ctx, "Failed to update ftp account "+account.Username, "ftp_user", storeErr(err, "ftp user"), []undo{
			{"restore ftp home", func(ctx context.Context) error { return s.ftp.UpdateUser(ctx, account.Username, previous) }},
		})
	}
	account.HomeDir = home
	return account, nil
}

// Delete removes the backend principal and the record.
func (s *FTPUserService) Delete(ctx context.Context, id int64) (*apperr.RollbackReport, error) {
	account, err := s.store.GetFTPUser(ctx, id)
	if err != nil {
		return nil, storeErr(err, "ftp user")
	}
	report, err := s.teardown(ctx, "ftp_user",
		[]undo{{"delete ftp principal", func(ctx context.Context) error { return s.ftp.DeleteUser(ctx, account.Username) }}},
		deleteRecord("delete ftp user record", func(ctx context.Context) (bool, error) { return s.store.DeleteFTPUser(ctx, account.ID) }),
	)
	if err != nil {
		return report, err
	}
	s.logger.Info("ftp user deleted", "id", account.ID, "username", account.Username)
	return report, nil
}
