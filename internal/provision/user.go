package provision

import (
	"context"
	"strings"

	"github.com/panelkit/hostpanel/internal/auth"
	"github.com/panelkit/hostpanel/internal/models"
)

// PanelUserStore is the persistence a UserService needs
type PanelUserStore interface {
	UserStore
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
}

// CreateUserRequest is the input of UserService.Create
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
}

// UserService manages panel users. Users are never deleted here.
type UserService struct {
	base
	store PanelUserStore
}

// NewUserService creates the user service
func NewUserService(store PanelUserStore, opts Options) *UserService {
	return &UserService{base: newBase(opts), store: store}
}

// Create hashes the password and persists the user
func (s *UserService) Create(ctx context.Context, req *CreateUserRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Role == "" {
		req.Role = "user"
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	_, err := s.store.GetUserByUsername(ctx, req.Username)
	if err := ensureAbsent(err, "user "+req.Username); err != nil {
		return nil, err
	}

	role, err := s.store.GetRoleByName(ctx, req.Role)
	if err != nil {
		return nil, storeErr(err, "role "+req.Role)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{Username: req.Username, Email: req.Email, PasswordHash: hash, RoleID: role.ID}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, storeErr(err, "user "+req.Username)
	}
	s.logger.Info("user created", "id", u.ID, "username", u.Username, "role", role.Name)
	return u, nil
}

// Get returns a user by id
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return u, nil
}

// List returns every panel user
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storeErr(err, "users")
	}
	return users, nil
}
