package provision

import (
	"context"
	"errors"
	"strings"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/database"
	"github.com/panelkit/hostpanel/internal/models"
)

// DefaultPrivileges are granted to the user created alongside a database.
var DefaultPrivileges = []string{"ALL PRIVILEGES"}

// DatabaseStore is the persistence a DatabaseService needs
type DatabaseStore interface {
	UserStore
	CreateDatabase(ctx context.Context, d *models.Database) error
	GetDatabase(ctx context.Context, id int64) (*models.Database, error)
	GetDatabaseByName(ctx context.Context, name string) (*models.Database, error)
	ListDatabases(ctx context.Context, userID int64) ([]*models.Database, error)
	DeleteDatabase(ctx context.Context, id int64) (bool, error)
	CreateDatabaseUser(ctx context.Context, u *models.DatabaseUser) error
	GetDatabaseUserByUsername(ctx context.Context, username string) (*models.DatabaseUser, error)
	ListDatabaseUsers(ctx context.Context, databaseID int64) ([]*models.DatabaseUser, error)
}

// CreateDatabaseRequest is the input of DatabaseService.Create. Username and
// Password are optional but must be given together.
type CreateDatabaseRequest struct {
	UserID   int64  `json:"user_id" validate:"required,gt=0"`
	Name     string `json:"name" validate:"required,max=64,dbident,dbname"`
	Engine   string `json:"engine" validate:"omitempty,oneof=mysql"`
	Username string `json:"username" validate:"required_with=Password,omitempty,max=32,dbident,dbuser"`
	Password string `json:"password" validate:"required_with=Username,omitempty,max=128,singleline"`
}

// DatabaseService provisions customer databases
type DatabaseService struct {
	base
	store  DatabaseStore
	engine DatabaseEngine
}

// NewDatabaseService creates the database service
func NewDatabaseService(store DatabaseStore, engine DatabaseEngine, opts Options) *DatabaseService {
	return &DatabaseService{base: newBase(opts), store: store, engine: engine}
}

// Create creates the database and, when credentials are supplied, a user
// holding all privileges on it.
func (s *DatabaseService) Create(ctx context.Context, req *CreateDatabaseRequest) (*models.Database, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	if req.Engine == "" {
		req.Engine = "mysql"
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	_, err := s.store.GetDatabaseByName(ctx, req.Name)
	if err := ensureAbsent(err, "database "+req.Name); err != nil {
		return nil, err
	}
	if req.Username != "" {
		_, err := s.store.GetDatabaseUserByUsername(ctx, req.Username)
		if err := ensureAbsent(err, "database user "+req.Username); err != nil {
			return nil, err
		}
	}

	owner, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, storeErr(err, "user")
	}

	db := &models.Database{UserID: owner.ID, Name: req.Name, Engine: req.Engine}
	if err := s.store.CreateDatabase(ctx, db); err != nil {
		return nil, storeErr(err, "database "+req.Name)
	}

	var undos undoStack
	undos.push("delete database record", func(ctx context.Context) error {
		_, err := s.store.DeleteDatabase(ctx, db.ID)
		return err
	})
	fail := func(cause error) error {
		return s.fail(ctx, "Failed to create database infrastructure", "database", cause, undos.reversed())
	}

	if err := s.engine.CreateDatabase(ctx, db.Name); err != nil {
		return nil, fail(err)
	}
	undos.push("drop database", func(ctx context.Context) error {
		return s.engine.DeleteDatabase(ctx, db.Name)
	})

	if req.Username != "" {
		dbUser := &models.DatabaseUser{DatabaseID: db.ID, Username: req.Username, Host: s.engine.UserHost()}
		if err := s.store.CreateDatabaseUser(ctx, dbUser); err != nil {
			return nil, fail(storeErr(err, "database user "+req.Username))
		}

		if err := s.engine.CreateUser(ctx, dbUser.Username, req.Password); err != nil {
			return nil, fail(err)
		}
		undos.push("drop database user", func(ctx context.Context) error {
			return s.engine.DeleteUser(ctx, dbUser.Username)
		})

		if err := s.engine.GrantPrivileges(ctx, db.Name, dbUser.Username, DefaultPrivileges); err != nil {
			return nil, fail(err)
		}
		db.Users = append(db.Users, dbUser)
	}

	s.logger.Info("database created", "id", db.ID, "name", db.Name, "user_id", db.UserID, "users", len(db.Users))
	return db, nil
}

// Get returns a database with its users
func (s *DatabaseService) Get(ctx context.Context, id int64) (*models.Database, error) {
	db, err := s.store.GetDatabase(ctx, id)
	if err != nil {
		return nil, storeErr(err, "database")
	}
	users, err := s.store.ListDatabaseUsers(ctx, id)
	if err != nil {
		return nil, storeErr(err, "database users")
	}
	db.Users = users
	return db, nil
}

// List returns the databases of a user
func (s *DatabaseService) List(ctx context.Context, userID int64) ([]*models.Database, error) {
	list, err := s.store.ListDatabases(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "databases")
	}
	return list, nil
}

// ResetPassword sets a new password for a database user
func (s *DatabaseService) ResetPassword(ctx context.Context, username, password string) error {
	if password == "" || strings.ContainsAny(password, "\r\n") {
		return apperr.Validation("password is invalid")
	}
	u, err := s.store.GetDatabaseUserByUsername(ctx, username)
	if err != nil {
		return storeErr(err, "database user")
	}
	if err := s.engine.ChangePassword(ctx, u.Username, password); err != nil {
		return err
	}
	s.logger.Info("database password reset", "user", u.Username)
	return nil
}

// Delete drops the database users and the database, then removes the record.
func (s *DatabaseService) Delete(ctx context.Context, id int64) (*apperr.RollbackReport, error) {
	db, err := s.store.GetDatabase(ctx, id)
	if err != nil {
		return nil, storeErr(err, "database")
	}
	users, err := s.store.ListDatabaseUsers(ctx, id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, storeErr(err, "database users")
	}

	var external []undo
	for _, u := range users {
		username := u.Username
		external = append(external, undo{"drop database user " + username, func(ctx context.Context) error {
			return s.engine.DeleteUser(ctx, username)
		}})
	}
	external = append(external, undo{"drop database", func(ctx context.Context) error {
		return s.engine.DeleteDatabase(ctx, db.Name)
	}})

	report, err := s.teardown(ctx, "database", external, deleteRecord("delete database record", func(ctx context.Context) (bool, error) {
		return s.store.DeleteDatabase(ctx, db.ID)
	}))
	if err != nil {
		return report, err
	}
	s.logger.Info("database deleted", "id", db.ID, "name", db.Name)
	return report, nil
}
