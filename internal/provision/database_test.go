package provision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/database"
	"github.com/panelkit/hostpanel/internal/dbengine"
)

func newDatabaseFixture(t *testing.T, opts Options) (*database.DB, *recorder, *DatabaseService) {
	t.Helper()
	store := openStore(t)
	rec := newRecorder()
	return store, rec, NewDatabaseService(store, fakeEngine{rec}, opts)
}

func TestDatabaseCreateWithUser(t *testing.T) {
	store, rec, svc := newDatabaseFixture(t, Options{})
	ctx := context.Background()
	owner := createOwner(t, store, "alice")

	db, err := svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "shop_db", Username: "shop_user", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", db.Engine)
	require.Len(t, db.Users, 1)
	assert.Equal(t, "localhost", db.Users[0].Host)

	assert.Equal(t, []string{
		"engine.CreateDatabase shop_db",
		"engine.CreateUser shop_user",
		"engine.GrantPrivileges shop_db shop_user ALL PRIVILEGES",
	}, rec.Calls())

	got, err := svc.Get(ctx, db.ID)
	require.NoError(t, err)
	require.Len(t, got.Users, 1)
	assert.Equal(t, "shop_user", got.Users[0].Username)
}

func TestDatabaseCreateWithoutUser(t *testing.T) {
	store, rec, svc := newDatabaseFixture(t, Options{})
	owner := createOwner(t, store, "alice")

	db, err := svc.Create(context.Background(), &CreateDatabaseRequest{UserID: owner.ID, Name: "blog"})
	require.NoError(t, err)
	assert.Empty(t, db.Users)
	assert.Equal(t, []string{"engine.CreateDatabase blog"}, rec.Calls())
}

func TestDatabaseCreateValidation(t *testing.T) {
	store, rec, svc := newDatabaseFixture(t, Options{})
	owner := createOwner(t, store, "alice")

	tests := []struct {
		name string
		req  *CreateDatabaseRequest
	}{
		{"bad name", &CreateDatabaseRequest{UserID: owner.ID, Name: "shop-db"}},
		{"name too long", &CreateDatabaseRequest{UserID: owner.ID, Name: "a123456789012345678901234567890123456789012345678901234567890123456789"}},
		{"username without password", &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Username: "shop_user"}},
		{"password without username", &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Password: "secret"}},
		{"unknown engine", &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Engine: "oracle"}},
		{"system schema", &CreateDatabaseRequest{UserID: owner.ID, Name: "mysql", Username: "mallory_db", Password: "pw123456"}},
		{"system schema any case", &CreateDatabaseRequest{UserID: owner.ID, Name: "Information_Schema"}},
		{"root account", &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Username: "root", Password: "pw123456"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
	assert.Empty(t, rec.Calls())
}

func TestDatabaseCreateConflicts(t *testing.T) {
	store, rec, svc := newDatabaseFixture(t, Options{})
	ctx := context.Background()
	owner := createOwner(t, store, "alice")

	_, err := svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Username: "shop_user", Password: "pw123456"})
	require.NoError(t, err)
	before := len(rec.Calls())

	_, err = svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "shop"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "other", Username: "shop_user", Password: "pw123456"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	assert.Len(t, rec.Calls(), before)
}

func TestDatabaseCreateRollsBackOnGrantFailure(t *testing.T) {
	store, rec, svc := newDatabaseFixture(t, Options{})
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	rec.failOn["engine.GrantPrivileges"] = errors.New("access denied")

	_, err := svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Username: "shop_user", Password: "pw123456"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindOperational))
	assert.Contains(t, err.Error(), "Failed to create database infrastructure")

	calls := rec.Calls()
	assert.Equal(t, []string{"engine.DeleteUser shop_user", "engine.DeleteDatabase shop"}, calls[len(calls)-2:])

	_, err = store.GetDatabaseByName(ctx, "shop")
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = store.GetDatabaseUserByUsername(ctx, "shop_user")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDatabaseCreateRollsBackOnUserFailure(t *testing.T) {
	store, rec, svc := newDatabaseFixture(t, Options{})
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	rec.failOn["engine.CreateUser"] = errors.New("user exists")

	_, err := svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Username: "shop_user", Password: "pw123456"})
	require.Error(t, err)

	assert.Zero(t, rec.count("engine.DeleteUser"))
	assert.Equal(t, 1, rec.count("engine.DeleteDatabase shop"))
	report := apperr.RollbackOf(err)
	require.NotNil(t, report)
	assert.Equal(t, "drop database=ok delete database record=ok", report.String())

	list, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDatabaseRollbackStepTimesOut(t *testing.T) {
	store, rec, svc := newDatabaseFixture(t, Options{RollbackTimeout: 50 * time.Millisecond})
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	rec.failOn["engine.CreateUser"] = errors.New("user exists")
	rec.block["engine.DeleteDatabase"] = true

	start := time.Now()
	_, err := svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Username: "shop_user", Password: "pw123456"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	report := apperr.RollbackOf(err)
	require.NotNil(t, report)
	assert.Equal(t, []string{"drop database"}, report.Failed())

	// the record is still removed after the stuck step
	_, err = store.GetDatabaseByName(ctx, "shop")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDatabaseRollbackSurvivesCanceledRequest(t *testing.T) {
	store, rec, svc := newDatabaseFixture(t, Options{})
	owner := createOwner(t, store, "alice")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec.onCall = func(line string) {
		if line == "engine.CreateDatabase shop" {
			cancel()
		}
	}
	rec.failOn["engine.CreateDatabase"] = context.Canceled

	_, createErr := svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "shop"})
	require.Error(t, createErr)
	require.Error(t, ctx.Err())
	report := apperr.RollbackOf(createErr)
	require.NotNil(t, report)
	assert.Empty(t, report.Failed())

	_, err := store.GetDatabaseByName(context.Background(), "shop")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDatabaseResetPassword(t *testing.T) {
	store, rec, svc := newDatabaseFixture(t, Options{})
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	_, err := svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Username: "shop_user", Password: "pw123456"})
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, "shop_user", "new-password"))
	assert.Equal(t, 1, rec.count("engine.ChangePassword shop_user"))

	assert.True(t, apperr.Is(svc.ResetPassword(ctx, "ghost", "pw"), apperr.KindNotFound))
	assert.True(t, apperr.Is(svc.ResetPassword(ctx, "shop_user", "a\nb"), apperr.KindValidation))
}

func TestDatabaseDelete(t *testing.T) {
	store, rec, svc := newDatabaseFixture(t, Options{})
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	db, err := svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Username: "shop_user", Password: "pw123456"})
	require.NoError(t, err)

	report, err := svc.Delete(ctx, db.ID)
	require.NoError(t, err)
	assert.Empty(t, report.Failed())

	calls := rec.Calls()
	assert.Equal(t, []string{"engine.DeleteUser shop_user", "engine.DeleteDatabase shop"}, calls[len(calls)-2:])

	_, err = svc.Get(ctx, db.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

// mysqlServer records statements and fails those containing failOn, the
// way the server rejects CREATE on an object that already exists.
type mysqlServer struct {
	queries []string
	failOn  string
}

func (m *mysqlServer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.queries = append(m.queries, query)
	if m.failOn != "" && strings.Contains(query, m.failOn) {
		return nil, fmt.Errorf("Error 1396: %s rejected, object exists", strings.Fields(query)[1])
	}
	return nil, nil
}

func TestDatabaseCreateNeverDropsPreexistingAccount(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	server := &mysqlServer{failOn: "CREATE USER"}
	svc := NewDatabaseService(store, dbengine.NewMySQL(server, "localhost", nil), Options{})

	_, err := svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Username: "legacy_app", Password: "pw123456"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindOperational))

	assert.Equal(t, []string{
		"CREATE DATABASE `shop` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci",
		"CREATE USER ?@? IDENTIFIED BY ?",
		"DROP DATABASE IF EXISTS `shop`",
	}, server.queries)
	_, err = store.GetDatabaseByName(ctx, "shop")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDatabaseCreateOnPreexistingSchemaDropsNothing(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	owner := createOwner(t, store, "alice")
	server := &mysqlServer{failOn: "CREATE DATABASE"}
	svc := NewDatabaseService(store, dbengine.NewMySQL(server, "localhost", nil), Options{})

	_, err := svc.Create(ctx, &CreateDatabaseRequest{UserID: owner.ID, Name: "shop", Username: "shop_user", Password: "pw123456"})
	require.Error(t, err)

	require.Len(t, server.queries, 1)
	for _, q := range server.queries {
		assert.NotContains(t, q, "DROP")
		assert.NotContains(t, q, "GRANT")
	}
}
