package provision

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panelkit/hostpanel/internal/database"
	"github.com/panelkit/hostpanel/internal/models"
)

// recorder collects adapter calls and injects failures by call prefix.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
	block  map[string]bool
	onCall func(line string)
}

func newRecorder() *recorder {
	return &recorder{failOn: map[string]error{}, block: map[string]bool{}}
}

func (r *recorder) call(ctx context.Context, name string, args ...any) error {
	line := name
	for _, a := range args {
		line += " " + fmt.Sprint(a)
	}
	r.mu.Lock()
	r.calls = append(r.calls, line)
	var err error
	blocking := false
	for prefix, e := range r.failOn {
		if strings.HasPrefix(line, prefix) {
			err = e
		}
	}
	for prefix := range r.block {
		if strings.HasPrefix(line, prefix) {
			blocking = true
		}
	}
	onCall := r.onCall
	r.mu.Unlock()

	if onCall != nil {
		onCall(line)
	}
	if blocking {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fakeWeb struct{ *recorder }

func (f fakeWeb) CreateSite(ctx context.Context, site *models.Site, phpSocket string) error {
	return f.call(ctx, "web.CreateSite", site.Domain, phpSocket)
}

func (f fakeWeb) DeleteSite(ctx context.Context, domain string) error {
	return f.call(ctx, "web.DeleteSite", domain)
}

type fakePHP struct {
	*recorder
	versions []string
	// missing lists configured versions whose binary is absent
	missing []string
}

func (f fakePHP) Supports(version string) bool {
	for _, v := range f.versions {
		if v == version {
			return true
		}
	}
	return false
}

func (f fakePHP) Installed(version string) bool {
	return f.Supports(version) && !slices.Contains(f.missing, version)
}

func (f fakePHP) SocketPath(version, domain string) string {
	return fmt.Sprintf("/run/php/php%s-fpm-%s.sock", version, domain)
}

func (f fakePHP) CreatePool(ctx context.Context, site *models.Site) error {
	return f.call(ctx, "php.CreatePool", site.PHPVersion, site.Domain)
}

func (f fakePHP) DeletePool(ctx context.Context, version, domain string) error {
	return f.call(ctx, "php.DeletePool", version, domain)
}

func (f fakePHP) ListAvailable() []models.PHPRuntime {
	out := make([]models.PHPRuntime, 0, len(f.versions))
	for _, v := range f.versions {
		if slices.Contains(f.missing, v) {
			continue
		}
		out = append(out, models.PHPRuntime{Version: v, Service: "php" + v + "-fpm"})
	}
	return out
}

// fakeFiles tracks which directories exist under root.
type fakeFiles struct {
	*recorder
	root string
	mu   sync.Mutex
	dirs map[string]bool
}

func newFakeFiles(r *recorder) *fakeFiles {
	return &fakeFiles{recorder: r, root: "/var/www", dirs: map[string]bool{}}
}

func (f *fakeFiles) OwnerDir(username string) string { return filepath.Join(f.root, username) }

func (f *fakeFiles) DocumentRoot(username, domain string) string {
	return filepath.Join(f.root, username, domain)
}

func (f *fakeFiles) Contains(path string) bool {
	return strings.HasPrefix(filepath.Clean(path), f.root+"/")
}

func (f *fakeFiles) EnsureOwnerDir(ctx context.Context, username string) error {
	if err := f.call(ctx, "files.EnsureOwnerDir", username); err != nil {
		return err
	}
	f.set(f.OwnerDir(username), true)
	return nil
}

func (f *fakeFiles) CreateDocumentRoot(ctx context.Context, path string) error {
	if err := f.call(ctx, "files.CreateDocumentRoot", path); err != nil {
		return err
	}
	f.set(path, true)
	return nil
}

func (f *fakeFiles) WriteLanding(ctx context.Context, site *models.Site) error {
	return f.call(ctx, "files.WriteLanding", site.Domain)
}

func (f *fakeFiles) RemoveDocumentRoot(ctx context.Context, path string) error {
	if err := f.call(ctx, "files.RemoveDocumentRoot", path); err != nil {
		return err
	}
	f.set(path, false)
	return nil
}

func (f *fakeFiles) set(path string, exists bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if exists {
		f.dirs[path] = true
	} else {
		delete(f.dirs, path)
	}
}

func (f *fakeFiles) exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[path]
}

type fakeEngine struct{ *recorder }

func (f fakeEngine) CreateDatabase(ctx context.Context, name string) error {
	return f.call(ctx, "engine.CreateDatabase", name)
}

func (f fakeEngine) DeleteDatabase(ctx context.Context, name string) error {
	return f.call(ctx, "engine.DeleteDatabase", name)
}

func (f fakeEngine) CreateUser(ctx context.Context, username, password string) error {
	return f.call(ctx, "engine.CreateUser", username)
}

func (f fakeEngine) ChangePassword(ctx context.Context, username, password string) error {
	return f.call(ctx, "engine.ChangePassword", username)
}

func (f fakeEngine) DeleteUser(ctx context.Context, username string) error {
	return f.call(ctx, "engine.DeleteUser", username)
}

func (f fakeEngine) GrantPrivileges(ctx context.Context, db, username string, privileges []string) error {
	return f.call(ctx, "engine.GrantPrivileges", db, username, strings.Join(privileges, ","))
}

func (f fakeEngine) UserHost() string { return "localhost" }

type fakeFTP struct{ *recorder }

func (f fakeFTP) CreateUser(ctx context.Context, username, password, homeDir string) error {
	return f.call(ctx, "ftp.CreateUser", username, homeDir)
}

func (f fakeFTP) UpdateUser(ctx context.Context, username, homeDir string) error {
	return f.call(ctx, "ftp.UpdateUser", username, homeDir)
}

func (f fakeFTP) DeleteUser(ctx context.Context, username string) error {
	return f.call(ctx, "ftp.DeleteUser", username)
}

func (f fakeFTP) ChangePassword(ctx context.Context, username, password string) error {
	return f.call(ctx, "ftp.ChangePassword", username)
}

type fakeScheduler struct{ *recorder }

func (f fakeScheduler) CreateJob(ctx context.Context, job *models.CronJob) error {
	return f.call(ctx, "cron.CreateJob", job.ID)
}

func (f fakeScheduler) UpdateJob(ctx context.Context, old, job *models.CronJob) error {
	return f.call(ctx, "cron.UpdateJob", job.ID, job.Schedule)
}

func (f fakeScheduler) DeleteJob(ctx context.Context, job *models.CronJob) error {
	return f.call(ctx, "cron.DeleteJob", job.ID)
}

type fakeDNS struct{ *recorder }

func (f fakeDNS) CreateZone(ctx context.Context, domain string) error {
	return f.call(ctx, "dns.CreateZone", domain)
}

func (f fakeDNS) DeleteZone(ctx context.Context, domain string) error {
	return f.call(ctx, "dns.DeleteZone", domain)
}

func (f fakeDNS) AddRecord(ctx context.Context, domain string, rec *models.DNSRecord) error {
	return f.call(ctx, "dns.AddRecord", domain, rec.Name, rec.Type, rec.Content)
}

func (f fakeDNS) UpdateRecord(ctx context.Context, domain string, old, rec *models.DNSRecord) error {
	return f.call(ctx, "dns.UpdateRecord", domain, rec.Name, rec.Type, rec.Content)
}

func (f fakeDNS) DeleteRecord(ctx context.Context, domain string, rec *models.DNSRecord) error {
	return f.call(ctx, "dns.DeleteRecord", domain, rec.Name, rec.Type, rec.Content)
}

func openStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "panel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createOwner(t *testing.T, db *database.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}
