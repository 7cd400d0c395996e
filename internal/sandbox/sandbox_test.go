package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelkit/hostpanel/internal/apperr"
)

type spawnRecorder struct {
	lines []string
	code  int
	out   string
}

func (r *spawnRecorder) install(t *testing.T) {
	t.Helper()
	orig := runShell
	runShell = func(ctx context.Context, shell, line string, stdin io.Reader) ([]byte, int, error) {
		r.lines = append(r.lines, line)
		return []byte(r.out), r.code, nil
	}
	t.Cleanup(func() { runShell = orig })
}

func newTestSandbox(t *testing.T, audit *bytes.Buffer) *Sandbox {
	t.Helper()
	opts := Options{
		Allowed:    []string{"rm", "cp", "chmod", "printf", "nginx"},
		Privileged: []string{"rm", "cp", "chmod"},
		Timeout:    5 * time.Second,
		TempDir:    t.TempDir(),
	}
	if audit != nil {
		opts.Audit = slog.New(slog.NewJSONHandler(audit, nil))
	}
	sb, err := New(opts)
	require.NoError(t, err)
	return sb
}

func TestRunRejectsUnlistedCommandWithoutSpawning(t *testing.T) {
	rec := &spawnRecorder{}
	rec.install(t)
	sb := newTestSandbox(t, nil)

	for _, name := range []string{"bash", "curl", "python3", "/bin/rm"} {
		_, err := sb.Run(context.Background(), name, "x")
		require.Error(t, err, name)
		assert.True(t, apperr.Is(err, apperr.KindSecurity), name)

		_, err = sb.RunPrivileged(context.Background(), name, "x")
		assert.True(t, apperr.Is(err, apperr.KindSecurity), name)
	}
	assert.Empty(t, rec.lines)
}

func TestRunRejectsMetacharactersEvenWhenAllowlisted(t *testing.T) {
	rec := &spawnRecorder{}
	rec.install(t)
	sb := newTestSandbox(t, nil)

	names := []string{"rm; rm -rf /", "rm|cat", "rm&", "$rm", "`rm`", "rm<x", "rm>x", "rm(", "rm)", "{rm}", "[rm]", `rm\`, "rm -rf", "rm\t", "rm\n"}
	for _, name := range names {
		_, err := sb.Run(context.Background(), name)
		assert.True(t, apperr.Is(err, apperr.KindSecurity), "%q", name)
		_, err = sb.RunPrivileged(context.Background(), name)
		assert.True(t, apperr.Is(err, apperr.KindSecurity), "%q", name)
	}
	assert.Empty(t, rec.lines)
}

func TestRunPrivilegedFailsClosedForGeneralOnlyCommands(t *testing.T) {
	rec := &spawnRecorder{}
	rec.install(t)
	sb := newTestSandbox(t, nil)

	_, err := sb.RunPrivileged(context.Background(), "nginx", "-t")
	assert.True(t, apperr.Is(err, apperr.KindSecurity))
	assert.Empty(t, rec.lines)

	res, err := sb.Run(context.Background(), "nginx", "-t")
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, []string{"nginx -t"}, rec.lines)
}

func TestRunPrivilegedAllowsListedCommand(t *testing.T) {
	rec := &spawnRecorder{}
	rec.install(t)
	sb := newTestSandbox(t, nil)

	res, err := sb.RunPrivileged(context.Background(), "rm", "-rf", "/var/www/my site")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	require.Len(t, rec.lines, 1)
	assert.True(t, strings.HasSuffix(rec.lines[0], "rm -rf '/var/www/my site'"), rec.lines[0])
}

func TestNewRejectsPrivilegedOutsideAllowlist(t *testing.T) {
	_, err := New(Options{Allowed: []string{"cp"}, Privileged: []string{"rm"}})
	assert.Error(t, err)
}

func TestNonZeroExitIsReturnedAsDataAndAudited(t *testing.T) {
	rec := &spawnRecorder{code: 3, out: "boom"}
	rec.install(t)
	var audit bytes.Buffer
	sb := newTestSandbox(t, &audit)

	res, err := sb.Run(context.Background(), "printf", "x")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom", res.Output)

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(audit.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		records = append(records, m)
	}
	require.Len(t, records, 2)
	assert.Equal(t, "command executed", records[0]["msg"])
	assert.Equal(t, "printf", records[0]["command"])
	assert.NotEmpty(t, records[0]["time"])
	assert.Contains(t, records[0], "os_user")
	assert.Equal(t, "command exited non-zero", records[1]["msg"])
	assert.EqualValues(t, 3, records[1]["exit_code"])

	err = Failure("printf", res, nil)
	assert.True(t, apperr.Is(err, apperr.KindOperational))
	assert.Contains(t, err.Error(), "boom")
}

func TestQuoteRoundTripsThroughShell(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh available")
	}
	sb := newTestSandbox(t, nil)

	samples := []string{
		"plain",
		"with space",
		"it's quoted",
		`double "quotes"`,
		"$HOME and `id`",
		"semi; colon | pipe & amp",
		"back\\slash",
		"'",
		"''",
		"trailing space ",
		"*.php",
		"",
	}
	for _, s := range samples {
		res, err := sb.Run(context.Background(), "printf", "%s", s)
		require.NoError(t, err, s)
		require.Equal(t, 0, res.ExitCode, s)
		assert.Equal(t, s, res.Output, "round trip of %q", s)
	}
}

func TestQuoteLeavesSafeWordsBare(t *testing.T) {
	assert.Equal(t, "/etc/nginx/sites-available/example.com", Quote("/etc/nginx/sites-available/example.com"))
	assert.Equal(t, "''", Quote(""))
	assert.Equal(t, `'a'"'"'b'`, Quote("a'b"))
	assert.Equal(t, "mkdir -p '/var/www/a b'", CommandLine("mkdir", "-p", "/var/www/a b"))
}

func TestWriteFileCopiesThenChmods(t *testing.T) {
	rec := &spawnRecorder{}
	rec.install(t)
	sb := newTestSandbox(t, nil)

	dest := filepath.Join(t.TempDir(), "vhost.conf")
	res, err := sb.WriteFile(context.Background(), dest, []byte("server {}"), 0644)
	require.NoError(t, err)
	assert.True(t, res.OK())

	require.Len(t, rec.lines, 2)
	assert.Contains(t, rec.lines[0], "cp ")
	assert.True(t, strings.HasSuffix(rec.lines[0], dest))
	assert.True(t, strings.HasSuffix(rec.lines[1], "chmod 644 "+dest))

	// the temp file is gone and the destination was never written directly
	entries, err := os.ReadDir(sb.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFileStopsWhenCopyFails(t *testing.T) {
	rec := &spawnRecorder{code: 1, out: "cp: permission denied"}
	rec.install(t)
	sb := newTestSandbox(t, nil)

	res, err := sb.WriteFile(context.Background(), "/etc/x.conf", []byte("x"), 0644)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Len(t, rec.lines, 1)
}

func TestTimeoutIsOperationalError(t *testing.T) {
	orig := runShell
	runShell = func(ctx context.Context, shell, line string, stdin io.Reader) ([]byte, int, error) {
		<-ctx.Done()
		return nil, -1, ctx.Err()
	}
	t.Cleanup(func() { runShell = orig })

	sb, err := New(Options{Allowed: []string{"printf"}, Privileged: []string{}, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = sb.Run(context.Background(), "printf", "x")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindOperational))
	assert.Contains(t, err.Error(), "timed out")
}

func TestFileLocksSerializeSamePath(t *testing.T) {
	locks := NewFileLocks()
	unlock := locks.Lock("/var/spool/cron/crontabs/panel")

	acquired := make(chan struct{})
	go func() {
		u := locks.Lock("/var/spool/cron/crontabs/panel")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	// other paths are independent
	other := locks.Lock("/etc/bind/named.conf.local")
	other()

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}
