package dns

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/models"
	"github.com/panelkit/hostpanel/internal/sandbox"
	"github.com/panelkit/hostpanel/internal/templates"
)

var serialLine = regexp.MustCompile(`(?m)^(\s*)(\d{10})(\s*;\s*serial)`)

// Bind maintains one zone file per domain plus a named include file listing
// every managed zone.
type Bind struct {
	runner      sandbox.Runner
	zoneDir     string
	includeFile string
	settings    Settings
	locks       *sandbox.FileLocks
	now         func() time.Time
	logger      *slog.Logger
}

// NewBind creates the zone-file backend
func NewBind(runner sandbox.Runner, cfg models.BindConfig, settings Settings, locks *sandbox.FileLocks, logger *slog.Logger) *Bind {
	if logger == nil {
		logger = slog.Default()
	}
	if locks == nil {
		locks = sandbox.NewFileLocks()
	}
	if settings.DefaultTTL <= 0 {
		settings.DefaultTTL = 3600
	}
	return &Bind{
		runner:      runner,
		zoneDir:     cfg.ZoneDir,
		includeFile: cfg.IncludeFile,
		settings:    settings,
		locks:       locks,
		now:         time.Now,
		logger:      logger,
	}
}

// ZonePath returns the zone file of domain
func (b *Bind) ZonePath(domain string) string {
	return filepath.Join(b.zoneDir, "db."+domain)
}

// CreateZone writes a fresh zone with SOA and NS records and registers it
// with named.
func (b *Bind) CreateZone(ctx context.Context, domain string) error {
	if err := ValidateZoneName(domain); err != nil {
		return err
	}
	if len(b.settings.Nameservers) == 0 {
		return apperr.Validation("no nameservers configured")
	}

	header, err := templates.GenerateZoneHeader(&templates.ZoneHeader{
		Domain:      domain,
		Serial:      NextSerial("", b.now()),
		TTL:         b.settings.DefaultTTL,
		PrimaryNS:   b.settings.Nameservers[0],
		Hostmaster:  b.settings.Hostmaster,
		Nameservers: b.settings.Nameservers,
	})
	if err != nil {
		return apperr.Operational("failed to render zone", err)
	}

	unlock := b.locks.Lock(b.ZonePath(domain))
	err = b.install(ctx, domain, header)
	unlock()
	if err != nil {
		return err
	}

	if err := b.AddZoneToConfig(ctx, domain); err != nil {
		b.discard(ctx, domain)
		return err
	}
	if err := b.rndc(ctx, "reconfig"); err != nil {
		b.discard(ctx, domain)
		return err
	}
	return nil
}

// discard removes what a failed CreateZone left behind: the include stanza
// and the zone file. Errors are logged only.
func (b *Bind) discard(ctx context.Context, domain string) {
	b.logger.Warn("discarding zone after failed create", "domain", domain)
	if err := b.RemoveZoneFromConfig(ctx, domain); err != nil {
		b.logger.Error("failed to remove zone stanza", "domain", domain, "error", err)
	}
	unlock := b.locks.Lock(b.ZonePath(domain))
	res, err := b.runner.RunPrivileged(ctx, "rm", "-f", b.ZonePath(domain))
	unlock()
	if err := sandbox.Failure("failed to remove zone file", res, err); err != nil {
		b.logger.Error("failed to remove zone file", "domain", domain, "error", err)
	}
}

// DeleteZone unregisters domain and removes its zone file.
func (b *Bind) DeleteZone(ctx context.Context, domain string) error {
	if err := b.RemoveZoneFromConfig(ctx, domain); err != nil {
		return err
	}

	unlock := b.locks.Lock(b.ZonePath(domain))
	res, err := b.runner.RunPrivileged(ctx, "rm", "-f", b.ZonePath(domain))
	unlock()
	if err := sandbox.Failure("failed to remove zone file", res, err); err != nil {
		return err
	}
	return b.rndc(ctx, "reconfig")
}

// AddRecord appends rec to the zone and bumps the serial.
func (b *Bind) AddRecord(ctx context.Context, domain string, rec *models.DNSRecord) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}
	return b.edit(ctx, domain, func(lines []string) []string {
		return append(lines, RecordLine(rec))
	})
}

// UpdateRecord replaces old with rec in a single zone write.
func (b *Bind) UpdateRecord(ctx context.Context, domain string, old, rec *models.DNSRecord) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}
	return b.edit(ctx, domain, func(lines []string) []string {
		return append(removeRecord(lines, old), RecordLine(rec))
	})
}

// DeleteRecord removes every line equal to rec's rendering. Records that share
// name and type but differ in content are kept.
func (b *Bind) DeleteRecord(ctx context.Context, domain string, rec *models.DNSRecord) error {
	return b.edit(ctx, domain, func(lines []string) []string {
		kept := removeRecord(lines, rec)
		if len(kept) == len(lines) {
			b.logger.Warn("record not present in zone", "domain", domain, "record", RecordLine(rec))
		}
		return kept
	})
}

func (b *Bind) edit(ctx context.Context, domain string, change func([]string) []string) error {
	path := b.ZonePath(domain)
	unlock := b.locks.Lock(path)
	defer unlock()

	res, err := b.runner.RunPrivileged(ctx, "cat", path)
	if err := sandbox.Failure(fmt.Sprintf("failed to read zone %s", domain), res, err); err != nil {
		return err
	}

	content := b.bumpSerial(res.Output)
	lines := change(strings.Split(strings.TrimRight(content, "\n"), "\n"))
	if err := b.install(ctx, domain, strings.Join(lines, "\n")+"\n"); err != nil {
		return err
	}
	return b.rndc(ctx, "reload", domain)
}

func (b *Bind) bumpSerial(content string) string {
	done := false
	return serialLine.ReplaceAllStringFunc(content, func(m string) string {
		if done {
			return m
		}
		done = true
		sub := serialLine.FindStringSubmatch(m)
		return sub[1] + NextSerial(sub[2], b.now()) + sub[3]
	})
}

func normalizeLine(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

func removeRecord(lines []string, rec *models.DNSRecord) []string {
	target := normalizeLine(RecordLine(rec))
	kept := lines[:0:0]
	for _, l := range lines {
		if normalizeLine(l) == target {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// install stages content next to the zone file, checks it with
// named-checkzone and only then moves it into place.
func (b *Bind) install(ctx context.Context, domain, content string) error {
	path := b.ZonePath(domain)
	staged := path + ".new"

	res, err := b.runner.WriteFile(ctx, staged, []byte(content), 0644)
	if err := sandbox.Failure("failed to write zone", res, err); err != nil {
		return err
	}

	res, err = b.runner.RunPrivileged(ctx, "named-checkzone", domain, staged)
	if err := sandbox.Failure(fmt.Sprintf("zone %s failed validation", domain), res, err); err != nil {
		b.runner.RunPrivileged(ctx, "rm", "-f", staged)
		return err
	}

	res, err = b.runner.RunPrivileged(ctx, "mv", "-f", staged, path)
	return sandbox.Failure("failed to activate zone", res, err)
}

func stanzaHeader(domain string) string {
	return fmt.Sprintf(`zone "%s" {`, domain)
}

// AddZoneToConfig appends a stanza for domain to the include file unless one
// is already there.
func (b *Bind) AddZoneToConfig(ctx context.Context, domain string) error {
	unlock := b.locks.Lock(b.includeFile)
	defer unlock()

	current, err := b.readInclude(ctx)
	if err != nil {
		return err
	}
	for _, l := range strings.Split(current, "\n") {
		if strings.TrimSpace(l) == stanzaHeader(domain) {
			return nil
		}
	}

	stanza, err := templates.GenerateZoneStanza(&templates.ZoneStanzaConfig{Domain: domain, ZoneFile: b.ZonePath(domain)})
	if err != nil {
		return apperr.Operational("failed to render zone stanza", err)
	}
	if current != "" && !strings.HasSuffix(current, "\n") {
		current += "\n"
	}
	return b.writeInclude(ctx, current, current+stanza)
}

// RemoveZoneFromConfig drops domain's stanza from the include file.
func (b *Bind) RemoveZoneFromConfig(ctx context.Context, domain string) error {
	unlock := b.locks.Lock(b.includeFile)
	defer unlock()

	current, err := b.readInclude(ctx)
	if err != nil {
		return err
	}

	var kept []string
	skipping := false
	for _, l := range strings.Split(current, "\n") {
		trimmed := strings.TrimSpace(l)
		if trimmed == stanzaHeader(domain) {
			skipping = true
			continue
		}
		if skipping {
			if trimmed == "};" {
				skipping = false
			}
			continue
		}
		kept = append(kept, l)
	}
	updated := strings.Join(kept, "\n")
	if updated == current {
		return nil
	}
	return b.writeInclude(ctx, current, updated)
}

// readInclude returns the include file, or "" when it does not exist yet.
func (b *Bind) readInclude(ctx context.Context) (string, error) {
	res, err := b.runner.RunPrivileged(ctx, "cat", b.includeFile)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		if strings.Contains(res.Output, "No such file") {
			return "", nil
		}
		return "", sandbox.Failure("failed to read named include", res, nil)
	}
	return res.Output, nil
}

// writeInclude installs updated and restores previous if named rejects it.
func (b *Bind) writeInclude(ctx context.Context, previous, updated string) error {
	res, err := b.runner.WriteFile(ctx, b.includeFile, []byte(updated), 0644)
	if err := sandbox.Failure("failed to write named include", res, err); err != nil {
		return err
	}
	res, err = b.runner.RunPrivileged(ctx, "named-checkconf")
	if err := sandbox.Failure("named configuration check failed", res, err); err != nil {
		b.logger.Warn("restoring named include", "file", b.includeFile, "error", err)
		b.runner.WriteFile(ctx, b.includeFile, []byte(previous), 0644)
		return err
	}
	return nil
}

func (b *Bind) rndc(ctx context.Context, args ...string) error {
	res, err := b.runner.RunPrivileged(ctx, "rndc", args...)
	return sandbox.Failure("failed to reload named", res, err)
}
