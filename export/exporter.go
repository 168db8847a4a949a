package export

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhcgn/imap-to-markdown/config"
	"github.com/dhcgn/imap-to-markdown/imapx"
	"github.com/dhcgn/imap-to-markdown/progress"
	"github.com/dhcgn/imap-to-markdown/retry"
	"github.com/dhcgn/imap-to-markdown/stats"
)

// Exporter drives one account's export over a single IMAP session. All
// session calls are strictly sequential; the session handle is never shared.
type Exporter struct {
	session  imapx.Session
	account  config.Account
	logger   *slog.Logger
	policy   retry.Policy
	logLevel string
	now      func() time.Time
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithRetryPolicy overrides the fetch retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(e *Exporter) {
		e.policy = policy
	}
}

// WithLogLevel passes the CLI log level through so progress bars only
// render at "info".
func WithLogLevel(level string) Option {
	return func(e *Exporter) {
		e.logLevel = level
	}
}

// WithClock overrides the wall clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Exporter for an account over an authenticated session.
func New(session imapx.Session, account config.Account, logger *slog.Logger, opts ...Option) (*Exporter, error) {
	if session == nil {
		return nil, fmt.Errorf("session must not be nil")
	}
	if account.ExportDirectory == "" {
		return nil, fmt.Errorf("account %q has no export directory", account.Name)
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Exporter{
		session: session,
		account: account,
		logger:  logger,
		policy:  retry.DefaultPolicy(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ExportFolder exports every message of one folder. Per-message failures
// are counted and skipped; select, search and expunge failures abort the
// folder. The returned stats are valid even when an error is returned.
func (e *Exporter) ExportFolder(folder string, contacts *Contacts) (stats.ExportStats, error) {
	var result stats.ExportStats

	baseDir := e.account.ExportDirectory
	exportDir := folderExportDir(baseDir, folder)

	count, err := e.session.Select(folder)
	if err != nil {
		return result, fmt.Errorf("select folder %s: %w", folder, err)
	}
	e.logger.Debug("folder selected", "folder", folder, "messages", count)

	uids, err := e.session.SearchAll()
	if err != nil {
		return result, fmt.Errorf("list messages in %s: %w", folder, err)
	}

	bar := progress.New(folder, len(uids), e.logLevel)

	for _, uid := range uids {
		var raw []byte
		fetchErr := e.policy.Do(e.logger, "fetch", func() error {
			body, err := e.session.Fetch(uid)
			if err != nil {
				return err
			}
			raw = body
			return nil
		})

		if fetchErr != nil {
			e.logger.Warn("failed to fetch message", "folder", folder, "uid", uid, "err", fetchErr)
			result.Errors++
			bar.Increment()
			continue
		}

		path, err := ExportToMarkdown(raw, exportDir, baseDir, []string{folder}, e.account, contacts, e.logger)
		switch {
		case err != nil:
			e.logger.Warn("failed to export message", "folder", folder, "uid", uid, "err", err)
			result.Errors++
		case path == "":
			result.Skipped++
		default:
			result.Exported++
			e.logger.Debug("exported message", "folder", folder, "uid", uid, "path", path)
		}

		// Deletion is unconditional per processed identifier, not gated on
		// export success.
		if e.account.DeleteAfterExport {
			if err := e.session.MarkDeleted(uid); err != nil {
				bar.FinishWithMessage(result.String())
				return result, fmt.Errorf("mark message %d deleted: %w", uid, err)
			}
		}

		bar.Increment()
	}

	bar.FinishWithMessage(result.String())

	if e.account.DeleteAfterExport {
		if err := e.session.Expunge(); err != nil {
			return result, fmt.Errorf("expunge %s: %w", folder, err)
		}
	}

	return result, nil
}

// ExportAccount lists folders, exports every folder not on the ignore
// list and returns per-folder stats. A failing folder is reported and the
// remaining folders still run. The contacts CSV, when enabled, is written
// exactly once at the end.
func (e *Exporter) ExportAccount() (map[string]stats.ExportStats, error) {
	results := make(map[string]stats.ExportStats)

	var contacts *Contacts
	if e.account.CollectContacts {
		contacts = NewContacts()
	}

	folders, err := e.session.ListFolders()
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	for _, folder := range folders {
		if e.account.IsIgnored(folder) {
			e.logger.Info("ignored folder", "folder", folder)
			continue
		}

		e.logger.Info("exporting folder", "folder", folder)
		folderStats, err := e.ExportFolder(folder, contacts)
		results[folder] = folderStats
		if err != nil {
			e.logger.Error("folder export failed", "folder", folder, "err", err)
			continue
		}
		e.logger.Info("folder exported", append([]any{"folder", folder}, folderStats.LogAttrs()...)...)
	}

	if contacts != nil {
		path, err := contacts.WriteCSV(e.account.ExportDirectory, e.account.Name, e.now())
		if err != nil {
			return results, fmt.Errorf("write contacts file: %w", err)
		}
		e.logger.Info("generated contacts file", "path", path, "contacts", contacts.Len())
	}

	return results, nil
}

// folderExportDir maps a folder name to its directory below the export
// root, with dot-separated folder paths becoming nested directories.
func folderExportDir(baseDir, folder string) string {
	parts := append([]string{baseDir}, strings.Split(folder, ".")...)
	return filepath.Join(parts...)
}
