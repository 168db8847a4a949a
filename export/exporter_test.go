package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/imap-to-markdown/retry"
)

// fakeSession implements imapx.Session against in-memory folders.
type fakeSession struct {
	folders  map[string][][]byte
	order    []string
	selected string

	failFetches map[imapv2.UID]int

	deleted  []imapv2.UID
	expunges int
	loggedIn bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		folders:     make(map[string][][]byte),
		failFetches: make(map[imapv2.UID]int),
	}
}

func (f *fakeSession) addFolder(name string, messages ...[]byte) {
	f.folders[name] = messages
	f.order = append(f.order, name)
}

func (f *fakeSession) Login(username, password string) error {
	f.loggedIn = true
	return nil
}

func (f *fakeSession) ListFolders() ([]string, error) {
	return append([]string(nil), f.order...), nil
}

func (f *fakeSession) Select(folder string) (uint32, error) {
	messages, ok := f.folders[folder]
	if !ok {
		return 0, fmt.Errorf("no such folder: %s", folder)
	}
	f.selected = folder
	return uint32(len(messages)), nil
}

func (f *fakeSession) SearchAll() ([]imapv2.UID, error) {
	messages := f.folders[f.selected]
	uids := make([]imapv2.UID, len(messages))
	for i := range messages {
		uids[i] = imapv2.UID(i + 1)
	}
	return uids, nil
}

func (f *fakeSession) Fetch(uid imapv2.UID) ([]byte, error) {
	if remaining := f.failFetches[uid]; remaining > 0 {
		f.failFetches[uid] = remaining - 1
		return nil, errors.New("connection reset")
	}
	messages := f.folders[f.selected]
	idx := int(uid) - 1
	if idx < 0 || idx >= len(messages) {
		return nil, fmt.Errorf("no message %d", uid)
	}
	return messages[idx], nil
}

func (f *fakeSession) MarkDeleted(uid imapv2.UID) error {
	f.deleted = append(f.deleted, uid)
	return nil
}

func (f *fakeSession) Expunge() error {
	f.expunges++
	return nil
}

func (f *fakeSession) Logout() error { return nil }

func quickRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 2, Delay: time.Millisecond}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func rawDirect(from, to, subject string) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Date: Fri, 05 Jan 2024 10:30:00 +0100",
		"Subject: " + subject,
		"",
		"Body of " + subject,
	}, "\r\n"))
}

func TestExportFolder(t *testing.T) {
	base := t.TempDir()
	session := newFakeSession()
	session.addFolder("INBOX", rawDirect("a@x.com", "b@x.com", "Hello"))

	exporter, err := New(session, testAccount(base), quietLogger(), WithRetryPolicy(quickRetry()))
	require.NoError(t, err)

	result, err := exporter.ExportFolder("INBOX", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Exported)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Errors)

	_, err = os.Stat(filepath.Join(base, "INBOX", "email_2024-01-05_a_to_b.md"))
	assert.NoError(t, err)
}

func TestExportFolderSecondRunSkips(t *testing.T) {
	base := t.TempDir()
	session := newFakeSession()
	session.addFolder("INBOX", rawDirect("a@x.com", "b@x.com", "Hello"))

	exporter, err := New(session, testAccount(base), quietLogger(), WithRetryPolicy(quickRetry()))
	require.NoError(t, err)

	first, err := exporter.ExportFolder("INBOX", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Exported)

	second, err := exporter.ExportFolder("INBOX", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Exported)
	assert.Equal(t, 1, second.Skipped)
}

func TestExportFolderCountsFetchErrors(t *testing.T) {
	base := t.TempDir()
	session := newFakeSession()
	session.addFolder("INBOX",
		rawDirect("a@x.com", "b@x.com", "First"),
		rawDirect("c@x.com", "d@x.com", "Second"),
	)
	// UID 1 fails more often than the retry budget allows.
	session.failFetches[1] = 5

	exporter, err := New(session, testAccount(base), quietLogger(), WithRetryPolicy(quickRetry()))
	require.NoError(t, err)

	result, err := exporter.ExportFolder("INBOX", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Exported)
	assert.Equal(t, 1, result.Errors)
}

func TestExportFolderRetryRecovers(t *testing.T) {
	base := t.TempDir()
	session := newFakeSession()
	session.addFolder("INBOX", rawDirect("a@x.com", "b@x.com", "Flaky"))
	// One transient failure, inside the two-attempt budget.
	session.failFetches[1] = 1

	exporter, err := New(session, testAccount(base), quietLogger(), WithRetryPolicy(quickRetry()))
	require.NoError(t, err)

	result, err := exporter.ExportFolder("INBOX", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Exported)
	assert.Equal(t, 0, result.Errors)
}

func TestExportFolderDeleteAfterExport(t *testing.T) {
	base := t.TempDir()
	session := newFakeSession()
	session.addFolder("INBOX",
		rawDirect("a@x.com", "b@x.com", "One"),
		rawDirect("c@x.com", "d@x.com", "Two"),
	)
	// Make the second message unexportable so we can verify deletion is not
	// gated on export success.
	session.failFetches[2] = 5

	account := testAccount(base)
	account.DeleteAfterExport = true

	exporter, err := New(session, account, quietLogger(), WithRetryPolicy(quickRetry()))
	require.NoError(t, err)

	result, err := exporter.ExportFolder("INBOX", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Exported)
	assert.Equal(t, 1, result.Errors)

	// Only the processed (fetched) identifier is marked; the fetch-failed one
	// is skipped before the mark step, but expunge still runs once.
	assert.Equal(t, []imapv2.UID{1}, session.deleted)
	assert.Equal(t, 1, session.expunges)
}

func TestExportAccount(t *testing.T) {
	base := t.TempDir()
	session := newFakeSession()
	session.addFolder("INBOX", rawDirect("a@x.com", "b@x.com", "Hello"))
	session.addFolder("Work.Projects", rawDirect("p@x.com", "q@x.com", "Plan"))
	session.addFolder("Trash", rawDirect("x@x.com", "y@x.com", "Junk"))

	account := testAccount(base)
	account.IgnoredFolders = []string{"Trash"}
	account.CollectContacts = true

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	exporter, err := New(session, account, quietLogger(),
		WithRetryPolicy(quickRetry()), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	results, err := exporter.ExportAccount()
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 1, results["INBOX"].Exported)
	assert.Equal(t, 1, results["Work.Projects"].Exported)
	_, ignored := results["Trash"]
	assert.False(t, ignored, "ignored folder must not appear in the results")

	// Dotted folder names become nested directories.
	_, err = os.Stat(filepath.Join(base, "Work", "Projects", "email_2024-01-05_p_to_q.md"))
	assert.NoError(t, err)

	// Contacts ledger flushed once at the end.
	_, err = os.Stat(filepath.Join(base, "contacts_test_2024-03-01.csv"))
	assert.NoError(t, err)
}

func TestExportAccountContinuesAfterFolderFailure(t *testing.T) {
	base := t.TempDir()
	session := newFakeSession()
	session.addFolder("INBOX", rawDirect("a@x.com", "b@x.com", "Hello"))
	// Listed but not selectable.
	session.order = append([]string{"Broken"}, session.order...)

	exporter, err := New(session, testAccount(base), quietLogger(), WithRetryPolicy(quickRetry()))
	require.NoError(t, err)

	results, err := exporter.ExportAccount()
	require.NoError(t, err)
	assert.Equal(t, 1, results["INBOX"].Exported)
}
