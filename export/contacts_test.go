package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactsAddIdempotent(t *testing.T) {
	contacts := NewContacts()
	contacts.Add(TypeDirect, "test@example.com")
	contacts.Add(TypeDirect, "test@example.com")
	contacts.Add(TypeGroup, "test@example.com")
	contacts.Add(TypeDirect, "")

	// Same address under two types counts twice, duplicates within a type
	// and empty addresses do not count at all.
	assert.Equal(t, 2, contacts.Len())
}

func TestContactsWriteCSV(t *testing.T) {
	dir := t.TempDir()

	contacts := NewContacts()
	contacts.Add(TypeDirect, "jean.dupont@example.com")
	contacts.Add(TypeNewsletter, "news@letter.io")

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	path, err := contacts.WriteCSV(dir, "test", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "contacts_test_2024-03-01.csv"), path)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Name", "Email", "Type", "Source", "Notes"}, rows[0])
	assert.Equal(t, []string{
		"Jean Dupont", "jean.dupont@example.com", "Direct", "test", "Collected from test emails",
	}, rows[1])
	assert.Equal(t, "Newsletter", rows[2][2])
	assert.Equal(t, "news@letter.io", rows[2][1])
}

func TestContactsWriteCSVDeterministic(t *testing.T) {
	build := func() *Contacts {
		c := NewContacts()
		c.Add(TypeDirect, "b@x.com")
		c.Add(TypeDirect, "a@x.com")
		c.Add(TypeUnknown, "z@x.com")
		return c
	}
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := build().WriteCSV(t.TempDir(), "acc", now)
	require.NoError(t, err)
	second, err := build().WriteCSV(t.TempDir(), "acc", now)
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
