package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Contacts accumulates classified addresses across one account export. It
// is owned by a single account run and flushed exactly once at the end.
type Contacts struct {
	sets map[EmailType]map[string]struct{}
}

// NewContacts creates an empty ledger.
func NewContacts() *Contacts {
	return &Contacts{sets: make(map[EmailType]map[string]struct{})}
}

// Add records an address under a type. Adding the same pair twice is a
// no-op; the same address under two types yields two entries.
func (c *Contacts) Add(emailType EmailType, address string) {
	if address == "" {
		return
	}
	set, ok := c.sets[emailType]
	if !ok {
		set = make(map[string]struct{})
		c.sets[emailType] = set
	}
	set[address] = struct{}{}
}

// Len returns the total number of (address, type) pairs.
func (c *Contacts) Len() int {
	total := 0
	for _, set := range c.sets {
		total += len(set)
	}
	return total
}

// WriteCSV renders the ledger to contacts_<account>_<yyyy-mm-dd>.csv in dir
// and returns the file path. Rows are sorted per type so re-runs produce
// identical files.
func (c *Contacts) WriteCSV(dir, accountName string, now time.Time) (string, error) {
	filename := fmt.Sprintf("contacts_%s_%s.csv", accountName, now.Format("2006-01-02"))
	path := filepath.Join(dir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create contacts file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Name", "Email", "Type", "Source", "Notes"}); err != nil {
		return "", fmt.Errorf("write contacts header: %w", err)
	}

	note := fmt.Sprintf("Collected from %s emails", accountName)
	for _, emailType := range []EmailType{TypeDirect, TypeGroup, TypeNewsletter, TypeMailingList, TypeUnknown} {
		set := c.sets[emailType]
		addresses := make([]string, 0, len(set))
		for address := range set {
			addresses = append(addresses, address)
		}
		sort.Strings(addresses)

		for _, address := range addresses {
			row := []string{displayName(address), address, emailType.Label(), accountName, note}
			if err := writer.Write(row); err != nil {
				return "", fmt.Errorf("write contacts row: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("flush contacts file: %w", err)
	}

	return path, nil
}

// displayName guesses a person name from the address local part: split on
// dots, title-case each token.
func displayName(address string) string {
	local := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		local = address[:at]
	}

	words := strings.FieldsFunc(local, func(r rune) bool { return r == '.' })
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
