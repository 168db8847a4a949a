// Package config loads and validates the accounts file. Passwords are never
// stored in the file; they are injected from the environment per account.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var ErrAccountNotFound = errors.New("account not found")

const (
	defaultQuoteDepth = 1
	// Env var suffixes checked for each account, in order.
	envSuffixAppPassword = "_APPLICATION_PASSWORD"
	envSuffixPassword    = "_PASSWORD"
)

// Account is one configured IMAP account. It is read-only during an export
// run, except that the caller may override DeleteAfterExport up front.
type Account struct {
	Name                string
	Server              string
	Port                int
	Username            string
	Password            string
	ExportDirectory     string
	IgnoredFolders      []string
	QuoteDepth          int
	SkipExisting        bool
	CollectContacts     bool
	SkipSignatureImages bool
	DeleteAfterExport   bool
}

// Config is the full accounts file.
type Config struct {
	Accounts []Account
}

// rawAccount mirrors the YAML shape. Pointer fields distinguish "absent"
// from zero so skip_existing can default to true and quote_depth to 1.
type rawAccount struct {
	Name                string   `mapstructure:"name"`
	Server              string   `mapstructure:"server"`
	Port                int      `mapstructure:"port"`
	Username            string   `mapstructure:"username"`
	ExportDirectory     string   `mapstructure:"export_directory"`
	IgnoredFolders      []string `mapstructure:"ignored_folders"`
	QuoteDepth          *int     `mapstructure:"quote_depth"`
	SkipExisting        *bool    `mapstructure:"skip_existing"`
	CollectContacts     bool     `mapstructure:"collect_contacts"`
	SkipSignatureImages bool     `mapstructure:"skip_signature_images"`
	DeleteAfterExport   bool     `mapstructure:"delete_after_export"`
}

// Load reads the accounts file, injects passwords from the environment and
// validates the result. A missing file yields an empty configuration.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var raws []rawAccount
	if err := v.UnmarshalKey("accounts", &raws); err != nil {
		return Config{}, fmt.Errorf("parse accounts: %w", err)
	}

	cfg := Config{Accounts: make([]Account, 0, len(raws))}
	for _, raw := range raws {
		account := Account{
			Name:                raw.Name,
			Server:              raw.Server,
			Port:                raw.Port,
			Username:            raw.Username,
			Password:            passwordFromEnv(raw.Name),
			ExportDirectory:     raw.ExportDirectory,
			IgnoredFolders:      raw.IgnoredFolders,
			QuoteDepth:          defaultQuoteDepth,
			SkipExisting:        true,
			CollectContacts:     raw.CollectContacts,
			SkipSignatureImages: raw.SkipSignatureImages,
			DeleteAfterExport:   raw.DeleteAfterExport,
		}
		if raw.QuoteDepth != nil {
			account.QuoteDepth = *raw.QuoteDepth
		}
		if raw.SkipExisting != nil {
			account.SkipExisting = *raw.SkipExisting
		}
		cfg.Accounts = append(cfg.Accounts, account)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every account for the fields an export run requires.
// Passwords are not validated here; a missing password only fails the
// account that tries to connect.
func (c Config) Validate() error {
	for _, account := range c.Accounts {
		if account.Name == "" {
			return fmt.Errorf("account name cannot be empty")
		}
		if account.Server == "" {
			return fmt.Errorf("server not configured for account %q", account.Name)
		}
		if account.Username == "" {
			return fmt.Errorf("username not configured for account %q", account.Name)
		}
		if account.ExportDirectory == "" {
			return fmt.Errorf("export directory not configured for account %q", account.Name)
		}
		if account.Port <= 0 || account.Port > 65535 {
			return fmt.Errorf("invalid port %d for account %q", account.Port, account.Name)
		}
	}
	return nil
}

// ByName returns the account with the given name.
func (c Config) ByName(name string) (Account, error) {
	for _, account := range c.Accounts {
		if account.Name == name {
			return account, nil
		}
	}
	return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
}

// Select returns the accounts matching the comma-separated name list, or
// all accounts when the list is empty.
func (c Config) Select(names string) ([]Account, error) {
	if strings.TrimSpace(names) == "" {
		return c.Accounts, nil
	}

	var selected []Account
	for _, name := range strings.Split(names, ",") {
		account, err := c.ByName(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		selected = append(selected, account)
	}
	return selected, nil
}

// IsIgnored reports whether a folder is on the account's ignore list.
func (a Account) IsIgnored(folder string) bool {
	for _, ignored := range a.IgnoredFolders {
		if ignored == folder {
			return true
		}
	}
	return false
}

// passwordFromEnv looks up the account password, preferring an application
// password. The account name is sanitized the same way for both variables:
// uppercased with '@', '.' and '-' replaced by underscores.
func passwordFromEnv(accountName string) string {
	sanitized := strings.ToUpper(accountName)
	sanitized = strings.NewReplacer("@", "_", ".", "_", "-", "_").Replace(sanitized)

	if pw := os.Getenv(sanitized + envSuffixAppPassword); pw != "" {
		return pw
	}
	return os.Getenv(sanitized + envSuffixPassword)
}
