package cmd

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dhcgn/imap-to-markdown/config"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the configured accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if len(cfg.Accounts) == 0 {
			fmt.Printf("No accounts configured in %s\n", configPath)
			return nil
		}

		for _, account := range cfg.Accounts {
			fmt.Printf("%s\n", account.Name)
			fmt.Printf("  server:    %s:%d (user %s)\n", account.Server, account.Port, account.Username)
			fmt.Printf("  export to: %s\n", account.ExportDirectory)
			fmt.Printf("  password:  %s\n", passwordStatus(account))
			if len(account.IgnoredFolders) > 0 {
				fmt.Printf("  ignoring:  %s\n", strings.Join(account.IgnoredFolders, ", "))
			}
			if flags := accountFlags(account); flags != "" {
				fmt.Printf("  flags:     %s\n", flags)
			}
		}

		return nil
	},
}

func passwordStatus(account config.Account) string {
	if account.Password == "" {
		return "MISSING"
	}
	return "set"
}

func accountFlags(account config.Account) string {
	var flags []string
	if account.SkipExisting {
		flags = append(flags, "skip-existing")
	}
	if account.CollectContacts {
		flags = append(flags, "collect-contacts")
	}
	if account.SkipSignatureImages {
		flags = append(flags, "skip-signature-images")
	}
	if account.DeleteAfterExport {
		flags = append(flags, "delete-after-export")
	}
	return strings.Join(flags, ", ")
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}
