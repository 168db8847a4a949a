package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dhcgn/imap-to-markdown/config"
	"github.com/dhcgn/imap-to-markdown/export"
	"github.com/dhcgn/imap-to-markdown/imapx"
	"github.com/dhcgn/imap-to-markdown/stats"
)

var (
	configPath        string
	accountFilter     string
	deleteAfterExport bool
	logLevel          string
	logDir            string
)

var rootCmd = &cobra.Command{
	Use:   "imap-to-markdown",
	Short: "Export emails from IMAP accounts into a Markdown archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Passwords come from the environment; a .env next to the config is
		// a convenience, its absence is not an error.
		_ = godotenv.Load()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logger, cleanup, err := setupLogger(logLevel, logDir)
		if err != nil {
			return err
		}
		defer func() {
			_ = cleanup()
		}()
		slog.SetDefault(logger)

		accounts, err := cfg.Select(accountFilter)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			return fmt.Errorf("no accounts configured in %s", configPath)
		}

		for _, account := range accounts {
			if deleteAfterExport {
				account.DeleteAfterExport = true
			}
			if err := exportAccount(account, logger); err != nil {
				return fmt.Errorf("account %s: %w", account.Name, err)
			}
		}

		return nil
	},
}

func exportAccount(account config.Account, logger *slog.Logger) error {
	if account.Password == "" {
		return fmt.Errorf("no password in environment for account %s (see accounts command)", account.Name)
	}

	logger.Info("connecting", "account", account.Name, "server", account.Server, "port", account.Port)

	session, err := imapx.Dial(account.Server, account.Port)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Logout(); err != nil {
			logger.Warn("logout failed", "account", account.Name, "err", err)
		}
	}()

	if err := session.Login(account.Username, account.Password); err != nil {
		return err
	}

	exporter, err := export.New(session, account, logger, export.WithLogLevel(logLevel))
	if err != nil {
		return err
	}

	started := time.Now()
	results, err := exporter.ExportAccount()
	if err != nil {
		return err
	}

	total := stats.Total(results)
	logger.Info("account exported",
		append([]any{"account", account.Name, "folders", len(results), "duration", time.Since(started)},
			total.LogAttrs()...)...)
	for _, folder := range stats.Folders(results) {
		logger.Debug("folder result", append([]any{"folder", folder}, results[folder].LogAttrs()...)...)
	}

	return nil
}

func setupLogger(level, dir string) (*slog.Logger, func() error, error) {
	lvl := new(slog.LevelVar)
	switch level {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "info":
		lvl.Set(slog.LevelInfo)
	case "warn":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		return nil, nil, fmt.Errorf("invalid --log-level: %s", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	cleanup := func() error { return nil }

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(dir, fmt.Sprintf("imap-to-markdown-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "accounts.yaml", "Path to the accounts configuration file")
	flags.StringVar(&logLevel, "log-level", "info", "Logging level: debug, info, warn, error")
	flags.StringVar(&logDir, "log-dir", "", "Directory for timestamped log files (optional)")

	rootCmd.Flags().StringVarP(&accountFilter, "account", "a", "", "Export only specific account(s), comma separated")
	rootCmd.Flags().BoolVar(&deleteAfterExport, "delete-after-export", false, "Delete emails after export (dangerous!)")
}
