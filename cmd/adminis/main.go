// Package main provides the entry point for the Adminis Locuințe scraper CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/andygrunwald/adminis-scraper/internal/api/adminis"
	"github.com/andygrunwald/adminis-scraper/internal/config"
	"github.com/andygrunwald/adminis-scraper/internal/database"
	"github.com/andygrunwald/adminis-scraper/internal/scraper"
)

var (
	// Version is set at build time.
	Version = "dev"
	// Commit is set at build time.
	Commit = "none"
	// BuildDate is set at build time.
	BuildDate = "unknown"
)

var cfg *config.Config

func main() {
	// A missing .env file is fine; the environment may be set otherwise.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var username, password string

	rootCmd := &cobra.Command{
		Use:   "adminis",
		Short: "Adminis Scraper - Keep an eye on your association bills",
		Long: `Adminis Scraper logs into the Adminis Locuințe residents portal, discovers
the apartments and parking spots of an account and polls their pending
payments, payment history and meter counters.

Features:
  - Multiple accounts via YAML config file
  - Periodic polling with configurable interval
  - Payment history stored in PostgreSQL
  - Prometheus metrics, status, snapshot and sensor endpoints`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if username != "" || password != "" {
				cfg.SetDefaultAccount(username, password)
			}
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Portal username (e-mail) of the default account")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Portal password of the default account")
	rootCmd.PersistentFlags().StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Portal base URL")
	rootCmd.PersistentFlags().DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Timeout of a single portal request")
	rootCmd.PersistentFlags().StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, console)")
	rootCmd.PersistentFlags().BoolVar(&cfg.StoreRawResponse, "store-raw-response", cfg.StoreRawResponse, "Store raw payment records in database")

	// Add subcommands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(pollCmd())
	rootCmd.AddCommand(locationsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(backfillCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger() zerolog.Logger {
	var logger zerolog.Logger

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Logs go to stderr so that command output on stdout stays parseable.
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stderr).
			With().
			Timestamp().
			Logger()
	}

	return logger
}

// newScraper validates the configuration and registers one aggregator per
// account. A non-empty only restricts it to that account.
func newScraper(logger zerolog.Logger, only string) (*scraper.Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	accounts := cfg.Accounts
	if only != "" {
		acc, ok := cfg.Account(only)
		if !ok {
			return nil, fmt.Errorf("%w: %s", scraper.ErrUnknownAccount, only)
		}
		accounts = []config.Account{acc}
	}

	s := scraper.New(logger)
	for _, acc := range accounts {
		accLogger := logger.With().Str("account", acc.Name).Logger()
		client := adminis.New(accLogger, adminis.Options{
			BaseURL:  cfg.BaseURL,
			Username: acc.Username,
			Password: acc.Password,
			Timeout:  cfg.RequestTimeout,
		})
		s.RegisterAccount(acc.Name, scraper.NewAggregator(client, accLogger))
	}
	return s, nil
}

// openDatabase connects to PostgreSQL and creates the schema.
func openDatabase(ctx context.Context, logger zerolog.Logger) (*database.DB, error) {
	db, err := database.New(cfg.PostgresDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
