package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andygrunwald/adminis-scraper/internal/models"
)

func pollCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run a one-time poll",
		Long:  "Polls every configured account once and prints the snapshots as JSON. Useful for testing credentials.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			ctx := cmd.Context()

			s, err := newScraper(logger, account)
			if err != nil {
				return err
			}

			if cfg.PostgresDSN != "" {
				db, err := openDatabase(ctx, logger)
				if err != nil {
					return err
				}
				defer db.Close()
				s.SetPaymentStore(db, cfg.StoreRawResponse)
			}

			logger.Info().
				Strs("accounts", s.GetAccounts()).
				Msg("running one-time poll")

			snapshots := make(map[string]*models.Snapshot)
			for _, name := range s.GetAccounts() {
				snapshot, err := s.PollAccount(ctx, name)
				if err != nil {
					return fmt.Errorf("polling account %s: %w", name, err)
				}
				snapshots[name] = snapshot
			}

			logger.Info().Msg("poll completed")
			return printJSON(cmd.OutOrStdout(), snapshots)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Poll only this account")

	return cmd
}
