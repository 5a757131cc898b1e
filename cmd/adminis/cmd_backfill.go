package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func backfillCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Store the full payment history",
		Long:  "Fetches the complete payment history of every location and stores records that are not in the database yet.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			ctx := cmd.Context()

			if cfg.PostgresDSN == "" {
				return errors.New("--postgres-dsn is required")
			}

			s, err := newScraper(logger, account)
			if err != nil {
				return err
			}

			db, err := openDatabase(ctx, logger)
			if err != nil {
				return err
			}
			defer db.Close()
			s.SetPaymentStore(db, cfg.StoreRawResponse)

			var errs []error
			for _, name := range s.GetAccounts() {
				agg, _ := s.GetAggregator(name)

				logger.Info().Str("account", name).Msg("starting backfill")

				payments, err := agg.PaymentHistory(ctx, "")
				if err != nil {
					errs = append(errs, fmt.Errorf("fetching payment history of %s: %w", name, err))
					continue
				}

				inserted, skipped, err := s.StorePayments(ctx, name, payments)
				if err != nil {
					errs = append(errs, fmt.Errorf("storing payments of %s: %w", name, err))
				}

				logger.Info().
					Str("account", name).
					Int("fetched", len(payments)).
					Int("inserted", inserted).
					Int("skipped", skipped).
					Msg("backfill completed")
			}

			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Backfill only this account")

	return cmd
}
