package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andygrunwald/adminis-scraper/internal/models"
)

func historyCmd() *cobra.Command {
	var account, location string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the payment history",
		Long:  "Prints the payment history of all locations, or of a single location, newest payment first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			ctx := cmd.Context()

			s, err := newScraper(logger, account)
			if err != nil {
				return err
			}

			result := make(map[string][]models.PaymentRecord)
			for _, name := range s.GetAccounts() {
				agg, _ := s.GetAggregator(name)
				payments, err := agg.PaymentHistory(ctx, location)
				if err != nil {
					return fmt.Errorf("fetching payment history of %s: %w", name, err)
				}
				result[name] = payments
			}

			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Only this account")
	cmd.Flags().StringVar(&location, "location", "", "Only this location ID")

	return cmd
}
