package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andygrunwald/adminis-scraper/internal/models"
)

func locationsCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List the locations of each account",
		Long:  "Logs in and prints the apartments and parking spots found on each account's dashboard.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			ctx := cmd.Context()

			s, err := newScraper(logger, account)
			if err != nil {
				return err
			}

			result := make(map[string][]models.Location)
			for _, name := range s.GetAccounts() {
				agg, _ := s.GetAggregator(name)
				locations, err := agg.Locations(ctx)
				if err != nil {
					return fmt.Errorf("discovering locations of %s: %w", name, err)
				}
				result[name] = locations
			}

			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "List only this account")

	return cmd
}
