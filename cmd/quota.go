package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cratedig/models"
)

var quotaCmd = &cobra.Command{
	Use:   "quota [source...]",
	Short: "Show today's quota usage per source",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		var sources []models.Source
		for _, name := range args {
			source, err := models.ParseSource(name)
			if err != nil {
				return err
			}
			sources = append(sources, source)
		}

		statuses, err := a.services.Quota.Status(ctx, sources...)
		if err != nil {
			return err
		}
		fmt.Printf("%-12s %-10s %8s %8s %9s %8s %8s\n", "SOURCE", "DATE", "USED", "LIMIT", "REMAINING", "SEARCHES", "FETCHES")
		for _, s := range statuses {
			fmt.Printf("%-12s %-10s %8d %8d %9d %8d %8d\n", s.Source, s.Date, s.UnitsUsed, s.DailyLimit, s.Remaining, s.SearchCalls, s.FetchCalls)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}
