package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var resyncLimit int

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Refresh collections whose track lists are stale",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.services.Resync.Run(ctx, resyncLimit)
		if result != nil {
			fmt.Printf("attempted=%d synced=%d units=%d blocked=%d\n",
				result.Attempted, result.Synced, result.Stats.QuotaUnitsUsed, result.Stats.QuotaBlockedSyncs)
		}
		return err
	},
}

func init() {
	resyncCmd.Flags().IntVarP(&resyncLimit, "limit", "l", 50, "maximum collections to refresh")
	rootCmd.AddCommand(resyncCmd)
}
