package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cratedig/services"
	"cratedig/utils"
)

var (
	collectionsPerSeed int
	resultsToReturn    int
	excludeSeenTitles  bool
	outputJSON         bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <seed> [seed...]",
	Short: "Recommend tracks for search queries, YouTube URLs or video ids",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		req := services.RecommendationRequest{
			CollectionsPerSeed: collectionsPerSeed,
			ResultsToReturn:    resultsToReturn,
			ExcludeSeenTitles:  excludeSeenTitles,
		}
		for _, raw := range args {
			query, videoID := utils.ParseSeed(raw)
			req.Seeds = append(req.Seeds, services.Seed{Query: query, TrackID: videoID})
		}

		result, err := a.services.Recommendation.Recommend(ctx, req)
		if err != nil {
			return err
		}

		if outputJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		printRecommendations(result)
		return nil
	},
}

func printRecommendations(result *services.RecommendationResult) {
	fmt.Printf("Run %s: %d tracks across %d collections\n\n", result.RunID, result.TotalTracksFound, result.CollectionsProcessed)
	for i, rec := range result.Recommendations {
		fmt.Printf("%3d. %-60s x%d  [%s]\n", i+1, rec.Track.DisplayName(), rec.Frequency, strings.Join(rec.FoundInCollections, ", "))
	}
	s := result.Stats
	fmt.Printf("\nsearches=%d fetches=%d units=%d search_cache_hits=%d collection_cache_hits=%d blocked_searches=%d blocked_syncs=%d\n",
		s.SearchCalls, s.FetchCalls, s.QuotaUnitsUsed, s.SearchCacheHits, s.CollectionCacheHits, s.QuotaBlockedSearches, s.QuotaBlockedSyncs)
}

func init() {
	recommendCmd.Flags().IntVarP(&collectionsPerSeed, "collections", "c", 0, "collections to process per seed (0 uses the configured default)")
	recommendCmd.Flags().IntVarP(&resultsToReturn, "results", "n", 0, "recommendations to return (0 uses the configured default)")
	recommendCmd.Flags().BoolVar(&excludeSeenTitles, "exclude-seen", false, "exclude already processed playlist titles from later searches")
	recommendCmd.Flags().BoolVar(&outputJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(recommendCmd)
}
