package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "cratedig",
	Short: "cratedig recommends tracks by digging through playlists that share your seeds.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configFile != "" {
			os.Setenv("CONFIG_FILE", configFile)
		}
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
}
