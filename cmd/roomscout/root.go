package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for roomscout.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roomscout",
		Short: "Find lodging listings through a real browser",
		Long: `roomscout searches the web for a place to stay the way a person would:
it types your query into a search engine, follows the first organic result
to the marketplace, scrolls the results, and saves the first listings as JSON.

A visible browser window is used by default so you can complete any
verification page that appears. Every run is stored locally so that
'roomscout compare' can show what changed between searches.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
