package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/roomscout/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [query]",
		Short: "List stored searches",
		Long: `History lists the stored runs of a query, newest first.
Without a query it lists every query that has been searched.

Examples:
  # List every stored query
  roomscout history

  # List the runs of one query
  roomscout history "airbnb in goa"

  # Print the history as JSON
  roomscout history --json "airbnb in goa"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Output history in JSON format")
	addStoreFlags(cmd)

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg, err := storeConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openRunStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	if len(args) == 0 {
		queries, err := store.ListQueries(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out, queries)
		}
		if len(queries) == 0 {
			fmt.Fprintln(out, "No searches stored yet.")
			return nil
		}
		for _, q := range queries {
			fmt.Fprintln(out, q)
		}
		return nil
	}

	history, err := store.GetRunHistory(ctx, args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(out, history)
	}
	if len(history) == 0 {
		fmt.Fprintf(out, "No stored runs for %q.\n", args[0])
		return nil
	}
	return writeHistoryTable(out, history)
}

// writeHistoryTable prints one line per run.
func writeHistoryTable(out io.Writer, history []database.RunSummary) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tLISTINGS\tFALLBACK\tSTATUS")
	for _, h := range history {
		status := "ok"
		if h.Error != "" {
			status = "error: " + h.Error
		}
		fallback := "no"
		if h.FallbackUsed {
			fallback = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
			h.ID, h.StartedAt.Local().Format(time.DateTime), h.Listings, fallback, status)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
