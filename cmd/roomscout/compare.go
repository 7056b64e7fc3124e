package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/roomscout/internal/model"
	"github.com/nao1215/roomscout/internal/report"
)

// errNotEnoughRuns is returned when a query has fewer than two stored runs.
var errNotEnoughRuns = errors.New("at least two stored runs are needed to compare")

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <query>",
		Short: "Compare the listings of two stored runs",
		Long: `Compare shows how the listings of a query changed between two runs:
listings that appeared, listings that disappeared, and listings whose
title, description, price or rating changed.

By default the latest run is compared with the one before it. Runs that
ended with an error have no listings and are skipped. Use --with-run-id to
compare the latest run with a specific older run (see
'roomscout history <query>' for run IDs).

Examples:
  # Compare the latest two runs
  roomscout compare "airbnb in goa"

  # Compare the latest run with run 3
  roomscout compare --with-run-id 3 "airbnb in goa"

  # Output the comparison as Markdown
  roomscout compare --markdown "airbnb in goa"`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare the latest run with this run ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	addStoreFlags(cmd)

	return cmd
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	query := args[0]

	withRunID, err := cmd.Flags().GetInt64("with-run-id")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown cannot be used together")
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

	var base, target *model.SearchRun
	if withRunID > 0 {
		latest, err := store.GetLatestCompletedRuns(ctx, query, 1)
		if err != nil {
			return err
		}
		if len(latest) == 0 {
			return fmt.Errorf("no completed runs for %q", query)
		}
		target = latest[0]
		base, err = store.GetRun(ctx, withRunID)
		if err != nil {
			return fmt.Errorf("run %d: %w", withRunID, err)
		}
	} else {
		runs, err := store.GetLatestCompletedRuns(ctx, query, 2)
		if err != nil {
			return err
		}
		if len(runs) < 2 {
			return fmt.Errorf("%w (found %d completed for %q)", errNotEnoughRuns, len(runs), query)
		}
		target, base = runs[0], runs[1]
	}

	diff := model.DiffRuns(base, target)
	out := cmd.OutOrStdout()

	var w report.Writer
	switch {
	case jsonOutput:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case markdownOutput:
		w = report.NewMarkdownWriter(out, cfg.Rules.Extract.Sentinel)
	default:
		w = report.NewSimpleWriter(out, report.WithSentinel(cfg.Rules.Extract.Sentinel))
	}
	_, err = w.WriteDiff(diff)
	return err
}
