package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/roomscout/internal/config"
)

//go:embed templates/roomscout.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a roomscout rules file",
		Long: `Init writes a commented .roomscout rules file to the current directory.

The file lists every selector, pattern, timing and rotation value with its
built-in default. Uncomment and edit the keys you want to change when the
search engine or marketplace changes its markup.

Examples:
  # Create .roomscout in the current directory
  roomscout init

  # Create the file at a specific path
  roomscout init -o ~/.config/roomscout/config.yaml

  # Overwrite an existing file
  roomscout init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the rules file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/roomscout.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nUncomment and edit keys to override:")
	fmt.Fprintln(out, "  - search engine and marketplace selectors")
	fmt.Fprintln(out, "  - waits, scroll cycles and pacing")
	fmt.Fprintln(out, "  - the user agent, viewport, locale and timezone rotation")

	return nil
}
