package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/roomscout/internal/api"
	"github.com/nao1215/roomscout/internal/log"
)

// defaultServeAddr is the listen address of the serve command.
const defaultServeAddr = ":8080"

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over HTTP",
		Long: `Serve starts a read-only JSON API over the run store.

Routes:
  GET /healthz
  GET /api/queries
  GET /api/runs?query=<query>
  GET /api/runs/<id>
  GET /api/compare?query=<query>
  GET /api/listings/<identifier>

Examples:
  # Serve on :8080
  roomscout serve

  # Serve on localhost only
  roomscout serve --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", defaultServeAddr, "Listen address")
	addStoreFlags(cmd)

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}

	cfg, err := storeConfig(cmd)
	if err != nil {
		return err
	}

	logger := log.NewSecureJSONLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openRunStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", store.Location(), addr)
	if err := api.NewServer(store, api.WithLogger(logger)).ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
