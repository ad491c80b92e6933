// Command optionscanctl runs scans, queries and refreshes in-process against
// the configured stores, for operators working without the HTTP API.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/optionscan/internal/app"
	"github.com/alanyoungcy/optionscan/internal/config"
)

type globalFlags struct {
	configPath string
	jsonOut    bool
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "optionscanctl",
		Short:         "Operate the options income scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "config.toml", "path to configuration file")
	root.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "print JSON instead of tables")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log engine activity to stderr")

	root.AddCommand(
		newScanCmd(g),
		newQueryCmd(g),
		newExportCmd(g),
		newRefreshCmd(g),
		newWatchlistCmd(g),
	)
	return root
}

// withDeps loads configuration, wires dependencies and runs fn with them.
func withDeps(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, deps *app.Dependencies) error) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if g.verbose {
		logOut = cmd.ErrOrStderr()
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := cmd.Context()
	deps, cleanup, err := app.Wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, deps)
}
