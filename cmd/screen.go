package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screener/internal/api"
	"github.com/JakeFAU/batch-screener/internal/app"
	"github.com/JakeFAU/batch-screener/internal/screener"
	"github.com/JakeFAU/batch-screener/internal/universe"
)

func newScreenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Screen the configured ticker universe",
		Long: `Loads the universe, fetches the baseline series, resumes from the
last checkpoint when enabled, and screens the remaining tickers. The run
summary is printed as JSON on stdout.`,
		Args: cobra.NoArgs,
		RunE: withApp(runScreenCommand),
	}
	flags := cmd.Flags()
	flags.String("universe", "", "file with one ticker per line")
	flags.Bool("resume", true, "continue from the last checkpoint")
	flags.Int("workers", 5, "number of concurrent workers")
	flags.Duration("delay", 0, "pause before each request, per worker")
	flags.Bool("with-results", false, "include every result in the printed summary")
	return cmd
}

func runScreenCommand(cmd *cobra.Command, a *app.App) error {
	logger := a.Logger
	ctx := cmd.Context()

	items, err := universe.Load(a.Config.Screen.UniverseFile, a.Config.Screen.Tickers, logger.Named("universe"))
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	stopServer, err := startStatusServer(ctx, a)
	if err != nil {
		return err
	}
	defer stopServer()

	summary, runErr := a.Engine.Run(ctx, items)
	if errors.Is(runErr, screener.ErrBaselineUnavailable) {
		return fmt.Errorf("run screener: %w", runErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run screener: %w", runErr)
	}
	if runErr != nil {
		logger.Warn("run interrupted; progress saved, rerun to resume")
	}

	if withResults, _ := cmd.Flags().GetBool("with-results"); !withResults {
		summary.Results = nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("print summary: %w", err)
	}
	return nil
}

// startStatusServer runs the status API when enabled and returns a function
// that stops it and waits for shutdown.
func startStatusServer(ctx context.Context, a *app.App) (func(), error) {
	if !a.Config.Server.Enabled {
		return func() {}, nil
	}
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(a.Config.Server.Port)))
	if err != nil {
		return nil, fmt.Errorf("listen status server: %w", err)
	}
	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := api.NewServer(a.Engine, a.Logger.Named("api")).Serve(srvCtx, ln); err != nil {
			a.Logger.Warn("status server stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}
