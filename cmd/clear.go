package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/batch-screener/internal/app"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved checkpoint so the next run starts over",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			if err := a.Engine.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear checkpoint: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checkpoint %q cleared\n", a.Checkpoint.Name())
			return nil
		}),
	}
}
