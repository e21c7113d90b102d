package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitboard/bitboard-deploy/internal/adapters/builder"
)

func newBuildCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the service container image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			b, err := builder.NewAdapter(builder.WithOutput(cmd.OutOrStdout()))
			if err != nil {
				return err
			}

			tag, err := b.BuildImage(cmd.Context(), cfg.ImageSpec())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Built %s\n", tag)
			return nil
		},
	}
}
