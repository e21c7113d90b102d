package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// newUpCmd creates the up command: the atomic replace. Stop/remove failures
// on the previous instance never fail the command; only a failed start
// does, and by then the old instance is already gone.
func newUpCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Replace the running service container with a fresh one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			spec, err := cfg.ServiceSpec()
			if err != nil {
				return err
			}

			deployer, _, cleanup, err := a.newDeployer(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			c, err := deployer.Replace(cmd.Context(), spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s running as %s (image %s)\n", c.Name, c.ID, c.Image)
			return nil
		},
	}
}

func newDownCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the service container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			deployer, _, cleanup, err := a.newDeployer(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := deployer.Teardown(cmd.Context(), cfg.Service.Name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stopped and removed\n", cfg.Service.Name)
			return nil
		},
	}
}

func newStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the service container's state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			deployer, _, cleanup, err := a.newDeployer(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			c, found, err := deployer.Status(cmd.Context(), cfg.Service.Name)
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not running\n", cfg.Service.Name)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s, image %s)\n", c.Name, c.State, c.ID, c.Image)
			return nil
		},
	}
}

func newLogsCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "Print the service container's logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			deployer, _, cleanup, err := a.newDeployer(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			logs, err := deployer.Logs(cmd.Context(), cfg.Service.Name)
			if err != nil {
				return err
			}
			return printLogs(cmd.OutOrStdout(), logs)
		},
	}
}

func printLogs(w io.Writer, logs io.ReadCloser) error {
	defer logs.Close()
	_, err := io.Copy(w, logs)
	return err
}
