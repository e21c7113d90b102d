// Package cli wires the deployment operations into the bbdeploy command
// tree.
package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/bitboard/bitboard-deploy/internal/adapters/docker"
	"github.com/bitboard/bitboard-deploy/internal/adapters/history"
	"github.com/bitboard/bitboard-deploy/internal/config"
	"github.com/bitboard/bitboard-deploy/internal/core/deploy"
)

// App represents the CLI application with all wired dependencies.
type App struct {
	rootCmd *cobra.Command

	configPath string
	version    string
}

// New creates a new CLI application.
func New() *App {
	app := &App{version: "dev"}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// SetVersion sets the version string reported by the version command.
func (a *App) SetVersion(version string) {
	a.version = version
}

func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "bbdeploy",
		Short: "Build and run the bitboard-rest service container",
		Long: `bbdeploy builds the bitboard-rest container image and manages the single
named instance of it: replacing the running container atomically, tearing it
down, and reporting its state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	a.rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "Path to the deploy config")

	a.rootCmd.AddCommand(
		newBuildCmd(a),
		newUpCmd(a),
		newDownCmd(a),
		newStatusCmd(a),
		newLogsCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
}

func (a *App) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath)
}

// newDeployer builds the deployer with its runtime adapter and ledger. The
// returned store may be nil when the ledger could not be opened; the
// returned cleanup closes it either way.
func (a *App) newDeployer(cfg *config.Config) (*deploy.Deployer, *history.Store, func(), error) {
	runtime, err := docker.NewAdapter()
	if err != nil {
		return nil, nil, nil, err
	}

	var opts []deploy.Option
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		// The ledger is bookkeeping; a broken one should not block a deploy.
		log.Printf("history ledger unavailable: %v", err)
		store = nil
	} else {
		opts = append(opts, deploy.WithHistory(store))
	}
	cleanup := func() {
		if store == nil {
			return
		}
		if err := store.Close(); err != nil {
			log.Printf("close history ledger: %v", err)
		}
	}

	return deploy.New(runtime, opts...), store, cleanup, nil
}

func newVersionCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bbdeploy version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bbdeploy %s\n", a.version)
		},
	}
}
