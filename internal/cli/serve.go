package cli

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/bitboard/bitboard-deploy/internal/adapters/builder"
	apihttp "github.com/bitboard/bitboard-deploy/internal/adapters/http"
	"github.com/bitboard/bitboard-deploy/internal/core/ports"
)

// newServeCmd runs the REST surface: the same operations as the CLI, with
// replace serialized in-process so concurrent API calls cannot race for the
// container slot.
func newServeCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the deployment API over HTTP",
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

			deployer, store, cleanup, err := a.newDeployer(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			imageBuilder, err := builder.NewAdapter()
			if err != nil {
				return err
			}

			var ledger ports.HistoryStore
			if store != nil {
				ledger = store
			}
			handler := apihttp.NewHandler(deployer, imageBuilder, ledger, spec, cfg.ImageSpec())

			app := fiber.New()
			handler.Register(app)

			log.Printf("Server starting on %s", cfg.Serve.Listen)
			return app.Listen(cfg.Serve.Listen)
		},
	}
}
