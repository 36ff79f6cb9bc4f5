package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newBootstrapCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Connect to the configured store and create its indexes or schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// Opening the store ensures the unique index (mongo) or table (postgres).
			backend, err := e.openStore(cmd.Context(), cfg, e.logger(cfg))
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Store, err)
			}
			defer backend.Close(context.Background())

			if err := backend.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("ping %s store: %w", cfg.Store, err)
			}
			fmt.Fprintf(e.out, "%s store ready\n", cfg.Store)
			return nil
		},
	}
}
