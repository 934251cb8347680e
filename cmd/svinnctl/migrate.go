package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Opens the configured backend, which applies pending migrations for
the sqlite and postgres backends. Other backends have nothing to migrate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.backend.Backend.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("backend not reachable: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s backend is up to date\n", e.cfg.DataBackend)
		return nil
	},
}
