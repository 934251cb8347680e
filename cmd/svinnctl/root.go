package main

import (
	"context"

	"github.com/spf13/cobra"

	"svinn/internal/backend"
	"svinn/internal/cli"
	"svinn/internal/config"
	"svinn/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "svinnctl",
	Short: "Administer the svinn feedback dashboard",
	Long: `svinnctl works directly against the backend configured in the
environment (DATA_BACKEND and friends, or a .env file).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadEnvFile()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(clickCmd)
	rootCmd.AddCommand(exportCmd)
}

// env is what every command needs: validated config, a logger and an open
// backend. Call close when done.
type env struct {
	cfg     *config.Config
	logger  *log.Logger
	backend *backend.BackendResult
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, err
	}
	// Commands print their own results; keep the log to warnings.
	logger := cli.SetupLogger("svinnctl", "warn")
	res, err := cli.OpenBackend(ctx, cfg, logger.Logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, backend: res}, nil
}

func (e *env) close() {
	if err := e.backend.Close(); err != nil {
		e.logger.Warn("Backend cleanup failed", log.FieldError, err)
	}
}
