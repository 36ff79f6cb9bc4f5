// Package cli implements gpactl, the operator tool for inspecting and
// correcting GPA records directly against the configured backend.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"gpavault/internal/app"
	"gpavault/internal/audit"
	"gpavault/internal/gpa/service"
	"gpavault/internal/gpa/store"
	"gpavault/internal/platform/config"
	"gpavault/internal/platform/logger"
)

// env carries what every subcommand needs. Tests replace openStore and
// loadConfig.
type env struct {
	out        io.Writer
	errOut     io.Writer
	loadConfig func() (*config.Config, error)
	openStore  func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, error)
	verbose    bool
}

func (e *env) logger(cfg *config.Config) *slog.Logger {
	logCfg := cfg.Log
	if e.verbose {
		logCfg.Level = "debug"
	}
	return logger.NewWithWriter(e.errOut, logCfg)
}

// withService opens the store, builds the record service, and closes the
// store when fn returns.
func (e *env) withService(ctx context.Context, policy string, fn func(*service.Service) error) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if policy != "" {
		cfg.Policy = policy
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	log := e.logger(cfg)

	backend, err := e.openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer func() {
		if err := backend.Close(context.Background()); err != nil {
			log.Warn("failed to close store", "error", err)
		}
	}()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithPolicy(cfg.UpsertPolicy()),
	}
	if cfg.Audit.Publisher != config.AuditNone {
		opts = append(opts, service.WithAuditPublisher(audit.NewPublisher(audit.NewLogSink(log))))
	}
	return fn(service.New(backend, opts...))
}

// NewRootCommand builds the gpactl command tree.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(&env{
		out:        os.Stdout,
		errOut:     os.Stderr,
		loadConfig: config.Load,
		openStore:  app.OpenStore,
	}, version)
}

func newRootCommand(e *env, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "gpactl",
		Short: "Inspect and maintain GPA records",
		Long: `gpactl talks to the same store as the GPA API, using the same GPA_* environment
variables, .env file and GPA_CONFIG_FILE.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(e.out)
	root.SetErr(e.errOut)
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newSaveCommand(e))
	root.AddCommand(newGetCommand(e))
	root.AddCommand(newBootstrapCommand(e))
	return root
}

// Execute runs gpactl and reports errors on stderr.
func Execute(version string) error {
	root := NewRootCommand(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
