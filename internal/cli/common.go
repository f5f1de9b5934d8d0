package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/config"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/gateway"
)

// newLogger builds the text handler every command logs through.
func newLogger(verbose bool, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// fail reports an error through the formatter and returns the matching
// ExitError.
func fail(formatter *OutputFormatter, exitCode int, errCode, message string, err error) error {
	var details interface{}
	if err != nil {
		details = err.Error()
	}
	_ = formatter.Error(errCode, message, details)
	return WrapExitError(exitCode, message, err)
}

// loadConfig reads the configuration file. A missing file at the default
// path yields the built-in defaults; an explicitly named file must exist.
func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.ConfigPath == "" || opts.ConfigPath == config.DefaultPath {
		return config.LoadOrDefault(config.DefaultPath)
	}
	return config.Load(opts.ConfigPath)
}

// openGateway connects to the configured database. SQLite has no stored
// procedures, so the select and clear procedures are registered in Go.
func openGateway(cfg config.Config, logger *slog.Logger) (*gateway.DB, error) {
	gwOpts := []gateway.Option{gateway.WithLogger(logger)}
	if style, ok := cfg.LimitStyle(); ok {
		gwOpts = append(gwOpts, gateway.WithLimitStyle(style))
	}
	if cfg.Driver == gateway.DriverSQLite {
		gwOpts = append(gwOpts, gateway.EmulatedProcedures(cfg.SelectProcedure, cfg.ClearProcedure, cfg.GeometryFields)...)
	}

	logger.Debug("opening database", "driver", cfg.Driver)
	return gateway.Open(cfg.Driver, cfg.DSN, gwOpts...)
}

// signalContext returns a context cancelled on interrupt or SIGTERM.
// Use command's context if available (for testing), otherwise create one.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling run", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}

func closeGateway(db *gateway.DB) {
	if err := db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
