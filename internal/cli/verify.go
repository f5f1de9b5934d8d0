package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	RequestFlags
}

// VerifyResult is the JSON payload of the verify command.
type VerifyResult struct {
	Statement string `json:"statement"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Trial a selection without creating temporary tables",
		Long: `Assemble the selection statement and execute a single-row trial of it.
Nothing is written to the database.

Example:
  dataselector verify --table Birds --columns "Species, Count" --where "Count > 3"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	opts.RequestFlags.bind(cmd)
	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := slog.Default()

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	req, err := opts.RequestFlags.request(cmd, cfg)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeQueryFile, "failed to load query file", err)
	}
	if err := req.Validate(); err != nil {
		return fail(formatter, ExitCommandError, ErrCodeRequest, "invalid request", err)
	}

	db, err := openGateway(cfg, logger)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConnection, "failed to connect to database", err)
	}
	defer closeGateway(db)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	stmt, verr := selection.NewVerifier(db, cfg.Timeout(), logger).Verify(ctx, req)
	result := VerifyResult{Statement: stmt, Valid: verr == nil}
	if verr != nil {
		result.Error = verr.Error()
	}

	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		_ = formatter.Error(string(selection.KindValidation), selection.KindValidation.UserMessage(), result)
		return NewExitError(ExitFailure, "statement is not valid")
	}

	fmt.Fprintln(formatter.Writer, stmt)
	if !result.Valid {
		fmt.Fprintf(formatter.Writer, "✗ %s\n", selection.KindValidation.UserMessage())
		formatter.VerboseLog("%s", result.Error)
		return WrapExitError(ExitFailure, "statement is not valid", verr)
	}
	fmt.Fprintln(formatter.Writer, "✓ Statement is valid")
	return nil
}
