package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/config"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/engine"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/export"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/ident"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/output"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/prompt"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/queryfile"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/runlog"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

// RequestFlags holds the selection flags shared by run and verify.
type RequestFlags struct {
	Table     string
	Columns   string
	Where     string
	GroupBy   string
	OrderBy   string
	QueryFile string
	User      string
}

func (f *RequestFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Table, "table", "", "table to select from (may be omitted when --where begins with FROM)")
	cmd.Flags().StringVar(&f.Columns, "columns", "", "column list, or * for every field")
	cmd.Flags().StringVar(&f.Where, "where", "", "filter clause, or a FROM clause replacing the table")
	cmd.Flags().StringVar(&f.GroupBy, "group-by", "", "group by clause")
	cmd.Flags().StringVar(&f.OrderBy, "order-by", "", "order by clause")
	cmd.Flags().StringVar(&f.QueryFile, "query-file", "", "load fields, filter, group by and order by from a saved query")
	cmd.Flags().StringVar(&f.User, "user", defaultUser(), "caller identity used to scope temporary objects")
}

// request builds the selection request. Fragments from a query file are
// used for every flag not given explicitly.
func (f *RequestFlags) request(cmd *cobra.Command, cfg config.Config) (selection.Request, error) {
	req := selection.Request{
		Schema:      cfg.Schema,
		Table:       f.Table,
		Columns:     f.Columns,
		Filter:      f.Where,
		GroupBy:     f.GroupBy,
		OrderBy:     f.OrderBy,
		CallerToken: ident.Sanitize(f.User),
	}
	if f.QueryFile == "" {
		return req, nil
	}

	q, err := queryfile.Load(resolveQueryPath(cfg, f.QueryFile))
	if err != nil {
		return req, err
	}
	changed := cmd.Flags().Changed
	if !changed("columns") {
		req.Columns = q.Fields
	}
	if !changed("where") {
		req.Filter = q.Where
	}
	if !changed("group-by") {
		req.GroupBy = q.GroupBy
	}
	if !changed("order-by") {
		req.OrderBy = q.OrderBy
	}
	return req, nil
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}

// resolveQueryPath places bare file names in the configured query
// directory and adds the default extension when none is given.
func resolveQueryPath(cfg config.Config, path string) string {
	if filepath.Ext(path) == "" {
		path += queryfile.Extension
	}
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." && cfg.QueryPath != "" {
		path = filepath.Join(cfg.QueryPath, path)
	}
	return path
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	RequestFlags
	OutputFormat string
	Out          string
	Yes          bool
	LogPath      string

	// IDGenerator allows overriding run ID generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a selection and export the result",
		Long: `Run a selection on the database, split spatial results into point and
polygon sets, and export every non-empty set in the requested format.

Temporary tables are always cleared once the selection has executed, whether
or not the export succeeds.

Output formats:
  store  structured store object (<container>.gdb/<name>)
  table  structured store table, also used for non-spatial store requests
  shp    shapefile
  csv    comma-delimited text
  txt    tab-delimited text

Exit codes:
  0 - Run completed
  1 - Run failed (no records, export failed, overwrite declined)
  2 - Command error (invalid config, connection failed)

Example:
  dataselector run --table Birds --columns "*" --where "Species = 'Wren'" --out wrens.csv
  dataselector run --table Birds --query-file wrens --output-format shp --out wrens --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelection(opts, cmd)
		},
	}

	opts.RequestFlags.bind(cmd)
	cmd.Flags().StringVar(&opts.OutputFormat, "output-format", "", "output format (store|table|shp|csv|txt); defaults to the configured format")
	cmd.Flags().StringVar(&opts.Out, "out", "", "output path; prompted for when omitted")
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "overwrite existing outputs without asking")
	cmd.Flags().StringVar(&opts.LogPath, "log", "", "run log path; defaults to DataSelector_<user>.log in the log directory")

	return cmd
}

func runSelection(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := slog.Default()

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	format := cfg.Format()
	if opts.OutputFormat != "" {
		if format, err = output.ParseFormat(opts.OutputFormat); err != nil {
			return fail(formatter, ExitCommandError, ErrCodeRequest, "invalid output format", err)
		}
	}

	req, err := opts.RequestFlags.request(cmd, cfg)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeQueryFile, "failed to load query file", err)
	}

	db, err := openGateway(cfg, logger)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConnection, "failed to connect to database", err)
	}
	defer closeGateway(db)

	logPath := opts.LogPath
	if logPath == "" {
		logPath = runlog.FileName(cfg.LogDir, req.CallerToken)
	}
	runLog, err := runlog.Open(logPath, cfg.ClearLog, runlog.WithLogger(logger))
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, "failed to open run log", err)
	}
	defer func() {
		if closeErr := runLog.Close(); closeErr != nil {
			slog.Error("error closing run log", "error", closeErr)
		}
	}()
	formatter.VerboseLog("Run log: %s", logPath)

	exporter := export.New(db, export.Options{
		GeometryFields: cfg.GeometryFields,
		ReservedFields: cfg.ReservedFields,
	}, logger)

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.IDGenerator != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDGenerator))
	}
	eng := engine.New(cfg, db, exporter, newPrompter(opts, cmd), runLog, engineOpts...)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	slog.Info("run starting", "schema", req.Schema, "table", req.Table, "format", format)
	outcome := eng.Run(ctx, req, format)
	return formatter.Outcome(outcome)
}

// newPrompter answers from flags when --out is given and asks on the
// terminal otherwise. Prompts go to stderr so JSON output stays clean.
func newPrompter(opts *RunOptions, cmd *cobra.Command) prompt.Prompter {
	if opts.Out != "" {
		return prompt.Static{Path: opts.Out, Overwrite: opts.Yes}
	}
	return prompt.NewTerminal(cmd.InOrStdin(), cmd.ErrOrStderr())
}
