package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/queryfile"
)

// QueryOptions holds flags for the query save command.
type QueryOptions struct {
	*RootOptions
	Columns string
	Where   string
	GroupBy string
	OrderBy string
}

// NewQueryCommand creates the query command with its save and show
// subcommands.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Save and show query files",
		Long: `Manage saved queries. A query file holds the fields, filter, group by and
order by fragments of a selection. Bare file names are placed in the
configured query directory and get the .qsf extension.`,
	}

	cmd.AddCommand(newQuerySaveCommand(rootOpts))
	cmd.AddCommand(newQueryShowCommand(rootOpts))
	return cmd
}

func newQuerySaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Save query fragments to a file",
		Example: `  dataselector query save wrens --columns "*" --where "Species = 'Wren'"
  dataselector query save ./wrens.qsf --columns "Species, Count" --order-by Count`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuerySave(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Columns, "columns", "", "column list")
	cmd.Flags().StringVar(&opts.Where, "where", "", "filter clause")
	cmd.Flags().StringVar(&opts.GroupBy, "group-by", "", "group by clause")
	cmd.Flags().StringVar(&opts.OrderBy, "order-by", "", "order by clause")
	return cmd
}

func runQuerySave(opts *QueryOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	path = resolveQueryPath(cfg, path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fail(formatter, ExitCommandError, ErrCodeQueryFile, "failed to create query directory", err)
	}

	q := queryfile.Query{
		Fields:  opts.Columns,
		Where:   opts.Where,
		GroupBy: opts.GroupBy,
		OrderBy: opts.OrderBy,
	}
	if err := queryfile.Save(path, q); err != nil {
		return fail(formatter, ExitCommandError, ErrCodeQueryFile, "failed to save query", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"path": path})
	}
	fmt.Fprintf(formatter.Writer, "✓ Query saved to %s\n", path)
	return nil
}

func newQueryShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <file>",
		Short:         "Show the fragments of a saved query",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryShow(rootOpts, args[0], cmd)
		},
	}
}

func runQueryShow(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	path = resolveQueryPath(cfg, path)
	q, err := queryfile.Load(path)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeQueryFile, "failed to load query", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(q)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "%s: %s\n", queryfile.LabelFields, q.Fields)
	fmt.Fprintf(w, "%s: %s\n", queryfile.LabelWhere, q.Where)
	fmt.Fprintf(w, "%s: %s\n", queryfile.LabelGroupBy, q.GroupBy)
	fmt.Fprintf(w, "%s: %s\n", queryfile.LabelOrderBy, q.OrderBy)
	return nil
}
