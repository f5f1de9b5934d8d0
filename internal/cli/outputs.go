package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/store"
)

// OutputsResult is the JSON payload of the outputs command.
type OutputsResult struct {
	Container string         `json:"container"`
	Outputs   []store.Output `json:"outputs"`
}

// NewOutputsCommand creates the outputs command.
func NewOutputsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "outputs <container>",
		Short: "List the objects exported to a structured store",
		Long: `List the catalog of a structured store container: every object written to
it, with the run that wrote it, the source object and the row count.

Example:
  dataselector outputs extracts/birds.gdb
  dataselector outputs extracts/birds.gdb --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutputs(rootOpts, args[0], cmd)
		},
	}
}

func runOutputs(opts *RootOptions, container string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	// store.Open creates missing containers; listing must not.
	info, err := os.Stat(container)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeNotFound, "container not found", err)
	}
	if info.IsDir() {
		return fail(formatter, ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("%s is a directory, not a store container", container), nil)
	}

	st, err := store.Open(container)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, "failed to open container", err)
	}
	defer st.Close()

	outputs, err := st.Outputs(cmd.Context())
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, "failed to read catalog", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(OutputsResult{Container: container, Outputs: outputs})
	}

	w := formatter.Writer
	if len(outputs) == 0 {
		fmt.Fprintf(w, "%s: no outputs recorded\n", container)
		return nil
	}
	fmt.Fprintf(w, "%s (%d outputs)\n", container, len(outputs))
	for _, out := range outputs {
		fmt.Fprintf(w, "  %s  %-24s %6d rows  from %s  run %s\n",
			out.CreatedAt.Local().Format(time.DateTime), out.Object, out.Rows, out.Source, out.RunID)
	}
	return nil
}
