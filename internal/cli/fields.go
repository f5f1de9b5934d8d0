package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

// FieldInfo describes one live field of a table.
type FieldInfo struct {
	Name     string `json:"name"`
	Geometry bool   `json:"geometry"`
}

// FieldsResult is the JSON payload of the fields command.
type FieldsResult struct {
	Driver  string      `json:"driver"`
	Object  string      `json:"object"`
	Fields  []FieldInfo `json:"fields"`
	Spatial bool        `json:"spatial"`
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields <table>",
		Short: "List the live fields of a table",
		Long: `List the fields of a table or view and report whether selecting every
field (*) produces a spatial result. Unqualified names are looked up in the
configured schema.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runFields(opts *RootOptions, table string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := slog.Default()

	cfg, err := loadConfig(opts)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	db, err := openGateway(cfg, logger)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConnection, "failed to connect to database", err)
	}
	defer closeGateway(db)

	object := table
	if !strings.Contains(table, ".") {
		object = selection.Qualify(cfg.Schema, table)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	names, err := db.ListFields(ctx, object)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeNotFound, "failed to list fields", err)
	}

	classifier := selection.NewClassifier(db, cfg.GeometryFields)
	result := FieldsResult{Driver: db.Driver(), Object: object, Fields: make([]FieldInfo, 0, len(names))}
	for _, name := range names {
		geom := classifier.IsGeometry(name)
		result.Fields = append(result.Fields, FieldInfo{Name: name, Geometry: geom})
		result.Spatial = result.Spatial || geom
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s (%d fields, %s)\n", object, len(result.Fields), result.Driver)
	for _, f := range result.Fields {
		if f.Geometry {
			fmt.Fprintf(w, "  %s [geometry]\n", f.Name)
			continue
		}
		fmt.Fprintf(w, "  %s\n", f.Name)
	}
	if result.Spatial {
		fmt.Fprintln(w, "Selecting * is spatial")
	} else {
		fmt.Fprintln(w, "Selecting * is not spatial")
	}
	return nil
}
