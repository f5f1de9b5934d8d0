// Package export copies temporary selection objects into output artifacts.
//
// Each output format has a Target. The Exporter walks a plan's artifacts in
// order, skips parts without rows and stops at the first failure; artifacts
// already written stay on disk.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/output"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

// DefaultReservedFields are system fields never written as attributes of
// flat or delimited outputs.
var DefaultReservedFields = []string{"OBJECTID", "FID", "Shape_Length", "Shape_Area"}

// Source reads temporary objects.
type Source interface {
	ListFields(ctx context.Context, name string) ([]string, error)
	StreamRows(ctx context.Context, name string, fields []string, fn func(values []any) error) error
}

// Job is one copy of a temporary object into an artifact.
type Job struct {
	RunID  string
	Source Source
	Object string
	Path   string
	// Append adds rows to an artifact written earlier in the same run.
	Append bool
}

// Target writes one output format.
type Target interface {
	Exists(ctx context.Context, path string) (bool, error)
	Copy(ctx context.Context, job Job) (int64, error)
}

// Options configures field handling shared by the targets.
type Options struct {
	GeometryFields []string
	ReservedFields []string
}

func (o Options) withDefaults() Options {
	if len(o.GeometryFields) == 0 {
		o.GeometryFields = selection.DefaultGeometryFields
	}
	o.ReservedFields = append(append([]string(nil), DefaultReservedFields...), o.ReservedFields...)
	return o
}

// attributeFields drops geometry and reserved fields, keeping order.
func (o Options) attributeFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if selection.MatchesAny(f, o.GeometryFields) || selection.MatchesAny(f, o.ReservedFields) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// geometryField returns the first field that is a geometry field.
func (o Options) geometryField(fields []string) (string, bool) {
	for _, f := range fields {
		if selection.MatchesAny(f, o.GeometryFields) {
			return f, true
		}
	}
	return "", false
}

// Result describes one written artifact.
type Result struct {
	Part   output.Part `json:"part"`
	Path   string      `json:"path"`
	Object string      `json:"object"`
	Rows   int64       `json:"rows"`
}

// Exporter dispatches artifacts to format targets.
type Exporter struct {
	src     Source
	targets map[output.Format]Target
	logger  *slog.Logger
}

// Ensure Exporter implements output.Checker.
var _ output.Checker = (*Exporter)(nil)

// New creates an Exporter with the built-in targets for every format.
func New(src Source, opts Options, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	store := NewStoreTarget()
	return &Exporter{
		src: src,
		targets: map[output.Format]Target{
			output.StructuredStore: store,
			output.StructuredTable: store,
			output.FlatFile:        NewShapefileTarget(opts),
			output.DelimitedComma:  NewDelimitedTarget(',', opts),
			output.DelimitedTab:    NewDelimitedTarget('\t', opts),
		},
		logger: logger,
	}
}

func (e *Exporter) target(format output.Format) (Target, error) {
	t, ok := e.targets[format]
	if !ok {
		return nil, fmt.Errorf("no export target for format %q", format)
	}
	return t, nil
}

// Exists implements output.Checker.
func (e *Exporter) Exists(ctx context.Context, format output.Format, path string) (bool, error) {
	t, err := e.target(format)
	if err != nil {
		return false, err
	}
	return t.Exists(ctx, path)
}

// Export writes every artifact of plan whose source part has rows.
// The first failure is returned as a KindExport error together with the
// artifacts written so far.
func (e *Exporter) Export(ctx context.Context, runID string, plan output.Plan, res selection.TempResult) ([]Result, error) {
	t, err := e.target(plan.Resolved)
	if err != nil {
		return nil, selection.NewError(selection.KindExport, "export", err)
	}

	var results []Result
	written := make(map[string]bool)
	for _, a := range plan.Artifacts {
		state := partState(res, a.Part)
		if !state.Exists || state.Rows == 0 {
			e.logger.Debug("skipping empty part", "part", a.Part, "object", state.Name)
			continue
		}

		key := strings.ToLower(a.Path)
		job := Job{
			RunID:  runID,
			Source: e.src,
			Object: state.Name,
			Path:   a.Path,
			Append: written[key],
		}
		n, err := t.Copy(ctx, job)
		if err != nil {
			return results, selection.NewError(selection.KindExport,
				fmt.Sprintf("copy %s to %s", state.Name, a.Path), err)
		}
		written[key] = true
		e.logger.Debug("artifact written", "part", a.Part, "path", a.Path, "rows", n)
		results = append(results, Result{Part: a.Part, Path: a.Path, Object: state.Name, Rows: n})
	}
	return results, nil
}

func partState(res selection.TempResult, part output.Part) selection.ObjectState {
	switch part {
	case output.PartPoint:
		return res.Point
	case output.PartPoly:
		return res.Poly
	default:
		return res.Flat
	}
}
