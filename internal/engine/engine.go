package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/config"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/export"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/output"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/prompt"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/runlog"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

// Exporter writes planned artifacts and answers pre-existence checks.
type Exporter interface {
	output.Checker
	Export(ctx context.Context, runID string, plan output.Plan, res selection.TempResult) ([]export.Result, error)
}

// Engine runs selections against one gateway with one configuration.
//
// Thread-safety: Run may be called from several goroutines; runs share no
// mutable state. Concurrent runs must use different caller tokens.
type Engine struct {
	cfg      config.Config
	gw       selection.Gateway
	exporter Exporter
	prompter prompt.Prompter
	log      runlog.Appender
	ids      IDGenerator
	logger   *slog.Logger

	classifier *selection.Classifier
	verifier   *selection.Verifier
	executor   *selection.Executor
	cleaner    *selection.Cleaner
	planner    *output.Planner
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithIDGenerator overrides run ID generation (for testing).
func WithIDGenerator(ids IDGenerator) Option {
	return func(e *Engine) { e.ids = ids }
}

// New creates an Engine. A nil log discards run log lines.
func New(cfg config.Config, gw selection.Gateway, exporter Exporter, prompter prompt.Prompter, log runlog.Appender, opts ...Option) *Engine {
	if log == nil {
		log = runlog.Discard
	}
	e := &Engine{
		cfg:      cfg,
		gw:       gw,
		exporter: exporter,
		prompter: prompter,
		log:      log,
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.classifier = selection.NewClassifier(gw, cfg.GeometryFields)
	e.verifier = selection.NewVerifier(gw, cfg.Timeout(), e.logger)
	e.executor = selection.NewExecutor(gw, cfg.SelectProcedure, e.logger)
	e.cleaner = selection.NewCleaner(gw, cfg.ClearProcedure, e.logger)
	e.planner = output.NewPlanner(exporter, prompter, cfg.StoreMarker)
	return e
}

// run is the per-call state of Engine.Run.
type run struct {
	e       *Engine
	req     selection.Request
	out     RunOutcome
	m       *machine
	logger  *slog.Logger
	cleaned bool
}

// Run executes one selection and returns its outcome. It never returns an
// error: failures are described by the outcome.
func (e *Engine) Run(ctx context.Context, req selection.Request, format output.Format) RunOutcome {
	r := &run{
		e:   e,
		req: req,
		out: RunOutcome{RunID: e.ids.Generate(), Artifacts: []ArtifactOutcome{}},
		m:   newMachine(e.log),
	}
	r.logger = e.logger.With("run_id", r.out.RunID)
	r.note("Process started (run %s)", r.out.RunID)

	r.execute(ctx, format)

	r.out.States = r.m.history
	return r.out
}

func (r *run) execute(ctx context.Context, format output.Format) {
	e := r.e

	// Rejections before any remote call.
	if err := r.checkRequest(); err != nil {
		r.fail(StageConfiguration, err)
		r.m.to(StateFailed)
		r.finishLog()
		return
	}

	spatial, err := e.classifier.Classify(ctx, r.req)
	if err != nil {
		r.fail(StageClassify, err)
		r.m.to(StateFailed)
		r.finishLog()
		return
	}
	r.out.Spatial = spatial
	r.out.Format = output.Resolve(spatial, format)
	r.logger.Debug("classified request", "spatial", spatial, "format", r.out.Format)

	if e.cfg.ValidateSQL {
		r.m.to(StateVerifying)
		r.note("Validating query")
		stmt, err := e.verifier.Verify(ctx, r.req)
		r.out.Statement = stmt
		if err != nil {
			r.fail(StageVerify, err)
			r.m.to(StateFailed)
			r.finishLog()
			return
		}
	}

	// From here on cleanup always runs, exactly once.
	r.m.to(StateExecuting)
	defer r.cleanup(ctx)

	base, _ := r.req.BaseTable()
	r.note("Executing selection on %s.%s", r.req.Schema, base)
	res, err := e.executor.Run(ctx, r.req, spatial)
	if err != nil {
		r.fail(StageExecute, err)
		return
	}

	r.m.to(StateCounting)
	r.out.RowCounts = RowCounts{Point: res.Point.Rows, Poly: res.Poly.Rows, Flat: res.Flat.Rows}
	if spatial {
		r.note("%d point rows, %d polygon rows", res.Point.Rows, res.Poly.Rows)
	} else {
		r.note("%d rows", res.Flat.Rows)
	}
	if res.Empty() {
		r.fail(StageEmptyResult, selection.Errorf(selection.KindEmptyResult, "count",
			"the selection returned no rows"))
		return
	}

	r.m.to(StatePlanning)
	plan, err := r.plan(ctx, spatial, format)
	if err != nil {
		stage := StagePlan
		if selection.IsKind(err, selection.KindCancelled) {
			stage = StageCancelled
		}
		r.fail(stage, err)
		return
	}
	r.note("Output %s: %s", plan.Resolved, plan.Target)

	r.m.to(StateExporting)
	results, err := e.exporter.Export(ctx, r.out.RunID, plan, res)
	for _, a := range results {
		r.out.Artifacts = append(r.out.Artifacts, ArtifactOutcome{Part: a.Part, Path: a.Path, Rows: a.Rows})
		r.note("Wrote %d rows to %s", a.Rows, a.Path)
	}
	if err != nil {
		r.fail(StageExport, err)
		return
	}

	r.out.Succeeded = true
	r.out.Message = MessageComplete
}

func (r *run) checkRequest() error {
	if err := r.req.Validate(); err != nil {
		return err
	}
	base, _ := r.req.BaseTable()
	if !r.e.cfg.TableAllowed(base) {
		return selection.Errorf(selection.KindConfiguration, "validate request",
			"table %s is not in the configured table list", base)
	}
	return nil
}

func (r *run) plan(ctx context.Context, spatial bool, format output.Format) (output.Plan, error) {
	resolved := output.Resolve(spatial, format)
	path, ok, err := r.e.prompter.ChooseOutputPath(string(resolved), r.e.cfg.ExtractPath)
	if err != nil {
		return output.Plan{}, selection.NewError(selection.KindPlanning, "choose output path", err)
	}
	if !ok {
		return output.Plan{}, selection.Errorf(selection.KindCancelled, "choose output path", "no output path chosen")
	}
	return r.e.planner.Plan(ctx, spatial, format, path)
}

// cleanup clears the temporary objects. It runs on a context detached from
// cancellation so an interrupted run still clears the server.
func (r *run) cleanup(ctx context.Context) {
	if r.cleaned {
		return
	}
	r.cleaned = true

	r.m.to(StateCleanup)
	r.note("Clearing temporary tables")
	if err := r.e.cleaner.Clear(context.WithoutCancel(ctx), r.req); err != nil {
		r.out.CleanupError = err.Error()
		r.note("Cleanup failed: %v", err)
		r.logger.Warn("cleanup failed", "error", err)
	}

	if r.out.Succeeded {
		r.m.to(StateDone)
	} else {
		r.m.to(StateFailed)
	}
	r.finishLog()
}

func (r *run) fail(stage Stage, err error) {
	r.out.Succeeded = false
	r.out.FailureStage = stage
	r.out.Error = err.Error()
	kind := selection.KindOf(err)
	if kind == "" {
		kind = r.out.Kind()
	}
	r.out.Message = kind.UserMessage()
	r.note("%s: %v", r.out.Message, err)
	r.logger.Info("run failed", "stage", stage, "error", err)
}

func (r *run) finishLog() {
	if r.out.Succeeded {
		r.note("Process complete")
		r.logger.Info("run complete",
			"rows", r.out.RowCounts.Point+r.out.RowCounts.Poly+r.out.RowCounts.Flat,
			"artifacts", len(r.out.Artifacts))
		return
	}
	r.note("Process ended with errors")
}

// note writes a line to the run log. Log write failures are reported to
// slog only.
func (r *run) note(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if err := r.e.log.Append(line); err != nil {
		r.logger.Warn("run log write failed", "error", err)
	}
}
