package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/config"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/engine"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/export"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/output"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/testutil"
)

var sightingFields = []string{"OBJECTID", "Species", "Year", "Shape"}

type fixture struct {
	cfg      config.Config
	gw       *testutil.FakeGateway
	prompter *testutil.Prompter
	log      *testutil.MemoryLog
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Schema = "dbo"
	cfg.ExtractPath = dir

	gw := testutil.NewFakeGateway()
	gw.AddTable("dbo.Sightings", sightingFields)
	gw.OnProcedure(selection.DefaultClearProcedure, testutil.EmulateClear())

	return &fixture{
		cfg:      cfg,
		gw:       gw,
		prompter: &testutil.Prompter{Path: "sightings", Overwrite: true},
		log:      &testutil.MemoryLog{},
		dir:      dir,
	}
}

func (f *fixture) selects(point, poly, flat *testutil.Table) {
	f.gw.OnProcedure(selection.DefaultSelectProcedure, testutil.EmulateSelection(point, poly, flat))
}

func (f *fixture) engine() *engine.Engine {
	ex := export.New(f.gw, export.Options{GeometryFields: f.cfg.GeometryFields}, nil)
	return engine.New(f.cfg, f.gw, ex, f.prompter, f.log,
		engine.WithIDGenerator(engine.NewFixedGenerator("run-1")))
}

func (f *fixture) clearCalls() int {
	return f.gw.CallCount(testutil.OpCall, selection.DefaultClearProcedure)
}

func sightingsRequest() selection.Request {
	return selection.Request{
		Schema:      "dbo",
		Table:       "Sightings",
		Columns:     "*",
		Filter:      "Year=2020",
		CallerToken: "jsmith",
	}
}

func points() *testutil.Table {
	return &testutil.Table{Fields: sightingFields, Rows: [][]any{
		{int64(1), "Kestrel", int64(2020), "POINT(1 2)"},
		{int64(2), "Merlin", int64(2020), "POINT(3 4)"},
	}}
}

func polys() *testutil.Table {
	return &testutil.Table{Fields: sightingFields, Rows: [][]any{
		{int64(3), "Heronry", int64(2020), "POLYGON((0 0,1 0,1 1,0 0))"},
	}}
}

func TestRun_SpatialWildcardSplits(t *testing.T) {
	f := newFixture(t)
	f.selects(points(), polys(), nil)

	out := f.engine().Run(context.Background(), sightingsRequest(), output.DelimitedComma)

	require.True(t, out.Succeeded, out.Error)
	assert.Equal(t, "run-1", out.RunID)
	assert.True(t, out.Spatial)
	assert.Equal(t, engine.RowCounts{Point: 2, Poly: 1}, out.RowCounts)
	assert.Equal(t, engine.MessageComplete, out.Message)

	// Both split objects are checked, the flat one is not.
	assert.Equal(t, 1, f.gw.CallCount(testutil.OpExists, "dbo.Sightings_point_jsmith"))
	assert.Equal(t, 1, f.gw.CallCount(testutil.OpExists, "dbo.Sightings_poly_jsmith"))
	assert.Equal(t, 0, f.gw.CallCount(testutil.OpExists, "dbo.Sightings_jsmith"))

	call, ok := f.gw.LastCall(testutil.OpCall)
	require.True(t, ok)
	assert.Equal(t, selection.DefaultClearProcedure, call.Name)

	call = f.gw.Calls()[1]
	assert.Equal(t, testutil.OpExecute, call.Op)
	assert.Equal(t, "SELECT * FROM dbo.Sightings WHERE Year=2020 LIMIT 1", call.Name)

	path := filepath.Join(f.dir, "sightings.csv")
	assert.Equal(t, []engine.ArtifactOutcome{
		{Part: output.PartPoint, Path: path, Rows: 2},
		{Part: output.PartPoly, Path: path, Rows: 1},
	}, out.Artifacts)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Species,Year\nKestrel,2020\nMerlin,2020\nHeronry,2020\n", string(data))

	assert.Equal(t, []engine.State{
		engine.StateIdle, engine.StateVerifying, engine.StateExecuting, engine.StateCounting,
		engine.StatePlanning, engine.StateExporting, engine.StateCleanup, engine.StateDone,
	}, out.States)
	assert.Equal(t, 1, f.clearCalls())
	assert.False(t, f.gw.Has("dbo.Sightings_point_jsmith"))
}

func TestRun_SpatialStoreKeepsFormat(t *testing.T) {
	f := newFixture(t)
	f.selects(points(), polys(), nil)
	f.prompter.Path = filepath.Join("extract.gdb", "Sightings")

	out := f.engine().Run(context.Background(), sightingsRequest(), output.StructuredStore)

	require.True(t, out.Succeeded, out.Error)
	assert.Equal(t, output.StructuredStore, out.Format)
	container := filepath.Join(f.dir, "extract.gdb")
	require.Len(t, out.Artifacts, 2)
	assert.Equal(t, filepath.Join(container, "Sightings_Point"), out.Artifacts[0].Path)
	assert.Equal(t, filepath.Join(container, "Sightings_Poly"), out.Artifacts[1].Path)
	assert.Equal(t, "", filepath.Ext(out.Artifacts[0].Path))
	assert.FileExists(t, container)
}

func TestRun_EmptyResultStillCleansUp(t *testing.T) {
	f := newFixture(t)
	f.selects(&testutil.Table{Fields: sightingFields}, &testutil.Table{Fields: sightingFields}, nil)

	out := f.engine().Run(context.Background(), sightingsRequest(), output.DelimitedComma)

	assert.False(t, out.Succeeded)
	assert.Equal(t, engine.StageEmptyResult, out.FailureStage)
	assert.Equal(t, "no output generated", out.Message)
	assert.Equal(t, selection.KindEmptyResult, out.Kind())
	assert.Equal(t, 1, f.clearCalls())
	assert.Empty(t, f.prompter.Chosen(), "no output is planned for an empty result")
	assert.Equal(t, engine.StateFailed, out.States[len(out.States)-1])
	assert.Contains(t, out.States, engine.StateCleanup)
}

func TestRun_NothingCreatedIsEmptyResult(t *testing.T) {
	f := newFixture(t)

	out := f.engine().Run(context.Background(), sightingsRequest(), output.DelimitedComma)

	assert.Equal(t, engine.StageEmptyResult, out.FailureStage)
	assert.Equal(t, 1, f.clearCalls())
}

func TestRun_ExportFailureKeepsEarlierArtifacts(t *testing.T) {
	f := newFixture(t)
	f.selects(points(), polys(), nil)
	f.gw.Fail(testutil.OpStream, "dbo.Sightings_poly_jsmith", errors.New("connection reset"))

	out := f.engine().Run(context.Background(), sightingsRequest(), output.FlatFile)

	assert.False(t, out.Succeeded)
	assert.Equal(t, engine.StageExport, out.FailureStage)
	assert.Equal(t, "export failed", out.Message)
	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, output.PartPoint, out.Artifacts[0].Part)
	assert.FileExists(t, filepath.Join(f.dir, "sightings_Point.shp"))
	assert.Equal(t, 1, f.clearCalls())
}

func TestRun_VerificationFailureSkipsCleanup(t *testing.T) {
	f := newFixture(t)
	f.gw.Fail(testutil.OpExecute, "", errors.New("Invalid column name 'Yeer'"))

	out := f.engine().Run(context.Background(), sightingsRequest(), output.DelimitedComma)

	assert.False(t, out.Succeeded)
	assert.Equal(t, engine.StageVerify, out.FailureStage)
	assert.Equal(t, "query invalid", out.Message)
	assert.Equal(t, 0, f.gw.CallCount(testutil.OpCall, ""))
	assert.Equal(t, []engine.State{engine.StateIdle, engine.StateVerifying, engine.StateFailed}, out.States)
}

func TestRun_VerificationDisabled(t *testing.T) {
	f := newFixture(t)
	f.cfg.ValidateSQL = false
	f.selects(points(), nil, nil)

	out := f.engine().Run(context.Background(), sightingsRequest(), output.DelimitedComma)

	require.True(t, out.Succeeded, out.Error)
	assert.Equal(t, 0, f.gw.CallCount(testutil.OpExecute, ""))
	assert.NotContains(t, out.States, engine.StateVerifying)
}

func TestRun_ExecutionFailureStillCleansUp(t *testing.T) {
	f := newFixture(t)
	f.gw.Fail(testutil.OpCall, selection.DefaultSelectProcedure, errors.New("timeout expired"))

	out := f.engine().Run(context.Background(), sightingsRequest(), output.DelimitedComma)

	assert.Equal(t, engine.StageExecute, out.FailureStage)
	assert.Equal(t, 1, f.clearCalls())
}

func TestRun_ConfigurationRejections(t *testing.T) {
	t.Run("invalid request", func(t *testing.T) {
		f := newFixture(t)
		req := sightingsRequest()
		req.Columns = ""

		out := f.engine().Run(context.Background(), req, output.DelimitedComma)

		assert.Equal(t, engine.StageConfiguration, out.FailureStage)
		assert.Empty(t, f.gw.Calls())
	})

	t.Run("table not allowed", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Tables = []string{"Birds"}

		out := f.engine().Run(context.Background(), sightingsRequest(), output.DelimitedComma)

		assert.Equal(t, engine.StageConfiguration, out.FailureStage)
		assert.Contains(t, out.Error, "not in the configured table list")
		assert.Empty(t, f.gw.Calls())
	})
}

func TestRun_Cancelled(t *testing.T) {
	t.Run("no path chosen", func(t *testing.T) {
		f := newFixture(t)
		f.selects(points(), polys(), nil)
		f.prompter.Cancel = true

		out := f.engine().Run(context.Background(), sightingsRequest(), output.DelimitedComma)

		assert.Equal(t, engine.StageCancelled, out.FailureStage)
		assert.Equal(t, 1, f.clearCalls())
	})

	t.Run("overwrite declined", func(t *testing.T) {
		f := newFixture(t)
		f.selects(points(), polys(), nil)
		f.prompter.Overwrite = false
		existing := filepath.Join(f.dir, "sightings.csv")
		require.NoError(t, os.WriteFile(existing, []byte("keep me\n"), 0o644))

		out := f.engine().Run(context.Background(), sightingsRequest(), output.DelimitedComma)

		assert.Equal(t, engine.StageCancelled, out.FailureStage)
		assert.Equal(t, "overwrite declined", out.Message)
		assert.Equal(t, [][]string{{existing}}, f.prompter.Confirmations())
		assert.Equal(t, 1, f.clearCalls())

		data, err := os.ReadFile(existing)
		require.NoError(t, err)
		assert.Equal(t, "keep me\n", string(data))
	})
}

func TestRun_PlanningError(t *testing.T) {
	f := newFixture(t)
	f.selects(points(), polys(), nil)
	f.prompter.Path = filepath.Join("extract.gdb", "sightings")

	// A shapefile cannot live inside a store container.
	out := f.engine().Run(context.Background(), sightingsRequest(), output.FlatFile)

	assert.Equal(t, engine.StagePlan, out.FailureStage)
	assert.Equal(t, 1, f.clearCalls())
}

func TestRun_CleanupFailureKeepsSuccess(t *testing.T) {
	f := newFixture(t)
	f.selects(points(), polys(), nil)
	f.gw.Fail(testutil.OpCall, selection.DefaultClearProcedure, errors.New("permission denied"))

	out := f.engine().Run(context.Background(), sightingsRequest(), output.DelimitedComma)

	assert.True(t, out.Succeeded)
	assert.Contains(t, out.CleanupError, "permission denied")
	assert.Equal(t, engine.StateDone, out.States[len(out.States)-1])
	assert.True(t, f.log.Contains("Cleanup failed"))
}

func TestRun_CleanupSurvivesCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.gw.OnProcedure(selection.DefaultSelectProcedure, func(g *testutil.FakeGateway, args []any) error {
		cancel()
		return context.Canceled
	})
	var clearErr error
	f.gw.OnProcedure(selection.DefaultClearProcedure, func(g *testutil.FakeGateway, args []any) error {
		clearErr = ctx.Err()
		return nil
	})

	out := f.engine().Run(ctx, sightingsRequest(), output.DelimitedComma)

	assert.Equal(t, engine.StageExecute, out.FailureStage)
	assert.Equal(t, 1, f.clearCalls())
	assert.Empty(t, out.CleanupError)
	assert.ErrorIs(t, clearErr, context.Canceled, "parent context was cancelled before cleanup")
}

func TestRun_LogsEveryTransition(t *testing.T) {
	f := newFixture(t)
	f.selects(points(), polys(), nil)

	out := f.engine().Run(context.Background(), sightingsRequest(), output.DelimitedComma)
	require.True(t, out.Succeeded)

	lines := f.log.Lines()
	assert.Equal(t, "Process started (run run-1)", lines[0])
	assert.Equal(t, "Process complete", lines[len(lines)-1])
	for _, s := range out.States[1:] {
		assert.True(t, f.log.Contains("Stage: "+string(s)), s)
	}
	assert.True(t, f.log.Contains("2 point rows, 1 polygon rows"))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, engine.CanTransition(engine.StateIdle, engine.StateExecuting))
	assert.True(t, engine.CanTransition(engine.StateExporting, engine.StateCleanup))
	assert.False(t, engine.CanTransition(engine.StateExecuting, engine.StateFailed))
	assert.False(t, engine.CanTransition(engine.StateDone, engine.StateIdle))
	assert.True(t, engine.StateFailed.Terminal())
	assert.False(t, engine.StateCleanup.Terminal())
}

func TestFixedGenerator(t *testing.T) {
	gen := engine.NewFixedGenerator("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Equal(t, "b", gen.Generate())

	id := engine.UUIDv7Generator{}.Generate()
	assert.Len(t, id, 36)
}
