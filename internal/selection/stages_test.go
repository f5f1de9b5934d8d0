package selection_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/testutil"
)

func birdsRequest() selection.Request {
	return selection.Request{
		Schema:      "dbo",
		Table:       "Birds",
		Columns:     "Species, Recorder",
		Filter:      "Recorder = 'O''Brien'",
		CallerToken: "jsmith",
	}
}

func TestClassifier(t *testing.T) {
	ctx := context.Background()
	gw := testutil.NewFakeGateway()
	gw.AddTable("dbo.Birds", []string{"OBJECTID", "Species", "Shape"})
	gw.AddTable("dbo.Counts", []string{"OBJECTID", "Species", "Total"})

	tests := []struct {
		name    string
		table   string
		columns string
		want    bool
	}{
		{"wildcard with geometry", "Birds", "*", true},
		{"wildcard without geometry", "Counts", "*", false},
		{"named geometry column", "Counts", "Species, SHAPE", true},
		{"custom geometry field", "Counts", "Species, SP_GEOMETRY", true},
		{"disjoint columns", "Birds", "Species, Total", false},
		{"substring match", "Counts", "ShapeArea", true},
	}

	c := selection.NewClassifier(gw, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := selection.Request{Schema: "dbo", Table: tt.table, Columns: tt.columns, CallerToken: "t"}
			got, err := c.Classify(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	// Only the wildcard consults live fields.
	assert.Equal(t, 2, gw.CallCount(testutil.OpFields, ""))
}

func TestClassifier_LookupFailure(t *testing.T) {
	gw := testutil.NewFakeGateway()
	c := selection.NewClassifier(gw, []string{"Geom"})

	_, err := c.Classify(context.Background(), selection.Request{Schema: "dbo", Table: "Missing", Columns: "*", CallerToken: "t"})
	require.Error(t, err)
	assert.True(t, selection.IsKind(err, selection.KindExecution))
	assert.True(t, c.IsGeometry("GEOM"))
	assert.False(t, c.IsGeometry("Shape"))
}

func TestVerifier_UsesTrialStatement(t *testing.T) {
	gw := testutil.NewFakeGateway()
	v := selection.NewVerifier(gw, time.Second, nil)

	stmt, err := v.Verify(context.Background(), birdsRequest())
	require.NoError(t, err)
	assert.Equal(t, "SELECT Species, Recorder FROM dbo.Birds WHERE Recorder = 'O''Brien' LIMIT 1", stmt)

	call, ok := gw.LastCall(testutil.OpExecute)
	require.True(t, ok)
	assert.Equal(t, stmt, call.Name)

	// Verification never creates or drops objects.
	assert.Equal(t, 0, gw.CallCount(testutil.OpCall, ""))
}

func TestVerifier_TopDialect(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.SetLimitStyle(selection.LimitTop)
	v := selection.NewVerifier(gw, time.Second, nil)

	stmt, err := v.Verify(context.Background(), birdsRequest())
	require.NoError(t, err)
	assert.Equal(t, "SELECT TOP 1 Species, Recorder FROM dbo.Birds WHERE Recorder = 'O''Brien'", stmt)
}

func TestVerifier_FailureIsValidation(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.Fail(testutil.OpExecute, "", errors.New("Incorrect syntax near 'WERE'"))
	v := selection.NewVerifier(gw, 0, nil)

	_, err := v.Verify(context.Background(), birdsRequest())
	require.Error(t, err)
	assert.True(t, selection.IsKind(err, selection.KindValidation))
	assert.Contains(t, err.Error(), "WERE")
}

func TestVerifier_Timeout(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.OnExecute(func(ctx context.Context, _ string) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	v := selection.NewVerifier(gw, 10*time.Millisecond, nil)

	_, err := v.Verify(context.Background(), birdsRequest())
	require.Error(t, err)
	assert.True(t, selection.IsKind(err, selection.KindValidation))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutor_Flat(t *testing.T) {
	ctx := context.Background()
	gw := testutil.NewFakeGateway()
	gw.OnProcedure(selection.DefaultSelectProcedure, testutil.EmulateSelection(nil, nil, &testutil.Table{
		Fields: []string{"Species"},
		Rows:   [][]any{{"Kestrel"}, {"Barn Owl"}},
	}))

	res, err := selection.NewExecutor(gw, "", nil).Run(ctx, birdsRequest(), false)
	require.NoError(t, err)

	assert.False(t, res.Split)
	assert.Equal(t, selection.ObjectState{Name: "dbo.Birds_jsmith", Exists: true, Rows: 2}, res.Flat)
	assert.Equal(t, int64(2), res.TotalRows())
	assert.False(t, res.Empty())

	call, ok := gw.LastCall(testutil.OpCall)
	require.True(t, ok)
	assert.Equal(t, selection.DefaultSelectProcedure, call.Name)
	assert.Equal(t, []any{"dbo", "Birds", "Species, Recorder", "Recorder = ''O''''Brien''", "", "", "jsmith", 0}, call.Args)

	// Point and poly objects are not checked for a flat result.
	assert.Equal(t, 1, gw.CallCount(testutil.OpExists, ""))
}

func TestExecutor_Split(t *testing.T) {
	ctx := context.Background()
	gw := testutil.NewFakeGateway()
	gw.OnProcedure("CustomSelect", testutil.EmulateSelection(
		&testutil.Table{Fields: []string{"Shape"}, Rows: [][]any{{"POINT (1 1)"}}},
		nil, nil))

	res, err := selection.NewExecutor(gw, "CustomSelect", nil).Run(ctx, birdsRequest(), true)
	require.NoError(t, err)

	assert.Equal(t, []selection.ObjectState{
		{Name: "dbo.Birds_point_jsmith", Exists: true, Rows: 1},
		{Name: "dbo.Birds_poly_jsmith", Exists: false, Rows: 0},
	}, res.Parts())
	assert.True(t, res.Created())
	assert.Equal(t, int64(1), res.TotalRows())
}

func TestExecutor_EmptyResults(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing created", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		res, err := selection.NewExecutor(gw, "", nil).Run(ctx, birdsRequest(), true)
		require.NoError(t, err)
		assert.False(t, res.Created())
		assert.True(t, res.Empty())
		assert.Equal(t, 0, gw.CallCount(testutil.OpCount, ""))
	})

	t.Run("created but empty", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		gw.OnProcedure(selection.DefaultSelectProcedure, testutil.EmulateSelection(nil, nil, &testutil.Table{}))
		res, err := selection.NewExecutor(gw, "", nil).Run(ctx, birdsRequest(), false)
		require.NoError(t, err)
		assert.True(t, res.Created())
		assert.True(t, res.Empty())
	})
}

func TestExecutor_Failures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("deadlock victim")

	t.Run("procedure", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		gw.Fail(testutil.OpCall, selection.DefaultSelectProcedure, boom)
		res, err := selection.NewExecutor(gw, "", nil).Run(ctx, birdsRequest(), false)
		require.Error(t, err)
		assert.True(t, selection.IsKind(err, selection.KindExecution))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "dbo.Birds_jsmith", res.Names.Flat)
	})

	t.Run("existence check", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		gw.Fail(testutil.OpExists, "dbo.Birds_poly_jsmith", boom)
		_, err := selection.NewExecutor(gw, "", nil).Run(ctx, birdsRequest(), true)
		assert.True(t, selection.IsKind(err, selection.KindExecution))
	})

	t.Run("invalid request", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		req := birdsRequest()
		req.Table = ""
		_, err := selection.NewExecutor(gw, "", nil).Run(ctx, req, false)
		assert.True(t, selection.IsKind(err, selection.KindConfiguration))
		assert.Equal(t, 0, gw.CallCount(testutil.OpCall, ""))
	})
}

func TestCleaner(t *testing.T) {
	ctx := context.Background()
	gw := testutil.NewFakeGateway()
	gw.OnProcedure(selection.DefaultClearProcedure, testutil.EmulateClear())
	gw.AddTable("dbo.Birds_jsmith", []string{"Species"})

	c := selection.NewCleaner(gw, "", nil)
	require.NoError(t, c.Clear(ctx, birdsRequest()))
	assert.False(t, gw.Has("dbo.Birds_jsmith"))

	call, _ := gw.LastCall(testutil.OpCall)
	assert.Equal(t, []any{"dbo", "Birds", "jsmith"}, call.Args)

	gw.Fail(testutil.OpCall, selection.DefaultClearProcedure, errors.New("permission denied"))
	err := c.Clear(ctx, birdsRequest())
	assert.True(t, selection.IsKind(err, selection.KindCleanup))
}
