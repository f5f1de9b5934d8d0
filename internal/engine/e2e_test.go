package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/config"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/engine"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/export"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/gateway"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/output"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/prompt"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/runlog"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/store"
)

func createSQLiteGateway(t *testing.T, cfg config.Config) *gateway.DB {
	t.Helper()
	db, err := gateway.Open(gateway.DriverSQLite, filepath.Join(t.TempDir(), "wildlife.db"),
		gateway.EmulatedProcedures(cfg.SelectProcedure, cfg.ClearProcedure, cfg.GeometryFields)...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.SQL().Exec(`
		CREATE TABLE Sightings (
			OBJECTID INTEGER PRIMARY KEY,
			Species TEXT,
			Recorder TEXT,
			Year INTEGER,
			Shape TEXT
		);
		INSERT INTO Sightings (Species, Recorder, Year, Shape) VALUES
			('Kestrel', 'O''Brien', 2020, 'POINT (1 2)'),
			('Merlin', 'Smith', 2019, 'POINT (3 4)'),
			('Heronry', 'O''Brien', 2020, 'POLYGON ((0 0, 1 0, 1 1, 0 0))');
		CREATE TABLE Counts (
			OBJECTID INTEGER PRIMARY KEY,
			Site TEXT,
			Total INTEGER
		);
		INSERT INTO Counts (Site, Total) VALUES ('Marsh', 12), ('Wood, North', 4);
	`)
	require.NoError(t, err)
	return db
}

func TestEndToEnd_SQLiteSplitCSV(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ExtractPath = dir
	db := createSQLiteGateway(t, cfg)

	logPath := runlog.FileName(filepath.Join(dir, "logs"), "jsmith")
	log, err := runlog.Open(logPath, cfg.ClearLog)
	require.NoError(t, err)
	defer log.Close()

	ex := export.New(db, export.Options{GeometryFields: cfg.GeometryFields}, nil)
	eng := engine.New(cfg, db, ex, prompt.Static{Path: "sightings"}, log)

	req := selection.Request{
		Schema:      "main",
		Table:       "Sightings",
		Columns:     "*",
		Filter:      "Recorder = 'O''Brien'",
		CallerToken: "jsmith",
	}
	out := eng.Run(ctx, req, output.DelimitedComma)
	require.True(t, out.Succeeded, out.Error)
	assert.Equal(t, engine.RowCounts{Point: 1, Poly: 1}, out.RowCounts)

	data, err := os.ReadFile(filepath.Join(dir, "sightings.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Species,Recorder,Year\nKestrel,O'Brien,2020\nHeronry,O'Brien,2020\n", string(data))

	// Temporary tables are gone.
	for _, name := range selection.NewTempNames("main", "Sightings", "jsmith").All() {
		ok, err := db.ObjectExists(ctx, name)
		require.NoError(t, err)
		assert.False(t, ok, name)
	}

	require.NoError(t, log.Close())
	logData, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "Process complete")
}

func TestEndToEnd_SQLiteNonSpatialStoreBecomesTable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ExtractPath = dir
	db := createSQLiteGateway(t, cfg)

	ex := export.New(db, export.Options{GeometryFields: cfg.GeometryFields}, nil)
	target := filepath.Join("extract.gdb", "Counts")
	eng := engine.New(cfg, db, ex, prompt.Static{Path: target}, nil,
		engine.WithIDGenerator(engine.NewFixedGenerator("run-42")))

	req := selection.Request{
		Schema:      "main",
		Table:       "Counts",
		Columns:     "Site, Total",
		OrderBy:     "Total DESC",
		CallerToken: "jsmith",
	}
	out := eng.Run(ctx, req, output.StructuredStore)
	require.True(t, out.Succeeded, out.Error)
	assert.False(t, out.Spatial)
	assert.Equal(t, output.StructuredTable, out.Format)
	assert.Equal(t, engine.RowCounts{Flat: 2}, out.RowCounts)

	s, err := store.Open(filepath.Join(dir, "extract.gdb"))
	require.NoError(t, err)
	defer s.Close()

	var site string
	require.NoError(t, s.DB().QueryRow(`SELECT Site FROM "Counts" LIMIT 1`).Scan(&site))
	assert.Equal(t, "Marsh", site)

	outs, err := s.Outputs(ctx)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, "run-42", outs[0].RunID)
	assert.Equal(t, "main.Counts_jsmith", outs[0].Source)
}

func TestEndToEnd_SQLiteInvalidQuery(t *testing.T) {
	cfg := config.Default()
	cfg.ExtractPath = t.TempDir()
	db := createSQLiteGateway(t, cfg)

	ex := export.New(db, export.Options{}, nil)
	eng := engine.New(cfg, db, ex, prompt.Static{Path: "x"}, nil)

	out := eng.Run(context.Background(), selection.Request{
		Schema:      "main",
		Table:       "Counts",
		Columns:     "Site, Nope",
		CallerToken: "jsmith",
	}, output.DelimitedComma)

	assert.Equal(t, engine.StageVerify, out.FailureStage)
	assert.Contains(t, out.Error, "Nope")
}
