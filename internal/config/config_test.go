package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/output"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "AFSelectSppSubset", cfg.SelectProcedure)
	assert.Equal(t, "AFClearSppSubset", cfg.ClearProcedure)
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.Equal(t, output.DelimitedComma, cfg.Format())
	assert.Equal(t, []string{"SP_GEOMETRY", "Shape"}, cfg.GeometryFields)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
driver: postgres
dsn: postgres://selector@db/wildlife?sslmode=disable
schema: dbo
trial_timeout: 1500ms
default_format: shp
geometry_fields: [Geom]
tables: [Birds, Mammals]
clear_log: true
`))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "dbo", cfg.Schema)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout())
	assert.Equal(t, output.FlatFile, cfg.Format())
	assert.Equal(t, []string{"Geom"}, cfg.GeometryFields)
	assert.True(t, cfg.ClearLog)

	// Untouched keys keep defaults.
	assert.Equal(t, "AFSelectSppSubset", cfg.SelectProcedure)
	assert.Equal(t, ".gdb", cfg.StoreMarker)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "scheme: dbo\n", "field scheme not found"},
		{"bad driver", "driver: oracle\n", "driver"},
		{"empty schema", "schema: \"\"\n", "schema"},
		{"no geometry fields", "geometry_fields: []\n", "geometry_fields"},
		{"bad timeout", "trial_timeout: soon\n", "trial_timeout"},
		{"bad trial limit", "trial_limit: bottom\n", "trial_limit"},
		{"bad format", "default_format: parquet\n", "default_format"},
		{"bad marker", "store_marker: gdb\n", "store_marker"},
		{"bad procedure", "select_procedure: \"drop table x;\"\n", "select_procedure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLimitStyle(t *testing.T) {
	tests := []struct {
		value  string
		want   selection.LimitStyle
		forced bool
	}{
		{"dialect", selection.LimitSuffix, false},
		{"top", selection.LimitTop, true},
		{"limit", selection.LimitSuffix, true},
		{"none", selection.LimitNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg, err := Parse([]byte("trial_limit: " + tt.value + "\n"))
			require.NoError(t, err)
			style, forced := cfg.LimitStyle()
			assert.Equal(t, tt.want, style)
			assert.Equal(t, tt.forced, forced)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(dir, "dataselector.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema: dbo\n"), 0o644))
	cfg, err = LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, "dbo", cfg.Schema)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestTableAllowed(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.TableAllowed("Anything"))

	cfg.Tables = []string{"Birds", "Mammals"}
	assert.True(t, cfg.TableAllowed("birds"))
	assert.False(t, cfg.TableAllowed("Reptiles"))
}
