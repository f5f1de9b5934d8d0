// Package config loads the run configuration from a YAML file and validates
// it against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/output"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

//go:embed schema.cue
var schemaCUE string

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "dataselector.yaml"

// Config is the run configuration. It is passed explicitly to the engine;
// there is no process-wide instance.
type Config struct {
	Driver          string   `yaml:"driver" json:"driver"`
	DSN             string   `yaml:"dsn" json:"dsn"`
	Schema          string   `yaml:"schema" json:"schema"`
	SelectProcedure string   `yaml:"select_procedure" json:"select_procedure"`
	ClearProcedure  string   `yaml:"clear_procedure" json:"clear_procedure"`
	ValidateSQL     bool     `yaml:"validate_sql" json:"validate_sql"`
	TrialTimeout    string   `yaml:"trial_timeout" json:"trial_timeout"`
	TrialLimit      string   `yaml:"trial_limit" json:"trial_limit"`
	GeometryFields  []string `yaml:"geometry_fields" json:"geometry_fields"`
	ReservedFields  []string `yaml:"reserved_fields" json:"reserved_fields"`
	ExtractPath     string   `yaml:"extract_path" json:"extract_path"`
	QueryPath       string   `yaml:"query_path" json:"query_path"`
	DefaultFormat   string   `yaml:"default_format" json:"default_format"`
	StoreMarker     string   `yaml:"store_marker" json:"store_marker"`
	LogDir          string   `yaml:"log_dir" json:"log_dir"`
	ClearLog        bool     `yaml:"clear_log" json:"clear_log"`
	Tables          []string `yaml:"tables" json:"tables"`
}

// Default returns the built-in configuration: a local SQLite database with
// emulated procedures.
func Default() Config {
	return Config{
		Driver:          "sqlite3",
		DSN:             "dataselector.db",
		Schema:          "main",
		SelectProcedure: selection.DefaultSelectProcedure,
		ClearProcedure:  selection.DefaultClearProcedure,
		ValidateSQL:     true,
		TrialTimeout:    selection.DefaultTrialTimeout.String(),
		TrialLimit:      "dialect",
		GeometryFields:  append([]string(nil), selection.DefaultGeometryFields...),
		ReservedFields:  []string{},
		ExtractPath:     "extracts",
		QueryPath:       "queries",
		DefaultFormat:   "csv",
		StoreMarker:     output.DefaultStoreMarker,
		LogDir:          "logs",
		ClearLog:        false,
		Tables:          []string{},
	}
}

// Load reads and validates the configuration file at path. Keys absent from
// the file keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes YAML over the defaults with strict field checking and
// validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown keys
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against the CUE schema and the
// value parsers the engine uses.
func (c Config) Validate() error {
	if err := validateSchema(c.normalized()); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.ParseDuration(c.TrialTimeout); err != nil {
		return fmt.Errorf("invalid config: trial_timeout: %w", err)
	}
	if _, err := output.ParseFormat(c.DefaultFormat); err != nil {
		return fmt.Errorf("invalid config: default_format: %w", err)
	}
	return nil
}

// normalized replaces nil lists with empty ones so they encode as [].
func (c Config) normalized() Config {
	if c.GeometryFields == nil {
		c.GeometryFields = []string{}
	}
	if c.ReservedFields == nil {
		c.ReservedFields = []string{}
	}
	if c.Tables == nil {
		c.Tables = []string{}
	}
	return c
}

func validateSchema(c Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return errors.New(strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// Timeout returns the trial timeout. Validate guarantees it parses.
func (c Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.TrialTimeout)
	if err != nil || d <= 0 {
		return selection.DefaultTrialTimeout
	}
	return d
}

// LimitStyle returns the trial limiting clause forced by trial_limit.
// ok is false for "dialect", which keeps the driver's own style.
func (c Config) LimitStyle() (style selection.LimitStyle, ok bool) {
	switch c.TrialLimit {
	case "top":
		return selection.LimitTop, true
	case "limit":
		return selection.LimitSuffix, true
	case "none":
		return selection.LimitNone, true
	}
	return selection.LimitSuffix, false
}

// Format returns the default output format.
func (c Config) Format() output.Format {
	f, err := output.ParseFormat(c.DefaultFormat)
	if err != nil {
		return output.DelimitedComma
	}
	return f
}

// TableAllowed reports whether table may be selected from. An empty
// allow-list permits every table.
func (c Config) TableAllowed(table string) bool {
	if len(c.Tables) == 0 {
		return true
	}
	return selection.MatchesAny(table, c.Tables)
}
