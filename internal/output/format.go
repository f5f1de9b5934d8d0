// Package output decides how a selection result is written: which format is
// achievable for its spatiality, and which concrete paths it produces.
package output

import (
	"fmt"
	"strings"
)

// Format is an output format.
type Format string

const (
	// StructuredStore is a multi-object container (split point/poly objects).
	StructuredStore Format = "StructuredStore"
	// StructuredTable is a single table inside a structured store.
	StructuredTable Format = "StructuredTable"
	// FlatFile is a flat spatial file (shapefile).
	FlatFile Format = "FlatFile"
	// DelimitedComma is comma separated text.
	DelimitedComma Format = "DelimitedComma"
	// DelimitedTab is tab separated text.
	DelimitedTab Format = "DelimitedTab"
)

// ParseFormat accepts the user-facing format names.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "store", "gdb", "structuredstore":
		return StructuredStore, nil
	case "table", "structuredtable":
		return StructuredTable, nil
	case "shp", "shapefile", "flat", "flatfile":
		return FlatFile, nil
	case "csv", "comma", "delimitedcomma":
		return DelimitedComma, nil
	case "txt", "tab", "delimitedtab":
		return DelimitedTab, nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: store, table, shp, csv, txt)", s)
	}
}

// IsStore reports whether f writes into a structured store container.
func (f Format) IsStore() bool {
	return f == StructuredStore || f == StructuredTable
}

// IsDelimited reports whether f is delimited text.
func (f Format) IsDelimited() bool {
	return f == DelimitedComma || f == DelimitedTab
}

// Extension returns the canonical file extension, or "" for store formats.
func (f Format) Extension() string {
	switch f {
	case FlatFile:
		return ".shp"
	case DelimitedComma:
		return ".csv"
	case DelimitedTab:
		return ".txt"
	default:
		return ""
	}
}

// Delimiter returns the field delimiter of a delimited format.
func (f Format) Delimiter() string {
	if f == DelimitedTab {
		return "\t"
	}
	return ","
}

// Resolve maps a requested format to the one achievable for the given
// spatiality. This is the single coercion table:
//
//	spatial  StructuredStore -> StructuredStore (split)
//	spatial  FlatFile        -> FlatFile (split)
//	spatial  Delimited       -> Delimited (point rows, then polygon rows)
//	flat     StructuredStore -> StructuredTable
//	flat     FlatFile        -> DelimitedComma
//	flat     Delimited       -> Delimited
func Resolve(spatial bool, requested Format) Format {
	switch {
	case requested.IsStore() && spatial:
		return StructuredStore
	case requested.IsStore():
		return StructuredTable
	case requested == FlatFile && !spatial:
		return DelimitedComma
	default:
		return requested
	}
}
