package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Attribute field limits of the dBase table.
const (
	maxFieldName = 10
	stringSize   = 254
	numberSize   = 18
	floatDecimal = 6
)

// ShapefileTarget writes ESRI shapefiles (.shp, .shx, .dbf).
//
// The shape type is taken from the first non-null geometry and later rows
// must fit it. Points and multipoints share a multipoint layer. Attribute
// types come from the first non-null value of each field and names are
// truncated to ten characters.
type ShapefileTarget struct {
	opts Options
}

// NewShapefileTarget creates a ShapefileTarget.
func NewShapefileTarget(opts Options) *ShapefileTarget {
	return &ShapefileTarget{opts: opts.withDefaults()}
}

// Exists reports whether the .shp file exists.
func (t *ShapefileTarget) Exists(_ context.Context, path string) (bool, error) {
	return fileExists(path)
}

// Copy writes the source object to job.Path. Appending is not supported.
func (t *ShapefileTarget) Copy(ctx context.Context, job Job) (int64, error) {
	if job.Append {
		return 0, fmt.Errorf("shapefile %s cannot be appended to", job.Path)
	}

	fields, err := job.Source.ListFields(ctx, job.Object)
	if err != nil {
		return 0, err
	}
	geom, ok := t.opts.geometryField(fields)
	if !ok {
		return 0, fmt.Errorf("%s has no geometry field", job.Object)
	}
	attrs := t.opts.attributeFields(fields)
	cols := append([]string{geom}, attrs...)

	if err := os.MkdirAll(filepath.Dir(job.Path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	// Rows before the first geometry are held back so the layer type can
	// come from the first row that has one.
	var w *shpWriter
	var pending [][]any
	var n int64
	err = job.Source.StreamRows(ctx, job.Object, cols, func(values []any) error {
		g, err := decodeGeometry(values[0])
		if err != nil {
			return fmt.Errorf("row %d: %w", n+1, err)
		}
		if w == nil && g == nil {
			pending = append(pending, append([]any(nil), values[1:]...))
			n++
			return nil
		}
		if w == nil {
			rows := append(pending, values[1:])
			w, err = createShapefile(job.Path, g, attrs, inferKinds(rows, len(attrs)))
			if err != nil {
				return err
			}
			for i, held := range pending {
				if err := w.write(nil, held); err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
			}
			pending = nil
		}
		if err := w.write(g, values[1:]); err != nil {
			return fmt.Errorf("row %d: %w", n+1, err)
		}
		n++
		return nil
	})
	if w == nil {
		if err != nil {
			return n, err
		}
		if n > 0 {
			return n, fmt.Errorf("%s: no row has a geometry", job.Object)
		}
		return 0, nil
	}
	if closeErr := w.close(job.Path); closeErr != nil && err == nil {
		err = closeErr
	}
	return n, err
}

type attrKind int

const (
	attrString attrKind = iota
	attrNumber
	attrFloat
	attrDate
)

type shpWriter struct {
	w     *shp.Writer
	layer shp.ShapeType
	kinds []attrKind
}

func createShapefile(path string, first orb.Geometry, names []string, kinds []attrKind) (*shpWriter, error) {
	layer, err := layerType(first)
	if err != nil {
		return nil, err
	}

	w, err := shp.Create(path, layer)
	if err != nil {
		return nil, fmt.Errorf("failed to create shapefile: %w", err)
	}

	fields := make([]shp.Field, len(kinds))
	dbfNames := fieldNames(names)
	for i, kind := range kinds {
		switch kind {
		case attrNumber:
			fields[i] = shp.NumberField(dbfNames[i], numberSize)
		case attrFloat:
			fields[i] = shp.FloatField(dbfNames[i], numberSize, floatDecimal)
		case attrDate:
			fields[i] = shp.DateField(dbfNames[i])
		default:
			fields[i] = shp.StringField(dbfNames[i], stringSize)
		}
	}
	if len(fields) > 0 {
		if err := w.SetFields(fields); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to set fields: %w", err)
		}
	}
	return &shpWriter{w: w, layer: layer, kinds: kinds}, nil
}

// inferKinds picks each attribute type from the first non-nil value in rows.
func inferKinds(rows [][]any, width int) []attrKind {
	kinds := make([]attrKind, width)
	for i := range kinds {
		for _, row := range rows {
			if row[i] != nil {
				kinds[i] = inferKind(row[i])
				break
			}
		}
	}
	return kinds
}

func (s *shpWriter) write(g orb.Geometry, values []any) error {
	shape, err := toShape(g, s.layer)
	if err != nil {
		return err
	}
	row := int(s.w.Write(shape))
	for i, v := range values {
		if v == nil {
			continue
		}
		attr, err := attrValue(s.kinds[i], v)
		if err != nil {
			return fmt.Errorf("attribute %d: %w", i, err)
		}
		if err := s.w.WriteAttribute(row, i, attr); err != nil {
			return fmt.Errorf("attribute %d: %w", i, err)
		}
	}
	return nil
}

// close flushes the writer. go-shp v0.1.1 names the attribute table
// "<base>dbf"; it is moved to "<base>.dbf" where readers look for it.
func (s *shpWriter) close(path string) error {
	s.w.Close()

	base := strings.TrimSuffix(path, filepath.Ext(path))
	written := base + "dbf"
	if _, err := os.Stat(written); err != nil {
		return nil
	}
	if err := os.Rename(written, base+".dbf"); err != nil {
		return fmt.Errorf("failed to rename attribute table: %w", err)
	}
	return nil
}

// decodeGeometry accepts WKT text or WKB bytes. nil means no geometry.
func decodeGeometry(v any) (orb.Geometry, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case orb.Geometry:
		return x, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		g, err := wkt.Unmarshal(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("decode WKT geometry: %w", err)
		}
		return g, nil
	case []byte:
		if g, err := wkb.Unmarshal(x); err == nil {
			return g, nil
		}
		g, err := wkt.Unmarshal(strings.TrimSpace(string(x)))
		if err != nil {
			return nil, fmt.Errorf("geometry is neither WKB nor WKT: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unsupported geometry value of type %T", v)
	}
}

func layerType(g orb.Geometry) (shp.ShapeType, error) {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return shp.MULTIPOINT, nil
	case orb.LineString, orb.MultiLineString:
		return shp.POLYLINE, nil
	case orb.Polygon, orb.MultiPolygon:
		return shp.POLYGON, nil
	default:
		return 0, fmt.Errorf("unsupported geometry type %s", g.GeoJSONType())
	}
}

func toShape(g orb.Geometry, layer shp.ShapeType) (shp.Shape, error) {
	if g == nil {
		return &shp.Null{}, nil
	}

	switch layer {
	case shp.MULTIPOINT:
		var pts []orb.Point
		switch x := g.(type) {
		case orb.Point:
			pts = []orb.Point{x}
		case orb.MultiPoint:
			pts = x
		}
		if pts != nil {
			mp := &shp.MultiPoint{NumPoints: int32(len(pts)), Points: toPoints(pts)}
			mp.Box = shp.BBoxFromPoints(mp.Points)
			return mp, nil
		}
	case shp.POLYLINE:
		var parts [][]shp.Point
		switch x := g.(type) {
		case orb.LineString:
			parts = [][]shp.Point{toPoints(x)}
		case orb.MultiLineString:
			for _, ls := range x {
				parts = append(parts, toPoints(ls))
			}
		}
		if parts != nil {
			return shp.NewPolyLine(parts), nil
		}
	case shp.POLYGON:
		var polys []orb.Polygon
		switch x := g.(type) {
		case orb.Polygon:
			polys = []orb.Polygon{x}
		case orb.MultiPolygon:
			polys = x
		}
		if polys != nil {
			var parts [][]shp.Point
			for _, poly := range polys {
				for i, ring := range poly {
					parts = append(parts, toPoints(orientRing(ring, i == 0)))
				}
			}
			p := shp.Polygon(*shp.NewPolyLine(parts))
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%s geometry does not fit a %s layer", g.GeoJSONType(), layerName(layer))
}

// orientRing returns outer rings clockwise and holes counter-clockwise,
// as shapefiles require.
func orientRing(r orb.Ring, outer bool) orb.Ring {
	o := r.Orientation()
	if (outer && o == orb.CCW) || (!outer && o == orb.CW) {
		r = r.Clone()
		r.Reverse()
	}
	return r
}

func toPoints(pts []orb.Point) []shp.Point {
	out := make([]shp.Point, len(pts))
	for i, p := range pts {
		out[i] = shp.Point{X: p[0], Y: p[1]}
	}
	return out
}

func layerName(t shp.ShapeType) string {
	switch t {
	case shp.MULTIPOINT:
		return "multipoint"
	case shp.POLYLINE:
		return "polyline"
	case shp.POLYGON:
		return "polygon"
	default:
		return "shape type " + strconv.Itoa(int(t))
	}
}

// fieldNames truncates names to the dBase limit, keeping them unique.
func fieldNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool)
	for i, name := range names {
		n := truncate(name, maxFieldName)
		for k := 1; seen[strings.ToUpper(n)]; k++ {
			suffix := strconv.Itoa(k)
			n = truncate(name, maxFieldName-len(suffix)) + suffix
		}
		seen[strings.ToUpper(n)] = true
		out[i] = n
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func inferKind(v any) attrKind {
	switch v.(type) {
	case int, int32, int64:
		return attrNumber
	case float32, float64:
		return attrFloat
	case time.Time:
		return attrDate
	default:
		return attrString
	}
}

// attrValue converts v to a type the dBase writer accepts.
func attrValue(kind attrKind, v any) (any, error) {
	switch kind {
	case attrNumber:
		switch x := v.(type) {
		case int:
			return x, nil
		case int32:
			return int(x), nil
		case int64:
			return int(x), nil
		case float64:
			return int(x), nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(x))
			if err != nil {
				return nil, err
			}
			return n, nil
		}
	case attrFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case string:
			return strconv.ParseFloat(strings.TrimSpace(x), 64)
		}
	case attrDate:
		if t, ok := v.(time.Time); ok {
			return t.Format("20060102"), nil
		}
	default:
		return truncate(formatValue(v), stringSize), nil
	}
	return nil, fmt.Errorf("value of type %T does not fit the field", v)
}
