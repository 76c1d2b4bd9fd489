package zone

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/od-table/internal/fetcher"
)

// Geometry is one feature of the zone shapefile.
type Geometry struct {
	ID    string
	Name  string
	Shape geom.T
}

// ShapefileOptions configures ReadShapefile.
type ShapefileOptions struct {
	IDField   string // attribute holding the zone identifier
	NameField string // optional attribute holding the zone name
	TempDir   string // where zipped shapefiles are unpacked
}

// ReadShapefile reads polygon features from a .shp file, or from the single
// shapefile inside a .zip archive. Features without a usable polygon are
// skipped.
func ReadShapefile(path string, opts ShapefileOptions) ([]Geometry, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		if opts.TempDir == "" {
			opts.TempDir = os.TempDir()
		}
		if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "zone: create temp dir %s", opts.TempDir)
		}
		dir, err := os.MkdirTemp(opts.TempDir, "zones-")
		if err != nil {
			return nil, eris.Wrap(err, "zone: create extract dir")
		}
		defer func() { _ = os.RemoveAll(dir) }()

		shpPath, err := fetcher.ExtractShapefileZIP(path, dir)
		if err != nil {
			return nil, eris.Wrap(err, "zone: extract shapefile")
		}
		path = shpPath
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zone: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	idIdx, ok := fieldIdx[strings.ToLower(opts.IDField)]
	if !ok {
		return nil, eris.Errorf("zone: shapefile %s has no %q field", path, opts.IDField)
	}
	nameIdx := -1
	if i, ok := fieldIdx[strings.ToLower(opts.NameField)]; ok && opts.NameField != "" {
		nameIdx = i
	}

	var geoms []Geometry
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		id := attribute(reader, idIdx)
		if id == "" {
			skipped++
			continue
		}
		mp := ShapeToMultiPolygon(shape)
		if mp == nil {
			skipped++
			continue
		}

		g := Geometry{ID: id, Shape: mp}
		if nameIdx >= 0 {
			g.Name = attribute(reader, nameIdx)
		}
		geoms = append(geoms, g)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "zone: read shapefile %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("zone: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return geoms, nil
}

func attribute(reader *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

// ShapeToMultiPolygon converts a shapefile polygon (plain, Z, or M) to a
// MultiPolygon. Returns nil for other shape types and for shapes with no
// non-degenerate ring.
func ShapeToMultiPolygon(shape shp.Shape) *geom.MultiPolygon {
	switch s := shape.(type) {
	case *shp.Polygon:
		return ringsToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		return ringsToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonM:
		return ringsToMultiPolygon(s.Parts, s.Points)
	default:
		return nil
	}
}

// ringsToMultiPolygon groups shapefile rings into polygons. Rings wound the
// same way as the first ring are shells; oppositely wound rings are holes of
// the most recent shell. The shapefile format winds shells clockwise, but
// some writers reverse both, and keying off the first ring accepts either.
func ringsToMultiPolygon(parts []int32, points []shp.Point) *geom.MultiPolygon {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var cur *geom.Polygon
	var shellSign float64

	flush := func() {
		if cur == nil {
			return
		}
		if err := mp.Push(cur); err != nil {
			zap.L().Debug("zone: skipping malformed polygon part", zap.Error(err))
		}
		cur = nil
	}

	for i := range parts {
		start := int(parts[i])
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if start < 0 || end > len(points) || start >= end {
			continue
		}

		flat := closedRing(points[start:end])
		area := signedArea(flat)
		if len(flat) < 8 || area == 0 {
			continue
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if shellSign == 0 {
			shellSign = area
		}
		if cur == nil || (area > 0) == (shellSign > 0) {
			flush()
			cur = geom.NewPolygon(geom.XY)
		}
		if err := cur.Push(ring); err != nil {
			zap.L().Debug("zone: skipping malformed ring", zap.Int("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// closedRing flattens pts to x,y pairs, repeating the first point at the end
// if the ring is open.
func closedRing(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2+2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	n := len(flat)
	if n >= 2 && (flat[0] != flat[n-2] || flat[1] != flat[n-1]) {
		flat = append(flat, flat[0], flat[1])
	}
	return flat
}

// signedArea is the shoelace area of a closed flat ring; positive when the
// ring is counter-clockwise.
func signedArea(flat []float64) float64 {
	var sum float64
	for i := 0; i+3 < len(flat); i += 2 {
		sum += flat[i]*flat[i+3] - flat[i+2]*flat[i+1]
	}
	return sum / 2
}
