package zone

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

type testFeature struct {
	id    string
	name  string
	rings [][]shp.Point
}

// square returns a closed clockwise ring with its lower-left corner at (x, y).
func square(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + size},
		{X: x + size, Y: y + size},
		{X: x + size, Y: y},
		{X: x, Y: y},
	}
}

// reversed returns the ring wound the other way.
func reversed(ring []shp.Point) []shp.Point {
	out := make([]shp.Point, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

// writeShapefile writes a polygon shapefile with ZONE_ID and ZONE_NAME
// attributes into dir and returns the .shp path.
func writeShapefile(t *testing.T, dir string, features []testFeature) string {
	t.Helper()
	path := filepath.Join(dir, "zones.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{
		shp.StringField("ZONE_ID", 12),
		shp.StringField("ZONE_NAME", 40),
	})

	for i, f := range features {
		poly := shp.Polygon(*shp.NewPolyLine(f.rings))
		w.Write(&poly)
		require.NoError(t, w.WriteAttribute(i, 0, f.id))
		require.NoError(t, w.WriteAttribute(i, 1, f.name))
	}
	w.Close()
	fixDBFName(t, path)

	return path
}

// fixDBFName moves the attribute table go-shp v0.1.1 writes as "<base>dbf"
// to "<base>.dbf", where readers look for it.
func fixDBFName(t *testing.T, shpPath string) {
	t.Helper()
	base := strings.TrimSuffix(shpPath, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	_, err := os.Stat(base + ".dbf")
	require.NoError(t, err, "shapefile fixture has no .dbf")
}
