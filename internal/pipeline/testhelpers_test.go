package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/od-table/internal/fetcher"
	"github.com/sells-group/od-table/internal/trip"
	"github.com/sells-group/od-table/internal/zone"
)

const tripHeader = "origin_zone_id,destination_zone_id,annual_total_trips,mode_air,mode_vehicle"

func testLookup() *zone.Lookup {
	return zone.NewLookup([]zone.Record{
		{ID: 10001, Name: "CityA", Population: 100000, Lat: 40.0, Lon: -75.0},
		{ID: 10002, Name: "CityB", Population: 50000, Lat: 40.1, Lon: -75.2},
	})
}

func testRunner(workers int) *Runner {
	return &Runner{
		Lookup:  testLookup(),
		Unit:    "miles",
		Columns: trip.DefaultColumnNames(),
		Workers: workers,
	}
}

func header() []string { return strings.Split(tripHeader, ",") }

// batchesOf sends the given batches on a closed channel.
func batchesOf(bs ...fetcher.Batch) <-chan fetcher.Batch {
	ch := make(chan fetcher.Batch, len(bs))
	for _, b := range bs {
		ch <- b
	}
	close(ch)
	return ch
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

// writeInputs writes a zone shapefile, a population CSV and the given trip
// rows into a temp dir and returns matching options.
func writeInputs(t *testing.T, tripRows ...string) Options {
	t.Helper()
	dir := t.TempDir()

	shpPath := filepath.Join(dir, "zones.shp")
	w, err := shp.Create(shpPath, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{
		shp.StringField("ZONE_ID", 12),
		shp.StringField("ZONE_NAME", 40),
	})
	features := []struct {
		id, name string
		ring     []shp.Point
	}{
		{"10001", "Zone A", square(-75.5, 39.5, 1)},
		{"10002", "Zone B", square(-75.7, 39.6, 1)},
		{"ST-PA", "Pennsylvania", square(-80, 40, 5)},
	}
	for i, f := range features {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{f.ring}))
		w.Write(&poly)
		require.NoError(t, w.WriteAttribute(i, 0, f.id))
		require.NoError(t, w.WriteAttribute(i, 1, f.name))
	}
	w.Close()
	fixDBFName(t, shpPath)

	popPath := filepath.Join(dir, "cbsa.csv")
	require.NoError(t, os.WriteFile(popPath, []byte(
		"CBSA,NAME,POPESTIMATE2022\n10001,CityA,100000\n10002,CityB,50000\n"), 0o644))

	tripsPath := filepath.Join(dir, "trips.csv")
	content := tripHeader + "\n" + strings.Join(tripRows, "\n")
	if len(tripRows) > 0 {
		content += "\n"
	}
	require.NoError(t, os.WriteFile(tripsPath, []byte(content), 0o644))

	return Options{
		Zones: zone.Sources{
			ZonesPath:      shpPath,
			PopulationPath: popPath,
			Shapefile:      zone.ShapefileOptions{IDField: "zone_id", NameField: "zone_name", TempDir: dir},
			Population: zone.PopulationOptions{
				IDColumn:         "CBSA",
				NameColumn:       "NAME",
				PopulationColumn: "POPESTIMATE2022",
			},
			Build: zone.BuildOptions{MSAOnly: true},
		},
		TripsPath: tripsPath,
		BatchSize: 2,
		Workers:   1,
		Unit:      "miles",
		Columns:   trip.DefaultColumnNames(),
	}
}

// tripRow formats one trip CSV line.
func tripRow(origin, destination string, total, air, vehicle int) string {
	return fmt.Sprintf("%s,%s,%d,%d,%d", origin, destination, total, air, vehicle)
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
