package zone

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/od-table/internal/distance"
)

// Centroid returns the area-weighted centroid of a polygonal geometry, with x
// read as longitude and y as latitude. The calculation is planar in the
// geometry's own coordinates.
func Centroid(g geom.T) (distance.Point, error) {
	if g == nil || len(g.FlatCoords()) == 0 {
		return distance.Point{}, eris.New("zone: empty geometry")
	}

	c, err := xy.Centroid(g)
	if err != nil {
		return distance.Point{}, eris.Wrap(err, "zone: centroid")
	}
	if len(c) < 2 || math.IsNaN(c[0]) || math.IsNaN(c[1]) || math.IsInf(c[0], 0) || math.IsInf(c[1], 0) {
		return distance.Point{}, eris.New("zone: degenerate geometry has no centroid")
	}

	return distance.Point{Lat: c[1], Lon: c[0]}, nil
}
