package export

import (
	"encoding/csv"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/sells-group/od-table/internal/zone"
)

type zoneRecord struct {
	CityID     int    `csv:"city_ID"`
	CityName   string `csv:"city_name"`
	Population int64  `csv:"population"`
	Latitude   Number `csv:"centroid_lat"`
	Longitude  Number `csv:"centroid_lon"`
	Centroid   string `csv:"centroid_wkt"`
}

// WriteZones writes the zone lookup with its centroids to path as CSV.
func WriteZones(path string, lookup *zone.Lookup) error {
	if lookup == nil {
		return eris.New("export: no zone lookup")
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create zones file")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	if err := enc.EncodeHeader(zoneRecord{}); err != nil {
		return eris.Wrap(err, "export: write zones header")
	}

	for _, r := range lookup.Records() {
		pt := geom.NewPointFlat(geom.XY, []float64{r.Lon, r.Lat})
		text, err := wkt.Marshal(pt)
		if err != nil {
			return eris.Wrapf(err, "export: centroid of zone %d", r.ID)
		}
		rec := zoneRecord{
			CityID:     r.ID,
			CityName:   r.Name,
			Population: r.Population,
			Latitude:   Number(r.Lat),
			Longitude:  Number(r.Lon),
			Centroid:   text,
		}
		if err := enc.Encode(rec); err != nil {
			return eris.Wrap(err, "export: write zone row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush zones file")
	}
	return f.Close()
}
