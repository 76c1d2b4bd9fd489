// Package export writes the OD table, its run report, and the zone lookup.
package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/od-table/internal/distance"
	"github.com/sells-group/od-table/internal/pipeline"
)

// Number is a float written in plain decimal notation, never exponent form.
type Number float64

// MarshalCSV implements csvutil.Marshaler.
func (n Number) MarshalCSV() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(n), 'f', -1, 64), nil
}

// odRecord is the CSV shape of one OD table row.
type odRecord struct {
	OriginZoneID          string `csv:"origin_zone_id"`
	OriginZoneName        string `csv:"origin_zone_name"`
	OriginPopulation      int64  `csv:"origin_population"`
	DestinationZoneID     string `csv:"destination_zone_id"`
	DestinationZoneName   string `csv:"destination_zone_name"`
	DestinationPopulation int64  `csv:"destination_population"`
	Distance              Number `csv:"distance_of_trip"`
	DistanceUnit          string `csv:"distance_unit"`
	TotalPassengers       Number `csv:"total_passengers"`
	PassengersByAir       Number `csv:"passengers_by_air"`
	PassengersByVehicle   Number `csv:"passengers_by_vehicle"`
}

// WriteODTable writes rows to path as CSV with a header row. The header is
// written even when there are no rows.
func WriteODTable(path string, rows []pipeline.ODRow, unit distance.Unit) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create od table")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	if err := enc.EncodeHeader(odRecord{}); err != nil {
		return eris.Wrap(err, "export: write od header")
	}

	for _, r := range rows {
		rec := odRecord{
			OriginZoneID:          r.OriginZoneID,
			OriginZoneName:        r.OriginZoneName,
			OriginPopulation:      r.OriginPopulation,
			DestinationZoneID:     r.DestinationZoneID,
			DestinationZoneName:   r.DestinationZoneName,
			DestinationPopulation: r.DestinationPopulation,
			Distance:              Number(r.Distance),
			DistanceUnit:          string(unit),
			TotalPassengers:       Number(r.TotalPassengers),
			PassengersByAir:       Number(r.PassengersByAir),
			PassengersByVehicle:   Number(r.PassengersByVehicle),
		}
		if err := enc.Encode(rec); err != nil {
			return eris.Wrap(err, "export: write od row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush od table")
	}
	return f.Close()
}
