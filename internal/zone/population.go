package zone

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/od-table/internal/fetcher"
)

// Population is one row of the population table, renamed on ingestion to
// city_ID, city_name and population_<year>.
type Population struct {
	CityID     int    `json:"city_ID"`
	CityName   string `json:"city_name"`
	Population int64  `json:"population"`
}

// PopulationOptions configures ReadPopulation.
type PopulationOptions struct {
	IDColumn         string
	NameColumn       string
	PopulationColumn string
	Encoding         string // CSV character set, e.g. "latin1"
	Sheet            string // XLSX sheet name, empty for the first
}

// ReadPopulation reads the population table from a .csv or .xlsx file.
func ReadPopulation(path string, opts PopulationOptions) ([]Population, error) {
	var header []string
	var rows [][]string

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		h, r, err := fetcher.ReadXLSXTable(path, opts.Sheet)
		if err != nil {
			return nil, eris.Wrap(err, "zone: read population workbook")
		}
		header, rows = h, r
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "zone: open population file %s", path)
		}
		defer f.Close() //nolint:errcheck

		decoded, err := fetcher.DecodeReader(f, opts.Encoding)
		if err != nil {
			return nil, err
		}
		h, r, err := fetcher.ReadCSVTable(decoded)
		if err != nil {
			return nil, eris.Wrapf(err, "zone: read population file %s", path)
		}
		header, rows = h, r
	}

	return parsePopulation(header, rows, opts)
}

// parsePopulation maps the configured columns onto Population values. Any
// unparseable ID or population aborts the read.
func parsePopulation(header []string, rows [][]string, opts PopulationOptions) ([]Population, error) {
	colIdx := fetcher.ColumnIndex(header)

	var missing []string
	lookup := func(name string) int {
		i, ok := colIdx[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}
	idCol := lookup(opts.IDColumn)
	nameCol := lookup(opts.NameColumn)
	popCol := lookup(opts.PopulationColumn)
	if len(missing) > 0 {
		return nil, eris.Errorf("zone: population table missing columns %s", strings.Join(missing, ", "))
	}

	out := make([]Population, 0, len(rows))
	for i, row := range rows {
		rawID := fetcher.Field(row, idCol)
		rawPop := fetcher.Field(row, popCol)
		if rawID == "" && rawPop == "" && fetcher.Field(row, nameCol) == "" {
			continue
		}

		// Line numbers count the header as line 1.
		id, ok := ParseZoneID(rawID)
		if !ok {
			return nil, eris.Errorf("zone: population line %d: invalid %s %q", i+2, opts.IDColumn, rawID)
		}
		pop, err := parseCount(rawPop)
		if err != nil {
			return nil, eris.Errorf("zone: population line %d: invalid %s %q", i+2, opts.PopulationColumn, rawPop)
		}

		out = append(out, Population{
			CityID:     id,
			CityName:   fetcher.Field(row, nameCol),
			Population: pop,
		})
	}

	return out, nil
}

// parseCount parses a whole-number count, tolerating thousands separators and
// a float rendering of an integral value ("181000.0").
func parseCount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("not a whole number: %s", s)
	}
	return int64(f), nil
}
