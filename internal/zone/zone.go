// Package zone builds the zone lookup table: one record per MSA with its
// name, population, and polygon centroid.
package zone

import (
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/od-table/internal/distance"
)

// KeyLength is the number of leading digits that form an MSA (CBSA) code.
const KeyLength = 5

// Record is one zone of the lookup.
type Record struct {
	ID         int     `json:"zone_id"`
	Name       string  `json:"zone_name"`
	Population int64   `json:"population"`
	Lat        float64 `json:"centroid_latitude"`
	Lon        float64 `json:"centroid_longitude"`
}

// Centroid returns the record's centroid as a point.
func (r Record) Centroid() distance.Point {
	return distance.Point{Lat: r.Lat, Lon: r.Lon}
}

// KeyPrefix parses the leading five characters of id as an MSA code. It
// reports false when id is shorter than five bytes or any of them is not an
// ASCII digit.
func KeyPrefix(id string) (int, bool) {
	if len(id) < KeyLength {
		return 0, false
	}
	key := 0
	for i := 0; i < KeyLength; i++ {
		c := id[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		key = key*10 + int(c-'0')
	}
	return key, true
}

// ParseZoneID reads a zone identifier as an integer. Numeric DBF fields
// render integral values with a fraction ("10180.000000"), which also parse.
func ParseZoneID(s string) (int, bool) {
	if id, err := strconv.Atoi(s); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// Lookup is an immutable zone table keyed by zone ID. It is safe for
// concurrent readers.
type Lookup struct {
	byID    map[int]int
	records []Record
}

// NewLookup indexes records by ID. When an ID repeats, the first record wins.
func NewLookup(records []Record) *Lookup {
	l := &Lookup{
		byID:    make(map[int]int, len(records)),
		records: make([]Record, 0, len(records)),
	}
	for _, r := range records {
		if _, dup := l.byID[r.ID]; dup {
			continue
		}
		l.byID[r.ID] = len(l.records)
		l.records = append(l.records, r)
	}
	return l
}

// Get returns the record for id.
func (l *Lookup) Get(id int) (Record, bool) {
	i, ok := l.byID[id]
	if !ok {
		return Record{}, false
	}
	return l.records[i], true
}

// Len returns the number of zones.
func (l *Lookup) Len() int {
	return len(l.records)
}

// Records returns a copy of the zones in first-seen order.
func (l *Lookup) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// BuildOptions configures Build.
type BuildOptions struct {
	// MSAOnly keeps only geometries whose ID starts with five digits.
	MSAOnly bool
}

// BuildStats counts what Build kept and dropped.
type BuildStats struct {
	Geometries  int `json:"geometries" yaml:"geometries"`
	Populations int `json:"populations" yaml:"populations"`
	NonMSA      int `json:"non_msa" yaml:"non_msa"`
	InvalidID   int `json:"invalid_id" yaml:"invalid_id"`
	NoCentroid  int `json:"no_centroid" yaml:"no_centroid"`
	Unmatched   int `json:"unmatched" yaml:"unmatched"`
	Duplicates  int `json:"duplicates" yaml:"duplicates"`
	Records     int `json:"records" yaml:"records"`
}

type located struct {
	name     string
	centroid distance.Point
}

// Build joins geometries with population rows on zone ID and returns the
// deduplicated lookup. Population rows are visited in source order and the
// first row per ID is kept, which for Census CBSA extracts is the metro-level
// row rather than its component counties. Geometry names fill in when the
// population row has none.
func Build(geoms []Geometry, pops []Population, opts BuildOptions) (*Lookup, BuildStats) {
	log := zap.L().With(zap.String("component", "zone.build"))
	stats := BuildStats{Geometries: len(geoms), Populations: len(pops)}

	byID := make(map[int]located, len(geoms))
	for _, g := range geoms {
		if opts.MSAOnly {
			if _, ok := KeyPrefix(g.ID); !ok {
				stats.NonMSA++
				continue
			}
		}
		id, ok := ParseZoneID(g.ID)
		if !ok {
			stats.InvalidID++
			continue
		}
		if _, dup := byID[id]; dup {
			continue
		}
		c, err := Centroid(g.Shape)
		if err != nil {
			stats.NoCentroid++
			log.Debug("zone: no centroid", zap.String("zone_id", g.ID), zap.Error(err))
			continue
		}
		byID[id] = located{name: g.Name, centroid: c}
	}

	records := make([]Record, 0, len(byID))
	seen := make(map[int]bool, len(byID))
	for _, p := range pops {
		g, ok := byID[p.CityID]
		if !ok {
			stats.Unmatched++
			continue
		}
		if seen[p.CityID] {
			stats.Duplicates++
			continue
		}
		seen[p.CityID] = true

		name := p.CityName
		if name == "" {
			name = g.name
		}
		records = append(records, Record{
			ID:         p.CityID,
			Name:       name,
			Population: p.Population,
			Lat:        g.centroid.Lat,
			Lon:        g.centroid.Lon,
		})
	}
	stats.Records = len(records)

	return NewLookup(records), stats
}
