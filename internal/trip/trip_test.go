package trip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/od-table/internal/zone"
)

var testHeader = []string{"origin_zone_id", "destination_zone_id", "annual_total_trips", "mode_air", "mode_vehicle"}

func testLookup() *zone.Lookup {
	return zone.NewLookup([]zone.Record{
		{ID: 10001, Name: "CityA", Population: 100000, Lat: 40.0, Lon: -75.0},
		{ID: 10002, Name: "CityB", Population: 50000, Lat: 40.1, Lon: -75.2},
	})
}

func TestKeyPrefix(t *testing.T) {
	key, ok := KeyPrefix("35620_NYC")
	assert.True(t, ok)
	assert.Equal(t, 35620, key)

	_, ok = KeyPrefix("ST-NY")
	assert.False(t, ok)
}

func TestResolveColumns(t *testing.T) {
	header := []string{"Mode_Vehicle", "mode_air", "ORIGIN_ZONE_ID", "destination_zone_id", "annual_total_trips"}
	cols, err := ResolveColumns(header, DefaultColumnNames())
	require.NoError(t, err)
	assert.Equal(t, Columns{Origin: 2, Destination: 3, Total: 4, Air: 1, Vehicle: 0}, cols)
}

func TestResolveColumns_Missing(t *testing.T) {
	_, err := ResolveColumns([]string{"origin_zone_id", "annual_total_trips"}, DefaultColumnNames())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "destination_zone_id")
	assert.Contains(t, err.Error(), "mode_air")
	assert.Contains(t, err.Error(), "mode_vehicle")
}

func TestJoin_Basic(t *testing.T) {
	rows := [][]string{
		{"10001_A", "10002_B", "100", "10", "90"},
	}
	joined, stats, err := Join(testHeader, rows, testLookup(), DefaultColumnNames())
	require.NoError(t, err)
	require.Len(t, joined, 1)

	j := joined[0]
	assert.Equal(t, "10001_A", j.OriginID)
	assert.Equal(t, "10002_B", j.DestinationID)
	assert.Equal(t, 100.0, j.TotalTrips)
	assert.Equal(t, 10.0, j.Air)
	assert.Equal(t, 90.0, j.Vehicle)
	assert.Equal(t, "CityA", j.Origin.Name)
	assert.Equal(t, int64(100000), j.Origin.Population)
	assert.Equal(t, "CityB", j.Destination.Name)
	assert.Equal(t, int64(50000), j.Destination.Population)
	assert.Equal(t, Stats{Rows: 1, Joined: 1}, stats)
}

func TestJoin_PrefixFilter(t *testing.T) {
	rows := [][]string{
		{"ST-PA_1", "10002_B", "5", "0", "5"},   // non-numeric prefix
		{"1000_X", "10002_B", "5", "0", "5"},    // too short
		{"10001_A", "", "5", "0", "5"},          // empty destination
		{"10001_A", "10002_B", "5", "1", "4"},   // kept
		{"10001", "10001", "2", "0", "2"},       // bare code, intra-zone
		{"ST-PA_1", "ST-NJ_1", "bad", "x", "y"}, // filtered before parsing
		{"ABCDE99", "1000299", "5", "0", "5"},   // letters where the code should be
		{"1000199", "1000299", "500", "100", "400"},
	}
	joined, stats, err := Join(testHeader, rows, testLookup(), DefaultColumnNames())
	require.NoError(t, err)
	require.Len(t, joined, 3)
	assert.Equal(t, "10001_A", joined[0].OriginID)
	assert.Equal(t, "10001", joined[1].OriginID)
	assert.Equal(t, "CityA", joined[1].Destination.Name)
	assert.Equal(t, "1000199", joined[2].OriginID)
	assert.Equal(t, Stats{Rows: 8, Filtered: 5, Joined: 3}, stats)
}

func TestJoin_CityPairCases(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		destination string
		kept        bool
		originName  string
		destName    string
	}{
		{name: "both MSA codes", origin: "1000199", destination: "1000299", kept: true, originName: "CityA", destName: "CityB"},
		{name: "alphabetic origin", origin: "ABCDE99", destination: "1000299"},
		{name: "alphabetic destination", origin: "1000199", destination: "ABCDE99"},
		{name: "origin too short", origin: "1000", destination: "1000299"},
		{name: "same zone", origin: "1000201", destination: "1000299", kept: true, originName: "CityB", destName: "CityB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := [][]string{{tt.origin, tt.destination, "500", "100", "400"}}
			joined, stats, err := Join(testHeader, rows, testLookup(), DefaultColumnNames())
			require.NoError(t, err)
			if !tt.kept {
				assert.Empty(t, joined)
				assert.Equal(t, 1, stats.Filtered)
				return
			}
			require.Len(t, joined, 1)
			assert.Equal(t, tt.origin, joined[0].OriginID)
			assert.Equal(t, tt.destination, joined[0].DestinationID)
			assert.Equal(t, tt.originName, joined[0].Origin.Name)
			assert.Equal(t, tt.destName, joined[0].Destination.Name)
			assert.Equal(t, 500.0, joined[0].TotalTrips)
			assert.Equal(t, 100.0, joined[0].Air)
			assert.Equal(t, 400.0, joined[0].Vehicle)
		})
	}
}

func TestJoin_UnknownZoneDropped(t *testing.T) {
	rows := [][]string{
		{"10001_A", "99999_Z", "5", "0", "5"},
		{"99999_Z", "10002_B", "5", "0", "5"},
		{"10002_B", "10001_A", "7", "2", "5"},
	}
	joined, stats, err := Join(testHeader, rows, testLookup(), DefaultColumnNames())
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, "CityB", joined[0].Origin.Name)
	assert.Equal(t, "CityA", joined[0].Destination.Name)
	assert.Equal(t, Stats{Rows: 3, Unmatched: 2, Joined: 1}, stats)
}

func TestJoin_BlankCountsAreZero(t *testing.T) {
	rows := [][]string{
		{"10001_A", "10002_B", " 12.5 ", "", ""},
	}
	joined, _, err := Join(testHeader, rows, testLookup(), DefaultColumnNames())
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, 12.5, joined[0].TotalTrips)
	assert.Zero(t, joined[0].Air)
	assert.Zero(t, joined[0].Vehicle)
}

func TestJoin_ShortRowCountsAreZero(t *testing.T) {
	rows := [][]string{
		{"10001_A", "10002_B", "3"},
	}
	joined, _, err := Join(testHeader, rows, testLookup(), DefaultColumnNames())
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, 3.0, joined[0].TotalTrips)
	assert.Zero(t, joined[0].Vehicle)
}

func TestJoin_ConversionFailsBatch(t *testing.T) {
	rows := [][]string{
		{"10001_A", "10002_B", "5", "0", "5"},
		{"10001_A", "10002_B", "five", "0", "5"},
	}
	joined, stats, err := Join(testHeader, rows, testLookup(), DefaultColumnNames())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConversion)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "five")
	assert.Nil(t, joined)
	assert.Equal(t, 2, stats.Rows)
}

func TestJoin_RejectsNonFinite(t *testing.T) {
	rows := [][]string{
		{"10001_A", "10002_B", "NaN", "0", "0"},
	}
	_, _, err := Join(testHeader, rows, testLookup(), DefaultColumnNames())
	assert.ErrorIs(t, err, ErrConversion)
}

func TestJoin_MissingColumn(t *testing.T) {
	header := []string{"origin_zone_id", "destination_zone_id", "annual_total_trips"}
	_, _, err := Join(header, [][]string{{"10001_A", "10002_B", "1"}}, testLookup(), DefaultColumnNames())
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestJoin_EmptyBatch(t *testing.T) {
	joined, stats, err := Join(testHeader, nil, testLookup(), DefaultColumnNames())
	require.NoError(t, err)
	assert.Empty(t, joined)
	assert.Equal(t, Stats{}, stats)
}

func TestStatsAdd(t *testing.T) {
	s := Stats{Rows: 3, Filtered: 1, Unmatched: 1, Joined: 1}
	s.Add(Stats{Rows: 2, Joined: 2})
	assert.Equal(t, Stats{Rows: 5, Filtered: 1, Unmatched: 1, Joined: 3}, s)
}
