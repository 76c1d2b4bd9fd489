package zone

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestCentroid_Square(t *testing.T) {
	mp := ringsToMultiPolygon([]int32{0}, square(-80, 25, 1))
	c, err := Centroid(mp)
	require.NoError(t, err)
	assert.InDelta(t, 25.5, c.Lat, 1e-9)
	assert.InDelta(t, -79.5, c.Lon, 1e-9)
}

func TestCentroid_HoleShiftsCentroid(t *testing.T) {
	shell := square(0, 0, 4)
	hole := reversed(square(2, 2, 1))
	points := append(append([]shp.Point{}, shell...), hole...)

	mp := ringsToMultiPolygon([]int32{0, int32(len(shell))}, points)
	c, err := Centroid(mp)
	require.NoError(t, err)

	// (16*2 - 1*2.5) / 15
	want := 29.5 / 15
	assert.InDelta(t, want, c.Lat, 1e-9)
	assert.InDelta(t, want, c.Lon, 1e-9)
}

func TestCentroid_AreaWeightedMultiPart(t *testing.T) {
	big := square(0, 0, 2)   // area 4, centroid (1,1)
	small := square(4, 0, 1) // area 1, centroid (4.5,0.5)
	points := append(append([]shp.Point{}, big...), small...)

	mp := ringsToMultiPolygon([]int32{0, int32(len(big))}, points)
	c, err := Centroid(mp)
	require.NoError(t, err)
	assert.InDelta(t, (4*1+1*4.5)/5, c.Lon, 1e-9)
	assert.InDelta(t, (4*1+1*0.5)/5, c.Lat, 1e-9)
}

func TestCentroid_Empty(t *testing.T) {
	_, err := Centroid(nil)
	assert.Error(t, err)

	_, err = Centroid(geom.NewMultiPolygon(geom.XY))
	assert.Error(t, err)
}
