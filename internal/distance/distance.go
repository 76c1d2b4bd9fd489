// Package distance computes great-circle distances between geographic points
// on a spherical earth.
package distance

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/umahmood/haversine"
)

// Earth radius constants used by the haversine package.
const (
	EarthRadiusMiles = 3958.0
	EarthRadiusKM    = 6371.0
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Unit is the unit distances are reported in.
type Unit string

// Supported units.
const (
	Miles      Unit = "miles"
	Kilometers Unit = "km"
)

// ParseUnit maps a configured unit name onto a Unit.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mi", "mile", "miles":
		return Miles, nil
	case "km", "kilometer", "kilometers", "kilometre", "kilometres":
		return Kilometers, nil
	}
	return "", eris.Errorf("distance: unknown unit %q", s)
}

// Radius returns the sphere radius the unit's distances are based on.
func (u Unit) Radius() float64 {
	if u == Kilometers {
		return EarthRadiusKM
	}
	return EarthRadiusMiles
}

// Between returns the haversine distance from a to b in unit u. Any unit
// other than Kilometers is treated as Miles. Coordinates are not range checked.
func Between(a, b Point, u Unit) float64 {
	if a == b {
		return 0
	}
	mi, km := haversine.Distance(
		haversine.Coord{Lat: a.Lat, Lon: a.Lon},
		haversine.Coord{Lat: b.Lat, Lon: b.Lon},
	)
	if u == Kilometers {
		return km
	}
	return mi
}
