package converters

import (
	"github.com/ecopia-map/geofuse/internal/geometry"
)

// CoordinateConverter transforms coordinates between named reference systems. Axis order is
// always easting/longitude first; Z passes through unchanged.
type CoordinateConverter interface {
	ConvertCoordinateSrid(source CRS, target CRS, coord geometry.Coordinate) (geometry.Coordinate, error)
	ConvertCoordinates(source CRS, target CRS, coords []geometry.Coordinate) ([]geometry.Coordinate, error)
	Cleanup()
}

type ElevationCorrector interface {
	CorrectElevation(x, y, z float64) float64
}
