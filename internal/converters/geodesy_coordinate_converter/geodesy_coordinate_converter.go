// Package geodesy_coordinate_converter converts between the reference systems of the wgs84
// EPSG repository (WGS84 geographic, web mercator, the WGS84 and ETRS89 UTM zones and a few
// national grids) without any native dependency.
package geodesy_coordinate_converter

import (
	"math"

	"github.com/wroge/wgs84"

	"github.com/ecopia-map/geofuse/internal/converters"
	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
)

type GeodesyCoordinateConverter struct {
	repository *wgs84.Repository
}

func NewGeodesyCoordinateConverter() converters.CoordinateConverter {
	return &GeodesyCoordinateConverter{repository: wgs84.EPSG()}
}

// Supports reports whether the reference system can be handled by this converter.
func Supports(crs converters.CRS) bool {
	_, err := referenceSystemOf(wgs84.EPSG(), crs)
	return err == nil
}

func referenceSystemOf(repository *wgs84.Repository, crs converters.CRS) (wgs84.CoordinateReferenceSystem, error) {
	if crs.Code > 0 {
		if system := repository.Code(crs.Code); system != nil {
			return system, nil
		}
	}
	return nil, errs.Precondition("converters: %s is not supported without PROJ", crs)
}

func (c *GeodesyCoordinateConverter) ConvertCoordinateSrid(source, target converters.CRS, coord geometry.Coordinate) (geometry.Coordinate, error) {
	out, err := c.ConvertCoordinates(source, target, []geometry.Coordinate{coord})
	if err != nil {
		return geometry.Coordinate{}, err
	}
	return out[0], nil
}

// ConvertCoordinates transforms the horizontal position of coords. Zone areas are not
// enforced so that tiles overlapping a zone border convert like the rest of the file.
func (c *GeodesyCoordinateConverter) ConvertCoordinates(source, target converters.CRS, coords []geometry.Coordinate) ([]geometry.Coordinate, error) {
	src, err := referenceSystemOf(c.repository, source)
	if err != nil {
		return nil, err
	}
	dst, err := referenceSystemOf(c.repository, target)
	if err != nil {
		return nil, err
	}
	transform := wgs84.Transform(src, dst)

	out := make([]geometry.Coordinate, len(coords))
	for i, coord := range coords {
		x, y, _ := transform(coord.X, coord.Y, 0)
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return nil, errs.Precondition("converters: point %d (%g, %g) cannot be converted from %s to %s", i, coord.X, coord.Y, source, target)
		}
		out[i] = geometry.Coordinate{X: x, Y: y, Z: coord.Z}
	}
	return out, nil
}

func (c *GeodesyCoordinateConverter) Cleanup() {}
