package geodesy_coordinate_converter

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/geofuse/internal/converters"
	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
)

var (
	lonLat  = converters.MustParseCRS("EPSG:4326")
	utm32N = converters.MustParseCRS("32632")
	utm33S = converters.MustParseCRS("epsg:32733")
	webMc  = converters.MustParseCRS("EPSG:3857")
)

func TestKnownUTMPoints(t *testing.T) {
	c := NewGeodesyCoordinateConverter()

	onMeridian, err := c.ConvertCoordinateSrid(lonLat, utm32N, geometry.Coordinate{X: 9, Y: 45, Z: 312})
	require.NoError(t, err)
	assert.InDelta(t, 500000, onMeridian.X, 1e-3)
	assert.InDelta(t, 4982950.40, onMeridian.Y, 0.01)
	assert.Equal(t, 312.0, onMeridian.Z)

	equator, err := c.ConvertCoordinateSrid(lonLat, utm33S, geometry.Coordinate{X: 15, Y: 0})
	require.NoError(t, err)
	assert.InDelta(t, 500000, equator.X, 1e-3)
	assert.InDelta(t, 10000000, equator.Y, 1e-3)
}

func TestWebMercator(t *testing.T) {
	c := NewGeodesyCoordinateConverter()
	out, err := c.ConvertCoordinateSrid(lonLat, webMc, geometry.Coordinate{X: 10, Y: 0})
	require.NoError(t, err)
	assert.InDelta(t, 1113194.9079, out.X, 1e-3)
	assert.InDelta(t, 0, out.Y, 1e-3)
}

func TestRoundTripWithinTolerance(t *testing.T) {
	c := NewGeodesyCoordinateConverter()
	var coords []geometry.Coordinate
	for x := 300000.0; x <= 700000; x += 50000 {
		for y := 4800000.0; y <= 5300000; y += 100000 {
			coords = append(coords, geometry.Coordinate{X: x, Y: y, Z: x / 1000})
		}
	}

	for _, target := range []converters.CRS{lonLat, webMc, converters.MustParseCRS("EPSG:32631")} {
		there, err := c.ConvertCoordinates(utm32N, target, coords)
		require.NoError(t, err)
		back, err := c.ConvertCoordinates(target, utm32N, there)
		require.NoError(t, err)
		for i := range coords {
			assert.Less(t, math.Abs(back[i].X-coords[i].X)/coords[i].X, 1e-6, "%s x at %v", target, coords[i])
			assert.Less(t, math.Abs(back[i].Y-coords[i].Y)/coords[i].Y, 1e-6, "%s y at %v", target, coords[i])
			assert.Equal(t, coords[i].Z, back[i].Z)
		}
	}
}

func TestUnsupportedReferenceSystem(t *testing.T) {
	c := NewGeodesyCoordinateConverter()
	_, err := c.ConvertCoordinates(converters.MustParseCRS("EPSG:2056"), lonLat, []geometry.Coordinate{{X: 1, Y: 2}})
	assert.True(t, errors.Is(err, errs.ErrPrecondition))
	assert.False(t, Supports(converters.MustParseCRS("+proj=somerc +lat_0=46.95")))
	assert.True(t, Supports(utm33S))
	assert.True(t, Supports(converters.MustParseCRS("EPSG:25832")))
}

func TestNationalGrid(t *testing.T) {
	c := NewGeodesyCoordinateConverter()
	etrs, err := c.ConvertCoordinateSrid(lonLat, converters.MustParseCRS("EPSG:25832"), geometry.Coordinate{X: 9, Y: 52, Z: 40})
	require.NoError(t, err)
	// ETRS89 and WGS84 agree to well under a meter
	assert.InDelta(t, 500000, etrs.X, 1)
	assert.InDelta(t, 5761038, etrs.Y, 1)
	assert.Equal(t, 40.0, etrs.Z)
}
