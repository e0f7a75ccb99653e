//go:build proj

package proj4_coordinate_converter

import (
	"math"
	"sync"

	"github.com/golang/glog"
	proj "github.com/xeonx/proj4"

	"github.com/ecopia-map/geofuse/internal/converters"
	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
)

const toRadians = math.Pi / 180
const toDegrees = 180 / math.Pi

// Converts coordinates through PROJ.4. Projections are initialized once per definition and
// released by Cleanup.
type Proj4CoordinateConverter struct {
	projections map[string]*proj.Proj
	sync.Mutex
}

func NewProj4CoordinateConverter() converters.CoordinateConverter {
	return &Proj4CoordinateConverter{
		projections: make(map[string]*proj.Proj),
	}
}

func (c *Proj4CoordinateConverter) ConvertCoordinateSrid(source, target converters.CRS, coord geometry.Coordinate) (geometry.Coordinate, error) {
	out, err := c.ConvertCoordinates(source, target, []geometry.Coordinate{coord})
	if err != nil {
		return geometry.Coordinate{}, err
	}
	return out[0], nil
}

// Transforms all coordinates in one PROJ call. Geographic systems are exchanged in degrees with
// longitude first; heights are not transformed.
func (c *Proj4CoordinateConverter) ConvertCoordinates(source, target converters.CRS, coords []geometry.Coordinate) ([]geometry.Coordinate, error) {
	c.Lock()
	defer c.Unlock()

	src, err := c.getProjection(source)
	if err != nil {
		return nil, err
	}
	dst, err := c.getProjection(target)
	if err != nil {
		return nil, err
	}

	x := make([]float64, len(coords))
	y := make([]float64, len(coords))
	z := make([]float64, len(coords))
	for i, coord := range coords {
		x[i], y[i] = coord.X, coord.Y
		if src.IsLatLong() {
			x[i] *= toRadians
			y[i] *= toRadians
		}
	}

	if err := proj.TransformRaw(src, dst, x, y, z); err != nil {
		return nil, errs.Precondition("converters: transform %s to %s: %v", source, target, err)
	}

	out := make([]geometry.Coordinate, len(coords))
	for i := range coords {
		if dst.IsLatLong() {
			x[i] *= toDegrees
			y[i] *= toDegrees
		}
		out[i] = geometry.Coordinate{X: x[i], Y: y[i], Z: coords[i].Z}
	}
	return out, nil
}

// Releases all the PROJ objects
func (c *Proj4CoordinateConverter) Cleanup() {
	c.Lock()
	defer c.Unlock()
	for key, p := range c.projections {
		p.Close()
		delete(c.projections, key)
	}
}

func (c *Proj4CoordinateConverter) getProjection(crs converters.CRS) (*proj.Proj, error) {
	definition := crs.Proj4()
	if p, ok := c.projections[definition]; ok {
		return p, nil
	}
	p, err := proj.InitPlus(definition)
	if err != nil {
		return nil, errs.Precondition("converters: init projection %s: %v", crs, err)
	}
	glog.V(2).Infof("> initialized projection %s", definition)
	c.projections[definition] = p
	return p, nil
}
