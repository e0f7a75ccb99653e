//go:build proj

package std_algorithm_manager

import (
	"github.com/ecopia-map/geofuse/internal/converters"
	"github.com/ecopia-map/geofuse/internal/converters/proj4_coordinate_converter"
)

func newProjConverter() (converters.CoordinateConverter, error) {
	return proj4_coordinate_converter.NewProj4CoordinateConverter(), nil
}
