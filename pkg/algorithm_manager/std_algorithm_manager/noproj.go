//go:build !proj

package std_algorithm_manager

import (
	"github.com/ecopia-map/geofuse/internal/converters"
	"github.com/ecopia-map/geofuse/internal/errs"
)

func newProjConverter() (converters.CoordinateConverter, error) {
	return nil, errs.Precondition("algorithm manager: built without libproj, rebuild with -tags proj")
}
