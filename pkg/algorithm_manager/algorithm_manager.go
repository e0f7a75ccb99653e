package algorithm_manager

import (
	"github.com/ecopia-map/geofuse/internal/converters"
	"github.com/ecopia-map/geofuse/internal/elevation"
	"github.com/ecopia-map/geofuse/internal/surface"
)

// AlgorithmManager hands the pipelines the interchangeable parts selected by the options.
type AlgorithmManager interface {
	GetElevationCorrectionAlgorithm() converters.ElevationCorrector
	GetCoordinateConverterAlgorithm() (converters.CoordinateConverter, error)
	GetElevationSource() (elevation.Source, error)
	GetSurfaceReconstructor() *surface.Reconstructor
}
