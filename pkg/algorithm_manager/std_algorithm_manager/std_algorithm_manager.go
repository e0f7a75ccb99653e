package std_algorithm_manager

import (
	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/config"
	"github.com/ecopia-map/geofuse/internal/converters"
	"github.com/ecopia-map/geofuse/internal/converters/elevation/offset_elevation_corrector"
	"github.com/ecopia-map/geofuse/internal/converters/geodesy_coordinate_converter"
	"github.com/ecopia-map/geofuse/internal/elevation"
	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/surface"
	"github.com/ecopia-map/geofuse/pkg/algorithm_manager"
)

type StandardAlgorithmManager struct {
	options             *config.Options
	fs                  afero.Fs
	coordinateConverter converters.CoordinateConverter
	elevationCorrector  converters.ElevationCorrector
}

func NewAlgorithmManager(opts *config.Options, fs afero.Fs) algorithm_manager.AlgorithmManager {
	return &StandardAlgorithmManager{
		options:            opts,
		fs:                 fs,
		elevationCorrector: offset_elevation_corrector.NewOffsetElevationCorrector(opts.Lidar.ZOffset),
	}
}

func (am *StandardAlgorithmManager) GetElevationCorrectionAlgorithm() converters.ElevationCorrector {
	return am.elevationCorrector
}

// GetCoordinateConverterAlgorithm returns the libproj backed converter when requested, the
// built in UTM/WGS84 one otherwise. The converter is created once and shared.
func (am *StandardAlgorithmManager) GetCoordinateConverterAlgorithm() (converters.CoordinateConverter, error) {
	if am.coordinateConverter != nil {
		return am.coordinateConverter, nil
	}
	if am.options.Lidar.Proj {
		c, err := newProjConverter()
		if err != nil {
			return nil, err
		}
		am.coordinateConverter = c
	} else {
		for _, name := range []string{am.options.CRS, am.options.Lidar.TargetCRS} {
			crs, err := converters.ParseCRS(name)
			if err != nil {
				return nil, err
			}
			if !geodesy_coordinate_converter.Supports(crs) {
				return nil, errs.Precondition("algorithm manager: %s needs the libproj converter, run with --proj", crs)
			}
		}
		am.coordinateConverter = geodesy_coordinate_converter.NewGeodesyCoordinateConverter()
	}
	return am.coordinateConverter, nil
}

// GetElevationSource returns the ESRI ASCII grid source when a path is configured, the
// authenticated zarr store otherwise.
func (am *StandardAlgorithmManager) GetElevationSource() (elevation.Source, error) {
	e := am.options.Elevation
	if e.Path != "" {
		glog.Infoln("> elevation from ascii grid", e.Path)
		return elevation.NewASCIIGridSource(am.fs, e.Path), nil
	}
	if e.URL == "" {
		return nil, errs.Precondition("algorithm manager: no elevation url or path configured")
	}
	if e.Token == "" {
		return nil, errs.Auth(nil, "algorithm manager: no token for %s", e.URL)
	}
	glog.Infoln("> elevation from zarr store", e.URL)
	return elevation.NewAuthenticatedZarrSource(e.URL, e.User, e.Token,
		elevation.WithCoordinateNames(e.XName, e.YName),
		elevation.WithFetchConcurrency(e.Concurrency),
	), nil
}

func (am *StandardAlgorithmManager) GetSurfaceReconstructor() *surface.Reconstructor {
	return surface.NewReconstructor(am.options.SurfaceOptions())
}
