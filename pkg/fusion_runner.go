package pkg

import (
	"context"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/config"
	"github.com/ecopia-map/geofuse/internal/fusion"
	"github.com/ecopia-map/geofuse/internal/raster"
	"github.com/ecopia-map/geofuse/pkg/algorithm_manager"
	"github.com/ecopia-map/geofuse/tools"
)

// FusionRunner drapes one satellite scene over the DEM of its region and exports the
// resulting cloud.
type FusionRunner struct {
	finisher
	fileFinder tools.FileFinder
}

func NewFusionRunner(fs afero.Fs, fileFinder tools.FileFinder, algorithmManager algorithm_manager.AlgorithmManager) IRunner {
	return &FusionRunner{
		finisher:   finisher{fs: fs, algorithmManager: algorithmManager},
		fileFinder: fileFinder,
	}
}

func (r *FusionRunner) Run(ctx context.Context, opts *config.Options) ([]Product, error) {
	tools.LogOutput("Processing scene", filepath.Base(opts.Input))

	glog.Infoln("> reading raster scene...", filepath.Base(opts.Input))
	scene, err := raster.NewImageSource(r.fs, opts.CRS, opts.Raster.Region, r.fileFinder).Read(opts.Input)
	if err != nil {
		return nil, err
	}
	grid, err := raster.Preprocess(scene.Grid)
	if err != nil {
		return nil, err
	}

	source, err := r.algorithmManager.GetElevationSource()
	if err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	glog.Infof("> querying elevation %q on %dx%d samples...", opts.Elevation.Variable, scene.Width, scene.Height)
	dem, err := source.Query(ctx, opts.Elevation.Variable, scene.Region, scene.Width, scene.Height)
	if err != nil {
		return nil, err
	}

	model, err := fusion.NewEngine(scene.CRS).Fuse(grid, dem)
	if err != nil {
		return nil, err
	}

	product, err := r.finish(model, opts, opts.Input, opts.OutputFor(opts.Input))
	if err != nil {
		return nil, err
	}
	glog.Infoln("> done processing", filepath.Base(opts.Input))
	return []Product{*product}, nil
}
