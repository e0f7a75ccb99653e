package pkg

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/config"
	"github.com/ecopia-map/geofuse/internal/converters"
	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/lidar"
	"github.com/ecopia-map/geofuse/pkg/algorithm_manager"
	"github.com/ecopia-map/geofuse/tools"
)

// LidarRunner ingests LAS files one at a time, reprojects and colors every return, then
// exports one cloud per file.
type LidarRunner struct {
	finisher
	fileFinder tools.FileFinder
}

func NewLidarRunner(fs afero.Fs, fileFinder tools.FileFinder, algorithmManager algorithm_manager.AlgorithmManager) IRunner {
	return &LidarRunner{
		finisher:   finisher{fs: fs, algorithmManager: algorithmManager},
		fileFinder: fileFinder,
	}
}

func (r *LidarRunner) Run(ctx context.Context, opts *config.Options) ([]Product, error) {
	glog.Infoln("Preparing list of files to process...")
	lasFiles, err := r.fileFinder.GetFilesToProcess(opts.Input, opts.Folder, opts.Recursive, ".las")
	if err != nil {
		return nil, errs.IO(err, "lidar runner: list %s", opts.Input)
	}
	if len(lasFiles) == 0 {
		return nil, errs.IO(nil, "lidar runner: no las files under %s", opts.Input)
	}
	for i, filePath := range lasFiles {
		glog.Infof("las_file path %d [%s]", i+1, filePath)
	}

	source, err := converters.ParseCRS(opts.CRS)
	if err != nil {
		return nil, err
	}
	target, err := converters.ParseCRS(opts.Lidar.TargetCRS)
	if err != nil {
		return nil, err
	}
	converter, err := r.algorithmManager.GetCoordinateConverterAlgorithm()
	if err != nil {
		return nil, err
	}
	defer converter.Cleanup()

	engineOpts := []lidar.Option{
		lidar.WithElevationCorrector(r.algorithmManager.GetElevationCorrectionAlgorithm()),
		lidar.WithOverflowPolicy(lidar.ParseOverflowPolicy(opts.Lidar.Overflow)),
	}
	if opts.Lidar.EmbeddedColors {
		engineOpts = append(engineOpts, lidar.WithEmbeddedColors(opts.Lidar.EightBitColors))
	}

	products := make([]Product, 0, len(lasFiles))
	for i, filePath := range lasFiles {
		if err := ctx.Err(); err != nil {
			return products, errs.IO(err, "lidar runner: interrupted before %s", filePath)
		}
		tools.LogOutput("Processing file " + strconv.Itoa(i+1) + "/" + strconv.Itoa(len(lasFiles)))

		product, err := r.processLasFile(filePath, opts, lidar.NewEngine(r.fs, converter, engineOpts...), source, target)
		if err != nil {
			return products, err
		}
		products = append(products, *product)
	}
	return products, nil
}

func (r *LidarRunner) processLasFile(filePath string, opts *config.Options, engine *lidar.Engine, source, target converters.CRS) (*Product, error) {
	table, err := engine.Ingest(filePath)
	if err != nil {
		return nil, err
	}
	model, err := engine.Reproject(table, source, target)
	if err != nil {
		return nil, err
	}
	model, err = engine.Colorize(model, table)
	if err != nil {
		return nil, err
	}

	product, err := r.finish(model, opts, filePath, opts.OutputFor(filePath))
	if err != nil {
		return nil, err
	}
	glog.Infoln("> done processing", filepath.Base(filePath))
	return product, nil
}
