// Package fusion drapes a preprocessed raster over an elevation grid, producing one
// colored point per pixel.
package fusion

import (
	"math"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"

	"github.com/ecopia-map/geofuse/internal/elevation"
	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
	"github.com/ecopia-map/geofuse/internal/raster"
)

type Engine struct {
	crs string
}

// NewEngine builds an engine tagging its output with crs, the CRS of both inputs.
func NewEngine(crs string) *Engine {
	return &Engine{crs: crs}
}

// Fuse emits points in raster row-major order: point row*W+col sits at
// (X[col], Y[row], elevation[row][col]) and carries the pixel color at the same index.
func (e *Engine) Fuse(grid *raster.Grid, dem *elevation.Grid) (*pointcloud.PointCloud, error) {
	if grid == nil || dem == nil {
		return nil, errs.InvalidState("fusion: raster and elevation must be loaded")
	}
	if !grid.IsPreprocessed() {
		return nil, errs.Precondition("fusion: raster must be band-last and flipped before fusion")
	}
	if len(dem.X) != grid.Width || len(dem.Y) != grid.Height {
		return nil, errs.Precondition("fusion: elevation axes %dx%d do not match raster %dx%d",
			len(dem.X), len(dem.Y), grid.Width, grid.Height)
	}
	if dem.Len() != grid.PixelCount() {
		return nil, errs.Precondition("fusion: %d elevation samples for %d pixels", dem.Len(), grid.PixelCount())
	}
	if grid.Bands < 1 {
		return nil, errs.Precondition("fusion: raster has no bands")
	}

	n := grid.PixelCount()
	positions := make([][3]float64, n)
	colors := make([][3]float64, n)
	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			i := row*grid.Width + col
			z := dem.At(row, col)
			if math.IsNaN(z) || math.IsInf(z, 0) {
				return nil, errs.Precondition("fusion: no elevation at row %d col %d", row, col)
			}
			positions[i] = [3]float64{dem.X[col], dem.Y[row], z}
			colors[i] = grid.Color(i)
		}
	}

	glog.Infof("> fused %s points", humanize.Comma(int64(n)))
	return pointcloud.NewColored(e.crs, positions, colors, pointcloud.ColorSpaceByte)
}
