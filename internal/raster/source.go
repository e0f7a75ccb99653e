// Package raster reads georeferenced satellite scenes into dense grids and
// prepares them for fusion with an elevation model.
package raster

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
	"github.com/ecopia-map/geofuse/tools"
)

// Scene is a raster read from disk together with its georeferencing.
type Scene struct {
	Grid   *Grid
	Region geometry.Region
	Width  int
	Height int
	CRS    string
}

type Source interface {
	Read(path string) (*Scene, error)
}

// ImageSource decodes PNG, JPEG, TIFF, BMP and WebP scenes. Scenes are georeferenced by an
// explicit region, by the GeoTIFF model tags or by a world file, in this order.
type ImageSource struct {
	fs         afero.Fs
	crs        string
	region     geometry.Region
	fileFinder tools.FileFinder
}

// NewImageSource builds a source reading from fs and tagging scenes with crs. An empty crs is
// taken from the GeoTIFF keys when the scene has them.
func NewImageSource(fs afero.Fs, crs string, region geometry.Region, fileFinder tools.FileFinder) *ImageSource {
	return &ImageSource{
		fs:         fs,
		crs:        crs,
		region:     region,
		fileFinder: fileFinder,
	}
}

func (s *ImageSource) Read(path string) (*Scene, error) {
	b, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, errs.IO(err, "raster: open %s", path)
	}

	img, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, errs.IO(err, "raster: decode %s", path)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, errs.IO(nil, "raster: %s is empty", path)
	}

	crs := s.crs
	var tags *geoTIFF
	if format == "tiff" {
		if tags, err = readGeoTIFF(bytes.NewReader(b), width, height); err != nil {
			return nil, errs.IO(err, "raster: geotiff tags of %s", path)
		}
		if tags != nil && crs == "" {
			crs = tags.crs
		}
	}
	region, err := s.georeference(path, width, height, tags)
	if err != nil {
		return nil, err
	}

	grid := decodeGrid(img)
	glog.Infof("> read %s scene %s: %dx%d pixels, %d bands", format, filepath.Base(path), width, height, grid.Bands)

	return &Scene{
		Grid:   grid,
		Region: region,
		Width:  width,
		Height: height,
		CRS:    crs,
	}, nil
}

func (s *ImageSource) georeference(path string, width, height int, tags *geoTIFF) (geometry.Region, error) {
	if !s.region.IsZero() {
		if err := s.region.Validate(); err != nil {
			return geometry.Region{}, errs.Precondition("raster: %v", err)
		}
		return s.region, nil
	}
	if tags != nil && !tags.region.IsZero() {
		glog.V(2).Infof("georeferenced %s from its GeoTIFF tags", path)
		return tags.region, nil
	}
	worldFilePath, ok := s.fileFinder.FindSidecar(path, worldFileExtensions...)
	if !ok {
		return geometry.Region{}, errs.IO(nil, "raster: %s has no georeferencing tags, no world file and no region was configured", path)
	}
	worldFile, err := ReadWorldFile(s.fs, worldFilePath)
	if err != nil {
		return geometry.Region{}, err
	}
	return worldFile.Region(width, height)
}

// decodeGrid copies pixel intensities into a band-first grid. Grayscale images yield one band,
// everything else three. Sixteen bit channels are reduced to their high byte.
func decodeGrid(img image.Image) *Grid {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	bands := 3
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		bands = 1
	}

	grid := NewBandFirstGrid(width, height, bands)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			r, g, b, _ := img.At(bounds.Min.X+col, bounds.Min.Y+row).RGBA()
			grid.Set(row, col, 0, float64(r>>8))
			if bands == 3 {
				grid.Set(row, col, 1, float64(g>>8))
				grid.Set(row, col, 2, float64(b>>8))
			}
		}
	}
	return grid
}
