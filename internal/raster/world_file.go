package raster

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
)

// Sidecar extensions holding the six affine terms of an image
var worldFileExtensions = []string{".tfw", ".tifw", ".pgw", ".pngw", ".jgw", ".jpgw", ".wld"}

// Affine pixel-to-world transform as stored in an ESRI world file
type WorldFile struct {
	PixelSizeX float64 // A
	RotationY  float64 // D
	RotationX  float64 // B
	PixelSizeY float64 // E, negative for north-up images
	CenterX    float64 // C, x of the center of the upper left pixel
	CenterY    float64 // F, y of the center of the upper left pixel
}

func ReadWorldFile(fs afero.Fs, path string) (*WorldFile, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errs.IO(err, "raster: open world file %s", path)
	}
	defer f.Close()

	var terms []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, errs.IO(err, "raster: world file %s", path)
		}
		terms = append(terms, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.IO(err, "raster: read world file %s", path)
	}
	if len(terms) != 6 {
		return nil, errs.IO(nil, "raster: world file %s has %d terms, want 6", path, len(terms))
	}
	return &WorldFile{
		PixelSizeX: terms[0],
		RotationY:  terms[1],
		RotationX:  terms[2],
		PixelSizeY: terms[3],
		CenterX:    terms[4],
		CenterY:    terms[5],
	}, nil
}

// Region returns the outer edges of a width x height image. Rotated grids are rejected.
func (w *WorldFile) Region(width, height int) (geometry.Region, error) {
	if w.RotationX != 0 || w.RotationY != 0 {
		return geometry.Region{}, errs.IO(nil, "raster: rotated world files are not supported")
	}
	left := w.CenterX - w.PixelSizeX/2
	top := w.CenterY - w.PixelSizeY/2
	right := left + float64(width)*w.PixelSizeX
	bottom := top + float64(height)*w.PixelSizeY
	if bottom > top {
		bottom, top = top, bottom
	}
	return geometry.Region{Left: left, Right: right, Bottom: bottom, Top: top}, nil
}
