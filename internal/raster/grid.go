package raster

import (
	"github.com/ecopia-map/geofuse/internal/errs"
)

type Layout string

const (
	// Bands x Height x Width, as decoders deliver a scene
	BandFirst Layout = "BAND_FIRST"
	// Height x Width x Bands, the layout fusion consumes
	BandLast Layout = "BAND_LAST"
)

// Grid is a dense multi band raster of pixel intensities.
type Grid struct {
	Width   int
	Height  int
	Bands   int
	Layout  Layout
	Flipped bool
	Data    []float64
}

// NewBandFirstGrid allocates a zeroed band-first grid.
func NewBandFirstGrid(width, height, bands int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Bands:  bands,
		Layout: BandFirst,
		Data:   make([]float64, width*height*bands),
	}
}

func (g *Grid) PixelCount() int {
	return g.Width * g.Height
}

func (g *Grid) index(row, col, band int) int {
	if g.Layout == BandLast {
		return (row*g.Width+col)*g.Bands + band
	}
	return band*g.Width*g.Height + row*g.Width + col
}

func (g *Grid) At(row, col, band int) float64 {
	return g.Data[g.index(row, col, band)]
}

func (g *Grid) Set(row, col, band int, v float64) {
	g.Data[g.index(row, col, band)] = v
}

// IsPreprocessed reports whether the grid is band-last and vertically flipped.
func (g *Grid) IsPreprocessed() bool {
	return g.Layout == BandLast && g.Flipped
}

// Preprocess returns the band-last, vertically mirrored copy of a freshly read grid.
// Row 0 of the result is the southernmost image row.
func Preprocess(g *Grid) (*Grid, error) {
	if g == nil {
		return nil, errs.InvalidState("raster: no grid loaded")
	}
	if g.Flipped || g.Layout == BandLast {
		return nil, errs.InvalidState("raster: grid already preprocessed")
	}
	if len(g.Data) != g.Width*g.Height*g.Bands {
		return nil, errs.Precondition("raster: %d samples for %dx%dx%d grid", len(g.Data), g.Bands, g.Height, g.Width)
	}

	out := &Grid{
		Width:   g.Width,
		Height:  g.Height,
		Bands:   g.Bands,
		Layout:  BandLast,
		Flipped: true,
		Data:    make([]float64, len(g.Data)),
	}
	for row := 0; row < g.Height; row++ {
		src := g.Height - 1 - row
		for col := 0; col < g.Width; col++ {
			for band := 0; band < g.Bands; band++ {
				out.Set(row, col, band, g.At(src, col, band))
			}
		}
	}
	return out, nil
}

// Color returns the RGB triple at a flat row-major pixel index. Grids with fewer
// than three bands replicate band 0.
func (g *Grid) Color(pixel int) [3]float64 {
	row, col := pixel/g.Width, pixel%g.Width
	if g.Bands < 3 {
		v := g.At(row, col, 0)
		return [3]float64{v, v, v}
	}
	return [3]float64{g.At(row, col, 0), g.At(row, col, 1), g.At(row, col, 2)}
}
