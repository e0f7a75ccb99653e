package elevation

import (
	"bufio"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
)

func TestLinspace(t *testing.T) {
	assert.Nil(t, Linspace(0, 1, 0))
	assert.Equal(t, []float64{3}, Linspace(3, 9, 1))
	assert.Equal(t, []float64{0, 2.5, 5, 7.5, 10}, Linspace(0, 10, 5))
	assert.Equal(t, []float64{10, 5, 0}, Linspace(10, 0, 3))
}

func TestNearestIndices(t *testing.T) {
	ascending := []float64{0, 10, 20, 30}
	assert.Equal(t, []int{0, 0, 1, 1, 3, 3}, NearestIndices(ascending, []float64{-5, 4, 6, 10, 29, 100}))
	// ties resolve to the larger coordinate
	assert.Equal(t, []int{1, 3}, NearestIndices(ascending, []float64{5, 25}))

	descending := []float64{30, 20, 10, 0}
	assert.Equal(t, []int{3, 2, 0, 0}, NearestIndices(descending, []float64{-1, 12, 31, 26}))
	assert.Equal(t, []int{2}, NearestIndices(descending, []float64{5}))

	assert.Equal(t, []int{0, 0}, NearestIndices([]float64{7}, []float64{-3, 99}))
}

const asciiGrid = `ncols 4
nrows 3
xllcorner 100
yllcorner 200
cellsize 10
NODATA_value -9999
 1  2  3  4
 5  6 -9999 8
 9 10 11 12
`

func TestParseEsriASCIIRaster(t *testing.T) {
	raster, err := ParseEsriASCIIRaster(bufio.NewScanner(strings.NewReader(asciiGrid)))
	require.NoError(t, err)
	assert.Equal(t, 4, raster.Ncols)
	assert.Equal(t, 3, raster.Nrows)
	assert.Equal(t, 105.0, raster.X(0))
	assert.Equal(t, 225.0, raster.Y(0))
	assert.Equal(t, 205.0, raster.Y(2))
	assert.True(t, math.IsNaN(raster.Data[1][2]))
	assert.Equal(t, 12.0, raster.Data[2][3])

	_, err = ParseEsriASCIIRaster(bufio.NewScanner(strings.NewReader("ncols 2\nnrows 2\ncellsize 1\n1 2 3 4\n")))
	assert.True(t, errors.Is(err, errs.ErrIO), "missing origin")

	_, err = ParseEsriASCIIRaster(bufio.NewScanner(strings.NewReader("ncols 2\nnrows 2\nxllcenter 0\nyllcenter 0\ncellsize 1\n1 2 3\n")))
	assert.True(t, errors.Is(err, errs.ErrIO), "short body")
}

func TestASCIIGridSourceQuery(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dem.asc", []byte(asciiGrid), 0o644))

	source := NewASCIIGridSource(fs, "/dem.asc")
	region := geometry.Region{Left: 105, Right: 135, Bottom: 205, Top: 225}
	grid, err := source.Query(context.Background(), "dem", region, 4, 3)
	require.NoError(t, err)

	// row 0 of the result is the southern edge
	assert.Equal(t, []float64{9, 10, 11, 12}, grid.Values[:4])
	assert.Equal(t, 5.0, grid.At(1, 0))
	assert.True(t, math.IsNaN(grid.At(1, 2)))
	assert.Equal(t, []float64{1, 2, 3, 4}, grid.Values[8:])

	_, err = NewASCIIGridSource(fs, "/missing.asc").Query(context.Background(), "dem", region, 4, 3)
	assert.True(t, errors.Is(err, errs.ErrIO))

	_, err = source.Query(context.Background(), "dem", region, 0, 3)
	assert.True(t, errors.Is(err, errs.ErrPrecondition))
}
