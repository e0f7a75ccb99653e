package quicklook

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
)

func grid(n int) [][3]float64 {
	var positions [][3]float64
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			positions = append(positions, [3]float64{float64(x), float64(y), float64(x + y)})
		}
	}
	return positions
}

func TestRenderColoredPNG(t *testing.T) {
	fs := afero.NewMemMapFs()
	positions := grid(20)
	colors := make([][3]float64, len(positions))
	for i := range colors {
		colors[i] = [3]float64{float64(i % 256), 40, 200}
	}
	pc, err := pointcloud.NewColored("EPSG:32632", positions, colors, pointcloud.ColorSpaceByte)
	require.NoError(t, err)

	require.NoError(t, Render(fs, pc, "/out/preview.png", Options{Title: "scene", Size: 2, MaxPoints: 100}))
	b, err := afero.ReadFile(fs, "/out/preview.png")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestRenderByElevation(t *testing.T) {
	fs := afero.NewMemMapFs()
	pc := pointcloud.New("EPSG:32632", grid(5))
	require.NoError(t, Render(fs, pc, "/preview.svg", DefaultOptions()))
	b, err := afero.ReadFile(fs, "/preview.svg")
	require.NoError(t, err)
	assert.Contains(t, string(b), "<svg")

	flat := pointcloud.New("EPSG:32632", [][3]float64{{0, 0, 1}, {1, 1, 1}})
	assert.NoError(t, Render(fs, flat, "/flat.png", DefaultOptions()))
}

func TestRenderFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	err := Render(fs, pointcloud.New("EPSG:4326", nil), "/x.png", DefaultOptions())
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	err = Render(fs, pointcloud.New("EPSG:4326", grid(2)), "/x.bmp", DefaultOptions())
	assert.True(t, errors.Is(err, errs.ErrIO))
}
