package las

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/geofuse/internal/data"
	"github.com/ecopia-map/geofuse/internal/errs"
)

func samplePoints() []data.Point {
	return []data.Point{
		{X: 500000.125, Y: 5000000.5, Z: 120.25, Intensity: 10, Classification: 2, ReturnNumber: 1, R: 65535, G: 0, B: 256},
		{X: 500010.875, Y: 5000003.25, Z: 135.5, Intensity: 20, Classification: 6, ReturnNumber: 2, R: 1024, G: 2048, B: 4096},
		{X: 499990.001, Y: 4999999.999, Z: -3.75, Intensity: 30, Classification: 9, ReturnNumber: 1},
	}
}

func assertSamePoints(t *testing.T, want, got []data.Point, withColor bool) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].X, got[i].X, 2e-3)
		assert.InDelta(t, want[i].Y, got[i].Y, 2e-3)
		assert.InDelta(t, want[i].Z, got[i].Z, 2e-3)
		assert.Equal(t, want[i].Intensity, got[i].Intensity)
		assert.Equal(t, want[i].Classification, got[i].Classification)
		assert.Equal(t, want[i].ReturnNumber, got[i].ReturnNumber)
		if withColor {
			assert.Equal(t, [3]uint16{want[i].R, want[i].G, want[i].B}, [3]uint16{got[i].R, got[i].G, got[i].B})
		} else {
			assert.Equal(t, [3]uint16{}, [3]uint16{got[i].R, got[i].G, got[i].B})
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := afero.NewOsFs()
	path := filepath.Join(t.TempDir(), "cloud.las")
	require.NoError(t, WriteFile(fs, path, samplePoints(), WriterOptions{PointFormat: 2, SystemIdentifier: "EPSG:32632"}))

	lf, err := Open(fs, path)
	require.NoError(t, err)
	h := lf.Header
	assert.Equal(t, uint8(1), h.VersionMajor)
	assert.Equal(t, "EPSG:32632", h.SystemIdentifier)
	assert.True(t, h.HasColor())
	assert.Equal(t, uint64(3), h.NumberOfPoints)
	for axis, want := range [3]float64{499990.001, 4999999.999, -3.75} {
		assert.InDelta(t, want, h.Min[axis], 2e-3)
	}
	for axis, want := range [3]float64{500010.875, 5000003.25, 135.5} {
		assert.InDelta(t, want, h.Max[axis], 2e-3)
	}
	assertSamePoints(t, samplePoints(), lf.Points, true)
}

func TestFormatZeroHasNoColor(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteFile(fs, "/cloud.las", samplePoints(), WriterOptions{PointFormat: 0}))

	lf, err := Open(fs, "/cloud.las")
	require.NoError(t, err)
	assert.False(t, lf.Header.HasColor())
	assertSamePoints(t, samplePoints(), lf.Points, false)
}

func TestOpenAndWriteFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteFile(fs, "/out/cloud.las", samplePoints(), WriterOptions{PointFormat: 2}))

	lf, err := Open(fs, "/out/cloud.las")
	require.NoError(t, err)
	assertSamePoints(t, samplePoints(), lf.Points, true)

	_, err = Open(fs, "/out/missing.las")
	assert.True(t, errors.Is(err, errs.ErrIO))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestOpenMalformed(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteFile(fs, "/good.las", samplePoints(), WriterOptions{PointFormat: 2}))
	raw, err := afero.ReadFile(fs, "/good.las")
	require.NoError(t, err)

	le := binary.LittleEndian
	cases := map[string]func([]byte) []byte{
		"short": func(b []byte) []byte { return b[:4] },
		"signature": func(b []byte) []byte {
			copy(b, "PLY!")
			return b
		},
		"truncated": func(b []byte) []byte { return b[:len(b)-5] },
		"laz": func(b []byte) []byte {
			b[104] |= 0x80
			return b
		},
		"format": func(b []byte) []byte {
			b[104] = 7
			return b
		},
		"scale": func(b []byte) []byte {
			le.PutUint64(b[131:], 0)
			return b
		},
		"point count": func(b []byte) []byte {
			le.PutUint32(b[107:], math.MaxUint32)
			return b
		},
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			b := corrupt(append([]byte(nil), raw...))
			require.NoError(t, afero.WriteFile(fs, "/bad.las", b, 0o644))
			_, err := Open(fs, "/bad.las")
			assert.True(t, errors.Is(err, errs.ErrIO), "%v", err)
		})
	}
}

// A LAS 1.4 header declaring 2^63 points must be rejected before any allocation.
func TestOpenHugePointCount(t *testing.T) {
	le := binary.LittleEndian
	b := make([]byte, extendedHeaderSize+20)
	copy(b, signature)
	b[24], b[25] = 1, 4
	le.PutUint16(b[94:], extendedHeaderSize)
	le.PutUint32(b[96:], extendedHeaderSize)
	b[104] = 0
	le.PutUint16(b[105:], 20)
	for axis := 0; axis < 3; axis++ {
		le.PutUint64(b[131+8*axis:], math.Float64bits(0.01))
	}
	le.PutUint64(b[247:], 1<<63)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/huge.las", b, 0o644))
	assert.NotPanics(t, func() {
		_, err := Open(fs, "/huge.las")
		assert.True(t, errors.Is(err, errs.ErrIO), "%v", err)
	})
}

func TestWriterRejectsUnsupportedInput(t *testing.T) {
	fs := afero.NewMemMapFs()
	err := WriteFile(fs, "/x.las", samplePoints(), WriterOptions{PointFormat: 6})
	assert.True(t, errors.Is(err, errs.ErrPrecondition))

	far := []data.Point{{X: 0}, {X: math.MaxInt32}}
	err = WriteFile(fs, "/x.las", far, WriterOptions{PointFormat: 0, Scale: 0.001})
	assert.True(t, errors.Is(err, errs.ErrPrecondition))

	exists, _ := afero.Exists(fs, "/x.las")
	assert.False(t, exists)
}
