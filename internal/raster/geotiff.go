package raster

import (
	"fmt"
	"math"

	"github.com/google/tiff"

	"github.com/ecopia-map/geofuse/internal/geometry"
)

// GeoTIFF tags and keys
const (
	tagModelPixelScale    = 33550
	tagModelTiepoint      = 33922
	tagModelTransform     = 34264
	tagGeoKeyDirectory    = 34735
	keyRasterType         = 1025
	keyGeographicType     = 2048
	keyProjectedType      = 3072
	rasterPixelIsPoint    = 2
	userDefinedGeoKeyCode = 32767
)

// georeferencing carried by the model tags of a GeoTIFF
type geoTIFF struct {
	region geometry.Region
	crs    string
}

// readGeoTIFF returns nil when the first image directory has no model tags.
func readGeoTIFF(r tiff.ReadAtReadSeeker, width, height int) (*geoTIFF, error) {
	t, err := tiff.Parse(r, nil, nil)
	if err != nil {
		return nil, err
	}
	ifds := t.IFDs()
	if len(ifds) == 0 {
		return nil, nil
	}
	ifd := ifds[0]

	keys := geoKeys(ifd)
	var x0, y0, sx, sy float64
	switch {
	case ifd.HasField(tagModelPixelScale) && ifd.HasField(tagModelTiepoint):
		scale := doubles(ifd.GetField(tagModelPixelScale))
		tiepoint := doubles(ifd.GetField(tagModelTiepoint))
		if len(scale) < 2 || len(tiepoint) < 6 {
			return nil, fmt.Errorf("short model tags: %d scale and %d tiepoint values", len(scale), len(tiepoint))
		}
		sx, sy = scale[0], scale[1]
		// raster (I, J) maps to model (X, Y)
		x0 = tiepoint[3] - tiepoint[0]*sx
		y0 = tiepoint[4] + tiepoint[1]*sy
	case ifd.HasField(tagModelTransform):
		m := doubles(ifd.GetField(tagModelTransform))
		if len(m) < 16 {
			return nil, fmt.Errorf("model transformation has %d values, want 16", len(m))
		}
		if m[1] != 0 || m[4] != 0 {
			return nil, fmt.Errorf("rotated model transformations are not supported")
		}
		sx, sy = m[0], -m[5]
		x0, y0 = m[3], m[7]
	default:
		return &geoTIFF{crs: crsOf(keys)}, nil
	}
	if sx <= 0 || sy <= 0 || math.IsNaN(sx) || math.IsNaN(sy) {
		return nil, fmt.Errorf("invalid pixel scale %g x %g", sx, sy)
	}

	if keys[keyRasterType] == rasterPixelIsPoint {
		x0 -= sx / 2
		y0 += sy / 2
	}
	return &geoTIFF{
		region: geometry.Region{
			Left:   x0,
			Right:  x0 + float64(width)*sx,
			Bottom: y0 - float64(height)*sy,
			Top:    y0,
		},
		crs: crsOf(keys),
	}, nil
}

func crsOf(keys map[uint16]uint16) string {
	for _, key := range []uint16{keyProjectedType, keyGeographicType} {
		if code, ok := keys[key]; ok && code != 0 && code != userDefinedGeoKeyCode {
			return fmt.Sprintf("EPSG:%d", code)
		}
	}
	return ""
}

// geoKeys returns the short valued keys of the GeoKeyDirectory.
func geoKeys(ifd tiff.IFD) map[uint16]uint16 {
	keys := map[uint16]uint16{}
	if !ifd.HasField(tagGeoKeyDirectory) {
		return keys
	}
	v := shorts(ifd.GetField(tagGeoKeyDirectory))
	if len(v) < 4 {
		return keys
	}
	for i := 0; i < int(v[3]) && 4+4*i+3 < len(v); i++ {
		entry := v[4+4*i:]
		// location 0 means the value is stored in the entry itself
		if entry[1] == 0 {
			keys[entry[0]] = entry[3]
		}
	}
	return keys
}

func doubles(f tiff.Field) []float64 {
	b, order := f.Value().Bytes(), f.Value().Order()
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(order.Uint64(b[8*i:]))
	}
	return out
}

func shorts(f tiff.Field) []uint16 {
	b, order := f.Value().Bytes(), f.Value().Order()
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = order.Uint16(b[2*i:])
	}
	return out
}
