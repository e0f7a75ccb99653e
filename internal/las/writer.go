package las

import (
	"math"

	"github.com/jblindsay/lidario"
	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/data"
	"github.com/ecopia-map/geofuse/internal/errs"
)

const defaultScale = 0.001

type WriterOptions struct {
	// Point format 0 (no color) or 2 (RGB)
	PointFormat uint8
	// Coordinate resolution, defaults to millimeters
	Scale float64
	// Resolution of X and Y when it differs from Z, e.g. 1e-7 for degrees
	XYScale float64
	// Optional system identifier stored in the header
	SystemIdentifier string
}

// WriteFile writes points to path on fs. Offsets are taken from the point minimum so that the
// scaled integers stay small.
func WriteFile(fs afero.Fs, path string, points []data.Point, opts WriterOptions) error {
	if opts.PointFormat != 0 && opts.PointFormat != 2 {
		return errs.Precondition("las: writer supports point formats 0 and 2, got %d", opts.PointFormat)
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = defaultScale
	}
	xyScale := opts.XYScale
	if xyScale <= 0 {
		xyScale = scale
	}
	scales := [3]float64{xyScale, xyScale, scale}

	min, max := extent(points)
	var offset [3]float64
	for axis := 0; axis < 3; axis++ {
		offset[axis] = math.Floor(min[axis])
		for _, v := range [2]float64{min[axis], max[axis]} {
			if scaled := (v - offset[axis]) / scales[axis]; scaled > math.MaxInt32 || scaled < math.MinInt32 {
				return errs.Precondition("las: coordinate %g does not fit the range of axis %d at scale %g", v, axis, scales[axis])
			}
		}
	}

	local, publish, err := stageOut(fs, path)
	if err != nil {
		return err
	}
	out, err := lidario.NewLasFile(local, "w")
	if err != nil {
		return errs.IO(err, "las: create %s", path)
	}

	var header lidario.LasHeader
	header.PointFormatID = opts.PointFormat
	header.SystemID = opts.SystemIdentifier
	header.XScaleFactor, header.YScaleFactor, header.ZScaleFactor = scales[0], scales[1], scales[2]
	header.XOffset, header.YOffset, header.ZOffset = offset[0], offset[1], offset[2]
	header.MinX, header.MinY, header.MinZ = min[0], min[1], min[2]
	header.MaxX, header.MaxY, header.MaxZ = max[0], max[1], max[2]
	if err := out.AddHeader(header); err != nil {
		out.Close()
		return errs.IO(err, "las: header of %s", path)
	}

	for i := range points {
		if err := out.AddLasPoint(record(&points[i], opts.PointFormat)); err != nil {
			out.Close()
			return errs.IO(err, "las: point %d of %s", i, path)
		}
	}
	if err := out.Close(); err != nil {
		return errs.IO(err, "las: write %s", path)
	}
	return publish()
}

func record(p *data.Point, format uint8) lidario.LasPointer {
	base := &lidario.PointRecord0{
		X:         p.X,
		Y:         p.Y,
		Z:         p.Z,
		Intensity: p.Intensity,
		// single return unless the point says otherwise
		BitField:      lidario.PointBitField{Value: p.ReturnNumber&0x07 | 1<<3},
		ClassBitField: lidario.ClassificationBitField{Value: p.Classification & 0x1F},
	}
	if format == 0 {
		return base
	}
	return &lidario.PointRecord2{
		PointRecord0: base,
		RGB:          &lidario.RgbData{Red: p.R, Green: p.G, Blue: p.B},
	}
}

func extent(points []data.Point) (min, max [3]float64) {
	if len(points) == 0 {
		return
	}
	min = [3]float64{points[0].X, points[0].Y, points[0].Z}
	max = min
	for _, p := range points[1:] {
		for axis, v := range [3]float64{p.X, p.Y, p.Z} {
			min[axis] = math.Min(min[axis], v)
			max[axis] = math.Max(max[axis], v)
		}
	}
	return
}
