package las

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/jblindsay/lidario"
	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/data"
	"github.com/ecopia-map/geofuse/internal/errs"
)

type File struct {
	Header *Header
	Points []data.Point
}

// Open reads a whole LAS file from fs. Coordinates are scaled and offset into file CRS units.
func Open(fs afero.Fs, path string) (*File, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errs.IO(err, "las: open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.IO(err, "las: stat %s", path)
	}
	err = checkHeader(f, info.Size())
	f.Close()
	if err != nil {
		return nil, withPath(err, path)
	}

	local, cleanup, err := stageIn(fs, path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	lf, err := read(local)
	if err != nil {
		return nil, withPath(err, path)
	}
	glog.Infof("> read %s: LAS %d.%d, format %d, %s points",
		filepath.Base(path), lf.Header.VersionMajor, lf.Header.VersionMinor, lf.Header.PointFormat,
		humanize.Comma(int64(len(lf.Points))))
	return lf, nil
}

func withPath(err error, path string) error {
	if errs.Kind(err) != nil {
		return err
	}
	return errs.IO(err, "las: read %s", path)
}

// lidario panics on some malformed records
func read(path string) (lf *File, err error) {
	defer func() {
		if r := recover(); r != nil {
			lf, err = nil, errs.IO(fmt.Errorf("%v", r), "las: decode")
		}
	}()

	in, err := lidario.NewLasFile(path, "r")
	if err != nil {
		return nil, errs.IO(err, "las: decode")
	}
	defer in.Close()

	h := headerOf(&in.Header)
	points := make([]data.Point, int(in.Header.NumberPoints))
	for i := range points {
		record, err := in.LasPoint(i)
		if err != nil {
			return nil, errs.IO(err, "las: point %d", i)
		}
		pd := record.PointData()
		points[i] = data.Point{
			X:              pd.X,
			Y:              pd.Y,
			Z:              pd.Z,
			Intensity:      uint16(pd.Intensity),
			ReturnNumber:   uint8(pd.BitField.Value & 0x07),
			Classification: uint8(pd.ClassBitField.Value & 0x1F),
		}
		if h.HasColor() {
			if rgb := record.RgbData(); rgb != nil {
				points[i].R = uint16(rgb.Red)
				points[i].G = uint16(rgb.Green)
				points[i].B = uint16(rgb.Blue)
			}
		}
	}
	h.NumberOfPoints = uint64(len(points))
	return &File{Header: h, Points: points}, nil
}

func headerOf(lh *lidario.LasHeader) *Header {
	return &Header{
		VersionMajor:     uint8(lh.VersionMajor),
		VersionMinor:     uint8(lh.VersionMinor),
		SystemIdentifier: strings.TrimRight(lh.SystemID, "\x00 "),
		PointFormat:      uint8(lh.PointFormatID),
		NumberOfPoints:   uint64(lh.NumberPoints),
		Scale:            [3]float64{lh.XScaleFactor, lh.YScaleFactor, lh.ZScaleFactor},
		Offset:           [3]float64{lh.XOffset, lh.YOffset, lh.ZOffset},
		Min:              [3]float64{lh.MinX, lh.MinY, lh.MinZ},
		Max:              [3]float64{lh.MaxX, lh.MaxY, lh.MaxZ},
	}
}
