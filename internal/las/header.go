// Package las reads and writes ASPRS LAS point files, point formats 0 to 3, through lidario.
package las

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ecopia-map/geofuse/internal/errs"
)

const (
	signature = "LASF"

	// public header block size up to LAS 1.2
	legacyHeaderSize = 227
	// LAS 1.4 header carrying the 64 bit point count
	extendedHeaderSize = 375
)

// minimum record length of the point formats lidario decodes
var recordLengths = []int{20, 28, 26, 34}

type Header struct {
	VersionMajor     uint8
	VersionMinor     uint8
	SystemIdentifier string
	PointFormat      uint8
	NumberOfPoints   uint64
	Scale            [3]float64
	Offset           [3]float64
	Min              [3]float64
	Max              [3]float64
}

// HasColor reports whether the point format stores RGB.
func (h *Header) HasColor() bool {
	return h.PointFormat == 2 || h.PointFormat == 3
}

// checkHeader validates the public header block before lidario decodes the file. lidario sizes
// its buffers from the declared point count, so a count the file cannot hold is rejected here.
func checkHeader(r io.Reader, fileSize int64) error {
	b := make([]byte, extendedHeaderSize)
	n, err := io.ReadFull(r, b)
	if err != nil && err != io.ErrUnexpectedEOF {
		return errs.IO(err, "las: read header")
	}
	b = b[:n]
	if n < legacyHeaderSize {
		return errs.IO(nil, "las: file too short for a header (%d bytes)", n)
	}
	if string(b[0:4]) != signature {
		return errs.IO(nil, "las: missing LASF signature")
	}

	le := binary.LittleEndian
	major, minor := b[24], b[25]
	if major != 1 || minor > 4 {
		return errs.IO(nil, "las: unsupported version %d.%d", major, minor)
	}
	format := b[104]
	if format&0xC0 != 0 {
		return errs.IO(nil, "las: compressed point data (LAZ) is not supported")
	}
	if int(format) >= len(recordLengths) {
		return errs.IO(nil, "las: unsupported point data format %d", format)
	}
	headerSize := uint64(le.Uint16(b[94:]))
	offset := uint64(le.Uint32(b[96:]))
	recordLength := uint64(le.Uint16(b[105:]))
	if recordLength < uint64(recordLengths[format]) {
		return errs.IO(nil, "las: record length %d too short for point format %d", recordLength, format)
	}
	if offset < headerSize || offset > uint64(fileSize) {
		return errs.IO(nil, "las: point data offset %d outside the file", offset)
	}
	for axis := 0; axis < 3; axis++ {
		s := math.Float64frombits(le.Uint64(b[131+8*axis:]))
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return errs.IO(nil, "las: invalid scale factor on axis %d", axis)
		}
	}

	count := uint64(le.Uint32(b[107:]))
	if minor >= 4 && headerSize >= extendedHeaderSize && n >= extendedHeaderSize {
		if extended := le.Uint64(b[247:]); count == 0 || extended > count {
			count = extended
		}
	}
	if count > (uint64(fileSize)-offset)/recordLength {
		return errs.IO(nil, "las: %d points of %d bytes exceed the file size", count, recordLength)
	}
	return nil
}
