package elevation

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/x448/float16"

	"github.com/ecopia-map/geofuse/internal/errs"
)

// zarr v2 array metadata (.zarray)
type arrayMeta struct {
	ZarrFormat         int              `json:"zarr_format"`
	Shape              []int            `json:"shape"`
	Chunks             []int            `json:"chunks"`
	DType              string           `json:"dtype"`
	Compressor         *compressorMeta  `json:"compressor"`
	FillValue          json.RawMessage  `json:"fill_value"`
	Order              string           `json:"order"`
	Filters            []compressorMeta `json:"filters"`
	DimensionSeparator string           `json:"dimension_separator"`

	name      string
	dims      []string
	fill      float64
	byteOrder binary.ByteOrder
	kind      byte
	itemSize  int
}

type compressorMeta struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// zarr attributes (.zattrs), only the xarray dimension names are used
type arrayAttrs struct {
	Dimensions []string `json:"_ARRAY_DIMENSIONS"`
}

func readArrayMeta(ctx context.Context, store Store, name string) (*arrayMeta, error) {
	raw, err := store.Get(ctx, name+"/.zarray")
	if err != nil {
		if errors.Is(err, errKeyNotFound) {
			return nil, errs.IO(err, "elevation: array %q not found in store", name)
		}
		return nil, err
	}
	meta := &arrayMeta{name: name}
	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, errs.IO(err, "elevation: parse %s/.zarray", name)
	}
	if err := meta.validate(); err != nil {
		return nil, err
	}

	rawAttrs, err := store.Get(ctx, name+"/.zattrs")
	switch {
	case err == nil:
		var attrs arrayAttrs
		if err := json.Unmarshal(rawAttrs, &attrs); err != nil {
			return nil, errs.IO(err, "elevation: parse %s/.zattrs", name)
		}
		meta.dims = attrs.Dimensions
	case errors.Is(err, errKeyNotFound):
	default:
		return nil, err
	}
	return meta, nil
}

func (m *arrayMeta) validate() error {
	if m.ZarrFormat != 2 {
		return errs.IO(nil, "elevation: %s: unsupported zarr format %d", m.name, m.ZarrFormat)
	}
	if len(m.Shape) == 0 || len(m.Shape) != len(m.Chunks) {
		return errs.IO(nil, "elevation: %s: shape %v does not match chunks %v", m.name, m.Shape, m.Chunks)
	}
	for _, c := range m.Chunks {
		if c <= 0 {
			return errs.IO(nil, "elevation: %s: invalid chunk shape %v", m.name, m.Chunks)
		}
	}
	if len(m.Filters) > 0 {
		return errs.IO(nil, "elevation: %s: zarr filters are not supported", m.name)
	}
	if m.Order != "" && m.Order != "C" && m.Order != "F" {
		return errs.IO(nil, "elevation: %s: unknown memory order %q", m.name, m.Order)
	}
	if err := m.parseDType(); err != nil {
		return err
	}
	return m.parseFill()
}

func (m *arrayMeta) parseDType() error {
	if len(m.DType) < 3 {
		return errs.IO(nil, "elevation: %s: unsupported dtype %q", m.name, m.DType)
	}
	switch m.DType[0] {
	case '<', '|':
		m.byteOrder = binary.LittleEndian
	case '>':
		m.byteOrder = binary.BigEndian
	default:
		return errs.IO(nil, "elevation: %s: unsupported dtype %q", m.name, m.DType)
	}
	m.kind = m.DType[1]
	size, err := strconv.Atoi(m.DType[2:])
	if err != nil {
		return errs.IO(err, "elevation: %s: unsupported dtype %q", m.name, m.DType)
	}
	m.itemSize = size

	supported := map[byte][]int{'f': {2, 4, 8}, 'i': {1, 2, 4, 8}, 'u': {1, 2, 4, 8}}
	for _, s := range supported[m.kind] {
		if s == size {
			return nil
		}
	}
	return errs.IO(nil, "elevation: %s: unsupported dtype %q", m.name, m.DType)
}

func (m *arrayMeta) parseFill() error {
	raw := strings.TrimSpace(string(m.FillValue))
	switch raw {
	case "", "null":
		m.fill = math.NaN()
		return nil
	case `"NaN"`:
		m.fill = math.NaN()
		return nil
	case `"Infinity"`:
		m.fill = math.Inf(1)
		return nil
	case `"-Infinity"`:
		m.fill = math.Inf(-1)
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return errs.IO(err, "elevation: %s: unsupported fill value %s", m.name, raw)
	}
	m.fill = v
	return nil
}

func (m *arrayMeta) chunkLen() int {
	n := 1
	for _, c := range m.Chunks {
		n *= c
	}
	return n
}

func (m *arrayMeta) chunkCount(dim int) int {
	return (m.Shape[dim] + m.Chunks[dim] - 1) / m.Chunks[dim]
}

func (m *arrayMeta) chunkKey(index []int) string {
	sep := "."
	if m.DimensionSeparator == "/" {
		sep = "/"
	}
	parts := make([]string, len(index))
	for i, v := range index {
		parts[i] = strconv.Itoa(v)
	}
	return m.name + "/" + strings.Join(parts, sep)
}

// offset of an element inside a chunk given its in-chunk coordinates
func (m *arrayMeta) chunkOffset(local []int) int {
	offset, stride := 0, 1
	if m.Order == "F" {
		for d := 0; d < len(local); d++ {
			offset += local[d] * stride
			stride *= m.Chunks[d]
		}
		return offset
	}
	for d := len(local) - 1; d >= 0; d-- {
		offset += local[d] * stride
		stride *= m.Chunks[d]
	}
	return offset
}

// readChunk fetches and decodes one chunk. Absent chunks are filled with the fill value.
func (m *arrayMeta) readChunk(ctx context.Context, store Store, index []int) ([]float64, error) {
	raw, err := store.Get(ctx, m.chunkKey(index))
	if err != nil {
		if errors.Is(err, errKeyNotFound) {
			out := make([]float64, m.chunkLen())
			for i := range out {
				out[i] = m.fill
			}
			return out, nil
		}
		return nil, err
	}
	data, err := m.decompress(raw)
	if err != nil {
		return nil, errs.IO(err, "elevation: decompress %s", m.chunkKey(index))
	}
	if len(data) != m.chunkLen()*m.itemSize {
		return nil, errs.IO(nil, "elevation: chunk %s holds %d bytes, want %d", m.chunkKey(index), len(data), m.chunkLen()*m.itemSize)
	}
	return m.decode(data), nil
}

func (m *arrayMeta) decompress(raw []byte) ([]byte, error) {
	if m.Compressor == nil {
		return raw, nil
	}
	switch m.Compressor.ID {
	case "zlib":
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "zstd":
		d, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer d.Close()
		return d.DecodeAll(raw, nil)
	case "lz4":
		// numcodecs prefixes the block with its little endian decoded size
		if len(raw) < 4 {
			return nil, errors.New("lz4 chunk too short")
		}
		out := make([]byte, binary.LittleEndian.Uint32(raw[:4]))
		n, err := lz4.UncompressBlock(raw[4:], out)
		if err != nil {
			return nil, err
		}
		return out[:n], nil
	}
	return nil, errors.New("unsupported compressor " + m.Compressor.ID)
}

func (m *arrayMeta) decode(data []byte) []float64 {
	n := len(data) / m.itemSize
	out := make([]float64, n)
	bo := m.byteOrder
	for i := 0; i < n; i++ {
		b := data[i*m.itemSize : (i+1)*m.itemSize]
		switch m.kind {
		case 'f':
			switch m.itemSize {
			case 2:
				out[i] = float64(float16.Frombits(bo.Uint16(b)).Float32())
			case 4:
				out[i] = float64(math.Float32frombits(bo.Uint32(b)))
			case 8:
				out[i] = math.Float64frombits(bo.Uint64(b))
			}
		case 'i':
			switch m.itemSize {
			case 1:
				out[i] = float64(int8(b[0]))
			case 2:
				out[i] = float64(int16(bo.Uint16(b)))
			case 4:
				out[i] = float64(int32(bo.Uint32(b)))
			case 8:
				out[i] = float64(int64(bo.Uint64(b)))
			}
		case 'u':
			switch m.itemSize {
			case 1:
				out[i] = float64(b[0])
			case 2:
				out[i] = float64(bo.Uint16(b))
			case 4:
				out[i] = float64(bo.Uint32(b))
			case 8:
				out[i] = float64(bo.Uint64(b))
			}
		}
	}
	return out
}

// readVector reads a whole one dimensional array, e.g. a coordinate axis.
func readVector(ctx context.Context, store Store, name string) ([]float64, error) {
	meta, err := readArrayMeta(ctx, store, name)
	if err != nil {
		return nil, err
	}
	if len(meta.Shape) != 1 {
		return nil, errs.Precondition("elevation: coordinate %q has %d dimensions, want 1", name, len(meta.Shape))
	}
	out := make([]float64, 0, meta.Shape[0])
	for c := 0; c < meta.chunkCount(0); c++ {
		chunk, err := meta.readChunk(ctx, store, []int{c})
		if err != nil {
			return nil, err
		}
		remaining := meta.Shape[0] - len(out)
		if remaining < len(chunk) {
			chunk = chunk[:remaining]
		}
		out = append(out, chunk...)
	}
	return out, nil
}
