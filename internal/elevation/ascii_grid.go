package elevation

import (
	"bufio"
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
)

// EsriASCIIRaster represents an ESRI ASCII grid. Data rows run north to south.
type EsriASCIIRaster struct {
	Ncols, Nrows     int
	Xcenter, Ycenter float64 // center of the lower left cell
	CellSize         float64
	NoDataValue      float64
	HasNoData        bool
	Data             [][]float64
}

// X returns the coordinate of the center of column c.
func (r *EsriASCIIRaster) X(c int) float64 {
	return r.Xcenter + float64(c)*r.CellSize
}

// Y returns the coordinate of the center of row r, row 0 being the northernmost.
func (r *EsriASCIIRaster) Y(row int) float64 {
	return r.Ycenter + float64(r.Nrows-1-row)*r.CellSize
}

// ParseEsriASCIIRaster reads a grid, mapping NODATA cells to NaN.
func ParseEsriASCIIRaster(scanner *bufio.Scanner) (*EsriASCIIRaster, error) {
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	raster := &EsriASCIIRaster{}
	header := map[string]float64{}
	var firstRow []string

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		key := strings.ToLower(fields[0])
		if _, err := strconv.ParseFloat(fields[0], 64); err == nil {
			firstRow = fields
			break
		}
		if len(fields) != 2 {
			return nil, errs.IO(nil, "elevation: malformed ascii grid header line %q", scanner.Text())
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, errs.IO(err, "elevation: ascii grid header %s", key)
		}
		header[key] = v
	}

	for _, key := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := header[key]; !ok {
			return nil, errs.IO(nil, "elevation: ascii grid header misses %s", key)
		}
	}
	raster.Ncols = int(header["ncols"])
	raster.Nrows = int(header["nrows"])
	raster.CellSize = header["cellsize"]
	if raster.Ncols <= 0 || raster.Nrows <= 0 || raster.CellSize <= 0 {
		return nil, errs.IO(nil, "elevation: ascii grid has invalid size")
	}

	half := raster.CellSize / 2
	switch {
	case hasKeys(header, "xllcenter", "yllcenter"):
		raster.Xcenter, raster.Ycenter = header["xllcenter"], header["yllcenter"]
	case hasKeys(header, "xllcorner", "yllcorner"):
		raster.Xcenter, raster.Ycenter = header["xllcorner"]+half, header["yllcorner"]+half
	default:
		return nil, errs.IO(nil, "elevation: ascii grid header misses the lower left origin")
	}
	raster.NoDataValue, raster.HasNoData = header["nodata_value"]

	values := make([]float64, 0, raster.Ncols*raster.Nrows)
	appendFields := func(fields []string) error {
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return errs.IO(err, "elevation: ascii grid value %q", f)
			}
			if raster.HasNoData && v == raster.NoDataValue {
				v = math.NaN()
			}
			values = append(values, v)
		}
		return nil
	}
	if err := appendFields(firstRow); err != nil {
		return nil, err
	}
	for scanner.Scan() {
		if err := appendFields(strings.Fields(scanner.Text())); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.IO(err, "elevation: read ascii grid")
	}
	if len(values) != raster.Ncols*raster.Nrows {
		return nil, errs.IO(nil, "elevation: ascii grid holds %d values, want %d", len(values), raster.Ncols*raster.Nrows)
	}

	raster.Data = make([][]float64, raster.Nrows)
	for r := range raster.Data {
		raster.Data[r] = values[r*raster.Ncols : (r+1)*raster.Ncols]
	}
	return raster, nil
}

func hasKeys(m map[string]float64, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

// ASCIIGridSource samples a local ESRI ASCII grid file. The variable name only labels the result.
type ASCIIGridSource struct {
	fs   afero.Fs
	path string
}

func NewASCIIGridSource(fs afero.Fs, path string) *ASCIIGridSource {
	return &ASCIIGridSource{fs: fs, path: path}
}

func (s *ASCIIGridSource) Query(ctx context.Context, variable string, region geometry.Region, width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, errs.Precondition("elevation: invalid query size %dx%d", width, height)
	}
	if err := region.Validate(); err != nil {
		return nil, errs.Precondition("elevation: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.IO(err, "elevation: query %s", s.path)
	}

	f, err := s.fs.Open(s.path)
	if err != nil {
		return nil, errs.IO(err, "elevation: open %s", s.path)
	}
	defer f.Close()

	raster, err := ParseEsriASCIIRaster(bufio.NewScanner(f))
	if err != nil {
		return nil, err
	}
	glog.Infof("> read ascii grid %s: %dx%d cells of %g", s.path, raster.Ncols, raster.Nrows, raster.CellSize)

	xAxis := make([]float64, raster.Ncols)
	for c := range xAxis {
		xAxis[c] = raster.X(c)
	}
	yAxis := make([]float64, raster.Nrows)
	for r := range yAxis {
		yAxis[r] = raster.Y(r)
	}

	xs, ys := RegionAxes(region, width, height)
	ix := NearestIndices(xAxis, xs)
	iy := NearestIndices(yAxis, ys)

	values := make([]float64, width*height)
	for row, r := range iy {
		for col, c := range ix {
			values[row*width+col] = raster.Data[r][c]
		}
	}
	return &Grid{Variable: variable, X: xs, Y: ys, Values: values}, nil
}
