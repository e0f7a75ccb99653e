package elevation

import (
	"context"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
)

const defaultFetchConcurrency = 8

// ZarrSource samples a two dimensional variable of a zarr v2 dataset laid out the way
// xarray writes it: one array per variable plus one array per coordinate.
type ZarrSource struct {
	store       Store
	xName       string
	yName       string
	concurrency int
}

type ZarrOption func(*ZarrSource)

// WithCoordinateNames overrides the coordinate array names, "x" and "y" by default.
func WithCoordinateNames(x, y string) ZarrOption {
	return func(s *ZarrSource) {
		s.xName = x
		s.yName = y
	}
}

// WithFetchConcurrency bounds the number of chunks fetched in parallel.
func WithFetchConcurrency(n int) ZarrOption {
	return func(s *ZarrSource) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewZarrSource(store Store, opts ...ZarrOption) *ZarrSource {
	s := &ZarrSource{
		store:       store,
		xName:       "x",
		yName:       "y",
		concurrency: defaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewAuthenticatedZarrSource reads a dataset published over HTTP, authenticating with the
// given user and token.
func NewAuthenticatedZarrSource(baseURL, user, token string, opts ...ZarrOption) *ZarrSource {
	return NewZarrSource(NewHTTPStore(baseURL, user, token, nil), opts...)
}

func (s *ZarrSource) Query(ctx context.Context, variable string, region geometry.Region, width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, errs.Precondition("elevation: invalid query size %dx%d", width, height)
	}
	if err := region.Validate(); err != nil {
		return nil, errs.Precondition("elevation: %v", err)
	}

	glog.Infof("> querying elevation %q on %dx%d axes", variable, width, height)

	xAxis, err := readVector(ctx, s.store, s.xName)
	if err != nil {
		return nil, err
	}
	yAxis, err := readVector(ctx, s.store, s.yName)
	if err != nil {
		return nil, err
	}
	meta, err := readArrayMeta(ctx, s.store, variable)
	if err != nil {
		return nil, err
	}
	yDim, xDim, err := s.axisOrder(meta)
	if err != nil {
		return nil, err
	}
	if meta.Shape[xDim] != len(xAxis) || meta.Shape[yDim] != len(yAxis) {
		return nil, errs.IO(nil, "elevation: %s shape %v does not match coordinates %d x %d", variable, meta.Shape, len(yAxis), len(xAxis))
	}

	xs, ys := RegionAxes(region, width, height)
	ix := NearestIndices(xAxis, xs)
	iy := NearestIndices(yAxis, ys)

	chunks, err := s.fetchChunks(ctx, meta, xDim, yDim, ix, iy)
	if err != nil {
		return nil, err
	}

	values := make([]float64, width*height)
	index := make([]int, 2)
	local := make([]int, 2)
	for row, y := range iy {
		for col, x := range ix {
			index[yDim], index[xDim] = y/meta.Chunks[yDim], x/meta.Chunks[xDim]
			local[yDim], local[xDim] = y%meta.Chunks[yDim], x%meta.Chunks[xDim]
			chunk := chunks[chunkID{index[0], index[1]}]
			values[row*width+col] = chunk[meta.chunkOffset(local)]
		}
	}

	return &Grid{
		Variable: variable,
		X:        xs,
		Y:        ys,
		Values:   values,
	}, nil
}

// axisOrder returns the dimension positions of y and x in the variable array.
func (s *ZarrSource) axisOrder(meta *arrayMeta) (int, int, error) {
	if len(meta.Shape) != 2 {
		return 0, 0, errs.Precondition("elevation: %s has %d dimensions, want 2", meta.name, len(meta.Shape))
	}
	if len(meta.dims) == 0 {
		return 0, 1, nil
	}
	yDim, xDim := -1, -1
	for i, d := range meta.dims {
		switch d {
		case s.yName:
			yDim = i
		case s.xName:
			xDim = i
		}
	}
	if yDim < 0 || xDim < 0 {
		return 0, 0, errs.Precondition("elevation: %s dimensions %v do not include %s and %s", meta.name, meta.dims, s.yName, s.xName)
	}
	return yDim, xDim, nil
}

type chunkID [2]int

func (s *ZarrSource) fetchChunks(ctx context.Context, meta *arrayMeta, xDim, yDim int, ix, iy []int) (map[chunkID][]float64, error) {
	var ids []chunkID
	seen := make(map[chunkID]bool)
	for _, y := range uniqueChunks(iy, meta.Chunks[yDim]) {
		for _, x := range uniqueChunks(ix, meta.Chunks[xDim]) {
			var id chunkID
			id[yDim], id[xDim] = y, x
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	glog.Infof("> fetching %s elevation chunks", humanize.Comma(int64(len(ids))))

	var mu sync.Mutex
	out := make(map[chunkID][]float64, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			data, err := meta.readChunk(gctx, s.store, id[:])
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func uniqueChunks(indices []int, chunkSize int) []int {
	var out []int
	seen := make(map[int]bool)
	for _, i := range indices {
		c := i / chunkSize
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
