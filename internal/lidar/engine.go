// Package lidar turns a LAS file into a colored point cloud: ingest the returns, reproject
// them, then color them by classification.
package lidar

import (
	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/converters"
	"github.com/ecopia-map/geofuse/internal/data"
	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
	"github.com/ecopia-map/geofuse/internal/las"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
)

type State string

const (
	Unloaded State = "UNLOADED"
	Loaded   State = "LOADED"
)

// RawTable holds the returns of one LAS file as read.
type RawTable struct {
	Source   string
	Points   []data.Point
	HasColor bool
}

func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Points)
}

// Labels returns the classification of every point.
func (t *RawTable) Labels() []uint8 {
	labels := make([]uint8, len(t.Points))
	for i := range t.Points {
		labels[i] = t.Points[i].Classification
	}
	return labels
}

type Engine struct {
	fs                afero.Fs
	converter         converters.CoordinateConverter
	corrector         converters.ElevationCorrector
	overflow          OverflowPolicy
	useEmbeddedColors bool
	eightBitColors    bool
	state             State
}

type Option func(*Engine)

// WithElevationCorrector adjusts Z during reprojection.
func WithElevationCorrector(c converters.ElevationCorrector) Option {
	return func(e *Engine) { e.corrector = c }
}

func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(e *Engine) { e.overflow = p }
}

// WithEmbeddedColors makes Colorize use the RGB stored in the file when there is one.
// eightBit tells that the file stores 8 bit values in its 16 bit color fields.
func WithEmbeddedColors(eightBit bool) Option {
	return func(e *Engine) {
		e.useEmbeddedColors = true
		e.eightBitColors = eightBit
	}
}

func NewEngine(fs afero.Fs, converter converters.CoordinateConverter, opts ...Option) *Engine {
	e := &Engine{
		fs:        fs,
		converter: converter,
		overflow:  OverflowBucket,
		state:     Unloaded,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) State() State {
	return e.state
}

// Ingest reads the LAS file at path. The engine is Loaded once a file has been read successfully.
func (e *Engine) Ingest(path string) (*RawTable, error) {
	glog.Infoln("> reading data from las file...", path)
	lf, err := las.Open(e.fs, path)
	if err != nil {
		return nil, err
	}
	if len(lf.Points) == 0 {
		return nil, errs.IO(nil, "lidar: %s holds no points", path)
	}
	e.state = Loaded
	return &RawTable{Source: path, Points: lf.Points, HasColor: lf.Header.HasColor()}, nil
}

// Reproject converts the horizontal position of every return from source to target and returns
// a positions only cloud in target. Labels stay on the table.
func (e *Engine) Reproject(table *RawTable, source, target converters.CRS) (*pointcloud.PointCloud, error) {
	if err := e.checkLoaded(table); err != nil {
		return nil, err
	}

	coords := make([]geometry.Coordinate, table.Len())
	for i, p := range table.Points {
		coords[i] = geometry.Coordinate{X: p.X, Y: p.Y, Z: p.Z}
	}

	var out []geometry.Coordinate
	if source.Equal(target) {
		out = coords
	} else {
		var err error
		out, err = e.converter.ConvertCoordinates(source, target, coords)
		if err != nil {
			return nil, err
		}
		if len(out) != len(coords) {
			return nil, errs.Precondition("lidar: %d reprojected points for %d returns", len(out), len(coords))
		}
	}

	positions := make([][3]float64, len(out))
	for i, c := range out {
		if e.corrector != nil {
			c.Z = e.corrector.CorrectElevation(c.X, c.Y, c.Z)
		}
		positions[i] = c.Array()
	}
	glog.Infof("> reprojected %s points from %s to %s", humanize.Comma(int64(len(positions))), source, target)
	return pointcloud.New(target.String(), positions), nil
}

// Colorize assigns every point the color of its classification label and returns the model.
func (e *Engine) Colorize(model *pointcloud.PointCloud, table *RawTable) (*pointcloud.PointCloud, error) {
	if err := e.checkLoaded(table); err != nil {
		return nil, err
	}
	if model.Len() != table.Len() {
		return nil, errs.Precondition("lidar: model has %d points, table %d", model.Len(), table.Len())
	}

	colors := make([][3]float64, table.Len())
	if e.useEmbeddedColors && table.HasColor {
		for i := range table.Points {
			c := table.Points[i].ByteColor(e.eightBitColors)
			colors[i] = [3]float64{float64(c[0]), float64(c[1]), float64(c[2])}
		}
		glog.Infoln("> colored points with the embedded RGB")
	} else {
		cm, err := BuildColorMap(table.Labels(), e.overflow)
		if err != nil {
			return nil, err
		}
		for i := range table.Points {
			c := cm.Colors[table.Points[i].Classification]
			colors[i] = [3]float64{float64(c[0]), float64(c[1]), float64(c[2])}
		}
		glog.Infof("> colored points by %d classification labels %v", len(cm.Labels), cm.Labels)
	}

	if err := model.SetColors(colors, pointcloud.ColorSpaceByte); err != nil {
		return nil, err
	}
	return model, nil
}

func (e *Engine) checkLoaded(table *RawTable) error {
	if e.state != Loaded || table == nil {
		return errs.InvalidState("lidar: no LAS file ingested")
	}
	return nil
}
