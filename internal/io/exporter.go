// Package io writes and reads the products of a run: point clouds and meshes in PLY, PCD and
// LAS, their manifest and footprint sidecars, and the worker pool shared by the heavy stages.
package io

import (
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/converters"
	"github.com/ecopia-map/geofuse/internal/data"
	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/las"
	"github.com/ecopia-map/geofuse/internal/mesh"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
)

// LAS resolution of longitude and latitude, about a centimeter
const geographicScale = 1e-7

type Format string

const (
	FormatPLY Format = "PLY"
	FormatPCD Format = "PCD"
	FormatLAS Format = "LAS"
)

// FormatOf returns the format selected by the extension of path, or "" when none matches.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ply":
		return FormatPLY
	case ".pcd":
		return FormatPCD
	case ".las":
		return FormatLAS
	}
	return ""
}

type PLYEncoding string

const (
	PLYBinary PLYEncoding = "BINARY"
	PLYAscii  PLYEncoding = "ASCII"
)

func ParsePLYEncoding(value string) PLYEncoding {
	normalizedValue := strings.Trim(strings.ToUpper(value), " ")
	switch PLYEncoding(normalizedValue) {
	case PLYBinary:
		return PLYBinary
	case PLYAscii:
		return PLYAscii
	}
	return ""
}

type ExporterOptions struct {
	PLYEncoding PLYEncoding
	// writes normals next to positions when the model has them
	WriteNormals bool
}

type Exporter struct {
	fs   afero.Fs
	opts ExporterOptions
}

func NewExporter(fs afero.Fs, opts ExporterOptions) *Exporter {
	if opts.PLYEncoding == "" {
		opts.PLYEncoding = PLYBinary
	}
	return &Exporter{fs: fs, opts: opts}
}

// WritePointCloud writes the model in the format selected by the extension of path.
func (e *Exporter) WritePointCloud(model *pointcloud.PointCloud, path string) error {
	if model.IsEmpty() {
		return errs.InvalidState("io: no points to write to %s", path)
	}
	if err := e.ensureParent(path); err != nil {
		return err
	}

	var err error
	switch FormatOf(path) {
	case FormatPLY:
		err = e.create(path, func(f afero.File) error {
			return writePLY(f, plyContentOf(model, e.opts.WriteNormals), e.opts.PLYEncoding)
		})
	case FormatPCD:
		err = e.create(path, func(f afero.File) error {
			return writePCD(f, model)
		})
	case FormatLAS:
		err = e.writeLAS(model, path)
	default:
		return errs.IO(nil, "io: unsupported point cloud extension %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	glog.Infof("> wrote %s points to %s", humanize.Comma(int64(model.Len())), path)
	return nil
}

// WriteMesh writes the mesh as PLY, the only format carrying faces.
func (e *Exporter) WriteMesh(m *mesh.Mesh, path string) error {
	if m.NumVertices() == 0 {
		return errs.InvalidState("io: no mesh vertices to write to %s", path)
	}
	if FormatOf(path) != FormatPLY {
		return errs.IO(nil, "io: meshes are written as .ply, not %q", filepath.Ext(path))
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if err := e.ensureParent(path); err != nil {
		return err
	}
	err := e.create(path, func(f afero.File) error {
		return writePLY(f, plyContentOfMesh(m), e.opts.PLYEncoding)
	})
	if err != nil {
		return err
	}
	glog.Infof("> wrote mesh of %s vertices and %s triangles to %s",
		humanize.Comma(int64(m.NumVertices())), humanize.Comma(int64(m.NumFaces())), path)
	return nil
}

// ReadPointCloud reads back a .ply, .pcd or .las file.
func (e *Exporter) ReadPointCloud(path string) (*pointcloud.PointCloud, error) {
	format := FormatOf(path)
	if format == FormatLAS {
		return e.readLAS(path)
	}
	if format == "" {
		return nil, errs.IO(nil, "io: unsupported point cloud extension %q", filepath.Ext(path))
	}

	f, err := e.fs.Open(path)
	if err != nil {
		return nil, errs.IO(err, "io: open %s", path)
	}
	defer f.Close()

	if format == FormatPCD {
		return readPCD(f, path)
	}
	return readPLY(f, path)
}

func (e *Exporter) writeLAS(model *pointcloud.PointCloud, path string) error {
	points := make([]data.Point, model.Len())
	var colors [][3]uint8
	if model.HasColors() {
		var err error
		if colors, err = model.ByteColors(); err != nil {
			return err
		}
	}
	for i, p := range model.Positions() {
		points[i] = data.Point{X: p[0], Y: p[1], Z: p[2]}
		if colors != nil {
			// 8 bit channels stretched over the 16 bit range
			points[i].R = uint16(colors[i][0]) * 257
			points[i].G = uint16(colors[i][1]) * 257
			points[i].B = uint16(colors[i][2]) * 257
		}
	}
	opts := las.WriterOptions{PointFormat: 2, SystemIdentifier: model.CRS()}
	if crs, err := converters.ParseCRS(model.CRS()); err == nil && crs.IsGeographic() {
		opts.XYScale = geographicScale
	}
	return las.WriteFile(e.fs, path, points, opts)
}

func (e *Exporter) readLAS(path string) (*pointcloud.PointCloud, error) {
	lf, err := las.Open(e.fs, path)
	if err != nil {
		return nil, err
	}
	positions := make([][3]float64, len(lf.Points))
	colors := make([][3]float64, len(lf.Points))
	for i := range lf.Points {
		p := &lf.Points[i]
		positions[i] = [3]float64{p.X, p.Y, p.Z}
		c := p.ByteColor(false)
		colors[i] = [3]float64{float64(c[0]), float64(c[1]), float64(c[2])}
	}
	crs := lf.Header.SystemIdentifier
	if !lf.Header.HasColor() {
		return pointcloud.New(crs, positions), nil
	}
	return pointcloud.NewColored(crs, positions, colors, pointcloud.ColorSpaceByte)
}

func (e *Exporter) ensureParent(path string) error {
	dir := filepath.Dir(path)
	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return errs.IO(err, "io: create folder %s", dir)
	}
	return nil
}

func (e *Exporter) create(path string, write func(f afero.File) error) error {
	f, err := e.fs.Create(path)
	if err != nil {
		return errs.IO(err, "io: create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		if errs.Kind(err) != nil {
			return err
		}
		return errs.IO(err, "io: write %s", path)
	}
	if err := f.Close(); err != nil {
		return errs.IO(err, "io: close %s", path)
	}
	return nil
}
