// Package pointcloud holds the in-memory point cloud shared by every stage:
// positions in one CRS, lockstep colors tagged with their color space, and
// optional per point normals.
package pointcloud

import (
	"github.com/golang/glog"
	"gonum.org/v1/gonum/mat"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
)

type ColorSpace string

const (
	// No colors attached yet
	ColorSpaceNone ColorSpace = "NONE"
	// Channels in [0, 255]
	ColorSpaceByte ColorSpace = "BYTE"
	// Channels in [0, 1]
	ColorSpaceNormalized ColorSpace = "NORMALIZED"
)

const byteScale = 255.0

// PointCloud is a set of 3D positions with optional colors and normals stored in lockstep.
type PointCloud struct {
	crs        string
	positions  [][3]float64
	colors     [][3]float64
	colorSpace ColorSpace
	normals    [][3]float64
}

// New builds a positions-only model.
func New(crs string, positions [][3]float64) *PointCloud {
	return &PointCloud{
		crs:        crs,
		positions:  positions,
		colorSpace: ColorSpaceNone,
	}
}

// NewColored builds a model with colors in the given space. Lengths must match.
func NewColored(crs string, positions [][3]float64, colors [][3]float64, space ColorSpace) (*PointCloud, error) {
	pc := New(crs, positions)
	if err := pc.SetColors(colors, space); err != nil {
		return nil, err
	}
	return pc, nil
}

func (pc *PointCloud) CRS() string {
	return pc.crs
}

func (pc *PointCloud) Len() int {
	if pc == nil {
		return 0
	}
	return len(pc.positions)
}

func (pc *PointCloud) IsEmpty() bool {
	return pc.Len() == 0
}

// Positions returns the N x 3 position table. The slice is shared with the model.
func (pc *PointCloud) Positions() [][3]float64 {
	return pc.positions
}

// PositionMatrix returns an N x 3 copy of the positions.
func (pc *PointCloud) PositionMatrix() *mat.Dense {
	if pc.Len() == 0 {
		return nil
	}
	m := mat.NewDense(pc.Len(), 3, nil)
	for i, p := range pc.positions {
		m.SetRow(i, p[:])
	}
	return m
}

func (pc *PointCloud) HasColors() bool {
	return pc.colorSpace != ColorSpaceNone
}

func (pc *PointCloud) Colors() [][3]float64 {
	return pc.colors
}

func (pc *PointCloud) ColorSpace() ColorSpace {
	return pc.colorSpace
}

// SetColors replaces the colors. Their count must equal the point count.
func (pc *PointCloud) SetColors(colors [][3]float64, space ColorSpace) error {
	if space == ColorSpaceNone {
		return errs.Precondition("pointcloud: color space required when setting colors")
	}
	if len(colors) != len(pc.positions) {
		return errs.Precondition("pointcloud: %d colors for %d positions", len(colors), len(pc.positions))
	}
	pc.colors = colors
	pc.colorSpace = space
	return nil
}

func (pc *PointCloud) HasNormals() bool {
	return len(pc.normals) > 0
}

func (pc *PointCloud) Normals() [][3]float64 {
	return pc.normals
}

func (pc *PointCloud) SetNormals(normals [][3]float64) error {
	if len(normals) != len(pc.positions) {
		return errs.Precondition("pointcloud: %d normals for %d positions", len(normals), len(pc.positions))
	}
	pc.normals = normals
	return nil
}

// NormalizeColors divides byte colors by 255 in place. It may run once per model.
func (pc *PointCloud) NormalizeColors() error {
	switch pc.colorSpace {
	case ColorSpaceNormalized:
		return errs.InvalidState("pointcloud: colors already normalized")
	case ColorSpaceNone:
		return errs.InvalidState("pointcloud: no colors to normalize")
	}

	if pc.looksNormalized() {
		glog.Warningf("pointcloud: byte tagged colors are all within [0,1], they may have been normalized already")
	}

	for i := range pc.colors {
		pc.colors[i] = normalize(pc.colors[i])
	}
	pc.colorSpace = ColorSpaceNormalized
	return nil
}

// NormalizedColors returns the colors in [0, 1] without touching the model.
func (pc *PointCloud) NormalizedColors() ([][3]float64, error) {
	switch pc.colorSpace {
	case ColorSpaceNone:
		return nil, errs.InvalidState("pointcloud: no colors")
	case ColorSpaceNormalized:
		out := make([][3]float64, len(pc.colors))
		copy(out, pc.colors)
		return out, nil
	}
	out := make([][3]float64, len(pc.colors))
	for i, c := range pc.colors {
		out[i] = normalize(c)
	}
	return out, nil
}

// ByteColors returns the colors quantized to 8 bit channels.
func (pc *PointCloud) ByteColors() ([][3]uint8, error) {
	scale := 1.0
	switch pc.colorSpace {
	case ColorSpaceNone:
		return nil, errs.InvalidState("pointcloud: no colors")
	case ColorSpaceNormalized:
		scale = byteScale
	}
	out := make([][3]uint8, len(pc.colors))
	for i, c := range pc.colors {
		for ch := 0; ch < 3; ch++ {
			out[i][ch] = clampByte(c[ch] * scale)
		}
	}
	return out, nil
}

// Select keeps the points at the given indices, in that order.
func (pc *PointCloud) Select(indices []int) error {
	n := len(pc.positions)
	positions := make([][3]float64, len(indices))
	var colors, normals [][3]float64
	if pc.HasColors() {
		colors = make([][3]float64, len(indices))
	}
	if pc.HasNormals() {
		normals = make([][3]float64, len(indices))
	}
	for k, i := range indices {
		if i < 0 || i >= n {
			return errs.Precondition("pointcloud: index %d out of range [0,%d)", i, n)
		}
		positions[k] = pc.positions[i]
		if colors != nil {
			colors[k] = pc.colors[i]
		}
		if normals != nil {
			normals[k] = pc.normals[i]
		}
	}
	pc.positions = positions
	if colors != nil {
		pc.colors = colors
	}
	pc.normals = normals
	return nil
}

// Truncate keeps the first n points.
func (pc *PointCloud) Truncate(n int) error {
	if n < 0 || n > len(pc.positions) {
		return errs.Precondition("pointcloud: cannot truncate %d points to %d", len(pc.positions), n)
	}
	pc.positions = pc.positions[:n]
	if pc.HasColors() {
		pc.colors = pc.colors[:n]
	}
	if pc.HasNormals() {
		pc.normals = pc.normals[:n]
	}
	return nil
}

// Reproject replaces the positions and CRS, keeping colors and dropping normals.
func (pc *PointCloud) Reproject(crs string, positions [][3]float64) error {
	if len(positions) != len(pc.positions) {
		return errs.Precondition("pointcloud: %d reprojected positions for %d points", len(positions), len(pc.positions))
	}
	pc.crs = crs
	pc.positions = positions
	pc.normals = nil
	return nil
}

func (pc *PointCloud) Bounds() *geometry.BoundingBox {
	return geometry.BoundingBoxOf(pc.positions)
}

func (pc *PointCloud) looksNormalized() bool {
	for _, c := range pc.colors {
		if c[0] > 1 || c[1] > 1 || c[2] > 1 {
			return false
		}
	}
	return len(pc.colors) > 0
}

func normalize(c [3]float64) [3]float64 {
	return [3]float64{c[0] / byteScale, c[1] / byteScale, c[2] / byteScale}
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= byteScale {
		return 255
	}
	return uint8(v + 0.5)
}
