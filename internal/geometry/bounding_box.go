package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// Axis aligned 3D box with cached mid planes, used to split octree nodes
type BoundingBox struct {
	Xmin, Xmax       float64
	Ymin, Ymax       float64
	Zmin, Zmax       float64
	Xmid, Ymid, Zmid float64
}

// Builds a bounding box from its extremes
func NewBoundingBox(minX, maxX, minY, maxY, minZ, maxZ float64) *BoundingBox {
	return &BoundingBox{
		Xmin: minX,
		Xmax: maxX,
		Ymin: minY,
		Ymax: maxY,
		Zmin: minZ,
		Zmax: maxZ,
		Xmid: (minX + maxX) / 2,
		Ymid: (minY + maxY) / 2,
		Zmid: (minZ + maxZ) / 2,
	}
}

// Builds the bounding box of the given octant of the parent box. Octant bits are x=1, y=2, z=4.
func NewBoundingBoxFromParent(parent *BoundingBox, octant uint8) *BoundingBox {
	xMin, xMax := parent.Xmin, parent.Xmid
	yMin, yMax := parent.Ymin, parent.Ymid
	zMin, zMax := parent.Zmin, parent.Zmid
	if octant&1 != 0 {
		xMin, xMax = parent.Xmid, parent.Xmax
	}
	if octant&2 != 0 {
		yMin, yMax = parent.Ymid, parent.Ymax
	}
	if octant&4 != 0 {
		zMin, zMax = parent.Zmid, parent.Zmax
	}
	return NewBoundingBox(xMin, xMax, yMin, yMax, zMin, zMax)
}

// Computes the bounding box of the given positions. Returns nil for an empty input.
func BoundingBoxOf(positions [][3]float64) *BoundingBox {
	if len(positions) == 0 {
		return nil
	}
	minX, minY, minZ := math.Inf(1), math.Inf(1), math.Inf(1)
	maxX, maxY, maxZ := math.Inf(-1), math.Inf(-1), math.Inf(-1)
	for _, p := range positions {
		minX = math.Min(minX, p[0])
		maxX = math.Max(maxX, p[0])
		minY = math.Min(minY, p[1])
		maxY = math.Max(maxY, p[1])
		minZ = math.Min(minZ, p[2])
		maxZ = math.Max(maxZ, p[2])
	}
	return NewBoundingBox(minX, maxX, minY, maxY, minZ, maxZ)
}

// Returns the smallest cube centered on the box center containing the box, grown by the given ratio
func (b *BoundingBox) PaddedCube(ratio float64) *BoundingBox {
	edge := math.Max(b.Xmax-b.Xmin, math.Max(b.Ymax-b.Ymin, b.Zmax-b.Zmin))
	if edge == 0 {
		edge = 1
	}
	half := edge * (1 + ratio) / 2
	return NewBoundingBox(b.Xmid-half, b.Xmid+half, b.Ymid-half, b.Ymid+half, b.Zmid-half, b.Zmid+half)
}

func (b *BoundingBox) Contains(c Coordinate) bool {
	return c.X >= b.Xmin && c.X <= b.Xmax &&
		c.Y >= b.Ymin && c.Y <= b.Ymax &&
		c.Z >= b.Zmin && c.Z <= b.Zmax
}

// Planar footprint of the box
func (b *BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.Xmin, b.Ymin}, Max: orb.Point{b.Xmax, b.Ymax}}
}
