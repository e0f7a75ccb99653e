package octree

import (
	"github.com/ecopia-map/geofuse/internal/geometry"
)

// Key addresses a cell of the regular lattice at a given tree level.
type Key struct {
	X, Y, Z int
}

type ITree interface {
	Build() error
	GetRootNode() INode
	IsBuilt() bool
	Clear() bool
	// Adds the point stored at index in the source cloud
	AddPoint(index int, position geometry.Coordinate)
	// Leaves returns the non empty leaves at the maximum depth, keyed by lattice cell
	Leaves() map[Key]INode
	Depth() int
}

type INode interface {
	IsRoot() bool
	GetChildren() [8]INode
	GetPoints() []int
	TotalNumberOfPoints() int64
	NumberOfPoints() int32
	IsLeaf() bool
	GetParent() INode
	GetBoundingBox() *geometry.BoundingBox
	Level() int
	Key() Key
}
