package grid_tree

import (
	"math"
	"runtime"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
	"github.com/ecopia-map/geofuse/internal/octree"
)

const MaxDepth = 12

type pendingPoint struct {
	index    int
	position geometry.Coordinate
}

// Represents a sparse octree of point indices whose leaves sit at a fixed depth, so that
// every leaf is one cell of a regular lattice of 2^depth cells per side
type GridTree struct {
	rootNode *GridNode
	bounds   *geometry.BoundingBox
	depth    int
	built    bool
	pending  []pendingPoint
	leaves   map[octree.Key]octree.INode
	loaders  int
	sync.RWMutex
}

var _ octree.ITree = (*GridTree)(nil)

// Builds an empty GridTree over the given cubic bounds. Points outside the bounds are clamped
// into the border cells.
func NewGridTree(bounds *geometry.BoundingBox, depth int) (*GridTree, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, errs.Precondition("octree: depth %d outside [1,%d]", depth, MaxDepth)
	}
	if bounds == nil {
		return nil, errs.Precondition("octree: bounds required")
	}
	return &GridTree{
		bounds:  bounds,
		depth:   depth,
		loaders: runtime.NumCPU(),
	}, nil
}

// Builds the hierarchical tree structure
func (tree *GridTree) Build() error {
	if tree.built {
		return errs.InvalidState("octree: already built")
	}

	tree.rootNode = NewGridNode(nil, tree.bounds, octree.Key{}, 0, tree.depth)

	var wg sync.WaitGroup
	tree.launchParallelPointLoaders(&wg)
	wg.Wait()
	tree.pending = nil

	tree.leaves = make(map[octree.Key]octree.INode)
	tree.rootNode.BuildPoints(tree.leaves)
	tree.built = true

	glog.V(2).Infof("> octree depth %d: %s points in %s leaves",
		tree.depth, humanize.Comma(tree.rootNode.TotalNumberOfPoints()), humanize.Comma(int64(len(tree.leaves))))
	return nil
}

func (tree *GridTree) GetRootNode() octree.INode {
	if tree.rootNode == nil {
		return nil
	}
	return tree.rootNode
}

func (tree *GridTree) IsBuilt() bool {
	return tree.built
}

func (tree *GridTree) Clear() bool {
	tree.Lock()
	defer tree.Unlock()
	tree.rootNode = nil
	tree.pending = nil
	tree.leaves = nil
	tree.built = false
	return true
}

func (tree *GridTree) AddPoint(index int, position geometry.Coordinate) {
	tree.Lock()
	tree.pending = append(tree.pending, pendingPoint{index: index, position: tree.clamp(position)})
	tree.Unlock()
}

func (tree *GridTree) Leaves() map[octree.Key]octree.INode {
	return tree.leaves
}

func (tree *GridTree) Depth() int {
	return tree.depth
}

func (tree *GridTree) Bounds() *geometry.BoundingBox {
	return tree.bounds
}

// Returns the side of a leaf cell along each axis
func (tree *GridTree) LeafSize() geometry.Coordinate {
	cells := math.Exp2(float64(tree.depth))
	return geometry.Coordinate{
		X: (tree.bounds.Xmax - tree.bounds.Xmin) / cells,
		Y: (tree.bounds.Ymax - tree.bounds.Ymin) / cells,
		Z: (tree.bounds.Zmax - tree.bounds.Zmin) / cells,
	}
}

// Returns the position of the lattice vertex with the given integer coordinates
func (tree *GridTree) LatticePoint(k octree.Key) geometry.Coordinate {
	size := tree.LeafSize()
	return geometry.Coordinate{
		X: tree.bounds.Xmin + float64(k.X)*size.X,
		Y: tree.bounds.Ymin + float64(k.Y)*size.Y,
		Z: tree.bounds.Zmin + float64(k.Z)*size.Z,
	}
}

func (tree *GridTree) clamp(c geometry.Coordinate) geometry.Coordinate {
	b := tree.bounds
	return geometry.Coordinate{
		X: math.Min(math.Max(c.X, b.Xmin), b.Xmax),
		Y: math.Min(math.Max(c.Y, b.Ymin), b.Ymax),
		Z: math.Min(math.Max(c.Z, b.Zmin), b.Zmax),
	}
}

func (tree *GridTree) launchParallelPointLoaders(waitGroup *sync.WaitGroup) {
	work := make(chan pendingPoint, tree.loaders*64)
	for i := 0; i < tree.loaders; i++ {
		waitGroup.Add(1)
		go tree.launchPointLoader(work, waitGroup)
	}
	for _, p := range tree.pending {
		work <- p
	}
	close(work)
}

func (tree *GridTree) launchPointLoader(work chan pendingPoint, waitGroup *sync.WaitGroup) {
	defer waitGroup.Done()
	for p := range work {
		tree.rootNode.AddDataPoint(p.index, p.position)
	}
}
