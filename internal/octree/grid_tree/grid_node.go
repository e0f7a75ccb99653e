package grid_tree

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ecopia-map/geofuse/internal/geometry"
	"github.com/ecopia-map/geofuse/internal/octree"
)

// Models a node of the octree, which can either be a leaf (a node at the maximum depth) or not.
// Children are created lazily, so empty octants never get a node. Leaves store the indices of the
// points falling in their cell; inner nodes only count them.
type GridNode struct {
	root                bool
	parent              *GridNode
	boundingBox         *geometry.BoundingBox
	children            [8]*GridNode
	points              []int
	level               int
	maxLevel            int
	key                 octree.Key
	totalNumberOfPoints int64
	numberOfPoints      int32

	sync.RWMutex
}

// Instantiates a new GridNode
func NewGridNode(parent *GridNode, boundingBox *geometry.BoundingBox, key octree.Key, level, maxLevel int) *GridNode {
	return &GridNode{
		root:        parent == nil,
		parent:      parent,
		boundingBox: boundingBox,
		level:       level,
		maxLevel:    maxLevel,
		key:         key,
	}
}

// Adds a point to the leaf of its cell, creating the nodes on the way down when missing
func (n *GridNode) AddDataPoint(index int, position geometry.Coordinate) {
	atomic.AddInt64(&n.totalNumberOfPoints, 1)

	if n.IsLeaf() {
		n.Lock()
		n.points = append(n.points, index)
		n.Unlock()
		atomic.AddInt32(&n.numberOfPoints, 1)
		return
	}

	octant := getOctantFromElement(position, n.boundingBox)
	n.getOrCreateChild(octant).AddDataPoint(index, position)
}

func (n *GridNode) getOrCreateChild(octant uint8) *GridNode {
	n.RLock()
	child := n.children[octant]
	n.RUnlock()
	if child != nil {
		return child
	}

	n.Lock()
	defer n.Unlock()
	if n.children[octant] == nil {
		n.children[octant] = NewGridNode(
			n,
			geometry.NewBoundingBoxFromParent(n.boundingBox, octant),
			childKey(n.key, octant),
			n.level+1,
			n.maxLevel,
		)
	}
	return n.children[octant]
}

func (n *GridNode) GetBoundingBox() *geometry.BoundingBox {
	return n.boundingBox
}

func (n *GridNode) GetChildren() [8]octree.INode {
	var children [8]octree.INode
	for i, child := range n.children {
		if child != nil {
			children[i] = child
		}
	}
	return children
}

func (n *GridNode) GetPoints() []int {
	return n.points
}

func (n *GridNode) TotalNumberOfPoints() int64 {
	return atomic.LoadInt64(&n.totalNumberOfPoints)
}

func (n *GridNode) NumberOfPoints() int32 {
	return atomic.LoadInt32(&n.numberOfPoints)
}

func (n *GridNode) IsLeaf() bool {
	return n.level == n.maxLevel
}

func (n *GridNode) IsRoot() bool {
	return n.root
}

func (n *GridNode) GetParent() octree.INode {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *GridNode) Level() int {
	return n.level
}

func (n *GridNode) Key() octree.Key {
	return n.key
}

// Returns the index of the octant that contains the given position within this boundingBox
func getOctantFromElement(position geometry.Coordinate, bbox *geometry.BoundingBox) uint8 {
	var result uint8 = 0
	if position.X > bbox.Xmid {
		result += 1
	}
	if position.Y > bbox.Ymid {
		result += 2
	}
	if position.Z > bbox.Zmid {
		result += 4
	}
	return result
}

func childKey(parent octree.Key, octant uint8) octree.Key {
	return octree.Key{
		X: parent.X*2 + int(octant&1),
		Y: parent.Y*2 + int(octant>>1&1),
		Z: parent.Z*2 + int(octant>>2&1),
	}
}

// sorts the point indices of every leaf so the layout does not depend on the loading order,
// and collects the leaves by key
func (n *GridNode) BuildPoints(leaves map[octree.Key]octree.INode) {
	if n.IsLeaf() {
		sort.Ints(n.points)
		if len(n.points) > 0 {
			leaves[n.key] = n
		}
		return
	}
	for _, child := range n.children {
		if child != nil {
			child.BuildPoints(leaves)
		}
	}
}
