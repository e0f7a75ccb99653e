package grid_tree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
	"github.com/ecopia-map/geofuse/internal/octree"
)

func TestGridTreeLeavesAtFixedDepth(t *testing.T) {
	tree, err := NewGridTree(geometry.NewBoundingBox(0, 8, 0, 8, 0, 8), 3)
	require.NoError(t, err)

	positions := []geometry.Coordinate{
		{X: 0.5, Y: 0.5, Z: 0.5},
		{X: 7.5, Y: 0.5, Z: 0.5},
		{X: 0.6, Y: 0.4, Z: 0.9},
		{X: 8, Y: 8, Z: 8},
		{X: -3, Y: 4.5, Z: 2.5},
	}
	for i, p := range positions {
		tree.AddPoint(i, p)
	}
	require.NoError(t, tree.Build())
	assert.True(t, tree.IsBuilt())

	leaves := tree.Leaves()
	require.Len(t, leaves, 4)
	assert.Equal(t, []int{0, 2}, leaves[octree.Key{X: 0, Y: 0, Z: 0}].GetPoints())
	assert.Equal(t, []int{1}, leaves[octree.Key{X: 7, Y: 0, Z: 0}].GetPoints())
	assert.Equal(t, []int{3}, leaves[octree.Key{X: 7, Y: 7, Z: 7}].GetPoints())
	// clamped to the border cell
	assert.Equal(t, []int{4}, leaves[octree.Key{X: 0, Y: 4, Z: 2}].GetPoints())

	root := tree.GetRootNode()
	assert.True(t, root.IsRoot())
	assert.EqualValues(t, 5, root.TotalNumberOfPoints())
	assert.Nil(t, root.GetParent())

	leaf := leaves[octree.Key{X: 7, Y: 0, Z: 0}]
	assert.True(t, leaf.IsLeaf())
	assert.Equal(t, 3, leaf.Level())
	assert.Equal(t, 7.0, leaf.GetBoundingBox().Xmin)
	assert.Equal(t, 8.0, leaf.GetBoundingBox().Xmax)

	assert.Equal(t, geometry.Coordinate{X: 1, Y: 1, Z: 1}, tree.LeafSize())
	assert.Equal(t, geometry.Coordinate{X: 2, Y: 3, Z: 4}, tree.LatticePoint(octree.Key{X: 2, Y: 3, Z: 4}))

	err = tree.Build()
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	assert.True(t, tree.Clear())
	assert.False(t, tree.IsBuilt())
	assert.Nil(t, tree.GetRootNode())
}

func TestGridTreeDepthRange(t *testing.T) {
	box := geometry.NewBoundingBox(0, 1, 0, 1, 0, 1)
	_, err := NewGridTree(box, 0)
	assert.True(t, errors.Is(err, errs.ErrPrecondition))
	_, err = NewGridTree(box, MaxDepth+1)
	assert.True(t, errors.Is(err, errs.ErrPrecondition))
}

func TestGridTreeManyPointsIsDeterministic(t *testing.T) {
	tree, err := NewGridTree(geometry.NewBoundingBox(0, 10, 0, 10, 0, 10), 2)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		tree.AddPoint(i, geometry.Coordinate{X: float64(i%10) + 0.5, Y: 1, Z: 1})
	}
	require.NoError(t, tree.Build())

	total := 0
	for _, leaf := range tree.Leaves() {
		points := leaf.GetPoints()
		total += len(points)
		for i := 1; i < len(points); i++ {
			assert.Less(t, points[i-1], points[i])
		}
	}
	assert.Equal(t, 1000, total)
	assert.Len(t, tree.Leaves(), 4)
}

func TestVoxelGridKeepsFirstPointPerCell(t *testing.T) {
	grid := NewVoxelGrid(1)
	assert.True(t, grid.AddPoint(0, geometry.Coordinate{X: 0.1, Y: 0.1, Z: 0.1}))
	assert.False(t, grid.AddPoint(1, geometry.Coordinate{X: 0.9, Y: 0.2, Z: 0.3}))
	assert.True(t, grid.AddPoint(2, geometry.Coordinate{X: -0.1, Y: 0.1, Z: 0.1}))
	assert.True(t, grid.AddPoint(3, geometry.Coordinate{X: 1.5, Y: 0.1, Z: 0.1}))
	assert.Equal(t, []int{0, 2, 3}, grid.Retained())
	assert.Equal(t, 3, grid.NumberOfCells())
}
