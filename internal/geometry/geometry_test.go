package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOctantBoxes(t *testing.T) {
	parent := NewBoundingBox(0, 2, 0, 4, 0, 8)

	low := NewBoundingBoxFromParent(parent, 0)
	assert.Equal(t, NewBoundingBox(0, 1, 0, 2, 0, 4), low)

	high := NewBoundingBoxFromParent(parent, 7)
	assert.Equal(t, NewBoundingBox(1, 2, 2, 4, 4, 8), high)

	onlyY := NewBoundingBoxFromParent(parent, 2)
	assert.Equal(t, NewBoundingBox(0, 1, 2, 4, 0, 4), onlyY)
}

func TestBoundingBoxOfAndPaddedCube(t *testing.T) {
	assert.Nil(t, BoundingBoxOf(nil))

	box := BoundingBoxOf([][3]float64{{1, 2, 3}, {-1, 5, 3}, {0, 0, 4}})
	require.NotNil(t, box)
	assert.Equal(t, -1.0, box.Xmin)
	assert.Equal(t, 5.0, box.Ymax)
	assert.Equal(t, 4.0, box.Zmax)

	cube := box.PaddedCube(0.1)
	assert.InDelta(t, 5.5, cube.Xmax-cube.Xmin, 1e-9)
	assert.InDelta(t, 5.5, cube.Zmax-cube.Zmin, 1e-9)
	assert.True(t, cube.Contains(Coordinate{X: -1, Y: 0, Z: 3}))
}

func TestRegion(t *testing.T) {
	r := Region{Left: 10, Right: 20, Bottom: 5, Top: 7}
	require.NoError(t, r.Validate())
	assert.Equal(t, 10.0, r.Width())
	assert.Equal(t, 2.0, r.Height())
	assert.Equal(t, r, RegionFromBound(r.Bound()))

	assert.Error(t, Region{Left: 1, Right: 1, Bottom: 0, Top: 1}.Validate())
	assert.True(t, Region{}.IsZero())
}
