package grid_tree

import (
	"math"
	"sort"

	"github.com/ecopia-map/geofuse/internal/geometry"
)

type gridIndex struct {
	x int
	y int
	z int
}

// A cubic cell of a regular grid retaining the first point pushed into it
type gridCell struct {
	index    gridIndex
	size     float64
	point    int
	occupied bool
}

// pushes a point into the cell. Returns false when the cell already retains a point
// and the new one is rejected.
func (c *gridCell) pushPoint(index int) bool {
	if c.occupied {
		return false
	}
	c.point = index
	c.occupied = true
	return true
}

func getDimensionIndex(value float64, cellSize float64) int {
	return int(math.Floor(value / cellSize))
}

// VoxelGrid partitions space into cubes of a fixed side and keeps one point per occupied cube.
type VoxelGrid struct {
	cellSize float64
	cells    map[gridIndex]*gridCell
}

func NewVoxelGrid(cellSize float64) *VoxelGrid {
	return &VoxelGrid{
		cellSize: cellSize,
		cells:    make(map[gridIndex]*gridCell),
	}
}

// AddPoint reports whether the point was retained by its cell.
func (g *VoxelGrid) AddPoint(index int, position geometry.Coordinate) bool {
	key := gridIndex{
		getDimensionIndex(position.X, g.cellSize),
		getDimensionIndex(position.Y, g.cellSize),
		getDimensionIndex(position.Z, g.cellSize),
	}
	cell := g.cells[key]
	if cell == nil {
		cell = &gridCell{index: key, size: g.cellSize}
		g.cells[key] = cell
	}
	return cell.pushPoint(index)
}

// Retained returns the indices kept by the cells in ascending order.
func (g *VoxelGrid) Retained() []int {
	out := make([]int, 0, len(g.cells))
	for _, cell := range g.cells {
		out = append(out, cell.point)
	}
	sort.Ints(out)
	return out
}

func (g *VoxelGrid) NumberOfCells() int {
	return len(g.cells)
}
