// Package elevation samples gridded elevation models onto the pixel axes of a
// raster scene.
package elevation

import (
	"context"
	"math"
	"sort"

	"github.com/ecopia-map/geofuse/internal/geometry"
)

// Grid holds elevation samples on two monotonic axes. Values are row-major with
// one row per Y entry: Values[row*len(X)+col].
type Grid struct {
	Variable string
	X        []float64
	Y        []float64
	Values   []float64
}

func (g *Grid) At(row, col int) float64 {
	return g.Values[row*len(g.X)+col]
}

func (g *Grid) Len() int {
	return len(g.Values)
}

type Source interface {
	// Query samples variable on width x height axes spanning region, using nearest
	// neighbour lookup on the store's own coordinates.
	Query(ctx context.Context, variable string, region geometry.Region, width, height int) (*Grid, error)
}

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// RegionAxes builds the query axes of a scene: x spans left to right over width
// samples, y spans bottom to top over height samples.
func RegionAxes(region geometry.Region, width, height int) ([]float64, []float64) {
	return Linspace(region.Left, region.Right, width), Linspace(region.Bottom, region.Top, height)
}

// NearestIndices maps every target to the index of the closest axis value. The axis
// must be monotonic, ascending or descending. Equidistant candidates resolve to the
// larger coordinate value and targets outside the axis clamp to its ends.
func NearestIndices(axis []float64, targets []float64) []int {
	out := make([]int, len(targets))
	n := len(axis)
	if n == 0 {
		return out
	}
	descending := n > 1 && axis[0] > axis[n-1]
	for k, t := range targets {
		var i int
		if descending {
			i = sort.Search(n, func(j int) bool { return axis[j] <= t })
		} else {
			i = sort.Search(n, func(j int) bool { return axis[j] >= t })
		}
		switch {
		case i == 0:
			out[k] = 0
		case i == n:
			out[k] = n - 1
		default:
			prev, next := i-1, i
			dPrev, dNext := math.Abs(t-axis[prev]), math.Abs(axis[next]-t)
			switch {
			case dPrev < dNext:
				out[k] = prev
			case dNext < dPrev:
				out[k] = next
			case axis[next] > axis[prev]:
				out[k] = next
			default:
				out[k] = prev
			}
		}
	}
	return out
}
