package surface

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// a position tagged with its index in the source cloud
type sample struct {
	pos   [3]float64
	index int
}

func (s sample) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return s.pos[d] - c.(sample).pos[d]
}

func (s sample) Dims() int { return 3 }

// squared euclidean distance
func (s sample) Distance(c kdtree.Comparable) float64 {
	q := c.(sample)
	dx := s.pos[0] - q.pos[0]
	dy := s.pos[1] - q.pos[1]
	dz := s.pos[2] - q.pos[2]
	return dx*dx + dy*dy + dz*dz
}

type samples []sample

func (s samples) Index(i int) kdtree.Comparable         { return s[i] }
func (s samples) Len() int                              { return len(s) }
func (s samples) Pivot(d kdtree.Dim) int                { return plane{s: s, dim: d}.Pivot() }
func (s samples) Slice(start, end int) kdtree.Interface { return s[start:end] }

type plane struct {
	s   samples
	dim kdtree.Dim
}

func (p plane) Len() int                               { return len(p.s) }
func (p plane) Less(i, j int) bool                     { return p.s[i].pos[p.dim] < p.s[j].pos[p.dim] }
func (p plane) Pivot() int                             { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer { p.s = p.s[start:end]; return p }
func (p plane) Swap(i, j int)                          { p.s[i], p.s[j] = p.s[j], p.s[i] }

type neighbor struct {
	index int
	dist2 float64
}

// k nearest neighbor index over the positions of a cloud. Queries are safe for concurrent use.
type neighborIndex struct {
	tree *kdtree.Tree
	size int
}

func newNeighborIndex(positions [][3]float64) *neighborIndex {
	s := make(samples, len(positions))
	for i, p := range positions {
		s[i] = sample{pos: p, index: i}
	}
	return &neighborIndex{tree: kdtree.New(s, false), size: len(s)}
}

// Returns the k nearest positions to q ordered by distance, ties broken by index
func (ix *neighborIndex) nearest(q [3]float64, k int) []neighbor {
	if k > ix.size {
		k = ix.size
	}
	if k < 1 {
		return nil
	}
	keeper := kdtree.NewNKeeper(k)
	ix.tree.NearestSet(keeper, sample{pos: q, index: -1})

	out := make([]neighbor, 0, k)
	for _, c := range keeper.Heap {
		if c.Comparable == nil {
			continue
		}
		out = append(out, neighbor{index: c.Comparable.(sample).index, dist2: c.Dist})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].dist2 != out[j].dist2 {
			return out[i].dist2 < out[j].dist2
		}
		return out[i].index < out[j].index
	})
	return out
}
