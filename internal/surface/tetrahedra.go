package surface

import (
	"math"

	"github.com/ecopia-map/geofuse/internal/mesh"
	"github.com/ecopia-map/geofuse/internal/octree"
	"github.com/ecopia-map/geofuse/internal/octree/grid_tree"
)

// Six tetrahedra around the 0-7 diagonal of a cube. Every one follows a monotone path along
// the axes, so neighboring cubes split their shared faces the same way.
var tetrahedra = [6][4]int{
	{0, 1, 3, 7},
	{0, 2, 3, 7},
	{0, 2, 6, 7},
	{0, 4, 6, 7},
	{0, 4, 5, 7},
	{0, 1, 5, 7},
}

// identifies a mesh vertex by the lattice edge it lies on. A vertex sitting on a lattice
// corner uses that corner at both ends.
type edgeKey struct {
	a, b octree.Key
}

type crossing struct {
	key edgeKey
	pos [3]float64
}

// Extracts the zero level set of the sampled signed distance with marching tetrahedra.
// Vertices are shared between the triangles of neighboring cells.
type polygonizer struct {
	tree      *grid_tree.GridTree
	values    map[octree.Key]float64
	minNormal float64
	lookup    map[edgeKey]int
	vertices  [][3]float64
	faces     [][3]int
}

func newPolygonizer(tree *grid_tree.GridTree, values map[octree.Key]float64, diagonal float64) *polygonizer {
	return &polygonizer{
		tree:      tree,
		values:    values,
		minNormal: 1e-12 * diagonal * diagonal,
		lookup:    make(map[edgeKey]int),
	}
}

func (p *polygonizer) polygonizeCell(cell octree.Key) {
	var keys [8]octree.Key
	var values [8]float64
	for c := 0; c < 8; c++ {
		keys[c] = cornerKey(cell, c)
		v, ok := p.values[keys[c]]
		if !ok {
			v = math.NaN()
		}
		values[c] = v
	}
	for _, t := range tetrahedra {
		p.polygonizeTetrahedron(t, &keys, &values)
	}
}

func (p *polygonizer) polygonizeTetrahedron(t [4]int, keys *[8]octree.Key, values *[8]float64) {
	var inside, outside []int
	for _, c := range t {
		v := values[c]
		if math.IsNaN(v) {
			return
		}
		if v < 0 {
			inside = append(inside, c)
		} else {
			outside = append(outside, c)
		}
	}

	// faces point from the negative side toward the positive side
	up := p.direction(inside, outside, keys)

	switch len(inside) {
	case 1:
		lone := inside[0]
		p.triangle(up,
			p.crossing(lone, outside[0], keys, values),
			p.crossing(lone, outside[1], keys, values),
			p.crossing(lone, outside[2], keys, values))
	case 3:
		lone := outside[0]
		p.triangle(up,
			p.crossing(lone, inside[0], keys, values),
			p.crossing(lone, inside[1], keys, values),
			p.crossing(lone, inside[2], keys, values))
	case 2:
		ac := p.crossing(inside[0], outside[0], keys, values)
		ad := p.crossing(inside[0], outside[1], keys, values)
		bd := p.crossing(inside[1], outside[1], keys, values)
		bc := p.crossing(inside[1], outside[0], keys, values)
		p.triangle(up, ac, ad, bd)
		p.triangle(up, ac, bd, bc)
	}
}

func (p *polygonizer) direction(inside, outside []int, keys *[8]octree.Key) [3]float64 {
	if len(inside) == 0 || len(outside) == 0 {
		return [3]float64{}
	}
	var in, out [3]float64
	for _, c := range inside {
		q := p.tree.LatticePoint(keys[c]).Array()
		in = [3]float64{in[0] + q[0], in[1] + q[1], in[2] + q[2]}
	}
	for _, c := range outside {
		q := p.tree.LatticePoint(keys[c]).Array()
		out = [3]float64{out[0] + q[0], out[1] + q[1], out[2] + q[2]}
	}
	ni, no := float64(len(inside)), float64(len(outside))
	return [3]float64{out[0]/no - in[0]/ni, out[1]/no - in[1]/ni, out[2]/no - in[2]/ni}
}

// zero crossing on the edge between corners i and j, computed in key order so that every
// cell sharing the edge finds the same point
func (p *polygonizer) crossing(i, j int, keys *[8]octree.Key, values *[8]float64) crossing {
	ka, kb := keys[i], keys[j]
	fa, fb := values[i], values[j]
	if keyLess(kb, ka) {
		ka, kb = kb, ka
		fa, fb = fb, fa
	}
	t := fa / (fa - fb)
	switch {
	case t <= 1e-9:
		return crossing{key: edgeKey{ka, ka}, pos: p.tree.LatticePoint(ka).Array()}
	case t >= 1-1e-9:
		return crossing{key: edgeKey{kb, kb}, pos: p.tree.LatticePoint(kb).Array()}
	}
	a := p.tree.LatticePoint(ka).Array()
	b := p.tree.LatticePoint(kb).Array()
	return crossing{
		key: edgeKey{ka, kb},
		pos: [3]float64{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1]), a[2] + t*(b[2]-a[2])},
	}
}

// adds a triangle oriented along up, dropping degenerate ones
func (p *polygonizer) triangle(up [3]float64, a, b, c crossing) {
	if a.key == b.key || b.key == c.key || a.key == c.key {
		return
	}
	n := mesh.FaceNormal(a.pos, b.pos, c.pos)
	if n[0]*n[0]+n[1]*n[1]+n[2]*n[2] <= p.minNormal*p.minNormal {
		return
	}
	if n[0]*up[0]+n[1]*up[1]+n[2]*up[2] < 0 {
		b, c = c, b
	}
	p.faces = append(p.faces, [3]int{p.vertex(a), p.vertex(b), p.vertex(c)})
}

func (p *polygonizer) vertex(c crossing) int {
	if i, ok := p.lookup[c.key]; ok {
		return i
	}
	i := len(p.vertices)
	p.lookup[c.key] = i
	p.vertices = append(p.vertices, c.pos)
	return i
}
