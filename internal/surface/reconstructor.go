// Package surface turns an oriented point cloud into a colored triangle mesh: a signed distance
// blended from the nearest oriented samples is polygonized on the lattice of a sparse octree.
package surface

import (
	"math"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
	"github.com/ecopia-map/geofuse/internal/io"
	"github.com/ecopia-map/geofuse/internal/mesh"
	"github.com/ecopia-map/geofuse/internal/octree"
	"github.com/ecopia-map/geofuse/internal/octree/grid_tree"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
)

const (
	MinDepth = 1
	MaxDepth = grid_tree.MaxDepth
)

type Reconstructor struct {
	opts Options
}

func NewReconstructor(opts Options) *Reconstructor {
	return &Reconstructor{opts: opts.withDefaults()}
}

// Reconstruct builds a mesh over the cloud on an octree of the given depth. Normals are
// estimated and stored on the model when it has none.
func (r *Reconstructor) Reconstruct(model *pointcloud.PointCloud, depth int) (*mesh.Mesh, error) {
	if model.IsEmpty() {
		return nil, errs.InvalidState("surface: no points to reconstruct")
	}
	if depth < MinDepth || depth > MaxDepth {
		return nil, errs.Precondition("surface: depth %d outside [%d,%d]", depth, MinDepth, MaxDepth)
	}
	if model.Len() < 3 {
		return nil, errs.Precondition("surface: %d points cannot define a surface", model.Len())
	}

	if !model.HasNormals() {
		normals, err := EstimateNormals(model, r.opts)
		if err != nil {
			return nil, err
		}
		if err := model.SetNormals(normals); err != nil {
			return nil, err
		}
	}

	glog.Infof("> reconstructing surface at depth %d...", depth)

	tree, err := r.buildTree(model, depth)
	if err != nil {
		return nil, err
	}

	index := newNeighborIndex(model.Positions())
	leaf := tree.LeafSize()
	diagonal := math.Sqrt(leaf.X*leaf.X + leaf.Y*leaf.Y + leaf.Z*leaf.Z)
	f := &signedDistance{
		positions: model.Positions(),
		normals:   model.Normals(),
		index:     index,
		k:         r.opts.FieldNeighbors,
		sigma2:    diagonal * diagonal,
		support2:  math.Pow(r.opts.SupportScale*diagonal, 2),
	}

	cells := activeCells(tree)
	corners := cornersOf(cells)
	values, err := r.evaluate(tree, f, corners)
	if err != nil {
		return nil, err
	}

	p := newPolygonizer(tree, values, diagonal)
	for _, cell := range cells {
		p.polygonizeCell(cell)
	}

	m := &mesh.Mesh{
		CRS:      model.CRS(),
		Vertices: p.vertices,
		Faces:    p.faces,
	}
	if model.HasColors() {
		colors, err := r.interpolateColors(model, index, m.Vertices)
		if err != nil {
			return nil, err
		}
		m.Colors = colors
	}
	m.ComputeVertexNormals()

	glog.Infof("> surface at depth %d: %s vertices, %s triangles from %s active cells",
		depth, humanize.Comma(int64(m.NumVertices())), humanize.Comma(int64(m.NumFaces())), humanize.Comma(int64(len(cells))))
	return m, nil
}

func (r *Reconstructor) buildTree(model *pointcloud.PointCloud, depth int) (*grid_tree.GridTree, error) {
	tree, err := grid_tree.NewGridTree(model.Bounds().PaddedCube(r.opts.Padding), depth)
	if err != nil {
		return nil, err
	}
	for i, p := range model.Positions() {
		tree.AddPoint(i, geometry.FromArray(p))
	}
	if err := tree.Build(); err != nil {
		return nil, err
	}
	return tree, nil
}

// evaluates the signed distance at every corner on the worker pool
func (r *Reconstructor) evaluate(tree *grid_tree.GridTree, f *signedDistance, corners []octree.Key) (map[octree.Key]float64, error) {
	out := make([]float64, len(corners))
	err := io.ForEachRange(len(corners), chunkSize, r.opts.Workers, func(unit *io.WorkUnit) error {
		for i := unit.Start; i < unit.End; i++ {
			out[i] = f.at(tree.LatticePoint(corners[i]).Array())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	values := make(map[octree.Key]float64, len(corners))
	for i, k := range corners {
		values[k] = out[i]
	}
	return values, nil
}

// inverse distance blend of the normalized colors of the nearest source points
func (r *Reconstructor) interpolateColors(model *pointcloud.PointCloud, index *neighborIndex, vertices [][3]float64) ([][3]float64, error) {
	source, err := model.NormalizedColors()
	if err != nil {
		return nil, err
	}
	colors := make([][3]float64, len(vertices))
	err = io.ForEachRange(len(vertices), chunkSize, r.opts.Workers, func(unit *io.WorkUnit) error {
		for i := unit.Start; i < unit.End; i++ {
			colors[i] = blendColor(source, index.nearest(vertices[i], r.opts.ColorNeighbors))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return colors, nil
}

func blendColor(source [][3]float64, neighbors []neighbor) [3]float64 {
	var c [3]float64
	var total float64
	for _, nb := range neighbors {
		d := math.Sqrt(nb.dist2)
		if d < 1e-12 {
			return source[nb.index]
		}
		w := 1 / d
		c[0] += w * source[nb.index][0]
		c[1] += w * source[nb.index][1]
		c[2] += w * source[nb.index][2]
		total += w
	}
	if total == 0 {
		return c
	}
	return [3]float64{c[0] / total, c[1] / total, c[2] / total}
}

type signedDistance struct {
	positions [][3]float64
	normals   [][3]float64
	index     *neighborIndex
	k         int
	sigma2    float64
	support2  float64
}

// Gaussian weighted mean of the distances to the tangent planes of the nearest samples.
// NaN when no sample lies within the support radius.
func (f *signedDistance) at(q [3]float64) float64 {
	var num, den float64
	for _, nb := range f.index.nearest(q, f.k) {
		if nb.dist2 > f.support2 {
			break
		}
		p := f.positions[nb.index]
		n := f.normals[nb.index]
		w := math.Exp(-nb.dist2 / f.sigma2)
		num += w * (n[0]*(q[0]-p[0]) + n[1]*(q[1]-p[1]) + n[2]*(q[2]-p[2]))
		den += w
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// leaves holding samples plus their 26 neighbors, in key order
func activeCells(tree *grid_tree.GridTree) []octree.Key {
	cells := 1 << uint(tree.Depth())
	active := make(map[octree.Key]struct{})
	for k := range tree.Leaves() {
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for dz := -1; dz <= 1; dz++ {
					n := octree.Key{X: k.X + dx, Y: k.Y + dy, Z: k.Z + dz}
					if n.X < 0 || n.Y < 0 || n.Z < 0 || n.X >= cells || n.Y >= cells || n.Z >= cells {
						continue
					}
					active[n] = struct{}{}
				}
			}
		}
	}
	return sortedKeys(active)
}

func cornersOf(cells []octree.Key) []octree.Key {
	corners := make(map[octree.Key]struct{}, len(cells)*2)
	for _, k := range cells {
		for c := 0; c < 8; c++ {
			corners[cornerKey(k, c)] = struct{}{}
		}
	}
	return sortedKeys(corners)
}

// corner bits are x=1, y=2, z=4
func cornerKey(cell octree.Key, corner int) octree.Key {
	return octree.Key{X: cell.X + corner&1, Y: cell.Y + (corner>>1)&1, Z: cell.Z + (corner>>2)&1}
}

func sortedKeys(set map[octree.Key]struct{}) []octree.Key {
	keys := make([]octree.Key, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
	return keys
}

func keyLess(a, b octree.Key) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}
