// Package mesh holds the triangle mesh produced by surface reconstruction.
package mesh

import (
	"math"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
)

// Mesh is an indexed triangle mesh. Colors are normalized to [0, 1] and, like normals,
// are either absent or one per vertex.
type Mesh struct {
	CRS      string
	Vertices [][3]float64
	Faces    [][3]int
	Colors   [][3]float64
	Normals  [][3]float64
}

func (m *Mesh) NumVertices() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices)
}

func (m *Mesh) NumFaces() int {
	if m == nil {
		return 0
	}
	return len(m.Faces)
}

func (m *Mesh) HasColors() bool {
	return len(m.Colors) > 0
}

func (m *Mesh) HasNormals() bool {
	return len(m.Normals) > 0
}

func (m *Mesh) Bounds() *geometry.BoundingBox {
	return geometry.BoundingBoxOf(m.Vertices)
}

// Validate checks the lockstep of the per vertex attributes and the face indices.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	if m.HasColors() && len(m.Colors) != n {
		return errs.Precondition("mesh: %d colors for %d vertices", len(m.Colors), n)
	}
	if m.HasNormals() && len(m.Normals) != n {
		return errs.Precondition("mesh: %d normals for %d vertices", len(m.Normals), n)
	}
	for i, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= n {
				return errs.Precondition("mesh: face %d references vertex %d of %d", i, v, n)
			}
		}
	}
	return nil
}

// ComputeVertexNormals sets every vertex normal to the normalized sum of the area weighted
// normals of the faces sharing it.
func (m *Mesh) ComputeVertexNormals() {
	normals := make([][3]float64, len(m.Vertices))
	for _, f := range m.Faces {
		n := FaceNormal(m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]])
		for _, v := range f {
			normals[v][0] += n[0]
			normals[v][1] += n[1]
			normals[v][2] += n[2]
		}
	}
	for i := range normals {
		normals[i] = Unit(normals[i])
	}
	m.Normals = normals
}

// SurfaceArea returns the summed area of the faces.
func (m *Mesh) SurfaceArea() float64 {
	var area float64
	for _, f := range m.Faces {
		n := FaceNormal(m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]])
		area += Norm(n) / 2
	}
	return area
}

// FaceNormal returns (b-a) x (c-a), whose length is twice the triangle area.
func FaceNormal(a, b, c [3]float64) [3]float64 {
	u := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	return [3]float64{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
}

func Norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Unit scales v to length 1. The zero vector is returned unchanged.
func Unit(v [3]float64) [3]float64 {
	l := Norm(v)
	if l == 0 {
		return v
	}
	return [3]float64{v[0] / l, v[1] / l, v[2] / l}
}
