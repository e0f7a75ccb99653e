package surface

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/mesh"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
)

// z = 0.3x + 0.2y + 1 sampled on a 10 x 10 grid of unit spacing
func tiltedPlane(t *testing.T) *pointcloud.PointCloud {
	t.Helper()
	var positions, colors [][3]float64
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			positions = append(positions, [3]float64{float64(x), float64(y), planeZ(float64(x), float64(y))})
			colors = append(colors, [3]float64{200, 100, 50})
		}
	}
	pc, err := pointcloud.NewColored("EPSG:32632", positions, colors, pointcloud.ColorSpaceByte)
	require.NoError(t, err)
	return pc
}

func planeZ(x, y float64) float64 {
	return 0.3*x + 0.2*y + 1
}

var planeNormal = mesh.Unit([3]float64{-0.3, -0.2, 1})

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func TestEstimateNormalsOnPlane(t *testing.T) {
	pc := tiltedPlane(t)
	normals, err := EstimateNormals(pc, Options{Workers: 3})
	require.NoError(t, err)
	require.Len(t, normals, pc.Len())
	for i, n := range normals {
		assert.InDelta(t, 1, dot(n, planeNormal), 1e-9, "point %d", i)
	}
	assert.False(t, pc.HasNormals(), "model untouched")
}

func TestEstimateNormalsOutward(t *testing.T) {
	// Fibonacci sphere of radius 5 around (10, -4, 2)
	center := [3]float64{10, -4, 2}
	n := 400
	positions := make([][3]float64, n)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < n; i++ {
		z := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - z*z)
		phi := golden * float64(i)
		positions[i] = [3]float64{center[0] + 5*r*math.Cos(phi), center[1] + 5*r*math.Sin(phi), center[2] + 5*z}
	}
	pc := pointcloud.New("EPSG:32632", positions)

	normals, err := EstimateNormals(pc, Options{Neighbors: 10, Orientation: OrientationOutward})
	require.NoError(t, err)
	for i, nrm := range normals {
		radial := mesh.Unit([3]float64{positions[i][0] - center[0], positions[i][1] - center[1], positions[i][2] - center[2]})
		assert.Greater(t, dot(nrm, radial), 0.95, "point %d", i)
	}
}

func TestReconstructPlane(t *testing.T) {
	pc := tiltedPlane(t)
	m, err := NewReconstructor(DefaultOptions()).Reconstruct(pc, 4)
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	require.NotZero(t, m.NumFaces())
	assert.True(t, pc.HasNormals())
	assert.Equal(t, "EPSG:32632", m.CRS)

	for i, v := range m.Vertices {
		assert.InDelta(t, planeZ(v[0], v[1]), v[2], 1e-6, "vertex %d off the plane", i)
	}
	require.True(t, m.HasColors())
	for _, c := range m.Colors {
		assert.InDelta(t, 200.0/255, c[0], 1e-9)
		assert.InDelta(t, 100.0/255, c[1], 1e-9)
		assert.InDelta(t, 50.0/255, c[2], 1e-9)
	}
	for _, n := range m.Normals {
		assert.Greater(t, dot(n, planeNormal), 0.999)
	}
	for _, f := range m.Faces {
		assert.Greater(t, dot(mesh.FaceNormal(m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]), planeNormal), 0.0)
	}
}

func TestHigherDepthGivesFinerMesh(t *testing.T) {
	coarse, err := NewReconstructor(DefaultOptions()).Reconstruct(tiltedPlane(t), 3)
	require.NoError(t, err)
	fine, err := NewReconstructor(DefaultOptions()).Reconstruct(tiltedPlane(t), 5)
	require.NoError(t, err)
	assert.Greater(t, fine.NumFaces(), coarse.NumFaces())
	assert.Greater(t, fine.NumVertices(), coarse.NumVertices())
}

func TestReconstructIsDeterministic(t *testing.T) {
	a, err := NewReconstructor(Options{Workers: 1}).Reconstruct(tiltedPlane(t), 4)
	require.NoError(t, err)
	b, err := NewReconstructor(Options{Workers: 8}).Reconstruct(tiltedPlane(t), 4)
	require.NoError(t, err)
	assert.Equal(t, a.Faces, b.Faces)
	assert.Equal(t, a.Vertices, b.Vertices)
}

func TestReconstructFailures(t *testing.T) {
	r := NewReconstructor(DefaultOptions())

	_, err := r.Reconstruct(pointcloud.New("EPSG:4326", nil), 5)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	for _, depth := range []int{0, 13, -2} {
		_, err = r.Reconstruct(tiltedPlane(t), depth)
		assert.True(t, errors.Is(err, errs.ErrPrecondition), "depth %d", depth)
	}

	_, err = r.Reconstruct(pointcloud.New("EPSG:4326", [][3]float64{{0, 0, 0}, {1, 1, 1}}), 5)
	assert.True(t, errors.Is(err, errs.ErrPrecondition))
}

func TestNearestNeighbors(t *testing.T) {
	positions := [][3]float64{{0, 0, 0}, {3, 0, 0}, {1, 0, 0}, {0, 2, 0}, {1, 0, 0}}
	ix := newNeighborIndex(positions)

	got := ix.nearest([3]float64{0.1, 0, 0}, 3)
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].index)
	assert.Equal(t, 2, got[1].index)
	assert.Equal(t, 4, got[2].index)
	assert.InDelta(t, 0.81, got[1].dist2, 1e-12)

	assert.Len(t, ix.nearest([3]float64{}, 50), len(positions))
	assert.Equal(t, [3]float64{0, 0, 0}, positions[0], "positions are not reordered")
}

func TestParseOrientation(t *testing.T) {
	assert.Equal(t, OrientationUp, ParseOrientation("up"))
	assert.Equal(t, OrientationOutward, ParseOrientation(" Outward"))
	assert.Equal(t, Orientation(""), ParseOrientation("inward"))
}
