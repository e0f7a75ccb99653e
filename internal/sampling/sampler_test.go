package sampling

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
)

func cloud(t *testing.T, n int) *pointcloud.PointCloud {
	t.Helper()
	positions := make([][3]float64, n)
	colors := make([][3]float64, n)
	for i := range positions {
		positions[i] = [3]float64{float64(i), float64(2 * i), float64(3 * i)}
		colors[i] = [3]float64{float64(i % 256), 0, 0}
	}
	pc, err := pointcloud.NewColored("EPSG:32632", positions, colors, pointcloud.ColorSpaceByte)
	require.NoError(t, err)
	return pc
}

func TestPrefixFractionKeepsPrefix(t *testing.T) {
	for _, tc := range []struct {
		n       int
		percent float64
		want    int
	}{
		{16, 50, 8},
		{10, 33, 3},
		{7, 100, 7},
		{7, 0, 0},
		{3, 99.9, 2},
		{1000, 12.5, 125},
	} {
		pc := cloud(t, tc.n)
		original := append([][3]float64(nil), pc.Positions()...)
		out, err := Sample(pc, Policy{Kind: PrefixFraction, Percent: tc.percent})
		require.NoError(t, err)
		assert.Equal(t, tc.want, out.Len(), "n=%d percent=%g", tc.n, tc.percent)
		assert.Equal(t, original[:tc.want], out.Positions()[:out.Len()])
		assert.Len(t, out.Colors(), tc.want)
	}
}

func TestRandomFractionIsReproducible(t *testing.T) {
	run := func(seed uint64) [][3]float64 {
		out, err := Sample(cloud(t, 500), Policy{Kind: RandomFraction, Fraction: 0.3, Seed: seed})
		require.NoError(t, err)
		return out.Positions()
	}

	first := run(42)
	assert.Len(t, first, 150)
	assert.Equal(t, first, run(42))
	assert.NotEqual(t, first, run(43))

	seen := map[[3]float64]bool{}
	for _, p := range first {
		assert.False(t, seen[p], "duplicate point %v", p)
		seen[p] = true
		assert.Equal(t, 2*p[0], p[1], "sampled point must exist in the input")
	}
}

func TestRandomFractionKeepsColorsInLockstep(t *testing.T) {
	out, err := Sample(cloud(t, 100), Policy{Kind: RandomFraction, Fraction: 0.5, Seed: 7})
	require.NoError(t, err)
	for i, p := range out.Positions() {
		assert.Equal(t, float64(int(p[0])%256), out.Colors()[i][0])
	}
}

func TestRandomSizeRoundsHalfToEven(t *testing.T) {
	assert.Equal(t, 2, RandomSize(0.5, 5))
	assert.Equal(t, 4, RandomSize(0.5, 7))
	assert.Equal(t, 0, RandomSize(0.01, 10))

	out, err := Sample(cloud(t, 10), Policy{Kind: RandomFraction, Fraction: 0.01, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())

	out, err = Sample(cloud(t, 10), Policy{Kind: RandomFraction, Fraction: 1, Seed: 1})
	require.NoError(t, err)
	got := make([]int, 0, 10)
	for _, p := range out.Positions() {
		got = append(got, int(p[0]))
	}
	sort.Ints(got)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestVoxelKeepsFirstPointPerCell(t *testing.T) {
	positions := [][3]float64{
		{0.1, 0.1, 0.1},
		{0.2, 0.3, 0.4},
		{1.5, 0.1, 0.1},
		{0.9, 0.9, 0.9},
		{1.6, 0.2, 0.2},
		{5, 5, 5},
	}
	pc := pointcloud.New("EPSG:32632", positions)
	out, err := Sample(pc, Policy{Kind: Voxel, LeafSize: 1})
	require.NoError(t, err)
	assert.Equal(t, [][3]float64{{0.1, 0.1, 0.1}, {1.5, 0.1, 0.1}, {5, 5, 5}}, out.Positions())
}

func TestSampleFailures(t *testing.T) {
	_, err := Sample(nil, Policy{Kind: PrefixFraction, Percent: 50})
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	_, err = Sample(pointcloud.New("EPSG:4326", nil), Policy{Kind: PrefixFraction, Percent: 50})
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	for _, policy := range []Policy{
		{Kind: PrefixFraction, Percent: 101},
		{Kind: PrefixFraction, Percent: -1},
		{Kind: RandomFraction, Fraction: 1.5},
		{Kind: Voxel, LeafSize: 0},
		{Kind: "grid"},
	} {
		_, err := Sample(cloud(t, 4), policy)
		assert.True(t, errors.Is(err, errs.ErrPrecondition), "%v", policy)
	}
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, PrefixFraction, ParseKind(" Prefix_Fraction "))
	assert.Equal(t, RandomFraction, ParseKind("random_fraction"))
	assert.Equal(t, Voxel, ParseKind("VOXEL"))
	assert.Equal(t, Kind(""), ParseKind("stride"))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Random_Fraction", 40, 0.25, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, Policy{Kind: RandomFraction, Fraction: 0.25, Seed: 7}, p)

	p, err = ParsePolicy("prefix_fraction", 20, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "prefix_fraction(percent=20)", p.String())

	_, err = ParsePolicy("voxel", 0, 0, 0, -1)
	assert.True(t, errors.Is(err, errs.ErrPrecondition))

	_, err = ParsePolicy("stride", 10, 0, 0, 0)
	assert.True(t, errors.Is(err, errs.ErrPrecondition))
}
