// Package sampling reduces the cardinality of a point cloud. Sampling never invents or duplicates
// points and always runs after the model has been built.
package sampling

import (
	"math/rand/v2"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
	"github.com/ecopia-map/geofuse/internal/octree/grid_tree"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
)

var hundred = decimal.NewFromInt(100)

// Sample reduces pc in place according to policy and returns it.
func Sample(pc *pointcloud.PointCloud, policy Policy) (*pointcloud.PointCloud, error) {
	if pc.IsEmpty() {
		return nil, errs.InvalidState("sampling: no points to sample, build the model first")
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	n := pc.Len()
	var err error
	switch policy.Kind {
	case PrefixFraction:
		err = pc.Truncate(PrefixSize(policy.Percent, n))
	case RandomFraction:
		err = sampleRandom(pc, policy.Fraction, policy.Seed)
	case Voxel:
		err = sampleVoxel(pc, policy.LeafSize)
	}
	if err != nil {
		return nil, err
	}

	glog.Infof("> sampled %s of %s points with %s", humanize.Comma(int64(pc.Len())), humanize.Comma(int64(n)), policy)
	return pc, nil
}

// PrefixSize returns floor(percent/100*n) computed in decimal arithmetic.
func PrefixSize(percent float64, n int) int {
	return int(decimal.NewFromFloat(percent).
		Mul(decimal.NewFromInt(int64(n))).
		Div(hundred).
		Floor().
		IntPart())
}

// RandomSize returns round(fraction*n), halves rounding to even.
func RandomSize(fraction float64, n int) int {
	return int(decimal.NewFromFloat(fraction).
		Mul(decimal.NewFromInt(int64(n))).
		RoundBank(0).
		IntPart())
}

func sampleRandom(pc *pointcloud.PointCloud, fraction float64, seed uint64) error {
	k := RandomSize(fraction, pc.Len())
	if k == 0 {
		return pc.Truncate(0)
	}
	indices := make([]int, k)
	sampleuv.WithoutReplacement(indices, pc.Len(), rand.NewPCG(seed, seed))
	return pc.Select(indices)
}

func sampleVoxel(pc *pointcloud.PointCloud, leafSize float64) error {
	grid := grid_tree.NewVoxelGrid(leafSize)
	for i, p := range pc.Positions() {
		grid.AddPoint(i, geometry.FromArray(p))
	}
	return pc.Select(grid.Retained())
}
