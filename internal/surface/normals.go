package surface

import (
	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/io"
	"github.com/ecopia-map/geofuse/internal/mesh"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
)

const chunkSize = 512

// EstimateNormals fits a tangent plane to the neighborhood of every point and returns its unit
// normal, oriented according to opts.Orientation. The model is not modified.
func EstimateNormals(model *pointcloud.PointCloud, opts Options) ([][3]float64, error) {
	if model.IsEmpty() {
		return nil, errs.InvalidState("surface: no points to estimate normals for")
	}
	if model.Len() < 3 {
		return nil, errs.Precondition("surface: %d points cannot define a plane", model.Len())
	}
	opts = opts.withDefaults()
	if opts.Neighbors < 3 {
		return nil, errs.Precondition("surface: %d neighbors cannot define a plane", opts.Neighbors)
	}

	glog.Infof("> estimating normals of %s points from %d neighbors...", humanize.Comma(int64(model.Len())), opts.Neighbors)

	positions := model.Positions()
	index := newNeighborIndex(positions)
	centroid := centroidOf(positions)
	normals := make([][3]float64, len(positions))

	err := io.ForEachRange(len(positions), chunkSize, opts.Workers, func(unit *io.WorkUnit) error {
		for i := unit.Start; i < unit.End; i++ {
			n, err := fitNormal(positions, index.nearest(positions[i], opts.Neighbors))
			if err != nil {
				return eris.Wrapf(err, "surface: normal of point %d", i)
			}
			normals[i] = orient(n, positions[i], centroid, opts.Orientation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return normals, nil
}

// smallest eigenvector of the neighborhood covariance
func fitNormal(positions [][3]float64, neighbors []neighbor) ([3]float64, error) {
	var mean [3]float64
	for _, nb := range neighbors {
		p := positions[nb.index]
		mean[0] += p[0]
		mean[1] += p[1]
		mean[2] += p[2]
	}
	k := float64(len(neighbors))
	mean = [3]float64{mean[0] / k, mean[1] / k, mean[2] / k}

	cov := mat.NewSymDense(3, nil)
	for _, nb := range neighbors {
		p := positions[nb.index]
		d := [3]float64{p[0] - mean[0], p[1] - mean[1], p[2] - mean[2]}
		for r := 0; r < 3; r++ {
			for c := r; c < 3; c++ {
				cov.SetSym(r, c, cov.At(r, c)+d[r]*d[c]/k)
			}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return [3]float64{}, errs.Precondition("surface: covariance factorization failed")
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// eigenvalues come in ascending order
	return mesh.Unit([3]float64{vectors.At(0, 0), vectors.At(1, 0), vectors.At(2, 0)}), nil
}

func orient(n, p, centroid [3]float64, orientation Orientation) [3]float64 {
	var flip bool
	switch orientation {
	case OrientationOutward:
		flip = n[0]*(p[0]-centroid[0])+n[1]*(p[1]-centroid[1])+n[2]*(p[2]-centroid[2]) < 0
	default:
		flip = n[2] < 0
	}
	if flip {
		return [3]float64{-n[0], -n[1], -n[2]}
	}
	return n
}

func centroidOf(positions [][3]float64) [3]float64 {
	var c [3]float64
	for _, p := range positions {
		c[0] += p[0]
		c[1] += p[1]
		c[2] += p[2]
	}
	n := float64(len(positions))
	return [3]float64{c[0] / n, c[1] / n, c[2] / n}
}
