package pkg

import (
	"context"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/config"
	"github.com/ecopia-map/geofuse/internal/io"
	"github.com/ecopia-map/geofuse/internal/mesh"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
	"github.com/ecopia-map/geofuse/internal/quicklook"
	"github.com/ecopia-map/geofuse/internal/sampling"
	"github.com/ecopia-map/geofuse/internal/surface"
	"github.com/ecopia-map/geofuse/pkg/algorithm_manager"
	"github.com/ecopia-map/geofuse/tools"
)

type IRunner interface {
	Run(ctx context.Context, opts *config.Options) ([]Product, error)
}

// Product lists the files a run wrote for one input.
type Product struct {
	Source    string
	Output    string
	Points    int
	Mesh      string
	Manifest  string
	Footprint []string
	Quicklook string
}

// finisher runs the stages shared by every source once a model is built: sampling, color
// normalization, normals and mesh, then the exports.
type finisher struct {
	fs               afero.Fs
	algorithmManager algorithm_manager.AlgorithmManager
}

func (f *finisher) finish(model *pointcloud.PointCloud, opts *config.Options, source, output string) (*Product, error) {
	policy, err := opts.Policy()
	if err != nil {
		return nil, err
	}
	if policy != nil {
		tools.LogOutput("> sampling points...")
		if model, err = sampling.Sample(model, *policy); err != nil {
			return nil, err
		}
	}

	if model.HasColors() && (opts.Export.NormalizeColors || opts.Mesh.Enabled) {
		if err := model.NormalizeColors(); err != nil {
			return nil, err
		}
	}

	product := &Product{Source: source, Output: output}
	exporter := io.NewExporter(f.fs, opts.ExporterOptions())

	var msh *mesh.Mesh
	if opts.Mesh.Enabled {
		tools.LogOutput("> reconstructing surface...")
		msh, err = f.algorithmManager.GetSurfaceReconstructor().Reconstruct(model, opts.Mesh.Depth)
		if err != nil {
			return nil, err
		}
		product.Mesh = opts.MeshOutput(output)
		if err := exporter.WriteMesh(msh, product.Mesh); err != nil {
			return nil, err
		}
	} else if opts.Export.Normals && !model.HasNormals() {
		tools.LogOutput("> estimating normals...")
		normals, err := surface.EstimateNormals(model, opts.SurfaceOptions())
		if err != nil {
			return nil, err
		}
		if err := model.SetNormals(normals); err != nil {
			return nil, err
		}
	}

	tools.LogOutput("> exporting data...")
	if err := exporter.WritePointCloud(model, output); err != nil {
		return nil, err
	}
	product.Points = model.Len()

	if opts.Export.Quicklook != "" {
		product.Quicklook = opts.Export.Quicklook
		if opts.Folder {
			product.Quicklook = quicklookFor(opts.Export.Quicklook, output)
		}
		qo := quicklook.DefaultOptions()
		qo.Title = filepath.Base(source)
		if err := quicklook.Render(f.fs, model, product.Quicklook, qo); err != nil {
			return nil, err
		}
		glog.Infoln("> wrote quicklook", product.Quicklook)
	}

	if opts.Export.Footprint {
		paths, err := exporter.WriteFootprint(output, io.Footprint{CRS: model.CRS(), Bounds: model.Bounds(), Points: model.Len()})
		if err != nil {
			return nil, err
		}
		product.Footprint = paths
	}

	if opts.Export.Manifest {
		m := io.NewManifest(opts.Command, source, output, model)
		if policy != nil {
			m.WithSampling(*policy)
		}
		if msh != nil {
			m.WithMesh(product.Mesh, opts.Mesh.Depth, msh)
		}
		if product.Manifest, err = exporter.WriteManifest(m); err != nil {
			return nil, err
		}
		glog.V(2).Infoln("manifest", tools.FmtJSONString(m))
	}

	return product, nil
}

// the quicklook of one input of a folder run sits next to its output
func quicklookFor(quicklookPath, output string) string {
	ext := filepath.Ext(quicklookPath)
	return output[:len(output)-len(filepath.Ext(output))] + ".quicklook" + ext
}
