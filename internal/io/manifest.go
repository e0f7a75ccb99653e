package io

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/mesh"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
	"github.com/ecopia-map/geofuse/internal/sampling"
)

const (
	ManifestSuffix  = ".manifest.yaml"
	FootprintSuffix = ".footprint"
)

// Manifest describes the products of a run. It is written next to the main output.
type Manifest struct {
	RunID      string           `yaml:"run_id"`
	CreatedAt  time.Time        `yaml:"created_at"`
	Pipeline   string           `yaml:"pipeline"`
	Source     string           `yaml:"source"`
	Output     string           `yaml:"output"`
	CRS        string           `yaml:"crs"`
	Points     int              `yaml:"points"`
	ColorSpace string           `yaml:"color_space"`
	Bounds     *Extent          `yaml:"bounds,omitempty"`
	Sampling   *sampling.Policy `yaml:"sampling,omitempty"`
	Mesh       *MeshStats       `yaml:"mesh,omitempty"`
}

type Extent struct {
	Min [3]float64 `yaml:"min,flow"`
	Max [3]float64 `yaml:"max,flow"`
}

type MeshStats struct {
	Output    string  `yaml:"output"`
	Depth     int     `yaml:"depth"`
	Vertices  int     `yaml:"vertices"`
	Triangles int     `yaml:"triangles"`
	Area      float64 `yaml:"area"`
}

// NewManifest starts a manifest for the given model under a fresh run id.
func NewManifest(pipeline, source, output string, model *pointcloud.PointCloud) *Manifest {
	m := &Manifest{
		RunID:      uuid.NewString(),
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Pipeline:   pipeline,
		Source:     source,
		Output:     output,
		CRS:        model.CRS(),
		Points:     model.Len(),
		ColorSpace: string(model.ColorSpace()),
	}
	if b := model.Bounds(); b != nil {
		m.Bounds = &Extent{Min: [3]float64{b.Xmin, b.Ymin, b.Zmin}, Max: [3]float64{b.Xmax, b.Ymax, b.Zmax}}
	}
	return m
}

func (m *Manifest) WithSampling(policy sampling.Policy) *Manifest {
	m.Sampling = &policy
	return m
}

func (m *Manifest) WithMesh(output string, depth int, msh *mesh.Mesh) *Manifest {
	m.Mesh = &MeshStats{
		Output:    output,
		Depth:     depth,
		Vertices:  msh.NumVertices(),
		Triangles: msh.NumFaces(),
		Area:      msh.SurfaceArea(),
	}
	return m
}

// WriteManifest writes m to <output>.manifest.yaml and returns that path.
func (e *Exporter) WriteManifest(m *Manifest) (string, error) {
	path := m.Output + ManifestSuffix
	b, err := yaml.Marshal(m)
	if err != nil {
		return "", errs.IO(err, "io: encode manifest")
	}
	if err := e.ensureParent(path); err != nil {
		return "", err
	}
	err = e.create(path, func(f afero.File) error {
		_, err := f.Write(b)
		return err
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func (e *Exporter) ReadManifest(path string) (*Manifest, error) {
	b, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return nil, errs.IO(err, "io: read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, errs.IO(err, "io: decode manifest %s", path)
	}
	return &m, nil
}
