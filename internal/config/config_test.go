package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/sampling"
	"github.com/ecopia-map/geofuse/internal/surface"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("input", "i", "", "")
	fs.StringP("output", "o", "", "")
	fs.Float64("sample-percent", 20, "")
	fs.Int("depth", 9, "")
	fs.Bool("mesh", false, "")
	for name, key := range map[string]string{
		"input":          "input",
		"output":         "output",
		"sample-percent": "sampling.percent",
		"depth":          "mesh.depth",
		"mesh":           "mesh.enabled",
	} {
		require.NoError(t, fs.SetAnnotation(name, KeyAnnotation, []string{key}))
	}
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	opts, err := Load(CommandFusion, nil, "")
	require.NoError(t, err)

	assert.Equal(t, CommandFusion, opts.Command)
	assert.Equal(t, "EPSG:32632", opts.CRS)
	assert.Equal(t, 10*time.Minute, opts.Timeout)
	assert.Equal(t, "edh", opts.Elevation.User)
	assert.Equal(t, "dem", opts.Elevation.Variable)
	assert.Equal(t, 8, opts.Elevation.Concurrency)
	assert.Equal(t, "BUCKET", opts.Lidar.Overflow)
	assert.Equal(t, "EPSG:4326", opts.Lidar.TargetCRS)
	assert.Equal(t, "prefix_fraction", opts.Sampling.Kind)
	assert.InDelta(t, 20, opts.Sampling.Percent, 1e-12)
	assert.Equal(t, 9, opts.Mesh.Depth)
	assert.Equal(t, "BINARY", opts.Export.PLYEncoding)
	assert.True(t, opts.Export.Manifest)
	assert.True(t, opts.Raster.Region.IsZero())

	expected := surface.DefaultOptions()
	assert.Equal(t, expected, opts.SurfaceOptions())

	policy, err := opts.Policy()
	require.NoError(t, err)
	assert.Equal(t, &sampling.Policy{Kind: sampling.PrefixFraction, Percent: 20}, policy)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
crs: EPSG:32633
sampling:
  kind: Random_Fraction
  fraction: 0.5
  seed: 42
raster:
  region:
    left: 10
    right: 20
    bottom: 30
    top: 40
mesh:
  orientation: outward
export:
  ply_encoding: ascii
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geofuse.yaml"), []byte(yaml), 0o644))

	opts, err := Load(CommandFusion, nil, "")
	require.NoError(t, err)

	assert.Equal(t, "EPSG:32633", opts.CRS)
	assert.Equal(t, "random_fraction", opts.Sampling.Kind)
	assert.Equal(t, uint64(42), opts.Sampling.Seed)
	assert.Equal(t, 20.0, opts.Raster.Region.Right)
	assert.Equal(t, 30.0, opts.Raster.Region.Bottom)
	assert.Equal(t, "OUTWARD", opts.Mesh.Orientation)
	assert.Equal(t, "ASCII", opts.Export.PLYEncoding)
	// untouched keys keep their defaults
	assert.Equal(t, 9, opts.Mesh.Depth)

	policy, err := opts.Policy()
	require.NoError(t, err)
	assert.Equal(t, &sampling.Policy{Kind: sampling.RandomFraction, Fraction: 0.5, Seed: 42}, policy)
}

func TestExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(t.TempDir())
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mesh:\n  depth: 6\n"), 0o644))

	opts, err := Load(CommandLidar, nil, path)
	require.NoError(t, err)
	assert.Equal(t, 6, opts.Mesh.Depth)

	_, err = Load(CommandLidar, nil, filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.Is(err, errs.ErrIO))
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geofuse.yaml"), []byte("sampling:\n  percent: 30\nmesh:\n  depth: 7\n"), 0o644))
	t.Setenv("GEOFUSE_SAMPLING_PERCENT", "40")

	opts, err := Load(CommandFusion, testFlags(t), "")
	require.NoError(t, err)
	assert.InDelta(t, 40, opts.Sampling.Percent, 1e-12, "environment wins over file")
	assert.Equal(t, 7, opts.Mesh.Depth, "file wins over flag defaults")

	opts, err = Load(CommandFusion, testFlags(t, "--sample-percent=55", "--depth=11", "-i", "/in.png"), "")
	require.NoError(t, err)
	assert.InDelta(t, 55, opts.Sampling.Percent, 1e-12, "changed flags win")
	assert.Equal(t, 11, opts.Mesh.Depth)
	assert.Equal(t, "/in.png", opts.Input)
}

func TestTokenVariables(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("hdb_token", "lower")
	opts, err := Load(CommandFusion, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "lower", opts.Elevation.Token)

	t.Setenv("HDB_TOKEN", "upper")
	opts, err = Load(CommandFusion, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "upper", opts.Elevation.Token)

	t.Setenv("GEOFUSE_ELEVATION_TOKEN", "geofuse")
	opts, err = Load(CommandFusion, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "geofuse", opts.Elevation.Token)
}

func validFusion(t *testing.T) (*Options, afero.Fs) {
	t.Helper()
	t.Chdir(t.TempDir())
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/scene.png", []byte("png"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/dem.asc", []byte("asc"), 0o644))
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	opts, err := Load(CommandFusion, testFlags(t, "-i", "/data/scene.png", "-o", "/out/cloud.ply"), "")
	require.NoError(t, err)
	opts.Elevation.Path = "/data/dem.asc"
	require.NoError(t, opts.Validate(fs))
	return opts, fs
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(o *Options)
		kind   error
	}{
		"missing input":        {func(o *Options) { o.Input = "/data/nope.png" }, errs.ErrIO},
		"missing output dir":   {func(o *Options) { o.Output = "/nope/cloud.ply" }, errs.ErrIO},
		"unknown extension":    {func(o *Options) { o.Output = "/out/cloud.xyz" }, errs.ErrPrecondition},
		"no output":            {func(o *Options) { o.Output = "" }, errs.ErrPrecondition},
		"percent out of range": {func(o *Options) { o.Sampling.Percent = 120 }, errs.ErrPrecondition},
		"unknown sampling":     {func(o *Options) { o.Sampling.Kind = "stride" }, errs.ErrPrecondition},
		"voxel without leaf":   {func(o *Options) { o.Sampling.Kind = "voxel"; o.Sampling.LeafSize = 0 }, errs.ErrPrecondition},
		"depth too deep":       {func(o *Options) { o.Mesh.Depth = 13 }, errs.ErrPrecondition},
		"depth zero":           {func(o *Options) { o.Mesh.Depth = 0 }, errs.ErrPrecondition},
		"mesh not ply":         {func(o *Options) { o.Mesh.Output = "/out/mesh.las" }, errs.ErrPrecondition},
		"unknown overflow":     {func(o *Options) { o.Lidar.Overflow = "WRAP" }, errs.ErrPrecondition},
		"bad crs":              {func(o *Options) { o.CRS = "utm" }, errs.ErrPrecondition},
		"folder fusion":        {func(o *Options) { o.Input = "/data"; o.Folder = true }, errs.ErrPrecondition},
		"folder on a file":     {func(o *Options) { o.Folder = true }, errs.ErrPrecondition},
		"no elevation":         {func(o *Options) { o.Elevation.Path = "" }, errs.ErrPrecondition},
		"url without token": {func(o *Options) {
			o.Elevation.Path = ""
			o.Elevation.URL = "https://dem.example.org/store.zarr"
			o.Elevation.Token = ""
		}, errs.ErrPrecondition},
		"inverted region": {func(o *Options) {
			o.Raster.Region.Left, o.Raster.Region.Right = 10, 5
			o.Raster.Region.Bottom, o.Raster.Region.Top = 0, 1
		}, errs.ErrPrecondition},
		"unknown command": {func(o *Options) { o.Command = "tile" }, errs.ErrPrecondition},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			opts, fs := validFusion(t)
			tc.mutate(opts)
			err := opts.Validate(fs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "%v", err)
		})
	}
}

func TestValidateLidarFolder(t *testing.T) {
	opts, fs := validFusion(t)
	require.NoError(t, afero.WriteFile(fs, "/tiles/a.las", []byte("las"), 0o644))
	opts.Command = CommandLidar
	opts.Input = "/tiles"
	opts.Folder = true
	opts.Output = "/out/merged.pcd"
	require.NoError(t, opts.Validate(fs))

	assert.Equal(t, "/out/a.pcd", opts.OutputFor("/tiles/a.las"))
	assert.Equal(t, "/out/a.mesh.ply", opts.MeshOutput(opts.OutputFor("/tiles/a.las")))

	opts.Lidar.TargetCRS = "wgs84"
	assert.True(t, errors.Is(opts.Validate(fs), errs.ErrPrecondition))
}

func TestOutputs(t *testing.T) {
	opts := &Options{Output: "/out/cloud.ply"}
	assert.Equal(t, "/out/cloud.ply", opts.OutputFor("/data/scene.png"))
	assert.Equal(t, "/out/cloud.mesh.ply", opts.MeshOutput(opts.Output))

	opts.Mesh.Output = "/out/surface.ply"
	assert.Equal(t, "/out/surface.ply", opts.MeshOutput(opts.Output))
}
