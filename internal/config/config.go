// Package config merges command line flags, an optional geofuse.yaml and GEOFUSE_*
// environment variables into the options of one pipeline run.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ecopia-map/geofuse/internal/converters"
	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
	"github.com/ecopia-map/geofuse/internal/io"
	"github.com/ecopia-map/geofuse/internal/lidar"
	"github.com/ecopia-map/geofuse/internal/octree/grid_tree"
	"github.com/ecopia-map/geofuse/internal/sampling"
	"github.com/ecopia-map/geofuse/internal/surface"
)

const (
	CommandFusion = "fusion"
	CommandLidar  = "lidar"

	// KeyAnnotation marks a flag with the configuration key it sets.
	KeyAnnotation = "geofuse_config_key"

	EnvPrefix = "GEOFUSE"
)

// token variables, most specific first
var tokenEnv = []string{"GEOFUSE_ELEVATION_TOKEN", "HDB_TOKEN", "hdb_token"}

type Options struct {
	Command   string           `mapstructure:"-"`
	Input     string           `mapstructure:"input" validate:"required"`
	Output    string           `mapstructure:"output" validate:"required"`
	CRS       string           `mapstructure:"crs" validate:"required"`
	Folder    bool             `mapstructure:"folder"`
	Recursive bool             `mapstructure:"recursive"`
	Timeout   time.Duration    `mapstructure:"timeout" validate:"gte=0"`
	Workers   int              `mapstructure:"workers" validate:"gte=0"`
	Raster    RasterOptions    `mapstructure:"raster"`
	Elevation ElevationOptions `mapstructure:"elevation"`
	Lidar     LidarOptions     `mapstructure:"lidar"`
	Sampling  SamplingOptions  `mapstructure:"sampling"`
	Mesh      MeshOptions      `mapstructure:"mesh"`
	Export    ExportOptions    `mapstructure:"export"`
	Log       LogOptions       `mapstructure:"log"`
}

type RasterOptions struct {
	// overrides the world file when set
	Region geometry.Region `mapstructure:"region"`
}

// ElevationOptions select the DEM: a zarr store over HTTP, or an ESRI ASCII grid when Path is set.
type ElevationOptions struct {
	URL         string `mapstructure:"url"`
	Path        string `mapstructure:"path"`
	User        string `mapstructure:"user"`
	Token       string `mapstructure:"token"`
	Variable    string `mapstructure:"variable" validate:"required"`
	XName       string `mapstructure:"x_name" validate:"required"`
	YName       string `mapstructure:"y_name" validate:"required"`
	Concurrency int    `mapstructure:"concurrency" validate:"gte=1"`
}

type LidarOptions struct {
	TargetCRS      string  `mapstructure:"target_crs"`
	Overflow       string  `mapstructure:"overflow" validate:"oneof=BUCKET CYCLE ERROR"`
	EmbeddedColors bool    `mapstructure:"embedded_colors"`
	EightBitColors bool    `mapstructure:"eight_bit_colors"`
	ZOffset        float64 `mapstructure:"z_offset"`
	// use the libproj backed converter instead of the built in one
	Proj bool `mapstructure:"proj"`
}

// SamplingOptions hold the sampling policy. An empty kind disables sampling.
type SamplingOptions struct {
	Kind     string  `mapstructure:"kind" validate:"omitempty,oneof=prefix_fraction random_fraction voxel"`
	Percent  float64 `mapstructure:"percent" validate:"gte=0,lte=100"`
	Fraction float64 `mapstructure:"fraction" validate:"gte=0,lte=1"`
	Seed     uint64  `mapstructure:"seed"`
	LeafSize float64 `mapstructure:"leaf_size" validate:"gte=0"`
}

type MeshOptions struct {
	Enabled        bool    `mapstructure:"enabled"`
	Depth          int     `mapstructure:"depth" validate:"min=1"`
	Output         string  `mapstructure:"output"`
	Neighbors      int     `mapstructure:"neighbors" validate:"gte=3"`
	FieldNeighbors int     `mapstructure:"field_neighbors" validate:"gte=1"`
	ColorNeighbors int     `mapstructure:"color_neighbors" validate:"gte=1"`
	Orientation    string  `mapstructure:"orientation" validate:"oneof=UP OUTWARD"`
	SupportScale   float64 `mapstructure:"support_scale" validate:"gt=0"`
	Padding        float64 `mapstructure:"padding" validate:"gte=0"`
}

type ExportOptions struct {
	PLYEncoding     string `mapstructure:"ply_encoding" validate:"oneof=BINARY ASCII"`
	Normals         bool   `mapstructure:"normals"`
	NormalizeColors bool   `mapstructure:"normalize_colors"`
	Manifest        bool   `mapstructure:"manifest"`
	Footprint       bool   `mapstructure:"footprint"`
	Quicklook       string `mapstructure:"quicklook"`
}

type LogOptions struct {
	Silent    bool `mapstructure:"silent"`
	Timestamp bool `mapstructure:"timestamp"`
}

// Defaults returns the values used for every key no flag, file or variable sets.
func Defaults() map[string]interface{} {
	so := surface.DefaultOptions()
	return map[string]interface{}{
		"input":                   "",
		"output":                  "",
		"crs":                     "EPSG:32632",
		"folder":                  false,
		"recursive":               false,
		"timeout":                 10 * time.Minute,
		"workers":                 0,
		"raster.region.left":      0.0,
		"raster.region.right":     0.0,
		"raster.region.bottom":    0.0,
		"raster.region.top":       0.0,
		"elevation.url":           "",
		"elevation.path":          "",
		"elevation.user":          "edh",
		"elevation.token":         "",
		"elevation.variable":      "dem",
		"elevation.x_name":        "x",
		"elevation.y_name":        "y",
		"elevation.concurrency":   8,
		"lidar.target_crs":        "EPSG:4326",
		"lidar.overflow":          string(lidar.OverflowBucket),
		"lidar.embedded_colors":   false,
		"lidar.eight_bit_colors":  false,
		"lidar.z_offset":          0.0,
		"lidar.proj":              false,
		"sampling.kind":           string(sampling.PrefixFraction),
		"sampling.percent":        20.0,
		"sampling.fraction":       0.2,
		"sampling.seed":           uint64(0),
		"sampling.leaf_size":      1.0,
		"mesh.enabled":            false,
		"mesh.depth":              9,
		"mesh.output":             "",
		"mesh.neighbors":          so.Neighbors,
		"mesh.field_neighbors":    so.FieldNeighbors,
		"mesh.color_neighbors":    so.ColorNeighbors,
		"mesh.orientation":        string(so.Orientation),
		"mesh.support_scale":      so.SupportScale,
		"mesh.padding":            so.Padding,
		"export.ply_encoding":     string(io.PLYBinary),
		"export.normals":          false,
		"export.normalize_colors": false,
		"export.manifest":         true,
		"export.footprint":        false,
		"export.quicklook":        "",
		"log.silent":              false,
		"log.timestamp":           false,
	}
}

// Load reads the options of command. Flags changed on the command line win over
// GEOFUSE_* variables, which win over geofuse.yaml, which wins over the defaults.
// configFile may be empty, in which case geofuse.yaml is looked up in the working directory
// and then in searchPaths.
func Load(command string, flags *pflag.FlagSet, configFile string, searchPaths ...string) (*Options, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("geofuse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(append([]string{"elevation.token"}, tokenEnv...)...); err != nil {
		return nil, eris.Wrap(err, "config: bind token variables")
	}

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			keys, ok := f.Annotations[KeyAnnotation]
			if !ok || len(keys) == 0 || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(keys[0], f)
		})
		if bindErr != nil {
			return nil, eris.Wrap(bindErr, "config: bind flags")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errs.IO(err, "config: read %s", v.ConfigFileUsed())
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	opts.Command = command
	opts.normalize()
	return &opts, nil
}

// canonical spelling of the enum values, unknown values are kept for Validate to report
func (o *Options) normalize() {
	if v := lidar.ParseOverflowPolicy(o.Lidar.Overflow); v != "" {
		o.Lidar.Overflow = string(v)
	}
	if v := surface.ParseOrientation(o.Mesh.Orientation); v != "" {
		o.Mesh.Orientation = string(v)
	}
	if v := io.ParsePLYEncoding(o.Export.PLYEncoding); v != "" {
		o.Export.PLYEncoding = string(v)
	}
	if v := sampling.ParseKind(o.Sampling.Kind); v != "" {
		o.Sampling.Kind = string(v)
	}
}

// Validate checks the options against fs: field ranges first, then the input and output paths
// and the rules that span several fields.
func (o *Options) Validate(fs afero.Fs) error {
	if err := validator.New().Struct(o); err != nil {
		return errs.Precondition("config: %v", err)
	}
	if o.Command != CommandFusion && o.Command != CommandLidar {
		return errs.Precondition("config: unknown command %q", o.Command)
	}

	if _, err := converters.ParseCRS(o.CRS); err != nil {
		return err
	}

	info, err := fs.Stat(o.Input)
	if err != nil {
		return errs.IO(err, "config: input %s not found", o.Input)
	}
	if o.Folder && !info.IsDir() {
		return errs.Precondition("config: folder processing needs a folder, %s is a file", o.Input)
	}
	if dir := filepath.Dir(o.Output); dir != "." {
		if info, err := fs.Stat(dir); err != nil || !info.IsDir() {
			return errs.IO(err, "config: output folder %s not found", dir)
		}
	}
	if io.FormatOf(o.Output) == "" {
		return errs.Precondition("config: no point cloud format for %s, use .ply, .pcd or .las", o.Output)
	}

	if o.Sampling.Kind != "" {
		if _, err := o.Policy(); err != nil {
			return err
		}
	}
	if o.Mesh.Depth > grid_tree.MaxDepth {
		return errs.Precondition("config: mesh depth %d above %d", o.Mesh.Depth, grid_tree.MaxDepth)
	}
	if o.Mesh.Output != "" && io.FormatOf(o.Mesh.Output) != io.FormatPLY {
		return errs.Precondition("config: meshes are written as .ply, got %s", o.Mesh.Output)
	}

	if o.Command == CommandLidar {
		if _, err := converters.ParseCRS(o.Lidar.TargetCRS); err != nil {
			return err
		}
	}

	if o.Command == CommandFusion {
		if o.Folder {
			return errs.Precondition("config: fusion reads one scene, folder processing is lidar only")
		}
		if o.Elevation.Path == "" && o.Elevation.URL == "" {
			return errs.Precondition("config: fusion needs an elevation url or path")
		}
		if o.Elevation.URL != "" && o.Elevation.Path == "" && o.Elevation.Token == "" {
			return errs.Precondition("config: no elevation token, set %s", strings.Join(tokenEnv, " or "))
		}
		if !o.Raster.Region.IsZero() {
			if err := o.Raster.Region.Validate(); err != nil {
				return errs.Precondition("config: %v", err)
			}
		}
	}
	return nil
}

// Policy returns the sampling policy, or nil when sampling is disabled.
func (o *Options) Policy() (*sampling.Policy, error) {
	if o.Sampling.Kind == "" {
		return nil, nil
	}
	s := o.Sampling
	p, err := sampling.ParsePolicy(s.Kind, s.Percent, s.Fraction, s.Seed, s.LeafSize)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (o *Options) SurfaceOptions() surface.Options {
	return surface.Options{
		Neighbors:      o.Mesh.Neighbors,
		FieldNeighbors: o.Mesh.FieldNeighbors,
		ColorNeighbors: o.Mesh.ColorNeighbors,
		Orientation:    surface.Orientation(o.Mesh.Orientation),
		SupportScale:   o.Mesh.SupportScale,
		Padding:        o.Mesh.Padding,
		Workers:        o.Workers,
	}
}

// OutputFor returns the point cloud output of one input. In folder mode every input gets a
// file named after it, in the folder and with the extension of the configured output.
func (o *Options) OutputFor(input string) string {
	if !o.Folder {
		return o.Output
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(o.Output), stem+filepath.Ext(o.Output))
}

// MeshOutput returns where the mesh built from the cloud written to output goes: the
// configured path, or output with a .mesh.ply suffix.
func (o *Options) MeshOutput(output string) string {
	if o.Mesh.Output != "" && !o.Folder {
		return o.Mesh.Output
	}
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".mesh.ply"
}

func (o *Options) ExporterOptions() io.ExporterOptions {
	return io.ExporterOptions{
		PLYEncoding:  io.PLYEncoding(o.Export.PLYEncoding),
		WriteNormals: o.Export.Normals,
	}
}
