package tools

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/ecopia-map/geofuse/internal/config"
)

const (
	CommandFusion  = config.CommandFusion
	CommandLidar   = config.CommandLidar
	CommandVersion = "version"
)

// AddGlobalFlags defines the flags shared by every subcommand and returns the config file path.
func AddGlobalFlags(flagSet *pflag.FlagSet) *string {
	configFile := flagSet.StringP("config", "c", "", "Reads options from this YAML file instead of looking up geofuse.yaml.")
	defineBoolFlag(flagSet, "log.silent", "silent", "s", "Use to suppress all the non-error messages.")
	defineBoolFlag(flagSet, "log.timestamp", "timestamp", "t", "Adds timestamp to log messages.")
	return configFile
}

// AddPipelineFlags defines the input, sampling, mesh and export flags of both pipelines.
func AddPipelineFlags(flagSet *pflag.FlagSet) {
	defineStringFlag(flagSet, "input", "input", "i", "Specifies the input file (or folder, with --folder).")
	defineStringFlag(flagSet, "output", "output", "o", "Specifies the output point cloud. The extension (.ply, .pcd, .las) selects the format.")
	defineStringFlag(flagSet, "crs", "crs", "e", "Reference system of the input, as EPSG:<code>, a bare code or a +proj string.")
	defineIntFlag(flagSet, "workers", "workers", "w", "Worker pool size, 0 means one worker per CPU.")
	defineDurationFlag(flagSet, "timeout", "timeout", "", "Time allowed to the remote elevation fetch.")

	defineStringFlag(flagSet, "sampling.kind", "sample", "k", "Sampling policy: prefix_fraction, random_fraction or voxel. Empty disables sampling.")
	defineFloat64Flag(flagSet, "sampling.percent", "sample-percent", "p", "Percent of points kept by prefix_fraction, in [0,100].")
	defineFloat64Flag(flagSet, "sampling.fraction", "sample-fraction", "", "Fraction of points kept by random_fraction, in [0,1].")
	defineUint64Flag(flagSet, "sampling.seed", "sample-seed", "", "Seed of random_fraction.")
	defineFloat64Flag(flagSet, "sampling.leaf_size", "leaf-size", "", "Voxel side of the voxel policy, in CRS units.")

	defineBoolFlag(flagSet, "mesh.enabled", "mesh", "m", "Reconstructs a colored surface mesh from the sampled cloud.")
	defineIntFlag(flagSet, "mesh.depth", "depth", "d", "Octree depth of the reconstruction, 1 to 12. Higher depths give finer meshes.")
	defineStringFlag(flagSet, "mesh.output", "mesh-output", "", "Mesh output (.ply). Defaults to the cloud output with a .mesh.ply suffix.")
	defineIntFlag(flagSet, "mesh.neighbors", "normal-neighbors", "", "Neighbors used to estimate every normal.")
	defineIntFlag(flagSet, "mesh.field_neighbors", "field-neighbors", "", "Oriented samples blended at every lattice vertex.")
	defineIntFlag(flagSet, "mesh.color_neighbors", "color-neighbors", "", "Source points blended into every mesh vertex color.")
	defineStringFlag(flagSet, "mesh.orientation", "orientation", "", "Normal orientation, UP or OUTWARD.")
	defineFloat64Flag(flagSet, "mesh.support_scale", "support-scale", "", "Support of the implicit surface, in leaf cell diagonals.")
	defineFloat64Flag(flagSet, "mesh.padding", "padding", "", "Growth of the reconstruction box around the cloud, as a fraction of its size.")

	defineStringFlag(flagSet, "export.ply_encoding", "ply-encoding", "", "PLY encoding, BINARY or ASCII.")
	defineBoolFlag(flagSet, "export.normals", "normals", "", "Writes point normals to PLY outputs when the cloud has them.")
	defineBoolFlag(flagSet, "export.normalize_colors", "normalize-colors", "", "Normalizes colors to [0,1] before export.")
	defineBoolFlag(flagSet, "export.manifest", "manifest", "", "Writes a <output>.manifest.yaml describing the run.")
	defineBoolFlag(flagSet, "export.footprint", "footprint", "", "Writes the footprint of the cloud as GeoJSON and shapefile.")
	defineStringFlag(flagSet, "export.quicklook", "quicklook", "q", "Renders a top-down preview of the cloud to this image (.png, .svg, .pdf).")
}

// AddFusionFlags defines the raster georeferencing and elevation store flags.
func AddFusionFlags(flagSet *pflag.FlagSet) {
	defineFloat64Flag(flagSet, "raster.region.left", "region-left", "", "West edge of the scene, overriding its world file.")
	defineFloat64Flag(flagSet, "raster.region.right", "region-right", "", "East edge of the scene.")
	defineFloat64Flag(flagSet, "raster.region.bottom", "region-bottom", "", "South edge of the scene.")
	defineFloat64Flag(flagSet, "raster.region.top", "region-top", "", "North edge of the scene.")

	defineStringFlag(flagSet, "elevation.url", "elevation-url", "u", "Base URL of the zarr store holding the DEM. The token is read from GEOFUSE_ELEVATION_TOKEN or HDB_TOKEN.")
	defineStringFlag(flagSet, "elevation.path", "elevation-path", "", "ESRI ASCII grid used instead of the zarr store.")
	defineStringFlag(flagSet, "elevation.user", "elevation-user", "", "User of the zarr store.")
	defineStringFlag(flagSet, "elevation.variable", "elevation-variable", "", "DEM variable of the zarr store.")
	defineStringFlag(flagSet, "elevation.x_name", "x-name", "", "Name of the x coordinate array.")
	defineStringFlag(flagSet, "elevation.y_name", "y-name", "", "Name of the y coordinate array.")
	defineIntFlag(flagSet, "elevation.concurrency", "fetch-concurrency", "", "Chunks fetched in parallel from the zarr store.")
}

// AddLidarFlags defines the LAS ingest and reprojection flags.
func AddLidarFlags(flagSet *pflag.FlagSet) {
	defineBoolFlag(flagSet, "folder", "folder", "f", "Enables processing of all las files from input folder. Input must be a folder if specified")
	defineBoolFlag(flagSet, "recursive", "recursive", "r", "Enables recursive lookup for all .las files inside the subfolders")
	defineStringFlag(flagSet, "lidar.target_crs", "target-crs", "g", "Reference system the returns are reprojected to.")
	defineStringFlag(flagSet, "lidar.overflow", "overflow", "", "Colors of labels past the palette: BUCKET, CYCLE or ERROR.")
	defineBoolFlag(flagSet, "lidar.embedded_colors", "embedded-colors", "", "Uses the RGB stored in the LAS file instead of the classification colors.")
	defineBoolFlag(flagSet, "lidar.eight_bit_colors", "8bit", "b", "Assumes the input LAS has colors encoded in eight bit format. Default is false (LAS has 16 bit color depth)")
	defineFloat64Flag(flagSet, "lidar.z_offset", "zoffset", "z", "Vertical offset to apply to points, in meters.")
	defineBoolFlag(flagSet, "lidar.proj", "proj", "", "Reprojects through libproj instead of the built in UTM and WGS84 transforms.")
}

func bindKey(flagSet *pflag.FlagSet, key string, name string) {
	// the flag was just defined, SetAnnotation cannot fail
	_ = flagSet.SetAnnotation(name, config.KeyAnnotation, []string{key})
}

func defineStringFlag(flagSet *pflag.FlagSet, key string, name string, shortHand string, usage string) {
	defaultValue, _ := config.Defaults()[key].(string)
	flagSet.StringP(name, shortHand, defaultValue, usage)
	bindKey(flagSet, key, name)
}

func defineIntFlag(flagSet *pflag.FlagSet, key string, name string, shortHand string, usage string) {
	defaultValue, _ := config.Defaults()[key].(int)
	flagSet.IntP(name, shortHand, defaultValue, usage)
	bindKey(flagSet, key, name)
}

func defineUint64Flag(flagSet *pflag.FlagSet, key string, name string, shortHand string, usage string) {
	defaultValue, _ := config.Defaults()[key].(uint64)
	flagSet.Uint64P(name, shortHand, defaultValue, usage)
	bindKey(flagSet, key, name)
}

func defineFloat64Flag(flagSet *pflag.FlagSet, key string, name string, shortHand string, usage string) {
	defaultValue, _ := config.Defaults()[key].(float64)
	flagSet.Float64P(name, shortHand, defaultValue, usage)
	bindKey(flagSet, key, name)
}

func defineBoolFlag(flagSet *pflag.FlagSet, key string, name string, shortHand string, usage string) {
	defaultValue, _ := config.Defaults()[key].(bool)
	flagSet.BoolP(name, shortHand, defaultValue, usage)
	bindKey(flagSet, key, name)
}

func defineDurationFlag(flagSet *pflag.FlagSet, key string, name string, shortHand string, usage string) {
	defaultValue, _ := config.Defaults()[key].(time.Duration)
	flagSet.DurationP(name, shortHand, defaultValue, usage)
	bindKey(flagSet, key, name)
}
