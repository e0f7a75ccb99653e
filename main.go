/*
 * This file is part of geofuse (https://github.com/ecopia-map/geofuse).
 * Copyright (c) 2026 Ecopia Mapping
 *
 * geofuse derives its command line and runner layout from the Go Cesium Point
 * Cloud Tiler (https://github.com/mfbonfigli/gocesiumtiler),
 * Copyright (c) 2019 Massimo Federico Bonfigli, and is distributed under the
 * same license.
 *
 * This program is free software; you can redistribute it and/or modify it
 * under the terms of the GNU Lesser General Public License Version 3 as
 * published by the Free Software Foundation;
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
 * Lesser General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ecopia-map/geofuse/internal/config"
	"github.com/ecopia-map/geofuse/pkg"
	"github.com/ecopia-map/geofuse/pkg/algorithm_manager/std_algorithm_manager"
	"github.com/ecopia-map/geofuse/tools"
)

const VERSION = "0.4.0"

const logo = `
                   __
  __ _  ___  ___  / _|_   _ ___  ___
 / _  |/ _ \/ _ \| |_| | | / __|/ _ \
| (_| |  __/ (_) |  _| |_| \__ \  __/
 \__, |\___|\___/|_|  \__,_|___/\___|
  __| | Raster, DEM and LiDAR fusion into colored point clouds and meshes
 |___/  Copyright YYYY - Ecopia Mapping
`

var configFile *string

var rootCmd = &cobra.Command{
	Use:           "geofuse",
	Short:         "Fuses rasters, DEMs and LiDAR into colored point clouds and meshes",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var fusionCmd = &cobra.Command{
	Use:   tools.CommandFusion,
	Short: "Fuses a satellite scene with a DEM into a colored point cloud",
	Long: `Reads a georeferenced satellite scene (a GeoTIFF, any PNG, JPEG or TIFF with a world
file, or an explicit --region-* box), fetches the DEM over the same region from a zarr store or an
ESRI ASCII grid, and writes one colored point per pixel in row-major order.

Examples:
  # keep the first 20% of the points and build a mesh
  geofuse fusion -i scene.png -o out/cloud.ply -u https://dem.example.org/store.zarr -m

  # use a local DEM and a voxel filter
  geofuse fusion -i scene.tif -o out/cloud.pcd --elevation-path dem.asc -k voxel --leaf-size 2`,
	Args: cobra.NoArgs,
	RunE: run,
}

var lidarCmd = &cobra.Command{
	Use:   tools.CommandLidar,
	Short: "Reprojects LAS files and colors them by classification",
	Long: `Reads one LAS file (or every .las file of a folder with -f), reprojects the returns
to --target-crs, colors them from the classification labels and writes one point cloud per
input.

Examples:
  geofuse lidar -i tile.las -o out/tile.ply -e EPSG:32632
  geofuse lidar -f -r -i tiles/ -o out/cloud.las -z 47.5`,
	Args: cobra.NoArgs,
	RunE: run,
}

var versionCmd = &cobra.Command{
	Use:   tools.CommandVersion,
	Short: "Prints the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

func init() {
	configFile = tools.AddGlobalFlags(rootCmd.PersistentFlags())

	tools.AddPipelineFlags(fusionCmd.Flags())
	tools.AddFusionFlags(fusionCmd.Flags())
	tools.AddPipelineFlags(lidarCmd.Flags())
	tools.AddLidarFlags(lidarCmd.Flags())

	rootCmd.AddCommand(fusionCmd, lidarCmd, versionCmd)

	// glog registers its flags on the standard flag set
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

func main() {
	_ = flag.Set("logtostderr", "true")
	defer glog.Flush()

	if err := rootCmd.Execute(); err != nil {
		glog.Errorln("Error while processing:", err)
		glog.Flush()
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	opts, err := config.Load(cmd.Name(), cmd.Flags(), *configFile, tools.GetRootFolder())
	if err != nil {
		return err
	}

	if opts.Log.Silent {
		tools.DisableLogger()
	} else {
		printLogo()
	}
	if !opts.Log.Timestamp {
		tools.DisableLoggerTimestamp()
	}

	fs := afero.NewOsFs()
	if err := opts.Validate(fs); err != nil {
		return err
	}
	glog.V(1).Infoln("options", tools.FmtJSONString(opts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer timeTrack(time.Now(), cmd.Name())
	algorithmManager := std_algorithm_manager.NewAlgorithmManager(opts, fs)
	var runner pkg.IRunner
	switch opts.Command {
	case tools.CommandLidar:
		runner = pkg.NewLidarRunner(fs, tools.NewFileFinder(fs), algorithmManager)
	default:
		runner = pkg.NewFusionRunner(fs, tools.NewFileFinder(fs), algorithmManager)
	}

	products, err := runner.Run(ctx, opts)
	if err != nil {
		return err
	}
	for _, p := range products {
		tools.LogOutput(fmt.Sprintf("> %s: %d points written to %s", p.Source, p.Points, p.Output))
		if p.Mesh != "" {
			tools.LogOutput("> mesh written to", p.Mesh)
		}
	}
	tools.LogOutput("Conversion Completed")
	return nil
}

func timeTrack(start time.Time, name string) {
	elapsed := time.Since(start)
	tools.LogOutput(fmt.Sprintf("%s took %s", name, elapsed))
}

func printLogo() {
	fmt.Println(strings.ReplaceAll(logo, "YYYY", strconv.Itoa(time.Now().Year())))
}

func printVersion() {
	fmt.Println("v." + VERSION)
}
