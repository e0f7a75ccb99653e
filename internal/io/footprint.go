package io

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/geometry"
)

// Footprint is the planar extent of a product.
type Footprint struct {
	CRS    string
	Bounds *geometry.BoundingBox
	Points int
}

func (fp Footprint) polygon() orb.Polygon {
	return fp.Bounds.Bound().ToPolygon()
}

// WriteFootprint writes <output>.footprint.geojson through the exporter file system and, when
// the exporter works on the OS file system, <output>.footprint.shp with its .shx and .dbf.
// It returns the written paths.
func (e *Exporter) WriteFootprint(output string, fp Footprint) ([]string, error) {
	if fp.Bounds == nil {
		return nil, errs.InvalidState("io: footprint of %s has no bounds", output)
	}
	base := output + FootprintSuffix
	if err := e.ensureParent(base); err != nil {
		return nil, err
	}

	paths := []string{base + ".geojson"}
	if err := e.writeGeoJSON(paths[0], fp); err != nil {
		return nil, err
	}
	if _, ok := e.fs.(*afero.OsFs); !ok {
		return paths, nil
	}
	if err := writeShapefile(base+".shp", fp); err != nil {
		return nil, err
	}
	return append(paths, base+".shp"), nil
}

func (e *Exporter) writeGeoJSON(path string, fp Footprint) error {
	feature := geojson.NewFeature(fp.polygon())
	feature.Properties["crs"] = fp.CRS
	feature.Properties["points"] = fp.Points
	feature.Properties["zmin"] = fp.Bounds.Zmin
	feature.Properties["zmax"] = fp.Bounds.Zmax

	fc := geojson.NewFeatureCollection()
	fc.Append(feature)
	b, err := fc.MarshalJSON()
	if err != nil {
		return errs.IO(err, "io: encode footprint")
	}
	return e.create(path, func(f afero.File) error {
		_, err := f.Write(b)
		return err
	})
}

// go-shp writes straight to the OS file system
func writeShapefile(path string, fp Footprint) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return errs.IO(err, "io: create %s", path)
	}
	if err := writeFootprintShape(w, path, fp); err != nil {
		w.Close()
		return err
	}
	w.Close()

	// go-shp v0.1.1 names the table <base>dbf
	base := strings.TrimSuffix(path, ".shp")
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return errs.IO(err, "io: rename dbf of %s", path)
	}
	return nil
}

func writeFootprintShape(w *shp.Writer, path string, fp Footprint) error {
	ring := fp.polygon()[0]
	points := make([]shp.Point, len(ring))
	for i, p := range ring {
		points[i] = shp.Point{X: p[0], Y: p[1]}
	}
	// shapefile outer rings run clockwise
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	polygon := shp.Polygon(*shp.NewPolyLine([][]shp.Point{points}))

	if err := w.SetFields([]shp.Field{
		shp.StringField("CRS", 64),
		shp.NumberField("POINTS", 12),
	}); err != nil {
		return errs.IO(err, "io: shapefile fields of %s", path)
	}
	row := w.Write(&polygon)
	if err := w.WriteAttribute(int(row), 0, fp.CRS); err != nil {
		return errs.IO(err, "io: shapefile attributes of %s", path)
	}
	if err := w.WriteAttribute(int(row), 1, fp.Points); err != nil {
		return errs.IO(err, "io: shapefile attributes of %s", path)
	}
	return nil
}
