// Package quicklook renders a top-down preview image of a point cloud.
package quicklook

import (
	"image/color"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/spf13/afero"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
)

type Options struct {
	Title string
	// image side in inches
	Size float64
	// every n-th point is drawn so that at most MaxPoints are plotted, 0 draws all of them
	MaxPoints int
	// glyph radius in points
	Radius float64
}

func DefaultOptions() Options {
	return Options{Size: 8, MaxPoints: 200000, Radius: 1}
}

// Render draws the XY projection of the model, each point in its own color, or colored by
// elevation when the model has none. The format follows the extension of path (png, svg, pdf...).
func Render(fs afero.Fs, model *pointcloud.PointCloud, path string, opts Options) error {
	if model.IsEmpty() {
		return errs.InvalidState("quicklook: no points to render")
	}
	if opts.Size <= 0 {
		opts.Size = DefaultOptions().Size
	}
	if opts.Radius <= 0 {
		opts.Radius = DefaultOptions().Radius
	}

	step := 1
	if opts.MaxPoints > 0 && model.Len() > opts.MaxPoints {
		step = (model.Len() + opts.MaxPoints - 1) / opts.MaxPoints
	}

	positions := model.Positions()
	xys := make(plotter.XYs, 0, model.Len()/step+1)
	indices := make([]int, 0, cap(xys))
	for i := 0; i < len(positions); i += step {
		xys = append(xys, plotter.XY{X: positions[i][0], Y: positions[i][1]})
		indices = append(indices, i)
	}

	colorOf, err := pointColors(model)
	if err != nil {
		return err
	}

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return errs.Precondition("quicklook: %v", err)
	}
	radius := vg.Points(opts.Radius)
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: colorOf(indices[i]), Radius: radius, Shape: draw.CircleGlyph{}}
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(scatter)

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	side := vg.Length(opts.Size) * vg.Inch
	writer, err := p.WriterTo(side, side, format)
	if err != nil {
		return errs.IO(err, "quicklook: %s", path)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.IO(err, "quicklook: create folder of %s", path)
	}
	f, err := fs.Create(path)
	if err != nil {
		return errs.IO(err, "quicklook: create %s", path)
	}
	if _, err := writer.WriteTo(f); err != nil {
		f.Close()
		return errs.IO(err, "quicklook: write %s", path)
	}
	if err := f.Close(); err != nil {
		return errs.IO(err, "quicklook: close %s", path)
	}

	glog.Infof("> rendered %s of %s points to %s", humanize.Comma(int64(len(xys))), humanize.Comma(int64(model.Len())), path)
	return nil
}

func pointColors(model *pointcloud.PointCloud) (func(i int) color.Color, error) {
	if model.HasColors() {
		colors, err := model.ByteColors()
		if err != nil {
			return nil, err
		}
		return func(i int) color.Color {
			c := colors[i]
			return color.NRGBA{R: c[0], G: c[1], B: c[2], A: 255}
		}, nil
	}

	b := model.Bounds()
	ramp := moreland.SmoothBlueRed()
	ramp.SetMin(b.Zmin)
	ramp.SetMax(b.Zmax)
	if b.Zmax <= b.Zmin {
		ramp.SetMax(b.Zmin + 1)
	}
	positions := model.Positions()
	return func(i int) color.Color {
		c, err := ramp.At(positions[i][2])
		if err != nil {
			return color.Gray{Y: 128}
		}
		return c
	}, nil
}
