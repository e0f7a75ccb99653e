package io

import (
	"io"
	"math"

	"github.com/golang/glog"
	pcmat "github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
)

// float32 keeps about 7 significant digits
const float32SafeMagnitude = 1e5

// writes float32 xyz plus a packed 0x00RRGGBB rgb field when the model has colors
func writePCD(w io.Writer, model *pointcloud.PointCloud) error {
	header := pc.PointCloudHeader{
		Version:   0.7,
		Fields:    []string{"x", "y", "z"},
		Size:      []int{4, 4, 4},
		Type:      []string{"F", "F", "F"},
		Count:     []int{1, 1, 1},
		Width:     model.Len(),
		Height:    1,
		Viewpoint: []float32{0, 0, 0, 1, 0, 0, 0},
	}
	var colors [][3]uint8
	if model.HasColors() {
		var err error
		if colors, err = model.ByteColors(); err != nil {
			return err
		}
		header.Fields = append(header.Fields, "rgb")
		header.Size = append(header.Size, 4)
		header.Type = append(header.Type, "U")
		header.Count = append(header.Count, 1)
	}

	pp := &pc.PointCloud{
		PointCloudHeader: header,
		Points:           model.Len(),
	}
	pp.Data = make([]byte, pp.Points*pp.Stride())

	it, err := pp.Vec3Iterator()
	if err != nil {
		return err
	}
	warned := false
	for _, p := range model.Positions() {
		if !warned && math.Max(math.Abs(p[0]), math.Max(math.Abs(p[1]), math.Abs(p[2]))) > float32SafeMagnitude {
			glog.Warningf("io: pcd stores float32 positions, coordinates around %.0f lose precision", p[0])
			warned = true
		}
		it.SetVec3(pcmat.Vec3{float32(p[0]), float32(p[1]), float32(p[2])})
		it.Incr()
	}
	if colors != nil {
		rgb, err := pp.Uint32Iterator("rgb")
		if err != nil {
			return err
		}
		for _, c := range colors {
			rgb.SetUint32(uint32(c[0])<<16 | uint32(c[1])<<8 | uint32(c[2]))
			rgb.Incr()
		}
	}
	return pc.Marshal(pp, w)
}

func readPCD(r io.Reader, path string) (*pointcloud.PointCloud, error) {
	pp, err := pc.Unmarshal(r)
	if err != nil {
		return nil, errs.IO(err, "io: parse pcd %s", path)
	}
	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, errs.IO(err, "io: pcd %s has no x, y, z fields", path)
	}
	positions := make([][3]float64, 0, pp.Points)
	for ; it.IsValid(); it.Incr() {
		v := it.Vec3()
		positions = append(positions, [3]float64{float64(v[0]), float64(v[1]), float64(v[2])})
	}
	model := pointcloud.New("", positions)

	rgb, err := pp.Uint32Iterator("rgb")
	if err != nil {
		return model, nil
	}
	colors := make([][3]float64, 0, len(positions))
	for ; rgb.IsValid(); rgb.Incr() {
		packed := rgb.Uint32()
		colors = append(colors, [3]float64{float64(packed >> 16 & 0xFF), float64(packed >> 8 & 0xFF), float64(packed & 0xFF)})
	}
	if err := model.SetColors(colors, pointcloud.ColorSpaceByte); err != nil {
		return nil, err
	}
	return model, nil
}
