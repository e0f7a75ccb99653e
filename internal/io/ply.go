package io

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/EliCDavis/polyform/formats/ply"
	"github.com/EliCDavis/polyform/modeling"
	"github.com/EliCDavis/vector/vector3"

	"github.com/ecopia-map/geofuse/internal/errs"
	"github.com/ecopia-map/geofuse/internal/mesh"
	"github.com/ecopia-map/geofuse/internal/pointcloud"
)

const (
	plyCRSComment    = "comment crs "
	plyOriginComment = "comment origin "
)

// vertex and face tables of a PLY file. Positions are stored as float32 relative to origin.
type plyContent struct {
	crs       string
	positions [][3]float64
	colors    [][3]uint8
	normals   [][3]float64
	faces     [][3]int
}

func plyContentOf(model *pointcloud.PointCloud, withNormals bool) *plyContent {
	c := &plyContent{crs: model.CRS(), positions: model.Positions()}
	if model.HasColors() {
		c.colors, _ = model.ByteColors()
	}
	if withNormals && model.HasNormals() {
		c.normals = model.Normals()
	}
	return c
}

func plyContentOfMesh(m *mesh.Mesh) *plyContent {
	c := &plyContent{crs: m.CRS, positions: m.Vertices, normals: m.Normals, faces: m.Faces}
	if m.HasColors() {
		c.colors = make([][3]uint8, len(m.Colors))
		for i, col := range m.Colors {
			c.colors[i] = [3]uint8{unitToByte(col[0]), unitToByte(col[1]), unitToByte(col[2])}
		}
	}
	return c
}

func unitToByte(v float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255))
}

func plyOrigin(positions [][3]float64) [3]float64 {
	if len(positions) == 0 {
		return [3]float64{}
	}
	origin := positions[0]
	for _, p := range positions[1:] {
		for axis := range origin {
			origin[axis] = math.Min(origin[axis], p[axis])
		}
	}
	for axis := range origin {
		origin[axis] = math.Floor(origin[axis])
	}
	return origin
}

func (c *plyContent) model() modeling.Mesh {
	origin := plyOrigin(c.positions)
	attributes := map[string][]vector3.Float64{
		modeling.PositionAttribute: make([]vector3.Float64, len(c.positions)),
	}
	for i, p := range c.positions {
		attributes[modeling.PositionAttribute][i] = vector3.New(p[0]-origin[0], p[1]-origin[1], p[2]-origin[2])
	}
	if c.colors != nil {
		colors := make([]vector3.Float64, len(c.colors))
		for i, col := range c.colors {
			// lands on the same byte whether the encoder truncates or rounds
			colors[i] = vector3.New(float64(col[0])+0.25, float64(col[1])+0.25, float64(col[2])+0.25).DivByConstant(255.)
		}
		attributes[modeling.ColorAttribute] = colors
	}
	if c.normals != nil {
		normals := make([]vector3.Float64, len(c.normals))
		for i, n := range c.normals {
			normals[i] = vector3.New(n[0], n[1], n[2])
		}
		attributes[modeling.NormalAttribute] = normals
	}

	if c.faces == nil {
		return modeling.NewPointCloud(attributes, nil, nil, nil)
	}
	indices := make([]int, 0, 3*len(c.faces))
	for _, f := range c.faces {
		indices = append(indices, f[0], f[1], f[2])
	}
	m := modeling.NewTriangleMesh(indices)
	for name, values := range attributes {
		m = m.SetFloat3Attribute(name, values)
	}
	return m
}

func writePLY(w io.Writer, c *plyContent, encoding PLYEncoding) error {
	var buf bytes.Buffer
	var err error
	if encoding == PLYAscii {
		err = ply.WriteASCII(&buf, c.model())
	} else {
		err = ply.WriteBinary(&buf, c.model())
	}
	if err != nil {
		return err
	}

	origin := plyOrigin(c.positions)
	var comments strings.Builder
	if c.crs != "" {
		comments.WriteString(plyCRSComment + c.crs + "\n")
	}
	fmt.Fprintf(&comments, "%s%s %s %s\n", plyOriginComment,
		strconv.FormatFloat(origin[0], 'f', -1, 64),
		strconv.FormatFloat(origin[1], 'f', -1, 64),
		strconv.FormatFloat(origin[2], 'f', -1, 64))

	// comments go right after the format line
	b := buf.Bytes()
	start := bytes.Index(b, []byte("\nformat "))
	if start < 0 {
		return fmt.Errorf("ply encoder wrote no format line")
	}
	end := start + 1 + bytes.IndexByte(b[start+1:], '\n') + 1

	bw := bufio.NewWriter(w)
	bw.Write(b[:end])
	bw.WriteString(comments.String())
	bw.Write(b[end:])
	return bw.Flush()
}

// plyComments returns the crs and origin recorded in the header of b.
func plyComments(b []byte) (string, [3]float64, error) {
	var crs string
	var origin [3]float64
	end := bytes.Index(b, []byte("end_header"))
	if !bytes.HasPrefix(b, []byte("ply")) || end < 0 {
		return "", origin, fmt.Errorf("not a ply file")
	}
	for _, line := range strings.Split(string(b[:end]), "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, plyCRSComment):
			crs = strings.TrimSpace(strings.TrimPrefix(line, plyCRSComment))
		case strings.HasPrefix(line, plyOriginComment):
			fields := strings.Fields(strings.TrimPrefix(line, plyOriginComment))
			if len(fields) != 3 {
				return "", origin, fmt.Errorf("malformed origin %q", line)
			}
			for axis, field := range fields {
				v, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return "", origin, fmt.Errorf("malformed origin %q", line)
				}
				origin[axis] = v
			}
		}
	}
	return crs, origin, nil
}

func readPLY(r io.Reader, path string) (*pointcloud.PointCloud, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.IO(err, "io: read %s", path)
	}
	crs, origin, err := plyComments(b)
	if err != nil {
		return nil, errs.IO(err, "io: ply header of %s", path)
	}
	return decodePLY(b, crs, origin, path)
}

// the decoder panics on some malformed bodies
func decodePLY(b []byte, crs string, origin [3]float64, path string) (model *pointcloud.PointCloud, err error) {
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, errs.IO(fmt.Errorf("%v", r), "io: ply body of %s", path)
		}
	}()

	m, err := ply.ReadMesh(bytes.NewReader(b))
	if err != nil {
		return nil, errs.IO(err, "io: ply body of %s", path)
	}
	if !m.HasFloat3Attribute(modeling.PositionAttribute) {
		return nil, errs.IO(nil, "io: %s has no x, y, z vertex properties", path)
	}

	vertices := m.Float3Attribute(modeling.PositionAttribute)
	positions := make([][3]float64, vertices.Len())
	for i := range positions {
		v := vertices.At(i)
		positions[i] = [3]float64{v.X() + origin[0], v.Y() + origin[1], v.Z() + origin[2]}
	}
	model = pointcloud.New(crs, positions)

	if m.HasFloat3Attribute(modeling.ColorAttribute) {
		values := m.Float3Attribute(modeling.ColorAttribute)
		colors := make([][3]float64, len(positions))
		for i := range colors {
			c := values.At(i)
			colors[i] = [3]float64{math.Round(c.X() * 255), math.Round(c.Y() * 255), math.Round(c.Z() * 255)}
		}
		if err := model.SetColors(colors, pointcloud.ColorSpaceByte); err != nil {
			return nil, err
		}
	}
	if m.HasFloat3Attribute(modeling.NormalAttribute) {
		values := m.Float3Attribute(modeling.NormalAttribute)
		normals := make([][3]float64, len(positions))
		for i := range normals {
			n := values.At(i)
			normals[i] = [3]float64{n.X(), n.Y(), n.Z()}
		}
		if err := model.SetNormals(normals); err != nil {
			return nil, err
		}
	}
	return model, nil
}
