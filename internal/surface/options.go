package surface

import (
	"strings"
)

type Orientation string

const (
	// normals point toward +Z, the usual choice for aerial data
	OrientationUp Orientation = "UP"
	// normals point away from the cloud centroid
	OrientationOutward Orientation = "OUTWARD"
)

func ParseOrientation(value string) Orientation {
	normalizedValue := strings.Trim(strings.ToUpper(value), " ")
	switch Orientation(normalizedValue) {
	case OrientationUp:
		return OrientationUp
	case OrientationOutward:
		return OrientationOutward
	}
	return ""
}

// Options tune normal estimation and surface extraction
type Options struct {
	// neighbors used to fit the tangent plane of every point
	Neighbors int `yaml:"neighbors" json:"neighbors" validate:"gte=3"`
	// oriented samples blended into the signed distance at a lattice vertex
	FieldNeighbors int `yaml:"field_neighbors" json:"field_neighbors" validate:"gte=1"`
	// source points blended into the color of a mesh vertex
	ColorNeighbors int         `yaml:"color_neighbors" json:"color_neighbors" validate:"gte=1"`
	Orientation    Orientation `yaml:"orientation" json:"orientation" validate:"oneof=UP OUTWARD"`
	// support radius of the signed distance, in leaf cell diagonals
	SupportScale float64 `yaml:"support_scale" json:"support_scale" validate:"gt=0"`
	// growth of the cubic bounding box around the cloud
	Padding float64 `yaml:"padding" json:"padding" validate:"gte=0"`
	// consumers of the worker pool, 0 means one per CPU
	Workers int `yaml:"workers" json:"workers" validate:"gte=0"`
}

func DefaultOptions() Options {
	return Options{
		Neighbors:      16,
		FieldNeighbors: 8,
		ColorNeighbors: 4,
		Orientation:    OrientationUp,
		SupportScale:   2,
		Padding:        0.1,
		Workers:        0,
	}
}

// fills zero values with the defaults
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Neighbors == 0 {
		o.Neighbors = d.Neighbors
	}
	if o.FieldNeighbors == 0 {
		o.FieldNeighbors = d.FieldNeighbors
	}
	if o.ColorNeighbors == 0 {
		o.ColorNeighbors = d.ColorNeighbors
	}
	if o.Orientation == "" {
		o.Orientation = d.Orientation
	}
	if o.SupportScale == 0 {
		o.SupportScale = d.SupportScale
	}
	return o
}
